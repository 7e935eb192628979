package textfile

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"chatd/internal/domain"
)

// idFloor is the id high-water mark of an empty store; the first account
// gets idFloor+1.
const idFloor = 1000

// AccountStore keeps accounts in one file, one "id username password address"
// record per line.
type AccountStore struct {
	mu       sync.Mutex
	path     string
	accounts []domain.Account
	byName   map[string]int
	byID     map[int64]int
	maxID    int64
}

func NewAccountStore(path string) *AccountStore {
	return &AccountStore{
		path:   path,
		byName: make(map[string]int),
		byID:   make(map[int64]int),
		maxID:  idFloor,
	}
}

var _ domain.AccountRepository = (*AccountStore)(nil)

// Load replaces the in-memory set with the file contents. Lines with fewer
// than four fields are skipped.
func (s *AccountStore) Load() error {
	lines, err := readLines(s.path)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = s.accounts[:0]
	s.byName = make(map[string]int, len(lines))
	s.byID = make(map[int64]int, len(lines))
	s.maxID = idFloor
	for _, line := range lines {
		f := strings.Fields(line)
		if len(f) < 4 {
			continue
		}
		id, err := strconv.ParseInt(f[0], 10, 64)
		if err != nil {
			continue
		}
		if _, dup := s.byName[f[1]]; dup {
			continue
		}
		if _, dup := s.byID[id]; dup {
			continue
		}
		s.add(domain.Account{ID: id, Username: f[1], Password: f[2], Address: f[3]})
	}
	return nil
}

func (s *AccountStore) add(a domain.Account) {
	s.byName[a.Username] = len(s.accounts)
	s.byID[a.ID] = len(s.accounts)
	s.accounts = append(s.accounts, a)
	if a.ID > s.maxID {
		s.maxID = a.ID
	}
}

func (s *AccountStore) FindByUsername(username string) (domain.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byName[username]
	if !ok {
		return domain.Account{}, false
	}
	return s.accounts[i], true
}

func (s *AccountStore) FindByID(id int64) (domain.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byID[id]
	if !ok {
		return domain.Account{}, false
	}
	return s.accounts[i], true
}

// NextID allocates an id. Allocated ids are never handed out again, even if
// the account is never created.
func (s *AccountStore) NextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxID++
	return s.maxID
}

// Create adds an account and rewrites the file.
func (s *AccountStore) Create(ctx context.Context, a domain.Account) error {
	if a.Address == "" {
		a.Address = "unknown"
	}
	if a.Password == "" || strings.ContainsAny(a.Password, " \t\r\n") {
		return fmt.Errorf("create account %q: %w", a.Username, domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.byName[a.Username]; dup {
		return fmt.Errorf("create account %q: %w", a.Username, domain.ErrConflict)
	}
	if _, dup := s.byID[a.ID]; dup {
		return fmt.Errorf("create account %d: %w", a.ID, domain.ErrConflict)
	}
	s.add(a)
	return s.saveLocked()
}

// All returns a copy of every account in load/creation order.
func (s *AccountStore) All() []domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Account, len(s.accounts))
	copy(out, s.accounts)
	return out
}

func (s *AccountStore) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *AccountStore) saveLocked() error {
	lines := make([]string, 0, len(s.accounts))
	for _, a := range s.accounts {
		lines = append(lines, fmt.Sprintf("%d %s %s %s", a.ID, a.Username, a.Password, a.Address))
	}
	if err := rewrite(s.path, lines); err != nil {
		return fmt.Errorf("save accounts: %w", err)
	}
	return nil
}
