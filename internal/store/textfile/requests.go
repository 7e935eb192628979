package textfile

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"chatd/internal/domain"
)

// RequestStore is the pending request log, one "type|fromId|fromName|targetId"
// per line. Duplicate requests are kept.
type RequestStore struct {
	mu      sync.Mutex
	path    string
	perms   domain.PermissionChecker
	watchMu sync.Mutex
	watcher func()
}

func NewRequestStore(path string, perms domain.PermissionChecker) *RequestStore {
	return &RequestStore{path: path, perms: perms}
}

var _ domain.RequestRepository = (*RequestStore)(nil)

// SetWatcher registers fn to be called after every successful Enqueue.
func (s *RequestStore) SetWatcher(fn func()) {
	s.watchMu.Lock()
	s.watcher = fn
	s.watchMu.Unlock()
}

func (s *RequestStore) Enqueue(ctx context.Context, r domain.Request) error {
	if !r.Type.Valid() || strings.ContainsAny(r.FromName, "|\n") {
		return fmt.Errorf("enqueue request: %w", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	err := appendLine(s.path, formatRequest(r))
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("enqueue request: %w", err)
	}

	s.watchMu.Lock()
	fn := s.watcher
	s.watchMu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

// ListFor returns the requests userID may decide: friend requests addressed
// to them, and join requests for groups where username is at least admin.
func (s *RequestStore) ListFor(ctx context.Context, userID int64, username string) ([]domain.Request, error) {
	s.mu.Lock()
	lines, err := readLines(s.path)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}

	var out []domain.Request
	for _, line := range lines {
		r, ok := parseRequest(line)
		if !ok {
			continue
		}
		switch r.Type {
		case domain.RequestFriend:
			if r.TargetID == userID {
				out = append(out, r)
			}
		case domain.RequestGroup:
			if s.perms != nil && s.perms.CheckPermission(r.TargetID, username, domain.RoleAdmin) {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// Remove drops every request matching (typ, fromID, targetID). Corrupt lines
// are dropped too. It returns ErrNotFound when nothing matched.
func (s *RequestStore) Remove(ctx context.Context, typ domain.RequestType, fromID, targetID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines, err := readLines(s.path)
	if err != nil {
		return fmt.Errorf("remove request: %w", err)
	}
	kept := lines[:0]
	matched := false
	for _, line := range lines {
		r, ok := parseRequest(line)
		if !ok {
			continue
		}
		if r.Type == typ && r.FromID == fromID && r.TargetID == targetID {
			matched = true
			continue
		}
		kept = append(kept, line)
	}
	if !matched {
		return fmt.Errorf("remove %s request %d->%d: %w", typ, fromID, targetID, domain.ErrNotFound)
	}
	if err := rewrite(s.path, kept); err != nil {
		return fmt.Errorf("remove request: %w", err)
	}
	return nil
}

func formatRequest(r domain.Request) string {
	return fmt.Sprintf("%s|%d|%s|%d", r.Type, r.FromID, r.FromName, r.TargetID)
}

func parseRequest(line string) (domain.Request, bool) {
	f := strings.Split(line, "|")
	if len(f) != 4 {
		return domain.Request{}, false
	}
	typ := domain.RequestType(f[0])
	from, err1 := strconv.ParseInt(f[1], 10, 64)
	target, err2 := strconv.ParseInt(f[3], 10, 64)
	if !typ.Valid() || err1 != nil || err2 != nil {
		return domain.Request{}, false
	}
	return domain.Request{Type: typ, FromID: from, FromName: f[2], TargetID: target}, true
}
