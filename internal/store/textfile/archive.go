package textfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"chatd/internal/domain"
)

// Archive stores chat history as one append-only file per conversation:
//
//	timestamp|senderId|senderName|content|uuid|tombstones
//
// Each conversation file has its own lock.
type Archive struct {
	groupDir  string
	friendDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	newUUID func() string
}

func NewArchive(groupDir, friendDir string) *Archive {
	return &Archive{
		groupDir:  groupDir,
		friendDir: friendDir,
		locks:     make(map[string]*sync.Mutex),
		newUUID:   newMessageID,
	}
}

var _ domain.MessageArchive = (*Archive)(nil)

func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (a *Archive) path(key domain.ConversationKey) string {
	return key.RelPath(a.groupDir, a.friendDir)
}

func (a *Archive) lock(key domain.ConversationKey) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := key.String()
	l, ok := a.locks[k]
	if !ok {
		l = &sync.Mutex{}
		a.locks[k] = l
	}
	return l
}

// Append writes rec with a fresh uuid and an empty tombstone field.
func (a *Archive) Append(ctx context.Context, key domain.ConversationKey, rec domain.ChatRecord) (domain.ChatRecord, error) {
	if key.IsZero() {
		return domain.ChatRecord{}, fmt.Errorf("append: %w", domain.ErrInvalidInput)
	}
	rec.UUID = a.newUUID()
	rec.Tombstones = ""

	l := a.lock(key)
	l.Lock()
	defer l.Unlock()

	if err := appendLine(a.path(key), formatRecord(rec)); err != nil {
		return domain.ChatRecord{}, fmt.Errorf("append %s: %w", key, err)
	}
	return rec, nil
}

// Query returns the records of key visible to requesterID in file order.
func (a *Archive) Query(ctx context.Context, key domain.ConversationKey, requesterID int64) ([]domain.ChatRecord, error) {
	l := a.lock(key)
	l.Lock()
	lines, err := readLines(a.path(key))
	l.Unlock()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", key, err)
	}

	out := make([]domain.ChatRecord, 0, len(lines))
	for _, line := range lines {
		rec, ok := parseRecord(line)
		if !ok || hiddenFrom(rec, requesterID) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// MarkDeleted hides the record carrying id from requesterID only. Repeated
// calls add a duplicate token, which is harmless.
func (a *Archive) MarkDeleted(ctx context.Context, key domain.ConversationKey, id string, requesterID int64) error {
	l := a.lock(key)
	l.Lock()
	defer l.Unlock()

	path := a.path(key)
	lines, err := readLines(path)
	if err != nil {
		return fmt.Errorf("mark deleted %s: %w", key, err)
	}

	found := false
	for i, line := range lines {
		rec, ok := parseRecord(line)
		if !ok || rec.UUID != id {
			continue
		}
		rec.Tombstones += tombstone(requesterID)
		lines[i] = formatRecord(rec)
		found = true
	}
	if !found {
		return fmt.Errorf("mark deleted %s: message %s: %w", key, id, domain.ErrNotFound)
	}
	if err := rewrite(path, lines); err != nil {
		return fmt.Errorf("mark deleted %s: %w", key, err)
	}
	return nil
}

// Exists reports whether any record was ever written for key.
func (a *Archive) Exists(key domain.ConversationKey) bool {
	_, err := os.Stat(a.path(key))
	return err == nil
}

// DirectPeers lists the ids userID shares a direct archive with, ascending.
func (a *Archive) DirectPeers(ctx context.Context, userID int64) ([]int64, error) {
	entries, err := os.ReadDir(a.friendDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list direct archives: %w", err)
	}

	var peers []int64
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".txt" {
			continue
		}
		lo, hi, ok := parsePair(strings.TrimSuffix(e.Name(), ".txt"))
		if !ok {
			continue
		}
		switch userID {
		case lo:
			peers = append(peers, hi)
		case hi:
			peers = append(peers, lo)
		}
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	return peers, nil
}

func parsePair(name string) (int64, int64, bool) {
	a, b, ok := strings.Cut(name, "_")
	if !ok {
		return 0, 0, false
	}
	lo, err1 := strconv.ParseInt(a, 10, 64)
	hi, err2 := strconv.ParseInt(b, 10, 64)
	if err1 != nil || err2 != nil || lo == hi {
		return 0, 0, false
	}
	return lo, hi, true
}

func formatRecord(r domain.ChatRecord) string {
	return strings.Join([]string{
		r.Timestamp,
		strconv.FormatInt(r.SenderID, 10),
		r.SenderName,
		r.Content,
		r.UUID,
		r.Tombstones,
	}, "|")
}

// parseRecord splits from both ends so content may contain '|'.
func parseRecord(line string) (domain.ChatRecord, bool) {
	parts := strings.Split(line, "|")
	if len(parts) < 6 {
		return domain.ChatRecord{}, false
	}
	sender, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return domain.ChatRecord{}, false
	}
	n := len(parts)
	return domain.ChatRecord{
		Timestamp:  parts[0],
		SenderID:   sender,
		SenderName: parts[2],
		Content:    strings.Join(parts[3:n-2], "|"),
		UUID:       parts[n-2],
		Tombstones: parts[n-1],
	}, true
}

func tombstone(requesterID int64) string {
	return "d" + strconv.FormatInt(requesterID, 10) + ","
}

func hiddenFrom(r domain.ChatRecord, requesterID int64) bool {
	want := strings.TrimSuffix(tombstone(requesterID), ",")
	for _, tok := range strings.Split(r.Tombstones, ",") {
		if tok == want {
			return true
		}
	}
	return false
}
