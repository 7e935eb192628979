package session_test

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatd/internal/domain"
	"chatd/internal/permission"
	"chatd/internal/presence"
	"chatd/internal/security"
	"chatd/internal/service"
	"chatd/internal/session"
	"chatd/internal/store/textfile"
	"chatd/internal/transport/transporttest"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type harness struct {
	t        *testing.T
	dir      string
	mgr      *session.Manager
	accounts *textfile.AccountStore
	groups   *textfile.GroupStore
	archive  *textfile.Archive
	perms    *permission.Registry
	lobbyID  int64
	port     atomic.Int64
}

func newHarness(t *testing.T, opts session.Options) *harness {
	t.Helper()
	dir := t.TempDir()

	accounts := textfile.NewAccountStore(filepath.Join(dir, "Users.txt"))
	groups := textfile.NewGroupStore(filepath.Join(dir, "Group1.txt"), filepath.Join(dir, "Group2.txt"), 100)
	archive := textfile.NewArchive(filepath.Join(dir, "GroupRecord"), filepath.Join(dir, "FriendRecord"))
	requests := textfile.NewRequestStore(filepath.Join(dir, "Request.txt"), groups)
	reg := presence.NewRegistry(nil)
	perms := permission.NewRegistry()

	groupSvc := service.NewGroupService(groups, nil, nil)
	chatSvc := service.NewChatService(accounts, groups, archive, reg, nil, nil, 0)
	svc := session.Services{
		Accounts: accounts,
		Auth:     service.NewAuthService(accounts, groups, security.NewPasswordHasher(4), nil, nil, "Lobby"),
		Chat:     chatSvc,
		Groups:   groupSvc,
		Requests: service.NewRequestService(requests, accounts, groupSvc, chatSvc, nil, nil),
	}
	if opts.MaxLineBytes == 0 {
		opts.MaxLineBytes = 4096
	}
	mgr := session.NewManager(svc, reg, perms, opts, nil)
	requests.SetWatcher(func() { mgr.RequestsChanged(context.Background()) })

	lobby, _, err := groupSvc.Ensure(context.Background(), "Lobby", domain.ConsoleName)
	require.NoError(t, err)

	h := &harness{
		t:        t,
		dir:      dir,
		mgr:      mgr,
		accounts: accounts,
		groups:   groups,
		archive:  archive,
		perms:    perms,
		lobbyID:  lobby,
	}
	h.port.Store(40000)
	return h
}

// dial starts a session on a fresh fake connection.
func (h *harness) dial() *transporttest.Conn {
	c := transporttest.NewConn("127.0.0.1:" + strconv.FormatInt(h.port.Add(1), 10))
	done := make(chan struct{})
	go func() {
		h.mgr.Serve(context.Background(), c)
		close(done)
	}()
	h.t.Cleanup(func() {
		c.Close()
		<-done
	})
	return c
}

// login dials and logs name in, waiting for LOGIN_SUCCESS.
func (h *harness) login(name string) *transporttest.Conn {
	h.t.Helper()
	c := h.dial()
	c.Write("CMD:LOGIN|" + name + "|pw\n")
	h.waitPrefix(c, "CMD:LOGIN_SUCCESS|")
	return c
}

func (h *harness) waitLine(c *transporttest.Conn, line string) {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return c.Has(line) }, waitFor, tick, "waiting for %q, got %q", line, c.Sent())
}

func (h *harness) waitPrefix(c *transporttest.Conn, prefix string) string {
	h.t.Helper()
	require.Eventually(h.t, func() bool { return c.HasPrefix(prefix) }, waitFor, tick, "waiting for %q, got %q", prefix, c.Sent())
	line, _ := c.Last(prefix)
	return line
}

// sync round-trips a /who so every line c sent before has been handled.
func (h *harness) sync(c *transporttest.Conn) {
	h.t.Helper()
	before := count(c.Sent(), "--- Online Users ---")
	c.Write("/who\n")
	require.Eventually(h.t, func() bool {
		return count(c.Sent(), "--- Online Users ---") > before
	}, waitFor, tick)
}

func count(lines []string, want string) int {
	n := 0
	for _, l := range lines {
		if l == want {
			n++
		}
	}
	return n
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func withPrefix(lines []string, prefix string) []string {
	var out []string
	for _, l := range lines {
		if strings.HasPrefix(l, prefix) {
			out = append(out, l)
		}
	}
	return out
}
