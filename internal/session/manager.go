// Package session runs one chat session per connection: login, command
// dispatch and teardown, plus the server console.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"chatd/internal/domain"
	"chatd/internal/permission"
	"chatd/internal/presence"
	"chatd/internal/protocol"
	"chatd/internal/service"
	"chatd/internal/transport"
)

// Services are the business services a session dispatches to.
type Services struct {
	Accounts domain.AccountRepository
	Auth     *service.AuthService
	Chat     *service.ChatService
	Groups   *service.GroupService
	Requests *service.RequestService
	Audit    *service.AuditService
}

type Options struct {
	// LegacyLogin accepts a bare username as the first line and logs it in
	// with LegacyPassword.
	LegacyLogin    bool
	LegacyPassword string
	MaxLineBytes   int
}

// Manager owns the process-wide session state.
type Manager struct {
	svc      Services
	presence *presence.Registry
	perms    *permission.Registry
	focus    *focusTable
	opts     Options
	log      *slog.Logger
}

func NewManager(svc Services, reg *presence.Registry, perms *permission.Registry, opts Options, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		svc:      svc,
		presence: reg,
		perms:    perms,
		focus:    newFocusTable(),
		opts:     opts,
		log:      log.With("component", "session"),
	}
}

type session struct {
	m    *Manager
	conn transport.Conn
	acc  domain.Account
	log  *slog.Logger
}

// Serve runs the session on conn until the connection ends. It always closes
// conn before returning.
func (m *Manager) Serve(ctx context.Context, conn transport.Conn) {
	defer conn.Close()

	lines := protocol.NewLineReader(conn, m.opts.MaxLineBytes)
	first, err := lines.Next()
	if err != nil {
		return
	}

	s, ok := m.login(ctx, conn, first)
	if !ok {
		return
	}
	defer m.logout(ctx, s)

	for {
		line, err := lines.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.log.Debug("read failed", "err", err)
			}
			return
		}
		cmd, err := protocol.Parse(line)
		if err != nil {
			s.log.Debug("dropped line", "err", err)
			continue
		}
		s.dispatch(ctx, cmd)
	}
}

func (m *Manager) login(ctx context.Context, conn transport.Conn, line string) (*session, bool) {
	in := service.LoginInput{RemoteAddr: conn.RemoteAddr()}

	cmd, err := protocol.Parse(line)
	switch c := cmd.(type) {
	case protocol.Login:
		in.Username, in.Password = c.Username, c.Password
	case protocol.Raw:
		if !m.opts.LegacyLogin || strings.HasPrefix(line, "CMD:") {
			return nil, false
		}
		in.Username, in.Password = line, m.opts.LegacyPassword
	default:
		m.log.Debug("first line is not a login", "remote", conn.RemoteAddr(), "err", err)
		return nil, false
	}

	res, err := m.svc.Auth.Login(ctx, in)
	if err != nil {
		reason := "Server Error"
		switch {
		case errors.Is(err, domain.ErrBadCredentials):
			reason = "Wrong Password"
		case errors.Is(err, domain.ErrInvalidInput):
			reason = "Invalid Username"
		default:
			m.log.Error("login", "user", in.Username, "err", err)
		}
		conn.Send([]byte(protocol.LoginFail(reason)))
		return nil, false
	}

	acc := res.Account
	s := &session{
		m:    m,
		conn: conn,
		acc:  acc,
		log:  m.log.With("user", acc.Username, "conn", conn.ID()),
	}

	if prev := m.presence.Register(acc.Username, acc.ID, conn); prev != nil {
		prev.Send([]byte(protocol.Notice("[System] You have been logged in from another location.")))
		prev.Close()
	}

	s.reply(protocol.LoginSuccess(acc.ID))
	if m.perms.IsAdmin(acc.Username) {
		s.reply(protocol.GrantAdmin())
		s.reply(protocol.Notice("[System] Welcome Administrator " + acc.Username))
	}
	m.presence.BroadcastStatus(acc.ID, acc.Username, true)
	m.presence.BroadcastUserList()

	if res.Registered {
		s.log.Info("registered", "id", acc.ID, "remote", conn.RemoteAddr())
	}
	m.svc.Audit.Record(ctx, acc.Username, "login", conn.RemoteAddr())
	return s, true
}

// logout tears the session down. Status broadcasts are skipped when the
// presence entry already belongs to a newer connection of the same user.
func (m *Manager) logout(ctx context.Context, s *session) {
	owned := m.presence.Unregister(s.acc.Username, s.conn)
	m.focus.clear(s.conn.ID())
	if !owned {
		return
	}
	m.presence.BroadcastStatus(s.acc.ID, s.acc.Username, false)
	m.presence.BroadcastUserList()
	m.svc.Audit.Record(ctx, s.acc.Username, "logout", "")
}

// RequestsChanged pushes a fresh REQUEST_LIST to every connection viewing
// its requests.
func (m *Manager) RequestsChanged(ctx context.Context) {
	for _, v := range m.focus.requestViewers() {
		m.pushRequests(ctx, v.conn, v.acc)
	}
}

// Online returns the online users with their global role.
func (m *Manager) Online() []OnlineUser {
	snap := m.presence.Snapshot()
	out := make([]OnlineUser, 0, len(snap))
	for _, u := range snap {
		out = append(out, OnlineUser{ID: u.ID, Username: u.Username, Role: m.perms.Role(u.Username)})
	}
	return out
}

type OnlineUser struct {
	ID       int64             `json:"id"`
	Username string            `json:"username"`
	Role     domain.GlobalRole `json:"role"`
}

func (m *Manager) pushRequests(ctx context.Context, conn transport.Conn, acc domain.Account) {
	reqs, err := m.svc.Requests.List(ctx, acc)
	if err != nil {
		m.log.Warn("list requests", "user", acc.Username, "err", err)
	}
	m.send(conn, protocol.RequestList(reqs))
}

func (m *Manager) pushFriends(ctx context.Context, conn transport.Conn, acc domain.Account) {
	friends, err := m.svc.Chat.Friends(ctx, acc.ID)
	if err != nil {
		m.log.Warn("list friends", "user", acc.Username, "err", err)
	}
	m.send(conn, protocol.FriendList(friends))
}

func (m *Manager) pushGroups(conn transport.Conn, username string) {
	m.send(conn, protocol.GroupList(m.svc.Chat.GroupsFor(username)))
}

// refreshMembers sends the member list of gid to every connection focused on it.
func (m *Manager) refreshMembers(gid int64) {
	line := protocol.GroupMembers(m.svc.Chat.GroupMembers(gid))
	for _, c := range m.focus.viewingGroup(gid) {
		m.send(c, line)
	}
}

// replay sends recs as MSG lines filed under target.
func (m *Manager) replay(conn transport.Conn, target int64, kind protocol.ChatKind, recs []domain.ChatRecord) {
	if len(recs) == 0 {
		return
	}
	var b strings.Builder
	for _, r := range recs {
		b.WriteString(protocol.EncodeMessage(protocol.MessageFromRecord(target, kind, r)))
	}
	m.send(conn, b.String())
}

// send writes line to conn. A failed write closes the connection so its
// session tears down.
func (m *Manager) send(conn transport.Conn, line string) {
	if err := conn.Send([]byte(line)); err != nil {
		m.log.Debug("send failed", "conn", conn.ID(), "err", err)
		conn.Close()
	}
}

func (s *session) reply(line string) {
	s.m.send(s.conn, line)
}

func (s *session) notice(text string) {
	s.m.send(s.conn, protocol.Notice(text))
}
