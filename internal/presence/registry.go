// Package presence tracks which users are online and fans lines out to their
// connections. Targets are always collected under the lock and written after
// it is released, so a slow peer never blocks the registry.
package presence

import (
	"log/slog"
	"sort"
	"sync"

	"chatd/internal/domain"
	"chatd/internal/protocol"
	"chatd/internal/transport"
)

type entry struct {
	id   int64
	conn transport.Conn
}

// Registry maps online usernames to their connection.
type Registry struct {
	mu    sync.RWMutex
	users map[string]entry
	log   *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		users: make(map[string]entry),
		log:   log.With("component", "presence"),
	}
}

// Register records conn as username's connection and returns the connection
// it replaced, if any.
func (r *Registry) Register(username string, id int64, conn transport.Conn) transport.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.users[username]
	r.users[username] = entry{id: id, conn: conn}
	if ok && prev.conn != conn {
		return prev.conn
	}
	return nil
}

// Unregister removes username only if it is still bound to conn. It reports
// whether an entry was removed.
func (r *Registry) Unregister(username string, conn transport.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.users[username]
	if !ok || e.conn != conn {
		return false
	}
	delete(r.users, username)
	return true
}

func (r *Registry) Lookup(username string) (transport.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.users[username]
	return e.conn, ok
}

// LookupID finds the connection of the account with the given id.
func (r *Registry) LookupID(id int64) (transport.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.users {
		if e.id == id {
			return e.conn, true
		}
	}
	return nil, false
}

func (r *Registry) IsOnline(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[username]
	return ok
}

// Snapshot returns the online users sorted by username.
func (r *Registry) Snapshot() []domain.OnlineUser {
	r.mu.RLock()
	out := make([]domain.OnlineUser, 0, len(r.users))
	for name, e := range r.users {
		out = append(out, domain.OnlineUser{ID: e.id, Username: name})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// SendTo delivers line to username if online.
func (r *Registry) SendTo(username, line string) bool {
	conn, ok := r.Lookup(username)
	if !ok {
		return false
	}
	r.send(conn, line)
	return true
}

// SendToID delivers line to the account id if online.
func (r *Registry) SendToID(id int64, line string) bool {
	conn, ok := r.LookupID(id)
	if !ok {
		return false
	}
	r.send(conn, line)
	return true
}

// BroadcastStatus tells every other online user that username went on or off line.
func (r *Registry) BroadcastStatus(id int64, username string, online bool) {
	r.broadcast(protocol.StatusUpdate(id, online), username)
}

// BroadcastToAll sends line to every online connection.
func (r *Registry) BroadcastToAll(line string) {
	r.broadcast(line, "")
}

// BroadcastUserList pushes the current online list to everybody.
func (r *Registry) BroadcastUserList() {
	r.BroadcastToAll(protocol.UserList(r.Snapshot()))
}

// Kick sends notice to username and closes its connection. The session owning
// the connection performs the usual teardown.
func (r *Registry) Kick(username, notice string) bool {
	conn, ok := r.Lookup(username)
	if !ok {
		return false
	}
	if notice != "" {
		r.send(conn, notice)
	}
	if err := conn.Close(); err != nil {
		r.log.Debug("close kicked connection", "user", username, "err", err)
	}
	return true
}

func (r *Registry) broadcast(line, except string) {
	r.mu.RLock()
	targets := make([]transport.Conn, 0, len(r.users))
	for name, e := range r.users {
		if name != except {
			targets = append(targets, e.conn)
		}
	}
	r.mu.RUnlock()

	for _, c := range targets {
		r.send(c, line)
	}
}

// send writes line to conn. A failed write closes the connection so its
// session tears down.
func (r *Registry) send(conn transport.Conn, line string) {
	if err := conn.Send([]byte(line)); err != nil {
		r.log.Debug("send failed", "conn", conn.ID(), "err", err)
		conn.Close()
	}
}
