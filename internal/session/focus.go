package session

import (
	"sync"

	"chatd/internal/domain"
	"chatd/internal/transport"
)

type focused struct {
	conn   transport.Conn
	target int64
}

type viewer struct {
	conn transport.Conn
	acc  domain.Account
}

// focusTable holds what each connection is looking at, keyed by connection
// id. The group map, the friend map and the request viewers each have their
// own lock and no two are ever held together.
type focusTable struct {
	groupMu sync.Mutex
	groups  map[uint64]focused

	friendMu sync.Mutex
	friends  map[uint64]focused

	viewMu  sync.Mutex
	viewers map[uint64]viewer
}

func newFocusTable() *focusTable {
	return &focusTable{
		groups:  make(map[uint64]focused),
		friends: make(map[uint64]focused),
		viewers: make(map[uint64]viewer),
	}
}

func (f *focusTable) enterGroup(conn transport.Conn, gid int64) {
	f.groupMu.Lock()
	f.groups[conn.ID()] = focused{conn: conn, target: gid}
	f.groupMu.Unlock()

	f.leaveFriend(conn.ID())
	f.leaveRequests(conn.ID())
}

func (f *focusTable) enterFriend(conn transport.Conn, fid int64) {
	f.friendMu.Lock()
	f.friends[conn.ID()] = focused{conn: conn, target: fid}
	f.friendMu.Unlock()

	f.leaveGroup(conn.ID())
	f.leaveRequests(conn.ID())
}

func (f *focusTable) enterRequests(conn transport.Conn, acc domain.Account) {
	f.viewMu.Lock()
	f.viewers[conn.ID()] = viewer{conn: conn, acc: acc}
	f.viewMu.Unlock()

	f.leaveGroup(conn.ID())
	f.leaveFriend(conn.ID())
}

func (f *focusTable) leaveGroup(id uint64) {
	f.groupMu.Lock()
	delete(f.groups, id)
	f.groupMu.Unlock()
}

// leaveGroupIf clears the group focus only when it is on gid.
func (f *focusTable) leaveGroupIf(id uint64, gid int64) {
	f.groupMu.Lock()
	if e, ok := f.groups[id]; ok && e.target == gid {
		delete(f.groups, id)
	}
	f.groupMu.Unlock()
}

func (f *focusTable) leaveFriend(id uint64) {
	f.friendMu.Lock()
	delete(f.friends, id)
	f.friendMu.Unlock()
}

func (f *focusTable) leaveRequests(id uint64) {
	f.viewMu.Lock()
	delete(f.viewers, id)
	f.viewMu.Unlock()
}

func (f *focusTable) clear(id uint64) {
	f.leaveGroup(id)
	f.leaveFriend(id)
	f.leaveRequests(id)
}

func (f *focusTable) group(id uint64) (int64, bool) {
	f.groupMu.Lock()
	defer f.groupMu.Unlock()
	e, ok := f.groups[id]
	return e.target, ok
}

func (f *focusTable) friend(id uint64) (int64, bool) {
	f.friendMu.Lock()
	defer f.friendMu.Unlock()
	e, ok := f.friends[id]
	return e.target, ok
}

// viewingGroup returns the connections currently focused on gid.
func (f *focusTable) viewingGroup(gid int64) []transport.Conn {
	f.groupMu.Lock()
	defer f.groupMu.Unlock()
	var out []transport.Conn
	for _, e := range f.groups {
		if e.target == gid {
			out = append(out, e.conn)
		}
	}
	return out
}

func (f *focusTable) requestViewers() []viewer {
	f.viewMu.Lock()
	defer f.viewMu.Unlock()
	out := make([]viewer, 0, len(f.viewers))
	for _, v := range f.viewers {
		out = append(out, v)
	}
	return out
}
