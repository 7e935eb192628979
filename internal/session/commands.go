package session

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"chatd/internal/domain"
	"chatd/internal/protocol"
)

const clientHelp = `--- General Commands ---
 /who                  - List online users
 /friend_add <ID/Name> - Send a friend request
 /g_join <ID/Name>     - Ask to join a group
 /g_create <Name>      - Create a group
 /delete <UUID>        - Delete a message from your view

--- Group Admin ---
 /g_kick <GID> <User>  - Kick a group member

--- Server Admin Only ---
 /op <Name>            - Grant server admin
 /deop <Name>          - Revoke server admin
 /kick <Name>          - Disconnect a user
 /all <Message>        - Broadcast to everyone
`

const permissionDenied = "[Permission Denied] Admin only."

func (s *session) slash(ctx context.Context, cmd protocol.Command) {
	switch c := cmd.(type) {
	case protocol.DeleteMessage:
		s.deleteMessage(ctx, c.UUID)
	case protocol.FriendAdd:
		s.friendAdd(ctx, c.Target)
	case protocol.GroupJoin:
		s.groupJoin(ctx, c.Target)
	case protocol.GroupCreate:
		s.groupCreate(ctx, c.Name)
	case protocol.GroupKick:
		s.kickMember(ctx, c.GroupID, c.Username, true)

	case protocol.Op:
		s.op(ctx, c.Username)
	case protocol.Deop:
		s.deop(ctx, c.Username)
	case protocol.Kick:
		s.kick(ctx, c.Username)
	case protocol.Broadcast:
		if !s.isAdmin() {
			s.notice(permissionDenied)
			return
		}
		if c.Text != "" {
			s.m.presence.BroadcastToAll(protocol.Notice("[Server Broadcast]: " + c.Text))
			s.m.svc.Audit.Record(ctx, s.acc.Username, "broadcast", c.Text)
		}

	case protocol.Who:
		s.reply(s.m.whoLines("--- Online Users ---"))
	case protocol.Help:
		s.reply(clientHelp)

	default:
		s.notice("[Error] Unknown command. Type /help for list.")
	}
}

func (s *session) isAdmin() bool {
	return s.m.perms.IsAdmin(s.acc.Username)
}

// deleteMessage hides one record of the current conversation from the
// caller and replays what remains.
func (s *session) deleteMessage(ctx context.Context, uuid string) {
	if uuid == "" {
		s.notice("Usage: /delete <UUID>")
		return
	}

	var (
		key    domain.ConversationKey
		target int64
		kind   protocol.ChatKind
	)
	if gid, ok := s.m.focus.group(s.conn.ID()); ok {
		k, err := s.m.svc.Chat.GroupKey(gid, s.acc.Username)
		if err != nil {
			s.notice("[Error] You are not a member of this group.")
			return
		}
		key, target, kind = k, gid, protocol.KindGroup
	} else if fid, ok := s.m.focus.friend(s.conn.ID()); ok {
		key, target, kind = domain.DirectConversation(s.acc.ID, fid), fid, protocol.KindDirect
	} else {
		s.notice("[Error] Open a conversation first.")
		return
	}

	recs, err := s.m.svc.Chat.Delete(ctx, key, s.acc, uuid)
	if errors.Is(err, domain.ErrNotFound) {
		s.notice("[Error] Message not found.")
		return
	}
	if err != nil {
		s.log.Error("delete message", "key", key.String(), "err", err)
		s.notice("[Error] Delete failed.")
		return
	}

	s.reply(protocol.ClearChat())
	s.m.replay(s.conn, target, kind, recs)
}

func (s *session) friendAdd(ctx context.Context, arg string) {
	if arg == "" {
		s.notice("Usage: /friend_add <ID or Name>")
		return
	}
	target, err := s.m.svc.Requests.FriendAdd(ctx, s.acc, arg)
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		s.notice("[Error] You cannot add yourself.")
		return
	case errors.Is(err, domain.ErrNotFound):
		s.notice("[Error] User [" + arg + "] not found in server database.")
		return
	case errors.Is(err, domain.ErrConflict):
		s.notice("[Error] You are already friends with " + target.Username + ".")
		return
	case err != nil:
		s.log.Error("queue friend request", "target", arg, "err", err)
		return
	}

	s.notice("[System] Friend request sent to " + arg)
	if conn, ok := s.m.presence.Lookup(target.Username); ok {
		s.m.send(conn, protocol.FriendAdded(s.acc.ID, s.acc.Username))
		s.m.send(conn, protocol.Notice("[System] "+s.acc.Username+" added you as friend."))
	}
}

func (s *session) groupJoin(ctx context.Context, arg string) {
	if arg == "" {
		s.notice("Usage: /g_join <GroupID or GroupName>")
		return
	}
	g, err := s.m.svc.Requests.GroupJoin(ctx, s.acc, arg)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.notice("[Error] Group not found: " + arg)
	case errors.Is(err, domain.ErrConflict):
		s.notice("[Error] You are already a member of this group.")
	case err != nil:
		s.log.Error("queue join request", "group", arg, "err", err)
	default:
		s.notice("[System] Join request sent to Group " + g.Name + "(ID:" + itoa(g.ID) + ")")
	}
}

func (s *session) groupCreate(ctx context.Context, name string) {
	if name == "" {
		s.notice("Usage: /g_create <GroupName>")
		return
	}
	gid, err := s.m.svc.Groups.Create(ctx, s.acc.Username, name)
	switch {
	case errors.Is(err, domain.ErrConflict):
		s.notice("[Error] Group name '" + name + "' already exists.")
	case errors.Is(err, domain.ErrInvalidInput):
		s.notice("[Error] Invalid group name.")
	case err != nil:
		s.log.Error("create group", "name", name, "err", err)
	default:
		s.notice("[Group] Created [" + name + "] successfully! GroupID: " + itoa(gid))
		s.m.pushGroups(s.conn, s.acc.Username)
	}
}

func (s *session) op(ctx context.Context, target string) {
	if !s.isAdmin() {
		s.notice("[Permission Denied] Only Admin can use /op.")
		return
	}
	if target == "" {
		s.notice("Usage: /op <Username>")
		return
	}
	s.m.perms.Grant(target)
	s.m.svc.Audit.Record(ctx, s.acc.Username, "admin.grant", target)
	s.notice("[System] You granted Admin to [" + target + "].")
	s.m.presence.SendTo(target, protocol.GrantAdmin()+protocol.Notice("[System] You have been promoted to Server Admin!"))
}

func (s *session) deop(ctx context.Context, target string) {
	if !s.isAdmin() {
		s.notice(permissionDenied)
		return
	}
	if target == "" {
		s.notice("Usage: /deop <Username>")
		return
	}
	s.m.perms.Revoke(target)
	s.m.svc.Audit.Record(ctx, s.acc.Username, "admin.revoke", target)
	s.notice("[System] You revoked Admin from [" + target + "].")
	s.m.presence.SendTo(target, protocol.RevokeAdmin()+protocol.Notice("[System] Your Admin permissions have been revoked."))
}

func (s *session) kick(ctx context.Context, target string) {
	if !s.isAdmin() {
		s.notice(permissionDenied)
		return
	}
	if target == "" {
		s.notice("Usage: /kick <Username>")
		return
	}
	if !s.m.presence.Kick(target, protocol.Notice("You have been kicked by Admin.")) {
		s.notice("[System] User not found.")
		return
	}
	s.m.svc.Audit.Record(ctx, s.acc.Username, "kick", target)
	s.notice("[System] User " + target + " kicked.")
}

// whoLines renders the online list under header, one " * name [ROLE]" line
// per user.
func (m *Manager) whoLines(header string) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	for _, u := range m.Online() {
		b.WriteString(" * " + u.Username + " [" + string(u.Role) + "]\n")
	}
	return b.String()
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
