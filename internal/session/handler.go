package session

import (
	"context"
	"errors"

	"chatd/internal/domain"
	"chatd/internal/protocol"
	"chatd/internal/service"
)

func (s *session) dispatch(ctx context.Context, cmd protocol.Command) {
	switch c := cmd.(type) {
	case protocol.Send:
		if c.Kind == protocol.KindGroup {
			s.sendGroup(ctx, c)
		} else {
			s.sendDirect(ctx, c)
		}

	case protocol.EnterFriend:
		s.enterFriend(ctx, c.FriendID)
	case protocol.LeaveFriend:
		s.m.focus.leaveFriend(s.conn.ID())
	case protocol.EnterGroup:
		s.enterGroup(ctx, c.GroupID)
	case protocol.LeaveGroup:
		s.m.focus.leaveGroup(s.conn.ID())
	case protocol.EnterRequestList:
		s.m.focus.enterRequests(s.conn, s.acc)
		s.m.pushRequests(ctx, s.conn, s.acc)
	case protocol.LeaveRequestList:
		s.m.focus.leaveRequests(s.conn.ID())
	case protocol.DecideRequest:
		s.decide(ctx, c)

	case protocol.KickMember:
		if target, ok := s.m.svc.Accounts.FindByID(c.TargetID); ok {
			s.kickMember(ctx, c.GroupID, target.Username, false)
		}
	case protocol.SetRole:
		s.setRole(ctx, c)

	case protocol.RequestFriendList:
		s.m.pushFriends(ctx, s.conn, s.acc)
	case protocol.RequestGroupList:
		s.m.pushGroups(s.conn, s.acc.Username)
	case protocol.RequestGroupMembers:
		s.reply(protocol.GroupMembers(s.m.svc.Chat.GroupMembers(c.GroupID)))

	case protocol.Raw:
		s.m.presence.BroadcastToAll(protocol.Notice("[" + s.acc.Username + "]: " + c.Line))

	default:
		s.slash(ctx, cmd)
	}
}

func (s *session) sendGroup(ctx context.Context, c protocol.Send) {
	rec, err := s.m.svc.Chat.SendGroup(ctx, s.acc, c.TargetID, c.Content)
	if errors.Is(err, domain.ErrForbidden) {
		s.notice("[System] Failed to send: You are not a member of this group.")
		return
	}
	if err != nil {
		s.log.Error("archive group message", "group", c.TargetID, "err", err)
		return
	}

	line := protocol.EncodeMessage(protocol.MessageFromRecord(c.TargetID, protocol.KindGroup, rec))
	for _, conn := range s.m.focus.viewingGroup(c.TargetID) {
		s.m.send(conn, line)
	}
}

func (s *session) sendDirect(ctx context.Context, c protocol.Send) {
	rec, err := s.m.svc.Chat.SendDirect(ctx, s.acc, c.TargetID, c.Content)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.notice("[Error] User not found.")
		return
	case errors.Is(err, domain.ErrInvalidInput):
		s.notice("[Error] You cannot message yourself.")
		return
	case err != nil:
		s.log.Error("archive direct message", "target", c.TargetID, "err", err)
		return
	}

	s.m.presence.SendToID(c.TargetID, protocol.EncodeMessage(protocol.MessageFromRecord(s.acc.ID, protocol.KindDirect, rec)))
	s.reply(protocol.EncodeMessage(protocol.MessageFromRecord(c.TargetID, protocol.KindDirect, rec)))
}

func (s *session) enterFriend(ctx context.Context, fid int64) {
	s.m.focus.enterFriend(s.conn, fid)

	recs, err := s.m.svc.Chat.History(ctx, domain.DirectConversation(s.acc.ID, fid), s.acc.ID)
	if err != nil {
		s.log.Warn("load direct history", "friend", fid, "err", err)
		return
	}
	s.m.replay(s.conn, fid, protocol.KindDirect, recs)
}

func (s *session) enterGroup(ctx context.Context, gid int64) {
	key, err := s.m.svc.Chat.GroupKey(gid, s.acc.Username)
	switch {
	case errors.Is(err, domain.ErrForbidden):
		s.notice("[Error] You are not a member of this group.")
		return
	case err != nil:
		s.notice("[Error] Group not found.")
		return
	}
	s.m.focus.enterGroup(s.conn, gid)

	recs, err := s.m.svc.Chat.History(ctx, key, s.acc.ID)
	if err != nil {
		s.log.Warn("load group history", "group", gid, "err", err)
	}
	s.m.replay(s.conn, gid, protocol.KindGroup, recs)
	s.reply(protocol.GroupMembers(s.m.svc.Chat.GroupMembers(gid)))
}

func (s *session) decide(ctx context.Context, c protocol.DecideRequest) {
	out, err := s.m.svc.Requests.Decide(ctx, s.acc, service.Decision{
		Type:     c.Type,
		FromID:   c.FromID,
		TargetID: c.TargetID,
		Accept:   c.Accept,
	})
	switch {
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrNotFound):
		s.log.Debug("decision refused", "type", c.Type, "target", c.TargetID, "err", err)
	case errors.Is(err, domain.ErrGroupFull):
		s.notice("[Error] Group is full.")
	case err != nil:
		s.log.Warn("apply decision", "type", c.Type, "err", err)
	case out.Accepted:
		s.applied(ctx, c.Type, out)
	}

	s.m.pushRequests(ctx, s.conn, s.acc)
	for _, v := range s.m.focus.requestViewers() {
		if v.conn.ID() != s.conn.ID() {
			s.m.pushRequests(ctx, v.conn, v.acc)
		}
	}
}

// applied notifies the parties of an accepted request.
func (s *session) applied(ctx context.Context, typ domain.RequestType, out service.Outcome) {
	peer := out.Requester
	switch typ {
	case domain.RequestFriend:
		peerConn, peerOnline := s.m.presence.Lookup(peer.Username)
		s.m.pushFriends(ctx, s.conn, s.acc)
		s.reply(protocol.StatusUpdate(peer.ID, peerOnline))
		if peerOnline {
			s.m.pushFriends(ctx, peerConn, peer)
			s.m.send(peerConn, protocol.StatusUpdate(s.acc.ID, true))
		}
	case domain.RequestGroup:
		if conn, ok := s.m.presence.Lookup(peer.Username); ok {
			s.m.pushGroups(conn, peer.Username)
		}
		s.m.refreshMembers(out.GroupID)
	}
}

// kickMember removes target from gid. Replies are only sent for the slash
// form; the CMD form fails silently.
func (s *session) kickMember(ctx context.Context, gid int64, target string, verbose bool) {
	err := s.m.svc.Groups.Kick(ctx, s.acc.Username, gid, target)
	if err != nil {
		if !verbose {
			s.log.Debug("kick refused", "group", gid, "target", target, "err", err)
			return
		}
		if errors.Is(err, domain.ErrForbidden) {
			s.notice("[Permission Denied] Admin only.")
		} else {
			s.notice("[Error] Target user is not in this group.")
		}
		return
	}

	if conn, ok := s.m.presence.Lookup(target); ok {
		s.m.send(conn, protocol.KickedFromGroup(gid))
		s.m.pushGroups(conn, target)
		s.m.send(conn, protocol.Notice("[System] You have been kicked from Group "+itoa(gid)))
		s.m.focus.leaveGroupIf(conn.ID(), gid)
	}
	s.m.refreshMembers(gid)
	if verbose {
		s.notice("[Group] Kicked " + target + ".")
	}
}

func (s *session) setRole(ctx context.Context, c protocol.SetRole) {
	target, ok := s.m.svc.Accounts.FindByID(c.TargetID)
	if !ok {
		return
	}
	if err := s.m.svc.Groups.SetRole(ctx, s.acc.Username, c.GroupID, target.Username, c.Role); err != nil {
		s.log.Debug("set role refused", "group", c.GroupID, "target", target.Username, "err", err)
		return
	}
	s.m.refreshMembers(c.GroupID)
}
