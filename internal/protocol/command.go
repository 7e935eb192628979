package protocol

import "chatd/internal/domain"

// ChatKind is the conversation type carried by SEND and MSG lines.
type ChatKind int

const (
	KindDirect ChatKind = 0
	KindGroup  ChatKind = 1
)

// Command is a decoded client line.
type Command interface {
	commandName() string
}

type Login struct {
	Username string
	Password string
}

type Send struct {
	Kind     ChatKind
	TargetID int64
	Content  string
}

type EnterFriend struct{ FriendID int64 }

type LeaveFriend struct{}

type EnterGroup struct{ GroupID int64 }

type LeaveGroup struct{}

type EnterRequestList struct{}

type LeaveRequestList struct{}

type DecideRequest struct {
	Type     domain.RequestType
	FromID   int64
	TargetID int64
	Accept   bool
}

type KickMember struct {
	GroupID  int64
	TargetID int64
}

type SetRole struct {
	GroupID  int64
	TargetID int64
	Role     domain.Role
}

type RequestFriendList struct{}

type RequestGroupList struct{}

type RequestGroupMembers struct{ GroupID int64 }

// DeleteMessage hides one record of the current focus for the caller.
type DeleteMessage struct{ UUID string }

// FriendAdd targets an account by id or username.
type FriendAdd struct{ Target string }

// GroupJoin targets a group by id or name.
type GroupJoin struct{ Target string }

type GroupCreate struct{ Name string }

type GroupKick struct {
	GroupID  int64
	Username string
}

type Op struct{ Username string }

type Deop struct{ Username string }

type Kick struct{ Username string }

type Broadcast struct{ Text string }

type Who struct{}

type Help struct{}

// UnknownSlash is a slash command with an unrecognised name.
type UnknownSlash struct{ Name string }

// Raw is any line that is not a recognised command. It is broadcast verbatim.
type Raw struct{ Line string }

func (Login) commandName() string               { return "LOGIN" }
func (Send) commandName() string                { return "SEND" }
func (EnterFriend) commandName() string         { return "ENTER_FRIEND" }
func (LeaveFriend) commandName() string         { return "LEAVE_FRIEND" }
func (EnterGroup) commandName() string          { return "ENTER_GROUP" }
func (LeaveGroup) commandName() string          { return "LEAVE_GROUP" }
func (EnterRequestList) commandName() string    { return "ENTER_REQUEST_LIST" }
func (LeaveRequestList) commandName() string    { return "LEAVE_REQUEST_LIST" }
func (DecideRequest) commandName() string       { return "DECISION_REQUEST" }
func (KickMember) commandName() string          { return "KICK_MEMBER" }
func (SetRole) commandName() string             { return "SET_ROLE" }
func (RequestFriendList) commandName() string   { return "REQ_FRIEND_LIST" }
func (RequestGroupList) commandName() string    { return "REQ_GROUP_LIST" }
func (RequestGroupMembers) commandName() string { return "REQ_GROUP_MEMBERS" }
func (DeleteMessage) commandName() string       { return "/delete" }
func (FriendAdd) commandName() string           { return "/friend_add" }
func (GroupJoin) commandName() string           { return "/g_join" }
func (GroupCreate) commandName() string         { return "/g_create" }
func (GroupKick) commandName() string           { return "/g_kick" }
func (Op) commandName() string                  { return "/op" }
func (Deop) commandName() string                { return "/deop" }
func (Kick) commandName() string                { return "/kick" }
func (Broadcast) commandName() string           { return "/all" }
func (Who) commandName() string                 { return "/who" }
func (Help) commandName() string                { return "/help" }
func (UnknownSlash) commandName() string        { return "/?" }
func (Raw) commandName() string                 { return "RAW" }

// Name returns the wire name of a command, used for logging.
func Name(c Command) string {
	if c == nil {
		return ""
	}
	return c.commandName()
}
