package domain

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// Account represents a registered chat user.
type Account struct {
	ID       int64
	Username string
	Password string // opaque credential (bcrypt hash, or legacy plaintext)
	Address  string // address the account was registered from
}

// Role is a per-group permission level.
type Role int

const (
	RoleNone   Role = 0
	RoleMember Role = 1
	RoleAdmin  Role = 2
	RoleOwner  Role = 3
)

func (r Role) Valid() bool {
	return r >= RoleMember && r <= RoleOwner
}

func (r Role) String() string {
	switch r {
	case RoleMember:
		return "Member"
	case RoleAdmin:
		return "Admin"
	case RoleOwner:
		return "Owner"
	default:
		return "None"
	}
}

// GlobalRole is the server-wide permission tag, independent of group roles.
type GlobalRole string

const (
	GlobalAdmin GlobalRole = "ADMIN"
	GlobalUser  GlobalRole = "USER"
)

// GroupRef is the id/name pair used in group listings.
type GroupRef struct {
	ID   int64
	Name string
}

// ChatRecord is one archived chat line.
type ChatRecord struct {
	Timestamp  string
	SenderID   int64
	SenderName string
	Content    string
	UUID       string
	Tombstones string // "d<id>," tokens of requesters who hid the record
}

// RequestType distinguishes pending friend and group-join requests.
type RequestType string

const (
	RequestFriend RequestType = "FRIEND"
	RequestGroup  RequestType = "GROUP"
)

func (t RequestType) Valid() bool {
	return t == RequestFriend || t == RequestGroup
}

// Request is a pending friend or group-join request.
type Request struct {
	Type     RequestType
	FromID   int64
	FromName string
	TargetID int64 // account id for FRIEND, group id for GROUP
}

// Online user entry as seen by clients.
type OnlineUser struct {
	ID       int64
	Username string
}

// Friend is a derived friendship with the peer's current status.
type Friend struct {
	ID       int64
	Username string
	Online   bool
}

// GroupMember is a member listing entry.
type GroupMember struct {
	ID       int64
	Username string
	Online   bool
	Role     Role
}

type conversationKind int

const (
	conversationGroup conversationKind = iota + 1
	conversationDirect
)

// ConversationKey addresses one archive: a group by name, or an unordered
// pair of account ids.
type ConversationKey struct {
	kind  conversationKind
	group string
	low   int64
	high  int64
}

// GroupConversation returns the archive key of a group.
func GroupConversation(groupName string) ConversationKey {
	return ConversationKey{kind: conversationGroup, group: groupName}
}

// DirectConversation returns the canonical archive key of a friend pair.
func DirectConversation(id1, id2 int64) ConversationKey {
	if id1 > id2 {
		id1, id2 = id2, id1
	}
	return ConversationKey{kind: conversationDirect, low: id1, high: id2}
}

func (k ConversationKey) IsGroup() bool  { return k.kind == conversationGroup }
func (k ConversationKey) IsDirect() bool { return k.kind == conversationDirect }
func (k ConversationKey) IsZero() bool   { return k.kind == 0 }

// Pair returns the canonical (min, max) ids of a direct conversation.
func (k ConversationKey) Pair() (int64, int64) {
	return k.low, k.high
}

// RelPath is the archive file path relative to the data directory.
func (k ConversationKey) RelPath(groupDir, friendDir string) string {
	switch k.kind {
	case conversationGroup:
		return filepath.Join(groupDir, k.group+".txt")
	case conversationDirect:
		return filepath.Join(friendDir, strconv.FormatInt(k.low, 10)+"_"+strconv.FormatInt(k.high, 10)+".txt")
	default:
		return ""
	}
}

func (k ConversationKey) String() string {
	switch k.kind {
	case conversationGroup:
		return "group:" + k.group
	case conversationDirect:
		return fmt.Sprintf("direct:%d_%d", k.low, k.high)
	default:
		return "none"
	}
}

// AuditEvent is a server event recorded in the audit log.
type AuditEvent struct {
	ID     int64  `json:"id"`
	At     string `json:"at"`
	Actor  string `json:"actor"`
	Action string `json:"action"`
	Detail string `json:"detail"`
}
