package domain

import (
	"context"
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	FindByUsername(username string) (Account, bool)
	FindByID(id int64) (Account, bool)
	NextID() int64
	Create(ctx context.Context, a Account) error
	All() []Account
	Save(ctx context.Context) error
}

// PermissionChecker answers group role questions.
type PermissionChecker interface {
	CheckPermission(groupID int64, username string, min Role) bool
}

// GroupRepository defines group, membership and role operations.
type GroupRepository interface {
	PermissionChecker
	CreateGroup(name, owner string) (int64, error)
	JoinGroup(groupID int64, username string) error
	LeaveGroup(groupID int64, username string) error
	SetRole(groupID int64, username string, role Role) error
	Role(groupID int64, username string) Role
	IsMember(groupID int64, username string) bool
	Members(groupID int64) []string
	Name(groupID int64) (string, bool)
	IDByName(name string) (int64, bool)
	ListAll() []GroupRef
	ListForUser(username string) []GroupRef
	Save(ctx context.Context) error
}

// MessageArchive defines the per-conversation history operations.
type MessageArchive interface {
	Append(ctx context.Context, key ConversationKey, rec ChatRecord) (ChatRecord, error)
	Query(ctx context.Context, key ConversationKey, requesterID int64) ([]ChatRecord, error)
	MarkDeleted(ctx context.Context, key ConversationKey, uuid string, requesterID int64) error
	DirectPeers(ctx context.Context, userID int64) ([]int64, error)
	Exists(key ConversationKey) bool
}

// RequestRepository defines operations on pending requests.
type RequestRepository interface {
	Enqueue(ctx context.Context, r Request) error
	ListFor(ctx context.Context, userID int64, username string) ([]Request, error)
	// Remove returns ErrNotFound when no pending request matched.
	Remove(ctx context.Context, typ RequestType, fromID, targetID int64) error
}

// AuditRepository persists server events.
type AuditRepository interface {
	Record(ctx context.Context, ev AuditEvent) error
	Recent(ctx context.Context, limit int) ([]AuditEvent, error)
}
