package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chatd/internal/domain"
)

// Presence answers whether a user currently has a live connection.
type Presence interface {
	IsOnline(username string) bool
}

const timeLayout = "15:04:05"

// ChatService stores and reads conversation history.
type ChatService struct {
	accounts     domain.AccountRepository
	groups       domain.GroupRepository
	archive      domain.MessageArchive
	presence     Presence
	audit        *AuditService
	log          *slog.Logger
	historyLimit int
	now          func() time.Time
}

func NewChatService(
	accounts domain.AccountRepository,
	groups domain.GroupRepository,
	archive domain.MessageArchive,
	presence Presence,
	audit *AuditService,
	log *slog.Logger,
	historyLimit int,
) *ChatService {
	if log == nil {
		log = slog.Default()
	}
	return &ChatService{
		accounts:     accounts,
		groups:       groups,
		archive:      archive,
		presence:     presence,
		audit:        audit,
		log:          log.With("component", "chat"),
		historyLimit: historyLimit,
		now:          time.Now,
	}
}

// SendGroup archives a group message. Non-members get ErrForbidden and
// nothing is written.
func (s *ChatService) SendGroup(ctx context.Context, sender domain.Account, groupID int64, content string) (domain.ChatRecord, error) {
	name, ok := s.groups.Name(groupID)
	if !ok || !s.groups.IsMember(groupID, sender.Username) {
		return domain.ChatRecord{}, fmt.Errorf("send to group %d: %w", groupID, domain.ErrForbidden)
	}
	return s.archive.Append(ctx, domain.GroupConversation(name), s.record(sender.ID, sender.Username, content))
}

// SendDirect archives a direct message in the pair's shared log.
func (s *ChatService) SendDirect(ctx context.Context, sender domain.Account, targetID int64, content string) (domain.ChatRecord, error) {
	if targetID == sender.ID {
		return domain.ChatRecord{}, fmt.Errorf("send to self: %w", domain.ErrInvalidInput)
	}
	if _, ok := s.accounts.FindByID(targetID); !ok {
		return domain.ChatRecord{}, fmt.Errorf("send to %d: %w", targetID, domain.ErrNotFound)
	}
	return s.archive.Append(ctx, domain.DirectConversation(sender.ID, targetID), s.record(sender.ID, sender.Username, content))
}

// RecordFriendship writes the system record that makes two accounts friends.
func (s *ChatService) RecordFriendship(ctx context.Context, a, b int64) error {
	_, err := s.archive.Append(ctx, domain.DirectConversation(a, b), s.record(0, domain.SystemName, "Friend Added"))
	if err != nil {
		return fmt.Errorf("record friendship: %w", err)
	}
	return nil
}

func (s *ChatService) record(senderID int64, senderName, content string) domain.ChatRecord {
	return domain.ChatRecord{
		Timestamp:  s.now().Format(timeLayout),
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
	}
}

// GroupKey resolves the archive key of a group the requester belongs to.
func (s *ChatService) GroupKey(groupID int64, username string) (domain.ConversationKey, error) {
	name, ok := s.groups.Name(groupID)
	if !ok {
		return domain.ConversationKey{}, fmt.Errorf("group %d: %w", groupID, domain.ErrNotFound)
	}
	if !s.groups.IsMember(groupID, username) {
		return domain.ConversationKey{}, fmt.Errorf("group %d: %w", groupID, domain.ErrForbidden)
	}
	return domain.GroupConversation(name), nil
}

// History returns the tail of a conversation as seen by requesterID.
func (s *ChatService) History(ctx context.Context, key domain.ConversationKey, requesterID int64) ([]domain.ChatRecord, error) {
	recs, err := s.archive.Query(ctx, key, requesterID)
	if err != nil {
		return nil, err
	}
	if s.historyLimit > 0 && len(recs) > s.historyLimit {
		recs = recs[len(recs)-s.historyLimit:]
	}
	return recs, nil
}

// Delete hides one record from the requester and returns what remains visible.
func (s *ChatService) Delete(ctx context.Context, key domain.ConversationKey, requester domain.Account, id string) ([]domain.ChatRecord, error) {
	if err := s.archive.MarkDeleted(ctx, key, id, requester.ID); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, requester.Username, "message.delete", key.String()+" "+id)
	return s.History(ctx, key, requester.ID)
}

// Friends lists the accounts userID shares a direct archive with.
func (s *ChatService) Friends(ctx context.Context, userID int64) ([]domain.Friend, error) {
	peers, err := s.archive.DirectPeers(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Friend, 0, len(peers))
	for _, id := range peers {
		acc, ok := s.accounts.FindByID(id)
		if !ok {
			s.log.Debug("direct archive without account", "user", userID, "peer", id)
			continue
		}
		out = append(out, domain.Friend{ID: acc.ID, Username: acc.Username, Online: s.presence.IsOnline(acc.Username)})
	}
	return out, nil
}

// IsFriend reports whether a and b share a direct archive.
func (s *ChatService) IsFriend(a, b int64) bool {
	return s.archive.Exists(domain.DirectConversation(a, b))
}

// GroupMembers lists a group's members with status and role. Members
// without an account, such as the console owner, are left out.
func (s *ChatService) GroupMembers(groupID int64) []domain.GroupMember {
	names := s.groups.Members(groupID)
	out := make([]domain.GroupMember, 0, len(names))
	for _, name := range names {
		acc, ok := s.accounts.FindByUsername(name)
		if !ok {
			continue
		}
		out = append(out, domain.GroupMember{
			ID:       acc.ID,
			Username: name,
			Online:   s.presence.IsOnline(name),
			Role:     s.groups.Role(groupID, name),
		})
	}
	return out
}

func (s *ChatService) GroupsFor(username string) []domain.GroupRef {
	return s.groups.ListForUser(username)
}
