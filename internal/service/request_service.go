package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"chatd/internal/domain"
)

// RequestService queues friend and group-join requests and applies decisions.
type RequestService struct {
	requests domain.RequestRepository
	accounts domain.AccountRepository
	groups   *GroupService
	chat     *ChatService
	audit    *AuditService
	log      *slog.Logger
}

func NewRequestService(
	requests domain.RequestRepository,
	accounts domain.AccountRepository,
	groups *GroupService,
	chat *ChatService,
	audit *AuditService,
	log *slog.Logger,
) *RequestService {
	if log == nil {
		log = slog.Default()
	}
	return &RequestService{
		requests: requests,
		accounts: accounts,
		groups:   groups,
		chat:     chat,
		audit:    audit,
		log:      log.With("component", "requests"),
	}
}

// ResolveAccount finds an account by numeric id first, then by username.
func (s *RequestService) ResolveAccount(idOrName string) (domain.Account, bool) {
	if id, err := strconv.ParseInt(idOrName, 10, 64); err == nil {
		if acc, ok := s.accounts.FindByID(id); ok {
			return acc, true
		}
	}
	return s.accounts.FindByUsername(idOrName)
}

// FriendAdd queues a friend request from sender to the account named by arg.
// Existing friends get ErrConflict along with the resolved account.
func (s *RequestService) FriendAdd(ctx context.Context, from domain.Account, arg string) (domain.Account, error) {
	target, ok := s.ResolveAccount(arg)
	if !ok {
		return domain.Account{}, fmt.Errorf("user %s: %w", arg, domain.ErrNotFound)
	}
	if target.ID == from.ID {
		return domain.Account{}, fmt.Errorf("befriend self: %w", domain.ErrInvalidInput)
	}
	if s.chat.IsFriend(from.ID, target.ID) {
		return target, fmt.Errorf("befriend %s: %w", target.Username, domain.ErrConflict)
	}
	err := s.requests.Enqueue(ctx, domain.Request{
		Type:     domain.RequestFriend,
		FromID:   from.ID,
		FromName: from.Username,
		TargetID: target.ID,
	})
	if err != nil {
		return domain.Account{}, err
	}
	s.audit.Record(ctx, from.Username, "request.friend", target.Username)
	return target, nil
}

// GroupJoin queues a join request for the group named by arg.
func (s *RequestService) GroupJoin(ctx context.Context, from domain.Account, arg string) (domain.GroupRef, error) {
	g, ok := s.groups.Resolve(arg)
	if !ok {
		return domain.GroupRef{}, fmt.Errorf("group %s: %w", arg, domain.ErrNotFound)
	}
	if s.groups.IsMember(g.ID, from.Username) {
		return g, fmt.Errorf("already in group %d: %w", g.ID, domain.ErrConflict)
	}
	err := s.requests.Enqueue(ctx, domain.Request{
		Type:     domain.RequestGroup,
		FromID:   from.ID,
		FromName: from.Username,
		TargetID: g.ID,
	})
	if err != nil {
		return domain.GroupRef{}, err
	}
	s.audit.Record(ctx, from.Username, "request.group", g.Name)
	return g, nil
}

func (s *RequestService) List(ctx context.Context, user domain.Account) ([]domain.Request, error) {
	return s.requests.ListFor(ctx, user.ID, user.Username)
}

type Decision struct {
	Type     domain.RequestType
	FromID   int64
	TargetID int64
	Accept   bool
}

// Outcome tells the caller whom to notify after an accepted decision.
type Outcome struct {
	Accepted bool
	// Requester is the account that sent the request.
	Requester domain.Account
	// GroupID is set for accepted group requests.
	GroupID int64
}

// Decide removes a pending request and applies it when accepted. Only the
// addressee of a friend request, or an admin of the requested group, may
// decide. A decision with no matching request returns ErrNotFound and
// changes nothing.
func (s *RequestService) Decide(ctx context.Context, caller domain.Account, d Decision) (Outcome, error) {
	switch d.Type {
	case domain.RequestFriend:
		if d.TargetID != caller.ID {
			return Outcome{}, fmt.Errorf("decide friend request for %d: %w", d.TargetID, domain.ErrForbidden)
		}
	case domain.RequestGroup:
		if !s.groups.CheckPermission(d.TargetID, caller.Username, domain.RoleAdmin) {
			return Outcome{}, fmt.Errorf("decide join for group %d: %w", d.TargetID, domain.ErrForbidden)
		}
	default:
		return Outcome{}, fmt.Errorf("request type %q: %w", d.Type, domain.ErrInvalidInput)
	}

	if err := s.requests.Remove(ctx, d.Type, d.FromID, d.TargetID); err != nil {
		return Outcome{}, err
	}
	verdict := "reject"
	if d.Accept {
		verdict = "accept"
	}
	s.audit.Record(ctx, caller.Username, "request."+verdict, fmt.Sprintf("%s from=%d target=%d", d.Type, d.FromID, d.TargetID))
	if !d.Accept {
		return Outcome{}, nil
	}

	requester, ok := s.accounts.FindByID(d.FromID)
	if !ok {
		return Outcome{}, fmt.Errorf("requester %d: %w", d.FromID, domain.ErrNotFound)
	}

	out := Outcome{Accepted: true, Requester: requester}
	switch d.Type {
	case domain.RequestFriend:
		if err := s.chat.RecordFriendship(ctx, caller.ID, requester.ID); err != nil {
			return Outcome{}, err
		}
	case domain.RequestGroup:
		if err := s.groups.Join(ctx, d.TargetID, requester.Username); err != nil {
			return Outcome{}, err
		}
		out.GroupID = d.TargetID
	}
	return out, nil
}
