package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"chatd/internal/domain"
)

// GroupService applies the group rank rules: a caller may only act on
// members ranked strictly below them.
type GroupService struct {
	groups domain.GroupRepository
	audit  *AuditService
	log    *slog.Logger
}

func NewGroupService(groups domain.GroupRepository, audit *AuditService, log *slog.Logger) *GroupService {
	if log == nil {
		log = slog.Default()
	}
	return &GroupService{groups: groups, audit: audit, log: log.With("component", "groups")}
}

// Create makes owner the owner of a new group and persists it.
func (s *GroupService) Create(ctx context.Context, owner, name string) (int64, error) {
	if !domain.ValidGroupName(name) {
		return 0, fmt.Errorf("group name %q: %w", name, domain.ErrInvalidInput)
	}
	gid, err := s.groups.CreateGroup(name, owner)
	if err != nil {
		return 0, err
	}
	if err := s.groups.Save(ctx); err != nil {
		s.log.Error("save groups", "err", err)
	}
	s.audit.Record(ctx, owner, "group.create", fmt.Sprintf("%s id=%d", name, gid))
	return gid, nil
}

// Ensure creates the group unless a group with that name already exists.
func (s *GroupService) Ensure(ctx context.Context, name, owner string) (int64, bool, error) {
	if gid, ok := s.groups.IDByName(name); ok {
		return gid, false, nil
	}
	gid, err := s.Create(ctx, owner, name)
	if errors.Is(err, domain.ErrConflict) {
		gid, _ = s.groups.IDByName(name)
		return gid, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return gid, true, nil
}

// Resolve finds a group by numeric id first, then by name.
func (s *GroupService) Resolve(idOrName string) (domain.GroupRef, bool) {
	if id, err := strconv.ParseInt(idOrName, 10, 64); err == nil {
		if name, ok := s.groups.Name(id); ok {
			return domain.GroupRef{ID: id, Name: name}, true
		}
	}
	if id, ok := s.groups.IDByName(idOrName); ok {
		return domain.GroupRef{ID: id, Name: idOrName}, true
	}
	return domain.GroupRef{}, false
}

// Join adds username to the group and persists the change.
func (s *GroupService) Join(ctx context.Context, groupID int64, username string) error {
	if err := s.groups.JoinGroup(groupID, username); err != nil {
		return err
	}
	if err := s.groups.Save(ctx); err != nil {
		s.log.Error("save groups", "err", err)
	}
	s.audit.Record(ctx, username, "group.join", strconv.FormatInt(groupID, 10))
	return nil
}

// outranks checks that both are members and caller's role is strictly higher.
func (s *GroupService) outranks(groupID int64, caller, target string) (domain.Role, error) {
	if _, ok := s.groups.Name(groupID); !ok {
		return 0, fmt.Errorf("group %d: %w", groupID, domain.ErrNotFound)
	}
	if !s.groups.IsMember(groupID, caller) {
		return 0, fmt.Errorf("%s not in group %d: %w", caller, groupID, domain.ErrForbidden)
	}
	if !s.groups.IsMember(groupID, target) {
		return 0, fmt.Errorf("%s not in group %d: %w", target, groupID, domain.ErrNotFound)
	}
	mine := s.groups.Role(groupID, caller)
	if mine <= s.groups.Role(groupID, target) {
		return 0, fmt.Errorf("%s cannot manage %s: %w", caller, target, domain.ErrForbidden)
	}
	return mine, nil
}

// Kick removes target from the group.
func (s *GroupService) Kick(ctx context.Context, caller string, groupID int64, target string) error {
	if _, err := s.outranks(groupID, caller, target); err != nil {
		return err
	}
	if err := s.groups.LeaveGroup(groupID, target); err != nil {
		return err
	}
	if err := s.groups.Save(ctx); err != nil {
		s.log.Error("save groups", "err", err)
	}
	s.audit.Record(ctx, caller, "group.kick", fmt.Sprintf("%d %s", groupID, target))
	return nil
}

// SetRole changes target's role. Only MEMBER and ADMIN can be assigned, and
// only below the caller's own role.
func (s *GroupService) SetRole(ctx context.Context, caller string, groupID int64, target string, role domain.Role) error {
	if role != domain.RoleMember && role != domain.RoleAdmin {
		return fmt.Errorf("assign role %d: %w", role, domain.ErrInvalidInput)
	}
	mine, err := s.outranks(groupID, caller, target)
	if err != nil {
		return err
	}
	if role >= mine {
		return fmt.Errorf("assign %s above own rank: %w", role, domain.ErrForbidden)
	}
	if err := s.groups.SetRole(groupID, target, role); err != nil {
		return err
	}
	if err := s.groups.Save(ctx); err != nil {
		s.log.Error("save groups", "err", err)
	}
	s.audit.Record(ctx, caller, "group.role", fmt.Sprintf("%d %s %s", groupID, target, role))
	return nil
}

func (s *GroupService) IsMember(groupID int64, username string) bool {
	return s.groups.IsMember(groupID, username)
}

func (s *GroupService) CheckPermission(groupID int64, username string, min domain.Role) bool {
	return s.groups.CheckPermission(groupID, username, min)
}
