package textfile

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"chatd/internal/domain"
)

const (
	ownerSuffix = "(Owner)"
	adminSuffix = "(Admin)"
	noMembers   = "None"
)

type group struct {
	id      int64
	name    string
	created string
	members []string
	roles   map[string]domain.Role // only entries above RoleMember
}

func (g *group) isMember(username string) bool {
	for _, m := range g.members {
		if m == username {
			return true
		}
	}
	return false
}

func (g *group) role(username string) domain.Role {
	if r, ok := g.roles[username]; ok {
		return r
	}
	return domain.RoleMember
}

// GroupStore keeps groups in two files: a membership file with inline role
// annotations and a flat "gid username role" table for elevated roles.
type GroupStore struct {
	mu        sync.Mutex
	groupPath string
	rolePath  string
	limit     int
	groups    map[int64]*group
	maxID     int64
	now       func() time.Time
}

func NewGroupStore(groupPath, rolePath string, limit int) *GroupStore {
	return &GroupStore{
		groupPath: groupPath,
		rolePath:  rolePath,
		limit:     limit,
		groups:    make(map[int64]*group),
		now:       time.Now,
	}
}

var _ domain.GroupRepository = (*GroupStore)(nil)

// Load reads both files. Inline annotations are applied first, then the
// flat role table is merged over them.
func (s *GroupStore) Load() error {
	lines, err := readLines(s.groupPath)
	if err != nil {
		return fmt.Errorf("load groups: %w", err)
	}
	roleLines, err := readLines(s.rolePath)
	if err != nil {
		return fmt.Errorf("load group roles: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.groups = make(map[int64]*group, len(lines))
	s.maxID = 0
	for _, line := range lines {
		f := strings.Fields(line)
		if len(f) < 3 {
			continue
		}
		id, err := strconv.ParseInt(f[0], 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		g := &group{id: id, name: f[1], created: f[2], roles: make(map[string]domain.Role)}
		if len(f) > 3 && f[3] != noMembers {
			for _, tok := range strings.Split(f[3], ",") {
				name, role := parseMember(tok)
				if name == "" || g.isMember(name) {
					continue
				}
				g.members = append(g.members, name)
				if role > domain.RoleMember {
					g.roles[name] = role
				}
			}
		}
		s.groups[id] = g
		if id > s.maxID {
			s.maxID = id
		}
	}

	for _, line := range roleLines {
		f := strings.Fields(line)
		if len(f) < 3 {
			continue
		}
		gid, err1 := strconv.ParseInt(f[0], 10, 64)
		lvl, err2 := strconv.Atoi(f[2])
		if err1 != nil || err2 != nil {
			continue
		}
		g, ok := s.groups[gid]
		role := domain.Role(lvl)
		if !ok || !g.isMember(f[1]) || !role.Valid() {
			continue
		}
		if role == domain.RoleMember {
			delete(g.roles, f[1])
		} else {
			g.roles[f[1]] = role
		}
	}
	return nil
}

func parseMember(tok string) (string, domain.Role) {
	tok = strings.TrimSpace(tok)
	switch {
	case strings.HasSuffix(tok, ownerSuffix):
		return strings.TrimSuffix(tok, ownerSuffix), domain.RoleOwner
	case strings.HasSuffix(tok, adminSuffix):
		return strings.TrimSuffix(tok, adminSuffix), domain.RoleAdmin
	default:
		return tok, domain.RoleMember
	}
}

// CreateGroup creates a group owned by owner. It is not persisted until Save.
func (s *GroupStore) CreateGroup(name, owner string) (int64, error) {
	if !domain.ValidGroupName(name) {
		return 0, fmt.Errorf("create group %q: %w", name, domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.groups {
		if g.name == name {
			return 0, fmt.Errorf("create group %q: %w", name, domain.ErrConflict)
		}
	}
	s.maxID++
	g := &group{
		id:      s.maxID,
		name:    name,
		created: s.now().Format("2006-01-02"),
		members: []string{owner},
		roles:   map[string]domain.Role{owner: domain.RoleOwner},
	}
	s.groups[g.id] = g
	return g.id, nil
}

// JoinGroup adds username to the group. Joining twice is not an error.
func (s *GroupStore) JoinGroup(groupID int64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("join group %d: %w", groupID, domain.ErrNotFound)
	}
	if g.isMember(username) {
		return nil
	}
	if len(g.members) >= s.limit {
		return fmt.Errorf("join group %d: %w", groupID, domain.ErrGroupFull)
	}
	g.members = append(g.members, username)
	return nil
}

func (s *GroupStore) LeaveGroup(groupID int64, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("leave group %d: %w", groupID, domain.ErrNotFound)
	}
	for i, m := range g.members {
		if m == username {
			g.members = append(g.members[:i], g.members[i+1:]...)
			delete(g.roles, username)
			return nil
		}
	}
	return fmt.Errorf("leave group %d: %s: %w", groupID, username, domain.ErrNotFound)
}

func (s *GroupStore) SetRole(groupID int64, username string, role domain.Role) error {
	if !role.Valid() {
		return fmt.Errorf("set role %d: %w", role, domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok || !g.isMember(username) {
		return fmt.Errorf("set role in group %d: %w", groupID, domain.ErrNotFound)
	}
	if role == domain.RoleMember {
		delete(g.roles, username)
	} else {
		g.roles[username] = role
	}
	return nil
}

// Role returns RoleNone for a missing group and RoleMember when the role table
// has no entry, including for non-members. Callers check membership first.
func (s *GroupStore) Role(groupID int64, username string) domain.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return domain.RoleNone
	}
	return g.role(username)
}

func (s *GroupStore) CheckPermission(groupID int64, username string, min domain.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok || !g.isMember(username) {
		return false
	}
	return g.role(username) >= min
}

func (s *GroupStore) IsMember(groupID int64, username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	return ok && g.isMember(username)
}

// Members returns the member names in join order.
func (s *GroupStore) Members(groupID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil
	}
	out := make([]string, len(g.members))
	copy(out, g.members)
	return out
}

func (s *GroupStore) Name(groupID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return "", false
	}
	return g.name, true
}

func (s *GroupStore) IDByName(name string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, g := range s.groups {
		if g.name == name {
			return id, true
		}
	}
	return 0, false
}

func (s *GroupStore) ListAll() []domain.GroupRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refsLocked(func(*group) bool { return true })
}

func (s *GroupStore) ListForUser(username string) []domain.GroupRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refsLocked(func(g *group) bool { return g.isMember(username) })
}

func (s *GroupStore) refsLocked(keep func(*group) bool) []domain.GroupRef {
	var out []domain.GroupRef
	for _, g := range s.groups {
		if keep(g) {
			out = append(out, domain.GroupRef{ID: g.id, Name: g.name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Save rewrites both files. Members are written owner first, then admins,
// then plain members.
func (s *GroupStore) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.groups))
	for id := range s.groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var groupLines, roleLines []string
	for _, id := range ids {
		g := s.groups[id]
		members := append([]string(nil), g.members...)
		sort.SliceStable(members, func(i, j int) bool { return g.role(members[i]) > g.role(members[j]) })

		tokens := make([]string, 0, len(members))
		for _, m := range members {
			r := g.role(m)
			switch r {
			case domain.RoleOwner:
				tokens = append(tokens, m+ownerSuffix)
			case domain.RoleAdmin:
				tokens = append(tokens, m+adminSuffix)
			default:
				tokens = append(tokens, m)
			}
			if r > domain.RoleMember {
				roleLines = append(roleLines, fmt.Sprintf("%d %s %d", g.id, m, int(r)))
			}
		}
		list := noMembers
		if len(tokens) > 0 {
			list = strings.Join(tokens, ",")
		}
		groupLines = append(groupLines, fmt.Sprintf("%d %s %s %s", g.id, g.name, g.created, list))
	}

	if err := rewrite(s.groupPath, groupLines); err != nil {
		return fmt.Errorf("save groups: %w", err)
	}
	if err := rewrite(s.rolePath, roleLines); err != nil {
		return fmt.Errorf("save group roles: %w", err)
	}
	return nil
}
