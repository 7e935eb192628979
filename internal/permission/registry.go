// Package permission holds the server-wide ADMIN/USER tags. Tags live in
// memory only and are empty after every restart.
package permission

import (
	"sync"

	"chatd/internal/domain"
)

type Registry struct {
	mu    sync.RWMutex
	roles map[string]domain.GlobalRole
}

func NewRegistry() *Registry {
	return &Registry{roles: make(map[string]domain.GlobalRole)}
}

// Role returns the tag of username, USER when none was set.
func (r *Registry) Role(username string) domain.GlobalRole {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if role, ok := r.roles[username]; ok {
		return role
	}
	return domain.GlobalUser
}

func (r *Registry) IsAdmin(username string) bool {
	return r.Role(username) == domain.GlobalAdmin
}

func (r *Registry) Grant(username string) {
	r.set(username, domain.GlobalAdmin)
}

func (r *Registry) Revoke(username string) {
	r.set(username, domain.GlobalUser)
}

func (r *Registry) set(username string, role domain.GlobalRole) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[username] = role
}
