package user

import (
	"context"
	"fmt"
	"sync"
	"time"

	"punchgate/internal/identity/models"
	id "punchgate/pkg/domain"
	"punchgate/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this pattern:
// - Return ErrNotFound when the requested entity does not exist
// - Return nil for successful operations
// - Return wrapped errors with context for infrastructure failures

// InMemory stores user records in memory for tests/dev.
type InMemory struct {
	mu    sync.RWMutex
	users map[id.UserID]*models.User
}

// NewInMemory constructs an empty in-memory user store.
func NewInMemory() *InMemory {
	return &InMemory{users: make(map[id.UserID]*models.User)}
}

func (s *InMemory) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("user already exists: %w", sentinel.ErrConflict)
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[userID]; ok {
		return cloneUser(user), nil
	}
	return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
}

// UpdateCanonicalTenant reassigns the user's home tenant. This is the only
// mutation the authorization core performs on identity records.
func (s *InMemory) UpdateCanonicalTenant(_ context.Context, userID id.UserID, tenantID id.TenantID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	user.CanonicalTenantID = tenantID
	user.UpdatedAt = now
	return nil
}

// cloneUser keeps callers from mutating shared state through returned pointers.
func cloneUser(u *models.User) *models.User {
	copied := *u
	copied.Roles = append([]string(nil), u.Roles...)
	copied.TenantMembership = append([]id.TenantID(nil), u.TenantMembership...)
	return &copied
}
