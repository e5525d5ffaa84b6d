package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"punchgate/internal/tenantdir/models"
	id "punchgate/pkg/domain"
	"punchgate/pkg/platform/sentinel"
)

// InMemory is the in-memory tenant directory for tests/dev.
type InMemory struct {
	mu      sync.RWMutex
	tenants map[id.TenantID]*models.Tenant
}

// NewInMemory constructs an empty in-memory directory.
func NewInMemory() *InMemory {
	return &InMemory{tenants: make(map[id.TenantID]*models.Tenant)}
}

func (s *InMemory) Create(_ context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[tenant.ID]; ok {
		return fmt.Errorf("tenant already exists: %w", sentinel.ErrConflict)
	}
	for _, existing := range s.tenants {
		for _, alias := range tenant.DomainAliases {
			if existing.HasAlias(alias) {
				return fmt.Errorf("alias %q already taken: %w", alias, sentinel.ErrConflict)
			}
		}
	}
	copied := cloneTenant(tenant)
	s.tenants[tenant.ID] = copied
	return nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tenant, ok := s.tenants[tenantID]; ok {
		return cloneTenant(tenant), nil
	}
	return nil, fmt.Errorf("tenant not found: %w", sentinel.ErrNotFound)
}

func (s *InMemory) FindByAlias(_ context.Context, alias string) (*models.Tenant, error) {
	alias = strings.ToLower(strings.TrimSpace(alias))
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tenant := range s.tenants {
		if tenant.HasAlias(alias) {
			return cloneTenant(tenant), nil
		}
	}
	return nil, fmt.Errorf("tenant not found for alias %q: %w", alias, sentinel.ErrNotFound)
}

func cloneTenant(t *models.Tenant) *models.Tenant {
	copied := *t
	copied.DomainAliases = append([]string(nil), t.DomainAliases...)
	return &copied
}
