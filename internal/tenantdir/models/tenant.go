package models

import (
	"strings"
	"time"

	id "punchgate/pkg/domain"
	dErrors "punchgate/pkg/domain-errors"
)

// TenantStatus is the lifecycle state of a tenant organization.
type TenantStatus string

const (
	TenantStatusActive   TenantStatus = "active"
	TenantStatusInactive TenantStatus = "inactive"
)

// Tenant is the directory entry for one customer organization.
//
// Invariants:
//   - DatastoreName is non-empty and unique across the directory
//   - DomainAliases are lowercase and unique across the directory
//   - One tenant context per request; contexts are never merged across tenants
//
// An inactive tenant is an immediate security boundary: resolution fails for
// it even when the caller's credential is otherwise valid, so suspended
// organizations cannot reach their datastore.
type Tenant struct {
	ID            id.TenantID  `json:"id"`
	Name          string       `json:"name"`
	DatastoreName string       `json:"datastoreName"`
	DomainAliases []string     `json:"domainAliases"`
	Status        TenantStatus `json:"status"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// HasAlias reports whether the tenant answers to the given domain alias.
func (t *Tenant) HasAlias(alias string) bool {
	alias = strings.ToLower(strings.TrimSpace(alias))
	for _, a := range t.DomainAliases {
		if a == alias {
			return true
		}
	}
	return false
}

// NewTenant validates and constructs a directory entry.
func NewTenant(tenantID id.TenantID, name, datastoreName string, aliases []string, now time.Time) (*Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name cannot be empty")
	}
	if strings.TrimSpace(datastoreName) == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant datastore name cannot be empty")
	}
	normalized := make([]string, 0, len(aliases))
	for _, a := range aliases {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			normalized = append(normalized, a)
		}
	}
	return &Tenant{
		ID:            tenantID,
		Name:          name,
		DatastoreName: datastoreName,
		DomainAliases: normalized,
		Status:        TenantStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
