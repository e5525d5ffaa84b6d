package models

import (
	"time"

	id "punchgate/pkg/domain"
)

// User is the global identity record backing every authenticated caller.
//
// The core never mutates a User during request handling; the only write path
// is the explicit tenant-switch operation, which reassigns CanonicalTenantID.
type User struct {
	ID          id.UserID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Roles       []string  `json:"roles"`

	// DatabaseUser marks accounts provisioned with tenant datastore access.
	// Endpoints configured with requireDatabaseUser reject callers without it.
	DatabaseUser bool `json:"databaseUser"`

	// TenantMembership lists every tenant the user may operate in.
	TenantMembership []id.TenantID `json:"tenantMembership"`

	// CanonicalTenantID is the user's current home tenant, used as the
	// explicit tenant claim during resolution.
	CanonicalTenantID id.TenantID `json:"canonicalTenantId"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsMemberOf reports whether the user belongs to the tenant.
func (u *User) IsMemberOf(tenantID id.TenantID) bool {
	for _, member := range u.TenantMembership {
		if member == tenantID {
			return true
		}
	}
	return false
}

// HasRole reports whether the user carries the named role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// SessionStatus is the lifecycle state of an authenticated session.
type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "active"
	SessionStatusRevoked SessionStatus = "revoked"
)

// Session tracks liveness for an issued credential. A valid JWT whose session
// is revoked or expired is a terminal authentication failure.
type Session struct {
	ID        id.SessionID  `json:"id"`
	UserID    id.UserID     `json:"userId"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	ExpiresAt time.Time     `json:"expiresAt"`
}

// Live reports whether the session is usable at the given time.
func (s *Session) Live(now time.Time) bool {
	return s.Status == SessionStatusActive && now.Before(s.ExpiresAt)
}
