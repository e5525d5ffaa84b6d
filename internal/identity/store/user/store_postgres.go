package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"punchgate/internal/identity/models"
	id "punchgate/pkg/domain"
	"punchgate/pkg/platform/sentinel"
)

// Postgres persists user records in the global identity database. Identity is
// deliberately not tenant-scoped: users may belong to several tenants, so
// their records live outside the per-tenant datastores.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const findUserByID = `
SELECT id::text, email, display_name, roles, database_user,
       tenant_membership, canonical_tenant_id::text, created_at, updated_at
FROM users
WHERE id = $1`

func (s *Postgres) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	row := s.pool.QueryRow(ctx, findUserByID, uuid.UUID(userID))

	var (
		rawID       string
		rawCanon    *string
		membership  []string
		user        models.User
		roles       []string
		dbUser      bool
		createdAt   time.Time
		updatedAt   time.Time
		email, name string
	)
	err := row.Scan(&rawID, &email, &name, &roles, &dbUser, &membership, &rawCanon, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}

	parsedID, err := id.ParseUserID(rawID)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id %q: %w", rawID, err)
	}
	var canon id.TenantID
	if rawCanon != nil {
		canon, err = id.ParseTenantID(*rawCanon)
		if err != nil {
			return nil, fmt.Errorf("corrupt canonical tenant id %q: %w", *rawCanon, err)
		}
	}
	tenants := make([]id.TenantID, 0, len(membership))
	for _, raw := range membership {
		tenantID, err := id.ParseTenantID(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt tenant membership %q: %w", raw, err)
		}
		tenants = append(tenants, tenantID)
	}

	user = models.User{
		ID:                parsedID,
		Email:             email,
		DisplayName:       name,
		Roles:             roles,
		DatabaseUser:      dbUser,
		TenantMembership:  tenants,
		CanonicalTenantID: canon,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
	}
	return &user, nil
}

const updateCanonicalTenant = `
UPDATE users
SET canonical_tenant_id = $2, updated_at = $3
WHERE id = $1`

func (s *Postgres) UpdateCanonicalTenant(ctx context.Context, userID id.UserID, tenantID id.TenantID, now time.Time) error {
	tag, err := s.pool.Exec(ctx, updateCanonicalTenant, uuid.UUID(userID), uuid.UUID(tenantID), now)
	if err != nil {
		return fmt.Errorf("update canonical tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

const insertUser = `
INSERT INTO users (id, email, display_name, roles, database_user, tenant_membership, canonical_tenant_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Create inserts a user record. Used by provisioning tooling and tests.
func (s *Postgres) Create(ctx context.Context, user *models.User) error {
	membership := make([]string, 0, len(user.TenantMembership))
	for _, tenantID := range user.TenantMembership {
		membership = append(membership, tenantID.String())
	}
	var canon *uuid.UUID
	if !user.CanonicalTenantID.IsZero() {
		v := uuid.UUID(user.CanonicalTenantID)
		canon = &v
	}
	_, err := s.pool.Exec(ctx, insertUser,
		uuid.UUID(user.ID), user.Email, user.DisplayName, user.Roles, user.DatabaseUser,
		membership, canon, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
