// Package service implements tenant resolution: deriving exactly one tenant
// context for a request from the caller's identity and request hints.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	identitymodels "punchgate/internal/identity/models"
	"punchgate/internal/tenantdir/models"
	id "punchgate/pkg/domain"
	dErrors "punchgate/pkg/domain-errors"
	"punchgate/pkg/platform/sentinel"
)

// DirectoryStore is the tenant directory lookup. Resolution never opens a
// datastore connection; it is purely a directory read.
type DirectoryStore interface {
	FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	FindByAlias(ctx context.Context, alias string) (*models.Tenant, error)
}

// Hints carries the request-boundary tenant hints, consulted only when the
// identity carries no explicit tenant claim.
type Hints struct {
	// TenantAlias is the value of the X-Tenant header, a domain alias.
	TenantAlias string
	// Host is the request Host; its subdomain doubles as an alias.
	Host string
}

func (h Hints) subdomain() string {
	host := h.Host
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	parts := strings.Split(host, ".")
	if len(parts) < 3 {
		return ""
	}
	return strings.ToLower(parts[0])
}

// Resolver derives the tenant context for a request.
type Resolver struct {
	directory DirectoryStore
	logger    *slog.Logger
}

// NewResolver constructs a tenant resolver.
func NewResolver(directory DirectoryStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{directory: directory, logger: logger}
}

// Resolve derives exactly one tenant for the identity, in priority order:
// the explicit claim (token claim, then the user's canonical tenant), then
// the request hints. Returns a missing_tenant error when nothing resolves;
// the pipeline decides whether that is fatal for the request.
//
// Resolution is read-only: it never mutates the connection registry or the
// user record.
func (r *Resolver) Resolve(ctx context.Context, user *identitymodels.User, tokenClaim id.TenantID, hints Hints) (*models.Tenant, error) {
	tenant, err := r.lookup(ctx, user, tokenClaim, hints)
	if err != nil {
		return nil, err
	}

	if !tenant.IsActive() {
		return nil, dErrors.New(dErrors.CodeForbidden, "tenant is inactive")
	}
	// A resolved tenant the caller does not belong to is a precondition
	// failure, not a routing choice. This keeps one tenant's data out of
	// another tenant's requests regardless of what hints the client sends.
	if !user.IsMemberOf(tenant.ID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "caller is not a member of tenant")
	}
	return tenant, nil
}

func (r *Resolver) lookup(ctx context.Context, user *identitymodels.User, tokenClaim id.TenantID, hints Hints) (*models.Tenant, error) {
	if !tokenClaim.IsZero() {
		return r.byID(ctx, tokenClaim)
	}
	if !user.CanonicalTenantID.IsZero() {
		return r.byID(ctx, user.CanonicalTenantID)
	}
	if alias := strings.TrimSpace(hints.TenantAlias); alias != "" {
		return r.byAlias(ctx, alias)
	}
	if sub := hints.subdomain(); sub != "" {
		tenant, err := r.byAlias(ctx, sub)
		if err == nil {
			return tenant, nil
		}
		if !dErrors.HasCode(err, dErrors.CodeMissingTenant) {
			return nil, err
		}
	}
	return nil, dErrors.New(dErrors.CodeMissingTenant, "no tenant could be derived for request")
}

func (r *Resolver) byID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	tenant, err := r.directory.FindByID(ctx, tenantID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeMissingTenant, "tenant claim references unknown tenant")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "tenant directory lookup failed")
	}
	return tenant, nil
}

func (r *Resolver) byAlias(ctx context.Context, alias string) (*models.Tenant, error) {
	tenant, err := r.directory.FindByAlias(ctx, alias)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeMissingTenant, "no tenant answers to alias")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "tenant directory lookup failed")
	}
	return tenant, nil
}
