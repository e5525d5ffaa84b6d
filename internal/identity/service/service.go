// Package service resolves credentials to identities and owns the
// tenant-switch operation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"punchgate/internal/audit"
	"punchgate/internal/identity/models"
	jwttoken "punchgate/internal/jwt_token"
	"punchgate/internal/platform/metrics"
	tenantmodels "punchgate/internal/tenantdir/models"
	id "punchgate/pkg/domain"
	dErrors "punchgate/pkg/domain-errors"
	"punchgate/pkg/platform/sentinel"
	"punchgate/pkg/requestcontext"
)

// UserStore is the global user record backend.
type UserStore interface {
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	UpdateCanonicalTenant(ctx context.Context, userID id.UserID, tenantID id.TenantID, now time.Time) error
}

// SessionStore tracks session liveness for issued credentials.
type SessionStore interface {
	Find(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
}

// TokenValidator verifies access tokens. Satisfied by jwttoken.Service.
type TokenValidator interface {
	ValidateToken(token string) (*jwttoken.Claims, error)
}

// Directory looks up tenants for the switch operation.
type Directory interface {
	FindByAlias(ctx context.Context, alias string) (*tenantmodels.Tenant, error)
}

// RegistryInvalidator drops a tenant's cached datastore entry. Satisfied by
// registry.Registry.
type RegistryInvalidator interface {
	Invalidate(tenantID id.TenantID)
}

// AuditRecorder emits audit events. Satisfied by audit.Publisher.
type AuditRecorder interface {
	Emit(ctx context.Context, event audit.Event)
}

// Identity is a fully resolved caller: the user record plus the session and
// optional tenant claim carried by the credential.
type Identity struct {
	User        *models.User
	SessionID   id.SessionID
	TenantClaim id.TenantID
}

// Service resolves credentials and performs tenant switches.
type Service struct {
	users    UserStore
	sessions SessionStore
	tokens   TokenValidator
	logger   *slog.Logger

	directory Directory
	registry  RegistryInvalidator
	audit     AuditRecorder
	metrics   *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithTenantSwitch wires the collaborators the switch operation needs.
func WithTenantSwitch(directory Directory, registry RegistryInvalidator) Option {
	return func(s *Service) {
		s.directory = directory
		s.registry = registry
	}
}

func WithAudit(recorder AuditRecorder) Option {
	return func(s *Service) { s.audit = recorder }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(users UserStore, sessions SessionStore, tokens TokenValidator, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveCredential turns a raw bearer token into an Identity.
//
// The chain is strict: signature and expiry first, then session liveness,
// then the user record. Authentication failures are terminal and never
// retried; only backend lookups surface as unavailable.
func (s *Service) ResolveCredential(ctx context.Context, rawToken string) (*Identity, error) {
	if rawToken == "" {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "missing credential")
	}

	claims, err := s.tokens.ValidateToken(rawToken)
	if err != nil {
		return nil, err
	}

	userID, err := id.ParseUserID(claims.UserID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "invalid token claims")
	}
	sessionID, err := id.ParseSessionID(claims.SessionID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "invalid token claims")
	}
	var tenantClaim id.TenantID
	if claims.TenantID != "" {
		tenantClaim, err = id.ParseTenantID(claims.TenantID)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeUnauthenticated, "invalid token claims")
		}
	}

	session, err := s.sessions.Find(ctx, sessionID)
	if err != nil {
		if errorsIsNotFound(err) {
			return nil, dErrors.New(dErrors.CodeUnauthenticated, "session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load session")
	}
	if !session.Live(requestcontext.Now(ctx)) {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "session expired or revoked")
	}
	if session.UserID != userID {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "session does not match credential")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errorsIsNotFound(err) {
			return nil, dErrors.New(dErrors.CodeUnauthenticated, "unknown user")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load user")
	}

	return &Identity{User: user, SessionID: sessionID, TenantClaim: tenantClaim}, nil
}

// CurrentUser loads the caller's user record.
func (s *Service) CurrentUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errorsIsNotFound(err) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load user")
	}
	return user, nil
}

// SwitchTenant reassigns the user's canonical tenant to the tenant identified
// by tenantURL (an alias or a tenant host). The previous tenant's registry
// entry is invalidated only when the canonical mapping actually changes;
// per-request resolution never reaches this path.
func (s *Service) SwitchTenant(ctx context.Context, user *models.User, tenantURL string) (*tenantmodels.Tenant, error) {
	if s.directory == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "tenant switch is not configured")
	}
	alias := aliasFromTenantURL(tenantURL)
	if alias == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "tenantUrl is required")
	}

	tenant, err := s.directory.FindByAlias(ctx, alias)
	if err != nil {
		if errorsIsNotFound(err) {
			return nil, dErrors.New(dErrors.CodeNotFound, "unknown tenant")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to look up tenant")
	}
	if !tenant.IsActive() {
		return nil, dErrors.New(dErrors.CodeForbidden, "tenant is not active")
	}
	if !user.IsMemberOf(tenant.ID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "user is not a member of tenant")
	}

	previous := user.CanonicalTenantID
	if previous == tenant.ID {
		return tenant, nil
	}

	now := requestcontext.Now(ctx)
	if err := s.users.UpdateCanonicalTenant(ctx, user.ID, tenant.ID, now); err != nil {
		if errorsIsNotFound(err) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to update canonical tenant")
	}
	user.CanonicalTenantID = tenant.ID
	user.UpdatedAt = now

	if s.registry != nil && !previous.IsZero() {
		s.registry.Invalidate(previous)
	}

	s.metrics.IncTenantSwitches()
	if s.audit != nil {
		s.audit.Emit(ctx, audit.Event{
			Action:   audit.ActionTenantSwitched,
			UserID:   user.ID.String(),
			TenantID: tenant.ID.String(),
			Subject:  previous.String(),
			Reason:   "canonical tenant reassigned",
		})
	}
	s.logger.InfoContext(ctx, "canonical tenant reassigned",
		"user_id", user.ID.String(),
		"from_tenant_id", previous.String(),
		"to_tenant_id", tenant.ID.String(),
	)
	return tenant, nil
}

// aliasFromTenantURL normalizes a tenant URL or alias to a directory alias:
// scheme and path are stripped, and for a multi-label host the first label is
// the alias.
func aliasFromTenantURL(raw string) string {
	alias := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(alias, "://"); i >= 0 {
		alias = alias[i+3:]
	}
	if i := strings.IndexAny(alias, "/?#"); i >= 0 {
		alias = alias[:i]
	}
	if i := strings.IndexByte(alias, ':'); i >= 0 {
		alias = alias[:i]
	}
	if i := strings.IndexByte(alias, '.'); i >= 0 {
		alias = alias[:i]
	}
	return alias
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound) || dErrors.HasCode(err, dErrors.CodeNotFound)
}
