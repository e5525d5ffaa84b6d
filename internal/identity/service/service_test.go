package service

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"punchgate/internal/audit"
	"punchgate/internal/identity/models"
	sessionstore "punchgate/internal/identity/store/session"
	userstore "punchgate/internal/identity/store/user"
	jwttoken "punchgate/internal/jwt_token"
	tenantmodels "punchgate/internal/tenantdir/models"
	tenantstore "punchgate/internal/tenantdir/store"
	id "punchgate/pkg/domain"
	dErrors "punchgate/pkg/domain-errors"
	"punchgate/pkg/requestcontext"
)

type identityFixture struct {
	service  *Service
	tokens   *jwttoken.Service
	users    *userstore.InMemory
	sessions *sessionstore.InMemory
	tenants  *tenantstore.InMemory
	registry *fakeInvalidator
	events   *audit.MemoryStore

	user    *models.User
	session *models.Session
	tenant  *tenantmodels.Tenant
}

type fakeInvalidator struct {
	invalidated []id.TenantID
}

func (f *fakeInvalidator) Invalidate(tenantID id.TenantID) {
	f.invalidated = append(f.invalidated, tenantID)
}

func newIdentityFixture(t *testing.T) *identityFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	f := &identityFixture{
		tokens:   jwttoken.NewService("test-signing-key", "punchgate", "punchgate-api"),
		users:    userstore.NewInMemory(),
		sessions: sessionstore.NewInMemory(),
		tenants:  tenantstore.NewInMemory(),
		registry: &fakeInvalidator{},
		events:   audit.NewMemoryStore(),
	}

	tenant, err := tenantmodels.NewTenant(id.TenantID(uuid.New()), "Acme Staffing", "tenant_acme", []string{"acme"}, time.Now())
	if err != nil {
		t.Fatalf("new tenant: %v", err)
	}
	if err := f.tenants.Create(context.Background(), tenant); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	f.tenant = tenant

	f.user = &models.User{
		ID:               id.UserID(uuid.New()),
		Email:            "pat@acme.example",
		DatabaseUser:     true,
		TenantMembership: []id.TenantID{tenant.ID},
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if err := f.users.Create(context.Background(), f.user); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	f.session = &models.Session{
		ID:        id.SessionID(uuid.New()),
		UserID:    f.user.ID,
		Status:    models.SessionStatusActive,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := f.sessions.Create(context.Background(), f.session); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	publisher := audit.NewPublisher(8, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = audit.NewWorker(f.events, publisher.Inbox(), logger).Run(ctx)
	}()

	f.service = New(f.users, f.sessions, f.tokens, logger,
		WithTenantSwitch(f.tenants, f.registry),
		WithAudit(publisher),
	)
	return f
}

func (f *identityFixture) accessToken(t *testing.T) string {
	t.Helper()
	token, err := f.tokens.GenerateAccessToken(uuid.UUID(f.user.ID), uuid.UUID(f.session.ID), uuid.Nil, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func TestResolveCredential(t *testing.T) {
	f := newIdentityFixture(t)

	identity, err := f.service.ResolveCredential(context.Background(), f.accessToken(t))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if identity.User.ID != f.user.ID {
		t.Fatalf("resolved wrong user %s", identity.User.ID)
	}
	if identity.SessionID != f.session.ID {
		t.Fatalf("resolved wrong session %s", identity.SessionID)
	}
	if !identity.TenantClaim.IsZero() {
		t.Fatal("token without tenant claim must resolve a zero claim")
	}
}

func TestResolveCredentialCarriesTenantClaim(t *testing.T) {
	f := newIdentityFixture(t)
	token, err := f.tokens.GenerateAccessToken(uuid.UUID(f.user.ID), uuid.UUID(f.session.ID), uuid.UUID(f.tenant.ID), time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	identity, err := f.service.ResolveCredential(context.Background(), token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if identity.TenantClaim != f.tenant.ID {
		t.Fatalf("expected tenant claim %s, got %s", f.tenant.ID, identity.TenantClaim)
	}
}

func TestResolveCredentialRejectsMissingToken(t *testing.T) {
	f := newIdentityFixture(t)

	_, err := f.service.ResolveCredential(context.Background(), "")
	if !dErrors.HasCode(err, dErrors.CodeUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestResolveCredentialRejectsExpiredToken(t *testing.T) {
	f := newIdentityFixture(t)
	token, err := f.tokens.GenerateAccessToken(uuid.UUID(f.user.ID), uuid.UUID(f.session.ID), uuid.Nil, -time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = f.service.ResolveCredential(context.Background(), token)
	if !dErrors.HasCode(err, dErrors.CodeUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestResolveCredentialSessionExpiredAtRequestTime(t *testing.T) {
	f := newIdentityFixture(t)

	// Liveness is judged at the request-scoped time, not wall-clock time.
	ctx := requestcontext.WithTime(context.Background(), f.session.ExpiresAt.Add(time.Minute))
	_, err := f.service.ResolveCredential(ctx, f.accessToken(t))
	if !dErrors.HasCode(err, dErrors.CodeUnauthenticated) {
		t.Fatalf("expected unauthenticated past session expiry, got %v", err)
	}
}

func TestResolveCredentialRejectsRevokedSession(t *testing.T) {
	f := newIdentityFixture(t)
	if err := f.sessions.Revoke(context.Background(), f.session.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	_, err := f.service.ResolveCredential(context.Background(), f.accessToken(t))
	if !dErrors.HasCode(err, dErrors.CodeUnauthenticated) {
		t.Fatalf("expected unauthenticated for revoked session, got %v", err)
	}
}

func TestResolveCredentialRejectsUnknownSession(t *testing.T) {
	f := newIdentityFixture(t)
	token, err := f.tokens.GenerateAccessToken(uuid.UUID(f.user.ID), uuid.New(), uuid.Nil, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = f.service.ResolveCredential(context.Background(), token)
	if !dErrors.HasCode(err, dErrors.CodeUnauthenticated) {
		t.Fatalf("expected unauthenticated for unknown session, got %v", err)
	}
}

func TestResolveCredentialRejectsSessionUserMismatch(t *testing.T) {
	f := newIdentityFixture(t)
	token, err := f.tokens.GenerateAccessToken(uuid.New(), uuid.UUID(f.session.ID), uuid.Nil, time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = f.service.ResolveCredential(context.Background(), token)
	if !dErrors.HasCode(err, dErrors.CodeUnauthenticated) {
		t.Fatalf("expected unauthenticated for mismatched session, got %v", err)
	}
}

func TestSwitchTenant(t *testing.T) {
	f := newIdentityFixture(t)
	previous := id.TenantID(uuid.New())
	f.user.CanonicalTenantID = previous
	f.user.TenantMembership = append(f.user.TenantMembership, previous)

	ctx := requestcontext.WithClientMetadata(context.Background(), "203.0.113.9", "Firefox 128.0 (Linux)")
	tenant, err := f.service.SwitchTenant(ctx, f.user, "acme")
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if tenant.ID != f.tenant.ID {
		t.Fatalf("switched to wrong tenant %s", tenant.ID)
	}
	if f.user.CanonicalTenantID != f.tenant.ID {
		t.Fatal("canonical tenant not updated on the user")
	}

	stored, err := f.users.FindByID(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if stored.CanonicalTenantID != f.tenant.ID {
		t.Fatal("canonical tenant not persisted")
	}

	if len(f.registry.invalidated) != 1 || f.registry.invalidated[0] != previous {
		t.Fatalf("expected previous tenant invalidated, got %v", f.registry.invalidated)
	}

	deadline := time.After(time.Second)
	for {
		events, listErr := f.events.ListByAction(context.Background(), audit.ActionTenantSwitched)
		if listErr != nil {
			t.Fatalf("list events: %v", listErr)
		}
		if len(events) == 1 {
			if events[0].ClientIP != "203.0.113.9" {
				t.Fatalf("event client IP = %q", events[0].ClientIP)
			}
			if events[0].UserAgent != "Firefox 128.0 (Linux)" {
				t.Fatalf("event user agent = %q", events[0].UserAgent)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected a tenant.switched audit event")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSwitchTenantAcceptsTenantURL(t *testing.T) {
	f := newIdentityFixture(t)

	tenant, err := f.service.SwitchTenant(context.Background(), f.user, "https://acme.punchgate.example/app")
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if tenant.ID != f.tenant.ID {
		t.Fatalf("expected alias extracted from URL, got tenant %s", tenant.ID)
	}
}

func TestSwitchTenantNoopKeepsRegistry(t *testing.T) {
	f := newIdentityFixture(t)
	f.user.CanonicalTenantID = f.tenant.ID

	if _, err := f.service.SwitchTenant(context.Background(), f.user, "acme"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if len(f.registry.invalidated) != 0 {
		t.Fatal("a no-op switch must not invalidate any registry entry")
	}
}

func TestSwitchTenantRejectsNonMember(t *testing.T) {
	f := newIdentityFixture(t)
	f.user.TenantMembership = nil

	_, err := f.service.SwitchTenant(context.Background(), f.user, "acme")
	if !dErrors.HasCode(err, dErrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(f.registry.invalidated) != 0 {
		t.Fatal("a rejected switch must not touch the registry")
	}
}

func TestSwitchTenantUnknownAlias(t *testing.T) {
	f := newIdentityFixture(t)

	_, err := f.service.SwitchTenant(context.Background(), f.user, "rival")
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("expected not_found, got %v", err)
	}
}

func TestSwitchTenantMissingURL(t *testing.T) {
	f := newIdentityFixture(t)

	_, err := f.service.SwitchTenant(context.Background(), f.user, "  ")
	if !dErrors.HasCode(err, dErrors.CodeInvalidInput) {
		t.Fatalf("expected invalid_input, got %v", err)
	}
}
