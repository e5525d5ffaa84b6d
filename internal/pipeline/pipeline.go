// Package pipeline composes identity resolution, tenant resolution, and
// datastore acquisition into one request-scoped authorization pass.
//
// The stages run in a fixed order and the pipeline stops at the first unmet
// gate: no tenant work happens for an unauthenticated caller, and no
// datastore is touched until a tenant is fully authorized.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"punchgate/internal/datastore"
	identitymodels "punchgate/internal/identity/models"
	identityservice "punchgate/internal/identity/service"
	"punchgate/internal/platform/metrics"
	tenantmodels "punchgate/internal/tenantdir/models"
	tenantservice "punchgate/internal/tenantdir/service"
	id "punchgate/pkg/domain"
	dErrors "punchgate/pkg/domain-errors"
)

// CredentialResolver turns a raw bearer token into an identity.
type CredentialResolver interface {
	ResolveCredential(ctx context.Context, rawToken string) (*identityservice.Identity, error)
}

// TenantResolver resolves the tenant a request operates in.
type TenantResolver interface {
	Resolve(ctx context.Context, user *identitymodels.User, tokenClaim id.TenantID, hints tenantservice.Hints) (*tenantmodels.Tenant, error)
}

// StoreProvider yields the tenant-scoped datastore handle.
type StoreProvider interface {
	Acquire(ctx context.Context, tenant *tenantmodels.Tenant) (*datastore.Handle, error)
}

// Options selects which gates an endpoint requires beyond authentication.
type Options struct {
	// RequireDatabaseUser rejects accounts not provisioned for tenant
	// datastore access.
	RequireDatabaseUser bool
	// RequireTenant makes tenant resolution mandatory and yields a store
	// handle. Endpoints without it operate on the global identity only.
	RequireTenant bool
}

// AuthorizedContext is the product of a successful pipeline run. Store is nil
// unless the endpoint required a tenant.
type AuthorizedContext struct {
	Identity *identityservice.Identity
	Tenant   *tenantmodels.Tenant
	Store    *datastore.Handle
}

// Pipeline wires the three resolution stages.
type Pipeline struct {
	identity CredentialResolver
	tenants  TenantResolver
	registry StoreProvider
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

func New(identity CredentialResolver, tenants TenantResolver, registry StoreProvider, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		identity: identity,
		tenants:  tenants,
		registry: registry,
		logger:   logger,
		metrics:  m,
		tracer:   otel.Tracer("punchgate/pipeline"),
	}
}

// Authorize runs the pipeline for one request.
func (p *Pipeline) Authorize(ctx context.Context, rawCredential string, hints tenantservice.Hints, opts Options) (*AuthorizedContext, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.Authorize")
	defer span.End()

	authorized, err := p.run(ctx, rawCredential, hints, opts)
	if err != nil {
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		span.RecordError(err)
		p.metrics.ObserveAuthorize(string(dErrors.CodeOf(err)), time.Since(start))
		return nil, err
	}

	span.SetAttributes(attribute.String("user.id", authorized.Identity.User.ID.String()))
	if authorized.Tenant != nil {
		span.SetAttributes(attribute.String("tenant.id", authorized.Tenant.ID.String()))
	}
	p.metrics.ObserveAuthorize("authorized", time.Since(start))
	return authorized, nil
}

func (p *Pipeline) run(ctx context.Context, rawCredential string, hints tenantservice.Hints, opts Options) (*AuthorizedContext, error) {
	identity, err := p.identity.ResolveCredential(ctx, rawCredential)
	if err != nil {
		return nil, err
	}

	if opts.RequireDatabaseUser && !identity.User.DatabaseUser {
		return nil, dErrors.New(dErrors.CodeForbidden, "database user access required")
	}

	authorized := &AuthorizedContext{Identity: identity}
	if !opts.RequireTenant {
		return authorized, nil
	}

	tenant, err := p.tenants.Resolve(ctx, identity.User, identity.TenantClaim, hints)
	if err != nil {
		return nil, err
	}
	authorized.Tenant = tenant

	handle, err := p.registry.Acquire(ctx, tenant)
	if err != nil {
		return nil, err
	}
	authorized.Store = handle
	return authorized, nil
}
