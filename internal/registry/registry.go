// Package registry owns the tenant-id → datastore-handle cache.
//
// The registry is an explicit object injected into the request pipeline, not
// ambient global state. Handles live for the process lifetime unless
// explicitly invalidated on a canonical tenant reassignment; there is no
// timer-based eviction.
package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"punchgate/internal/datastore"
	"punchgate/internal/platform/metrics"
	tenantmodels "punchgate/internal/tenantdir/models"
	id "punchgate/pkg/domain"
	dErrors "punchgate/pkg/domain-errors"
)

// Connector establishes the underlying datastore connection for a tenant.
type Connector interface {
	Connect(ctx context.Context, tenant *tenantmodels.Tenant) (*datastore.Handle, error)
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context, tenant *tenantmodels.Tenant) (*datastore.Handle, error)

func (f ConnectorFunc) Connect(ctx context.Context, tenant *tenantmodels.Tenant) (*datastore.Handle, error) {
	return f(ctx, tenant)
}

type entry struct {
	handle    *datastore.Handle
	createdAt time.Time

	mu       sync.Mutex
	lastUsed time.Time
}

func (e *entry) touch(now time.Time) {
	e.mu.Lock()
	e.lastUsed = now
	e.mu.Unlock()
}

// Registry caches one live handle per tenant. Concurrent first-access for a
// tenant collapses to a single connection establishment; acquires for
// different tenants never block each other.
type Registry struct {
	connector Connector
	logger    *slog.Logger
	metrics   *metrics.Metrics

	mu      sync.RWMutex
	entries map[id.TenantID]*entry

	flight singleflight.Group
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// New constructs a Registry around the given connector.
func New(connector Connector, opts ...Option) *Registry {
	r := &Registry{
		connector: connector,
		logger:    slog.Default(),
		entries:   make(map[id.TenantID]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire returns the cached handle for the tenant, establishing it on first
// use. All concurrent callers for a missing tenant observe the same resulting
// handle or the same failure; failures are never cached.
func (r *Registry) Acquire(ctx context.Context, tenant *tenantmodels.Tenant) (*datastore.Handle, error) {
	r.mu.RLock()
	e, ok := r.entries[tenant.ID]
	r.mu.RUnlock()
	if ok {
		e.touch(time.Now())
		r.metrics.ObserveRegistryAcquire("hit")
		return e.handle, nil
	}

	// Detach establishment from the caller: a request aborted mid-flight must
	// not cancel a creation other callers are waiting on, and a completed
	// creation should populate the cache for future requests either way.
	connectCtx := context.WithoutCancel(ctx)

	result, err, shared := r.flight.Do(tenant.ID.String(), func() (any, error) {
		// Re-check under the flight: a previous flight may have populated the
		// map between our miss and this call.
		r.mu.RLock()
		existing, ok := r.entries[tenant.ID]
		r.mu.RUnlock()
		if ok {
			return existing, nil
		}

		handle, err := r.connector.Connect(connectCtx, tenant)
		if err != nil {
			return nil, err
		}
		r.metrics.IncConnectionsEstablished()

		now := time.Now()
		created := &entry{handle: handle, createdAt: now, lastUsed: now}
		r.mu.Lock()
		r.entries[tenant.ID] = created
		r.mu.Unlock()

		r.logger.InfoContext(ctx, "tenant datastore connection established",
			"tenant_id", tenant.ID.String(),
			"datastore", tenant.DatastoreName,
		)
		return created, nil
	})
	if err != nil {
		r.metrics.ObserveRegistryAcquire("error")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire tenant datastore")
	}

	e = result.(*entry)
	e.touch(time.Now())
	if shared {
		r.metrics.ObserveRegistryAcquire("coalesced")
	} else {
		r.metrics.ObserveRegistryAcquire("miss")
	}
	return e.handle, nil
}

// Invalidate drops the cached entry for a tenant so the next Acquire
// re-establishes it. Called on canonical tenant reassignment, never on
// per-request resolution.
func (r *Registry) Invalidate(tenantID id.TenantID) {
	r.mu.Lock()
	_, existed := r.entries[tenantID]
	delete(r.entries, tenantID)
	r.mu.Unlock()

	// Forget any in-flight creation so callers after the invalidation point
	// observe a fresh connection rather than the one being torn down.
	r.flight.Forget(tenantID.String())

	if existed {
		r.logger.Info("tenant datastore entry invalidated", "tenant_id", tenantID.String())
	}
}

// Size reports the number of live entries. Used by health reporting.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
