// Package datastore defines the tenant-scoped store handle produced by the
// connection registry.
//
// A Handle is the only way domain logic reaches tenant data, and a request
// ever holds exactly one. The stores inside a handle are all bound to the
// same underlying tenant database, so queries cannot mix tenants.
package datastore

import (
	"context"
	"time"

	"punchgate/internal/payroll/models"
	id "punchgate/pkg/domain"
)

// BatchStore reads and transitions payroll batches in one tenant's datastore.
type BatchStore interface {
	Create(ctx context.Context, batch *models.PayrollBatch) error
	FindByID(ctx context.Context, batchID id.BatchID) (*models.PayrollBatch, error)
	// FindLockingByTimecard returns every batch containing the timecard whose
	// status freezes its members (processing or processed). The lock guard
	// calls this on every check; results are never cached.
	FindLockingByTimecard(ctx context.Context, timecardID id.TimecardID) ([]*models.PayrollBatch, error)
	// Transition applies a validated status change, failing with a conflict
	// when the batch has moved concurrently.
	Transition(ctx context.Context, batchID id.BatchID, next models.BatchStatus, now time.Time) (*models.PayrollBatch, error)
}

// TimecardStore reads and mutates timecards in one tenant's datastore.
type TimecardStore interface {
	Create(ctx context.Context, timecard *models.Timecard) error
	FindByID(ctx context.Context, timecardID id.TimecardID) (*models.Timecard, error)
	// ListByUser returns the user's timecards overlapping [start, end].
	ListByUser(ctx context.Context, userID id.UserID, start, end time.Time) ([]*models.Timecard, error)
	// UpdatePunch replaces one punch on a timecard. Lock enforcement happens
	// in the service layer before this is called.
	UpdatePunch(ctx context.Context, timecardID id.TimecardID, punch models.Punch, now time.Time) error
}

// Handle bundles the stores for one tenant's datastore. Handles are shared
// read-only across all requests for that tenant and owned by the registry.
type Handle struct {
	TenantID  id.TenantID
	Name      string
	Batches   BatchStore
	Timecards TimecardStore
}
