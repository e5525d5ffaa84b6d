// Package service implements payroll lock enforcement over a tenant's
// datastore handle.
package service

import (
	"context"
	"log/slog"
	"time"

	"punchgate/internal/audit"
	"punchgate/internal/datastore"
	"punchgate/internal/payroll/models"
	"punchgate/internal/platform/metrics"
	id "punchgate/pkg/domain"
	dErrors "punchgate/pkg/domain-errors"
	"punchgate/pkg/retry"
)

// AuditRecorder emits audit events. Satisfied by audit.Publisher.
type AuditRecorder interface {
	Emit(ctx context.Context, event audit.Event)
}

// LockGuard answers whether a timecard is frozen by payroll processing.
//
// Lock state is always derived from a current batch query, never cached: a
// stale "unlocked" answer on the write path would let an edit slip into a
// batch mid-processing.
type LockGuard struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   AuditRecorder

	retryBackoff time.Duration
}

// GuardOption configures a LockGuard.
type GuardOption func(*LockGuard)

func WithMetrics(m *metrics.Metrics) GuardOption {
	return func(g *LockGuard) { g.metrics = m }
}

func WithAudit(recorder AuditRecorder) GuardOption {
	return func(g *LockGuard) { g.audit = recorder }
}

func WithRetryBackoff(d time.Duration) GuardOption {
	return func(g *LockGuard) { g.retryBackoff = d }
}

func NewLockGuard(logger *slog.Logger, opts ...GuardOption) *LockGuard {
	g := &LockGuard{
		logger:       logger,
		retryBackoff: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckLock resolves the current lock state of a timecard. Callers on the
// write path must treat any returned error as a refusal: when lock state
// cannot be determined, the edit does not happen.
func (g *LockGuard) CheckLock(ctx context.Context, batches datastore.BatchStore, timecardID id.TimecardID) (models.LockStatus, error) {
	locking, err := batches.FindLockingByTimecard(ctx, timecardID)
	if err != nil {
		g.metrics.ObserveLockCheck("error")
		return models.LockStatus{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to resolve payroll lock state")
	}

	if len(locking) == 0 {
		g.metrics.ObserveLockCheck("unlocked")
		return models.LockStatus{}, nil
	}

	if len(locking) > 1 {
		// A timecard in more than one active batch violates the batching
		// invariant. Report the most recently created batch and flag the rest
		// for operator follow-up rather than failing the request.
		g.metrics.IncLockAnomalies()
		g.logger.WarnContext(ctx, "timecard is a member of multiple active payroll batches",
			"timecard_id", timecardID.String(),
			"batch_count", len(locking),
			"reported_batch_id", locking[0].ID.String(),
		)
		if g.audit != nil {
			g.audit.Emit(ctx, audit.Event{
				Action:  audit.ActionBatchAnomaly,
				Subject: timecardID.String(),
				Reason:  "timecard belongs to multiple active payroll batches",
			})
		}
	}

	g.metrics.ObserveLockCheck("locked")
	batch := locking[0]
	return models.LockStatus{
		Locked:      true,
		BatchID:     &batch.ID,
		BatchStatus: batch.Status,
	}, nil
}

// CheckLockAdvisory is the read-path variant. It retries transient failures
// and then degrades to "unlocked" so status displays stay available during a
// datastore incident. Nothing on the write path may call this.
func (g *LockGuard) CheckLockAdvisory(ctx context.Context, batches datastore.BatchStore, timecardID id.TimecardID) models.LockStatus {
	var status models.LockStatus
	err := retry.Do(ctx, retry.DefaultAttempts, g.retryBackoff, func(ctx context.Context) error {
		var checkErr error
		status, checkErr = g.CheckLock(ctx, batches, timecardID)
		return checkErr
	})
	if err != nil {
		g.metrics.ObserveLockCheck("fail_open")
		g.logger.WarnContext(ctx, "lock state unavailable, reporting unlocked on read path",
			"timecard_id", timecardID.String(),
			"error", err,
		)
		return models.LockStatus{}
	}
	return status
}
