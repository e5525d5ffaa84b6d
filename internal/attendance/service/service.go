// Package service answers attendance queries against a tenant's datastore.
package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"punchgate/internal/datastore"
	"punchgate/internal/payroll/models"
	payrollservice "punchgate/internal/payroll/service"
	id "punchgate/pkg/domain"
	dErrors "punchgate/pkg/domain-errors"
)

// View selects the shape of a query result.
type View string

const (
	ViewTimecards View = "timecards"
	ViewSummary   View = "summary"
)

// DefaultRangeDays is the query window when no dates are given.
const DefaultRangeDays = 14

const queryTimeout = 5 * time.Second

// QueryRequest is a validated attendance query.
type QueryRequest struct {
	UserID    id.UserID
	View      View
	StartDate time.Time
	EndDate   time.Time
}

// TimecardRecord is a timecard with its current payroll lock state attached.
type TimecardRecord struct {
	Timecard *models.Timecard  `json:"timecard"`
	Lock     models.LockStatus `json:"lock"`
}

// QueryResult carries whichever view was requested.
type QueryResult struct {
	View      View             `json:"view"`
	UserID    id.UserID        `json:"userId"`
	StartDate time.Time        `json:"startDate"`
	EndDate   time.Time        `json:"endDate"`
	Timecards []TimecardRecord `json:"timecards,omitempty"`
	Summary   *Summary         `json:"summary,omitempty"`
}

// Service runs attendance queries.
type Service struct {
	guard  *payrollservice.LockGuard
	logger *slog.Logger
}

func New(guard *payrollservice.LockGuard, logger *slog.Logger) *Service {
	return &Service{guard: guard, logger: logger}
}

// Normalize applies defaults and validates the request in place.
func (r *QueryRequest) Normalize(now time.Time) error {
	switch r.View {
	case ViewTimecards, ViewSummary:
	case "":
		return dErrors.New(dErrors.CodeInvalidInput, "view is required")
	default:
		return dErrors.New(dErrors.CodeInvalidInput, "view must be timecards or summary")
	}
	if r.UserID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "userId is required")
	}
	if r.EndDate.IsZero() {
		r.EndDate = now
	}
	if r.StartDate.IsZero() {
		r.StartDate = r.EndDate.AddDate(0, 0, -DefaultRangeDays)
	}
	if r.EndDate.Before(r.StartDate) {
		return dErrors.New(dErrors.CodeInvalidInput, "endDate is before startDate")
	}
	return nil
}

// Query loads the user's timecards for the range and resolves each card's
// lock state in parallel. Lock state on this path is advisory: a degraded
// datastore must not take the attendance view down.
func (s *Service) Query(ctx context.Context, handle *datastore.Handle, req QueryRequest) (*QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	timecards, err := handle.Timecards.ListByUser(ctx, req.UserID, req.StartDate, req.EndDate)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load attendance data")
	}

	records := make([]TimecardRecord, len(timecards))
	g, ctx := errgroup.WithContext(ctx)
	for i, timecard := range timecards {
		g.Go(func() error {
			records[i] = TimecardRecord{
				Timecard: timecard,
				Lock:     s.guard.CheckLockAdvisory(ctx, handle.Batches, timecard.ID),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to resolve lock state")
	}

	result := &QueryResult{
		View:      req.View,
		UserID:    req.UserID,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	switch req.View {
	case ViewTimecards:
		result.Timecards = records
	case ViewSummary:
		result.Summary = Summarize(timecards)
	}
	return result, nil
}
