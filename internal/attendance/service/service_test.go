package service

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"punchgate/internal/datastore"
	"punchgate/internal/payroll/models"
	payrollservice "punchgate/internal/payroll/service"
	id "punchgate/pkg/domain"
	dErrors "punchgate/pkg/domain-errors"
)

func newService() *Service {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return New(payrollservice.NewLockGuard(logger, payrollservice.WithRetryBackoff(time.Millisecond)), logger)
}

func punchPair(day time.Time, inHour, outHour int) []models.Punch {
	return []models.Punch{
		{ID: id.PunchID(uuid.New()), Kind: models.PunchIn, At: day.Add(time.Duration(inHour) * time.Hour)},
		{ID: id.PunchID(uuid.New()), Kind: models.PunchOut, At: day.Add(time.Duration(outHour) * time.Hour)},
	}
}

func TestSummarize(t *testing.T) {
	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	card := &models.Timecard{
		ID:          id.TimecardID(uuid.New()),
		UserID:      id.UserID(uuid.New()),
		PeriodStart: monday,
		PeriodEnd:   monday.AddDate(0, 0, 6),
	}
	card.Punches = append(card.Punches, punchPair(monday, 9, 17)...)
	card.Punches = append(card.Punches, punchPair(tuesday, 8, 12)...)

	summary := Summarize([]*models.Timecard{card})
	if summary.TotalMinutes != (8+4)*60 {
		t.Fatalf("total minutes = %d, want %d", summary.TotalMinutes, (8+4)*60)
	}
	if summary.PunchCount != 4 {
		t.Fatalf("punch count = %d, want 4", summary.PunchCount)
	}
	if len(summary.Days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(summary.Days))
	}
	if summary.Days[0].Date != "2026-08-24" || summary.Days[0].WorkedMinutes != 8*60 {
		t.Fatalf("monday summary = %+v", summary.Days[0])
	}
	if summary.Days[1].Date != "2026-08-25" || summary.Days[1].WorkedMinutes != 4*60 {
		t.Fatalf("tuesday summary = %+v", summary.Days[1])
	}
}

func TestSummarizeUnpairedPunch(t *testing.T) {
	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	card := &models.Timecard{
		ID:     id.TimecardID(uuid.New()),
		UserID: id.UserID(uuid.New()),
		Punches: []models.Punch{
			{ID: id.PunchID(uuid.New()), Kind: models.PunchIn, At: monday.Add(9 * time.Hour)},
		},
	}

	summary := Summarize([]*models.Timecard{card})
	if summary.TotalMinutes != 0 {
		t.Fatalf("an open interval must contribute no minutes, got %d", summary.TotalMinutes)
	}
	if summary.PunchCount != 1 {
		t.Fatalf("punch count = %d, want 1", summary.PunchCount)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	req := QueryRequest{UserID: id.UserID(uuid.New()), View: ViewSummary}
	if err := req.Normalize(now); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !req.EndDate.Equal(now) {
		t.Fatalf("end date = %v, want now", req.EndDate)
	}
	if !req.StartDate.Equal(now.AddDate(0, 0, -DefaultRangeDays)) {
		t.Fatalf("start date = %v", req.StartDate)
	}
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	now := time.Now()

	req := QueryRequest{UserID: id.UserID(uuid.New())}
	if err := req.Normalize(now); !dErrors.HasCode(err, dErrors.CodeInvalidInput) {
		t.Fatalf("expected invalid_input for missing view, got %v", err)
	}

	req = QueryRequest{UserID: id.UserID(uuid.New()), View: "calendar"}
	if err := req.Normalize(now); !dErrors.HasCode(err, dErrors.CodeInvalidInput) {
		t.Fatalf("expected invalid_input for unknown view, got %v", err)
	}

	req = QueryRequest{
		UserID:    id.UserID(uuid.New()),
		View:      ViewSummary,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, -1),
	}
	if err := req.Normalize(now); !dErrors.HasCode(err, dErrors.CodeInvalidInput) {
		t.Fatalf("expected invalid_input for inverted range, got %v", err)
	}
}

func TestQueryTimecardsViewCarriesLockState(t *testing.T) {
	svc := newService()
	tenantID := id.TenantID(uuid.New())
	handle := datastore.NewMemoryHandle(tenantID, "tenant_acme")
	userID := id.UserID(uuid.New())
	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	locked := &models.Timecard{
		ID:          id.TimecardID(uuid.New()),
		UserID:      userID,
		PeriodStart: monday,
		PeriodEnd:   monday.AddDate(0, 0, 6),
		Punches:     punchPair(monday, 9, 17),
	}
	free := &models.Timecard{
		ID:          id.TimecardID(uuid.New()),
		UserID:      userID,
		PeriodStart: monday.AddDate(0, 0, 7),
		PeriodEnd:   monday.AddDate(0, 0, 13),
		Punches:     punchPair(monday.AddDate(0, 0, 7), 9, 17),
	}
	for _, card := range []*models.Timecard{locked, free} {
		if err := handle.Timecards.Create(context.Background(), card); err != nil {
			t.Fatalf("seed timecard: %v", err)
		}
	}
	batch := &models.PayrollBatch{
		ID:                id.BatchID(uuid.New()),
		Status:            models.BatchStatusProcessing,
		MemberTimecardIDs: []id.TimecardID{locked.ID},
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	if err := handle.Batches.Create(context.Background(), batch); err != nil {
		t.Fatalf("seed batch: %v", err)
	}

	req := QueryRequest{
		UserID:    userID,
		View:      ViewTimecards,
		StartDate: monday,
		EndDate:   monday.AddDate(0, 0, 13),
	}
	if err := req.Normalize(time.Now()); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	result, err := svc.Query(context.Background(), handle, req)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(result.Timecards) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Timecards))
	}

	byID := make(map[id.TimecardID]TimecardRecord)
	for _, record := range result.Timecards {
		byID[record.Timecard.ID] = record
	}
	if !byID[locked.ID].Lock.Locked {
		t.Fatal("batched timecard must report locked")
	}
	if byID[free.ID].Lock.Locked {
		t.Fatal("unbatched timecard must report unlocked")
	}
}

func TestQuerySummaryView(t *testing.T) {
	svc := newService()
	handle := datastore.NewMemoryHandle(id.TenantID(uuid.New()), "tenant_acme")
	userID := id.UserID(uuid.New())
	monday := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	card := &models.Timecard{
		ID:          id.TimecardID(uuid.New()),
		UserID:      userID,
		PeriodStart: monday,
		PeriodEnd:   monday.AddDate(0, 0, 6),
		Punches:     punchPair(monday, 9, 17),
	}
	if err := handle.Timecards.Create(context.Background(), card); err != nil {
		t.Fatalf("seed timecard: %v", err)
	}

	req := QueryRequest{UserID: userID, View: ViewSummary, StartDate: monday, EndDate: monday.AddDate(0, 0, 6)}
	result, err := svc.Query(context.Background(), handle, req)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if result.Summary == nil || result.Summary.TotalMinutes != 8*60 {
		t.Fatalf("summary = %+v", result.Summary)
	}
	if result.Timecards != nil {
		t.Fatal("summary view must not carry raw timecards")
	}
}
