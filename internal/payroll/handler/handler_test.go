package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"punchgate/internal/audit"
	"punchgate/internal/datastore"
	identitymodels "punchgate/internal/identity/models"
	identityservice "punchgate/internal/identity/service"
	"punchgate/internal/payroll/models"
	"punchgate/internal/payroll/service"
	"punchgate/internal/pipeline"
	tenantmodels "punchgate/internal/tenantdir/models"
	id "punchgate/pkg/domain"
	"punchgate/pkg/platform/httputil"
	"punchgate/pkg/platform/middleware/metadata"
	"punchgate/pkg/requestcontext"
)

type handlerFixture struct {
	router *chi.Mux
	handle *datastore.Handle
	events *audit.MemoryStore

	tenant   *tenantmodels.Tenant
	session  id.SessionID
	timecard *models.Timecard
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	tenant, err := tenantmodels.NewTenant(id.TenantID(uuid.New()), "Acme Staffing", "tenant_acme", []string{"acme"}, time.Now())
	if err != nil {
		t.Fatalf("new tenant: %v", err)
	}

	f := &handlerFixture{
		handle: datastore.NewMemoryHandle(tenant.ID, tenant.DatastoreName),
		events: audit.NewMemoryStore(),
		tenant: tenant,
	}

	publisher := audit.NewPublisher(8, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = audit.NewWorker(f.events, publisher.Inbox(), logger).Run(ctx)
	}()

	guard := service.NewLockGuard(logger, service.WithAudit(publisher), service.WithRetryBackoff(time.Millisecond))
	h := New(guard, publisher, logger)

	authorized := &pipeline.AuthorizedContext{
		Identity: &identityservice.Identity{
			User: &identitymodels.User{
				ID:               id.UserID(uuid.New()),
				DatabaseUser:     true,
				TenantMembership: []id.TenantID{tenant.ID},
			},
			SessionID: id.SessionID(uuid.New()),
		},
		Tenant: tenant,
		Store:  f.handle,
	}
	f.session = authorized.Identity.SessionID

	f.router = chi.NewRouter()
	f.router.Use(metadata.ClientMetadata)
	f.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := pipeline.NewContext(r.Context(), authorized)
			ctx = requestcontext.WithSessionID(ctx, authorized.Identity.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	h.Register(f.router)

	start := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	f.timecard = &models.Timecard{
		ID:          id.TimecardID(uuid.New()),
		UserID:      authorized.Identity.User.ID,
		PeriodStart: start,
		PeriodEnd:   start.AddDate(0, 0, 6),
		Punches: []models.Punch{
			{ID: id.PunchID(uuid.New()), Kind: models.PunchIn, At: start.Add(9 * time.Hour)},
			{ID: id.PunchID(uuid.New()), Kind: models.PunchOut, At: start.Add(17 * time.Hour)},
		},
		UpdatedAt: time.Now(),
	}
	if err := f.handle.Timecards.Create(context.Background(), f.timecard); err != nil {
		t.Fatalf("seed timecard: %v", err)
	}
	return f
}

func (f *handlerFixture) lockTimecard(t *testing.T) *models.PayrollBatch {
	t.Helper()
	batch := &models.PayrollBatch{
		ID:                id.BatchID(uuid.New()),
		Status:            models.BatchStatusProcessing,
		MemberTimecardIDs: []id.TimecardID{f.timecard.ID},
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	if err := f.handle.Batches.Create(context.Background(), batch); err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	return batch
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, httputil.Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Set("User-Agent", "punchgate-kiosk/2.1")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env httputil.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return rec, env
}

func TestPayrollStatusUnlocked(t *testing.T) {
	f := newHandlerFixture(t)

	rec, env := f.do(t, http.MethodGet, "/timecards/"+f.timecard.ID.String()+"/payroll-status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !env.Success {
		t.Fatalf("expected success envelope, got %+v", env)
	}

	payload, err := json.Marshal(env.Data)
	if err != nil {
		t.Fatalf("remarshal data: %v", err)
	}
	var status models.LockStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Locked {
		t.Fatal("expected unlocked")
	}
}

func TestPayrollStatusLocked(t *testing.T) {
	f := newHandlerFixture(t)
	batch := f.lockTimecard(t)

	rec, env := f.do(t, http.MethodGet, "/timecards/"+f.timecard.ID.String()+"/payroll-status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	payload, _ := json.Marshal(env.Data)
	var status models.LockStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Locked {
		t.Fatal("expected locked")
	}
	if status.BatchID == nil || *status.BatchID != batch.ID {
		t.Fatal("expected the locking batch reported")
	}
}

func TestPayrollStatusRejectsMalformedID(t *testing.T) {
	f := newHandlerFixture(t)

	rec, env := f.do(t, http.MethodGet, "/timecards/not-a-uuid/payroll-status", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if env.Error != httputil.ErrMissingParameters {
		t.Fatalf("expected %s, got %s", httputil.ErrMissingParameters, env.Error)
	}
}

func TestUpdatePunch(t *testing.T) {
	f := newHandlerFixture(t)
	punch := f.timecard.Punches[0]

	rec, env := f.do(t, http.MethodPut,
		"/timecards/"+f.timecard.ID.String()+"/punches/"+punch.ID.String(),
		map[string]any{"kind": "in", "at": punch.At.Add(15 * time.Minute), "note": "badge reader was down"},
	)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %+v", rec.Code, env)
	}

	stored, err := f.handle.Timecards.FindByID(context.Background(), f.timecard.ID)
	if err != nil {
		t.Fatalf("reload timecard: %v", err)
	}
	updated := stored.FindPunch(punch.ID)
	if updated == nil || updated.Note != "badge reader was down" {
		t.Fatal("punch edit not persisted")
	}
}

func TestUpdatePunchRejectedWhenLocked(t *testing.T) {
	f := newHandlerFixture(t)
	f.lockTimecard(t)
	punch := f.timecard.Punches[0]

	rec, env := f.do(t, http.MethodPut,
		"/timecards/"+f.timecard.ID.String()+"/punches/"+punch.ID.String(),
		map[string]any{"kind": "in", "at": punch.At.Add(15 * time.Minute)},
	)
	if rec.Code != http.StatusLocked {
		t.Fatalf("expected 423, got %d", rec.Code)
	}
	if env.Error != httputil.ErrTimecardLocked {
		t.Fatalf("expected %s, got %s", httputil.ErrTimecardLocked, env.Error)
	}

	// The edit must not have happened.
	stored, err := f.handle.Timecards.FindByID(context.Background(), f.timecard.ID)
	if err != nil {
		t.Fatalf("reload timecard: %v", err)
	}
	if !stored.FindPunch(punch.ID).At.Equal(punch.At) {
		t.Fatal("locked timecard was edited")
	}

	deadline := time.After(time.Second)
	for {
		events, listErr := f.events.ListByAction(context.Background(), audit.ActionEditRejectedLocked)
		if listErr != nil {
			t.Fatalf("list events: %v", listErr)
		}
		if len(events) == 1 {
			if events[0].Subject != f.timecard.ID.String() {
				t.Fatalf("event subject = %q", events[0].Subject)
			}
			if events[0].SessionID != f.session.String() {
				t.Fatalf("event session = %q", events[0].SessionID)
			}
			if events[0].ClientIP != "203.0.113.9" {
				t.Fatalf("event client IP = %q", events[0].ClientIP)
			}
			if !strings.Contains(events[0].UserAgent, "punchgate-kiosk") {
				t.Fatalf("event user agent = %q", events[0].UserAgent)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected an edit-rejected audit event")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestUpdatePunchValidation(t *testing.T) {
	f := newHandlerFixture(t)
	punch := f.timecard.Punches[0]
	path := "/timecards/" + f.timecard.ID.String() + "/punches/" + punch.ID.String()

	rec, env := f.do(t, http.MethodPut, path, map[string]any{"kind": "sideways", "at": time.Now()})
	if rec.Code != http.StatusBadRequest || env.Error != httputil.ErrMissingParameters {
		t.Fatalf("expected 400 %s for bad kind, got %d %s", httputil.ErrMissingParameters, rec.Code, env.Error)
	}

	rec, env = f.do(t, http.MethodPut, path, map[string]any{"kind": "in"})
	if rec.Code != http.StatusBadRequest || env.Error != httputil.ErrMissingParameters {
		t.Fatalf("expected 400 %s for missing at, got %d %s", httputil.ErrMissingParameters, rec.Code, env.Error)
	}
}

func TestUpdatePunchUnknownPunch(t *testing.T) {
	f := newHandlerFixture(t)

	rec, env := f.do(t, http.MethodPut,
		"/timecards/"+f.timecard.ID.String()+"/punches/"+uuid.NewString(),
		map[string]any{"kind": "in", "at": time.Now()},
	)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if env.Error != httputil.ErrNotFound {
		t.Fatalf("expected %s, got %s", httputil.ErrNotFound, env.Error)
	}
}
