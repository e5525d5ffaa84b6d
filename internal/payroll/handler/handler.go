// Package handler exposes the payroll lock status and punch edit endpoints.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"punchgate/internal/audit"
	"punchgate/internal/payroll/models"
	"punchgate/internal/payroll/service"
	"punchgate/internal/pipeline"
	id "punchgate/pkg/domain"
	dErrors "punchgate/pkg/domain-errors"
	"punchgate/pkg/platform/httputil"
	"punchgate/pkg/platform/sentinel"
	"punchgate/pkg/requestcontext"
)

// Handler wires the timecard endpoints to the lock guard.
type Handler struct {
	guard  *service.LockGuard
	audit  service.AuditRecorder
	logger *slog.Logger
}

func New(guard *service.LockGuard, recorder service.AuditRecorder, logger *slog.Logger) *Handler {
	return &Handler{guard: guard, audit: recorder, logger: logger}
}

// Register mounts the timecard endpoints. The group must run the full
// pipeline middleware with database-user and tenant gates.
func (h *Handler) Register(r chi.Router) {
	r.Get("/timecards/{timecardID}/payroll-status", h.HandlePayrollStatus)
	r.Put("/timecards/{timecardID}/punches/{punchID}", h.HandleUpdatePunch)
}

// HandlePayrollStatus handles GET /api/timecards/{timecardID}/payroll-status.
//
// This is a status display: when lock state cannot be determined the guard
// degrades to unlocked rather than failing the page.
func (h *Handler) HandlePayrollStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authorized, ok := pipeline.FromContext(ctx)
	if !ok || authorized.Store == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeMissingTenant, "tenant context required"))
		return
	}

	timecardID, err := id.ParseTimecardID(chi.URLParam(r, "timecardID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	status := h.guard.CheckLockAdvisory(ctx, authorized.Store.Batches, timecardID)
	httputil.WriteSuccess(w, status, "payroll status")
}

type updatePunchRequest struct {
	Kind string    `json:"kind"`
	At   time.Time `json:"at"`
	Note string    `json:"note"`
}

// HandleUpdatePunch handles PUT /api/timecards/{timecardID}/punches/{punchID}.
//
// The lock check is fail-closed: the edit happens only after a definitive
// "unlocked" answer from a current batch query.
func (h *Handler) HandleUpdatePunch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authorized, ok := pipeline.FromContext(ctx)
	if !ok || authorized.Store == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeMissingTenant, "tenant context required"))
		return
	}

	timecardID, err := id.ParseTimecardID(chi.URLParam(r, "timecardID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	punchID, err := id.ParsePunchID(chi.URLParam(r, "punchID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeJSON[updatePunchRequest](w, r, h.logger)
	if !ok {
		return
	}
	kind := models.PunchKind(req.Kind)
	if kind != models.PunchIn && kind != models.PunchOut {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "kind must be in or out"))
		return
	}
	if req.At.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "at is required"))
		return
	}

	status, err := h.guard.CheckLock(ctx, authorized.Store.Batches, timecardID)
	if err != nil {
		h.logger.ErrorContext(ctx, "lock check failed, refusing edit",
			"request_id", requestcontext.RequestID(ctx),
			"timecard_id", timecardID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if status.Locked {
		if h.audit != nil {
			h.audit.Emit(ctx, audit.Event{
				Action:   audit.ActionEditRejectedLocked,
				UserID:   authorized.Identity.User.ID.String(),
				TenantID: authorized.Tenant.ID.String(),
				Subject:  timecardID.String(),
				Reason:   "timecard is in batch " + status.BatchID.String(),
			})
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeLocked, "timecard is locked by payroll processing"))
		return
	}

	punch := models.Punch{ID: punchID, Kind: kind, At: req.At, Note: req.Note}
	if err := authorized.Store.Timecards.UpdatePunch(ctx, timecardID, punch, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "timecard or punch not found"))
			return
		}
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to update punch"))
		return
	}
	httputil.WriteSuccess(w, punch, "punch updated")
}
