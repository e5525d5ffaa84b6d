// Package handler exposes the attendance query endpoint.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"punchgate/internal/attendance/service"
	"punchgate/internal/pipeline"
	id "punchgate/pkg/domain"
	dErrors "punchgate/pkg/domain-errors"
	"punchgate/pkg/platform/httputil"
	"punchgate/pkg/requestcontext"
)

// ErrAttendanceData is the stable error string clients match on when an
// attendance query fails after authorization succeeded.
const ErrAttendanceData = "ATTENDANCE_DATA_ERROR"

const dateLayout = "2006-01-02"

// Handler wires the attendance endpoint to the attendance service.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

func New(service *service.Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the attendance endpoints. The group must run the full
// pipeline middleware with database-user and tenant gates.
func (h *Handler) Register(r chi.Router) {
	r.Post("/attendance/query", h.HandleQuery)
}

type queryRequest struct {
	UserID    string `json:"userId"`
	View      string `json:"view"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// HandleQuery handles POST /api/attendance/query.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authorized, ok := pipeline.FromContext(ctx)
	if !ok || authorized.Store == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeMissingTenant, "tenant context required"))
		return
	}

	body, ok := httputil.DecodeJSON[queryRequest](w, r, h.logger)
	if !ok {
		return
	}

	req := service.QueryRequest{
		View:   service.View(body.View),
		UserID: authorized.Identity.User.ID,
	}
	if body.UserID != "" {
		userID, err := id.ParseUserID(body.UserID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		req.UserID = userID
	}
	var err error
	if req.StartDate, err = parseDate(body.StartDate, "startDate"); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.EndDate, err = parseDate(body.EndDate, "endDate"); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := req.Normalize(requestcontext.Now(ctx)); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Query(ctx, authorized.Store, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "attendance query failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", req.UserID.String(),
			"tenant_id", authorized.Tenant.ID.String(),
			"error", err,
		)
		httputil.WriteErrorAs(w, err, ErrAttendanceData)
		return
	}
	httputil.WriteSuccess(w, result, "attendance query")
}

func parseDate(raw, field string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeInvalidInput, field+" must be formatted YYYY-MM-DD")
	}
	return parsed, nil
}
