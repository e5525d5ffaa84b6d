// Package handler exposes the identity endpoints: the current-user lookup
// and the tenant-switch operation.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	identitymodels "punchgate/internal/identity/models"
	"punchgate/internal/pipeline"
	tenantmodels "punchgate/internal/tenantdir/models"
	dErrors "punchgate/pkg/domain-errors"
	"punchgate/pkg/platform/httputil"
	"punchgate/pkg/requestcontext"
)

// Service defines the identity operations the handler needs.
type Service interface {
	SwitchTenant(ctx context.Context, user *identitymodels.User, tenantURL string) (*tenantmodels.Tenant, error)
}

// Handler wires identity endpoints to the identity service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the identity endpoints. The group must already run the
// authentication-only pipeline middleware.
func (h *Handler) Register(r chi.Router) {
	r.Get("/auth/me", h.HandleMe)
	r.Post("/auth/tenant-switch", h.HandleTenantSwitch)
}

// meResponse is the enhanced user record returned to clients.
type meResponse struct {
	User            *identitymodels.User `json:"user"`
	CanonicalTenant *tenantmodels.Tenant `json:"canonicalTenant,omitempty"`
}

// HandleMe handles GET /api/auth/me.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	authorized, ok := pipeline.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "authentication required"))
		return
	}
	httputil.WriteSuccess(w, meResponse{
		User:            authorized.Identity.User,
		CanonicalTenant: authorized.Tenant,
	}, "current user")
}

type tenantSwitchRequest struct {
	TenantURL string `json:"tenantUrl"`
}

type tenantSwitchResponse struct {
	Tenant *tenantmodels.Tenant `json:"tenant"`
}

// HandleTenantSwitch handles POST /api/auth/tenant-switch.
func (h *Handler) HandleTenantSwitch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authorized, ok := pipeline.FromContext(ctx)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "authentication required"))
		return
	}

	req, ok := httputil.DecodeJSON[tenantSwitchRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.TenantURL == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "tenantUrl is required"))
		return
	}

	tenant, err := h.service.SwitchTenant(ctx, authorized.Identity.User, req.TenantURL)
	if err != nil {
		h.logger.WarnContext(ctx, "tenant switch rejected",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", authorized.Identity.User.ID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteSuccess(w, tenantSwitchResponse{Tenant: tenant}, "tenant switched")
}
