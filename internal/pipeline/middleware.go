package pipeline

import (
	"context"
	"net/http"
	"strings"

	tenantservice "punchgate/internal/tenantdir/service"
	"punchgate/pkg/platform/httputil"
	"punchgate/pkg/requestcontext"
)

type contextKey struct{}

// NewContext returns a context carrying the AuthorizedContext. Used by the
// middleware and by handler tests that skip the HTTP chain.
func NewContext(ctx context.Context, authorized *AuthorizedContext) context.Context {
	return context.WithValue(ctx, contextKey{}, authorized)
}

// FromContext returns the AuthorizedContext injected by Require.
func FromContext(ctx context.Context) (*AuthorizedContext, bool) {
	authorized, ok := ctx.Value(contextKey{}).(*AuthorizedContext)
	return authorized, ok
}

// Require runs the pipeline for every request and injects the resulting
// AuthorizedContext. Requests failing any gate are answered here and never
// reach the handler.
func (p *Pipeline) Require(opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			hints := tenantservice.Hints{
				TenantAlias: r.Header.Get("X-Tenant"),
				Host:        r.Host,
			}
			authorized, err := p.Authorize(ctx, bearerToken(r), hints, opts)
			if err != nil {
				p.logger.WarnContext(ctx, "request failed authorization",
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, err)
				return
			}

			ctx = NewContext(ctx, authorized)
			ctx = requestcontext.WithUserID(ctx, authorized.Identity.User.ID)
			ctx = requestcontext.WithSessionID(ctx, authorized.Identity.SessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
