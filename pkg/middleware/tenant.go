// pkg/middleware/tenant.go
package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ssorelay/pkg/problems"
	"ssorelay/pkg/tenants"
)

type ctxTenantKey struct{}

// WithTenant resolves the tenant named by the {param} route segment. It must be
// attached inline (r.With) so chi has already matched the route. Unknown
// tenants get the ConfigNotFound response and next is never called.
func WithTenant(prov tenants.Provider, param string, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, param)
			t, err := prov.Resolve(r.Context(), id)
			if err != nil {
				log.Warnw("tenant not resolved", "tenant", id, "request_id", RequestIDFrom(r.Context()), "err", err)
				problems.Write(w, problems.New(problems.ConfigNotFound, err))
				return
			}
			ctx := context.WithValue(r.Context(), ctxTenantKey{}, t)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TenantFrom(ctx context.Context) (tenants.Config, bool) {
	t, ok := ctx.Value(ctxTenantKey{}).(tenants.Config)
	return t, ok
}
