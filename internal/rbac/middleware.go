package rbac

import (
	"net/http"

	"log/slog"

	"github.com/conformia/conformia/internal/shared"
)

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Evaluator *Evaluator
	Logger    *slog.Logger
}

// Require ensures the session actor may perform action on resource.
func (m Middleware) Require(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			if !m.Evaluator.Authorize(Role(actor.Role), resource, action) {
				if m.Logger != nil {
					m.Logger.Warn("authorization denied",
						slog.String("role", actor.Role),
						slog.String("resource", resource),
						slog.String("action", action))
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
