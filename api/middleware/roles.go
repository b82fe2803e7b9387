package middleware

import (
	"net/http"
	"slices"

	"github.com/angelmondragon/storefront-fulfillment/api/responses"
	pkgauth "github.com/angelmondragon/storefront-fulfillment/pkg/auth"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

// RequireRole admits callers whose token role is one of allowed. It must sit
// behind AdminAuth; a request without an actor is treated as anonymous.
func RequireRole(logg *logger.Logger, allowed ...pkgauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := pkgauth.Role(RoleFromContext(r.Context()))
			var err error
			switch {
			case role == "":
				err = pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
			case !slices.Contains(allowed, role):
				err = pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted").
					WithDetails(map[string]any{"role": role})
			default:
				next.ServeHTTP(w, r)
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
		})
	}
}
