package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/angelmondragon/storefront-fulfillment/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

// Recoverer turns a handler panic into a 500 envelope. http.ErrAbortHandler
// keeps its net/http meaning and is re-raised.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				cause := fmt.Errorf("panic in %s %s: %v", r.Method, r.URL.Path, rec)
				if logg != nil {
					ctx := logg.WithField(r.Context(), "stack", string(debug.Stack()))
					logg.Error(ctx, "handler panicked", cause)
				}
				// Already logged above; WriteError stays quiet.
				responses.WriteError(r.Context(), nil, w, pkgerrors.Wrap(pkgerrors.CodeInternal, cause, "unexpected failure"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
