package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-fulfillment/api/responses"
	pkgauth "github.com/angelmondragon/storefront-fulfillment/pkg/auth"
	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

// AdminAuth verifies the bearer token minted by the identity service and
// seeds the request context with the admin's id and role.
func AdminAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			if !claims.Role.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "back-office role required"))
				return
			}

			ctx := WithActor(r.Context(), claims.UserID.String(), string(claims.Role))
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
				ctx = logg.WithField(ctx, "actor_role", string(claims.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) string {
	token := strings.TrimSpace(header)
	if len(token) >= 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
