package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/storefront-fulfillment/api/responses"
	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is any dependency the readiness check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency; nil entries are skipped so
// optional services such as redis can be left unconfigured.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		var failed error
		for name, dep := range deps {
			if dep == nil {
				checks[name] = "skipped"
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				checks[name] = "down"
				failed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable").WithDetails(checks)
				continue
			}
			checks[name] = "ok"
		}
		if failed != nil {
			responses.WriteError(r.Context(), logg, w, failed)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
