package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/iskolarlink/iskolarlink-backend/api/responses"
	"github.com/iskolarlink/iskolarlink-backend/pkg/config"
	pkgerrors "github.com/iskolarlink/iskolarlink-backend/pkg/errors"
	"github.com/iskolarlink/iskolarlink-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is any dependency that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-IskolarLink-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency and fails with 503 on the first
// one that does not answer.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-IskolarLink-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := make(map[string]string, len(deps))
		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable")
				if logg != nil {
					responses.WriteError(logg.WithField(r.Context(), "dependency", name), logg, w, wrapped)
				} else {
					responses.WriteError(r.Context(), nil, w, wrapped)
				}
				return
			}
			checks[name] = "ok"
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
