package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/utilitrack/utilitrack-backend/api/responses"
	"github.com/utilitrack/utilitrack-backend/pkg/config"
	pkgerrors "github.com/utilitrack/utilitrack-backend/pkg/errors"
	"github.com/utilitrack/utilitrack-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// Pinger is any dependency that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-UtiliTrack-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-UtiliTrack-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		for name, dep := range deps {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "dependency not ready").
					WithDetails(map[string]string{"dependency": name})
				responses.WriteError(ctx, logg, w, wrapped)
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
