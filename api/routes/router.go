package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utilitrack/utilitrack-backend/api/controllers"
	"github.com/utilitrack/utilitrack-backend/api/middleware"
	"github.com/utilitrack/utilitrack-backend/pkg/config"
	"github.com/utilitrack/utilitrack-backend/pkg/logger"
)

// NewRouter assembles the billing worker's HTTP surface: health probes,
// the billing status endpoint, and Prometheus metrics.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	status controllers.StatusProvider,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	r.Route("/api/v1/billing", func(r chi.Router) {
		r.Get("/status", controllers.BillingStatus(status))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return r
}
