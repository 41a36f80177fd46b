package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iskolarlink/iskolarlink-backend/api/controllers"
	"github.com/iskolarlink/iskolarlink-backend/api/middleware"
	"github.com/iskolarlink/iskolarlink-backend/internal/trackers"
	"github.com/iskolarlink/iskolarlink-backend/pkg/config"
	"github.com/iskolarlink/iskolarlink-backend/pkg/enums"
	"github.com/iskolarlink/iskolarlink-backend/pkg/logger"
	"github.com/iskolarlink/iskolarlink-backend/pkg/redis"
)

const trackersPrefix = "/api/admin/v1/trackers"

type redisBackend interface {
	redis.IdempotencyStore
	redis.Pinger
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient redisBackend,
	gatherer prometheus.Gatherer,
	trackerService trackers.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisClient,
		}))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	idempotency := middleware.Idempotency(redisClient, consumeRules(cfg), logg)

	r.Route(trackersPrefix, func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))

		for _, program := range trackers.Programs() {
			program := program
			r.Route(program.BasePath, func(r chi.Router) {
				r.Get("/", controllers.TrackerList(trackerService, program.Program, logg))
				r.Put("/{scholarId}/budget", controllers.TrackerSetBudget(trackerService, program.Program, logg))
				r.With(idempotency).Put("/{scholarId}/"+program.ConsumeVerb, controllers.TrackerConsume(trackerService, program.Program, logg))
				r.Put("/{scholarId}/reset", controllers.TrackerReset(trackerService, program.Program, logg))
				r.Get("/{scholarId}/history", controllers.TrackerHistory(trackerService, program.Program, logg))
			})
		}
	})

	return r
}

// consumeRules guards every consume route. The key is optional so clients
// that never send one keep working.
func consumeRules(cfg *config.Config) []middleware.IdempotencyRule {
	programs := trackers.Programs()
	rules := make([]middleware.IdempotencyRule, 0, len(programs))
	for _, program := range programs {
		rules = append(rules, middleware.IdempotencyRule{
			Method:   http.MethodPut,
			Pattern:  trackersPrefix + program.BasePath + "/{scholarId}/" + program.ConsumeVerb,
			TTL:      cfg.Trackers.IdempotencyTTL,
			Optional: true,
		})
	}
	return rules
}
