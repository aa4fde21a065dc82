package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fxtoolworks/licensebot/api/controllers"
	"github.com/fxtoolworks/licensebot/api/middleware"
	"github.com/fxtoolworks/licensebot/internal/licensing"
	"github.com/fxtoolworks/licensebot/pkg/config"
	"github.com/fxtoolworks/licensebot/pkg/db"
	"github.com/fxtoolworks/licensebot/pkg/logger"
	"github.com/fxtoolworks/licensebot/pkg/redis"
)

// RouterParams carries everything the HTTP surface needs. The API is
// deliberately small: health probes, metrics and the public validation
// endpoint used by deployed tools.
type RouterParams struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        db.Pinger
	Redis     *redis.Client
	Validator licensing.Validator
	Metrics   prometheus.Gatherer
}

func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, map[string]controllers.Pinger{
			"database": p.DB,
			"redis":    pinger(p.Redis),
		}))
	})

	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Metrics, promhttp.HandlerOpts{}))
	}

	validatePolicy := middleware.NewValidateRateLimitPolicy(p.Config.ValidateRateLimit)
	r.Route("/api/public", func(r chi.Router) {
		r.With(middleware.ValidateRateLimit(validatePolicy, p.Redis, p.Logger)).
			Post("/licenses/validate", controllers.PublicValidate(p.Validator, p.Logger))
	})

	return r
}

// pinger avoids handing a typed nil to the health check.
func pinger(c *redis.Client) controllers.Pinger {
	if c == nil {
		return nil
	}
	return c
}
