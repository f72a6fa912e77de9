package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/licensedesk/api/controllers"
	"github.com/angelmondragon/licensedesk/api/middleware"
	"github.com/angelmondragon/licensedesk/internal/auth"
	"github.com/angelmondragon/licensedesk/internal/notify"
	"github.com/angelmondragon/licensedesk/internal/requests"
	"github.com/angelmondragon/licensedesk/pkg/config"
	"github.com/angelmondragon/licensedesk/pkg/db"
	"github.com/angelmondragon/licensedesk/pkg/logger"
	"github.com/angelmondragon/licensedesk/pkg/redis"
	"github.com/angelmondragon/licensedesk/pkg/storage"
)

// RouterParams collects what the HTTP surface is built from. Redis, Metrics
// and UploadsDir are optional.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    *redis.Client
	Storage  storage.Store
	Hub      *notify.Hub
	Auth     auth.Service
	Requests requests.Service
	Metrics  prometheus.Gatherer

	// UploadsDir is served under /uploads when blobs are kept on local disk.
	UploadsDir string
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.Access.CORSOrigins),
	)

	// A nil *redis.Client must reach the middleware as a nil interface.
	var (
		rateStore   middleware.RateLimitStore
		replayStore redis.IdempotencyStore
	)
	if p.Redis != nil {
		rateStore = p.Redis
		replayStore = p.Redis
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginUsernameLimit,
		cfg.Access.TrustProxyHeaders,
	)
	maxUpload := cfg.Storage.MaxUploadBytes()
	idempotent := middleware.Idempotency(replayStore, middleware.IdempotencyOptions{
		TTL:     cfg.Idempotency.TTL,
		LockTTL: cfg.Idempotency.LockTTL,
		MaxBody: maxUpload,
	}, logg)

	readiness := map[string]controllers.Pinger{"db": p.DB}
	if p.Redis != nil {
		readiness["redis"] = p.Redis
	}
	if p.Storage != nil {
		readiness["storage"] = p.Storage
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if p.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Metrics, promhttp.HandlerOpts{}))
	}

	if p.UploadsDir != "" {
		r.Handle(storage.LocalURLPrefix+"/*", controllers.Uploads(storage.LocalURLPrefix, p.UploadsDir))
	}

	r.Route("/auth", func(r chi.Router) {
		r.With(
			middleware.IPAllowlist(cfg.Access, logg),
			middleware.AuthRateLimit(loginPolicy, rateStore, logg),
		).Post("/login", controllers.AuthLogin(p.Auth, logg))
		r.With(middleware.Auth(cfg.JWT, middleware.TokenFromHeader, logg)).Get("/me", controllers.AuthMe(p.Auth, logg))
	})

	r.Route("/requests", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, middleware.TokenFromHeader, logg))

		r.Get("/", controllers.RequestsList(p.Requests, logg))
		r.With(idempotent).Post("/", controllers.RequestsCreate(p.Requests, maxUpload, logg))
		r.Route("/{requestId}", func(r chi.Router) {
			r.Put("/license", controllers.RequestsGrant(p.Requests, logg))
			r.Put("/reject", controllers.RequestsReject(p.Requests, logg))
			r.Put("/accounts-check", controllers.RequestsAccountsCheck(p.Requests, logg))
			r.With(idempotent).Put("/finalize", controllers.RequestsFinalize(p.Requests, maxUpload, logg))
		})
	})

	if p.Hub != nil {
		r.With(middleware.Auth(cfg.JWT, middleware.TokenFromHeaderOrQuery, logg)).
			Handle("/ws", controllers.ViewerSession(p.Hub, cfg.Bus.WriteTimeout, logg))
	}

	return r
}
