package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/licensedesk/api/routes"
	"github.com/angelmondragon/licensedesk/internal/auth"
	"github.com/angelmondragon/licensedesk/internal/notify"
	"github.com/angelmondragon/licensedesk/internal/requests"
	"github.com/angelmondragon/licensedesk/internal/users"
	"github.com/angelmondragon/licensedesk/pkg/config"
	"github.com/angelmondragon/licensedesk/pkg/db"
	"github.com/angelmondragon/licensedesk/pkg/instance"
	"github.com/angelmondragon/licensedesk/pkg/logger"
	"github.com/angelmondragon/licensedesk/pkg/metrics"
	"github.com/angelmondragon/licensedesk/pkg/migrate"
	"github.com/angelmondragon/licensedesk/pkg/redis"
	"github.com/angelmondragon/licensedesk/pkg/security"
	"github.com/angelmondragon/licensedesk/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	instanceID := instance.ID(cfg.App.InstanceID)
	logg = logger.New(logger.Options{
		ServiceName: "api",
		InstanceID:  instanceID,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, instanceID, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, instanceID string, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.EnsureSchema(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, redisClient.Close())
		}()
	} else {
		logg.Warn(ctx, "redis not configured: login rate limits, idempotency replay and bus relay disabled")
	}

	store, err := storage.New(ctx, cfg.Storage, logg)
	if err != nil {
		return err
	}
	var uploadsDir string
	if local, ok := store.(*storage.LocalStore); ok {
		uploadsDir = local.Dir()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	busMetrics := metrics.NewBusMetrics(registry)

	hub := notify.NewHub(logg, busMetrics)
	defer hub.Close()

	var relay *notify.RedisRelay
	if redisClient != nil {
		relay, err = notify.NewRedisRelay(redisClient, cfg.Bus.RelayChannel, instanceID, hub, busMetrics, logg)
		if err != nil {
			return err
		}
		hub.SetRelay(relay, cfg.Bus.RelayTimeout)
	}

	userRepo := users.NewRepository(dbClient.DB())
	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:  userRepo,
		JWTConfig: cfg.JWT,
		Hasher:    security.NewHasher(cfg.Password),
		Logger:    logg,
	})
	if err != nil {
		return err
	}

	requestsService, err := requests.NewService(requests.ServiceParams{
		Repo:    requests.NewRepository(dbClient.DB()),
		Blobs:   store,
		Bus:     hub,
		Metrics: metrics.NewWorkflowMetrics(registry),
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"storage": cfg.Storage.Backend,
		"db":      dbClient.Driver(),
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Storage:    store,
			Hub:        hub,
			Auth:       authService,
			Requests:   requestsService,
			Metrics:    registry,
			UploadsDir: uploadsDir,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(gctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logg.Info(ctx, "shutting down api server")
		// Viewer sessions are hijacked connections that Shutdown does not
		// wait for; closing the hub ends them.
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
