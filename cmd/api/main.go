package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	_ "time/tzdata" // export time zones without system zoneinfo

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"parkspot/internal/api"
	"parkspot/internal/config"
	"parkspot/internal/database"
	"parkspot/internal/domain"
	"parkspot/internal/events"
	"parkspot/internal/logging"
	"parkspot/internal/metrics"
	"parkspot/internal/models"
	"parkspot/internal/payment"
	"parkspot/internal/repository"
	"parkspot/internal/service"
	"parkspot/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, base, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}
	logger := base.With().Str("component", "api-main").Logger()

	db, err := database.NewDB(cfg.Database.Path, logging.Component(&base, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	locks, closeLocks := initLockStore(ctx, cfg, &base)
	defer closeLocks()

	gateway := payment.NewClient(cfg.Payment)
	verifier := payment.NewVerifier(cfg.Payment.KeySecret)
	eventBus := events.NewEventBus()
	tokens := service.NewJWTIssuer(cfg.API.Auth.JWTSecret, cfg.API.Auth.TokenTTL)

	locations := service.NewLocationService(db, logging.Component(&base, "locations"))
	if err := seedLocations(ctx, locations, &logger); err != nil {
		return err
	}

	svc := api.Services{
		Users: service.NewUserService(db, tokens, logging.Component(&base, "users")),
		Bookings: service.NewBookingService(db, db, gateway, locks, eventBus,
			service.BookingOptionsFromConfig(cfg.Booking, cfg.Payment.Currency), logging.Component(&base, "bookings")),
		Payments:  service.NewPaymentService(db, gateway, verifier, eventBus, cfg.Payment.Currency, logging.Component(&base, "payments")),
		Locations: locations,
		Stats:     service.NewStatsService(db),
		Tokens:    tokens,
	}

	// Background workers use the database and the Kafka publisher, so both
	// stay open until the workers have returned.
	var workers sync.WaitGroup

	closeRelay, err := startEventRelay(ctx, &workers, cfg, db, eventBus, &base)
	if err != nil {
		return err
	}
	defer closeRelay()

	sweeper := worker.NewSweeper(db, eventBus, cfg.Booking, logging.Component(&base, "sweeper"))
	spawn(ctx, &workers, sweeper.Start)

	backup := database.NewBackupService(db, cfg.Backup, logging.Component(&base, "backup"))
	spawn(ctx, &workers, backup.Start)

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.API, svc, db, logging.Component(&base, "http"))
	err = serve(ctx, httpServer, &logger)

	stop()
	workers.Wait()
	logger.Info().Msg("background workers stopped")
	return err
}

func spawn(ctx context.Context, wg *sync.WaitGroup, fn func(context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		fn(ctx)
	}()
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, *baseLogger, closer, nil
}

// initLockStore prefers Redis and falls back to in-process locks whenever
// Redis is unconfigured or unreachable.
func initLockStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.LockStore, func()) {
	memory := repository.NewMemoryLockStore()
	if cfg.Redis.Address == "" {
		logger.Info().Msg("redis not configured, using in-memory slot locks")
		return memory, func() {}
	}

	client := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, starting on in-memory locks")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}

	store := repository.NewFailoverLockStore(repository.NewRedisLockStore(client), memory, logging.Component(logger, "locks"))
	return store, func() { _ = repository.Close(client) }
}

func seedLocations(ctx context.Context, svc *service.LocationService, logger *zerolog.Logger) error {
	path := os.Getenv("LOCATIONS_PATH")
	if path == "" {
		path = "configs/locations.yaml"
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info().Str("locations_path", path).Msg("no seed locations file")
		return nil
	}
	if err != nil {
		logger.Error().Err(err).Str("locations_path", path).Msg("read locations")
		return err
	}

	var seed struct {
		Locations []models.ParkingLocation `yaml:"locations"`
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		logger.Error().Err(err).Str("locations_path", path).Msg("parse locations")
		return err
	}
	for i := range seed.Locations {
		seed.Locations[i].Normalize()
	}

	if _, err := svc.Seed(ctx, seed.Locations); err != nil {
		return fmt.Errorf("seed locations: %w", err)
	}
	return nil
}

// startEventRelay forwards booking events to Kafka through the outbox.
// Without Kafka nothing consumes the events, so no outbox rows are written.
func startEventRelay(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, db *database.DB, bus *events.EventBus, logger *zerolog.Logger) (func(), error) {
	if !cfg.Kafka.Enabled {
		return func() {}, nil
	}

	publisher, err := events.NewKafkaPublisher(cfg.Kafka, logging.Component(logger, "kafka"))
	if err != nil {
		return nil, fmt.Errorf("init kafka publisher: %w", err)
	}

	relay := worker.NewEventRelay(db, publisher, worker.DefaultRetryPolicy, logging.Component(logger, "relay"))
	relay.Subscribe(bus)
	spawn(ctx, wg, relay.Start)

	logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("event relay started")
	return func() { _ = publisher.Close() }, nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
		return err
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
