package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"parkspot/internal/config"
	"parkspot/internal/domain"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Services are the use cases exposed over HTTP.
type Services struct {
	Users     domain.UserService
	Bookings  domain.BookingService
	Payments  domain.PaymentService
	Locations domain.LocationService
	Stats     domain.StatsService
	Tokens    domain.TokenIssuer
}

// HTTPServer serves the JSON API under /api.
type HTTPServer struct {
	cfg      config.APIConfig
	svc      Services
	db       Pinger
	server   *http.Server
	auth     *HTTPAuth
	limiter  *rateLimiter
	validate *requestValidator
	logger   *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, svc Services, db Pinger, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	srv := &HTTPServer{
		cfg:      cfg,
		svc:      svc,
		db:       db,
		auth:     NewHTTPAuth(cfg.Auth, svc.Tokens),
		limiter:  newRateLimiter(cfg.RateLimit),
		validate: newRequestValidator(),
		logger:   logger,
	}

	readHeaderTimeout := cfg.HTTP.ReadHeaderTimeout
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = 5 * time.Second
	}
	writeTimeout := cfg.HTTP.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 15 * time.Second
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}
	return srv
}

// Handler exposes the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(s.cfg.CORS))
	r.Use(s.limiter.middleware)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Post("/signup", s.handleSignup)
		r.Post("/login", s.handleLogin)
		r.With(s.auth.Authenticate).Get("/user", s.handleProfile)

		r.Route("/bookings", func(r chi.Router) {
			r.With(s.auth.Authenticate).Post("/", s.handleCreateBooking)
			r.With(s.auth.RequireAdmin).Get("/", s.handleListBookings)
			r.With(s.auth.Authenticate).Get("/user", s.handleListUserBookings)
			r.With(s.auth.RequireAdmin).Get("/export", s.handleExportBookings)
			r.Get("/{id}", s.handleGetBooking)
			r.With(s.auth.Authenticate).Put("/{id}/cancel", s.handleCancelBooking)
			r.With(s.auth.RequireAdmin).Delete("/{id}", s.handleDeleteBooking)
		})

		r.With(s.auth.Authenticate).Post("/create-order", s.handleCreateOrder)
		r.Post("/verify-payment", s.handleVerifyPayment)

		r.Route("/parking-locations", func(r chi.Router) {
			r.Get("/", s.handleListLocations)
			r.Get("/{id}", s.handleGetLocation)
			r.Group(func(r chi.Router) {
				r.Use(s.auth.RequireAdmin)
				r.Post("/", s.handleCreateLocation)
				r.Put("/{id}", s.handleUpdateLocation)
				r.Delete("/{id}", s.handleDeleteLocation)
			})
		})

		r.With(s.auth.RequireAdmin).Get("/stats", s.handleStats)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "Route not found")
	})
	return r
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Error().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
