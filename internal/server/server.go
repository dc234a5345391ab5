package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hongminglow/pawmart/internal/auth"
	"github.com/hongminglow/pawmart/internal/config"
	"github.com/hongminglow/pawmart/internal/http/handlers"
	"github.com/hongminglow/pawmart/internal/middleware"
	"github.com/hongminglow/pawmart/internal/otp"
	"github.com/hongminglow/pawmart/internal/storage"
)

// Deps are the backends the API serves from.
type Deps struct {
	Store  storage.Store
	Codes  otp.Codes
	Sender otp.Sender
	Logger *zap.Logger
	// Checks are reported by /health.
	Checks map[string]handlers.Pinger
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) *Server {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           Routes(cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// Routes builds the API router.
func Routes(cfg config.Config, deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Sender == nil {
		deps.Sender = otp.LogSender{Logger: logger}
	}
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	authn := middleware.NewAuthenticator(tokens, deps.Store, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	authHandler := handlers.NewAuthHandler(deps.Store, tokens, logger)
	otpHandler := handlers.NewOTPHandler(otp.NewService(deps.Codes, deps.Sender, cfg.OTPTTL, logger), logger)

	handlers.NewHealthHandler(time.Now(), deps.Checks).Register(r)
	r.Handle("/metrics", promhttp.Handler())
	otpHandler.Register(r)

	r.Group(func(private chi.Router) {
		private.Use(authn.Require)
		authHandler.Register(r, private)
		handlers.NewVendorHandler(deps.Store, logger).Register(private)
		handlers.NewAdminHandler(deps.Store, logger).Register(private)
		handlers.NewCouponHandler(deps.Store, logger).Register(private)
	})
	return r
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
