package server

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/comnet/modserve/common/apiutil"
	"github.com/comnet/modserve/internal/config"
	"github.com/comnet/modserve/internal/ratelimit"
	"github.com/comnet/modserve/internal/server/middleware"
	"github.com/comnet/modserve/internal/signer"
)

// ModuleServer serves one module's endpoints over HTTP. Every RPC route
// sits behind the throttle and signature stages; /healthz and /metrics are
// operational surfaces outside the pipeline.
type ModuleServer struct {
	cfg      *config.Config
	logger   *zap.Logger
	module   Module
	key      *signer.Keypair
	limiter  ratelimit.KeyLimiter
	verifier signer.Verifier

	router    *gin.Engine
	validator *apiutil.Validator
	httpSrv   *http.Server
}

// Option overrides a pluggable collaborator at construction time.
type Option func(*ModuleServer)

// WithLimiter substitutes the admission policy, e.g. a Redis-backed limiter.
func WithLimiter(l ratelimit.KeyLimiter) Option {
	return func(s *ModuleServer) { s.limiter = l }
}

// WithVerifier substitutes the signature verification capability.
func WithVerifier(v signer.Verifier) Option {
	return func(s *ModuleServer) { s.verifier = v }
}

// NewModuleServer wires the middleware chain and registers one POST route
// per endpoint under /method. Duplicate endpoint names fail construction.
func NewModuleServer(cfg *config.Config, logger *zap.Logger, module Module, key *signer.Keypair, opts ...Option) (*ModuleServer, error) {
	s := &ModuleServer{
		cfg:       cfg,
		logger:    logger,
		module:    module,
		key:       key,
		limiter:   ratelimit.NewTokenBucketLimiter(cfg.LimiterConfig()),
		verifier:  signer.NewSchemeVerifier(),
		validator: apiutil.NewValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(apiutil.RequestIDMiddleware())
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(apiutil.MetricsMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Signature", "X-Key", "X-Crypto", "X-Timestamp"},
		ExposeHeaders: []string{middleware.RateLimitRemainingHeader},
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "module": module.Name()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Admission pipeline: throttle strictly precedes authentication.
	staleness := time.Duration(cfg.MaxRequestStaleness) * time.Second
	rpc := router.Group("/method",
		middleware.IPThrottle(logger, s.limiter),
		middleware.SignatureAuth(logger, s.verifier, staleness),
	)

	seen := make(map[string]struct{})
	for _, ep := range module.Endpoints() {
		if _, dup := seen[ep.Name]; dup {
			return nil, fmt.Errorf("module %q declares endpoint %q twice", module.Name(), ep.Name)
		}
		seen[ep.Name] = struct{}{}
		rpc.POST("/"+ep.Name, s.dispatch(ep))
	}

	s.router = router
	logger.Info("module server constructed",
		zap.String("module", module.Name()),
		zap.Int("endpoints", len(seen)),
		zap.String("public_key", hex.EncodeToString(key.Public)),
		zap.Int("key_scheme", int(key.Scheme)))

	return s, nil
}

// Router returns the gin engine, for tests.
func (s *ModuleServer) Router() *gin.Engine {
	return s.router
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully within the configured timeout.
func (s *ModuleServer) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting module server", zap.String("addr", s.cfg.Addr()))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("module server stopped")
	return nil
}
