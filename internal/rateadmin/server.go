package rateadmin

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/marcus-miao/tagqueue/pkg/epochdriver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the rate-update and introspection surface around a
// running epochdriver.Driver: POST to push a new rate table, GET for
// liveness and Prometheus scraping.
type Server struct {
	cfg    Config
	driver *epochdriver.Driver
	logger *slog.Logger
	engine *gin.Engine
	http   *http.Server
}

// New constructs a Server around driver. It does not start listening until
// Run is called. GET cfg.MetricsPath scrapes gatherer, which should be the
// same registry the driver's epochdriver.Metrics was registered against; a
// nil gatherer falls back to prometheus.DefaultGatherer.
func New(cfg Config, driver *epochdriver.Driver, logger *slog.Logger, gatherer prometheus.Gatherer) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{cfg: cfg, driver: driver, logger: logger, engine: engine}
	engine.GET("/health", s.healthHandler)
	engine.POST("/rates", s.updateRatesHandler)
	engine.GET(cfg.MetricsPath, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Run listens until ctx is canceled, then gracefully shuts the HTTP server
// down. It blocks until shutdown completes or the grace period elapses.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down admin server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}
