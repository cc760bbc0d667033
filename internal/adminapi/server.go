// Package adminapi serves the operational HTTP surface: health, metrics,
// the job list, manual job ticks and public access index refreshes.
package adminapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aatumaykin/cmsjobs/internal/backgroundjobs"
	"github.com/aatumaykin/cmsjobs/internal/logger"
)

// DefaultTriggerRatePerMinute caps manual ticks per job.
const DefaultTriggerRatePerMinute = 6

// JobRunner is the part of the job runner the API reads.
type JobRunner interface {
	Services() []backgroundjobs.Entry[*backgroundjobs.HostedService]
	Service(name string) (*backgroundjobs.HostedService, error)
}

// Config configures the server.
type Config struct {
	Listen               string
	TriggerRatePerMinute int
	// AuthToken guards the POST routes when set.
	AuthToken string
}

// Deps are the collaborators the handlers use. Health may be nil.
// RefreshPublicAccess queues a protected content resynchronization; it is nil
// when the delivery index is disabled.
type Deps struct {
	Jobs                JobRunner
	Gatherer            prometheus.Gatherer
	Health              func(ctx context.Context) error
	RefreshPublicAccess func(ctx context.Context) error
}

// Server is the admin HTTP server.
type Server struct {
	cfg     Config
	deps    Deps
	echo    *echo.Echo
	limiter *triggerLimiter
	logger  *logger.Logger
}

// NewServer builds the server and its routes.
func NewServer(cfg Config, deps Deps, log *logger.Logger) *Server {
	if cfg.TriggerRatePerMinute <= 0 {
		cfg.TriggerRatePerMinute = DefaultTriggerRatePerMinute
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		echo:    e,
		limiter: newTriggerLimiter(cfg.TriggerRatePerMinute),
		logger:  log.Component("admin_api"),
	}

	e.Use(middleware.Recover())
	e.Use(s.requestLogger)

	e.GET("/health", s.health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	e.GET("/jobs", s.listJobs)

	write := e.Group("")
	if cfg.AuthToken != "" {
		write.Use(middleware.KeyAuth(func(key string, _ echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(cfg.AuthToken)) == 1, nil
		}))
	}
	write.POST("/jobs/:name/execute", s.executeJob)
	write.POST("/cache/public-access/refresh", s.refreshPublicAccess)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens in the background. Listen errors other than a clean
// shutdown are logged.
func (s *Server) Start() {
	s.logger.Info("admin api listening", logger.Field{Key: "listen", Value: s.cfg.Listen})
	go func() {
		if err := s.echo.Start(s.cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin api stopped unexpectedly", err)
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin api shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.logger.DebugCtx(c.Request().Context(), "admin request",
			logger.Field{Key: "method", Value: c.Request().Method},
			logger.Field{Key: "path", Value: c.Path()},
			logger.Field{Key: "status", Value: c.Response().Status},
			logger.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()})
		return nil
	}
}
