// Package api serves the lot catalog and dashboard reports over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/parkinglens/internal/config"
	"github.com/sanspareilsmyn/parkinglens/internal/dashboard"
	"github.com/sanspareilsmyn/parkinglens/internal/store"
)

// Dashboard is the report service behind the API.
type Dashboard interface {
	ListLots(ctx context.Context) ([]store.Lot, error)
	Build(ctx context.Context, q dashboard.Query) (dashboard.Report, error)
}

type Server struct {
	router    *echo.Echo
	dashboard Dashboard
	cfg       config.ServerConfig
	analytics config.AnalyticsConfig
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

func New(svc Dashboard, cfg config.ServerConfig, analytics config.AnalyticsConfig, logger *zap.Logger) *Server {
	s := &Server{
		router:    echo.New(),
		dashboard: svc,
		cfg:       cfg,
		analytics: analytics,
		loc:       analytics.Location(),
		logger:    logger,
		now:       time.Now,
	}

	e := s.router
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()
	e.JSONSerializer = jsonSerializer{}
	e.HTTPErrorHandler = s.httpErrorHandler
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(middleware.Recover())
	e.Use(requestID())
	e.Use(accessLog(logger.Named("access")))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodHead},
	}))

	e.GET("/healthz", s.healthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/api/v1")
	v1.GET("/lots", s.listLots)
	v1.GET("/lots/:id/dashboard", s.getDashboard)
	v1.GET("/dashboard", s.getDefaultDashboard)

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving on cfg.Addr until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", zap.String("addr", s.cfg.Addr))
	if err := s.router.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.router.Shutdown(ctx)
}
