package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"igmirror/pkg/config"
	"igmirror/pkg/logger"
	"igmirror/pkg/mirror"
)

// Server is the thin presentation collaborator in front of the
// orchestrator. It translates HTTP requests into orchestrator calls and
// failure kinds into status codes; it holds no fetch or quota logic.
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// New creates the HTTP server for the given orchestrator.
func New(svc *mirror.Service, cfg *config.ServerConfig, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	handler := &Handler{svc: svc, logger: log}

	e.Use(middleware.Recover())
	e.Use(requestLogger(log))

	e.GET("/healthz", handler.Health)
	if cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	e.GET("/api/status", handler.Status)
	e.GET("/api/users/:username", handler.UserPage)
	e.GET("/api/users/:username/page/:n", handler.UserPageFragment)
	e.GET("/api/posts/:shortcode", handler.Post)
	e.POST("/api/admin/egress/:name/reset", handler.ResetEgressPath)

	return &Server{echo: e, handler: handler}
}

// Start serves on the given address until Shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements http.Handler so tests can drive the server with
// httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// requestLogger logs one line per request through the shared logger.
func requestLogger(log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			log.InfoWithFields("request", map[string]interface{}{
				"method":   c.Request().Method,
				"path":     c.Request().URL.Path,
				"status":   c.Response().Status,
				"duration": time.Since(start),
			})
			return err
		}
	}
}
