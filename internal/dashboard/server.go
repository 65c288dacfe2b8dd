// Package dashboard serves the status and control HTTP API.
package dashboard

import (
	"context"
	_ "embed"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/pablasso/wiggum/internal/status"
)

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 5 * time.Second

//go:embed static/index.html
var indexHTML []byte

// Server is the dashboard HTTP server.
type Server struct {
	e   *echo.Echo
	log *log.Logger
}

// New creates a server reading project state through collector. Websocket
// clients receive a fresh snapshot every pushInterval.
func New(collector *status.Collector, logger *log.Logger, pushInterval time.Duration) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := logger.WithFields(log.Fields{
				"method": v.Method,
				"uri":    v.URI,
				"status": v.Status,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request failed")
			} else {
				entry.Debug("request")
			}
			return nil
		},
	}))

	Register(e, collector, logger, pushInterval)
	return &Server{e: e, log: logger}
}

// Register wires up all dashboard routes on the provided Echo instance.
func Register(e *echo.Echo, collector *status.Collector, logger *log.Logger, pushInterval time.Duration) {
	e.GET("/", index)
	e.GET("/api/status", getStatus(collector, logger))
	e.GET("/api/claude-blob", getClaudeBlob(collector, logger))
	e.POST("/api/control", postControl(collector.Controls(), logger))
	e.GET("/api/ws", statusSocket(collector, logger, pushInterval))
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.e.Start(addr)
	}()
	s.log.Infof("Dashboard listening on http://%s", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return s.e.Shutdown(shutdownCtx)
	}
}

func index(c echo.Context) error {
	return c.HTMLBlob(http.StatusOK, indexHTML)
}
