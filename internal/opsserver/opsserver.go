// Package opsserver exposes the operational HTTP surface: health,
// Prometheus metrics, and a websocket feed of session transitions.
package opsserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/cloudwright/cloudwright/internal/logging"
	"github.com/cloudwright/cloudwright/internal/notify"
	"github.com/cloudwright/cloudwright/internal/version"
)

type Config struct {
	Addr string
}

type Server struct {
	addr string
	echo *echo.Echo
	hub  *Hub
	log  *logrus.Entry
	done chan struct{}
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// New builds the server and registers its routes. The gatherer is the
// registry the metrics package was built against.
func New(cfg Config, gatherer prometheus.Gatherer, logger *logrus.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		addr: cfg.Addr,
		echo: e,
		hub:  newHub(),
		log:  logging.ForComponent(logger, "ops"),
		done: make(chan struct{}),
	}

	e.Use(middleware.Recover(), s.requestLogger)
	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	e.GET("/events", s.handleEvents)
	return s
}

// Broadcast feeds a session event to every connected watcher.
func (s *Server) Broadcast(ev notify.Event) {
	s.hub.broadcast(ev)
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.WithField("addr", s.addr).Info("ops server listening")
	if err := s.echo.Start(s.addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the listener and tells websocket handlers to hang up.
// Hijacked connections are not tracked by the HTTP server, so they get
// their own signal.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.done)
	return s.echo.Shutdown(ctx)
}

// Handler exposes the route tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:  "ok",
		Service: "cloudwright",
		Version: version.Version,
	})
}

// requestLogger records completed requests at debug so the ops surface
// stays quiet at the default level.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.log.WithFields(logrus.Fields{
			"method":  c.Request().Method,
			"path":    c.Path(),
			"status":  c.Response().Status,
			"elapsed": time.Since(start).Round(time.Millisecond).String(),
		}).Debug("request")
		return err
	}
}
