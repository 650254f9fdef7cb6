// Package viz serves a live observation API for a running simulation:
// JSON snapshots over HTTP, a websocket stream for dashboards, and the
// Prometheus scrape endpoint.
package viz

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/crowdsignals/stadium-simulator/internal/logging"
)

const streamInterval = time.Second

// Server exposes the observation endpoints. The simulation pushes
// snapshots in via Publish; HTTP and websocket readers only ever see the
// latest published one.
type Server struct {
	echo *echo.Echo
	log  logging.Logger

	upgrader websocket.Upgrader

	mu     sync.RWMutex
	latest Snapshot
	seq    int64
}

// NewServer builds the server. metricsHandler may be nil to omit the
// /metrics route.
func NewServer(log logging.Logger, metricsHandler http.Handler) *Server {
	if log == nil {
		log = logging.Noop()
	}

	s := &Server{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())

	e.GET("/healthz", s.health)
	e.GET("/api/v1/snapshot", s.snapshot)
	e.GET("/ws", s.stream)
	if metricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(metricsHandler))
	}

	s.echo = e
	return s
}

// Publish swaps in a new snapshot. Wire it as a tick listener.
func (s *Server) Publish(snap Snapshot) {
	s.mu.Lock()
	s.latest = snap
	s.seq++
	s.mu.Unlock()
}

// Start serves on addr until Shutdown. It blocks.
func (s *Server) Start(addr string) error {
	s.log.Info(context.Background(), "observation server listening", logging.String("addr", addr))
	err := s.echo.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) snapshot(c echo.Context) error {
	s.mu.RLock()
	snap := s.latest
	s.mu.RUnlock()
	return c.JSON(http.StatusOK, snap)
}

// stream upgrades to a websocket and pushes the latest snapshot once per
// interval, skipping repeats when the simulation has not advanced.
func (s *Server) stream(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := c.Request().Context()
	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var lastSeq int64 = -1
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.mu.RLock()
			snap, seq := s.latest, s.seq
			s.mu.RUnlock()

			if seq == lastSeq {
				continue
			}
			lastSeq = seq

			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(snap); err != nil {
				s.log.Debug(ctx, "websocket client dropped", logging.Err(err))
				return nil
			}
		}
	}
}
