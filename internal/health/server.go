// Package health serves the liveness endpoint polled by hosting platforms.
package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/m3rciful/supportbot/core/logger"
)

// Body is returned by every liveness route.
const Body = "Support Bot is running!"

// Server is the liveness HTTP listener.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// NewHandler builds the gin engine answering GET / and GET /healthz.
func NewHandler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLog)
	alive := func(c *gin.Context) {
		c.String(http.StatusOK, Body)
	}
	r.GET("/", alive)
	r.HEAD("/", alive)
	r.GET("/healthz", alive)
	return r
}

func requestLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	if !logger.ShouldSampleDebug() {
		return
	}
	logger.HTTP.Debug("request",
		slog.String("event", "http.request"),
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
}

// NewServer prepares a listener on the given port; port 0 picks a free one.
func NewServer(port int) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              net.JoinHostPort("", strconv.Itoa(port)),
			Handler:           NewHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start binds the port and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("health: listen %s: %w", s.srv.Addr, err)
	}
	s.ln = ln
	logger.HTTP.Info("liveness listener started",
		slog.String("event", "http.start"),
		slog.String("addr", ln.Addr().String()),
	)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.HTTP.Error("liveness listener failed",
				slog.String("event", "http.fail"),
				slog.String("err", err.Error()),
			)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.ln == nil {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	logger.HTTP.Info("liveness listener stopped", slog.String("event", "http.stop"))
	return err
}
