package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/bebetter/internal/api"
	"github.com/roach88/bebetter/internal/store"
)

// Options configures a Server.
type Options struct {
	// LoginRate is sustained login attempts per second per client IP.
	LoginRate float64
	// LoginBurst is the limiter bucket size.
	LoginBurst int
}

// Server is the remote ledger HTTP API.
type Server struct {
	store   *store.Store
	engine  *gin.Engine
	metrics *Metrics
	limiter *loginLimiter
}

// New builds the router. The caller owns st.
func New(st *store.Store, opts Options) *Server {
	if opts.LoginRate <= 0 {
		opts.LoginRate = 1
	}
	if opts.LoginBurst < 1 {
		opts.LoginBurst = 5
	}

	s := &Server{
		store:   st,
		engine:  gin.New(),
		metrics: newMetrics(st),
		limiter: newLoginLimiter(opts.LoginRate, opts.LoginBurst),
	}

	s.engine.Use(gin.Recovery(), s.metrics.middleware())

	s.engine.POST(api.PathRegister, s.handleRegister)
	s.engine.POST(api.PathLogin, s.handleLogin)
	s.engine.GET(api.PathHealth, s.handleHealth)
	s.engine.GET(api.PathMetrics, s.metrics.handler())

	authed := s.engine.Group("", s.requireSession())
	authed.POST(api.PathLogout, s.handleLogout)
	authed.GET(api.PathUser, s.handleGetUser)
	authed.POST(api.PathModify, s.handleModify)

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. Expired sessions are pruned every pruneEvery (0 disables).
func (s *Server) ListenAndServe(ctx context.Context, addr string, pruneEvery time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if pruneEvery > 0 {
		go s.pruneLoop(ctx, pruneEvery)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	slog.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) pruneLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.PruneSessions(ctx)
			if err != nil {
				slog.Warn("prune sessions failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Debug("pruned expired sessions", "count", n)
			}
		}
	}
}

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	slog.Error(msg, "path", c.FullPath(), "error", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Internal error"})
}
