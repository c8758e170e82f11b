package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/coinfeed/internal/broadcast"
	"github.com/rickgao/coinfeed/internal/metrics"
	"github.com/rickgao/coinfeed/internal/model"
	"github.com/rickgao/coinfeed/internal/poller"
	"github.com/rickgao/coinfeed/internal/query"
)

const shutdownTimeout = 10 * time.Second

// SnapshotStore is the read side of the snapshot cache.
type SnapshotStore interface {
	Read() (*model.Snapshot, bool)
	Age(now time.Time) (time.Duration, bool)
	Version() uint64
}

// Scheduler is the sweep control surface used by /health and /api/refresh.
type Scheduler interface {
	Refresh() bool
	State() poller.State
	LastSweep() (poller.SweepResult, bool)
}

// Config holds server settings.
type Config struct {
	Port           int
	AllowedOrigins []string      // Empty or "*" allows any origin
	WriteTimeout   time.Duration // Per push write
	PingInterval   time.Duration
	EnableRefresh  bool
	MetricsPath    string // Empty disables /metrics
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:         5000,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Server serves listing queries, the push channel and operational endpoints.
type Server struct {
	cfg       Config
	snapshots SnapshotStore
	engine    *query.Engine
	hub       *broadcast.Broadcaster
	scheduler Scheduler
	metrics   *metrics.Metrics
	logger    *slog.Logger
	origins   originPolicy
	upgrader  websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records query and push metrics on m and serves it when
// Config.MetricsPath is set.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithScheduler exposes scheduler state on /health and enables
// /api/refresh when Config.EnableRefresh is set.
func WithScheduler(sched Scheduler) Option {
	return func(s *Server) {
		s.scheduler = sched
	}
}

// New creates a Server.
func New(cfg Config, snapshots SnapshotStore, engine *query.Engine, hub *broadcast.Broadcaster, opts ...Option) *Server {
	def := DefaultConfig()
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}

	s := &Server{
		cfg:       cfg,
		snapshots: snapshots,
		engine:    engine,
		hub:       hub,
		logger:    slog.Default(),
		origins:   newOriginPolicy(cfg.AllowedOrigins),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:    1024,
		WriteBufferSize:   64 * 1024,
		EnableCompression: true,
		CheckOrigin:       s.origins.checkRequest,
	}

	return s
}

// Handler returns the HTTP handler with all routes and CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/cryptos", s.handleCryptos)
	mux.HandleFunc("GET /ws", s.handlePush)
	mux.HandleFunc("GET /health", s.handleHealth)

	if s.cfg.EnableRefresh && s.scheduler != nil {
		mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	}
	if s.cfg.MetricsPath != "" && s.metrics != nil {
		mux.Handle("GET "+s.cfg.MetricsPath, s.metrics.Handler())
	}

	return s.origins.handler(mux)
}

// Run listens on the configured port until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.cfg.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. Push connections end when the broadcaster is closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
