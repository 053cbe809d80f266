// Package dashboard serves the web page, the JSON API and the live streams.
package dashboard

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/riskwatch/internal/domain"
)

const (
	shutdownTimeout   = 5 * time.Second
	heartbeatInterval = 20 * time.Second
	equityPollPeriod  = 3 * time.Second
)

type snapshotSource interface {
	Latest() *domain.Snapshot
	RefreshNow() bool
	AutoRefresh() bool
	SetAutoRefresh(enabled bool)
	Interval() time.Duration
}

type equityReader interface {
	PointsAfter(index uint64) ([]domain.EquityPointRecord, error)
}

type snapshotFeed interface {
	Subscribe() chan *domain.Snapshot
	Unsubscribe(ch chan *domain.Snapshot)
}

// Server exposes HTTP endpoints serving the UI, the JSON API and SSE streams.
type Server struct {
	Addr string

	monitor     snapshotSource
	equity      equityReader
	feed        snapshotFeed
	defaultDays int
	location    *time.Location
	logger      *zap.Logger
}

// Option configures the server.
type Option func(*Server)

// WithEquityStore enables the equity history stream.
func WithEquityStore(r equityReader) Option {
	return func(s *Server) {
		s.equity = r
	}
}

// WithSnapshotFeed enables the live snapshot stream.
func WithSnapshotFeed(f snapshotFeed) Option {
	return func(s *Server) {
		s.feed = f
	}
}

// WithDefaultDays sets the trade window used when a request does not choose one.
func WithDefaultDays(days int) Option {
	return func(s *Server) {
		s.defaultDays = domain.ClampDays(days)
	}
}

// WithLocation sets the time zone of rendered timestamps.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) {
		if loc != nil {
			s.location = loc
		}
	}
}

// NewServer creates a new web server instance.
func NewServer(addr string, monitor snapshotSource, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		Addr:        addr,
		monitor:     monitor,
		defaultDays: domain.DefaultTradeHistoryDays,
		location:    time.Local,
		logger:      logger.With(zap.String("component", "dashboard")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/snapshot", s.handleSnapshot)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/autorefresh", s.handleGetAutoRefresh)
		r.Post("/autorefresh", s.handleSetAutoRefresh)
		r.Get("/trades.csv", s.handleTradesCSV)
	})

	r.Get("/snapshot/stream", s.handleSnapshotStream)
	r.Get("/equity/stream", s.handleEquityStream)

	r.Handle("/*", s.staticHandler())

	return r
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("dashboard listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve http")
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via ACME.
// It also starts an HTTP server on port 80 to handle ACME HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("acme server shutdown", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("https server shutdown", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("acme server", zap.Error(err))
		}
	}()

	s.logger.Info("dashboard listening with tls", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve https")
	}
	return nil
}
