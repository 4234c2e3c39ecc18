// Package server wires the marketplace HTTP API, storage and health lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	platformgrpc "github.com/louisbranch/rebazzar/internal/platform/grpc"
	"github.com/louisbranch/rebazzar/internal/platform/httpx"
	"github.com/louisbranch/rebazzar/internal/platform/metrics"
	"github.com/louisbranch/rebazzar/internal/platform/timeouts"
	"github.com/louisbranch/rebazzar/internal/services/assistant"
	authdomain "github.com/louisbranch/rebazzar/internal/services/auth/domain"
	"github.com/louisbranch/rebazzar/internal/services/auth/token"
	chatdomain "github.com/louisbranch/rebazzar/internal/services/chat/domain"
	"github.com/louisbranch/rebazzar/internal/services/chat/realtime"
	listingdomain "github.com/louisbranch/rebazzar/internal/services/listing/domain"
	httpapi "github.com/louisbranch/rebazzar/internal/services/marketplace/api/http"
	"github.com/louisbranch/rebazzar/internal/services/marketplace/seed"
	notificationsdomain "github.com/louisbranch/rebazzar/internal/services/notifications/domain"
	"github.com/louisbranch/rebazzar/internal/services/notifications/render"
	"github.com/louisbranch/rebazzar/internal/storage/memory"
	"github.com/louisbranch/rebazzar/internal/storage/sqlite"
)

const (
	// StorageMemory keeps all state in process.
	StorageMemory = "memory"
	// StorageSQLite persists state to Config.DBPath.
	StorageSQLite = "sqlite"

	// HealthService is the gRPC health entry reported by the binary.
	HealthService = "rebazzar.marketplace.v1"

	sessionPruneInterval = 10 * time.Minute
)

// Config describes one marketplace server.
type Config struct {
	HTTPAddr string
	// GRPCAddr hosts grpc.health.v1. Empty disables it.
	GRPCAddr string

	Storage      string
	DBPath       string
	Seed         bool
	SeedPassword string

	SessionKey    []byte
	SessionIssuer string
	SessionTTL    time.Duration
	// BcryptCost applies to signup hashes. Zero uses bcrypt.DefaultCost.
	BcryptCost int

	CORSOrigins   []string
	AuthRateLimit float64
	AuthRateBurst int
	Locale        string
}

// marketplaceStore is the union of every domain store plus lifecycle hooks.
type marketplaceStore interface {
	authdomain.Store
	listingdomain.Store
	chatdomain.Store
	notificationsdomain.Store
	PruneSessions(ctx context.Context, now time.Time) (int, error)
	Close() error
}

var (
	_ marketplaceStore = (*memory.Store)(nil)
	_ marketplaceStore = (*sqlite.Store)(nil)
)

// Server hosts the marketplace HTTP API plus an optional gRPC health endpoint.
type Server struct {
	logger     zerolog.Logger
	store      marketplaceStore
	metrics    *metrics.Metrics
	handler    http.Handler
	listener   net.Listener
	httpServer *http.Server
	health     *platformgrpc.HealthServer
}

// New opens storage, seeds it when asked and binds the listeners.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	signer, err := token.NewSigner(token.Config{Key: cfg.SessionKey, Issuer: cfg.SessionIssuer})
	if err != nil {
		return nil, fmt.Errorf("session signer: %w", err)
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Seed {
		if err := seedStore(ctx, store, cfg, logger); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	m := metrics.New()
	handler := newHandler(cfg, store, signer, m, logger)

	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	var health *platformgrpc.HealthServer
	if strings.TrimSpace(cfg.GRPCAddr) != "" {
		health, err = platformgrpc.NewHealthServer(cfg.GRPCAddr, logger, HealthService)
		if err != nil {
			_ = listener.Close()
			_ = store.Close()
			return nil, err
		}
	}

	return &Server{
		logger:   logger,
		store:    store,
		metrics:  m,
		handler:  handler,
		listener: listener,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
		health: health,
	}, nil
}

func openStore(ctx context.Context, cfg Config) (marketplaceStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage)) {
	case "", StorageMemory:
		return memory.New(), nil
	case StorageSQLite:
		store, err := sqlite.Open(ctx, cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
	}
}

func seedStore(ctx context.Context, store marketplaceStore, cfg Config, logger zerolog.Logger) error {
	manifest, err := seed.DefaultManifest()
	if err != nil {
		return fmt.Errorf("load seed manifest: %w", err)
	}
	result, err := seed.Apply(ctx, store, manifest, seed.Options{Password: cfg.SeedPassword, BcryptCost: cfg.BcryptCost})
	if err != nil {
		return fmt.Errorf("seed store: %w", err)
	}
	if result.Skipped {
		logger.Info().Msg("seed data already present")
		return nil
	}
	logger.Info().
		Int("users", result.Users).
		Int("listings", result.Listings).
		Int("conversations", result.Conversations).
		Int("messages", result.Messages).
		Int("notifications", result.Notifications).
		Msg("seeded demo data")
	return nil
}

func newHandler(cfg Config, store marketplaceStore, signer *token.Signer, m *metrics.Metrics, logger zerolog.Logger) http.Handler {
	notifications := notificationsdomain.NewService(store, nil, nil)
	events := &notifier{
		inbox:     notifications,
		localizer: render.NewLocalizer(cfg.Locale),
		metrics:   m,
		logger:    logger,
	}
	users := userDirectory{users: store}
	hub := realtime.NewHub(logger, m.RealtimePeers)

	api := httpapi.New(httpapi.Dependencies{
		Auth:     authdomain.NewService(store, events, authdomain.Options{BcryptCost: cfg.BcryptCost, SessionTTL: cfg.SessionTTL}, nil, nil),
		Tokens:   signer,
		Listings: listingdomain.NewService(store, users, events, nil, nil),
		Chat: chatdomain.NewService(store, chatdomain.Dependencies{
			Users:            users,
			Listings:         listingTitles{listings: store},
			Notifier:         events,
			Publisher:        hub,
			DefaultAvatarURL: authdomain.DefaultAvatarURL,
		}, nil, nil),
		Notifications: notifications,
		Assistant:     assistant.New(assistant.DefaultRules),
		Realtime:      hub,
		Metrics:       m,
		AuthLimiter:   authLimiter(cfg),
		Logger:        logger,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpx.RequestLogger(logger))
	r.Use(httpx.RecoverPanic(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins(cfg.CORSOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(httpx.Instrument(m))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", m.Handler())
	api.Routes(r)
	return r
}

func authLimiter(cfg Config) *httpx.IPRateLimiter {
	if cfg.AuthRateLimit <= 0 && cfg.AuthRateBurst <= 0 {
		return nil
	}
	burst := cfg.AuthRateBurst
	if burst <= 0 {
		burst = 1
	}
	return httpx.NewIPRateLimiter(cfg.AuthRateLimit, burst)
}

func corsOrigins(origins []string) []string {
	cleaned := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			cleaned = append(cleaned, origin)
		}
	}
	if len(cleaned) == 0 {
		return []string{"*"}
	}
	return cleaned
}

// Addr returns the HTTP listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// HealthAddr returns the gRPC health listener address, or "" when disabled.
func (s *Server) HealthAddr() string {
	if s == nil {
		return ""
	}
	return s.health.Addr()
}

// Handler exposes the root HTTP handler.
func (s *Server) Handler() http.Handler {
	if s == nil {
		return nil
	}
	return s.handler
}

// Serve runs the HTTP server, health endpoint and session pruning until ctx
// ends, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.logger.Info().Str("addr", s.Addr()).Msg("marketplace http listening")
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()
	healthErr := make(chan error, 1)
	if s.health != nil {
		go func() {
			healthErr <- s.health.Serve(runCtx)
		}()
	}
	go s.pruneSessions(runCtx)

	select {
	case <-ctx.Done():
		return s.shutdown(serveErr)
	case err := <-healthErr:
		if err != nil {
			_ = s.shutdown(serveErr)
			return err
		}
		<-ctx.Done()
		return s.shutdown(serveErr)
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

func (s *Server) shutdown(serveErr <-chan error) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

func (s *Server) pruneSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed, err := s.store.PruneSessions(ctx, now.UTC())
			if err != nil {
				s.logger.Warn().Err(err).Msg("prune sessions")
				continue
			}
			if removed > 0 {
				s.logger.Debug().Int("removed", removed).Msg("pruned expired sessions")
			}
		}
	}
}

// Close releases listeners and storage.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Close()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("close store")
		}
	}
}
