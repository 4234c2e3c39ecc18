// Package marketplace parses marketplace service configuration and launches
// the service.
package marketplace

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/rebazzar/internal/platform/cmd"
	"github.com/louisbranch/rebazzar/internal/platform/logging"
	server "github.com/louisbranch/rebazzar/internal/services/marketplace/app"
	"github.com/louisbranch/rebazzar/internal/tools/sessionkey"
)

// Config holds marketplace command configuration.
type Config struct {
	HTTPPort int    `env:"REBAZZAR_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"REBAZZAR_GRPC_PORT" envDefault:"8081"`
	Host     string `env:"REBAZZAR_HOST"`

	Storage      string `env:"REBAZZAR_STORAGE" envDefault:"memory"`
	DBPath       string `env:"REBAZZAR_DB_PATH" envDefault:"data/rebazzar.db"`
	Seed         bool   `env:"REBAZZAR_SEED" envDefault:"true"`
	SeedPassword string `env:"REBAZZAR_SEED_PASSWORD"`

	SessionKey    string        `env:"REBAZZAR_SESSION_KEY"`
	SessionIssuer string        `env:"REBAZZAR_SESSION_ISSUER" envDefault:"rebazzar"`
	SessionTTL    time.Duration `env:"REBAZZAR_SESSION_TTL" envDefault:"24h"`

	LogLevel  string `env:"REBAZZAR_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"REBAZZAR_LOG_FORMAT" envDefault:"json"`
	Locale    string `env:"REBAZZAR_LOCALE" envDefault:"en"`

	CORSOrigins   []string `env:"REBAZZAR_CORS_ORIGINS" envDefault:"*" envSeparator:","`
	AuthRateLimit float64  `env:"REBAZZAR_AUTH_RATE_LIMIT" envDefault:"2"`
	AuthRateBurst int      `env:"REBAZZAR_AUTH_RATE_BURST" envDefault:"10"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "The marketplace HTTP API port")
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The gRPC health port (0 disables it)")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "The interface to bind")
	fs.StringVar(&cfg.Storage, "storage", cfg.Storage, "Storage backend: memory or sqlite")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.BoolVar(&cfg.Seed, "seed", cfg.Seed, "Load demo data into empty storage")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: json or console")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.HTTPPort <= 0 {
		return Config{}, fmt.Errorf("http port must be positive, got %d", cfg.HTTPPort)
	}
	if cfg.GRPCPort < 0 {
		return Config{}, fmt.Errorf("grpc port must not be negative, got %d", cfg.GRPCPort)
	}
	return cfg, nil
}

// ServerConfig resolves cfg into app configuration. An empty session key is
// replaced by a random one, which invalidates tokens on restart.
func ServerConfig(cfg Config, random io.Reader) (server.Config, bool, error) {
	rawKey := strings.TrimSpace(cfg.SessionKey)
	generated := false
	if rawKey == "" {
		key, err := sessionkey.Generate(sessionkey.DefaultBytes, random)
		if err != nil {
			return server.Config{}, false, fmt.Errorf("generate session key: %w", err)
		}
		rawKey = key
		generated = true
	}
	key, err := hex.DecodeString(rawKey)
	if err != nil {
		return server.Config{}, false, fmt.Errorf("decode %s: %w", sessionkey.EnvVar, err)
	}

	grpcAddr := ""
	if cfg.GRPCPort > 0 {
		grpcAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.GRPCPort))
	}
	return server.Config{
		HTTPAddr:      net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.HTTPPort)),
		GRPCAddr:      grpcAddr,
		Storage:       cfg.Storage,
		DBPath:        cfg.DBPath,
		Seed:          cfg.Seed,
		SeedPassword:  cfg.SeedPassword,
		SessionKey:    key,
		SessionIssuer: cfg.SessionIssuer,
		SessionTTL:    cfg.SessionTTL,
		CORSOrigins:   cfg.CORSOrigins,
		AuthRateLimit: cfg.AuthRateLimit,
		AuthRateBurst: cfg.AuthRateBurst,
		Locale:        cfg.Locale,
	}, generated, nil
}

// Run starts the marketplace service.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(logging.Config{
		Level:   cfg.LogLevel,
		Format:  logging.Format(strings.ToLower(strings.TrimSpace(cfg.LogFormat))),
		Service: entrypoint.ServiceMarketplace,
		Output:  os.Stderr,
	})
	if err != nil {
		return err
	}
	serverCfg, generated, err := ServerConfig(cfg, nil)
	if err != nil {
		return err
	}
	if generated {
		logger.Warn().Msgf("%s is empty; using a random key, sessions end on restart", sessionkey.EnvVar)
	}

	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceMarketplace, entrypoint.RunOptions{Logger: &logger}, func(ctx context.Context) error {
		srv, err := server.New(ctx, serverCfg, logger)
		if err != nil {
			return err
		}
		return srv.Serve(ctx)
	})
}
