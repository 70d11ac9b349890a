package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Storage backends selectable with --storage / GOGATE_STORAGE.
const (
	StorageFile        = "file"
	StorageRedis       = "redis"
	StorageMemoryRedis = "memory-redis"
)

// settings is the resolved CLI configuration: defaults, then .env, then
// GOGATE_* variables, then explicitly set flags.
type settings struct {
	Storage     string
	StateFile   string
	RedisAddr   string
	RedisPrefix string
	TokenMode   string
	JWTSecret   string
	Delay       time.Duration
	Audit       bool
	Addr        string
	LogLevel    string
}

func defaultSettings() settings {
	return settings{
		Storage:     StorageFile,
		StateFile:   defaultStateFile(),
		RedisAddr:   "127.0.0.1:6379",
		RedisPrefix: "gogate",
		TokenMode:   "timestamp",
		Delay:       time.Second,
		Addr:        ":8080",
		LogLevel:    "info",
	}
}

func defaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".gogate", "session.yaml")
	}
	return filepath.Join(dir, "gogate", "session.yaml")
}

// loadSettings reads envFile when present and overlays GOGATE_* variables.
// A missing envFile is not an error.
func loadSettings(envFile string) (settings, error) {
	s := defaultSettings()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return s, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	s.Storage = getEnv("GOGATE_STORAGE", s.Storage)
	s.StateFile = getEnv("GOGATE_STATE_FILE", s.StateFile)
	s.RedisAddr = getEnv("GOGATE_REDIS_ADDR", s.RedisAddr)
	s.RedisPrefix = getEnv("GOGATE_REDIS_PREFIX", s.RedisPrefix)
	s.TokenMode = getEnv("GOGATE_TOKEN_MODE", s.TokenMode)
	s.JWTSecret = getEnv("GOGATE_JWT_SECRET", s.JWTSecret)
	s.Addr = getEnv("GOGATE_ADDR", s.Addr)
	s.LogLevel = getEnv("GOGATE_LOG_LEVEL", s.LogLevel)

	var err error
	if s.Delay, err = getEnvAsDuration("GOGATE_DELAY", s.Delay); err != nil {
		return s, err
	}
	if s.Audit, err = getEnvAsBool("GOGATE_AUDIT", s.Audit); err != nil {
		return s, err
	}

	return s, nil
}

func (s settings) validate() error {
	switch s.Storage {
	case StorageFile:
		if s.StateFile == "" {
			return errors.New("state file path required for file storage")
		}
	case StorageRedis:
		if s.RedisAddr == "" {
			return errors.New("redis address required for redis storage")
		}
	case StorageMemoryRedis:
	default:
		return fmt.Errorf("unknown storage %q (want file, redis, or memory-redis)", s.Storage)
	}
	return nil
}

// storeConfig maps settings onto a library configuration.
func (s settings) storeConfig() (goGate.Config, error) {
	cfg := goGate.DefaultConfig()
	cfg.Auth.Delay = s.Delay
	cfg.Session.RedisPrefix = s.RedisPrefix
	cfg.Audit.Enabled = s.Audit

	mode, err := goGate.ParseTokenMode(s.TokenMode)
	if err != nil {
		return cfg, err
	}
	cfg.Token.Mode = mode
	if mode == goGate.TokenJWT {
		cfg.Token.PrivateKey = []byte(s.JWTSecret)
	}

	return cfg, cfg.Validate()
}

func (s settings) logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openStore builds and hydrates a store for s. The returned cleanup closes the
// store and whatever backend was opened for it.
func openStore(ctx context.Context, s settings, stderr io.Writer) (*goGate.Store, func(), error) {
	if err := s.validate(); err != nil {
		return nil, nil, err
	}
	cfg, err := s.storeConfig()
	if err != nil {
		return nil, nil, err
	}

	logger := s.logger(stderr)
	b := goGate.New().WithConfig(cfg).WithLogger(logger)
	if s.Audit {
		b.WithAuditSink(goGate.NewJSONWriterSink(stderr))
	}

	var closers []func()
	switch s.Storage {
	case StorageFile:
		b.WithStorage(session.NewFileKV(s.StateFile))
	case StorageRedis:
		client := redis.NewClient(&redis.Options{Addr: s.RedisAddr})
		closers = append(closers, func() { _ = client.Close() })
		b.WithRedis(client)
	case StorageMemoryRedis:
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		closers = append(closers, func() { _ = client.Close() }, mr.Close)
		logger.Info("goGate: using in-process redis", "addr", mr.Addr())
		b.WithRedis(client)
	}

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	store, err := b.Build()
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	store.Hydrate(ctx)

	return store, func() {
		store.Close()
		cleanup()
	}, nil
}

func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
