package goGate

import (
	"errors"
	"log/slog"

	"github.com/MrEthical07/goGate/route"
	"github.com/MrEthical07/goGate/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a [Store]. Configure it during initialization; [Builder.Build]
// may be called once.
type Builder struct {
	config Config
	kv     session.KV
	redis  redis.UniversalClient

	authenticator Authenticator
	tokenIssuer   TokenIssuer
	auditSink     AuditSink
	logger        *slog.Logger

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The value is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStorage sets the durable backend. Without one the store keeps its
// entries in a [session.MemoryKV].
func (b *Builder) WithStorage(kv session.KV) *Builder {
	b.kv = kv
	return b
}

// WithRedis persists sessions in Redis under Config.Session.RedisPrefix. It
// is ignored when [Builder.WithStorage] was also called.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuthenticator replaces the simulated round trip.
func (b *Builder) WithAuthenticator(a Authenticator) *Builder {
	b.authenticator = a
	return b
}

// WithTokenIssuer replaces the issuer selected by Config.Token.Mode.
func (b *Builder) WithTokenIssuer(t TokenIssuer) *Builder {
	b.tokenIssuer = t
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for best-effort failures. Defaults to
// [slog.Default].
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a logged-out [Store]. Call
// [Store.Hydrate] to restore a persisted session.
func (b *Builder) Build() (*Store, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	kv := b.kv
	if kv == nil && b.redis != nil {
		kv = session.NewRedisKV(b.redis, cfg.Session.RedisPrefix)
	}
	if kv == nil {
		kv = session.NewMemoryKV()
	}

	issuer := b.tokenIssuer
	if issuer == nil {
		var err error
		issuer, err = newTokenIssuer(cfg.Token)
		if err != nil {
			return nil, err
		}
	}

	authn := b.authenticator
	if authn == nil {
		authn = NewSimulatedAuthenticator(cfg.Auth.Delay, cfg.Auth.PlaceholderUserID)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	store := &Store{
		config:  cfg,
		persist: session.NewPersistence(kv, cfg.Session.TokenKey, cfg.Session.IdentityKey),
		authn:   authn,
		tokens:  issuer,
		guard:   route.NewGuard(cfg.Routes.EntryPath, cfg.Routes.LandingPath, cfg.Routes.Param),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
	}
	store.audit = newAuditDispatcher(cfg.Audit, b.auditSink)

	b.built = true

	return store, nil
}

// Config returns a copy of the configuration the store was built with.
func (s *Store) Config() Config {
	if s == nil {
		return defaultConfig()
	}
	return cloneConfig(s.config)
}
