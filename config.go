package goGate

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goGate/route"
	"github.com/MrEthical07/goGate/session"
)

// Config is the complete goGate configuration. Obtain a populated value from
// [DefaultConfig] and override fields as needed.
type Config struct {
	Auth    AuthConfig
	Session SessionConfig
	Token   TokenConfig
	Routes  RouteConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

// AuthConfig controls the simulated authentication round trip.
type AuthConfig struct {
	// Delay stands in for network latency. It always runs to completion.
	Delay time.Duration
	// PlaceholderUserID is assigned to every synthesized identity.
	PlaceholderUserID string
}

// SessionConfig names the two durable entries and the Redis namespace.
type SessionConfig struct {
	TokenKey    string
	IdentityKey string
	RedisPrefix string
}

// TokenMode selects how session tokens are minted.
type TokenMode int

const (
	// TokenTimestamp mints "<prefix><unix millis>" tokens.
	TokenTimestamp TokenMode = iota
	// TokenJWT mints signed JWTs through package jwt.
	TokenJWT
)

func (m TokenMode) String() string {
	switch m {
	case TokenTimestamp:
		return "timestamp"
	case TokenJWT:
		return "jwt"
	default:
		return "unknown"
	}
}

// ParseTokenMode maps "timestamp" or "jwt" to a [TokenMode].
func ParseTokenMode(s string) (TokenMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "timestamp":
		return TokenTimestamp, nil
	case "jwt":
		return TokenJWT, nil
	default:
		return 0, errors.New("unknown token mode: " + s)
	}
}

// TokenConfig configures session token issuance.
type TokenConfig struct {
	Mode   TokenMode
	Prefix string

	// JWT mode only.
	SigningMethod string
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	TTL           time.Duration
	KeyID         string
}

// RouteConfig configures the route guard.
type RouteConfig struct {
	EntryPath   string
	LandingPath string
	Param       string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and the latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the demo defaults: one second of simulated latency,
// placeholder user "1", timestamp tokens, and the auth-token/auth-user keys.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Auth: AuthConfig{
			Delay:             time.Second,
			PlaceholderUserID: "1",
		},
		Session: SessionConfig{
			TokenKey:    session.DefaultTokenKey,
			IdentityKey: session.DefaultIdentityKey,
			RedisPrefix: "gogate",
		},
		Token: TokenConfig{
			Mode:          TokenTimestamp,
			Prefix:        "session-token-",
			SigningMethod: "hs256",
			Issuer:        "gogate",
		},
		Routes: RouteConfig{
			EntryPath:   route.DefaultEntryPath,
			LandingPath: route.DefaultLandingPath,
			Param:       route.DefaultParam,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	// Auth
	if c.Auth.Delay < 0 {
		return errors.New("Auth Delay must be >= 0")
	}
	if strings.TrimSpace(c.Auth.PlaceholderUserID) == "" {
		return errors.New("Auth PlaceholderUserID must not be empty")
	}

	// Session
	if c.Session.TokenKey == "" || c.Session.IdentityKey == "" {
		return errors.New("Session TokenKey and IdentityKey must not be empty")
	}
	if c.Session.TokenKey == c.Session.IdentityKey {
		return errors.New("Session TokenKey and IdentityKey must differ")
	}

	// Token
	switch c.Token.Mode {
	case TokenTimestamp:
		if c.Token.Prefix == "" {
			return errors.New("Token Prefix must not be empty in timestamp mode")
		}
	case TokenJWT:
		switch c.Token.SigningMethod {
		case "hs256":
			if len(c.Token.PrivateKey) == 0 {
				return errors.New("hs256 requires Token PrivateKey")
			}
		case "ed25519":
			if len(c.Token.PublicKey) == 0 || len(c.Token.PrivateKey) == 0 {
				return errors.New("ed25519 requires Token PrivateKey and PublicKey")
			}
		default:
			return errors.New("unsupported Token SigningMethod")
		}
		if c.Token.TTL < 0 {
			return errors.New("Token TTL must be >= 0")
		}
	default:
		return errors.New("unsupported Token Mode")
	}

	// Routes
	if !strings.HasPrefix(c.Routes.EntryPath, "/") {
		return errors.New("Routes EntryPath must be an absolute path")
	}
	if !strings.HasPrefix(c.Routes.LandingPath, "/") {
		return errors.New("Routes LandingPath must be an absolute path")
	}
	if c.Routes.EntryPath == c.Routes.LandingPath {
		return errors.New("Routes EntryPath and LandingPath must differ")
	}
	if c.Routes.Param == "" {
		return errors.New("Routes Param must not be empty")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
