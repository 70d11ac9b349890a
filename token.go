package goGate

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/goGate/jwt"
)

// TokenIssuer mints the opaque token stored alongside an identity.
type TokenIssuer interface {
	Issue(ctx context.Context, id Identity) (string, error)
}

// TimestampIssuer mints "<Prefix><unix millis>" tokens. They carry no claims
// and no cryptographic guarantee; presence is all that matters.
type TimestampIssuer struct {
	Prefix string
	Now    func() time.Time
}

func (t TimestampIssuer) Issue(context.Context, Identity) (string, error) {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	return t.Prefix + strconv.FormatInt(now().UnixMilli(), 10), nil
}

type jwtIssuer struct {
	manager *jwt.Manager
}

// NewJWTIssuer wraps a [jwt.Manager] as a [TokenIssuer].
func NewJWTIssuer(m *jwt.Manager) TokenIssuer {
	return jwtIssuer{manager: m}
}

func (j jwtIssuer) Issue(_ context.Context, id Identity) (string, error) {
	if j.manager == nil {
		return "", errors.New("jwt manager not configured")
	}
	return j.manager.Issue(id.ID, id.Email, id.DisplayName)
}

// NewJWTManager builds the [jwt.Manager] described by cfg.
func NewJWTManager(cfg TokenConfig) (*jwt.Manager, error) {
	return jwt.NewManager(jwt.Config{
		TTL:           cfg.TTL,
		SigningMethod: jwt.SigningMethod(cfg.SigningMethod),
		PrivateKey:    cfg.PrivateKey,
		PublicKey:     cfg.PublicKey,
		Issuer:        cfg.Issuer,
		KeyID:         cfg.KeyID,
	})
}

func newTokenIssuer(cfg TokenConfig) (TokenIssuer, error) {
	if cfg.Mode == TokenJWT {
		m, err := NewJWTManager(cfg)
		if err != nil {
			return nil, err
		}
		return NewJWTIssuer(m), nil
	}
	return TimestampIssuer{Prefix: cfg.Prefix}, nil
}
