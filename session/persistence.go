package session

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultTokenKey is the storage key of the session token entry.
	DefaultTokenKey = "auth-token"
	// DefaultIdentityKey is the storage key of the encoded identity entry.
	DefaultIdentityKey = "auth-user"
)

// Persistence reads and writes the token/identity pair on a [KV].
type Persistence struct {
	kv          KV
	tokenKey    string
	identityKey string
}

// NewPersistence binds the two session keys to kv. Empty keys fall back to
// [DefaultTokenKey] and [DefaultIdentityKey].
func NewPersistence(kv KV, tokenKey, identityKey string) *Persistence {
	if tokenKey == "" {
		tokenKey = DefaultTokenKey
	}
	if identityKey == "" {
		identityKey = DefaultIdentityKey
	}
	return &Persistence{
		kv:          kv,
		tokenKey:    tokenKey,
		identityKey: identityKey,
	}
}

// Keys returns the token and identity keys.
func (p *Persistence) Keys() (tokenKey, identityKey string) {
	return p.tokenKey, p.identityKey
}

// Load returns the stored session. ok is false when either entry is missing or
// empty; that is a normal state, not an error. A present but undecodable
// identity returns an error wrapping [ErrIdentityCorrupt].
func (p *Persistence) Load(ctx context.Context) (Session, bool, error) {
	token, ok, err := p.kv.Get(ctx, p.tokenKey)
	if err != nil || !ok || token == "" {
		return Session{}, false, err
	}

	raw, ok, err := p.kv.Get(ctx, p.identityKey)
	if err != nil || !ok || raw == "" {
		return Session{}, false, err
	}

	id, err := DecodeIdentity(raw)
	if err != nil {
		return Session{}, false, err
	}

	sess := Session{Token: token, Identity: id}
	if !sess.Valid() {
		return Session{}, false, nil
	}
	return sess, true, nil
}

// Save writes both entries. If the backend fails part way, Save removes
// whatever it wrote so the pair is never left half-present.
func (p *Persistence) Save(ctx context.Context, sess Session) error {
	if !sess.Valid() {
		return errors.New("session requires token and identity")
	}

	encoded, err := EncodeIdentity(sess.Identity)
	if err != nil {
		return err
	}

	if ps, ok := p.kv.(PairSetter); ok {
		return ps.SetMany(ctx, map[string]string{
			p.tokenKey:    sess.Token,
			p.identityKey: encoded,
		})
	}

	if err := p.kv.Set(ctx, p.tokenKey, sess.Token); err != nil {
		return err
	}
	if err := p.kv.Set(ctx, p.identityKey, encoded); err != nil {
		if delErr := p.kv.Delete(ctx, p.tokenKey); delErr != nil {
			return errors.Join(err, fmt.Errorf("rollback left token entry behind: %w", delErr))
		}
		return err
	}
	return nil
}

// Clear removes both entries. Missing entries are not an error.
func (p *Persistence) Clear(ctx context.Context) error {
	return p.kv.Delete(ctx, p.tokenKey, p.identityKey)
}

// Status describes where the pair lives and whether the backend answers.
type Status struct {
	Backend     string
	Location    string
	TokenKey    string
	IdentityKey string
	// Latency and Err are set only for backends that can be pinged.
	Latency time.Duration
	Err     error
}

// Status reports the backend behind p. Redis is pinged; the other backends
// are local and always reachable.
func (p *Persistence) Status(ctx context.Context) Status {
	st := Status{Backend: "custom"}
	st.TokenKey, st.IdentityKey = p.Keys()

	switch kv := p.kv.(type) {
	case *MemoryKV:
		st.Backend = "memory"
	case *FileKV:
		st.Backend = "file"
		st.Location = kv.Path()
	case *RedisKV:
		st.Backend = "redis"
		st.Location = kv.prefix
		st.Latency, st.Err = kv.Ping(ctx)
	}
	return st
}
