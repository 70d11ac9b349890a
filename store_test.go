package goGate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goGate/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Auth.Delay = 0
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

func buildTestStore(t *testing.T, cfg Config, opts ...func(*Builder)) *Store {
	t.Helper()

	b := New().WithConfig(cfg).WithLogger(testLogger())
	for _, opt := range opts {
		opt(b)
	}
	store, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestLoginDerivesDisplayNameFromEmail(t *testing.T) {
	kv := session.NewMemoryKV()
	store := buildTestStore(t, testConfig(), func(b *Builder) { b.WithStorage(kv) })

	sess, err := store.Login(context.Background(), "alice@example.com", "anything")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	want := Identity{ID: "1", Email: "alice@example.com", DisplayName: "alice"}
	if sess.Identity != want {
		t.Fatalf("expected %+v, got %+v", want, sess.Identity)
	}
	if !store.IsAuthenticated() {
		t.Fatal("expected authenticated after login")
	}
	if store.Token() != sess.Token || sess.Token == "" {
		t.Fatalf("unexpected token %q", store.Token())
	}

	token, ok, _ := kv.Get(context.Background(), session.DefaultTokenKey)
	if !ok || token != sess.Token {
		t.Fatalf("expected persisted token %q, got %q", sess.Token, token)
	}
	raw, ok, _ := kv.Get(context.Background(), session.DefaultIdentityKey)
	if !ok {
		t.Fatal("expected persisted identity")
	}
	decoded, err := session.DecodeIdentity(raw)
	if err != nil || decoded != want {
		t.Fatalf("persisted identity mismatch: %+v err=%v", decoded, err)
	}
}

func TestDisplayNameFromEmail(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"alice@example.com", "alice"},
		{"no-at-sign", "no-at-sign"},
		{"a@b@c", "a"},
		{"@example.com", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := DisplayNameFromEmail(tt.email); got != tt.want {
			t.Fatalf("DisplayNameFromEmail(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}

func TestSignupUsesSuppliedName(t *testing.T) {
	store := buildTestStore(t, testConfig())

	sess, err := store.Signup(context.Background(), "bob@x.io", "pw", "Bob Smith")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if sess.Identity.DisplayName != "Bob Smith" || sess.Identity.Email != "bob@x.io" {
		t.Fatalf("unexpected identity %+v", sess.Identity)
	}
	if !store.IsAuthenticated() {
		t.Fatal("expected authenticated after signup")
	}
}

func TestTimestampTokenFormat(t *testing.T) {
	fixed := time.UnixMilli(1700000000123)
	store := buildTestStore(t, testConfig(), func(b *Builder) {
		b.WithTokenIssuer(TimestampIssuer{Prefix: "session-token-", Now: func() time.Time { return fixed }})
	})

	sess, err := store.Login(context.Background(), "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if sess.Token != "session-token-1700000000123" {
		t.Fatalf("unexpected token %q", sess.Token)
	}
}

func TestLogoutClearsMemoryAndStorageIdempotent(t *testing.T) {
	kv := session.NewMemoryKV()
	store := buildTestStore(t, testConfig(), func(b *Builder) { b.WithStorage(kv) })
	ctx := context.Background()

	if _, err := store.Login(ctx, "alice@example.com", "pw"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	store.Logout(ctx)
	if store.IsAuthenticated() {
		t.Fatal("expected logged out")
	}
	if kv.Len() != 0 {
		t.Fatalf("expected storage empty, got %d entries", kv.Len())
	}
	if _, ok := store.Identity(); ok {
		t.Fatal("expected no identity after logout")
	}

	store.Logout(ctx)
	if store.IsAuthenticated() || kv.Len() != 0 {
		t.Fatal("second logout must leave the same state")
	}
}

func TestHydrateReflectsPersistedState(t *testing.T) {
	ctx := context.Background()
	id, err := session.EncodeIdentity(Identity{ID: "1", Email: "alice@example.com", DisplayName: "alice"})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	tests := []struct {
		name    string
		entries map[string]string
		want    bool
	}{
		{"both present", map[string]string{"auth-token": "session-token-1", "auth-user": id}, true},
		{"token only", map[string]string{"auth-token": "session-token-1"}, false},
		{"identity only", map[string]string{"auth-user": id}, false},
		{"empty", map[string]string{}, false},
		{"corrupt identity", map[string]string{"auth-token": "session-token-1", "auth-user": "%%%"}, false},
		{"legacy json identity", map[string]string{
			"auth-token": "session-token-1",
			"auth-user":  `{"id":"1","email":"alice@example.com","name":"alice"}`,
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := session.NewMemoryKV()
			for k, v := range tt.entries {
				_ = kv.Set(ctx, k, v)
			}
			store := buildTestStore(t, testConfig(), func(b *Builder) { b.WithStorage(kv) })

			if got := store.Hydrate(ctx); got != tt.want {
				t.Fatalf("Hydrate = %v, want %v", got, tt.want)
			}
			if store.IsAuthenticated() != tt.want {
				t.Fatalf("IsAuthenticated = %v, want %v", store.IsAuthenticated(), tt.want)
			}
			if tt.want {
				got, _ := store.Identity()
				if got.DisplayName != "alice" || store.Token() != "session-token-1" {
					t.Fatalf("unexpected hydrated session %+v token=%q", got, store.Token())
				}
			}
		})
	}
}

func TestSessionSurvivesRestart(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctx := context.Background()

	first := buildTestStore(t, testConfig(), func(b *Builder) { b.WithRedis(rdb) })
	sess, err := first.Signup(ctx, "bob@x.io", "pw", "Bob Smith")
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	first.Close()

	second := buildTestStore(t, testConfig(), func(b *Builder) { b.WithRedis(rdb) })
	if !second.Hydrate(ctx) {
		t.Fatal("expected hydrate to restore session")
	}
	got, ok := second.Session()
	if !ok || got != sess {
		t.Fatalf("expected %+v, got %+v", sess, got)
	}

	second.Logout(ctx)
	third := buildTestStore(t, testConfig(), func(b *Builder) { b.WithRedis(rdb) })
	if third.Hydrate(ctx) {
		t.Fatal("expected no session after logout")
	}
}

func TestHydrateUnavailableBackendStaysLoggedOut(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	store := buildTestStore(t, testConfig(), func(b *Builder) { b.WithRedis(rdb) })
	if store.Hydrate(context.Background()) {
		t.Fatal("expected hydrate to fail closed")
	}
	if store.IsAuthenticated() {
		t.Fatal("expected logged out")
	}
	if got := store.MetricsSnapshot().Counters[MetricHydrateFailure]; got != 1 {
		t.Fatalf("expected hydrate failure counter 1, got %d", got)
	}
}

func TestLoginAuthenticatorFailures(t *testing.T) {
	tests := []struct {
		name  string
		authn AuthenticatorFunc
	}{
		{"error", func(context.Context, AuthRequest) (Identity, error) {
			return Identity{}, errors.New("upstream down")
		}},
		{"panic", func(context.Context, AuthRequest) (Identity, error) {
			panic("boom")
		}},
		{"empty identity", func(context.Context, AuthRequest) (Identity, error) {
			return Identity{}, nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := session.NewMemoryKV()
			store := buildTestStore(t, testConfig(), func(b *Builder) {
				b.WithStorage(kv)
				b.WithAuthenticator(tt.authn)
			})

			_, err := store.Login(context.Background(), "alice@example.com", "pw")
			if !errors.Is(err, ErrLoginFailed) || !errors.Is(err, ErrAuthenticatorFault) {
				t.Fatalf("expected ErrLoginFailed wrapping ErrAuthenticatorFault, got %v", err)
			}
			if store.IsAuthenticated() || kv.Len() != 0 {
				t.Fatal("failed login must not leave a session")
			}
			if got := store.MetricsSnapshot().Counters[MetricLoginFailure]; got != 1 {
				t.Fatalf("expected login failure counter 1, got %d", got)
			}
		})
	}
}

func TestSignupFailureWrapsSignupError(t *testing.T) {
	store := buildTestStore(t, testConfig(), func(b *Builder) {
		b.WithTokenIssuer(tokenIssuerFunc(func(context.Context, Identity) (string, error) {
			return "", errors.New("no entropy")
		}))
	})

	_, err := store.Signup(context.Background(), "bob@x.io", "pw", "Bob Smith")
	if !errors.Is(err, ErrSignupFailed) || !errors.Is(err, ErrTokenIssue) {
		t.Fatalf("expected ErrSignupFailed wrapping ErrTokenIssue, got %v", err)
	}
	if store.IsAuthenticated() {
		t.Fatal("failed signup must not authenticate")
	}
}

type tokenIssuerFunc func(ctx context.Context, id Identity) (string, error)

func (f tokenIssuerFunc) Issue(ctx context.Context, id Identity) (string, error) {
	return f(ctx, id)
}

type brokenKV struct {
	session.MemoryKV
	failSet bool
}

func (b *brokenKV) Set(ctx context.Context, key, value string) error {
	if b.failSet {
		return session.ErrStorageUnavailable
	}
	return b.MemoryKV.Set(ctx, key, value)
}

func (b *brokenKV) SetMany(ctx context.Context, entries map[string]string) error {
	if b.failSet {
		return session.ErrStorageUnavailable
	}
	return b.MemoryKV.SetMany(ctx, entries)
}

func TestLoginPersistFailureClearsSession(t *testing.T) {
	kv := &brokenKV{}
	store := buildTestStore(t, testConfig(), func(b *Builder) { b.WithStorage(kv) })
	ctx := context.Background()

	if _, err := store.Login(ctx, "alice@example.com", "pw"); err != nil {
		t.Fatalf("first login failed: %v", err)
	}

	kv.failSet = true
	_, err := store.Login(ctx, "carol@example.com", "pw")
	if !errors.Is(err, ErrLoginFailed) || !errors.Is(err, ErrStoragePersist) {
		t.Fatalf("expected ErrLoginFailed wrapping ErrStoragePersist, got %v", err)
	}
	if !errors.Is(err, session.ErrStorageUnavailable) {
		t.Fatalf("expected the storage cause to stay visible, got %v", err)
	}
	if store.IsAuthenticated() {
		t.Fatal("memory must not outlive a failed persist")
	}
	if kv.Len() != 0 {
		t.Fatalf("expected storage cleared, got %d entries", kv.Len())
	}
}

func TestLoginDelayIgnoresCancellation(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Delay = 30 * time.Millisecond
	store := buildTestStore(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if _, err := store.Login(ctx, "alice@example.com", "pw"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Fatal("expected the full simulated delay")
	}
	if !store.IsAuthenticated() {
		t.Fatal("expected authenticated")
	}
}

func TestDashboardRedirectAndReturn(t *testing.T) {
	store := buildTestStore(t, testConfig())
	ctx := context.Background()

	d := store.CheckRoute(ctx, "/dashboard")
	if d.Allow {
		t.Fatal("expected redirect while logged out")
	}
	if d.Target != "/login?from=%2Fdashboard" || d.From != "/dashboard" || !d.Replace {
		t.Fatalf("unexpected decision %+v", d)
	}

	if _, err := store.Login(ctx, "alice@example.com", "pw"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if got := store.ResolveDestination(d.From); got != "/dashboard" {
		t.Fatalf("expected /dashboard, got %q", got)
	}
	if got := store.ResolveDestination(""); got != "/home" {
		t.Fatalf("expected /home, got %q", got)
	}
	if !store.CheckRoute(ctx, "/dashboard").Allow {
		t.Fatal("expected access after login")
	}

	snap := store.MetricsSnapshot()
	if snap.Counters[MetricRouteRedirected] != 1 || snap.Counters[MetricRouteAllowed] != 1 {
		t.Fatalf("unexpected route counters %+v", snap.Counters)
	}
}

func TestJWTTokenMode(t *testing.T) {
	cfg := testConfig()
	cfg.Token.Mode = TokenJWT
	cfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	store := buildTestStore(t, cfg)

	sess, err := store.Login(context.Background(), "alice@example.com", "pw")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	m, err := NewJWTManager(cfg.Token)
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}
	claims, err := m.Parse(sess.Token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.Subject != "1" || claims.Email != "alice@example.com" || claims.Name != "alice" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

// assertMemoryMatchesStorage compares the held session with storage while no
// write can interleave.
func assertMemoryMatchesStorage(t *testing.T, store *Store) {
	t.Helper()

	store.writeMu.Lock()
	defer store.writeMu.Unlock()

	mem, memOK := store.Session()
	stored, storedOK, err := store.persist.Load(context.Background())
	if err != nil {
		t.Errorf("load failed: %v", err)
		return
	}
	if memOK != storedOK || mem != stored {
		t.Errorf("memory %+v (ok=%v) differs from storage %+v (ok=%v)", mem, memOK, stored, storedOK)
	}
}

func TestConcurrentLoginLogoutConsistent(t *testing.T) {
	kv := session.NewMemoryKV()
	store := buildTestStore(t, testConfig(), func(b *Builder) { b.WithStorage(kv) })
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(3)
		email := fmt.Sprintf("user%d@example.com", i)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if _, err := store.Login(ctx, email, "pw"); err != nil {
					t.Errorf("login failed: %v", err)
				}
				assertMemoryMatchesStorage(t, store)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				store.Logout(ctx)
				assertMemoryMatchesStorage(t, store)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if sess, ok := store.Session(); ok && (sess.Token == "" || sess.Identity.Email == "") {
					t.Errorf("observed half session %+v", sess)
				}
			}
		}()
	}
	wg.Wait()
	assertMemoryMatchesStorage(t, store)

	store.Logout(ctx)
	if store.IsAuthenticated() || kv.Len() != 0 {
		t.Fatal("expected clean state after final logout")
	}
}

// pausingKV holds the first pair write open until release is closed, leaving
// room for a Logout to race it.
type pausingKV struct {
	*session.MemoryKV
	written chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *pausingKV) SetMany(ctx context.Context, entries map[string]string) error {
	err := p.MemoryKV.SetMany(ctx, entries)
	p.once.Do(func() {
		close(p.written)
		<-p.release
	})
	return err
}

func TestLogoutDuringLoginWriteKeepsStorageAndMemoryAligned(t *testing.T) {
	kv := &pausingKV{
		MemoryKV: session.NewMemoryKV(),
		written:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	store := buildTestStore(t, testConfig(), func(b *Builder) { b.WithStorage(kv) })
	ctx := context.Background()

	loginDone := make(chan error, 1)
	go func() {
		_, err := store.Login(ctx, "alice@example.com", "pw")
		loginDone <- err
	}()

	<-kv.written
	logoutDone := make(chan struct{})
	go func() {
		store.Logout(ctx)
		close(logoutDone)
	}()

	select {
	case <-logoutDone:
		t.Fatal("logout must wait for the in-flight login write")
	case <-time.After(20 * time.Millisecond):
	}

	close(kv.release)
	if err := <-loginDone; err != nil {
		t.Fatalf("login failed: %v", err)
	}
	<-logoutDone

	if store.IsAuthenticated() {
		t.Fatal("logout ran last; expected logged out")
	}
	if kv.Len() != 0 {
		t.Fatalf("expected storage cleared, got %d entries", kv.Len())
	}
	assertMemoryMatchesStorage(t, store)

	fresh := buildTestStore(t, testConfig(), func(b *Builder) { b.WithStorage(kv.MemoryKV) })
	if fresh.Hydrate(ctx) {
		t.Fatal("a restarted store must not find a session")
	}
}

func TestLoginAcceptsLongEmailAndName(t *testing.T) {
	kv := session.NewMemoryKV()
	store := buildTestStore(t, testConfig(), func(b *Builder) { b.WithStorage(kv) })
	ctx := context.Background()

	local := strings.Repeat("a", 300)
	sess, err := store.Login(ctx, local+"@example.com", "x")
	if err != nil {
		t.Fatalf("login with long email failed: %v", err)
	}
	if sess.Identity.DisplayName != local {
		t.Fatalf("unexpected display name length %d", len(sess.Identity.DisplayName))
	}

	name := strings.Repeat("B", 300)
	if _, err := store.Signup(ctx, "bob@x.io", "x", name); err != nil {
		t.Fatalf("signup with long name failed: %v", err)
	}

	fresh := buildTestStore(t, testConfig(), func(b *Builder) { b.WithStorage(kv) })
	if !fresh.Hydrate(ctx) {
		t.Fatal("expected long identity to hydrate")
	}
	if id, _ := fresh.Identity(); id.DisplayName != name {
		t.Fatal("long display name did not survive storage")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig()).WithLogger(testLogger())
	store, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer store.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestNilStoreIsSafe(t *testing.T) {
	var s *Store
	if s.Hydrate(context.Background()) || s.IsAuthenticated() {
		t.Fatal("nil store must be logged out")
	}
	if _, err := s.Login(context.Background(), "a@b", "pw"); !errors.Is(err, ErrStoreNotReady) {
		t.Fatalf("expected ErrStoreNotReady, got %v", err)
	}
	s.Logout(context.Background())
	s.Close()
	if s.CheckRoute(context.Background(), "/dashboard").Allow {
		t.Fatal("nil store must redirect")
	}
}
