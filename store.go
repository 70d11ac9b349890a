package goGate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/goGate/route"
	"github.com/MrEthical07/goGate/session"
)

// Store is the single holder of the current session. Build one with [New] at
// startup and hand it to whatever needs it. All methods are safe for
// concurrent use.
type Store struct {
	config Config

	// writeMu orders storage writes with the memory update that follows them,
	// so memory always matches what storage holds. mu guards current alone.
	writeMu sync.Mutex
	mu      sync.RWMutex
	current Session

	persist *session.Persistence
	authn   Authenticator
	tokens  TokenIssuer
	guard   route.Guard
	audit   *auditDispatcher
	metrics *Metrics
	logger  *slog.Logger
}

// Hydrate restores a previously persisted session. It returns true when both
// entries were present and readable. Missing, half-present, corrupt, or
// unreachable storage all leave the store logged out and return false.
func (s *Store) Hydrate(ctx context.Context) bool {
	if s == nil {
		return false
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sess, ok, err := s.persist.Load(ctx)
	switch {
	case err != nil:
		s.logger.Warn("goGate: session hydrate failed", "error", err)
		s.metricInc(MetricHydrateFailure)
	case ok:
		s.metricInc(MetricHydrateRestored)
	default:
		s.metricInc(MetricHydrateEmpty)
	}

	s.mu.Lock()
	if ok {
		s.current = sess
	} else {
		s.current = Session{}
	}
	s.mu.Unlock()

	s.emitAudit(ctx, AuditEventHydrate, ok, sess.Identity, err, nil)
	return ok
}

// Login establishes a session for email after the authenticator round trip.
// The password is passed to the authenticator and never stored. A nil error
// means the session is active and persisted.
func (s *Store) Login(ctx context.Context, email, password string) (Session, error) {
	sess, err := s.establish(ctx, AuthRequest{
		Kind:     AuthLogin,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	return sess, nil
}

// Signup behaves like [Store.Login] but the display name is name.
func (s *Store) Signup(ctx context.Context, email, password, name string) (Session, error) {
	sess, err := s.establish(ctx, AuthRequest{
		Kind:     AuthSignup,
		Email:    email,
		Password: password,
		Name:     name,
	})
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrSignupFailed, err)
	}
	return sess, nil
}

// Logout clears the session in memory and in storage. It always succeeds;
// storage errors are logged. Calling it while logged out is a no-op apart from
// the storage delete.
func (s *Store) Logout(ctx context.Context) {
	if s == nil {
		return
	}

	s.writeMu.Lock()
	s.mu.Lock()
	prev := s.current
	s.current = Session{}
	s.mu.Unlock()

	err := s.persist.Clear(context.WithoutCancel(ctx))
	s.writeMu.Unlock()
	if err != nil {
		s.logger.Warn("goGate: session clear failed", "error", err)
	}

	s.metricInc(MetricLogout)
	s.emitAudit(ctx, AuditEventLogout, err == nil, prev.Identity, err, nil)
}

// IsAuthenticated reports whether a token and identity are both held.
func (s *Store) IsAuthenticated() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Valid()
}

// Session returns a copy of the current session.
func (s *Store) Session() (Session, bool) {
	if s == nil {
		return Session{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.current.Valid()
}

// Identity returns the current identity.
func (s *Store) Identity() (Identity, bool) {
	sess, ok := s.Session()
	return sess.Identity, ok
}

// Token returns the current token, or "".
func (s *Store) Token() string {
	sess, _ := s.Session()
	return sess.Token
}

// CheckRoute runs the route guard against the current authentication state.
func (s *Store) CheckRoute(ctx context.Context, requested string) route.Decision {
	if s == nil {
		return route.Guard{}.Check(false, requested)
	}

	d := s.guard.Check(s.IsAuthenticated(), requested)
	if d.Allow {
		s.metricInc(MetricRouteAllowed)
		return d
	}

	s.metricInc(MetricRouteRedirected)
	s.emitAudit(ctx, AuditEventRouteRedirect, true, Identity{}, nil, func() map[string]string {
		return map[string]string{
			"requested": requested,
			"target":    d.Target,
		}
	})
	return d
}

// ResolveDestination returns where to send the visitor after a successful
// login or signup.
func (s *Store) ResolveDestination(pending string) string {
	if s == nil {
		return route.Guard{}.Resolve(pending)
	}
	return s.guard.Resolve(pending)
}

// Guard returns the configured route guard.
func (s *Store) Guard() route.Guard {
	if s == nil {
		return route.NewGuard("", "", "")
	}
	return s.guard
}

// StorageStatus reports the storage backend, its keys, and, for Redis, a
// ping round trip.
func (s *Store) StorageStatus(ctx context.Context) StorageStatus {
	if s == nil {
		return StorageStatus{Err: ErrStoreNotReady}
	}
	return s.persist.Status(ctx)
}

// Close flushes and stops the audit dispatcher. The session itself is left
// untouched.
func (s *Store) Close() {
	if s == nil {
		return
	}
	s.audit.Close()
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (s *Store) AuditDropped() uint64 {
	if s == nil {
		return 0
	}
	return s.audit.Dropped()
}

// MetricsSnapshot returns a copy of the store counters.
func (s *Store) MetricsSnapshot() MetricsSnapshot {
	if s == nil || s.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return s.metrics.Snapshot()
}

func (s *Store) establish(ctx context.Context, req AuthRequest) (sess Session, err error) {
	if s == nil {
		return Session{}, ErrStoreNotReady
	}

	success, failure := MetricLoginSuccess, MetricLoginFailure
	event := AuditEventLogin
	if req.Kind == AuthSignup {
		success, failure = MetricSignupSuccess, MetricSignupFailure
		event = AuditEventSignup
	}

	defer func() {
		if err != nil {
			s.logger.Warn("goGate: "+req.Kind.String()+" failed", "email", req.Email, "error", err)
			s.metricInc(failure)
		} else {
			s.metricInc(success)
		}
		s.emitAudit(ctx, event, err == nil, sess.Identity, err, func() map[string]string {
			return map[string]string{"email": req.Email}
		})
	}()

	start := time.Now()
	id, err := s.authenticate(ctx, req)
	s.metricObserve(MetricAuthenticateLatency, time.Since(start))
	if err != nil {
		return Session{}, err
	}

	token, err := s.issueToken(ctx, id)
	if err != nil {
		return Session{}, err
	}

	sess = Session{Token: token, Identity: id}

	// The round trip already finished; a caller that went away must not leave
	// storage and memory disagreeing.
	writeCtx := context.WithoutCancel(ctx)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.persist.Save(writeCtx, sess); err != nil {
		s.mu.Lock()
		s.current = Session{}
		s.mu.Unlock()
		if clearErr := s.persist.Clear(writeCtx); clearErr != nil {
			s.logger.Warn("goGate: session clear after failed persist", "error", clearErr)
		}
		return Session{}, fmt.Errorf("%w: %w", ErrStoragePersist, err)
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	return sess, nil
}

func (s *Store) authenticate(ctx context.Context, req AuthRequest) (id Identity, err error) {
	defer func() {
		if r := recover(); r != nil {
			id = Identity{}
			err = fmt.Errorf("%w: panic: %v", ErrAuthenticatorFault, r)
		}
	}()

	id, err = s.authn.Authenticate(ctx, req)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrAuthenticatorFault, err)
	}
	if id.IsZero() {
		return Identity{}, fmt.Errorf("%w: empty identity", ErrAuthenticatorFault)
	}
	return id, nil
}

func (s *Store) issueToken(ctx context.Context, id Identity) (token string, err error) {
	defer func() {
		if r := recover(); r != nil {
			token = ""
			err = fmt.Errorf("%w: panic: %v", ErrTokenIssue, r)
		}
	}()

	token, err = s.tokens.Issue(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenIssue, err)
	}
	if token == "" {
		return "", fmt.Errorf("%w: %v", ErrTokenIssue, errors.New("empty token"))
	}
	return token, nil
}

func (s *Store) metricInc(id MetricID) {
	s.metrics.Inc(id)
}

func (s *Store) metricObserve(id MetricID, d time.Duration) {
	s.metrics.Observe(id, d)
}
