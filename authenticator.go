package goGate

import (
	"context"
	"time"
)

// Authenticator turns an [AuthRequest] into an identity. It is the seam where a
// real credential check or RPC would be substituted.
type Authenticator interface {
	Authenticate(ctx context.Context, req AuthRequest) (Identity, error)
}

// AuthenticatorFunc adapts a function to [Authenticator].
type AuthenticatorFunc func(ctx context.Context, req AuthRequest) (Identity, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, req AuthRequest) (Identity, error) {
	return f(ctx, req)
}

// SimulatedAuthenticator accepts every request after a fixed delay. The
// password is never looked at.
type SimulatedAuthenticator struct {
	Delay  time.Duration
	UserID string

	sleep func(time.Duration)
}

// NewSimulatedAuthenticator returns an authenticator that waits delay and then
// synthesizes an identity with the given placeholder ID.
func NewSimulatedAuthenticator(delay time.Duration, userID string) *SimulatedAuthenticator {
	return &SimulatedAuthenticator{
		Delay:  delay,
		UserID: userID,
		sleep:  time.Sleep,
	}
}

// Authenticate waits out the delay and returns the synthesized identity. The
// wait does not observe ctx: once started, a login always completes.
func (a *SimulatedAuthenticator) Authenticate(_ context.Context, req AuthRequest) (Identity, error) {
	if a.Delay > 0 {
		sleep := a.sleep
		if sleep == nil {
			sleep = time.Sleep
		}
		sleep(a.Delay)
	}

	name := req.Name
	if req.Kind == AuthLogin {
		name = DisplayNameFromEmail(req.Email)
	}

	return Identity{
		ID:          a.UserID,
		Email:       req.Email,
		DisplayName: name,
	}, nil
}
