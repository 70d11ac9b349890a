package goGate

import (
	"strings"

	"github.com/MrEthical07/goGate/session"
)

// Identity is the synthetic user behind a session.
type Identity = session.Identity

// Session pairs a token with its identity.
type Session = session.Session

// StorageStatus describes the durable storage behind a [Store].
type StorageStatus = session.Status

// AuthKind distinguishes the two ways a session is established.
type AuthKind uint8

const (
	// AuthLogin derives the display name from the email.
	AuthLogin AuthKind = iota
	// AuthSignup uses the supplied name as display name.
	AuthSignup
)

func (k AuthKind) String() string {
	switch k {
	case AuthLogin:
		return "login"
	case AuthSignup:
		return "signup"
	default:
		return "unknown"
	}
}

// AuthRequest is what the store hands to an [Authenticator]. Password is
// carried through unchanged and never inspected by goGate itself.
type AuthRequest struct {
	Kind     AuthKind
	Email    string
	Password string
	Name     string
}

// DisplayNameFromEmail returns the text before the first "@", or the whole
// string when there is none.
func DisplayNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
