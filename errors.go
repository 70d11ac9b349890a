package goGate

import "errors"

var (
	// ErrLoginFailed wraps every Login failure.
	ErrLoginFailed = errors.New("login failed")
	// ErrSignupFailed wraps every Signup failure.
	ErrSignupFailed = errors.New("signup failed")
	// ErrAuthenticatorFault is returned when the authenticator errors, panics, or
	// returns an empty identity.
	ErrAuthenticatorFault = errors.New("authenticator fault")
	// ErrTokenIssue is returned when no session token could be minted.
	ErrTokenIssue = errors.New("session token issue failed")
	// ErrStoragePersist is returned when the session pair could not be written.
	ErrStoragePersist = errors.New("session persist failed")
	// ErrStoreNotReady is returned by methods called on a nil or unbuilt Store.
	ErrStoreNotReady = errors.New("session store not initialized")
)
