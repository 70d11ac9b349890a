package session

// Identity is the synthetic user a session belongs to.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
}

// IsZero reports whether no identity is set.
func (i Identity) IsZero() bool {
	return i == Identity{}
}

// Session pairs an opaque token with the identity it was issued for.
type Session struct {
	Token    string
	Identity Identity
}

// Valid reports whether both halves of the session are present.
func (s Session) Valid() bool {
	return s.Token != "" && !s.Identity.IsZero()
}
