// Package route decides whether a restricted location may be rendered and where
// a visitor goes after passing through the entry view.
//
// The package is pure: it reads an authentication flag and a location and returns
// a [Decision]. Transport adapters (see package middleware) act on the decision.
package route

import (
	"net/url"
	"strings"
)

const (
	// DefaultEntryPath is where unauthenticated visitors are sent.
	DefaultEntryPath = "/login"
	// DefaultLandingPath is the post-entry target when no destination is pending.
	DefaultLandingPath = "/home"
	// DefaultParam carries the pending destination on the entry URL.
	DefaultParam = "from"
)

// Decision is the outcome of [Guard.Check].
type Decision struct {
	// Allow is true when the requested location may be rendered unchanged.
	Allow bool
	// Target is the redirect location when Allow is false.
	Target string
	// From is the pending destination attached to Target.
	From string
	// Replace marks the redirect as replacing the intercepted navigation entry.
	Replace bool
}

// Guard gates restricted locations behind the entry view.
type Guard struct {
	EntryPath   string
	LandingPath string
	Param       string
}

// NewGuard returns a [Guard] with defaults applied to empty fields.
func NewGuard(entryPath, landingPath, param string) Guard {
	g := Guard{EntryPath: entryPath, LandingPath: landingPath, Param: param}
	return g.withDefaults()
}

func (g Guard) withDefaults() Guard {
	if g.EntryPath == "" {
		g.EntryPath = DefaultEntryPath
	}
	if g.LandingPath == "" {
		g.LandingPath = DefaultLandingPath
	}
	if g.Param == "" {
		g.Param = DefaultParam
	}
	return g
}

// Check allows the requested location when authenticated. Otherwise it
// redirects to the entry view, remembering requested as the pending destination.
// The redirect always replaces the current entry.
func (g Guard) Check(authenticated bool, requested string) Decision {
	if authenticated {
		return Decision{Allow: true}
	}

	g = g.withDefaults()
	from := g.sanitize(requested)

	target := g.EntryPath
	if from != "" {
		target += "?" + url.Values{g.Param: {from}}.Encode()
	}

	return Decision{
		Target:  target,
		From:    from,
		Replace: true,
	}
}

// Resolve returns where to go after a successful entry: the pending destination
// when it is a safe local path, the landing path otherwise.
func (g Guard) Resolve(pending string) string {
	g = g.withDefaults()
	if from := g.sanitize(pending); from != "" {
		return from
	}
	return g.LandingPath
}

// sanitize keeps only same-origin absolute paths and drops the entry view
// itself, which would loop.
func (g Guard) sanitize(location string) string {
	location = strings.TrimSpace(location)
	if location == "" || !strings.HasPrefix(location, "/") {
		return ""
	}
	if strings.HasPrefix(location, "//") || strings.HasPrefix(location, "/\\") {
		return ""
	}

	u, err := url.Parse(location)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	if u.Path == g.EntryPath {
		return ""
	}
	return location
}
