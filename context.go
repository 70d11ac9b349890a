package goGate

import "context"

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type storeContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. It is copied into
// audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx for audit events.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithStore attaches s to ctx so handlers behind the guard middleware can
// reach the session without a global.
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, storeContextKey{}, s)
}

// StoreFromContext returns the store attached by [WithStore], or nil.
func StoreFromContext(ctx context.Context) *Store {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(storeContextKey{}).(*Store)
	return s
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}
