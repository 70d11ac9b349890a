package middleware

import (
	"context"
	"net"
	"net/http"

	goGate "github.com/MrEthical07/goGate"
)

// requestContext copies the client address and User-Agent into the context
// so audit events can carry them.
func requestContext(r *http.Request) context.Context {
	ctx := r.Context()
	if ip := clientIP(r); ip != "" {
		ctx = goGate.WithClientIP(ctx, ip)
	}
	if ua := r.UserAgent(); ua != "" {
		ctx = goGate.WithUserAgent(ctx, ua)
	}
	return ctx
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
