package middleware

import (
	"net/http"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/route"
)

// Guard redirects unauthenticated requests to the store's entry view with the
// requested location as the pending destination. The redirect is a 302 so the
// intercepted URL does not stay in history. Allowed requests see the store via
// [goGate.StoreFromContext].
func Guard(store *goGate.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestContext(r)

			d := store.CheckRoute(ctx, r.URL.RequestURI())
			if !d.Allow {
				http.Redirect(w, r, d.Target, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r.WithContext(goGate.WithStore(ctx, store)))
		})
	}
}

// RequireAuthenticated is the API flavor of [Guard]: it answers 401 instead of
// redirecting.
func RequireAuthenticated(store *goGate.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !store.IsAuthenticated() {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(goGate.WithStore(requestContext(r), store)))
		})
	}
}

// PendingDestination returns the location the guard remembered for r, read
// from the query string or a submitted form. It is "" when absent; pass it to
// [goGate.Store.ResolveDestination] which also rejects unsafe values.
func PendingDestination(r *http.Request) string {
	return PendingDestinationParam(r, route.DefaultParam)
}

// PendingDestinationParam is [PendingDestination] for a custom parameter name.
func PendingDestinationParam(r *http.Request, param string) string {
	if r == nil {
		return ""
	}
	if v := r.URL.Query().Get(param); v != "" {
		return v
	}
	return r.PostFormValue(param)
}
