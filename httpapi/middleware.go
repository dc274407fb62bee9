package httpapi

import (
	"context"
	"net/http"
	"strings"

	"collexa/auth"
)

type contextKey int

const principalKey contextKey = iota

// principalFrom returns the authenticated principal, if any.
func principalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(auth.Principal)
	return p, ok
}

// TokenVerifier turns a bearer token into a principal.
type TokenVerifier interface {
	VerifyToken(token string) (auth.Principal, error)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

// requireAuth rejects requests without a valid bearer token and stores the
// principal in the request context.
func requireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				respondMessage(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			p, err := verifier.VerifyToken(token)
			if err != nil {
				respondMessage(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
		})
	}
}

// optionalAuth stores the principal when a valid token is present but lets
// anonymous requests through. Used on public reads that behave differently
// for the listing owner.
func optionalAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if p, err := verifier.VerifyToken(token); err == nil {
					r = r.WithContext(context.WithValue(r.Context(), principalKey, p))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
