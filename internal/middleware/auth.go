package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rit-atlas/atlas/internal/auth"
)

// principalKey is the context key for the authenticated principal.
type principalKey struct{}

// TokenVerifier validates a bearer token and returns the principal it
// represents.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Principal, error)
}

// SetPrincipal stores the authenticated principal in the context.
func SetPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// GetPrincipal retrieves the authenticated principal from context.
// Returns nil for anonymous requests.
func GetPrincipal(ctx context.Context) *auth.Principal {
	if p, ok := ctx.Value(principalKey{}).(*auth.Principal); ok {
		return p
	}
	return nil
}

// unauthorized writes a 401 JSON error envelope. Kept local so the
// middleware package does not depend on the api package.
func unauthorized(w http.ResponseWriter, ctx context.Context, message string) {
	ctx = SetErrorCode(ctx, "auth_failed")
	UpdateResponseContext(w, ctx)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"auth_failed","message":"` + message + `"}}`))
}

// bearerToken extracts the token from an Authorization header. Returns
// the empty string when the header is absent or not a bearer scheme.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

// RequireAuth rejects requests without a valid bearer token and stores
// the verified principal in the request context.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, r.Context(), "Missing or malformed Authorization header")
				return
			}
			principal, err := verifier.VerifyAccessToken(token)
			if err != nil {
				unauthorized(w, r.Context(), "Invalid or expired token")
				return
			}
			ctx := SetPrincipal(r.Context(), principal)
			UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth verifies a bearer token when one is present. Absent
// tokens proceed anonymously; a token that is present but invalid is
// rejected rather than silently downgraded.
func OptionalAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			principal, err := verifier.VerifyAccessToken(token)
			if err != nil {
				unauthorized(w, r.Context(), "Invalid or expired token")
				return
			}
			ctx := SetPrincipal(r.Context(), principal)
			UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
