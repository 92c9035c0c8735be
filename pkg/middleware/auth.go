package middleware

import (
	"context"
	"net/http"

	"parkhive/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

const IdentityKey contextKey = "identity"

// AccessTokenCookie is the cookie the web client stores its session
// token in. Bearer tokens in the Authorization header work too.
const AccessTokenCookie = "accessToken"

// Identity is the authenticated requester, as asserted by the upstream
// auth service's signed token. It is trusted here without re-verification
// against the user store.
type Identity struct {
	UserID  string
	IsAdmin bool
}

type tokenClaims struct {
	ID      string `json:"id"`
	IsAdmin bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// Auth parses the request's access token, if any, and stores the
// resulting Identity in the request context. Requests without a token
// pass through anonymously; handlers decide whether auth is required.
// A token that is present but fails verification is rejected outright.
func Auth(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractToken(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims := &tokenClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid || claims.ID == "" {
				log.Warn("Rejected invalid access token",
					"request_id", requestIDFrom(r.Context()),
					"path", r.URL.Path,
					"error", err,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Invalid access token"}`))
				return
			}

			identity := Identity{UserID: claims.ID, IsAdmin: claims.IsAdmin}
			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

// IdentityFrom returns the authenticated identity attached to ctx, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(Identity)
	return identity, ok
}

// WithIdentity returns a context carrying the given identity. Intended
// for tests and internal calls that bypass the HTTP layer.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}
