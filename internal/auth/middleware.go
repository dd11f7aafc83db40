package auth

import (
	"context"
	"net/http"
	"strings"

	"incident-quiz/pkg/httpx"
)

type contextKey int

const claimsKey contextKey = iota

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFrom returns the claims of the authenticated caller, if any.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

// UserID returns the id of the authenticated caller, or nil.
func UserID(ctx context.Context) *uint {
	c, ok := ClaimsFrom(ctx)
	if !ok {
		return nil
	}
	id := c.UserID
	return &id
}

// QueryTokenParam carries the token of websocket handshakes, which browsers
// cannot send with an Authorization header.
const QueryTokenParam = "access_token"

// JWTMiddleware rejects requests without a valid bearer token.
func (s *Service) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httpx.WriteError(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		bearerToken := strings.Split(authHeader, " ")
		if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid token format")
			return
		}

		s.serveWithToken(w, r, next, bearerToken[1])
	})
}

// QueryTokenMiddleware is JWTMiddleware for websocket handshakes. The token
// is read from the access_token query parameter, or from the Authorization
// header when the client can set one.
func (s *Service) QueryTokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get(QueryTokenParam)
		if token == "" {
			token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if token == "" {
			httpx.WriteError(w, http.StatusUnauthorized, "access token required")
			return
		}
		s.serveWithToken(w, r, next, token)
	})
}

func (s *Service) serveWithToken(w http.ResponseWriter, r *http.Request, next http.Handler, token string) {
	claims, err := s.Parse(token)
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
}

// RequireHandler lets only incident handlers through. It must run after
// JWTMiddleware.
func RequireHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFrom(r.Context())
		if !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !c.IsHandler {
			httpx.WriteError(w, http.StatusForbidden, "incident handler role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
