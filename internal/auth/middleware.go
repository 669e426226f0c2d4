package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// contextKey keeps other packages from reading or shadowing our values.
type contextKey string

const claimsKey contextKey = "claims"

// CookieName is the cookie GitHub sign-in sets for browser clients.
const CookieName = "token"

var errNoToken = errors.New("auth: no token")

// Authenticator turns a request into verified Claims.
type Authenticator struct {
	tokens  *TokenService
	revoker Revoker
	logger  *slog.Logger
}

func NewAuthenticator(tokens *TokenService, revoker Revoker, logger *slog.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, revoker: revoker, logger: logger}
}

// RequireAuth rejects the request with 401 unless it carries a valid,
// unrevoked token.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.authenticate(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized","detail":"authentication credentials were not provided or are invalid"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// OptionalAuth attaches the caller's identity when a valid token is present
// and lets anonymous requests through unchanged.
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, err := a.authenticate(r); err == nil {
			r = r.WithContext(WithClaims(r.Context(), claims))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) authenticate(r *http.Request) (*Claims, error) {
	raw := tokenFromRequest(r)
	if raw == "" {
		return nil, errNoToken
	}

	claims, err := a.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}

	revoked, err := a.revoker.IsRevoked(r.Context(), claims.TokenID)
	if err != nil {
		// Fail closed: a token we cannot check is not trusted.
		a.logger.Error("token revocation lookup failed", slog.String("error", err.Error()))
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// tokenFromRequest reads "Authorization: Token <t>" or "Bearer <t>", then
// falls back to the sign-in cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if ok && (strings.EqualFold(scheme, "Token") || strings.EqualFold(scheme, "Bearer")) {
			return strings.TrimSpace(value)
		}
		return ""
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// WithClaims stores claims in ctx. Handlers read them back with
// UserIDFromContext or ClaimsFromContext.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok && c != nil
}

// UserIDFromContext returns (0, false) for anonymous requests.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return 0, false
	}
	return c.UserID, true
}
