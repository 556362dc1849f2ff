package api

import (
	"context"
	"net/http"
	"strings"

	"parkspot/internal/config"
	"parkspot/internal/domain"
)

type claimsKey struct{}

// HTTPAuth validates bearer tokens and guards admin routes.
type HTTPAuth struct {
	cfg    config.APIAuthConfig
	tokens domain.TokenIssuer
}

func NewHTTPAuth(cfg config.APIAuthConfig, tokens domain.TokenIssuer) *HTTPAuth {
	return &HTTPAuth{cfg: cfg, tokens: tokens}
}

// Authenticate rejects requests without a valid bearer token and stores the
// caller's claims in the request context.
func (a *HTTPAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, status, msg := a.parse(r)
		if claims == nil {
			writeMessage(w, status, msg)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

// RequireAdmin only restricts access when enforce_admin is set; otherwise the
// route stays open.
func (a *HTTPAuth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.cfg.EnforceAdmin {
			next.ServeHTTP(w, r)
			return
		}
		claims, status, msg := a.parse(r)
		if claims == nil {
			writeMessage(w, status, msg)
			return
		}
		if !a.cfg.IsAdmin(claims.Email) {
			writeMessage(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

func (a *HTTPAuth) parse(r *http.Request) (*domain.Claims, int, string) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(header, "Bearer ")
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		return nil, http.StatusUnauthorized, "No token, authorization denied"
	}
	claims, err := a.tokens.Parse(token)
	if err != nil {
		return nil, http.StatusUnauthorized, "Token is not valid"
	}
	return claims, 0, ""
}

func claimsFrom(ctx context.Context) *domain.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*domain.Claims)
	return claims
}
