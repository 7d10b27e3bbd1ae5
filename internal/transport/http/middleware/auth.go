package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-pregnancy-family/internal/domain"
)

type contextKey string

const principalKey contextKey = "principal"

// TokenValidator resolves a bearer token to the principal it was issued to.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*domain.Principal, error)
}

// Auth guards every route except the exact paths in public. A request without a bearer
// token is rejected with LOGIN_REQUIRED; a valid token puts its principal in the context.
func Auth(v TokenValidator, public ...string) func(http.Handler) http.Handler {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if open[r.URL.Path] || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			authHeader := r.Header.Get("Authorization")
			tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || strings.TrimSpace(tokenStr) == "" {
				writeCode(w, domain.ErrLoginRequired)
				return
			}
			p, err := v.Validate(r.Context(), strings.TrimSpace(tokenStr))
			if err != nil {
				var de *domain.Error
				if !errors.As(err, &de) {
					de = domain.ErrTokenInvalid
				}
				if de.Code.HTTP >= http.StatusInternalServerError {
					slog.Error("token validation failed", "path", r.URL.Path, "error", err)
				}
				writeCode(w, de)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal placed by Auth.
func PrincipalFromContext(ctx context.Context) (*domain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*domain.Principal)
	return p, ok && p != nil
}
