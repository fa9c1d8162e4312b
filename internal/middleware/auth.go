package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/prepwise/partner-server-go/internal/audit"
	"github.com/prepwise/partner-server-go/internal/auth"
	apperrors "github.com/prepwise/partner-server-go/internal/errors"
	"github.com/prepwise/partner-server-go/internal/model"
)

type contextKey string

const PrincipalContextKey contextKey = "principal"

func GetPrincipal(ctx context.Context) *auth.Principal {
	if p, ok := ctx.Value(PrincipalContextKey).(*auth.Principal); ok {
		return p
	}
	return nil
}

// WithPrincipal attaches an authenticated caller to ctx.
func WithPrincipal(ctx context.Context, p *auth.Principal) context.Context {
	return context.WithValue(ctx, PrincipalContextKey, p)
}

type TokenVerifier interface {
	Verify(token string) (*auth.Principal, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		principal, err := m.verifier.Verify(token)
		if err != nil {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("auth middleware: token rejected")
			audit.Log(r.Context(), audit.Event{
				Type:     audit.EventAuthFailure,
				ClientIP: clientIP(r),
				Details:  map[string]any{"path": r.URL.Path},
			})
			if errors.Is(err, auth.ErrExpiredToken) {
				writeError(w, apperrors.TokenExpired())
				return
			}
			writeError(w, apperrors.InvalidToken("Invalid token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// RequireAccountType rejects callers whose account type is not listed.
func RequireAccountType(types ...model.AccountType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := GetPrincipal(r.Context())
			if principal == nil {
				writeError(w, apperrors.Unauthorized("Missing authentication token"))
				return
			}
			if !slices.Contains(types, principal.AccountType) {
				writeError(w, apperrors.Forbidden("Account type not allowed"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken reads the bearer token, falling back to ?access_token= for
// EventSource clients that cannot set headers.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}

	if r.Method == http.MethodGet {
		return r.URL.Query().Get("access_token")
	}

	return ""
}
