package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prepwise/partner-server-go/internal/audit"
	apperrors "github.com/prepwise/partner-server-go/internal/errors"
)

// Limiter is satisfied by service.RateLimiter.
type Limiter interface {
	CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Time)
}

// KeyFunc derives the bucket a request is counted against. An empty key
// skips limiting.
type KeyFunc func(r *http.Request) string

func ByIP(r *http.Request) string {
	return "ip:" + clientIP(r)
}

func ByPrincipal(r *http.Request) string {
	if p := GetPrincipal(r.Context()); p != nil {
		return "user:" + p.UserID
	}
	return ByIP(r)
}

type RateLimitMiddleware struct {
	limiter Limiter
	limit   int
	window  time.Duration
	prefix  string
	keyFunc KeyFunc
}

func NewRateLimitMiddleware(limiter Limiter, limit int, window time.Duration, prefix string, keyFunc KeyFunc) *RateLimitMiddleware {
	if keyFunc == nil {
		keyFunc = ByIP
	}
	return &RateLimitMiddleware{
		limiter: limiter,
		limit:   limit,
		window:  window,
		prefix:  prefix,
		keyFunc: keyFunc,
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		subject := m.keyFunc(r)
		if subject == "" {
			next.ServeHTTP(w, r)
			return
		}

		key := fmt.Sprintf("%s:%s", m.prefix, subject)
		allowed, resetAt := m.limiter.CheckLimit(r.Context(), key, m.limit, m.window)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			secondsLeft := int(time.Until(resetAt).Seconds()) + 1
			if secondsLeft < 1 {
				secondsLeft = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secondsLeft))

			log.Warn().Str("key", key).Str("path", r.URL.Path).Msg("rate limit exceeded")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]any{"bucket": m.prefix},
			})
			writeError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
