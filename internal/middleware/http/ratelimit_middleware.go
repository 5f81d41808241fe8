package http

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/lltxwdk/minimars-server/internal/limiter"
	"github.com/lltxwdk/minimars-server/internal/service"

	"go.uber.org/zap"
)

// Limiter is implemented by *limiter.RedisRateLimiter.
type Limiter interface {
	Allow(ctx context.Context, identifier string) (limiter.Decision, error)
}

// CreateRateLimitMiddleware limits requests per operator, or per client address for
// unauthenticated routes such as provider callbacks.
func CreateRateLimitMiddleware(l Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	log := logger.Named("RateLimitMiddleware")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := clientIdentifier(r)

			decision, err := l.Allow(r.Context(), identifier)
			if err != nil {
				// a broken limiter must not take the API down
				log.Error("Allow failed", zap.Error(err), zap.String("identifier", identifier))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if !decision.Allowed {
				secs := int(math.Ceil(decision.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				service.WriteHttpError(w, http.StatusTooManyRequests, "rate_limited", "Too Many Requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIdentifier(r *http.Request) string {
	if op, err := service.OperatorFrom(r.Context()); err == nil {
		return "user:" + op.UserID.Hex()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
