package chi

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/kailas-cloud/atscore/internal/domain"
)

// RateLimitConfig is a token bucket shared by all clients. RPS <= 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// RateLimitMiddleware sets Retry-After on requests above the configured rate and hands
// a domain.ErrRateLimited error to onLimit. Health and metrics scrapes are not limited.
func RateLimitMiddleware(
	cfg RateLimitConfig,
	onLimit func(http.ResponseWriter, *http.Request, error),
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.RPS <= 0 {
			return next
		}
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(math.Ceil(cfg.RPS))
		}
		limiter := rate.NewLimiter(rate.Limit(cfg.RPS), burst)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExempt(r) {
				next.ServeHTTP(w, r)
				return
			}

			res := limiter.Reserve()
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
				onLimit(w, r, fmt.Errorf("retry in %s: %w", delay.Round(time.Millisecond), domain.ErrRateLimited))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
