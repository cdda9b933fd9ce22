package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/api/shared"
	"github.com/phrazzld/scry-decks/internal/config"
	"golang.org/x/time/rate"
)

// KindRateLimited is the error kind reported when a user exceeds their
// request allowance.
const KindRateLimited = "rate_limited"

// idleLimiterTTL is how long an unused per-user limiter is kept.
const idleLimiterTTL = 30 * time.Minute

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserRateLimiter throttles requests per authenticated user with a token
// bucket. It must run after AuthMiddleware.
type UserRateLimiter struct {
	mu       sync.Mutex
	limiters map[uuid.UUID]*userLimiter
	limit    rate.Limit
	burst    int
	now      func() time.Time
	lastGC   time.Time
}

// NewUserRateLimiter creates a limiter allowing cfg.GeneratePerMinute
// requests per minute per user, with bursts of cfg.Burst.
func NewUserRateLimiter(cfg config.RateLimitConfig) *UserRateLimiter {
	return newUserRateLimiter(cfg, time.Now)
}

func newUserRateLimiter(cfg config.RateLimitConfig, now func() time.Time) *UserRateLimiter {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &UserRateLimiter{
		limiters: make(map[uuid.UUID]*userLimiter),
		limit:    rate.Limit(cfg.GeneratePerMinute / 60),
		burst:    burst,
		now:      now,
		lastGC:   now(),
	}
}

// reserve takes a token for userID. It returns zero when the request may
// proceed, or how long the caller should wait otherwise.
func (l *UserRateLimiter) reserve(userID uuid.UUID) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastGC) > idleLimiterTTL {
		for id, ul := range l.limiters {
			if now.Sub(ul.lastSeen) > idleLimiterTTL {
				delete(l.limiters, id)
			}
		}
		l.lastGC = now
	}

	ul, ok := l.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[userID] = ul
	}
	ul.lastSeen = now

	r := ul.limiter.ReserveN(now, 1)
	if !r.OK() {
		return time.Minute
	}
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
	}
	return delay
}

// Limit rejects requests from users that have exhausted their allowance
// with 429 Too Many Requests and a Retry-After header.
func (l *UserRateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := shared.UserIDFromContext(r.Context())
		if !ok {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
			return
		}

		if wait := l.reserve(userID); wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			shared.RespondWithError(w, r, http.StatusTooManyRequests,
				"Too many generation requests. Try again later.",
				shared.WithKind(KindRateLimited))
			return
		}
		next.ServeHTTP(w, r)
	})
}
