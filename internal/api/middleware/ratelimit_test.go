package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-decks/internal/api/shared"
	"github.com/phrazzld/scry-decks/internal/config"
	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func serveAs(h http.Handler, userID uuid.UUID) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/generate-deck", nil)
	if userID != uuid.Nil {
		req = req.WithContext(shared.WithUserID(req.Context(), userID))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestUserRateLimiter(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := newUserRateLimiter(config.RateLimitConfig{GeneratePerMinute: 6, Burst: 2}, clock.Now)
	h := limiter.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	alice, bob := uuid.New(), uuid.New()

	assert.Equal(t, http.StatusOK, serveAs(h, alice).Code)
	assert.Equal(t, http.StatusOK, serveAs(h, alice).Code)

	limited := serveAs(h, alice)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "10", limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), KindRateLimited)

	assert.Equal(t, http.StatusOK, serveAs(h, bob).Code, "limits are per user")

	clock.now = clock.now.Add(10 * time.Second)
	assert.Equal(t, http.StatusOK, serveAs(h, alice).Code, "a token refills after 10s at 6/min")
	assert.Equal(t, http.StatusTooManyRequests, serveAs(h, alice).Code)
}

func TestUserRateLimiterRequiresUser(t *testing.T) {
	t.Parallel()

	limiter := NewUserRateLimiter(config.RateLimitConfig{GeneratePerMinute: 1, Burst: 1})
	h := limiter.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	assert.Equal(t, http.StatusUnauthorized, serveAs(h, uuid.Nil).Code)
}

func TestUserRateLimiterEvictsIdleUsers(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	limiter := newUserRateLimiter(config.RateLimitConfig{GeneratePerMinute: 1, Burst: 1}, clock.Now)

	limiter.reserve(uuid.New())
	assert.Len(t, limiter.limiters, 1)

	clock.now = clock.now.Add(2 * idleLimiterTTL)
	limiter.reserve(uuid.New())
	assert.Len(t, limiter.limiters, 1)
}
