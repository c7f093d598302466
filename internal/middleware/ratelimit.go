package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/citywatch/citywatch-api/internal/pkg/response"
)

// PerUserLimiter hands out one token bucket per authenticated user
type PerUserLimiter struct {
	mu       sync.Mutex
	limiters map[uuid.UUID]*userLimiter
	limit    rate.Limit
	burst    int
	idleTTL  time.Duration
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewPerUserLimiter allows perMinute events per user, with a burst of the same size
func NewPerUserLimiter(perMinute int) *PerUserLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &PerUserLimiter{
		limiters: make(map[uuid.UUID]*userLimiter),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
		idleTTL:  10 * time.Minute,
	}
}

// Allow reports whether the user may proceed now
func (l *PerUserLimiter) Allow(userID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	ul, ok := l.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[userID] = ul
	}
	ul.lastSeen = now

	if len(l.limiters) > 10000 {
		for id, other := range l.limiters {
			if now.Sub(other.lastSeen) > l.idleTTL {
				delete(l.limiters, id)
			}
		}
	}

	return ul.limiter.AllowN(now, 1)
}

// RateLimit rejects requests beyond the caller's budget with 429
func RateLimit(l *PerUserLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(GetUserID(r.Context())) {
				response.TooManyRequests(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
