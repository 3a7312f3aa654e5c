package restapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"shiftplanner.ebus.dev/internal/app"
	"shiftplanner.ebus.dev/internal/clock"
	"shiftplanner.ebus.dev/internal/logging"
	"shiftplanner.ebus.dev/internal/metrics"
	"shiftplanner.ebus.dev/internal/models"
)

const (
	anonymousClient = "__no_key__"
	idleEviction    = 10 * time.Minute
	sweepInterval   = 5 * time.Minute

	// resolverCost is charged for requests that reach the routing and
	// elevation services.
	resolverCost = 3
)

type keyBucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// RateLimitMiddleware keeps one token bucket per API key. Requests without
// a key share the anonymous bucket.
type RateLimitMiddleware struct {
	mu       sync.RWMutex
	limiters map[string]*keyBucket

	every   rate.Limit
	burst   int
	exempt  map[string]bool
	clock   clock.Clock
	metrics *metrics.Metrics

	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
}

// NewRateLimitMiddleware allows ratePerSecond requests per interval for
// each API key, with bursts of the same size. ratePerSecond <= 0 disables
// limiting.
func NewRateLimitMiddleware(ratePerSecond int, interval time.Duration, exemptKeys []string, c clock.Clock, m *metrics.Metrics) *RateLimitMiddleware {
	if c == nil {
		c = clock.RealClock{}
	}

	rl := &RateLimitMiddleware{
		limiters: make(map[string]*keyBucket),
		every:    rate.Inf,
		burst:    ratePerSecond,
		exempt:   make(map[string]bool, len(exemptKeys)),
		clock:    c,
		metrics:  m,
		ticker:   time.NewTicker(sweepInterval),
		done:     make(chan struct{}),
	}
	if ratePerSecond > 0 {
		rl.every = rate.Every(interval / time.Duration(ratePerSecond))
	}
	for _, key := range exemptKeys {
		if key = strings.TrimSpace(key); key != "" {
			rl.exempt[key] = true
		}
	}

	go rl.sweep()
	return rl
}

func (rl *RateLimitMiddleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := app.APIKeyFromRequest(r)
			if key == "" {
				key = anonymousClient
			}

			if rl.every == rate.Inf || rl.exempt[key] {
				next.ServeHTTP(w, r)
				return
			}

			if !rl.bucket(key).AllowN(rl.clock.Now(), rl.cost(r)) {
				rl.metrics.IncRateLimited(key == anonymousClient)
				rl.reject(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// cost charges resolver-backed writes more than reads. It never exceeds
// the burst so a single request can always succeed on a full bucket.
func (rl *RateLimitMiddleware) cost(r *http.Request) int {
	if r.Method != http.MethodPost {
		return 1
	}
	p := r.URL.Path
	if p == "/api/v1/auxiliary-trips" || p == "/api/v1/shifts" ||
		(strings.HasPrefix(p, "/api/v1/trips/") && strings.HasSuffix(p, "/profile")) {
		return min(resolverCost, rl.burst)
	}
	return 1
}

// bucket returns the limiter of key, creating it on first use.
func (rl *RateLimitMiddleware) bucket(key string) *rate.Limiter {
	now := rl.clock.Now().UnixNano()

	rl.mu.RLock()
	b, ok := rl.limiters[key]
	rl.mu.RUnlock()
	if ok {
		b.lastSeen.Store(now)
		return b.limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok = rl.limiters[key]; !ok {
		b = &keyBucket{limiter: rate.NewLimiter(rl.every, rl.burst)}
		rl.limiters[key] = b
	}
	b.lastSeen.Store(now)
	return b.limiter
}

func (rl *RateLimitMiddleware) reject(w http.ResponseWriter, r *http.Request) {
	retryAfter := max(time.Second, time.Duration(float64(time.Second)/float64(rl.every)))

	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	h.Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
	h.Set("X-RateLimit-Remaining", "0")
	w.WriteHeader(http.StatusTooManyRequests)

	body := models.NewErrorResponse(http.StatusTooManyRequests,
		"Rate limit exceeded. Please try again later.", nil, rl.clock)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.LogError(logging.FromContext(r.Context()), "failed to encode rate limit response", err)
	}
}

// cleanupOnce evicts buckets idle for longer than idleEviction.
func (rl *RateLimitMiddleware) cleanupOnce() {
	cutoff := rl.clock.Now().Add(-idleEviction).UnixNano()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.limiters {
		if seen := b.lastSeen.Load(); seen != 0 && seen < cutoff {
			delete(rl.limiters, key)
		}
	}
}

func (rl *RateLimitMiddleware) sweep() {
	for {
		select {
		case <-rl.ticker.C:
			rl.cleanupOnce()
		case <-rl.done:
			return
		}
	}
}

// Stop ends the sweeper. It is safe to call more than once.
func (rl *RateLimitMiddleware) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.done)
		rl.ticker.Stop()
	})
}
