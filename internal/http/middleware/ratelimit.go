package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	visitorIdleTTL      = 3 * time.Minute
	visitorSweepPeriod  = time.Minute
	defaultRateLimitRPS = 20.0
	defaultRateBurst    = 40
)

type clientLimiters struct {
	mu       sync.Mutex
	visitors map[string]*visitorEntry
	rps      rate.Limit
	burst    int
}

type visitorEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func (c *clientLimiters) get(ip string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.visitors[ip]
	if !ok {
		entry = &visitorEntry{limiter: rate.NewLimiter(c.rps, c.burst)}
		c.visitors[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

func (c *clientLimiters) sweep() {
	ticker := time.NewTicker(visitorSweepPeriod)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		for key, entry := range c.visitors {
			if time.Since(entry.lastSeen) > visitorIdleTTL {
				delete(c.visitors, key)
			}
		}
		c.mu.Unlock()
	}
}

// RateLimit throttles per client IP with a token bucket. Health checks are
// exempt so orchestrators never see 429s.
func RateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		rps = defaultRateLimitRPS
	}
	if burst <= 0 {
		burst = defaultRateBurst
	}

	limiters := &clientLimiters{
		visitors: make(map[string]*visitorEntry),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
	go limiters.sweep()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}

			ip := extractIP(r.RemoteAddr)
			if !limiters.get(ip).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"code":"rate_limited","message":"too many requests"},"request_id":"` + GetRequestID(r.Context()) + `"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil || host == "" {
		return remoteAddr
	}
	return host
}
