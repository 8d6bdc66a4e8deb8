package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// cleanupThreshold is the map size above which stale entries are pruned.
	cleanupThreshold = 500
	// maxIdleAge is how long an IP may stay idle before it is pruned.
	maxIdleAge = 15 * time.Minute
)

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP.
type IPRateLimiter struct {
	mu  sync.Mutex
	ips map[string]*ipEntry
	r   rate.Limit
	b   int
	now func() time.Time
}

// NewIPRateLimiter allows perMinute requests per IP per minute, with bursts
// of up to perMinute. perMinute <= 0 disables limiting.
func NewIPRateLimiter(perMinute int) *IPRateLimiter {
	l := &IPRateLimiter{ips: make(map[string]*ipEntry), now: time.Now}
	if perMinute <= 0 {
		l.r = rate.Inf
		l.b = 1
		return l
	}
	l.r = rate.Every(time.Minute / time.Duration(perMinute))
	l.b = perMinute
	return l
}

// Allow consumes a token for ip and reports whether the request may proceed.
func (l *IPRateLimiter) Allow(ip string) bool {
	return l.limiter(ip).AllowN(l.now(), 1)
}

func (l *IPRateLimiter) limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.ips) > cleanupThreshold {
		cutoff := now.Add(-maxIdleAge)
		for k, e := range l.ips {
			if e.lastSeen.Before(cutoff) {
				delete(l.ips, k)
			}
		}
	}

	e, ok := l.ips[ip]
	if !ok {
		e = &ipEntry{limiter: rate.NewLimiter(l.r, l.b)}
		l.ips[ip] = e
	}
	e.lastSeen = now
	return e.limiter
}

// retryAfter is the whole number of seconds until one token is available.
func (l *IPRateLimiter) retryAfter() int {
	if l.r == rate.Inf || l.r == 0 {
		return 1
	}
	secs := int(time.Duration(float64(time.Second) / float64(l.r)).Seconds())
	return max(secs, 1)
}

// RateLimit rejects requests over the per-IP budget with 429. It expects
// chi's RealIP middleware to have normalised RemoteAddr.
func RateLimit(l *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if !l.Allow(ip) {
				w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error":   "rate_limited",
					"message": "too many requests, try again later",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
