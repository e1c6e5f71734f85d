package server

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter keeps a token-bucket limiter per client IP. Entries idle
// for more than five minutes are evicted once a minute.
type rateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	disabled bool
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter returns the limiter and a stop function for its
// eviction loop. A non-positive limit disables limiting.
func newRateLimiter(limit float64, burst int) (*rateLimiter, func()) {
	if limit <= 0 {
		return &rateLimiter{disabled: true}, func() {}
	}
	if burst <= 0 {
		burst = int(limit)
		if burst < 1 {
			burst = 1
		}
	}
	rl := &rateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(limit),
		burst:   burst,
	}
	done := make(chan struct{})
	go rl.evictLoop(done)
	var once sync.Once
	return rl, func() { once.Do(func() { close(done) }) }
}

func (rl *rateLimiter) evictLoop(done <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-5 * time.Minute)
			rl.mu.Lock()
			for ip, c := range rl.clients {
				if c.lastSeen.Before(cutoff) {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	c, ok := rl.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = time.Now()
	return c.limiter.Allow()
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	if rl.disabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP uses the connection's remote address. X-Forwarded-For is
// deliberately not trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
