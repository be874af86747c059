// internal/httpapi/ratelimit.go
package httpapi

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ipLimiter throttles the token endpoint per client IP. Entries idle for
// longer than limiterTTL are dropped on the next sweep so the map does
// not grow with every address ever seen.
type ipLimiter struct {
	mu      sync.Mutex
	clients map[string]*limiterEntry
	limit   rate.Limit
	burst   int
	swept   time.Time
}

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

const limiterTTL = 10 * time.Minute

func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	if perSecond <= 0 {
		perSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &ipLimiter{
		clients: make(map[string]*limiterEntry),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		swept:   time.Now(),
	}
}

func (l *ipLimiter) allow(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.swept) > limiterTTL {
		for ip, e := range l.clients {
			if now.Sub(e.seen) > limiterTTL {
				delete(l.clients, ip)
			}
		}
		l.swept = now
	}

	e, ok := l.clients[host]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.clients[host] = e
	}
	e.seen = now
	return e.lim.Allow()
}
