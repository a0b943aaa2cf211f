package auth

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig bounds how often a client may open a websocket
type RateLimitConfig struct {
	PerMinute int
	// Burst is how many connections may be opened at once; at least one
	Burst int
}

// RateLimiter keeps one token bucket per client key
type RateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Limit(float64(config.PerMinute) / 60),
		burst:   max(config.Burst, 1),
		now:     time.Now,
		clients: make(map[string]*client),
	}
}

// Allow reports whether key may open another connection now
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	c, ok := l.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Prune forgets clients not seen for idle and returns how many it dropped
func (l *RateLimiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-idle)
	n := 0
	for key, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, key)
			n++
		}
	}
	return n
}

// Reset gives key a full bucket again
func (l *RateLimiter) Reset(key string) {
	l.mu.Lock()
	delete(l.clients, key)
	l.mu.Unlock()
}
