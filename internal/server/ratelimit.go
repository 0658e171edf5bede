package server

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter keeps one token bucket per client IP.
type clientLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket
	limit   rate.Limit
	burst   int
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newClientLimiter returns a limiter allowing rps requests per second per
// client. A non-positive rps disables limiting.
func newClientLimiter(rps float64, burst int) *clientLimiter {
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &clientLimiter{
		clients: make(map[string]*clientBucket),
		limit:   rate.Limit(rps),
		burst:   burst,
	}
}

func (l *clientLimiter) allow(client string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.clients[client]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[client] = b
	}
	b.lastSeen = time.Now()
	return b.limiter.Allow()
}

// cleanup drops buckets idle for longer than idle until ctx is done.
func (l *clientLimiter) cleanup(ctx context.Context, idle time.Duration) {
	ticker := time.NewTicker(idle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict(time.Now().Add(-idle))
		}
	}
}

func (l *clientLimiter) evict(before time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for client, b := range l.clients {
		if b.lastSeen.Before(before) {
			delete(l.clients, client)
			n++
		}
	}
	return n
}
