package app

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// agentLimiter applies a token bucket per agent id and periodically evicts
// idle entries.
type agentLimiter struct {
	limit   rate.Limit
	burst   int
	mu      sync.Mutex
	byAgent map[string]*bucket
	hits    uint64
	idleTTL time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newAgentLimiter returns nil when rps or burst is not positive, which
// disables limiting.
func newAgentLimiter(rps float64, burst int) *agentLimiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	return &agentLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		byAgent: make(map[string]*bucket),
		idleTTL: 10 * time.Minute,
	}
}

// Allow reports whether agentID may run an action at now.
func (l *agentLimiter) Allow(agentID string, now time.Time) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.byAgent[agentID]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byAgent[agentID] = b
	}
	b.lastSeen = now
	allowed := b.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for id, v := range l.byAgent {
			if v.lastSeen.Before(cutoff) {
				delete(l.byAgent, id)
			}
		}
	}
	return allowed
}
