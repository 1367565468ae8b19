// Package ratelimit bounds the number of accepted operations per
// (action, client) pair within a time window.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per (action, client) key: burst equal to
// the per-window allowance, refilled over the window. Stale entries are
// dropped by a background cleanup.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	r       rate.Limit
	burst   int
	maxIdle time.Duration
}

// New creates a limiter allowing n operations per window for each
// (action, client) pair.
func New(n int, window time.Duration) *Limiter {
	l := &Limiter{
		entries: make(map[string]*entry),
		r:       rate.Limit(float64(n) / window.Seconds()),
		burst:   n,
		maxIdle: 2 * window,
	}
	go l.cleanup()
	return l
}

// Allow reports whether one more operation is admitted for the pair. When
// denied it returns how long the client should wait before retrying.
func (l *Limiter) Allow(action, clientID string) (bool, time.Duration) {
	res := l.get(action + "|" + clientID).Reserve()
	if !res.OK() {
		return false, l.window()
	}
	if delay := res.Delay(); delay > 0 {
		res.Cancel()
		return false, delay
	}
	return true, 0
}

// Reset clears the counter for the pair, e.g. a successful staff login
// clears that client's failed-login budget.
func (l *Limiter) Reset(action, clientID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, action+"|"+clientID)
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[key]; ok {
		e.lastSeen = time.Now()
		return e.limiter
	}
	lim := rate.NewLimiter(l.r, l.burst)
	l.entries[key] = &entry{limiter: lim, lastSeen: time.Now()}
	return lim
}

func (l *Limiter) window() time.Duration {
	return time.Duration(float64(l.burst) / float64(l.r) * float64(time.Second))
}

// cleanup removes idle entries every few minutes. A dropped entry simply
// re-starts with a full budget, which is the correct steady state for a
// client idle longer than the window.
func (l *Limiter) cleanup() {
	for {
		time.Sleep(5 * time.Minute)
		l.mu.Lock()
		for key, e := range l.entries {
			if time.Since(e.lastSeen) > l.maxIdle {
				delete(l.entries, key)
			}
		}
		l.mu.Unlock()
	}
}
