package relayd

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// senderLimiter applies a token bucket per sender id and evicts buckets that
// have been idle for a while.
type senderLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu    sync.Mutex
	byKey map[string]*limiterEntry
	hits  uint64
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newSenderLimiter(rps float64, burst int) *senderLimiter {
	return &senderLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: 10 * time.Minute,
		byKey:   make(map[string]*limiterEntry),
	}
}

// allow reports whether sender may consume one token now.
func (l *senderLimiter) allow(sender string, now time.Time) bool {
	if sender == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[sender]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[sender] = e
	}
	e.lastSeen = now

	l.hits++
	if l.hits%1024 == 0 {
		l.sweep(now)
	}
	return e.limiter.AllowN(now, 1)
}

// sweep drops idle buckets. Caller holds the lock.
func (l *senderLimiter) sweep(now time.Time) {
	for key, e := range l.byKey {
		if now.Sub(e.lastSeen) > l.idleTTL {
			delete(l.byKey, key)
		}
	}
}
