package httpserver

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// viewerLimiter throttles settlement requests per viewer. A zero or negative
// rate disables it.
type viewerLimiter struct {
	mu        sync.Mutex
	perMinute int
	visitors  map[string]*limiterEntry
	lastSweep time.Time
	now       func() time.Time
}

func newViewerLimiter(perMinute int) *viewerLimiter {
	return &viewerLimiter{
		perMinute: perMinute,
		visitors:  make(map[string]*limiterEntry),
		now:       time.Now,
	}
}

func (l *viewerLimiter) Allow(viewerID string) bool {
	if l == nil || l.perMinute <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	entry, ok := l.visitors[viewerID]
	if !ok {
		burst := l.perMinute / 6
		if burst < 1 {
			burst = 1
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), burst)}
		l.visitors[viewerID] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *viewerLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < limiterIdleTTL {
		return
	}
	l.lastSweep = now
	for id, entry := range l.visitors {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.visitors, id)
		}
	}
}
