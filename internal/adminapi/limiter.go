package adminapi

import (
	"sync"

	"golang.org/x/time/rate"
)

// triggerLimiter keeps one token bucket per job name.
type triggerLimiter struct {
	mu        sync.Mutex
	perMinute int
	limiters  map[string]*rate.Limiter
}

func newTriggerLimiter(perMinute int) *triggerLimiter {
	return &triggerLimiter{
		perMinute: perMinute,
		limiters:  make(map[string]*rate.Limiter),
	}
}

func (l *triggerLimiter) Allow(name string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[name]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), 1)
		l.limiters[name] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
