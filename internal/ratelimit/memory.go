package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type keyLimiter struct {
	cooldown   *rate.Limiter
	window     *rate.Limiter
	lastAccess time.Time
}

// MemoryLimiter keeps one pair of token buckets per key. Suitable for a single
// instance; idle keys are swept lazily.
type MemoryLimiter struct {
	policy Policy
	now    func() time.Time

	mu        sync.Mutex
	keys      map[string]*keyLimiter
	lastSweep time.Time
}

func NewMemoryLimiter(p Policy) *MemoryLimiter {
	return &MemoryLimiter{
		policy: p.withDefaults(),
		now:    time.Now,
		keys:   make(map[string]*keyLimiter),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) error {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	kl, ok := l.keys[key]
	if !ok {
		cooldown := rate.NewLimiter(rate.Inf, 1)
		if l.policy.Cooldown > 0 {
			cooldown = rate.NewLimiter(rate.Every(l.policy.Cooldown), 1)
		}
		kl = &keyLimiter{
			cooldown: cooldown,
			window:   rate.NewLimiter(rate.Every(l.policy.Window/time.Duration(l.policy.MaxInWindow)), l.policy.MaxInWindow),
		}
		l.keys[key] = kl
	}
	kl.lastAccess = now

	c := kl.cooldown.ReserveN(now, 1)
	if d := c.DelayFrom(now); d > 0 {
		c.CancelAt(now)
		return &LimitedError{RetryAfter: d}
	}
	w := kl.window.ReserveN(now, 1)
	if d := w.DelayFrom(now); d > 0 {
		w.CancelAt(now)
		c.CancelAt(now)
		return &LimitedError{RetryAfter: d}
	}
	return nil
}

func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.policy.Window {
		return
	}
	l.lastSweep = now
	for k, kl := range l.keys {
		if now.Sub(kl.lastAccess) > l.policy.Window {
			delete(l.keys, k)
		}
	}
}
