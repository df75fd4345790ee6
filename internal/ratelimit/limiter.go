// Package ratelimit throttles verification code sends per phone number.
// Two backends: Redis for multi-instance deployments, x/time/rate in process.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrLimited = errors.New("rate limited")

type LimitedError struct {
	RetryAfter time.Duration
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *LimitedError) Unwrap() error { return ErrLimited }

// Limiter allows a send for key or returns a *LimitedError.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// Policy: at most MaxInWindow sends per Window and one send per Cooldown.
type Policy struct {
	Window      time.Duration
	MaxInWindow int
	Cooldown    time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Window:      10 * time.Minute,
		MaxInWindow: 3,
		Cooldown:    60 * time.Second,
	}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.Window <= 0 {
		p.Window = d.Window
	}
	if p.MaxInWindow <= 0 {
		p.MaxInWindow = d.MaxInWindow
	}
	if p.Cooldown < 0 {
		p.Cooldown = 0
	}
	return p
}
