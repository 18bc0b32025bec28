// Package ratelimit implements fixed-window request counting per client
// identifier.
//
// The in-memory store only holds within one process: counts are lost on
// restart and are not shared between instances. The Redis store lifts that
// restriction when several instances sit behind one balancer.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one counted request.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Store counts requests in fixed windows.
type Store interface {
	// Take counts one request for id and reports whether it fits in the
	// current window.
	Take(ctx context.Context, id string) (Decision, error)
	// Peek reports the window state for id without counting a request.
	Peek(ctx context.Context, id string) (Decision, error)
}

const (
	DefaultMax    = 100
	DefaultWindow = time.Minute
)

// Limiter is a thin façade over a Store with the boolean API the HTTP
// middleware needs.
type Limiter struct {
	store Store
}

func New(store Store) *Limiter {
	return &Limiter{store: store}
}

func (l *Limiter) Allow(ctx context.Context, id string) (Decision, error) {
	return l.store.Take(ctx, id)
}

func (l *Limiter) Remaining(ctx context.Context, id string) (int, error) {
	d, err := l.store.Peek(ctx, id)
	if err != nil {
		return 0, err
	}
	return d.Remaining, nil
}

func (l *Limiter) ResetTime(ctx context.Context, id string) (time.Time, error) {
	d, err := l.store.Peek(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	return d.ResetAt, nil
}

// Sweep drops expired windows when the store keeps them in memory.
func (l *Limiter) Sweep() int {
	if s, ok := l.store.(interface{ Sweep() int }); ok {
		return s.Sweep()
	}
	return 0
}
