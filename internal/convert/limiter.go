// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter caps the number of remote calls in flight across a whole run,
// independent of page batching.
type Limiter struct {
	sem      *semaphore.Weighted
	size     int
	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewLimiter returns a limiter admitting n concurrent calls (at least 1).
func NewLimiter(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(int64(n)), size: n}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	n := l.inFlight.Add(1)
	for {
		p := l.peak.Load()
		if n <= p || l.peak.CompareAndSwap(p, n) {
			return nil
		}
	}
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	l.inFlight.Add(-1)
	l.sem.Release(1)
}

// Size returns the capacity.
func (l *Limiter) Size() int { return l.size }

// InFlight returns the number of calls currently holding a slot.
func (l *Limiter) InFlight() int { return int(l.inFlight.Load()) }

// Peak returns the highest InFlight value observed.
func (l *Limiter) Peak() int { return int(l.peak.Load()) }
