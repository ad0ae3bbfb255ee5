package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// AsyncSemaphore is the bounded-concurrency primitive of §4.11: a
// semaphore.Weighted sized to the hard ceiling, with its effective
// capacity shrunk or grown at runtime by holding "phantom" permits
// that correspond to no real work. ResourceMonitor calls SetLimit on a
// sampling tick; the scheduler only ever calls Acquire/Release once
// per video.
type AsyncSemaphore struct {
	sem *semaphore.Weighted
	max int64

	mu      sync.Mutex
	phantom int64
}

func NewAsyncSemaphore(max int64) *AsyncSemaphore {
	if max < 1 {
		max = 1
	}
	return &AsyncSemaphore{sem: semaphore.NewWeighted(max), max: max}
}

func (s *AsyncSemaphore) Acquire(ctx context.Context) error {
	return s.sem.Acquire(ctx, 1)
}

func (s *AsyncSemaphore) Release() {
	s.sem.Release(1)
}

// SetLimit adjusts the effective cap to n, clamped to [1, max]. Shrinking
// blocks until enough in-flight work finishes to free the permits being
// converted to phantom; it gives up and leaves the cap unchanged if ctx
// is canceled first.
func (s *AsyncSemaphore) SetLimit(ctx context.Context, n int64) {
	if n < 1 {
		n = 1
	}
	if n > s.max {
		n = s.max
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.max - n
	if target > s.phantom {
		delta := target - s.phantom
		if err := s.sem.Acquire(ctx, delta); err != nil {
			return
		}
		s.phantom += delta
	} else if target < s.phantom {
		delta := s.phantom - target
		s.sem.Release(delta)
		s.phantom -= delta
	}
}
