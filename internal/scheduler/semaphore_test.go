package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAsyncSemaphore_AcquireReleaseUpToMax(t *testing.T) {
	s := NewAsyncSemaphore(2)
	ctx := context.Background()

	require.NoError(t, s.Acquire(ctx))
	require.NoError(t, s.Acquire(ctx))

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.Error(t, s.Acquire(blocked))

	s.Release()
	s.Release()
}

func TestAsyncSemaphore_SetLimitShrinksEffectiveCapacity(t *testing.T) {
	s := NewAsyncSemaphore(4)
	ctx := context.Background()

	s.SetLimit(ctx, 2)
	require.NoError(t, s.Acquire(ctx))
	require.NoError(t, s.Acquire(ctx))

	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.Error(t, s.Acquire(blocked))

	s.Release()
	s.Release()
}

func TestAsyncSemaphore_SetLimitGrowsBackUp(t *testing.T) {
	s := NewAsyncSemaphore(4)
	ctx := context.Background()

	s.SetLimit(ctx, 1)
	s.SetLimit(ctx, 4)

	for i := 0; i < 4; i++ {
		require.NoError(t, s.Acquire(ctx))
	}
	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.Error(t, s.Acquire(blocked))

	for i := 0; i < 4; i++ {
		s.Release()
	}
}

func TestAsyncSemaphore_SetLimitClampsToMaxAndOne(t *testing.T) {
	s := NewAsyncSemaphore(3)
	ctx := context.Background()

	s.SetLimit(ctx, 100) // clamp to max
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Acquire(ctx))
	}
	for i := 0; i < 3; i++ {
		s.Release()
	}

	s.SetLimit(ctx, 0) // clamp to 1
	require.NoError(t, s.Acquire(ctx))
	blocked, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.Error(t, s.Acquire(blocked))
	s.Release()
}
