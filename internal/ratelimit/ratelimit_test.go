package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/clipindex/internal/platform/logger"
)

func testLogger() *logger.Logger {
	l, err := logger.New("test")
	if err != nil {
		panic(err)
	}
	return l
}

func TestLimiter_AdmitsUpToCurrentMaxThenDefersOverflow(t *testing.T) {
	l := New(Config{MinPerWindow: 1, MaxPerWindow: 3, WindowSecs: 0.3}, testLogger())
	ctx := context.Background()

	start := time.Now()
	var mu sync.Mutex
	var times []time.Time

	var wg sync.WaitGroup
	for i := 0; i < 7; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WaitForPermission(ctx)
			require.NoError(t, err)
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, times, 7)
	late := 0
	for _, tm := range times {
		if tm.Sub(start) >= 250*time.Millisecond {
			late++
		}
	}
	require.GreaterOrEqual(t, late, 3, "calls beyond window capacity must be deferred past the window")
}

func TestLimiter_ReportRateLimit_ShrinksCurrentMaxAndBacksOff(t *testing.T) {
	l := New(Config{MinPerWindow: 1, MaxPerWindow: 9, WindowSecs: 60}, testLogger())
	ctx := context.Background()

	require.NoError(t, l.WaitForPermission(ctx))
	l.ReportRateLimit()
	time.Sleep(20 * time.Millisecond)

	before := time.Now()
	err := l.WaitForPermission(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(before), 1500*time.Millisecond, "next admission must wait out the backoff deadline")
}

func TestLimiter_ReportSuccess_RaisesCurrentMaxBackToHardCap(t *testing.T) {
	l := New(Config{MinPerWindow: 1, MaxPerWindow: 2, WindowSecs: 0.2}, testLogger())
	ctx := context.Background()

	require.NoError(t, l.WaitForPermission(ctx))
	require.NoError(t, l.WaitForPermission(ctx))
	l.ReportSuccess()

	// currentMax was already at MaxPerWindow=2; ReportSuccess should not
	// push it above the hard cap, so a third call within the same window
	// still has to wait for a slot to free up.
	start := time.Now()
	require.NoError(t, l.WaitForPermission(ctx))
	require.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiter_DailyLimitReached(t *testing.T) {
	l := New(Config{MinPerWindow: 1, MaxPerWindow: 5, WindowSecs: 60, DailyLimit: 2}, testLogger())
	ctx := context.Background()

	require.NoError(t, l.WaitForPermission(ctx))
	require.NoError(t, l.WaitForPermission(ctx))
	err := l.WaitForPermission(ctx)
	require.Error(t, err)
}

func TestLimiter_ContextCancellation(t *testing.T) {
	l := New(Config{MinPerWindow: 1, MaxPerWindow: 1, WindowSecs: 60}, testLogger())
	ctx := context.Background()
	require.NoError(t, l.WaitForPermission(ctx))

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.WaitForPermission(cancelCtx)
	require.Error(t, err)
}
