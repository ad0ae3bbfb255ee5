// Package ratelimit implements the RateLimiter actor (§4.7): a
// single-writer goroutine owning a sliding request window, a mutable
// cap, a backoff deadline, and a per-UTC-day counter. Callers never
// touch the mutable state directly; they communicate through channels,
// following the teacher's sse.Hub actor-over-channels shape rather than
// a shared mutex plus condition variable (per the redesign note that
// this state must be owned by a single writer task).
package ratelimit

import (
	"context"
	"time"

	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/platform/logger"
)

type Config struct {
	MinPerWindow int
	MaxPerWindow int
	WindowSecs   float64
	DailyLimit   int // 0 = unlimited
}

type acquireRequest struct {
	ctx   context.Context
	reply chan error
}

// Limiter is the RateLimiter actor. All mutable state is owned
// exclusively by the goroutine started in New. WaitForPermission sends a
// request and waits for the reply; ReportSuccess and ReportRateLimit send
// a signal without waiting, and a signal is dropped when 8 are already
// pending.
type Limiter struct {
	cfg Config
	log *logger.Logger

	acquireCh    chan acquireRequest
	successCh    chan struct{}
	rateLimitCh  chan struct{}
}

func New(cfg Config, log *logger.Logger) *Limiter {
	l := &Limiter{
		cfg:         cfg,
		log:         log.With("component", "RateLimiter"),
		acquireCh:   make(chan acquireRequest),
		successCh:   make(chan struct{}, 8),
		rateLimitCh: make(chan struct{}, 8),
	}
	go l.run()
	return l
}

// WaitForPermission blocks until the actor admits this call, the daily
// quota is exhausted, or ctx is cancelled.
func (l *Limiter) WaitForPermission(ctx context.Context) error {
	req := acquireRequest{ctx: ctx, reply: make(chan error, 1)}
	select {
	case l.acquireCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReportSuccess satisfies vision.RateLimitSignaler: resets the
// consecutive-429 counter and nudges currentMax back up.
func (l *Limiter) ReportSuccess() {
	select {
	case l.successCh <- struct{}{}:
	default:
	}
}

// ReportRateLimit satisfies vision.RateLimitSignaler: registers a 429,
// shrinks currentMax, and sets a fresh backoff deadline.
func (l *Limiter) ReportRateLimit() {
	select {
	case l.rateLimitCh <- struct{}{}:
	default:
	}
}

type limiterState struct {
	window         []time.Time
	currentMax     int
	consecutive429 int
	backoffUntil   time.Time
	dailyCounts    map[string]int
}

func (l *Limiter) run() {
	st := &limiterState{
		currentMax:  l.cfg.MaxPerWindow,
		dailyCounts: make(map[string]int),
	}
	windowDur := time.Duration(l.cfg.WindowSecs * float64(time.Second))

	var queue []acquireRequest

	for {
		now := time.Now()
		pruneWindow(st, now, windowDur)
		drainQueue(l, st, &queue, now, windowDur)

		var timerCh <-chan time.Time
		var timer *time.Timer
		if len(queue) > 0 {
			wake := nextWake(st, windowDur)
			d := wake.Sub(now)
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			timerCh = timer.C
		}

		select {
		case req := <-l.acquireCh:
			queue = append(queue, req)
		case <-l.successCh:
			st.consecutive429 = 0
			if st.currentMax < l.cfg.MaxPerWindow {
				st.currentMax++
			}
		case <-l.rateLimitCh:
			st.consecutive429++
			st.currentMax -= 2
			if st.currentMax < l.cfg.MinPerWindow {
				st.currentMax = l.cfg.MinPerWindow
			}
			backoffSecs := minFloat(float64(int(1)<<uint(minInt(st.consecutive429, 6))), 60)
			st.backoffUntil = time.Now().Add(time.Duration(backoffSecs * float64(time.Second)))
		case <-timerCh:
			// loop again; top-of-loop will re-prune and re-drain
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// drainQueue admits as many queued requests as current capacity and
// backoff state allow, re-evaluating after each admission so a later
// waiter sees the window updated by an earlier one.
func drainQueue(l *Limiter, st *limiterState, queue *[]acquireRequest, now time.Time, windowDur time.Duration) {
	for len(*queue) > 0 {
		today := now.UTC().Format("2006-01-02")
		if l.cfg.DailyLimit > 0 && st.dailyCounts[today] >= l.cfg.DailyLimit {
			req := (*queue)[0]
			*queue = (*queue)[1:]
			req.reply <- &indexerrors.DailyLimitReachedError{Used: st.dailyCounts[today], Limit: l.cfg.DailyLimit}
			continue
		}
		if now.Before(st.backoffUntil) {
			return
		}
		if len(st.window) >= st.currentMax {
			return
		}
		req := (*queue)[0]
		*queue = (*queue)[1:]
		st.window = append(st.window, now)
		st.dailyCounts[today]++
		req.reply <- nil
	}
}

func pruneWindow(st *limiterState, now time.Time, windowDur time.Duration) {
	cutoff := now.Add(-windowDur)
	kept := st.window[:0]
	for _, t := range st.window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	st.window = kept
}

// nextWake computes when the actor should re-check admissibility: the
// backoff deadline, or the moment the oldest window entry ages out plus
// a 0.5s safety margin, whichever is later/applicable.
func nextWake(st *limiterState, windowDur time.Duration) time.Time {
	now := time.Now()
	wake := now
	if now.Before(st.backoffUntil) {
		wake = st.backoffUntil
	}
	if len(st.window) > 0 && len(st.window) >= st.currentMax {
		oldestExpiry := st.window[0].Add(windowDur).Add(500 * time.Millisecond)
		if oldestExpiry.After(wake) {
			wake = oldestExpiry
		}
	}
	return wake
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
