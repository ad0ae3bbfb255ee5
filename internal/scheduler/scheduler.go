// Package scheduler implements Scheduler and ResourceMonitor (§4.11,
// §4.12): video-level concurrency over a work list, bounded by a
// dynamically-resizable semaphore, with sync consolidated to a single
// call at the end of a batch instead of once per video.
package scheduler

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/clipindex/internal/indexer"
	"github.com/yungbote/clipindex/internal/platform/ctxutil"
	"github.com/yungbote/clipindex/internal/platform/logger"
	"github.com/yungbote/clipindex/internal/syncengine"
)

// WorkItem names one video for the scheduler to pop and run.
type WorkItem struct {
	FolderID   int64
	FolderPath string
	VideoPath  string
}

// Outcome reports one video's terminal state back to the caller. JobID
// correlates this outcome with the progress callbacks and log lines
// emitted while the video was in flight.
type Outcome struct {
	Item   WorkItem
	JobID  string
	Result *indexer.Result
	Err    error
}

type ProgressFunc func(item WorkItem, stage string, pct int, message string)
type OutcomeFunc func(Outcome)

// Scheduler pops videos from a work list and runs LayeredIndexer with
// bounded concurrency (§4.11).
type Scheduler struct {
	ix   *indexer.Indexer
	sync *syncengine.Engine
	sem  *AsyncSemaphore
	log  *logger.Logger
}

func New(ix *indexer.Indexer, sync *syncengine.Engine, initialConcurrency int64, log *logger.Logger) *Scheduler {
	return &Scheduler{
		ix:   ix,
		sync: sync,
		sem:  NewAsyncSemaphore(initialConcurrency),
		log:  log.With("component", "Scheduler"),
	}
}

// SetConcurrency adjusts the scheduler's effective concurrency cap; it is
// the apply callback ResourceMonitor.Start expects.
func (s *Scheduler) SetConcurrency(ctx context.Context, n int64) {
	s.sem.SetLimit(ctx, n)
}

// Run drives every item in items through LayeredIndexer, bounded by the
// scheduler's current concurrency cap, then performs exactly one sync
// at the end: forced if any child demanded it via RequiresForceSync,
// otherwise incremental. Each video is indexed with its own sync
// suppressed (SkipSync) so Run is the sole place a sync happens for
// the whole batch.
func (s *Scheduler) Run(ctx context.Context, items []WorkItem, onProgress ProgressFunc, onOutcome OutcomeFunc) (*syncengine.Result, error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	forceSync := false

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		if err := s.sem.Acquire(ctx); err != nil {
			break
		}

		item := item
		jobID := uuid.NewString()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.sem.Release()

			jobCtx := ctxutil.WithTraceData(ctx, ctxutil.TraceData{FolderPath: item.FolderPath, JobID: jobID})

			opts := indexer.IndexOptions{
				FolderID:   item.FolderID,
				FolderPath: item.FolderPath,
				VideoPath:  item.VideoPath,
				SkipSync:   true,
				OnProgress: func(stage string, pct int, message string) {
					if onProgress != nil {
						onProgress(item, stage, pct, message)
					}
				},
			}

			res, err := s.ix.IndexVideo(jobCtx, opts)
			if res != nil && res.RequiresForceSync {
				mu.Lock()
				forceSync = true
				mu.Unlock()
			}
			if err != nil {
				s.log.Warn("indexing failed", "video", item.VideoPath, "jobID", jobID, "err", err)
			}
			if onOutcome != nil {
				onOutcome(Outcome{Item: item, JobID: jobID, Result: res, Err: err})
			}
		}()
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if s.sync == nil {
		return nil, nil
	}
	if forceSync {
		return s.sync.ForceSync(ctx)
	}
	return s.sync.Sync(ctx)
}
