package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/clipindex/internal/config"
	"github.com/yungbote/clipindex/internal/domain"
	"github.com/yungbote/clipindex/internal/indexer"
	"github.com/yungbote/clipindex/internal/platform/logger"
	"github.com/yungbote/clipindex/internal/repos"
	"github.com/yungbote/clipindex/internal/store"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New("test")
	require.NoError(t, err)
	return l
}

// newTestScheduler builds a Scheduler over a real indexer whose layers
// are all skipped, so Run exercises scheduling/concurrency/outcome
// plumbing without needing ffmpeg or any other external binary.
func newTestScheduler(t *testing.T, concurrency int64) (*Scheduler, string, int64) {
	t.Helper()
	log := testLogger(t)
	dir := t.TempDir()

	fs, err := store.OpenFolderStore(dir, log)
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })

	folders := repos.NewFolderRepo(fs.DB, log)
	folderID, err := folders.Create(context.Background(), nil, &domain.Folder{Path: dir, LastSeenAt: time.Now(), Available: true})
	require.NoError(t, err)

	videos := repos.NewVideoRepo(fs.DB, log)
	clips := repos.NewClipRepo(fs.DB, log)

	cfg := &config.Config{SkipLayers: []int{domain.LayerMetadata, domain.LayerVectors, domain.LayerSTT, domain.LayerVision}}
	ix := indexer.New(indexer.Deps{Cfg: cfg, Log: log, Videos: videos, Clips: clips})

	sched := New(ix, nil, concurrency, log)
	return sched, dir, folderID
}

func writeVideoFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("fake video bytes "+name), 0o644))
	return path
}

func TestScheduler_RunAllItemsReportOutcomes(t *testing.T) {
	sched, dir, folderID := newTestScheduler(t, 2)

	var items []WorkItem
	for i := 0; i < 5; i++ {
		path := writeVideoFile(t, dir, fmt.Sprintf("clip_%d.mp4", i))
		items = append(items, WorkItem{FolderID: folderID, FolderPath: dir, VideoPath: path})
	}

	var mu sync.Mutex
	var outcomes []Outcome
	_, err := sched.Run(context.Background(), items, nil, func(o Outcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 5)
	for _, o := range outcomes {
		require.NoError(t, o.Err)
		require.NotNil(t, o.Result)
		require.NotZero(t, o.Result.VideoID)
	}
}

func TestScheduler_RunReturnsCanceledWhenContextAlreadyDone(t *testing.T) {
	sched, dir, folderID := newTestScheduler(t, 2)
	path := writeVideoFile(t, dir, "clip.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var outcomeCalls int
	_, err := sched.Run(ctx, []WorkItem{{FolderID: folderID, FolderPath: dir, VideoPath: path}}, nil, func(Outcome) {
		outcomeCalls++
	})
	require.Error(t, err)
	require.Equal(t, 0, outcomeCalls)
}
