package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/clipindex/internal/config"
	"github.com/yungbote/clipindex/internal/domain"
	"github.com/yungbote/clipindex/internal/orphan"
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

// fixture bundles one folder store with the real video path on disk so
// os.Stat/hashing in the guard logic sees consistent size/mtime.
type fixture struct {
	dir       string
	videoPath string
	videos    repos.VideoRepo
	clips     repos.ClipRepo
	folderID  int64
	cfg       *config.Config
	fs        *store.FolderStore
}

func newFixture(t *testing.T, skipAllLayers bool) *fixture {
	t.Helper()
	log := testLogger(t)
	dir := t.TempDir()
	fs, err := store.OpenFolderStore(dir, log)
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })

	folders := repos.NewFolderRepo(fs.DB, log)
	folderID, err := folders.Create(context.Background(), nil, &domain.Folder{Path: dir, LastSeenAt: time.Now(), Available: true})
	require.NoError(t, err)

	videoPath := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(videoPath, []byte("not a real video, just needs bytes for hashing"), 0o644))

	cfg := &config.Config{}
	if skipAllLayers {
		cfg.SkipLayers = []int{domain.LayerMetadata, domain.LayerVectors, domain.LayerSTT, domain.LayerVision}
	}

	return &fixture{
		dir:       dir,
		videoPath: videoPath,
		videos:    repos.NewVideoRepo(fs.DB, log),
		clips:     repos.NewClipRepo(fs.DB, log),
		folderID:  folderID,
		cfg:       cfg,
		fs:        fs,
	}
}

func (f *fixture) deps(t *testing.T) Deps {
	return Deps{
		Cfg:    f.cfg,
		Log:    testLogger(t),
		Videos: f.videos,
		Clips:  f.clips,
	}
}

func TestIndexVideo_FastSkip_UnchangedFile(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	info, err := os.Stat(f.videoPath)
	require.NoError(t, err)
	hash, err := ComputeQuickHash(f.videoPath)
	require.NoError(t, err)

	vid, err := f.videos.Create(ctx, nil, &domain.Video{
		FolderID:     f.folderID,
		FilePath:     f.videoPath,
		FileName:     "clip.mp4",
		SizeBytes:    info.Size(),
		FileHash:     &hash,
		ModifiedTime: info.ModTime(),
		IndexStatus:  domain.StatusCompleted,
		IndexLayer:   domain.LayerVision,
	})
	require.NoError(t, err)

	ix := New(f.deps(t))
	res, err := ix.IndexVideo(ctx, IndexOptions{FolderID: f.folderID, FolderPath: f.dir, VideoPath: f.videoPath, SkipSync: true})
	require.NoError(t, err)
	require.True(t, res.Skipped)
	require.Equal(t, vid, res.VideoID)

	got, err := f.videos.GetByID(ctx, nil, vid)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, got.IndexStatus)
}

func TestIndexVideo_ContentChangeOnSamePath_ResetsToPending(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	staleHash := "stale-hash-does-not-match-current-bytes"
	vid, err := f.videos.Create(ctx, nil, &domain.Video{
		FolderID:     f.folderID,
		FilePath:     f.videoPath,
		FileName:     "clip.mp4",
		SizeBytes:    999999, // deliberately different from the file's actual size
		FileHash:     &staleHash,
		ModifiedTime: time.Now().Add(-time.Hour),
		IndexStatus:  domain.StatusCompleted,
		IndexLayer:   domain.LayerVision,
	})
	require.NoError(t, err)
	_, err = f.clips.CreateBatch(ctx, nil, []domain.Clip{{VideoID: vid, StartTime: 0, EndTime: 1, ThumbnailPath: "t.jpg"}})
	require.NoError(t, err)

	ix := New(f.deps(t))
	res, err := ix.IndexVideo(ctx, IndexOptions{FolderID: f.folderID, FolderPath: f.dir, VideoPath: f.videoPath, SkipSync: true})
	require.NoError(t, err)
	require.False(t, res.Skipped)

	got, err := f.videos.GetByID(ctx, nil, vid)
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, got.IndexStatus)
	require.Equal(t, domain.LayerMetadata, got.IndexLayer)
	require.Nil(t, got.FileHash)
}

func TestIndexVideo_OrphanedVideoRestoredInPlace_WhenHashStillMatches(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	hash, err := ComputeQuickHash(f.videoPath)
	require.NoError(t, err)
	info, err := os.Stat(f.videoPath)
	require.NoError(t, err)
	orphanedAt := time.Now()

	vid, err := f.videos.Create(ctx, nil, &domain.Video{
		FolderID:     f.folderID,
		FilePath:     f.videoPath,
		FileName:     "clip.mp4",
		SizeBytes:    info.Size(),
		FileHash:     &hash,
		ModifiedTime: info.ModTime().Add(-time.Minute),
		IndexStatus:  domain.StatusOrphaned,
		OrphanedAt:   &orphanedAt,
		IndexLayer:   domain.LayerVision,
	})
	require.NoError(t, err)

	ix := New(f.deps(t))
	res, err := ix.IndexVideo(ctx, IndexOptions{FolderID: f.folderID, FolderPath: f.dir, VideoPath: f.videoPath, SkipSync: true})
	require.NoError(t, err)
	require.True(t, res.Skipped)
	require.True(t, res.RequiresForceSync)

	got, err := f.videos.GetByID(ctx, nil, vid)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, got.IndexStatus)
	require.Nil(t, got.OrphanedAt)
}

func TestIndexVideo_PendingNoHash_RecoversFromOrphanAtNewPath(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	log := testLogger(t)

	hash, err := ComputeQuickHash(f.videoPath)
	require.NoError(t, err)
	orphanedAt := time.Now()

	orphanedVideo := &domain.Video{
		FolderID:     f.folderID,
		FilePath:     filepath.Join(f.dir, "moved_from_here.mp4"),
		FileName:     "moved_from_here.mp4",
		SizeBytes:    mustStatSize(t, f.videoPath),
		FileHash:     &hash,
		ModifiedTime: time.Now(),
		IndexStatus:  domain.StatusOrphaned,
		OrphanedAt:   &orphanedAt,
	}
	orphanID, err := f.videos.Create(ctx, nil, orphanedVideo)
	require.NoError(t, err)
	orphanedVideo.ID = orphanID

	globalVid := repos.NewGlobalVideoRepo(nil, log)
	globalClp := repos.NewGlobalClipRepo(nil, log)
	rec := orphan.New(f.fs.DB, nil, f.dir, f.videos, globalVid, globalClp, log)

	deps := f.deps(t)
	deps.Orphan = rec
	ix := New(deps)

	res, err := ix.IndexVideo(ctx, IndexOptions{FolderID: f.folderID, FolderPath: f.dir, VideoPath: f.videoPath, SkipSync: true})
	require.NoError(t, err)
	require.True(t, res.Skipped)
	require.True(t, res.RequiresForceSync)

	got, err := f.videos.GetByID(ctx, nil, orphanedVideo.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, got.IndexStatus)
	require.Equal(t, f.videoPath, got.FilePath)
}

func mustStatSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.Size()
}
