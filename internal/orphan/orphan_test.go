package orphan

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/clipindex/internal/domain"
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

func setup(t *testing.T) (*store.FolderStore, *store.GlobalStore, repos.VideoRepo, repos.GlobalVideoRepo, repos.GlobalClipRepo, int64, string) {
	t.Helper()
	log := testLogger(t)
	dir := t.TempDir()
	fs, err := store.OpenFolderStore(dir, log)
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })

	appDir := filepath.Join(dir, "appsupport")
	gs, err := store.OpenGlobalStore(appDir, "ClipIndex", log)
	require.NoError(t, err)
	t.Cleanup(func() { gs.Close() })

	folders := repos.NewFolderRepo(fs.DB, log)
	folderID, err := folders.Create(context.Background(), nil, &domain.Folder{Path: dir, VolumeUUID: "vol-1", LastSeenAt: time.Now(), Available: true})
	require.NoError(t, err)

	videos := repos.NewVideoRepo(fs.DB, log)
	globalVid := repos.NewGlobalVideoRepo(gs.DB, log)
	globalClp := repos.NewGlobalClipRepo(gs.DB, log)
	return fs, gs, videos, globalVid, globalClp, folderID, dir
}

func TestMarkOrphaned_SetsStatusAndRemovesGlobalMirror(t *testing.T) {
	fs, gs, videos, globalVid, globalClp, folderID, dir := setup(t)
	ctx := context.Background()
	log := testLogger(t)

	hash := "abc123"
	v := &domain.Video{FolderID: folderID, FilePath: "a.mp4", FileName: "a.mp4", SizeBytes: 100, FileHash: &hash, ModifiedTime: time.Now(), IndexStatus: domain.StatusCompleted}
	id, err := videos.Create(ctx, nil, v)
	require.NoError(t, err)
	v.ID = id

	require.NoError(t, globalVid.Upsert(ctx, nil, domain.GlobalVideo{SourceFolder: dir, SourceVideoID: id, FilePath: v.FilePath, FileName: v.FileName}))

	r := New(fs.DB, gs.DB, dir, videos, globalVid, globalClp, log)
	require.NoError(t, r.MarkOrphaned(ctx, v, dir))

	got, err := videos.GetByID(ctx, nil, id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusOrphaned, got.IndexStatus)
	require.NotNil(t, got.OrphanedAt)

	mirror, err := globalVid.ListBySource(ctx, nil, dir, id)
	require.NoError(t, err)
	require.Nil(t, mirror)
}

func TestAttemptRecovery_ReactivatesMatchingHashAndDeletesPending(t *testing.T) {
	fs, gs, videos, globalVid, globalClp, folderID, dir := setup(t)
	ctx := context.Background()
	log := testLogger(t)

	hash := "same-hash"
	orphanedAt := time.Now()
	orphan := &domain.Video{FolderID: folderID, FilePath: "old/path.mp4", FileName: "path.mp4", SizeBytes: 50, FileHash: &hash, ModifiedTime: time.Now(), IndexStatus: domain.StatusOrphaned, OrphanedAt: &orphanedAt}
	orphanID, err := videos.Create(ctx, nil, orphan)
	require.NoError(t, err)
	orphan.ID = orphanID

	pending := &domain.Video{FolderID: folderID, FilePath: "new/path.mp4", FileName: "path.mp4", SizeBytes: 50, FileHash: &hash, ModifiedTime: time.Now(), IndexStatus: domain.StatusPending}
	pendingID, err := videos.Create(ctx, nil, pending)
	require.NoError(t, err)
	pending.ID = pendingID

	r := New(fs.DB, gs.DB, dir, videos, globalVid, globalClp, log)
	result, err := r.AttemptRecovery(ctx, folderID, hash, pending)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, orphanID, result.RecoveredVideoID)

	_, err = videos.GetByID(ctx, nil, pendingID)
	require.NoError(t, err)
	gotPending, err := videos.GetByID(ctx, nil, pendingID)
	require.NoError(t, err)
	require.Nil(t, gotPending)

	gotOrphan, err := videos.GetByID(ctx, nil, orphanID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, gotOrphan.IndexStatus)
	require.Nil(t, gotOrphan.OrphanedAt)
	require.Equal(t, "new/path.mp4", gotOrphan.FilePath)
}

func TestCleanupExpired_DeletesOnlyPastRetentionCutoff(t *testing.T) {
	fs, gs, videos, globalVid, globalClp, folderID, dir := setup(t)
	ctx := context.Background()
	log := testLogger(t)

	old := time.Now().AddDate(0, 0, -40)
	recent := time.Now().AddDate(0, 0, -2)
	hash1, hash2 := "h1", "h2"
	oldVideo := &domain.Video{FolderID: folderID, FilePath: "old.mp4", FileName: "old.mp4", FileHash: &hash1, ModifiedTime: time.Now(), IndexStatus: domain.StatusOrphaned, OrphanedAt: &old}
	recentVideo := &domain.Video{FolderID: folderID, FilePath: "recent.mp4", FileName: "recent.mp4", FileHash: &hash2, ModifiedTime: time.Now(), IndexStatus: domain.StatusOrphaned, OrphanedAt: &recent}
	_, err := videos.Create(ctx, nil, oldVideo)
	require.NoError(t, err)
	_, err = videos.Create(ctx, nil, recentVideo)
	require.NoError(t, err)

	r := New(fs.DB, gs.DB, dir, videos, globalVid, globalClp, log)
	n, err := r.CleanupExpired(ctx, folderID, 30)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	remaining, err := videos.ListAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "recent.mp4", remaining[0].FileName)
}
