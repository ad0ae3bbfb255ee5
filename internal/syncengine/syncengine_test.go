package syncengine

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

func setup(t *testing.T) (*Engine, repos.VideoRepo, repos.ClipRepo, repos.GlobalVideoRepo, int64, string) {
	t.Helper()
	log := testLogger(t)
	dir := t.TempDir()
	fs, err := store.OpenFolderStore(dir, log)
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })

	gs, err := store.OpenGlobalStore(filepath.Join(dir, "app"), "ClipIndex", log)
	require.NoError(t, err)
	t.Cleanup(func() { gs.Close() })

	folders := repos.NewFolderRepo(fs.DB, log)
	folderID, err := folders.Create(context.Background(), nil, &domain.Folder{Path: dir, LastSeenAt: time.Now(), Available: true})
	require.NoError(t, err)

	videos := repos.NewVideoRepo(fs.DB, log)
	clips := repos.NewClipRepo(fs.DB, log)
	cursors := repos.NewSyncCursorRepo(gs.DB, log)
	globalVid := repos.NewGlobalVideoRepo(gs.DB, log)
	globalClp := repos.NewGlobalClipRepo(gs.DB, log)

	eng := New(dir, "vol-1", "Vol 1", videos, clips, cursors, globalVid, globalClp, log)
	return eng, videos, clips, globalVid, folderID, dir
}

func TestSync_IncrementalProjectsOnlyNewRows(t *testing.T) {
	eng, videos, clips, globalVid, folderID, _ := setup(t)
	ctx := context.Background()

	vid, err := videos.Create(ctx, nil, &domain.Video{FolderID: folderID, FilePath: "a.mp4", FileName: "a.mp4", ModifiedTime: time.Now(), IndexStatus: domain.StatusCompleted})
	require.NoError(t, err)
	_, err = clips.CreateBatch(ctx, nil, []domain.Clip{{VideoID: vid, StartTime: 0, EndTime: 10, ThumbnailPath: "t.jpg"}})
	require.NoError(t, err)

	res, err := eng.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.VideosSynced)
	require.Equal(t, 1, res.ClipsSynced)

	res2, err := eng.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, res2.VideosSynced)
	require.Equal(t, 0, res2.ClipsSynced)

	gv, err := globalVid.ListBySource(ctx, nil, eng.folderPath, vid)
	require.NoError(t, err)
	require.NotNil(t, gv)
}

func TestForceSync_ReProjectsEvenWithoutNewRows(t *testing.T) {
	eng, videos, _, _, folderID, _ := setup(t)
	ctx := context.Background()

	_, err := videos.Create(ctx, nil, &domain.Video{FolderID: folderID, FilePath: "a.mp4", FileName: "a.mp4", ModifiedTime: time.Now(), IndexStatus: domain.StatusCompleted})
	require.NoError(t, err)

	_, err = eng.Sync(ctx)
	require.NoError(t, err)

	res, err := eng.ForceSync(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.VideosSynced)
	require.True(t, res.Forced)
}
