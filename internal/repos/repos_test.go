package repos

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/clipindex/internal/domain"
	"github.com/yungbote/clipindex/internal/platform/logger"
	"github.com/yungbote/clipindex/internal/store"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New("test")
	require.NoError(t, err)
	return l
}

func openFolderStore(t *testing.T) *store.FolderStore {
	t.Helper()
	log := testLogger(t)
	fs, err := store.OpenFolderStore(t.TempDir(), log)
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })
	return fs
}

func TestFolderRepo_CreateGetUpdate(t *testing.T) {
	fs := openFolderStore(t)
	log := testLogger(t)
	ctx := context.Background()
	repo := NewFolderRepo(fs.DB, log)

	id, err := repo.Create(ctx, nil, &domain.Folder{Path: "/mnt/movies", VolumeUUID: "vol-1", VolumeName: "Movies", LastSeenAt: time.Now(), Available: true})
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := repo.GetByPath(ctx, nil, "/mnt/movies")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "vol-1", got.VolumeUUID)

	require.NoError(t, repo.SetAvailable(ctx, nil, id, false))
	missing, err := repo.GetByPath(ctx, nil, "/does/not/exist")
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, repo.UpdatePath(ctx, nil, id, "/mnt/movies_renamed"))
	renamed, err := repo.GetByPath(ctx, nil, "/mnt/movies_renamed")
	require.NoError(t, err)
	require.NotNil(t, renamed)
	require.Equal(t, id, renamed.ID)
}

func TestVideoRepo_CreateGetUpdateDelete(t *testing.T) {
	fs := openFolderStore(t)
	log := testLogger(t)
	ctx := context.Background()
	folders := NewFolderRepo(fs.DB, log)
	videos := NewVideoRepo(fs.DB, log)

	folderID, err := folders.Create(ctx, nil, &domain.Folder{Path: "/mnt/a", LastSeenAt: time.Now(), Available: true})
	require.NoError(t, err)

	id, err := videos.Create(ctx, nil, &domain.Video{
		FolderID:     folderID,
		FilePath:     "/mnt/a/clip.mp4",
		FileName:     "clip.mp4",
		SizeBytes:    1024,
		ModifiedTime: time.Now(),
		IndexStatus:  domain.StatusPending,
	})
	require.NoError(t, err)

	got, err := videos.GetByID(ctx, nil, id)
	require.NoError(t, err)
	require.Equal(t, "clip.mp4", got.FileName)
	require.Equal(t, domain.StatusPending, got.IndexStatus)

	got.IndexStatus = domain.StatusCompleted
	got.IndexLayer = domain.LayerVision
	require.NoError(t, videos.Update(ctx, nil, got))

	byPath, err := videos.GetByPath(ctx, nil, folderID, "/mnt/a/clip.mp4")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, byPath.IndexStatus)

	require.NoError(t, videos.Delete(ctx, nil, id))
	deleted, err := videos.GetByID(ctx, nil, id)
	require.NoError(t, err)
	require.Nil(t, deleted)
}

func TestVideoRepo_FindOrphanedByHashAndOlderThan(t *testing.T) {
	fs := openFolderStore(t)
	log := testLogger(t)
	ctx := context.Background()
	folders := NewFolderRepo(fs.DB, log)
	videos := NewVideoRepo(fs.DB, log)

	folderID, err := folders.Create(ctx, nil, &domain.Folder{Path: "/mnt/a", LastSeenAt: time.Now(), Available: true})
	require.NoError(t, err)

	hash := "abc123"
	oldOrphanedAt := time.Now().AddDate(0, 0, -40)
	recentOrphanedAt := time.Now().AddDate(0, 0, -1)

	oldID, err := videos.Create(ctx, nil, &domain.Video{
		FolderID: folderID, FilePath: "/mnt/a/old.mp4", FileName: "old.mp4",
		FileHash: &hash, ModifiedTime: time.Now(), IndexStatus: domain.StatusOrphaned, OrphanedAt: &oldOrphanedAt,
	})
	require.NoError(t, err)
	_, err = videos.Create(ctx, nil, &domain.Video{
		FolderID: folderID, FilePath: "/mnt/a/recent.mp4", FileName: "recent.mp4",
		FileHash: stringPtr("def456"), ModifiedTime: time.Now(), IndexStatus: domain.StatusOrphaned, OrphanedAt: &recentOrphanedAt,
	})
	require.NoError(t, err)

	found, err := videos.FindOrphanedByHash(ctx, nil, folderID, hash)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Equal(t, oldID, found.ID)

	none, err := videos.FindOrphanedByHash(ctx, nil, folderID, "no-such-hash")
	require.NoError(t, err)
	require.Nil(t, none)

	cutoff := time.Now().AddDate(0, 0, -30)
	expired, err := videos.FindOrphansOlderThan(ctx, nil, folderID, cutoff)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, oldID, expired[0].ID)
}

func TestVideoRepo_RebaseFilePathPrefix(t *testing.T) {
	fs := openFolderStore(t)
	log := testLogger(t)
	ctx := context.Background()
	folders := NewFolderRepo(fs.DB, log)
	videos := NewVideoRepo(fs.DB, log)

	folderID, err := folders.Create(ctx, nil, &domain.Folder{Path: "/Volumes/Old", LastSeenAt: time.Now(), Available: true})
	require.NoError(t, err)

	srt := "/Volumes/Old/movies/clip.srt"
	id, err := videos.Create(ctx, nil, &domain.Video{
		FolderID: folderID, FilePath: "/Volumes/Old/movies/clip.mp4", FileName: "clip.mp4",
		ModifiedTime: time.Now(), IndexStatus: domain.StatusCompleted, SrtPath: &srt,
	})
	require.NoError(t, err)

	require.NoError(t, videos.RebaseFilePathPrefix(ctx, nil, folderID, "/Volumes/Old", "/Volumes/New"))

	got, err := videos.GetByID(ctx, nil, id)
	require.NoError(t, err)
	require.Equal(t, "/Volumes/New/movies/clip.mp4", got.FilePath)
	require.NotNil(t, got.SrtPath)
	require.Equal(t, "/Volumes/New/movies/clip.srt", *got.SrtPath)
}

func TestVideoRepo_ListChangedSinceAndMaxRowid(t *testing.T) {
	fs := openFolderStore(t)
	log := testLogger(t)
	ctx := context.Background()
	folders := NewFolderRepo(fs.DB, log)
	videos := NewVideoRepo(fs.DB, log)

	folderID, err := folders.Create(ctx, nil, &domain.Folder{Path: "/mnt/a", LastSeenAt: time.Now(), Available: true})
	require.NoError(t, err)

	firstMax, err := videos.MaxRowid(ctx, nil)
	require.NoError(t, err)
	require.Zero(t, firstMax)

	id1, err := videos.Create(ctx, nil, &domain.Video{FolderID: folderID, FilePath: "/mnt/a/1.mp4", FileName: "1.mp4", ModifiedTime: time.Now(), IndexStatus: domain.StatusPending})
	require.NoError(t, err)
	id2, err := videos.Create(ctx, nil, &domain.Video{FolderID: folderID, FilePath: "/mnt/a/2.mp4", FileName: "2.mp4", ModifiedTime: time.Now(), IndexStatus: domain.StatusPending})
	require.NoError(t, err)

	changed, err := videos.ListChangedSince(ctx, nil, id1)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	require.Equal(t, id2, changed[0].ID)

	max, err := videos.MaxRowid(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, id2, max)
}

func TestClipRepo_CreateBatchUpdateListDelete(t *testing.T) {
	fs := openFolderStore(t)
	log := testLogger(t)
	ctx := context.Background()
	folders := NewFolderRepo(fs.DB, log)
	videos := NewVideoRepo(fs.DB, log)
	clips := NewClipRepo(fs.DB, log)

	folderID, err := folders.Create(ctx, nil, &domain.Folder{Path: "/mnt/a", LastSeenAt: time.Now(), Available: true})
	require.NoError(t, err)
	videoID, err := videos.Create(ctx, nil, &domain.Video{FolderID: folderID, FilePath: "/mnt/a/v.mp4", FileName: "v.mp4", ModifiedTime: time.Now(), IndexStatus: domain.StatusPending})
	require.NoError(t, err)

	ids, err := clips.CreateBatch(ctx, nil, []domain.Clip{
		{VideoID: videoID, StartTime: 0, EndTime: 5, ThumbnailPath: "/mnt/a/.clip-index/thumbnails/video_1/scene_0/frame_0.jpg"},
		{VideoID: videoID, StartTime: 5, EndTime: 10, ThumbnailPath: "/mnt/a/.clip-index/thumbnails/video_1/scene_1/frame_0.jpg"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	all, err := clips.ListByVideo(ctx, nil, videoID)
	require.NoError(t, err)
	require.Len(t, all, 2)

	after, err := clips.ListByVideoAfter(ctx, nil, videoID, ids[0])
	require.NoError(t, err)
	require.Len(t, after, 1)
	require.Equal(t, ids[1], after[0].ID)

	desc := "a description"
	all[0].Description = &desc
	require.NoError(t, clips.Update(ctx, nil, &all[0]))

	got, err := clips.ListByVideo(ctx, nil, videoID)
	require.NoError(t, err)
	require.NotNil(t, got[0].Description)
	require.Equal(t, desc, *got[0].Description)

	require.NoError(t, clips.DeleteByVideo(ctx, nil, videoID))
	empty, err := clips.ListByVideo(ctx, nil, videoID)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestClipRepo_RebaseThumbnailPrefix(t *testing.T) {
	fs := openFolderStore(t)
	log := testLogger(t)
	ctx := context.Background()
	folders := NewFolderRepo(fs.DB, log)
	videos := NewVideoRepo(fs.DB, log)
	clips := NewClipRepo(fs.DB, log)

	folderID, err := folders.Create(ctx, nil, &domain.Folder{Path: "/Volumes/Old", LastSeenAt: time.Now(), Available: true})
	require.NoError(t, err)
	videoID, err := videos.Create(ctx, nil, &domain.Video{FolderID: folderID, FilePath: "/Volumes/Old/v.mp4", FileName: "v.mp4", ModifiedTime: time.Now(), IndexStatus: domain.StatusPending})
	require.NoError(t, err)

	ids, err := clips.CreateBatch(ctx, nil, []domain.Clip{
		{VideoID: videoID, StartTime: 0, EndTime: 5, ThumbnailPath: "/Volumes/Old/.clip-index/thumbnails/video_1/scene_0/frame_0.jpg"},
	})
	require.NoError(t, err)

	require.NoError(t, clips.RebaseThumbnailPrefix(ctx, nil, videoID, "/Volumes/Old", "/Volumes/New"))

	got, err := clips.ListByVideo(ctx, nil, videoID)
	require.NoError(t, err)
	require.Equal(t, "/Volumes/New/.clip-index/thumbnails/video_1/scene_0/frame_0.jpg", got[0].ThumbnailPath)
	require.Equal(t, ids[0], got[0].ID)
}

func stringPtr(s string) *string { return &s }
