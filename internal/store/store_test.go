package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/clipindex/internal/platform/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New("test")
	require.NoError(t, err)
	return l
}

func TestOpenFolderStore_MigratesSchemaAndIsReopenable(t *testing.T) {
	log := testLogger(t)
	dir := t.TempDir()

	fs, err := OpenFolderStore(dir, log)
	require.NoError(t, err)

	var count int64
	require.NoError(t, fs.DB.Raw("SELECT count(*) FROM sqlite_master WHERE type='table' AND name IN ('folders','videos','clips')").Scan(&count).Error)
	require.Equal(t, int64(3), count)
	require.NoError(t, fs.Close())

	fs2, err := OpenFolderStore(dir, log)
	require.NoError(t, err)
	t.Cleanup(func() { fs2.Close() })
	require.NoError(t, fs2.DB.Raw("SELECT count(*) FROM sqlite_master WHERE type='table' AND name='folders'").Scan(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestOpenGlobalStore_MigratesFTSAndTriggers(t *testing.T) {
	log := testLogger(t)
	dir := t.TempDir()

	gs, err := OpenGlobalStore(dir, "ClipIndex", log)
	require.NoError(t, err)
	t.Cleanup(func() { gs.Close() })

	require.NoError(t, gs.DB.Exec(`INSERT INTO global_clips (source_folder, source_clip_id, source_video_id, start_time, end_time, description, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, "/mnt/movies", 1, 1, 0.0, 5.0, "a cat chasing a red ball", "cat,ball").Error)

	var matchCount int64
	require.NoError(t, gs.DB.Raw(`SELECT count(*) FROM global_clips_fts WHERE global_clips_fts MATCH 'cat'`).Scan(&matchCount).Error)
	require.Equal(t, int64(1), matchCount)

	require.NoError(t, gs.DB.Exec(`DELETE FROM global_clips WHERE source_clip_id = ?`, 1).Error)
	require.NoError(t, gs.DB.Raw(`SELECT count(*) FROM global_clips_fts WHERE global_clips_fts MATCH 'cat'`).Scan(&matchCount).Error)
	require.Equal(t, int64(0), matchCount)
}

func TestPathHelpers(t *testing.T) {
	require.Equal(t, filepath.Join("/mnt/movies", ".clip-index", "thumbnails", "video_7", "scene_2"), ThumbnailDir("/mnt/movies", 7, 2))
	require.Equal(t, filepath.Join("/mnt/movies", ".clip-index", "thumbnails", "video_7"), VideoThumbnailDir("/mnt/movies", 7))
	require.Equal(t, filepath.Join("/mnt/movies", ".clip-index", "tmp", "video_7.wav"), TempWavPath("/mnt/movies", 7))
	require.Equal(t, filepath.Join("/mnt/movies", ".clip-index", "index.sqlite"), IndexDBPath("/mnt/movies"))
	require.Equal(t, filepath.Join("/Users/x/Library/Application Support", "ClipIndex", "search.sqlite"), GlobalDBPath("/Users/x/Library/Application Support", "ClipIndex"))
}
