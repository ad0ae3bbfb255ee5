// Package store implements the dual-store schema of §6: a per-folder
// authoritative SQLite database and a global aggregated search SQLite
// database, both opened through gorm.io/driver/sqlite with WAL journaling
// and foreign keys enabled, migrated with raw SQL DDL (plain tables, the
// FTS5 virtual table and its triggers); GORM AutoMigrate is not used.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/platform/logger"
)

// FolderStore is the authoritative per-media-root database. Its path is
// <folderPath>/.clip-index/index.sqlite.
type FolderStore struct {
	DB  *gorm.DB
	log *logger.Logger
}

// GlobalStore is the aggregated, search-optimized projection database at
// <userAppSupport>/<AppName>/search.sqlite.
type GlobalStore struct {
	DB  *gorm.DB
	log *logger.Logger
}

func openSQLite(path string, log *logger.Logger) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, indexerrors.NewStorageError("mkdir", err)
	}
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, indexerrors.NewStorageError("open", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, indexerrors.NewStorageError("raw-db", err)
	}
	sqlDB.SetMaxOpenConns(1) // single-writer per store, matches §5's writer-exclusive model
	if _, err := sqlDB.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, indexerrors.NewStorageError("pragma-wal", err)
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, indexerrors.NewStorageError("pragma-fk", err)
	}
	if log != nil {
		log.Debug("opened sqlite store", "path", path)
	}
	return db, nil
}

// ThumbnailDir returns <folderPath>/.clip-index/thumbnails/video_<id>/scene_<i>.
func ThumbnailDir(folderPath string, videoID int64, sceneIndex int) string {
	return filepath.Join(folderPath, ".clip-index", "thumbnails",
		fmt.Sprintf("video_%d", videoID), fmt.Sprintf("scene_%d", sceneIndex))
}

// VideoThumbnailDir returns <folderPath>/.clip-index/thumbnails/video_<id>,
// the parent of every per-scene ThumbnailDir for that video.
func VideoThumbnailDir(folderPath string, videoID int64) string {
	return filepath.Join(folderPath, ".clip-index", "thumbnails", fmt.Sprintf("video_%d", videoID))
}

// TempWavPath returns <folderPath>/.clip-index/tmp/video_<id>.wav.
func TempWavPath(folderPath string, videoID int64) string {
	return filepath.Join(folderPath, ".clip-index", "tmp", fmt.Sprintf("video_%d.wav", videoID))
}

// IndexDBPath returns <folderPath>/.clip-index/index.sqlite.
func IndexDBPath(folderPath string) string {
	return filepath.Join(folderPath, ".clip-index", "index.sqlite")
}

// GlobalDBPath returns <userAppSupportDir>/<AppName>/search.sqlite.
func GlobalDBPath(userAppSupportDir, appName string) string {
	return filepath.Join(userAppSupportDir, appName, "search.sqlite")
}

func OpenFolderStore(folderPath string, log *logger.Logger) (*FolderStore, error) {
	db, err := openSQLite(IndexDBPath(folderPath), log)
	if err != nil {
		return nil, err
	}
	fs := &FolderStore{DB: db, log: log.With("component", "FolderStore")}
	if err := fs.migrate(); err != nil {
		return nil, err
	}
	return fs, nil
}

func OpenGlobalStore(userAppSupportDir, appName string, log *logger.Logger) (*GlobalStore, error) {
	db, err := openSQLite(GlobalDBPath(userAppSupportDir, appName), log)
	if err != nil {
		return nil, err
	}
	gs := &GlobalStore{DB: db, log: log.With("component", "GlobalStore")}
	if err := gs.migrate(); err != nil {
		return nil, err
	}
	return gs, nil
}

func (fs *FolderStore) Close() error {
	sqlDB, err := fs.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (gs *GlobalStore) Close() error {
	sqlDB, err := gs.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (fs *FolderStore) migrate() error {
	if err := fs.DB.Exec(folderSchemaDDL).Error; err != nil {
		return indexerrors.NewStorageError("migrate-folder-schema", err)
	}
	return nil
}

func (gs *GlobalStore) migrate() error {
	if err := gs.DB.Exec(globalSchemaDDL).Error; err != nil {
		return indexerrors.NewStorageError("migrate-global-schema", err)
	}
	return nil
}

// RawDB exposes the *sql.DB for raw statements that GORM's query builder
// doesn't cover (bulk rowid scans, FTS matches).
func (fs *FolderStore) RawDB() (*sql.DB, error) { return fs.DB.DB() }
func (gs *GlobalStore) RawDB() (*sql.DB, error) { return gs.DB.DB() }

const folderSchemaDDL = `
CREATE TABLE IF NOT EXISTS folders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE,
	volume_uuid TEXT,
	volume_name TEXT,
	last_seen_at DATETIME,
	available INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS videos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	folder_id INTEGER NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
	file_path TEXT NOT NULL,
	file_name TEXT NOT NULL,
	size_bytes INTEGER NOT NULL DEFAULT 0,
	file_hash TEXT,
	modified_time DATETIME,
	duration_seconds REAL,
	index_layer INTEGER NOT NULL DEFAULT 0,
	index_status TEXT NOT NULL DEFAULT 'pending',
	last_processed_clip INTEGER NOT NULL DEFAULT 0,
	srt_path TEXT,
	orphaned_at DATETIME,
	last_error TEXT,
	UNIQUE(folder_id, file_path)
);
CREATE INDEX IF NOT EXISTS idx_videos_status ON videos(index_status);
CREATE INDEX IF NOT EXISTS idx_videos_hash ON videos(file_hash);

CREATE TABLE IF NOT EXISTS clips (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	video_id INTEGER NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
	start_time REAL NOT NULL,
	end_time REAL NOT NULL,
	thumbnail_path TEXT,
	transcript TEXT,
	scene TEXT,
	subjects TEXT,
	actions TEXT,
	objects TEXT,
	mood TEXT,
	shot_type TEXT,
	lighting TEXT,
	colors TEXT,
	description TEXT,
	tags TEXT,
	text_embedding BLOB,
	text_embedding_model TEXT,
	image_embedding BLOB,
	image_embedding_model TEXT,
	vision_provider TEXT
);
CREATE INDEX IF NOT EXISTS idx_clips_video ON clips(video_id);
`

const globalSchemaDDL = `
CREATE TABLE IF NOT EXISTS sync_cursors (
	folder_path TEXT PRIMARY KEY,
	last_synced_clip_rowid INTEGER NOT NULL DEFAULT 0,
	last_synced_video_rowid INTEGER NOT NULL DEFAULT 0,
	last_synced_at DATETIME,
	volume_uuid TEXT,
	volume_name TEXT
);

CREATE TABLE IF NOT EXISTS global_videos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_folder TEXT NOT NULL,
	source_video_id INTEGER NOT NULL,
	file_path TEXT NOT NULL,
	file_name TEXT NOT NULL,
	index_status TEXT NOT NULL,
	srt_path TEXT,
	UNIQUE(source_folder, source_video_id)
);

CREATE TABLE IF NOT EXISTS global_clips (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_folder TEXT NOT NULL,
	source_clip_id INTEGER NOT NULL,
	source_video_id INTEGER NOT NULL,
	start_time REAL NOT NULL,
	end_time REAL NOT NULL,
	thumbnail_path TEXT,
	transcript TEXT,
	description TEXT,
	tags TEXT,
	text_embedding BLOB,
	text_embedding_model TEXT,
	UNIQUE(source_folder, source_clip_id)
);
CREATE INDEX IF NOT EXISTS idx_global_clips_video ON global_clips(source_folder, source_video_id);

CREATE VIRTUAL TABLE IF NOT EXISTS global_clips_fts USING fts5(
	tags, description, transcript, content='global_clips', content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS global_clips_ai AFTER INSERT ON global_clips BEGIN
	INSERT INTO global_clips_fts(rowid, tags, description, transcript)
	VALUES (new.id, new.tags, new.description, new.transcript);
END;

CREATE TRIGGER IF NOT EXISTS global_clips_ad AFTER DELETE ON global_clips BEGIN
	INSERT INTO global_clips_fts(global_clips_fts, rowid, tags, description, transcript)
	VALUES ('delete', old.id, old.tags, old.description, old.transcript);
END;

CREATE TRIGGER IF NOT EXISTS global_clips_au AFTER UPDATE ON global_clips BEGIN
	INSERT INTO global_clips_fts(global_clips_fts, rowid, tags, description, transcript)
	VALUES ('delete', old.id, old.tags, old.description, old.transcript);
	INSERT INTO global_clips_fts(rowid, tags, description, transcript)
	VALUES (new.id, new.tags, new.description, new.transcript);
END;
`
