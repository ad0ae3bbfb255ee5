package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/clipindex/internal/domain"
	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/platform/logger"
)

type syncCursorRow struct {
	FolderPath           string `gorm:"column:folder_path;primaryKey"`
	LastSyncedClipRowid  int64     `gorm:"column:last_synced_clip_rowid"`
	LastSyncedVideoRowid int64     `gorm:"column:last_synced_video_rowid"`
	LastSyncedAt         time.Time `gorm:"column:last_synced_at"`
	VolumeUUID           string    `gorm:"column:volume_uuid"`
	VolumeName           string    `gorm:"column:volume_name"`
}

func (syncCursorRow) TableName() string { return "sync_cursors" }

func (r syncCursorRow) toDomain() domain.SyncCursor {
	return domain.SyncCursor{
		FolderPath:           r.FolderPath,
		LastSyncedClipRowid:  r.LastSyncedClipRowid,
		LastSyncedVideoRowid: r.LastSyncedVideoRowid,
		LastSyncedAt:         r.LastSyncedAt,
		VolumeUUID:           r.VolumeUUID,
		VolumeName:           r.VolumeName,
	}
}

// SyncCursorRepo manages the per-folder high-watermark row in the global
// store (§4.10).
type SyncCursorRepo interface {
	Get(ctx context.Context, tx *gorm.DB, folderPath string) (*domain.SyncCursor, error)
	// Upsert advances the cursor, using COALESCE semantics for volume
	// fields so an unset value never stomps an existing one.
	Upsert(ctx context.Context, tx *gorm.DB, c domain.SyncCursor) error
	RebaseFolderPath(ctx context.Context, tx *gorm.DB, oldPath, newPath string) error
}

type syncCursorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSyncCursorRepo(db *gorm.DB, log *logger.Logger) SyncCursorRepo {
	return &syncCursorRepo{db: db, log: log.With("repo", "SyncCursor")}
}

func (r *syncCursorRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *syncCursorRepo) Get(ctx context.Context, tx *gorm.DB, folderPath string) (*domain.SyncCursor, error) {
	var row syncCursorRow
	err := r.tx(tx).WithContext(ctx).Where("folder_path = ?", folderPath).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, indexerrors.NewStorageError("synccursor.Get", err)
	}
	d := row.toDomain()
	return &d, nil
}

func (r *syncCursorRepo) Upsert(ctx context.Context, tx *gorm.DB, c domain.SyncCursor) error {
	d := r.tx(tx).WithContext(ctx)
	err := d.Exec(`
		INSERT INTO sync_cursors (folder_path, last_synced_clip_rowid, last_synced_video_rowid, last_synced_at, volume_uuid, volume_name)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(folder_path) DO UPDATE SET
			last_synced_clip_rowid = excluded.last_synced_clip_rowid,
			last_synced_video_rowid = excluded.last_synced_video_rowid,
			last_synced_at = excluded.last_synced_at,
			volume_uuid = COALESCE(excluded.volume_uuid, sync_cursors.volume_uuid),
			volume_name = COALESCE(excluded.volume_name, sync_cursors.volume_name)
	`, c.FolderPath, c.LastSyncedClipRowid, c.LastSyncedVideoRowid, c.LastSyncedAt, nullIfEmpty(c.VolumeUUID), nullIfEmpty(c.VolumeName)).Error
	if err != nil {
		return indexerrors.NewStorageError("synccursor.Upsert", err)
	}
	return nil
}

func (r *syncCursorRepo) RebaseFolderPath(ctx context.Context, tx *gorm.DB, oldPath, newPath string) error {
	err := r.tx(tx).WithContext(ctx).Model(&syncCursorRow{}).
		Where("folder_path = ?", oldPath).Update("folder_path", newPath).Error
	if err != nil {
		return indexerrors.NewStorageError("synccursor.RebaseFolderPath", err)
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
