// Package repos implements per-entity repositories over the folder and
// global stores, following the teacher's pattern: an interface plus a
// struct holding (db *gorm.DB, log *logger.Logger), every method taking an
// optional *gorm.DB transaction that falls back to the repo's own db.
package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/clipindex/internal/domain"
	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/platform/logger"
)

type folderRow struct {
	ID         int64 `gorm:"column:id;primaryKey"`
	Path       string
	VolumeUUID string `gorm:"column:volume_uuid"`
	VolumeName string `gorm:"column:volume_name"`
	LastSeenAt time.Time `gorm:"column:last_seen_at"`
	Available  bool
}

func (folderRow) TableName() string { return "folders" }

func (r folderRow) toDomain() domain.Folder {
	return domain.Folder{
		ID:         r.ID,
		Path:       r.Path,
		VolumeUUID: r.VolumeUUID,
		VolumeName: r.VolumeName,
		LastSeenAt: r.LastSeenAt,
		Available:  r.Available,
	}
}

type FolderRepo interface {
	GetByPath(ctx context.Context, tx *gorm.DB, path string) (*domain.Folder, error)
	Create(ctx context.Context, tx *gorm.DB, f *domain.Folder) (int64, error)
	SetAvailable(ctx context.Context, tx *gorm.DB, id int64, available bool) error
	// UpdatePath rebases the folder's mount point when the volume UUID is
	// unchanged (§4.10 path rebase).
	UpdatePath(ctx context.Context, tx *gorm.DB, id int64, newPath string) error
}

type folderRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFolderRepo(db *gorm.DB, log *logger.Logger) FolderRepo {
	return &folderRepo{db: db, log: log.With("repo", "Folder")}
}

func (r *folderRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *folderRepo) GetByPath(ctx context.Context, tx *gorm.DB, path string) (*domain.Folder, error) {
	var row folderRow
	err := r.tx(tx).WithContext(ctx).Where("path = ?", path).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, indexerrors.NewStorageError("folder.GetByPath", err)
	}
	d := row.toDomain()
	return &d, nil
}

func (r *folderRepo) Create(ctx context.Context, tx *gorm.DB, f *domain.Folder) (int64, error) {
	row := folderRow{
		Path:       f.Path,
		VolumeUUID: f.VolumeUUID,
		VolumeName: f.VolumeName,
		LastSeenAt: f.LastSeenAt,
		Available:  true,
	}
	if err := r.tx(tx).WithContext(ctx).Create(&row).Error; err != nil {
		return 0, indexerrors.NewStorageError("folder.Create", err)
	}
	return row.ID, nil
}

func (r *folderRepo) SetAvailable(ctx context.Context, tx *gorm.DB, id int64, available bool) error {
	err := r.tx(tx).WithContext(ctx).Model(&folderRow{}).Where("id = ?", id).
		Update("available", available).Error
	if err != nil {
		return indexerrors.NewStorageError("folder.SetAvailable", err)
	}
	return nil
}

func (r *folderRepo) UpdatePath(ctx context.Context, tx *gorm.DB, id int64, newPath string) error {
	err := r.tx(tx).WithContext(ctx).Model(&folderRow{}).Where("id = ?", id).
		Update("path", newPath).Error
	if err != nil {
		return indexerrors.NewStorageError("folder.UpdatePath", err)
	}
	return nil
}
