package repos

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/clipindex/internal/domain"
	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/platform/logger"
)

type videoRow struct {
	ID                int64 `gorm:"column:id;primaryKey"`
	FolderID          int64     `gorm:"column:folder_id"`
	FilePath          string    `gorm:"column:file_path"`
	FileName          string    `gorm:"column:file_name"`
	SizeBytes         int64     `gorm:"column:size_bytes"`
	FileHash          *string   `gorm:"column:file_hash"`
	ModifiedTime      time.Time `gorm:"column:modified_time"`
	DurationSeconds   *float64  `gorm:"column:duration_seconds"`
	IndexLayer        int       `gorm:"column:index_layer"`
	IndexStatus       string    `gorm:"column:index_status"`
	LastProcessedClip int64     `gorm:"column:last_processed_clip"`
	SrtPath           *string   `gorm:"column:srt_path"`
	OrphanedAt        *time.Time `gorm:"column:orphaned_at"`
	LastError         *string   `gorm:"column:last_error"`
}

func (videoRow) TableName() string { return "videos" }

func (r videoRow) toDomain() domain.Video {
	return domain.Video{
		ID:                r.ID,
		FolderID:          r.FolderID,
		FilePath:          r.FilePath,
		FileName:          r.FileName,
		SizeBytes:         r.SizeBytes,
		FileHash:          r.FileHash,
		ModifiedTime:      r.ModifiedTime,
		DurationSeconds:   r.DurationSeconds,
		IndexLayer:        r.IndexLayer,
		IndexStatus:       domain.IndexStatus(r.IndexStatus),
		LastProcessedClip: r.LastProcessedClip,
		SrtPath:           r.SrtPath,
		OrphanedAt:        r.OrphanedAt,
		LastError:         r.LastError,
	}
}

func videoRowFromDomain(v *domain.Video) videoRow {
	return videoRow{
		ID:                v.ID,
		FolderID:          v.FolderID,
		FilePath:          v.FilePath,
		FileName:          v.FileName,
		SizeBytes:         v.SizeBytes,
		FileHash:          v.FileHash,
		ModifiedTime:      v.ModifiedTime,
		DurationSeconds:   v.DurationSeconds,
		IndexLayer:        v.IndexLayer,
		IndexStatus:       string(v.IndexStatus),
		LastProcessedClip: v.LastProcessedClip,
		SrtPath:           v.SrtPath,
		OrphanedAt:        v.OrphanedAt,
		LastError:         v.LastError,
	}
}

type VideoRepo interface {
	GetByPath(ctx context.Context, tx *gorm.DB, folderID int64, path string) (*domain.Video, error)
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*domain.Video, error)
	Create(ctx context.Context, tx *gorm.DB, v *domain.Video) (int64, error)
	Update(ctx context.Context, tx *gorm.DB, v *domain.Video) error
	Delete(ctx context.Context, tx *gorm.DB, id int64) error
	FindOrphanedByHash(ctx context.Context, tx *gorm.DB, folderID int64, hash string) (*domain.Video, error)
	FindOrphansOlderThan(ctx context.Context, tx *gorm.DB, folderID int64, cutoff time.Time) ([]domain.Video, error)
	ListChangedSince(ctx context.Context, tx *gorm.DB, sinceRowid int64) ([]domain.Video, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]domain.Video, error)
	MaxRowid(ctx context.Context, tx *gorm.DB) (int64, error)
	// RebaseFilePathPrefix rewrites file_path and srt_path for every row
	// whose path starts with oldPrefix, for a folder mount-point change
	// with an unchanged volume UUID (§4.10).
	RebaseFilePathPrefix(ctx context.Context, tx *gorm.DB, folderID int64, oldPrefix, newPrefix string) error
}

type videoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVideoRepo(db *gorm.DB, log *logger.Logger) VideoRepo {
	return &videoRepo{db: db, log: log.With("repo", "Video")}
}

func (r *videoRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *videoRepo) GetByPath(ctx context.Context, tx *gorm.DB, folderID int64, path string) (*domain.Video, error) {
	var row videoRow
	err := r.tx(tx).WithContext(ctx).Where("folder_id = ? AND file_path = ?", folderID, path).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, indexerrors.NewStorageError("video.GetByPath", err)
	}
	d := row.toDomain()
	return &d, nil
}

func (r *videoRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*domain.Video, error) {
	var row videoRow
	err := r.tx(tx).WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, indexerrors.NewStorageError("video.GetByID", err)
	}
	d := row.toDomain()
	return &d, nil
}

func (r *videoRepo) Create(ctx context.Context, tx *gorm.DB, v *domain.Video) (int64, error) {
	row := videoRowFromDomain(v)
	row.ID = 0
	if row.IndexStatus == "" {
		row.IndexStatus = string(domain.StatusPending)
	}
	if err := r.tx(tx).WithContext(ctx).Create(&row).Error; err != nil {
		return 0, indexerrors.NewStorageError("video.Create", err)
	}
	return row.ID, nil
}

func (r *videoRepo) Update(ctx context.Context, tx *gorm.DB, v *domain.Video) error {
	row := videoRowFromDomain(v)
	if err := r.tx(tx).WithContext(ctx).Save(&row).Error; err != nil {
		return indexerrors.NewStorageError("video.Update", err)
	}
	return nil
}

func (r *videoRepo) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	if err := r.tx(tx).WithContext(ctx).Delete(&videoRow{}, id).Error; err != nil {
		return indexerrors.NewStorageError("video.Delete", err)
	}
	return nil
}

func (r *videoRepo) FindOrphanedByHash(ctx context.Context, tx *gorm.DB, folderID int64, hash string) (*domain.Video, error) {
	var row videoRow
	err := r.tx(tx).WithContext(ctx).
		Where("folder_id = ? AND index_status = ? AND file_hash = ?", folderID, string(domain.StatusOrphaned), hash).
		Order("orphaned_at DESC").
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, indexerrors.NewStorageError("video.FindOrphanedByHash", err)
	}
	d := row.toDomain()
	return &d, nil
}

func (r *videoRepo) FindOrphansOlderThan(ctx context.Context, tx *gorm.DB, folderID int64, cutoff time.Time) ([]domain.Video, error) {
	var rows []videoRow
	err := r.tx(tx).WithContext(ctx).
		Where("folder_id = ? AND index_status = ? AND orphaned_at < ?", folderID, string(domain.StatusOrphaned), cutoff).
		Find(&rows).Error
	if err != nil {
		return nil, indexerrors.NewStorageError("video.FindOrphansOlderThan", err)
	}
	out := make([]domain.Video, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *videoRepo) ListChangedSince(ctx context.Context, tx *gorm.DB, sinceRowid int64) ([]domain.Video, error) {
	var rows []videoRow
	err := r.tx(tx).WithContext(ctx).Where("id > ?", sinceRowid).Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, indexerrors.NewStorageError("video.ListChangedSince", err)
	}
	out := make([]domain.Video, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *videoRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]domain.Video, error) {
	return r.ListChangedSince(ctx, tx, 0)
}

func (r *videoRepo) RebaseFilePathPrefix(ctx context.Context, tx *gorm.DB, folderID int64, oldPrefix, newPrefix string) error {
	var rows []videoRow
	d := r.tx(tx).WithContext(ctx)
	if err := d.Where("folder_id = ?", folderID).Find(&rows).Error; err != nil {
		return indexerrors.NewStorageError("video.RebaseFilePathPrefix.select", err)
	}
	for _, row := range rows {
		if !strings.HasPrefix(row.FilePath, oldPrefix) {
			continue
		}
		newPath := newPrefix + strings.TrimPrefix(row.FilePath, oldPrefix)
		updates := map[string]interface{}{"file_path": newPath}
		if row.SrtPath != nil && strings.HasPrefix(*row.SrtPath, oldPrefix) {
			s := newPrefix + strings.TrimPrefix(*row.SrtPath, oldPrefix)
			updates["srt_path"] = s
		}
		if err := d.Model(&videoRow{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
			return indexerrors.NewStorageError("video.RebaseFilePathPrefix.update", err)
		}
	}
	return nil
}

func (r *videoRepo) MaxRowid(ctx context.Context, tx *gorm.DB) (int64, error) {
	var max int64
	err := r.tx(tx).WithContext(ctx).Model(&videoRow{}).Select("COALESCE(MAX(id), 0)").Scan(&max).Error
	if err != nil {
		return 0, indexerrors.NewStorageError("video.MaxRowid", err)
	}
	return max, nil
}
