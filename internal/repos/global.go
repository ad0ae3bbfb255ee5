package repos

import (
	"context"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/clipindex/internal/domain"
	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/platform/logger"
)

type globalVideoRow struct {
	ID            int64 `gorm:"column:id;primaryKey"`
	SourceFolder  string  `gorm:"column:source_folder"`
	SourceVideoID int64   `gorm:"column:source_video_id"`
	FilePath      string  `gorm:"column:file_path"`
	FileName      string  `gorm:"column:file_name"`
	IndexStatus   string  `gorm:"column:index_status"`
	SrtPath       *string `gorm:"column:srt_path"`
}

func (globalVideoRow) TableName() string { return "global_videos" }

func (r globalVideoRow) toDomain() domain.GlobalVideo {
	return domain.GlobalVideo{
		ID:            r.ID,
		SourceFolder:  r.SourceFolder,
		SourceVideoID: r.SourceVideoID,
		FilePath:      r.FilePath,
		FileName:      r.FileName,
		IndexStatus:   domain.IndexStatus(r.IndexStatus),
		SrtPath:       r.SrtPath,
	}
}

type globalClipRow struct {
	ID                 int64 `gorm:"column:id;primaryKey"`
	SourceFolder       string  `gorm:"column:source_folder"`
	SourceClipID       int64   `gorm:"column:source_clip_id"`
	SourceVideoID      int64   `gorm:"column:source_video_id"`
	StartTime          float64 `gorm:"column:start_time"`
	EndTime            float64 `gorm:"column:end_time"`
	ThumbnailPath      string  `gorm:"column:thumbnail_path"`
	Transcript         *string        `gorm:"column:transcript"`
	Description        *string        `gorm:"column:description"`
	Tags               datatypes.JSON `gorm:"column:tags"`
	TextEmbedding      []byte         `gorm:"column:text_embedding"`
	TextEmbeddingModel *string `gorm:"column:text_embedding_model"`
}

func (globalClipRow) TableName() string { return "global_clips" }

func (r globalClipRow) toDomain() domain.GlobalClip {
	return domain.GlobalClip{
		ID:                 r.ID,
		SourceFolder:       r.SourceFolder,
		SourceClipID:       r.SourceClipID,
		SourceVideoID:      r.SourceVideoID,
		StartTime:          r.StartTime,
		EndTime:            r.EndTime,
		ThumbnailPath:      r.ThumbnailPath,
		Transcript:         r.Transcript,
		Description:        r.Description,
		Tags:               parseJSONArray(r.Tags),
		TextEmbedding:      r.TextEmbedding,
		TextEmbeddingModel: r.TextEmbeddingModel,
	}
}

// GlobalVideoRepo manages the global_videos mirror table. Rows are upserted
// by SyncEngine; orphan marking and layer-1 clip replacement delete a
// video's mirror rows.
type GlobalVideoRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, v domain.GlobalVideo) error
	DeleteBySource(ctx context.Context, tx *gorm.DB, sourceFolder string, sourceVideoID int64) error
	RebaseSourceFolder(ctx context.Context, tx *gorm.DB, oldFolder, newFolder string) error
	RebaseFilePathPrefix(ctx context.Context, tx *gorm.DB, sourceFolder, oldPrefix, newPrefix string) error
	ListBySource(ctx context.Context, tx *gorm.DB, sourceFolder string, sourceVideoID int64) (*domain.GlobalVideo, error)
}

type globalVideoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGlobalVideoRepo(db *gorm.DB, log *logger.Logger) GlobalVideoRepo {
	return &globalVideoRepo{db: db, log: log.With("repo", "GlobalVideo")}
}

func (r *globalVideoRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *globalVideoRepo) Upsert(ctx context.Context, tx *gorm.DB, v domain.GlobalVideo) error {
	err := r.tx(tx).WithContext(ctx).Exec(`
		INSERT INTO global_videos (source_folder, source_video_id, file_path, file_name, index_status, srt_path)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_folder, source_video_id) DO UPDATE SET
			file_path = excluded.file_path,
			file_name = excluded.file_name,
			index_status = excluded.index_status,
			srt_path = excluded.srt_path
	`, v.SourceFolder, v.SourceVideoID, v.FilePath, v.FileName, string(v.IndexStatus), v.SrtPath).Error
	if err != nil {
		return indexerrors.NewStorageError("globalvideo.Upsert", err)
	}
	return nil
}

func (r *globalVideoRepo) DeleteBySource(ctx context.Context, tx *gorm.DB, sourceFolder string, sourceVideoID int64) error {
	err := r.tx(tx).WithContext(ctx).
		Where("source_folder = ? AND source_video_id = ?", sourceFolder, sourceVideoID).
		Delete(&globalVideoRow{}).Error
	if err != nil {
		return indexerrors.NewStorageError("globalvideo.DeleteBySource", err)
	}
	return nil
}

func (r *globalVideoRepo) RebaseSourceFolder(ctx context.Context, tx *gorm.DB, oldFolder, newFolder string) error {
	err := r.tx(tx).WithContext(ctx).Model(&globalVideoRow{}).
		Where("source_folder = ?", oldFolder).Update("source_folder", newFolder).Error
	if err != nil {
		return indexerrors.NewStorageError("globalvideo.RebaseSourceFolder", err)
	}
	return nil
}

func (r *globalVideoRepo) RebaseFilePathPrefix(ctx context.Context, tx *gorm.DB, sourceFolder, oldPrefix, newPrefix string) error {
	var rows []globalVideoRow
	d := r.tx(tx).WithContext(ctx)
	if err := d.Where("source_folder = ?", sourceFolder).Find(&rows).Error; err != nil {
		return indexerrors.NewStorageError("globalvideo.RebaseFilePathPrefix.select", err)
	}
	for _, row := range rows {
		if !strings.HasPrefix(row.FilePath, oldPrefix) {
			continue
		}
		newPath := newPrefix + strings.TrimPrefix(row.FilePath, oldPrefix)
		var newSrt *string
		if row.SrtPath != nil && strings.HasPrefix(*row.SrtPath, oldPrefix) {
			s := newPrefix + strings.TrimPrefix(*row.SrtPath, oldPrefix)
			newSrt = &s
		} else {
			newSrt = row.SrtPath
		}
		if err := d.Model(&globalVideoRow{}).Where("id = ?", row.ID).
			Updates(map[string]interface{}{"file_path": newPath, "srt_path": newSrt}).Error; err != nil {
			return indexerrors.NewStorageError("globalvideo.RebaseFilePathPrefix.update", err)
		}
	}
	return nil
}

func (r *globalVideoRepo) ListBySource(ctx context.Context, tx *gorm.DB, sourceFolder string, sourceVideoID int64) (*domain.GlobalVideo, error) {
	var row globalVideoRow
	err := r.tx(tx).WithContext(ctx).
		Where("source_folder = ? AND source_video_id = ?", sourceFolder, sourceVideoID).First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, indexerrors.NewStorageError("globalvideo.ListBySource", err)
	}
	d := row.toDomain()
	return &d, nil
}

// GlobalClipRepo manages the global_clips mirror table + FTS index
// (maintained by triggers, see internal/store).
type GlobalClipRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, c domain.GlobalClip) error
	DeleteByVideoSource(ctx context.Context, tx *gorm.DB, sourceFolder string, sourceVideoID int64) error
	RebaseSourceFolder(ctx context.Context, tx *gorm.DB, oldFolder, newFolder string) error
	RebaseThumbnailPrefix(ctx context.Context, tx *gorm.DB, sourceFolder, oldPrefix, newPrefix string) error
	ListByVideoSource(ctx context.Context, tx *gorm.DB, sourceFolder string, sourceVideoID int64) ([]domain.GlobalClip, error)
}

type globalClipRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGlobalClipRepo(db *gorm.DB, log *logger.Logger) GlobalClipRepo {
	return &globalClipRepo{db: db, log: log.With("repo", "GlobalClip")}
}

func (r *globalClipRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *globalClipRepo) Upsert(ctx context.Context, tx *gorm.DB, c domain.GlobalClip) error {
	err := r.tx(tx).WithContext(ctx).Exec(`
		INSERT INTO global_clips (source_folder, source_clip_id, source_video_id, start_time, end_time, thumbnail_path, transcript, description, tags, text_embedding, text_embedding_model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_folder, source_clip_id) DO UPDATE SET
			source_video_id = excluded.source_video_id,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			thumbnail_path = excluded.thumbnail_path,
			transcript = excluded.transcript,
			description = excluded.description,
			tags = excluded.tags,
			text_embedding = excluded.text_embedding,
			text_embedding_model = excluded.text_embedding_model
	`, c.SourceFolder, c.SourceClipID, c.SourceVideoID, c.StartTime, c.EndTime, c.ThumbnailPath,
		c.Transcript, c.Description, jsonArray(c.Tags), c.TextEmbedding, c.TextEmbeddingModel).Error
	if err != nil {
		return indexerrors.NewStorageError("globalclip.Upsert", err)
	}
	return nil
}

func (r *globalClipRepo) DeleteByVideoSource(ctx context.Context, tx *gorm.DB, sourceFolder string, sourceVideoID int64) error {
	err := r.tx(tx).WithContext(ctx).
		Where("source_folder = ? AND source_video_id = ?", sourceFolder, sourceVideoID).
		Delete(&globalClipRow{}).Error
	if err != nil {
		return indexerrors.NewStorageError("globalclip.DeleteByVideoSource", err)
	}
	return nil
}

func (r *globalClipRepo) RebaseSourceFolder(ctx context.Context, tx *gorm.DB, oldFolder, newFolder string) error {
	err := r.tx(tx).WithContext(ctx).Model(&globalClipRow{}).
		Where("source_folder = ?", oldFolder).Update("source_folder", newFolder).Error
	if err != nil {
		return indexerrors.NewStorageError("globalclip.RebaseSourceFolder", err)
	}
	return nil
}

func (r *globalClipRepo) RebaseThumbnailPrefix(ctx context.Context, tx *gorm.DB, sourceFolder, oldPrefix, newPrefix string) error {
	var rows []globalClipRow
	d := r.tx(tx).WithContext(ctx)
	if err := d.Where("source_folder = ?", sourceFolder).Find(&rows).Error; err != nil {
		return indexerrors.NewStorageError("globalclip.RebaseThumbnailPrefix.select", err)
	}
	for _, row := range rows {
		if !strings.HasPrefix(row.ThumbnailPath, oldPrefix) {
			continue
		}
		newPath := newPrefix + strings.TrimPrefix(row.ThumbnailPath, oldPrefix)
		if err := d.Model(&globalClipRow{}).Where("id = ?", row.ID).
			Update("thumbnail_path", newPath).Error; err != nil {
			return indexerrors.NewStorageError("globalclip.RebaseThumbnailPrefix.update", err)
		}
	}
	return nil
}

func (r *globalClipRepo) ListByVideoSource(ctx context.Context, tx *gorm.DB, sourceFolder string, sourceVideoID int64) ([]domain.GlobalClip, error) {
	var rows []globalClipRow
	err := r.tx(tx).WithContext(ctx).
		Where("source_folder = ? AND source_video_id = ?", sourceFolder, sourceVideoID).Find(&rows).Error
	if err != nil {
		return nil, indexerrors.NewStorageError("globalclip.ListByVideoSource", err)
	}
	out := make([]domain.GlobalClip, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
