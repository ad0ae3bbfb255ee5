package repos

import (
	"context"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/clipindex/internal/domain"
	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/platform/logger"
)

type clipRow struct {
	ID                  int64 `gorm:"column:id;primaryKey"`
	VideoID             int64          `gorm:"column:video_id"`
	StartTime           float64        `gorm:"column:start_time"`
	EndTime             float64        `gorm:"column:end_time"`
	ThumbnailPath       string         `gorm:"column:thumbnail_path"`
	Transcript          *string        `gorm:"column:transcript"`
	Scene               *string        `gorm:"column:scene"`
	Subjects            datatypes.JSON `gorm:"column:subjects"`
	Actions             *string        `gorm:"column:actions"`
	Objects             datatypes.JSON `gorm:"column:objects"`
	Mood                *string        `gorm:"column:mood"`
	ShotType            *string        `gorm:"column:shot_type"`
	Lighting            *string        `gorm:"column:lighting"`
	Colors              datatypes.JSON `gorm:"column:colors"`
	Description         *string        `gorm:"column:description"`
	Tags                datatypes.JSON `gorm:"column:tags"`
	TextEmbedding       []byte         `gorm:"column:text_embedding"`
	TextEmbeddingModel  *string        `gorm:"column:text_embedding_model"`
	ImageEmbedding      []byte         `gorm:"column:image_embedding"`
	ImageEmbeddingModel *string        `gorm:"column:image_embedding_model"`
	VisionProvider      *string        `gorm:"column:vision_provider"`
}

func (clipRow) TableName() string { return "clips" }

// jsonArray marshals a string slice into the datatypes.JSON column shape
// the teacher uses for its own JSON-array/object columns (e.g.
// Trajectory datatypes.JSON); nil/empty slices store as a nil column
// rather than an empty-array literal.
func jsonArray(arr []string) datatypes.JSON {
	if len(arr) == 0 {
		return nil
	}
	b, _ := json.Marshal(arr)
	return datatypes.JSON(b)
}

func parseJSONArray(raw datatypes.JSON) []string {
	if len(raw) == 0 || strings.TrimSpace(string(raw)) == "" || strings.TrimSpace(string(raw)) == "null" {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func (r clipRow) toDomain() domain.Clip {
	return domain.Clip{
		ID:                  r.ID,
		VideoID:             r.VideoID,
		StartTime:           r.StartTime,
		EndTime:             r.EndTime,
		ThumbnailPath:       r.ThumbnailPath,
		Transcript:          r.Transcript,
		Scene:               r.Scene,
		Subjects:            parseJSONArray(r.Subjects),
		Actions:             r.Actions,
		Objects:             parseJSONArray(r.Objects),
		Mood:                r.Mood,
		ShotType:            r.ShotType,
		Lighting:            r.Lighting,
		Colors:              parseJSONArray(r.Colors),
		Description:         r.Description,
		Tags:                parseJSONArray(r.Tags),
		TextEmbedding:       r.TextEmbedding,
		TextEmbeddingModel:  r.TextEmbeddingModel,
		ImageEmbedding:      r.ImageEmbedding,
		ImageEmbeddingModel: r.ImageEmbeddingModel,
		VisionProvider:      r.VisionProvider,
	}
}

func clipRowFromDomain(c *domain.Clip) clipRow {
	return clipRow{
		ID:                  c.ID,
		VideoID:             c.VideoID,
		StartTime:           c.StartTime,
		EndTime:             c.EndTime,
		ThumbnailPath:       c.ThumbnailPath,
		Transcript:          c.Transcript,
		Scene:               c.Scene,
		Subjects:            jsonArray(c.Subjects),
		Actions:             c.Actions,
		Objects:             jsonArray(c.Objects),
		Mood:                c.Mood,
		ShotType:            c.ShotType,
		Lighting:            c.Lighting,
		Colors:              jsonArray(c.Colors),
		Description:         c.Description,
		Tags:                jsonArray(c.Tags),
		TextEmbedding:       c.TextEmbedding,
		TextEmbeddingModel:  c.TextEmbeddingModel,
		ImageEmbedding:      c.ImageEmbedding,
		ImageEmbeddingModel: c.ImageEmbeddingModel,
		VisionProvider:      c.VisionProvider,
	}
}

type ClipRepo interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, clips []domain.Clip) ([]int64, error)
	Update(ctx context.Context, tx *gorm.DB, c *domain.Clip) error
	UpdateBatch(ctx context.Context, tx *gorm.DB, clips []domain.Clip) error
	ListByVideo(ctx context.Context, tx *gorm.DB, videoID int64) ([]domain.Clip, error)
	ListByVideoAfter(ctx context.Context, tx *gorm.DB, videoID int64, afterClipID int64) ([]domain.Clip, error)
	DeleteByVideo(ctx context.Context, tx *gorm.DB, videoID int64) error
	ListChangedSince(ctx context.Context, tx *gorm.DB, sinceRowid int64) ([]domain.Clip, error)
	MaxRowid(ctx context.Context, tx *gorm.DB) (int64, error)
	// RebaseThumbnailPrefix rewrites thumbnail_path for every clip of the
	// given video whose path starts with oldPrefix (§4.10 path rebase).
	RebaseThumbnailPrefix(ctx context.Context, tx *gorm.DB, videoID int64, oldPrefix, newPrefix string) error
}

type clipRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewClipRepo(db *gorm.DB, log *logger.Logger) ClipRepo {
	return &clipRepo{db: db, log: log.With("repo", "Clip")}
}

func (r *clipRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *clipRepo) CreateBatch(ctx context.Context, tx *gorm.DB, clips []domain.Clip) ([]int64, error) {
	if len(clips) == 0 {
		return nil, nil
	}
	rows := make([]clipRow, 0, len(clips))
	for _, c := range clips {
		row := clipRowFromDomain(&c)
		row.ID = 0
		rows = append(rows, row)
	}
	if err := r.tx(tx).WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, indexerrors.NewStorageError("clip.CreateBatch", err)
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (r *clipRepo) Update(ctx context.Context, tx *gorm.DB, c *domain.Clip) error {
	row := clipRowFromDomain(c)
	if err := r.tx(tx).WithContext(ctx).Save(&row).Error; err != nil {
		return indexerrors.NewStorageError("clip.Update", err)
	}
	return nil
}

func (r *clipRepo) UpdateBatch(ctx context.Context, tx *gorm.DB, clips []domain.Clip) error {
	d := r.tx(tx).WithContext(ctx)
	for i := range clips {
		row := clipRowFromDomain(&clips[i])
		if err := d.Save(&row).Error; err != nil {
			return indexerrors.NewStorageError("clip.UpdateBatch", err)
		}
	}
	return nil
}

func (r *clipRepo) ListByVideo(ctx context.Context, tx *gorm.DB, videoID int64) ([]domain.Clip, error) {
	var rows []clipRow
	err := r.tx(tx).WithContext(ctx).Where("video_id = ?", videoID).Order("start_time ASC").Find(&rows).Error
	if err != nil {
		return nil, indexerrors.NewStorageError("clip.ListByVideo", err)
	}
	out := make([]domain.Clip, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *clipRepo) ListByVideoAfter(ctx context.Context, tx *gorm.DB, videoID int64, afterClipID int64) ([]domain.Clip, error) {
	var rows []clipRow
	err := r.tx(tx).WithContext(ctx).
		Where("video_id = ? AND id > ?", videoID, afterClipID).
		Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, indexerrors.NewStorageError("clip.ListByVideoAfter", err)
	}
	out := make([]domain.Clip, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *clipRepo) DeleteByVideo(ctx context.Context, tx *gorm.DB, videoID int64) error {
	if err := r.tx(tx).WithContext(ctx).Where("video_id = ?", videoID).Delete(&clipRow{}).Error; err != nil {
		return indexerrors.NewStorageError("clip.DeleteByVideo", err)
	}
	return nil
}

func (r *clipRepo) ListChangedSince(ctx context.Context, tx *gorm.DB, sinceRowid int64) ([]domain.Clip, error) {
	var rows []clipRow
	err := r.tx(tx).WithContext(ctx).Where("id > ?", sinceRowid).Order("id ASC").Find(&rows).Error
	if err != nil {
		return nil, indexerrors.NewStorageError("clip.ListChangedSince", err)
	}
	out := make([]domain.Clip, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *clipRepo) RebaseThumbnailPrefix(ctx context.Context, tx *gorm.DB, videoID int64, oldPrefix, newPrefix string) error {
	var rows []clipRow
	d := r.tx(tx).WithContext(ctx)
	if err := d.Where("video_id = ?", videoID).Find(&rows).Error; err != nil {
		return indexerrors.NewStorageError("clip.RebaseThumbnailPrefix.select", err)
	}
	for _, row := range rows {
		if !strings.HasPrefix(row.ThumbnailPath, oldPrefix) {
			continue
		}
		newPath := newPrefix + strings.TrimPrefix(row.ThumbnailPath, oldPrefix)
		if err := d.Model(&clipRow{}).Where("id = ?", row.ID).Update("thumbnail_path", newPath).Error; err != nil {
			return indexerrors.NewStorageError("clip.RebaseThumbnailPrefix.update", err)
		}
	}
	return nil
}

func (r *clipRepo) MaxRowid(ctx context.Context, tx *gorm.DB) (int64, error) {
	var max int64
	err := r.tx(tx).WithContext(ctx).Model(&clipRow{}).Select("COALESCE(MAX(id), 0)").Scan(&max).Error
	if err != nil {
		return 0, indexerrors.NewStorageError("clip.MaxRowid", err)
	}
	return max, nil
}
