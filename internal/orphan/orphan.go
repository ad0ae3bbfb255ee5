// Package orphan implements OrphanRecovery (§4.8): marking a video
// orphaned when its source file disappears, recovering it by content
// hash when a matching file reappears in the same folder, and
// hard-deleting orphans past the retention cutoff.
package orphan

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/clipindex/internal/domain"
	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/platform/logger"
	"github.com/yungbote/clipindex/internal/repos"
	"github.com/yungbote/clipindex/internal/store"
)

type Recovery struct {
	db        *gorm.DB // folder store
	globalDB  *gorm.DB // global store; nil when running without a global store
	folderDir string
	videos    repos.VideoRepo
	globalVid repos.GlobalVideoRepo
	globalClp repos.GlobalClipRepo
	log       *logger.Logger
}

func New(db, globalDB *gorm.DB, folderDir string, videos repos.VideoRepo, globalVid repos.GlobalVideoRepo, globalClp repos.GlobalClipRepo, log *logger.Logger) *Recovery {
	return &Recovery{db: db, globalDB: globalDB, folderDir: folderDir, videos: videos, globalVid: globalVid, globalClp: globalClp, log: log.With("component", "OrphanRecovery")}
}

// MarkOrphaned sets the video's status to orphaned in the folder store
// and removes its mirror rows from the (separate) global store,
// keeping clips and thumbnails in the folder store intact for possible
// recovery. The two stores are distinct SQLite files, so each gets its
// own transaction.
func (r *Recovery) MarkOrphaned(ctx context.Context, v *domain.Video, sourceFolder string) error {
	if err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		v.IndexStatus = domain.StatusOrphaned
		v.OrphanedAt = &now
		return r.videos.Update(ctx, tx, v)
	}); err != nil {
		return err
	}

	if r.globalDB == nil {
		return nil
	}
	return r.globalDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.globalClp.DeleteByVideoSource(ctx, tx, sourceFolder, v.ID); err != nil {
			return err
		}
		return r.globalVid.DeleteBySource(ctx, tx, sourceFolder, v.ID)
	})
}

type RecoveryResult struct {
	RecoveredVideoID int64
	ClipCount        int
}

// AttemptRecovery finds the most recently orphaned row with a matching
// content hash in the same folder store and, if found, deletes the
// pending row (releasing the path-unique constraint) and reactivates
// the orphaned row at the new path. The caller must perform a forced
// sync afterward to re-project the recovered video into the global
// store (§4.10).
func (r *Recovery) AttemptRecovery(ctx context.Context, folderID int64, fileHash string, pending *domain.Video) (*RecoveryResult, error) {
	var result *RecoveryResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orphaned, err := r.videos.FindOrphanedByHash(ctx, tx, folderID, fileHash)
		if err != nil {
			return err
		}
		if orphaned == nil || orphaned.ID == pending.ID {
			return nil
		}
		if err := r.videos.Delete(ctx, tx, pending.ID); err != nil {
			return err
		}
		orphaned.FilePath = pending.FilePath
		orphaned.FileName = pending.FileName
		orphaned.SizeBytes = pending.SizeBytes
		orphaned.ModifiedTime = pending.ModifiedTime
		orphaned.IndexStatus = domain.StatusCompleted
		orphaned.OrphanedAt = nil
		if err := r.videos.Update(ctx, tx, orphaned); err != nil {
			return err
		}
		clips, err := clipCountByVideo(ctx, tx, orphaned.ID)
		if err != nil {
			return err
		}
		result = &RecoveryResult{RecoveredVideoID: orphaned.ID, ClipCount: clips}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func clipCountByVideo(ctx context.Context, tx *gorm.DB, videoID int64) (int, error) {
	var n int64
	if err := tx.WithContext(ctx).Table("clips").Where("video_id = ?", videoID).Count(&n).Error; err != nil {
		return 0, indexerrors.NewStorageError("clip.CountByVideo", err)
	}
	return int(n), nil
}

// CleanupExpired hard-deletes orphaned rows older than retentionDays
// (cascading to their clips), then removes the associated thumbnail
// directory and any fallback-scoped subtitle file on a best-effort
// basis outside the DB transaction, matching §4.8's ordering.
func (r *Recovery) CleanupExpired(ctx context.Context, folderID int64, retentionDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	var expired []domain.Video
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		expired, err = r.videos.FindOrphansOlderThan(ctx, tx, folderID, cutoff)
		if err != nil {
			return err
		}
		for _, v := range expired {
			if err := r.videos.Delete(ctx, tx, v.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, v := range expired {
		dir := store.VideoThumbnailDir(r.folderDir, v.ID)
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			r.log.Warn("failed to remove thumbnail directory during orphan cleanup", "video", v.ID, "dir", dir, "err", rmErr)
		}
		// A subtitle beside the video is not fallback-scoped and is kept.
		if v.SrtPath != nil && filepath.Dir(*v.SrtPath) != filepath.Dir(v.FilePath) {
			if rmErr := os.Remove(*v.SrtPath); rmErr != nil && !os.IsNotExist(rmErr) {
				r.log.Warn("failed to remove subtitle file during orphan cleanup", "video", v.ID, "path", *v.SrtPath, "err", rmErr)
			}
		}
	}
	return len(expired), nil
}
