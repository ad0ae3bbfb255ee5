package indexer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/yungbote/clipindex/internal/domain"
	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/platform/ctxutil"
)

func checkCancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return indexerrors.Cancelled
	}
	return nil
}

// IndexVideo runs the pre-pipeline guards and then every applicable
// layer for one video, per §4.9. It returns as soon as a guard
// short-circuits, or after the highest applicable layer completes (or
// fails non-fatally and records the failure on the video row).
func (ix *Indexer) IndexVideo(ctx context.Context, opts IndexOptions) (*Result, error) {
	progress := opts.progress()
	d := ix.deps

	info, err := os.Stat(opts.VideoPath)
	if err != nil {
		return nil, err
	}

	video, err := d.Videos.GetByPath(ctx, nil, opts.FolderID, opts.VideoPath)
	if err != nil {
		return nil, err
	}
	if video == nil {
		id, err := d.Videos.Create(ctx, nil, &domain.Video{
			FolderID:     opts.FolderID,
			FilePath:     opts.VideoPath,
			FileName:     filepath.Base(opts.VideoPath),
			SizeBytes:    info.Size(),
			ModifiedTime: info.ModTime(),
			IndexStatus:  domain.StatusPending,
		})
		if err != nil {
			return nil, err
		}
		video, err = d.Videos.GetByID(ctx, nil, id)
		if err != nil {
			return nil, err
		}
	}

	res := &Result{VideoID: video.ID}

	// Tag every log line this run emits with the job/trace identifiers the
	// scheduler attached to ctx, if any, without threading them through
	// every layer function's parameter list.
	work := ix
	if td, ok := ctxutil.GetTraceData(ctx); ok {
		scoped := *ix
		scoped.deps.Log = d.Log.With("jobID", td.JobID, "videoID", video.ID)
		d = scoped.deps
		work = &scoped
	}

	if video.IndexStatus == domain.StatusCompleted {
		skip, err := ix.fastSkip(ctx, video, info)
		if err != nil {
			return nil, err
		}
		if skip {
			res.Skipped = true
			return res, nil
		}
		// fastSkip mutated video in place to fall through as pending.
	}

	if video.IndexStatus == domain.StatusOrphaned {
		hash, err := ComputeQuickHash(opts.VideoPath)
		if err != nil {
			return nil, err
		}
		if video.FileHash != nil && *video.FileHash == hash {
			video.IndexStatus = domain.StatusCompleted
			video.OrphanedAt = nil
			video.SizeBytes = info.Size()
			video.ModifiedTime = info.ModTime()
			if err := d.Videos.Update(ctx, nil, video); err != nil {
				return nil, err
			}
			res.RequiresForceSync = true
			res.Skipped = true
			return res, nil
		}
		video.IndexStatus = domain.StatusPending
		video.IndexLayer = domain.LayerMetadata
		video.FileHash = nil
		video.LastProcessedClip = 0
		if err := d.Videos.Update(ctx, nil, video); err != nil {
			return nil, err
		}
	}

	if video.IndexStatus == domain.StatusPending && video.FileHash == nil && d.Orphan != nil {
		hash, err := ComputeQuickHash(opts.VideoPath)
		if err != nil {
			return nil, err
		}
		video.FileHash = &hash
		recovered, err := d.Orphan.AttemptRecovery(ctx, opts.FolderID, hash, video)
		if err != nil {
			return nil, err
		}
		if recovered != nil {
			res.VideoID = recovered.RecoveredVideoID
			res.ClipsCreated = recovered.ClipCount
			res.RequiresForceSync = true
			res.Skipped = true
			return res, nil
		}
		if err := d.Videos.Update(ctx, nil, video); err != nil {
			return nil, err
		}
	}

	for layer := video.IndexLayer; layer <= domain.LayerVision; layer++ {
		if d.Cfg.SkipsLayer(layer) {
			continue
		}
		if err := checkCancelled(ctx); err != nil {
			return res, err
		}

		var layerErr error
		switch layer {
		case domain.LayerMetadata:
			layerErr = work.runLayerMetadata(ctx, video, opts, progress)
		case domain.LayerVectors:
			layerErr = work.runLayerVectors(ctx, video, opts, res, progress)
		case domain.LayerSTT:
			layerErr = work.runLayerSTT(ctx, video, opts, res, progress)
		case domain.LayerVision:
			layerErr = work.runLayerVision(ctx, video, opts, res, progress)
		}

		if layerErr != nil {
			if layerErr == indexerrors.Cancelled || layerErr == context.Canceled {
				return res, layerErr
			}
			msg := layerErr.Error()
			video.IndexStatus = domain.StatusFailed
			video.LastError = &msg
			_ = d.Videos.Update(ctx, nil, video)
			return res, nil
		}
	}

	if d.Sync != nil && !opts.SkipSync {
		syncRes, err := d.Sync.Sync(ctx)
		if err != nil {
			return res, err
		}
		res.SyncResult = syncRes
	}

	return res, nil
}

// fastSkip implements §4.9 guard 2 for an already-completed video. It
// mutates video in place when falling through to reprocessing; the
// return bool is true when IndexVideo should return immediately.
func (ix *Indexer) fastSkip(ctx context.Context, video *domain.Video, info os.FileInfo) (bool, error) {
	d := ix.deps
	sameSize := info.Size() == video.SizeBytes
	sameMtime := info.ModTime().Equal(video.ModifiedTime)
	if sameSize && sameMtime {
		return true, nil
	}

	if video.FileHash != nil {
		hash, err := ComputeQuickHash(video.FilePath)
		if err != nil {
			return false, err
		}
		if hash == *video.FileHash {
			video.SizeBytes = info.Size()
			video.ModifiedTime = info.ModTime()
			if err := d.Videos.Update(ctx, nil, video); err != nil {
				return false, err
			}
			return true, nil
		}
		video.FileHash = nil
		video.LastProcessedClip = 0
		video.IndexLayer = domain.LayerMetadata
		video.IndexStatus = domain.StatusPending
		if err := d.Videos.Update(ctx, nil, video); err != nil {
			return false, err
		}
		return false, nil
	}

	if !sameSize {
		video.IndexLayer = domain.LayerMetadata
		video.IndexStatus = domain.StatusPending
		video.LastProcessedClip = 0
		if err := d.Videos.Update(ctx, nil, video); err != nil {
			return false, err
		}
		return false, nil
	}

	hash, err := ComputeQuickHash(video.FilePath)
	if err != nil {
		return false, err
	}
	video.FileHash = &hash
	video.ModifiedTime = info.ModTime()
	if err := d.Videos.Update(ctx, nil, video); err != nil {
		return false, err
	}
	return true, nil
}
