package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"gorm.io/gorm"

	"github.com/yungbote/clipindex/internal/domain"
	"github.com/yungbote/clipindex/internal/embedtext"
	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/keyframe"
	"github.com/yungbote/clipindex/internal/store"
	"github.com/yungbote/clipindex/internal/stt"
	"github.com/yungbote/clipindex/internal/vision"
)

// runLayerMetadata determines duration via a side-effect-free probe and
// advances to metadataDone (§4.9 layer 0).
func (ix *Indexer) runLayerMetadata(ctx context.Context, video *domain.Video, opts IndexOptions, progress ProgressFunc) error {
	d := ix.deps
	progress("metadata", 0, "probing duration")

	duration, err := probeDuration(ctx, d.Bridge, d.Cfg.FFmpegPath, opts.VideoPath)
	if err != nil {
		return err
	}
	video.DurationSeconds = &duration
	video.IndexLayer = domain.LayerMetadata
	video.IndexStatus = domain.StatusMetadataDone
	if err := d.Videos.Update(ctx, nil, video); err != nil {
		return err
	}
	progress("metadata", 100, "done")
	return nil
}

// runLayerVectors runs scene detection, keyframe extraction, the
// clip-replacement transaction, the local fast vision pass, and
// per-clip image embedding (§4.9 layer 1).
func (ix *Indexer) runLayerVectors(ctx context.Context, video *domain.Video, opts IndexOptions, res *Result, progress ProgressFunc) error {
	d := ix.deps
	progress("vectors", 0, "detecting scenes")

	audioOutPath := ""
	if d.STT != nil {
		audioOutPath = store.TempWavPath(opts.FolderPath, video.ID)
	}
	sceneRes, err := d.SceneDetector.Detect(ctx, opts.VideoPath, audioOutPath)
	if err != nil {
		return err
	}

	type clipWork struct {
		skeleton domain.Clip
		frames   []keyframe.Frame
	}
	work := make([]clipWork, 0, len(sceneRes.Segments))
	for i, seg := range sceneRes.Segments {
		if err := checkCancelled(ctx); err != nil {
			return err
		}
		outDir := store.ThumbnailDir(opts.FolderPath, video.ID, i)
		frames, err := d.Keyframes.Extract(ctx, opts.VideoPath, outDir, i, seg.StartTime, seg.EndTime)
		if err != nil {
			return err
		}
		thumb := ""
		if len(frames) > 0 {
			thumb = frames[0].Path
		}
		work = append(work, clipWork{
			skeleton: domain.Clip{VideoID: video.ID, StartTime: seg.StartTime, EndTime: seg.EndTime, ThumbnailPath: thumb},
			frames:   frames,
		})
	}

	skeletons := make([]domain.Clip, len(work))
	for i, w := range work {
		skeletons[i] = w.skeleton
	}

	var newIDs []int64
	err = d.FolderDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := d.Clips.DeleteByVideo(ctx, tx, video.ID); err != nil {
			return err
		}
		ids, err := d.Clips.CreateBatch(ctx, tx, skeletons)
		if err != nil {
			return err
		}
		newIDs = ids
		return nil
	})
	if err != nil {
		return err
	}
	res.ClipsCreated = len(newIDs)

	if d.GlobalClp != nil && d.GlobalVid != nil && d.GlobalDB != nil {
		if err := d.GlobalDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := d.GlobalClp.DeleteByVideoSource(ctx, tx, opts.FolderPath, video.ID); err != nil {
				return err
			}
			return d.GlobalVid.DeleteBySource(ctx, tx, opts.FolderPath, video.ID)
		}); err != nil {
			return err
		}
	}

	for i, id := range newIDs {
		if err := checkCancelled(ctx); err != nil {
			return err
		}
		clip := work[i].skeleton
		clip.ID = id

		keyframePaths := make([]string, 0, len(work[i].frames))
		for _, f := range work[i].frames {
			keyframePaths = append(keyframePaths, f.Path)
		}

		if len(keyframePaths) > 0 && d.VisionAnalyzer != nil {
			fv, provider, err := d.VisionAnalyzer.AnalyzeLocal(ctx, keyframePaths)
			if err != nil {
				d.Log.Warn("local vision analysis failed, clip left unannotated", "video", video.ID, "clip", id, "err", err)
			} else {
				vision.ApplyToClip(&clip, fv)
				if provider != "" {
					clip.VisionProvider = &provider
				}
			}
		}

		if len(keyframePaths) > 0 && d.ImageEmbedder != nil {
			vec, err := d.ImageEmbedder.EmbedImage(keyframePaths[0])
			if err != nil {
				d.Log.Warn("image embedding failed, clip left without image vector", "video", video.ID, "clip", id, "err", err)
			} else if blob, err := embedtext.SerializeVector(vec, d.ImageEmbedder.Dims()); err != nil {
				d.Log.Warn("image vector serialization failed", "video", video.ID, "clip", id, "err", err)
			} else {
				clip.ImageEmbedding = blob
				modelName := d.ImageEmbedder.Name()
				clip.ImageEmbeddingModel = &modelName
			}
		}

		if err := d.Clips.Update(ctx, nil, &clip); err != nil {
			return err
		}
	}

	video.IndexLayer = domain.LayerVectors
	video.IndexStatus = domain.StatusVectorsDone
	if err := d.Videos.Update(ctx, nil, video); err != nil {
		return err
	}
	progress("vectors", 100, "done")

	if d.Sync != nil && !opts.SkipSync {
		if _, err := d.Sync.Sync(ctx); err != nil {
			d.Log.Warn("incremental sync after layer 1 failed", "video", video.ID, "err", err)
		}
	}
	return nil
}

// runLayerSTT ensures an audio WAV exists, transcribes, emits a
// subtitle file, and maps segments onto clips (§4.9 layer 2). Audio
// extraction and STT failures are non-fatal (the video still advances to
// sttDone); store errors and cancellation are returned.
func (ix *Indexer) runLayerSTT(ctx context.Context, video *domain.Video, opts IndexOptions, res *Result, progress ProgressFunc) error {
	d := ix.deps
	advance := func() error {
		video.IndexLayer = domain.LayerSTT
		video.IndexStatus = domain.StatusSTTDone
		return d.Videos.Update(ctx, nil, video)
	}

	if d.STT == nil {
		res.SttSkippedNoAudio = true
		return advance()
	}
	progress("stt", 0, "transcribing")

	wavPath := store.TempWavPath(opts.FolderPath, video.ID)
	extractedHere := false
	if _, statErr := os.Stat(wavPath); statErr != nil {
		if err := d.Audio.Extract(ctx, opts.VideoPath, wavPath); err != nil {
			if _, ok := err.(*indexerrors.AudioFileNotFoundError); ok {
				res.SttSkippedNoAudio = true
				return advance()
			}
			d.Log.Warn("audio extraction failed, stt skipped", "video", video.ID, "err", err)
			return advance()
		}
		extractedHere = true
	}
	if extractedHere {
		defer os.Remove(wavPath)
	}

	clips, err := d.Clips.ListByVideo(ctx, nil, video.ID)
	if err != nil {
		return err
	}
	scenes := make([]stt.Scene, 0, len(clips))
	for i, c := range clips {
		scenes = append(scenes, stt.Scene{Index: i, StartTime: c.StartTime, EndTime: c.EndTime})
	}

	sttRes, err := d.STT.Run(ctx, wavPath, opts.VideoPath, scenes, "")
	if err != nil {
		d.Log.Warn("stt run failed, advancing without transcript", "video", video.ID, "err", err)
		return advance()
	}
	if sttRes.SkippedNoAudio {
		res.SttSkippedNoAudio = true
		return advance()
	}

	if sttRes.SubtitlePath != "" {
		res.SubtitlePath = sttRes.SubtitlePath
		video.SrtPath = &sttRes.SubtitlePath
	}

	for i := range clips {
		if err := checkCancelled(ctx); err != nil {
			return err
		}
		text := stt.MapSegmentsToScene(sttRes.Segments, clips[i].StartTime, clips[i].EndTime)
		if text == "" {
			continue
		}
		clips[i].Transcript = &text
		if err := d.Clips.Update(ctx, nil, &clips[i]); err != nil {
			return err
		}
	}

	progress("stt", 100, "done")
	return advance()
}

// clipKeyframePaths recovers the keyframe files written for a clip at
// layer 1 from its stored thumbnail path, rather than re-deriving scene
// indices the clip row doesn't carry.
func clipKeyframePaths(c domain.Clip) ([]string, error) {
	if c.ThumbnailPath == "" {
		return nil, nil
	}
	matches, err := filepath.Glob(filepath.Join(filepath.Dir(c.ThumbnailPath), "frame_*.jpg"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// runLayerVision iterates clips past the checkpoint through the
// remote/VLM engine (cloud path rate-limited), buffers updates up to
// visionBatchSize, then runs the embedding coordinator over every clip
// with composable text (§4.9 layer 3).
func (ix *Indexer) runLayerVision(ctx context.Context, video *domain.Video, opts IndexOptions, res *Result, progress ProgressFunc) error {
	d := ix.deps
	progress("vision", 0, "analyzing clips")

	if d.VisionAnalyzer != nil && d.VisionAnalyzer.HasRemoteOrVLM() {
		clips, err := d.Clips.ListByVideoAfter(ctx, nil, video.ID, video.LastProcessedClip)
		if err != nil {
			return err
		}

		batchSize := d.Cfg.VisionBatchSize
		if batchSize <= 0 {
			batchSize = 10
		}
		batch := make([]domain.Clip, 0, batchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			maxID := video.LastProcessedClip
			for i := range batch {
				if err := d.Clips.Update(ctx, nil, &batch[i]); err != nil {
					return err
				}
				if batch[i].ID > maxID {
					maxID = batch[i].ID
				}
			}
			video.LastProcessedClip = maxID
			if err := d.Videos.Update(ctx, nil, video); err != nil {
				return err
			}
			res.ClipsAnalyzed += len(batch)
			batch = batch[:0]
			return nil
		}

		for i := range clips {
			if err := checkCancelled(ctx); err != nil {
				if flushErr := flush(); flushErr != nil {
					return flushErr
				}
				return err
			}

			if d.VisionAnalyzer.UsesRemote() && d.Limiter != nil {
				if err := d.Limiter.WaitForPermission(ctx); err != nil {
					if flushErr := flush(); flushErr != nil {
						return flushErr
					}
					return err
				}
			}

			c := clips[i]
			framePaths, err := clipKeyframePaths(c)
			if err != nil {
				d.Log.Warn("keyframe lookup failed, clip skipped", "video", video.ID, "clip", c.ID, "err", err)
				continue
			}
			if len(framePaths) == 0 {
				continue
			}

			fv, provider, err := d.VisionAnalyzer.AnalyzeAndMerge(ctx, &c, framePaths)
			if err != nil {
				continue // rate-limit or engine failure already reported/logged by Analyzer
			}
			vision.ApplyToClip(&c, fv)
			if provider != "" {
				c.VisionProvider = &provider
			}
			batch = append(batch, c)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if err := flush(); err != nil {
			return err
		}
	}
	progress("vision", 50, "embedding")

	if d.Embedder != nil {
		allClips, err := d.Clips.ListByVideo(ctx, nil, video.ID)
		if err != nil {
			return err
		}
		outcomes := d.Embedder.EmbedClips(ctx, allClips)
		byID := make(map[int64]*domain.Clip, len(allClips))
		for i := range allClips {
			byID[allClips[i].ID] = &allClips[i]
		}
		for _, o := range outcomes {
			if !o.Succeeded {
				d.Log.Warn("clip text embedding failed", "video", video.ID, "clip", o.ClipID, "err", o.Err)
				continue
			}
			c, ok := byID[o.ClipID]
			if !ok {
				continue
			}
			c.TextEmbedding = o.Vector
			model := o.Model
			c.TextEmbeddingModel = &model
			if err := d.Clips.Update(ctx, nil, c); err != nil {
				return err
			}
			res.ClipsEmbedded++
		}
	}

	video.IndexLayer = domain.LayerVision
	video.IndexStatus = domain.StatusCompleted
	if err := d.Videos.Update(ctx, nil, video); err != nil {
		return err
	}
	progress("vision", 100, "done")
	return nil
}
