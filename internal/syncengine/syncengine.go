// Package syncengine implements SyncEngine (§4.10): projecting rows from
// a folder's authoritative store into the aggregated global search
// store, keyed by (sourceFolder, sourceVideoId/sourceClipId), and
// rebasing paths when a folder's mount point moves.
package syncengine

import (
	"context"
	"time"

	"github.com/yungbote/clipindex/internal/domain"
	"github.com/yungbote/clipindex/internal/platform/logger"
	"github.com/yungbote/clipindex/internal/repos"
)

type Engine struct {
	folderPath string
	volumeUUID string
	volumeName string

	videos      repos.VideoRepo
	clips       repos.ClipRepo
	cursors     repos.SyncCursorRepo
	globalVid   repos.GlobalVideoRepo
	globalClp   repos.GlobalClipRepo
	log         *logger.Logger
}

func New(folderPath, volumeUUID, volumeName string, videos repos.VideoRepo, clips repos.ClipRepo, cursors repos.SyncCursorRepo, globalVid repos.GlobalVideoRepo, globalClp repos.GlobalClipRepo, log *logger.Logger) *Engine {
	return &Engine{
		folderPath: folderPath,
		volumeUUID: volumeUUID,
		volumeName: volumeName,
		videos:     videos,
		clips:      clips,
		cursors:    cursors,
		globalVid:  globalVid,
		globalClp:  globalClp,
		log:        log.With("component", "SyncEngine"),
	}
}

type Result struct {
	VideosSynced int
	ClipsSynced  int
	Forced       bool
}

// Sync runs an incremental projection: only rows beyond the stored
// cursor are re-upserted, and the cursor advances to the maximum rowid
// observed.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	return e.sync(ctx, false)
}

// ForceSync re-projects every row regardless of cursor position. Required
// after in-place orphan recovery, since rowid may be unchanged while
// mutable columns (path, status) have shifted.
func (e *Engine) ForceSync(ctx context.Context) (*Result, error) {
	return e.sync(ctx, true)
}

func (e *Engine) sync(ctx context.Context, force bool) (*Result, error) {
	cursor, err := e.cursors.Get(ctx, nil, e.folderPath)
	if err != nil {
		return nil, err
	}
	sinceVideo, sinceClip := int64(0), int64(0)
	if cursor != nil && !force {
		sinceVideo = cursor.LastSyncedVideoRowid
		sinceClip = cursor.LastSyncedClipRowid
	}

	videos, err := e.videos.ListChangedSince(ctx, nil, sinceVideo)
	if err != nil {
		return nil, err
	}
	maxVideoRowid := sinceVideo
	for _, v := range videos {
		gv := domain.GlobalVideo{
			SourceFolder:  e.folderPath,
			SourceVideoID: v.ID,
			FilePath:      v.FilePath,
			FileName:      v.FileName,
			IndexStatus:   v.IndexStatus,
			SrtPath:       v.SrtPath,
		}
		if err := e.globalVid.Upsert(ctx, nil, gv); err != nil {
			return nil, err
		}
		if v.ID > maxVideoRowid {
			maxVideoRowid = v.ID
		}
	}

	clips, err := e.clips.ListChangedSince(ctx, nil, sinceClip)
	if err != nil {
		return nil, err
	}
	maxClipRowid := sinceClip
	for _, c := range clips {
		gc := domain.GlobalClip{
			SourceFolder:       e.folderPath,
			SourceClipID:       c.ID,
			SourceVideoID:      c.VideoID,
			StartTime:          c.StartTime,
			EndTime:            c.EndTime,
			ThumbnailPath:      c.ThumbnailPath,
			Transcript:         c.Transcript,
			Description:        c.Description,
			Tags:               c.Tags,
			TextEmbedding:      c.TextEmbedding,
			TextEmbeddingModel: c.TextEmbeddingModel,
		}
		if err := e.globalClp.Upsert(ctx, nil, gc); err != nil {
			return nil, err
		}
		if c.ID > maxClipRowid {
			maxClipRowid = c.ID
		}
	}

	if err := e.cursors.Upsert(ctx, nil, domain.SyncCursor{
		FolderPath:           e.folderPath,
		LastSyncedClipRowid:  maxClipRowid,
		LastSyncedVideoRowid: maxVideoRowid,
		LastSyncedAt:         time.Now(),
		VolumeUUID:           e.volumeUUID,
		VolumeName:           e.volumeName,
	}); err != nil {
		return nil, err
	}

	return &Result{VideosSynced: len(videos), ClipsSynced: len(clips), Forced: force}, nil
}

// RebasePaths rewrites a folder's mount-point prefix across the folder
// store (file_path/srt_path on videos, thumbnail_path on clips) and the
// global mirror (source_folder plus the same path prefixes), then runs
// a forced sync, per §4.10's path-rebase flow. oldFolderPath and
// newFolderPath are the folder's full old and new mount-point paths;
// the caller is responsible for updating the Folder row itself
// (volume UUID is assumed unchanged, which is the precondition for a
// path rebase rather than a fresh registration).
func (e *Engine) RebasePaths(ctx context.Context, folderID int64, oldFolderPath, newFolderPath string) (*Result, error) {
	videos, err := e.videos.ListAll(ctx, nil)
	if err != nil {
		return nil, err
	}
	if err := e.videos.RebaseFilePathPrefix(ctx, nil, folderID, oldFolderPath, newFolderPath); err != nil {
		return nil, err
	}
	for _, v := range videos {
		if err := e.clips.RebaseThumbnailPrefix(ctx, nil, v.ID, oldFolderPath, newFolderPath); err != nil {
			return nil, err
		}
	}

	if err := e.globalVid.RebaseSourceFolder(ctx, nil, oldFolderPath, newFolderPath); err != nil {
		return nil, err
	}
	if err := e.globalClp.RebaseSourceFolder(ctx, nil, oldFolderPath, newFolderPath); err != nil {
		return nil, err
	}
	if err := e.globalVid.RebaseFilePathPrefix(ctx, nil, newFolderPath, oldFolderPath, newFolderPath); err != nil {
		return nil, err
	}
	if err := e.globalClp.RebaseThumbnailPrefix(ctx, nil, newFolderPath, oldFolderPath, newFolderPath); err != nil {
		return nil, err
	}
	if err := e.cursors.RebaseFolderPath(ctx, nil, oldFolderPath, newFolderPath); err != nil {
		return nil, err
	}
	e.folderPath = newFolderPath

	return e.ForceSync(ctx)
}
