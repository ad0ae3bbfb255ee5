// Package indexer implements LayeredIndexer (§4.9), the state machine
// that takes one video through metadata, visual-vector, speech, and
// vision-description layers, checkpointing after each so a crash or
// cancellation resumes from the last completed layer rather than
// starting over.
package indexer

import (
	"github.com/yungbote/clipindex/internal/audio"
	"github.com/yungbote/clipindex/internal/config"
	"github.com/yungbote/clipindex/internal/embedtext"
	"github.com/yungbote/clipindex/internal/keyframe"
	"github.com/yungbote/clipindex/internal/orphan"
	"github.com/yungbote/clipindex/internal/platform/logger"
	"github.com/yungbote/clipindex/internal/ratelimit"
	"github.com/yungbote/clipindex/internal/repos"
	"github.com/yungbote/clipindex/internal/scenedetect"
	"github.com/yungbote/clipindex/internal/stt"
	"github.com/yungbote/clipindex/internal/subprocess"
	"github.com/yungbote/clipindex/internal/syncengine"
	"github.com/yungbote/clipindex/internal/vision"

	"gorm.io/gorm"
)

// ProgressFunc reports a coarse stage name, a 0-100 percent, and a
// human-readable message, mirroring the teacher's pipeline Report callback.
type ProgressFunc func(stage string, pct int, message string)

// Result carries everything the caller needs after indexVideo returns.
type Result struct {
	VideoID            int64
	ClipsCreated        int
	ClipsAnalyzed       int
	ClipsEmbedded       int
	SubtitlePath        string
	SyncResult          *syncengine.Result
	RequiresForceSync   bool
	SttSkippedNoAudio   bool
	Skipped             bool // true when a guard short-circuited (fast-skip, no-op)
}

// Deps bundles every collaborator the indexer needs. Cfg, Log, Videos and
// Clips are always required; the vision, embedding, rate-limiter, STT,
// orphan, sync and global-store collaborators may be nil, in which case
// the step that uses them is skipped (with no remote vision, layer 3
// leaves the layer-1 local-analyzer result as final).
type Deps struct {
	Cfg *config.Config
	Log *logger.Logger

	FolderDB    *gorm.DB // used only to open the layer-1 clip-replacement transaction
	GlobalDB    *gorm.DB // nil when running without a global store

	// Folder registration and availability are handled once per folder
	// run by cmd/indexer, and mount-path rebase by
	// syncengine.Engine.RebasePaths, so neither is part of a single
	// video's Deps.
	Videos      repos.VideoRepo
	Clips       repos.ClipRepo
	GlobalVid   repos.GlobalVideoRepo
	GlobalClp   repos.GlobalClipRepo

	Bridge        *subprocess.Bridge
	SceneDetector *scenedetect.Detector
	Keyframes     *keyframe.Extractor
	Audio         *audio.Extractor
	STT           *stt.Coordinator
	VisionAnalyzer *vision.Analyzer
	ImageEmbedder vision.ImageEmbedder
	Embedder      *embedtext.Coordinator
	Limiter       *ratelimit.Limiter // nil when VisionAnalyzer never uses the cloud path
	Orphan        *orphan.Recovery
	Sync          *syncengine.Engine
}

// Indexer runs the layered pipeline for one video at a time; it holds
// no per-video state between calls.
type Indexer struct {
	deps Deps
}

func New(deps Deps) *Indexer {
	return &Indexer{deps: deps}
}

// IndexOptions names one video's target (§4.9's indexVideo entry point
// parameters, minus the collaborators already bound into Deps).
type IndexOptions struct {
	FolderID   int64
	FolderPath string
	VideoPath  string
	SkipSync   bool
	OnProgress ProgressFunc
}

func noopProgress(string, int, string) {}

func (o *IndexOptions) progress() ProgressFunc {
	if o.OnProgress == nil {
		return noopProgress
	}
	return o.OnProgress
}
