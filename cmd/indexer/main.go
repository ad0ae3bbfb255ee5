// Command indexer is the worker-style entrypoint (§4.11): for each folder
// path given on the command line, it opens (or creates) the folder's
// authoritative store, registers the folder, walks it for video files,
// and runs them once through the scheduler; an interrupt (SIGINT/SIGTERM)
// cancels the run early.
//
// Folder discovery itself (watching a volume for new/removed files) is an
// external collaborator's job; this entrypoint only performs the one-shot
// walk needed to seed a work list for a CLI invocation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/yungbote/clipindex/internal/audio"
	"github.com/yungbote/clipindex/internal/config"
	"github.com/yungbote/clipindex/internal/domain"
	"github.com/yungbote/clipindex/internal/embedtext"
	"github.com/yungbote/clipindex/internal/indexer"
	"github.com/yungbote/clipindex/internal/keyframe"
	"github.com/yungbote/clipindex/internal/orphan"
	"github.com/yungbote/clipindex/internal/platform/apikey"
	"github.com/yungbote/clipindex/internal/platform/logger"
	"github.com/yungbote/clipindex/internal/platform/openai"
	"github.com/yungbote/clipindex/internal/ratelimit"
	"github.com/yungbote/clipindex/internal/repos"
	"github.com/yungbote/clipindex/internal/scenedetect"
	"github.com/yungbote/clipindex/internal/scheduler"
	"github.com/yungbote/clipindex/internal/store"
	"github.com/yungbote/clipindex/internal/stt"
	"github.com/yungbote/clipindex/internal/subprocess"
	"github.com/yungbote/clipindex/internal/syncengine"
	"github.com/yungbote/clipindex/internal/vision"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".avi": true, ".webm": true, ".m4v": true,
}

// shared bundles the collaborators that are process-wide rather than
// per-folder: the global store, cloud clients, and anything built from
// credentials resolved once at startup.
type shared struct {
	cfg            *config.Config
	log            *logger.Logger
	global         *store.GlobalStore
	globalVid      repos.GlobalVideoRepo
	globalClp      repos.GlobalClipRepo
	bridge         *subprocess.Bridge
	sceneDetector  *scenedetect.Detector
	keyframes      *keyframe.Extractor
	audio          *audio.Extractor
	sttCoordinator *stt.Coordinator
	visionAnalyzer *vision.Analyzer
	imageEmbedder  vision.ImageEmbedder
	embedder       *embedtext.Coordinator
	limiter        *ratelimit.Limiter

	closers []func() error
}

func (s *shared) Close() {
	for _, c := range s.closers {
		if err := c(); err != nil {
			s.log.Warn("error closing collaborator", "err", err)
		}
	}
	s.global.Close()
}

func main() {
	log, err := logger.New(config.GetEnv("CLIPINDEX_LOG_MODE", "dev", nil))
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := config.Load(log)

	folderPaths := os.Args[1:]
	if len(folderPaths) == 0 {
		log.Fatal("usage: indexer <folder> [folder...]")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newShared(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize shared collaborators", "err", err)
	}
	defer s.Close()

	var wg sync.WaitGroup
	for _, raw := range folderPaths {
		folderPath, err := filepath.Abs(raw)
		if err != nil {
			log.Warn("skipping folder, cannot resolve path", "path", raw, "err", err)
			continue
		}
		wg.Add(1)
		go func(folderPath string) {
			defer wg.Done()
			if err := runFolder(ctx, s, folderPath); err != nil {
				log.Warn("folder run failed", "folder", folderPath, "err", err)
			}
		}(folderPath)
	}
	wg.Wait()
}

// newShared resolves credentials and constructs every collaborator that
// does not vary per folder.
func newShared(ctx context.Context, cfg *config.Config, log *logger.Logger) (*shared, error) {
	global, err := store.OpenGlobalStore(cfg.UserAppSupportDir, config.AppName, log)
	if err != nil {
		return nil, fmt.Errorf("open global store: %w", err)
	}

	globalVid := repos.NewGlobalVideoRepo(global.DB, log)
	globalClp := repos.NewGlobalClipRepo(global.DB, log)

	keys := apikey.New(config.AppName, "", log)
	openaiKey, hasOpenAI := keys.Resolve("openai", "OPENAI_API_KEY", "")

	var openaiClient *openai.Client
	if hasOpenAI {
		openaiClient = openai.New("", openaiKey, cfg.VisionModel, cfg.EmbeddingModel,
			time.Duration(cfg.NetworkTimeoutSecs)*time.Second, cfg.NetworkMaxRetries, log)
	} else {
		log.Warn("no openai api key resolved, remote vision and text embedding stay disabled")
	}

	limiter := ratelimit.New(ratelimit.Config{
		MinPerWindow: cfg.RateLimitMinPerWindow,
		MaxPerWindow: cfg.RateLimitMaxPerWindow,
		WindowSecs:   cfg.RateLimitWindowSecs,
		DailyLimit:   cfg.RateLimitDailyQuota,
	}, log)

	var remote vision.RemoteEngine
	var embedder *embedtext.Coordinator
	if openaiClient != nil {
		remote = vision.NewOpenAIRemoteEngine(openaiClient)
		embedder = embedtext.New(openaiClient, cfg.EmbeddingModel, cfg.EmbeddingDims, log)
	}

	// No local VLM loader ships with this build, so the vlm slot stays
	// nil. The Google Vision label/image-properties engine fills the
	// local-fast slot when its client can be constructed.
	var fast vision.LocalFastEngine
	var closers []func() error
	if googleVision, err := vision.NewGoogleFastEngine(ctx, log); err != nil {
		log.Warn("local fast vision engine unavailable, continuing without it", "err", err)
	} else {
		fast = googleVision
		closers = append(closers, googleVision.Close)
	}
	visionAnalyzer := vision.NewAnalyzer(remote, nil, fast, limiter, log)

	bridge := subprocess.New(log, cfg.SubprocessTimeoutSecs)
	sceneDetector := scenedetect.New(bridge, cfg, log)
	keyframes := keyframe.New(bridge, cfg, log)
	audioExtractor := audio.New(bridge, cfg, log)

	// Only Google Cloud Speech has a concrete Engine implementation here;
	// it is wired as the high-accuracy slot and fast is left unavailable.
	var highAccuracy stt.Engine
	googleSTT, err := stt.NewGoogleEngine(ctx, log)
	if err != nil {
		log.Warn("speech-to-text unavailable, continuing without it", "err", err)
	} else {
		highAccuracy = googleSTT
		closers = append(closers, googleSTT.Close)
	}
	sttCoordinator := stt.NewCoordinator(highAccuracy, nil, bridge, cfg, log)

	return &shared{
		cfg:            cfg,
		log:            log,
		global:         global,
		globalVid:      globalVid,
		globalClp:      globalClp,
		bridge:         bridge,
		sceneDetector:  sceneDetector,
		keyframes:      keyframes,
		audio:          audioExtractor,
		sttCoordinator: sttCoordinator,
		visionAnalyzer: visionAnalyzer,
		imageEmbedder:  vision.NewHistogramImageEmbedder(),
		embedder:       embedder,
		limiter:        limiter,
		closers:        closers,
	}, nil
}

// runFolder opens one folder's authoritative store, registers the folder
// row, walks it for video files, and drives them once through a Scheduler
// scoped to that folder, returning when that batch and its closing sync
// finish or ctx is cancelled.
func runFolder(ctx context.Context, s *shared, folderPath string) error {
	log := s.log.With("folder", folderPath)

	fs, err := store.OpenFolderStore(folderPath, log)
	if err != nil {
		return fmt.Errorf("open folder store: %w", err)
	}
	defer fs.Close()

	folders := repos.NewFolderRepo(fs.DB, log)
	videos := repos.NewVideoRepo(fs.DB, log)
	clips := repos.NewClipRepo(fs.DB, log)
	cursors := repos.NewSyncCursorRepo(s.global.DB, log)

	folder, err := folders.GetByPath(ctx, nil, folderPath)
	if err != nil {
		return fmt.Errorf("look up folder: %w", err)
	}
	if folder == nil {
		id, err := folders.Create(ctx, nil, &domain.Folder{
			Path:       folderPath,
			LastSeenAt: time.Now(),
			Available:  true,
		})
		if err != nil {
			return fmt.Errorf("register folder: %w", err)
		}
		folder = &domain.Folder{ID: id, Path: folderPath}
	} else if !folder.Available {
		if err := folders.SetAvailable(ctx, nil, folder.ID, true); err != nil {
			return fmt.Errorf("mark folder available: %w", err)
		}
	}

	recovery := orphan.New(fs.DB, s.global.DB, folderPath, videos, s.globalVid, s.globalClp, log)
	syncEngine := syncengine.New(folderPath, "", filepath.Base(folderPath), videos, clips, cursors, s.globalVid, s.globalClp, log)

	ix := indexer.New(indexer.Deps{
		Cfg:            s.cfg,
		Log:            log,
		FolderDB:       fs.DB,
		GlobalDB:       s.global.DB,
		Videos:         videos,
		Clips:          clips,
		GlobalVid:      s.globalVid,
		GlobalClp:      s.globalClp,
		Bridge:         s.bridge,
		SceneDetector:  s.sceneDetector,
		Keyframes:      s.keyframes,
		Audio:          s.audio,
		STT:            s.sttCoordinator,
		VisionAnalyzer: s.visionAnalyzer,
		ImageEmbedder:  s.imageEmbedder,
		Embedder:       s.embedder,
		Limiter:        s.limiter,
		Orphan:         recovery,
		Sync:           syncEngine,
	})

	sched := scheduler.New(ix, syncEngine, int64(initialForMode(s.cfg.PerformanceMode)), log)
	monitor := scheduler.NewResourceMonitor(s.cfg, scheduler.DefaultSampler(), log)

	monitorCtx, cancelMonitor := context.WithCancel(ctx)
	defer cancelMonitor()
	go monitor.Start(monitorCtx, func(n int64) { sched.SetConcurrency(ctx, n) })

	items, err := discoverWorkItems(folder.ID, folderPath)
	if err != nil {
		return fmt.Errorf("walk folder: %w", err)
	}
	log.Info("discovered videos", "count", len(items))

	res, err := sched.Run(ctx, items, progressLogger(log), outcomeLogger(log))
	if err != nil {
		return err
	}
	if res != nil {
		log.Info("sync complete", "videosSynced", res.VideosSynced, "clipsSynced", res.ClipsSynced)
	}
	return nil
}

// initialForMode mirrors ResourceMonitor's own starting ceiling so the
// scheduler's first batch isn't bounded to 1 while waiting on the first
// sample tick.
func initialForMode(mode string) int64 {
	switch mode {
	case "fullSpeed":
		return 8
	case "background":
		return 1
	default:
		return 4
	}
}

func discoverWorkItems(folderID int64, folderPath string) ([]scheduler.WorkItem, error) {
	var items []scheduler.WorkItem
	err := filepath.WalkDir(folderPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".clip-index" {
				return filepath.SkipDir
			}
			return nil
		}
		if !videoExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		items = append(items, scheduler.WorkItem{FolderID: folderID, FolderPath: folderPath, VideoPath: path})
		return nil
	})
	return items, err
}

func progressLogger(log *logger.Logger) scheduler.ProgressFunc {
	return func(item scheduler.WorkItem, stage string, pct int, message string) {
		log.Debug("progress", "video", item.VideoPath, "stage", stage, "pct", pct, "message", message)
	}
}

func outcomeLogger(log *logger.Logger) scheduler.OutcomeFunc {
	return func(o scheduler.Outcome) {
		if o.Err != nil {
			log.Warn("video indexing failed", "video", o.Item.VideoPath, "err", o.Err)
			return
		}
		if o.Result != nil && o.Result.Skipped {
			log.Debug("video unchanged, skipped", "video", o.Item.VideoPath)
			return
		}
		if o.Result != nil {
			log.Info("video indexed", "video", o.Item.VideoPath, "clipsCreated", o.Result.ClipsCreated)
		}
	}
}
