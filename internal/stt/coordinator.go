package stt

import (
	"context"

	"github.com/yungbote/clipindex/internal/config"
	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/platform/logger"
	"github.com/yungbote/clipindex/internal/subprocess"
)

// Scene is the minimal scene-boundary view the coordinator needs for clip
// mapping, decoupled from internal/domain to avoid an import cycle.
type Scene struct {
	Index     int
	StartTime float64
	EndTime   float64
}

type Coordinator struct {
	highAccuracy Engine // nil if unavailable
	fast         Engine // nil if unavailable
	bridge       *subprocess.Bridge
	ffmpegPath   string
	cfg          *config.Config
	log          *logger.Logger
}

func NewCoordinator(highAccuracy, fast Engine, bridge *subprocess.Bridge, cfg *config.Config, log *logger.Logger) *Coordinator {
	return &Coordinator{
		highAccuracy: highAccuracy,
		fast:         fast,
		bridge:       bridge,
		ffmpegPath:   cfg.FFmpegPath,
		cfg:          cfg,
		log:          log.With("component", "STTCoordinator"),
	}
}

// selectEngine applies §4.4's preference policy.
func (c *Coordinator) selectEngine() (Engine, error) {
	switch EnginePreference(c.cfg.STTEnginePreference) {
	case PreferenceHighAccuracyOnly:
		if c.highAccuracy == nil {
			return nil, indexerrors.EngineUnavailable
		}
		return c.highAccuracy, nil
	case PreferenceFastOnly:
		if c.fast == nil {
			return nil, indexerrors.EngineUnavailable
		}
		return c.fast, nil
	default: // auto
		if c.highAccuracy != nil {
			return c.highAccuracy, nil
		}
		if c.fast != nil {
			return c.fast, nil
		}
		return nil, indexerrors.EngineUnavailable
	}
}

// Result is the coordinator's per-video STT outcome.
type Result struct {
	Segments        []TranscriptSegment
	Language        string
	SubtitlePath    string
	SkippedNoAudio  bool
}

// Run executes the full STT flow for one video: engine selection, language
// identification, transcription, subtitle emission. scenes is used only for
// scene-aware LID window placement (skips scene 0, a likely slate).
func (c *Coordinator) Run(ctx context.Context, wavPath, videoPath string, scenes []Scene, languageHint string) (*Result, error) {
	engine, err := c.selectEngine()
	if err != nil {
		return nil, err
	}

	lang := languageHint
	if lang == "" {
		lang, err = c.identifyLanguage(ctx, engine, wavPath, scenes)
		if err != nil {
			if err == indexerrors.EmptyTranscription {
				return &Result{SkippedNoAudio: true}, nil
			}
			return nil, err
		}
		if lang == "" {
			return &Result{SkippedNoAudio: true}, nil
		}
	}

	segments, err := engine.Transcribe(ctx, wavPath, lang)
	if err != nil {
		if err == indexerrors.EmptyTranscription {
			return &Result{SkippedNoAudio: true}, nil
		}
		return nil, err
	}

	cleaned := make([]TranscriptSegment, 0, len(segments))
	for _, s := range segments {
		s.Text = CleanTranscriptText(s.Text)
		if s.Text == "" {
			continue
		}
		cleaned = append(cleaned, s)
	}

	if isCJKLanguage(lang) {
		cleaned = MergeCJKFragments(cleaned, c.cfg.CJKMergeSilenceGapSec, c.cfg.CJKMergeMaxDurSec, c.cfg.CJKMergeMaxChars)
	}

	srtPath, err := WriteSubtitleFile(videoPath, cleaned, c.cfg.UserAppSupportDir, config.AppName)
	if err != nil {
		c.log.Warn("subtitle write failed", "err", err)
	}

	return &Result{Segments: cleaned, Language: lang, SubtitlePath: srtPath}, nil
}

func isCJKLanguage(lang string) bool {
	switch lang {
	case "ja", "ja-JP", "zh", "zh-CN", "zh-TW", "ko", "ko-KR":
		return true
	default:
		return false
	}
}

// identifyLanguage implements §4.4's preference-ordered LID strategy:
// multi-sample voting, then speech-probe fallback, then full-silence skip.
func (c *Coordinator) identifyLanguage(ctx context.Context, engine Engine, wavPath string, scenes []Scene) (string, error) {
	windows := scenAwareWindows(scenes, c.cfg.LIDWindowCount, c.cfg.LIDWindowMaxSeconds)
	if len(windows) > 0 {
		lang, ok := c.voteLanguage(ctx, engine, wavPath, windows)
		if ok {
			return lang, nil
		}
	}

	if c.highAccuracy == nil && c.fast != nil {
		voicedStart, voiced, err := FindFirstVoicedRegion(ctx, c.bridge, c.ffmpegPath, wavPath, c.cfg)
		if err != nil {
			return "", err
		}
		if !voiced {
			return "", nil // full silence, non-fatal skip
		}
		return ProbeLanguage(ctx, engine, wavPath, voicedStart, c.cfg, c.log)
	}

	return "", nil
}

type window struct{ start, end float64 }

// scenAwareWindows picks 2-3 windows skipping scene 0, each capped at
// maxSeconds (§4.4 step 1).
func scenAwareWindows(scenes []Scene, count int, maxSeconds float64) []window {
	candidates := scenes
	if len(candidates) > 1 {
		candidates = candidates[1:]
	}
	if len(candidates) == 0 {
		return nil
	}
	out := make([]window, 0, count)
	for i := 0; i < len(candidates) && len(out) < count; i++ {
		s := candidates[i]
		end := s.EndTime
		if end-s.StartTime > maxSeconds {
			end = s.StartTime + maxSeconds
		}
		out = append(out, window{start: s.StartTime, end: end})
	}
	return out
}

// voteLanguage runs the active engine's LID over each window and returns
// the majority winner, ties broken by maximum mean confidence.
func (c *Coordinator) voteLanguage(ctx context.Context, engine Engine, wavPath string, windows []window) (string, bool) {
	votes := map[string]int{}
	confSum := map[string]float64{}
	confCount := map[string]int{}

	for _, w := range windows {
		lang, conf, err := engine.IdentifyLanguage(ctx, wavPath, w.start, w.end)
		if err != nil || lang == "" {
			continue
		}
		votes[lang]++
		confSum[lang] += conf
		confCount[lang]++
	}
	if len(votes) == 0 {
		return "", false
	}

	bestLang := ""
	bestVotes := -1
	bestMeanConf := -1.0
	for lang, n := range votes {
		mean := confSum[lang] / float64(maxInt(confCount[lang], 1))
		if n > bestVotes || (n == bestVotes && mean > bestMeanConf) {
			bestLang = lang
			bestVotes = n
			bestMeanConf = mean
		}
	}
	return bestLang, bestLang != ""
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// MapSegmentsToScene concatenates transcript segments whose interval
// strictly overlaps the scene interval (§4.4: t.start < s.end && t.end >
// s.start). Empty result means no transcript for that clip.
func MapSegmentsToScene(segments []TranscriptSegment, sceneStart, sceneEnd float64) string {
	var out string
	for _, s := range segments {
		if s.StartTime < sceneEnd && s.EndTime > sceneStart {
			if out != "" {
				out += " "
			}
			out += s.Text
		}
	}
	return out
}
