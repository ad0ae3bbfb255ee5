// Package config exposes typed, env-driven tunables for the indexing
// engine. It follows the teacher's plain os.LookupEnv-plus-logged-default
// idiom rather than a config/flags library.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/yungbote/clipindex/internal/platform/logger"
)

func GetEnv(key, defaultVal string, log *logger.Logger) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	if log != nil {
		log.Debug("env not set, using default", "key", key, "default", defaultVal)
	}
	return defaultVal
}

func GetEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
		if log != nil {
			log.Warn("env value not an int, using default", "key", key, "default", defaultVal)
		}
	}
	return defaultVal
}

func GetEnvAsFloat(key string, defaultVal float64, log *logger.Logger) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
		if log != nil {
			log.Warn("env value not a float, using default", "key", key, "default", defaultVal)
		}
	}
	return defaultVal
}

func GetEnvAsBool(key string, defaultVal bool, log *logger.Logger) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
		if log != nil {
			log.Warn("env value not a bool, using default", "key", key, "default", defaultVal)
		}
	}
	return defaultVal
}

// AppName scopes all app-support paths (global store, fallback srt dir,
// api-key file lookup).
const AppName = "ClipIndex"

// Config holds every tunable named across the spec's components, resolved
// once at startup and passed down by reference.
type Config struct {
	// SceneDetector (§4.2)
	SceneChangeThreshold  float64
	MinSegmentDuration    float64
	MaxSegmentDuration    float64
	PaddingInterval       float64
	UniformSampleInterval float64
	SceneDetectFPS        int

	// KeyframeExtractor (§4.3)
	KeyframeMaxShortEdge int
	KeyframeJPEGQuality  int
	KeyframeMaxPerScene  int

	// STTCoordinator (§4.4)
	STTEnginePreference   string
	LIDWindowCount        int
	LIDWindowMaxSeconds   float64
	SpeechProbeScanSecs   float64
	SpeechProbeSilenceDB  float64
	SpeechProbeMinSilence float64
	SpeechProbeWindowSecs float64
	CJKMergeSilenceGapSec float64
	CJKMergeMaxDurSec     float64
	CJKMergeMaxChars      int
	SubtitleHideInBrowser bool

	// VisionAnalyzer / EmbeddingCoordinator (§4.5, §4.6)
	VisionBatchSize      int
	EmbeddingDims        int
	EmbeddingModel       string
	VisionModel          string

	// RateLimiter (§4.7)
	RateLimitMinPerWindow int
	RateLimitMaxPerWindow int
	RateLimitWindowSecs   float64
	RateLimitDailyQuota   int // 0 = unset/unlimited

	// OrphanRecovery (§4.8)
	OrphanRetentionDays int

	// Subprocess / network timeouts (§5)
	SubprocessTimeoutSecs int
	NetworkTimeoutSecs    int
	NetworkMaxRetries     int

	// Scheduler / ResourceMonitor (§4.11, §4.12)
	PerformanceMode        string
	ResourceSampleInterval int

	// Paths
	FFmpegPath  string
	FFprobePath string
	UserAppSupportDir string

	// LayeredIndexer (§4.9): layers named here are never run, regardless
	// of a video's currentLayer.
	SkipLayers []int
}

// parseIntList splits a comma-separated env value into ints, skipping
// anything that doesn't parse rather than failing configuration load.
func parseIntList(key string, log *logger.Logger) []int {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			if log != nil {
				log.Warn("skip-layers entry not an int, ignoring", "key", key, "value", part)
			}
			continue
		}
		out = append(out, n)
	}
	return out
}

func Load(log *logger.Logger) *Config {
	return &Config{
		SceneChangeThreshold:  GetEnvAsFloat("CLIPINDEX_SCENE_THRESHOLD", 0.3, log),
		MinSegmentDuration:    GetEnvAsFloat("CLIPINDEX_MIN_SEGMENT_DURATION", 2.0, log),
		MaxSegmentDuration:    GetEnvAsFloat("CLIPINDEX_MAX_SEGMENT_DURATION", 30.0, log),
		PaddingInterval:       GetEnvAsFloat("CLIPINDEX_PADDING_INTERVAL", 15.0, log),
		UniformSampleInterval: GetEnvAsFloat("CLIPINDEX_UNIFORM_SAMPLE_INTERVAL", 10.0, log),
		SceneDetectFPS:        GetEnvAsInt("CLIPINDEX_SCENE_DETECT_FPS", 5, log),

		KeyframeMaxShortEdge: GetEnvAsInt("CLIPINDEX_KEYFRAME_MAX_SHORT_EDGE", 512, log),
		KeyframeJPEGQuality:  GetEnvAsInt("CLIPINDEX_KEYFRAME_JPEG_QUALITY", 80, log),
		KeyframeMaxPerScene:  GetEnvAsInt("CLIPINDEX_KEYFRAME_MAX_PER_SCENE", 3, log),

		STTEnginePreference:   GetEnv("CLIPINDEX_STT_ENGINE_PREFERENCE", "auto", log),
		LIDWindowCount:        GetEnvAsInt("CLIPINDEX_LID_WINDOW_COUNT", 3, log),
		LIDWindowMaxSeconds:   GetEnvAsFloat("CLIPINDEX_LID_WINDOW_MAX_SECONDS", 30.0, log),
		SpeechProbeScanSecs:   GetEnvAsFloat("CLIPINDEX_SPEECH_PROBE_SCAN_SECS", 120.0, log),
		SpeechProbeSilenceDB:  GetEnvAsFloat("CLIPINDEX_SPEECH_PROBE_SILENCE_DB", -30.0, log),
		SpeechProbeMinSilence: GetEnvAsFloat("CLIPINDEX_SPEECH_PROBE_MIN_SILENCE", 1.0, log),
		SpeechProbeWindowSecs: GetEnvAsFloat("CLIPINDEX_SPEECH_PROBE_WINDOW_SECS", 15.0, log),
		CJKMergeSilenceGapSec: GetEnvAsFloat("CLIPINDEX_CJK_MERGE_SILENCE_GAP_SECS", 1.0, log),
		CJKMergeMaxDurSec:     GetEnvAsFloat("CLIPINDEX_CJK_MERGE_MAX_DUR_SECS", 15.0, log),
		CJKMergeMaxChars:      GetEnvAsInt("CLIPINDEX_CJK_MERGE_MAX_CHARS", 40, log),
		SubtitleHideInBrowser: GetEnvAsBool("CLIPINDEX_SUBTITLE_HIDE_IN_BROWSER", false, log),

		VisionBatchSize: GetEnvAsInt("CLIPINDEX_VISION_BATCH_SIZE", 10, log),
		EmbeddingDims:   GetEnvAsInt("CLIPINDEX_EMBEDDING_DIMS", 768, log),
		EmbeddingModel:  GetEnv("CLIPINDEX_EMBEDDING_MODEL", "text-embedding-3-small", log),
		VisionModel:     GetEnv("CLIPINDEX_VISION_MODEL", "gpt-4o-mini", log),

		RateLimitMinPerWindow: GetEnvAsInt("CLIPINDEX_RATE_MIN_PER_WINDOW", 3, log),
		RateLimitMaxPerWindow: GetEnvAsInt("CLIPINDEX_RATE_MAX_PER_WINDOW", 9, log),
		RateLimitWindowSecs:   GetEnvAsFloat("CLIPINDEX_RATE_WINDOW_SECS", 60.0, log),
		RateLimitDailyQuota:   GetEnvAsInt("CLIPINDEX_RATE_DAILY_QUOTA", 0, log),

		OrphanRetentionDays: GetEnvAsInt("CLIPINDEX_ORPHAN_RETENTION_DAYS", 30, log),

		SubprocessTimeoutSecs: GetEnvAsInt("CLIPINDEX_SUBPROCESS_TIMEOUT_SECS", 300, log),
		NetworkTimeoutSecs:    GetEnvAsInt("CLIPINDEX_NETWORK_TIMEOUT_SECS", 60, log),
		NetworkMaxRetries:     GetEnvAsInt("CLIPINDEX_NETWORK_MAX_RETRIES", 3, log),

		PerformanceMode:        GetEnv("CLIPINDEX_PERFORMANCE_MODE", "balanced", log),
		ResourceSampleInterval: GetEnvAsInt("CLIPINDEX_RESOURCE_SAMPLE_INTERVAL_SECS", 5, log),

		FFmpegPath:        GetEnv("CLIPINDEX_FFMPEG_PATH", "ffmpeg", log),
		FFprobePath:       GetEnv("CLIPINDEX_FFPROBE_PATH", "ffprobe", log),
		UserAppSupportDir: GetEnv("CLIPINDEX_APP_SUPPORT_DIR", defaultAppSupportDir(), log),

		SkipLayers: parseIntList("CLIPINDEX_SKIP_LAYERS", log),
	}
}

// SkipsLayer reports whether L is named in SkipLayers.
func (c *Config) SkipsLayer(l int) bool {
	for _, s := range c.SkipLayers {
		if s == l {
			return true
		}
	}
	return false
}

func defaultAppSupportDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home + "/.local/share/" + AppName
}
