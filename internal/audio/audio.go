// Package audio implements AudioExtractor (§2): producing a 16 kHz mono
// WAV sidecar from a video when layer 1 didn't already extract one.
package audio

import (
	"context"
	"os"

	"github.com/yungbote/clipindex/internal/config"
	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/platform/logger"
	"github.com/yungbote/clipindex/internal/subprocess"
)

type Extractor struct {
	bridge *subprocess.Bridge
	ffmpeg string
	log    *logger.Logger
}

func New(bridge *subprocess.Bridge, cfg *config.Config, log *logger.Logger) *Extractor {
	return &Extractor{bridge: bridge, ffmpeg: cfg.FFmpegPath, log: log.With("component", "AudioExtractor")}
}

// Extract writes a 16 kHz mono WAV to outPath. When the tool's stderr
// shows the video has no audio stream it returns
// *indexerrors.AudioFileNotFoundError, which callers use to apply the
// audio-less degradation.
func (a *Extractor) Extract(ctx context.Context, videoPath, outPath string) error {
	args := []string{"-i", videoPath, "-vn", "-ar", "16000", "-ac", "1", outPath}
	res, err := a.bridge.Run(ctx, a.ffmpeg, args, 0)
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		if subprocess.IsMissingAudioStreamError(res.Stderr) {
			return &indexerrors.AudioFileNotFoundError{Path: outPath}
		}
		return subprocess.NewProcessExitedError(res.ExitCode, res.Stderr)
	}
	if _, statErr := os.Stat(outPath); statErr != nil {
		return &indexerrors.OutputFileNotCreatedError{Path: outPath}
	}
	return nil
}
