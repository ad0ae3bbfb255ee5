package indexer

import (
	"context"

	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/subprocess"
)

// probeDuration determines a video's duration with no segmentation side
// effects (§4.9 layer 0): a plain decode-to-null pass, parsing the
// "Duration:" line ffmpeg always writes to stderr, the same log line
// internal/scenedetect already parses after its filtered pass.
func probeDuration(ctx context.Context, bridge *subprocess.Bridge, ffmpegPath, videoPath string) (float64, error) {
	args := []string{"-i", videoPath, "-t", "0.01", "-f", "null", "-"}
	res, err := bridge.Run(ctx, ffmpegPath, args, 0)
	if err != nil {
		return 0, err
	}
	duration, ok := subprocess.ExtractDurationFromLog(res.Stderr)
	if !ok {
		return 0, &indexerrors.OutputParsingFailedError{Detail: "no Duration line found probing " + videoPath}
	}
	return duration, nil
}
