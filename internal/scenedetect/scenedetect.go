// Package scenedetect implements SceneDetector (§4.2): a single combined
// subprocess call that downsamples, applies a scene-change filter, and
// optionally emits an audio sidecar, followed by candidate denoising and
// segment materialization.
package scenedetect

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/yungbote/clipindex/internal/config"
	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/platform/logger"
	"github.com/yungbote/clipindex/internal/subprocess"
)

type Segment struct {
	StartTime float64
	EndTime   float64
}

type Result struct {
	Segments       []Segment
	Duration       float64
	AudioExtracted bool
}

type Detector struct {
	bridge *subprocess.Bridge
	ffmpeg string
	cfg    *config.Config
	log    *logger.Logger
}

func New(bridge *subprocess.Bridge, cfg *config.Config, log *logger.Logger) *Detector {
	return &Detector{bridge: bridge, ffmpeg: cfg.FFmpegPath, cfg: cfg, log: log.With("component", "SceneDetector")}
}

// Detect runs the combined scene-change + optional audio-sidecar pass.
// audioOutPath == "" means no audio sidecar is requested.
func (d *Detector) Detect(ctx context.Context, videoPath, audioOutPath string) (*Result, error) {
	args := d.buildArgs(videoPath, audioOutPath, true)
	res, err := d.bridge.Run(ctx, d.ffmpeg, args, 0)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		if audioOutPath != "" && subprocess.IsMissingAudioStreamError(res.Stderr) {
			d.log.Info("no audio stream, retrying scene-only", "video", videoPath)
			return d.detectSceneOnly(ctx, videoPath)
		}
		return nil, subprocess.NewProcessExitedError(res.ExitCode, res.Stderr)
	}
	audioExtracted := audioOutPath != ""
	return d.finish(res.Stderr, audioExtracted)
}

func (d *Detector) detectSceneOnly(ctx context.Context, videoPath string) (*Result, error) {
	args := d.buildArgs(videoPath, "", true)
	res, err := d.bridge.Run(ctx, d.ffmpeg, args, 0)
	if err != nil {
		return nil, err
	}
	return d.finish(res.Stderr, false)
}

func (d *Detector) buildArgs(videoPath, audioOutPath string, withSceneFilter bool) []string {
	args := []string{
		"-hwaccel", "auto",
		"-i", videoPath,
	}
	filterComplex := fmt.Sprintf("[0:v]fps=%d,select='gt(scene,%.3f)',showinfo", d.cfg.SceneDetectFPS, d.cfg.SceneChangeThreshold)
	args = append(args, "-filter_complex", filterComplex, "-f", "null", "-")
	if audioOutPath != "" {
		args = append(args, "-map", "0:a", "-ar", "16000", "-ac", "1", audioOutPath)
	}
	return args
}

var durationRe = regexp.MustCompile(`Duration:\s*(\d{2}):(\d{2}):(\d{2})\.(\d{1,2})`)
var showinfoRe = regexp.MustCompile(`pts_time:([0-9]+\.?[0-9]*)`)

func (d *Detector) finish(stderr string, audioExtracted bool) (*Result, error) {
	duration, ok := subprocess.ExtractDurationFromLog(stderr)
	if !ok {
		return nil, &indexerrors.OutputParsingFailedError{Detail: "no Duration line found in tool log"}
	}
	candidates := parseCandidates(stderr)
	denoised := Denoise(candidates, d.cfg.MinSegmentDuration)
	segments := MaterializeSegments(denoised, duration)
	segments = MergeShort(segments, d.cfg.MinSegmentDuration)
	segments = SplitLong(segments, d.cfg.MaxSegmentDuration, d.cfg.PaddingInterval)
	return &Result{Segments: segments, Duration: duration, AudioExtracted: audioExtracted}, nil
}

func parseCandidates(stderr string) []float64 {
	matches := showinfoRe.FindAllStringSubmatch(stderr, -1)
	out := make([]float64, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Denoise drops any candidate closer than minSegmentDuration to the
// previously kept candidate (§4.2 step 5).
func Denoise(candidates []float64, minSegmentDuration float64) []float64 {
	if len(candidates) == 0 {
		return nil
	}
	out := make([]float64, 0, len(candidates))
	last := -1.0
	first := true
	for _, c := range candidates {
		if first || c-last >= minSegmentDuration {
			out = append(out, c)
			last = c
			first = false
		}
	}
	return out
}

// MaterializeSegments builds half-open intervals from a denoised cut list
// and the total duration (§4.2 step 6).
func MaterializeSegments(cuts []float64, duration float64) []Segment {
	const epsilon = 0.01
	if len(cuts) == 0 {
		return []Segment{{StartTime: 0, EndTime: duration}}
	}
	segs := make([]Segment, 0, len(cuts)+1)
	if cuts[0] > epsilon {
		segs = append(segs, Segment{StartTime: 0, EndTime: cuts[0]})
	}
	for i := 0; i < len(cuts)-1; i++ {
		segs = append(segs, Segment{StartTime: cuts[i], EndTime: cuts[i+1]})
	}
	last := cuts[len(cuts)-1]
	if duration-last > epsilon {
		segs = append(segs, Segment{StartTime: last, EndTime: duration})
	}
	if len(segs) == 0 {
		segs = append(segs, Segment{StartTime: 0, EndTime: duration})
	}
	return segs
}

// MergeShort merges any segment shorter than minSegmentDuration into its
// successor (§4.2 step 7).
func MergeShort(segs []Segment, minSegmentDuration float64) []Segment {
	if len(segs) <= 1 {
		return segs
	}
	out := make([]Segment, 0, len(segs))
	i := 0
	for i < len(segs) {
		cur := segs[i]
		for i+1 < len(segs) && (cur.EndTime-cur.StartTime) < minSegmentDuration {
			next := segs[i+1]
			cur = Segment{StartTime: cur.StartTime, EndTime: next.EndTime}
			i++
		}
		out = append(out, cur)
		i++
	}
	return out
}

// SplitLong splits any segment longer than maxSegmentDuration into
// paddingInterval-sized chunks, absorbing a short tail remainder into the
// previous chunk (§4.2 step 8).
func SplitLong(segs []Segment, maxSegmentDuration, paddingInterval float64) []Segment {
	out := make([]Segment, 0, len(segs))
	for _, s := range segs {
		dur := s.EndTime - s.StartTime
		if dur <= maxSegmentDuration {
			out = append(out, s)
			continue
		}
		chunks := make([]Segment, 0, int(dur/paddingInterval)+1)
		cursor := s.StartTime
		for cursor < s.EndTime {
			end := cursor + paddingInterval
			if end > s.EndTime {
				end = s.EndTime
			}
			chunks = append(chunks, Segment{StartTime: cursor, EndTime: end})
			cursor = end
		}
		if len(chunks) >= 2 {
			tail := chunks[len(chunks)-1]
			if tail.EndTime-tail.StartTime < 0.5*paddingInterval {
				prev := chunks[len(chunks)-2]
				chunks[len(chunks)-2] = Segment{StartTime: prev.StartTime, EndTime: tail.EndTime}
				chunks = chunks[:len(chunks)-1]
			}
		}
		out = append(out, chunks...)
	}
	return out
}
