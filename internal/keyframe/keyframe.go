// Package keyframe implements KeyframeExtractor (§4.3): choosing frame
// timestamps per scene, extracting them via subprocess, and resizing to a
// short-edge cap using golang.org/x/image instead of shelling out a second
// time for the resize step.
package keyframe

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/draw"

	"github.com/yungbote/clipindex/internal/config"
	"github.com/yungbote/clipindex/internal/platform/logger"
	"github.com/yungbote/clipindex/internal/subprocess"
)

type Frame struct {
	SceneIndex int
	FrameIndex int
	Timestamp  float64
	Path       string
}

type Extractor struct {
	bridge *subprocess.Bridge
	ffmpeg string
	cfg    *config.Config
	log    *logger.Logger
}

func New(bridge *subprocess.Bridge, cfg *config.Config, log *logger.Logger) *Extractor {
	return &Extractor{bridge: bridge, ffmpeg: cfg.FFmpegPath, cfg: cfg, log: log.With("component", "KeyframeExtractor")}
}

// FrameCount returns max(1, min(3, floor(duration/5))) per §4.3.
func FrameCount(duration float64, maxPerScene int) int {
	n := int(math.Floor(duration / 5.0))
	if n > maxPerScene {
		n = maxPerScene
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Timestamps returns `count` equal interior subdivisions of [start, end).
func Timestamps(start, end float64, count int) []float64 {
	dur := end - start
	out := make([]float64, 0, count)
	for i := 1; i <= count; i++ {
		frac := float64(i) / float64(count+1)
		out = append(out, start+dur*frac)
	}
	return out
}

// Extract pulls keyframes for one scene into outDir, returning the frames
// actually produced. Missing frame files are skipped silently, not fatal.
func (e *Extractor) Extract(ctx context.Context, videoPath, outDir string, sceneIndex int, startTime, endTime float64) ([]Frame, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	count := FrameCount(endTime-startTime, e.cfg.KeyframeMaxPerScene)
	timestamps := Timestamps(startTime, endTime, count)

	frames := make([]Frame, 0, count)
	for i, ts := range timestamps {
		rawPath := filepath.Join(outDir, fmt.Sprintf("frame_%d_raw.jpg", i))
		args := []string{
			"-ss", fmt.Sprintf("%.3f", ts),
			"-i", videoPath,
			"-frames:v", "1",
			"-q:v", "2",
			rawPath,
		}
		if _, err := e.bridge.Run(ctx, e.ffmpeg, args, 0); err != nil {
			e.log.Warn("keyframe extraction failed, skipping", "scene", sceneIndex, "frame", i, "err", err)
			continue
		}
		if _, statErr := os.Stat(rawPath); statErr != nil {
			e.log.Warn("keyframe file not created, skipping", "scene", sceneIndex, "frame", i)
			continue
		}
		finalPath := filepath.Join(outDir, fmt.Sprintf("frame_%d.jpg", i))
		if err := resizeAndCompress(rawPath, finalPath, e.cfg.KeyframeMaxShortEdge, e.cfg.KeyframeJPEGQuality); err != nil {
			e.log.Warn("keyframe resize failed, skipping", "scene", sceneIndex, "frame", i, "err", err)
			continue
		}
		_ = os.Remove(rawPath)
		frames = append(frames, Frame{SceneIndex: sceneIndex, FrameIndex: i, Timestamp: ts, Path: finalPath})
	}
	return frames, nil
}

// resizeAndCompress scales src so its short edge is <= maxShortEdge (long
// edge scaled proportionally, rounded to an even integer), then writes it
// to dst at the given JPEG quality.
func resizeAndCompress(srcPath, dstPath string, maxShortEdge, quality int) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return err
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	shortEdge, longEdge := w, h
	widthIsShort := w <= h
	if !widthIsShort {
		shortEdge, longEdge = h, w
	}

	var newShort, newLong int
	if shortEdge <= maxShortEdge {
		newShort, newLong = shortEdge, longEdge
	} else {
		scale := float64(maxShortEdge) / float64(shortEdge)
		newShort = maxShortEdge
		newLong = int(math.Round(float64(longEdge)*scale/2) * 2) // round to even
	}

	var newW, newH int
	if widthIsShort {
		newW, newH = newShort, newLong
	} else {
		newW, newH = newLong, newShort
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	out, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer out.Close()

	return jpeg.Encode(out, dst, &jpeg.Options{Quality: quality})
}
