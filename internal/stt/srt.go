package stt

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/yungbote/clipindex/internal/indexerrors"
)

// FormatTimestamp renders seconds as "HH:MM:SS,mmm", clamped at 0.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(seconds*1000 + 0.5)
	ms := totalMillis % 1000
	totalSeconds := totalMillis / 1000
	s := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	m := totalMinutes % 60
	h := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// RenderSRT emits strict SRT: blank-line separated blocks, "-->" with comma
// millisecond separators.
func RenderSRT(segments []TranscriptSegment) string {
	var b strings.Builder
	for i, s := range segments {
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", FormatTimestamp(s.StartTime), FormatTimestamp(s.EndTime))
		b.WriteString(s.Text)
		b.WriteString("\n")
		if i < len(segments)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

var srtTimeRe = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2}),(\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2}),(\d{3})`)

func parseTimestamp(h, m, s, ms string) float64 {
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	ss, _ := strconv.Atoi(s)
	msms, _ := strconv.Atoi(ms)
	return float64(hh*3600+mm*60+ss) + float64(msms)/1000.0
}

// ParseSRT parses a strict SRT document back into segments. Emitting
// ParseSRT(RenderSRT(segments)) reproduces the original segments (§8
// round-trip law).
func ParseSRT(content string) []TranscriptSegment {
	blocks := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n")
	out := make([]TranscriptSegment, 0, len(blocks))
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		if len(lines) < 2 {
			continue
		}
		m := srtTimeRe.FindStringSubmatch(lines[1])
		if m == nil {
			continue
		}
		start := parseTimestamp(m[1], m[2], m[3], m[4])
		end := parseTimestamp(m[5], m[6], m[7], m[8])
		text := strings.Join(lines[2:], "\n")
		out = append(out, TranscriptSegment{StartTime: start, EndTime: end, Text: text})
	}
	for i := range out {
		out[i].Index = i
	}
	return out
}

// WriteSubtitleFile writes the SRT to the video's directory first; on
// failure it falls back to an app-scoped directory named by a stable
// non-cryptographic hash of the video path (§4.4, §6).
func WriteSubtitleFile(videoPath string, segments []TranscriptSegment, appSupportDir, appName string) (string, error) {
	content := RenderSRT(segments)
	primary := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".srt"
	if err := os.WriteFile(primary, []byte(content), 0o644); err == nil {
		return primary, nil
	}
	fallbackDir := filepath.Join(appSupportDir, appName, "srt")
	if err := os.MkdirAll(fallbackDir, 0o755); err != nil {
		return "", &indexerrors.SubtitleWriteFailedError{Detail: err.Error()}
	}
	name := fmt.Sprintf("%016x.srt", djb2Hash(videoPath))
	fallbackPath := filepath.Join(fallbackDir, name)
	if err := os.WriteFile(fallbackPath, []byte(content), 0o644); err != nil {
		return "", &indexerrors.SubtitleWriteFailedError{Detail: err.Error()}
	}
	return fallbackPath, nil
}

// djb2Hash is a stable non-cryptographic hash used for fallback-scoped
// subtitle filenames.
func djb2Hash(s string) uint64 {
	var h uint64 = 5381
	for i := 0; i < len(s); i++ {
		h = ((h << 5) + h) + uint64(s[i])
	}
	return h
}
