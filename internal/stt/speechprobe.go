package stt

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/clipindex/internal/config"
	"github.com/yungbote/clipindex/internal/platform/logger"
	"github.com/yungbote/clipindex/internal/subprocess"
)

// candidateLanguages is the fixed seven-language set used by the
// speech-probe fallback. §9's open question about dynamically capping this
// set based on previously observed languages is left unimplemented per
// spec.md's "not specified" note.
var candidateLanguages = []string{"en", "ja", "zh", "ko", "fr", "de", "es"}

var silenceStartRe = regexp.MustCompile(`silence_start:\s*([0-9]+\.?[0-9]*)`)
var silenceEndRe = regexp.MustCompile(`silence_end:\s*([0-9]+\.?[0-9]*)`)

// FindFirstVoicedRegion scans the first scanSeconds of wavPath for silence
// using ffmpeg's silencedetect filter and returns the start of the first
// voiced region after the first detected silence_end (or 0 if the file is
// voiced from the start). Returns ok=false if the scan window is entirely
// silent.
func FindFirstVoicedRegion(ctx context.Context, bridge *subprocess.Bridge, ffmpegPath, wavPath string, cfg *config.Config) (float64, bool, error) {
	args := []string{
		"-i", wavPath,
		"-af", fmt.Sprintf("silencedetect=noise=%.1fdB:d=%.2f", cfg.SpeechProbeSilenceDB, cfg.SpeechProbeMinSilence),
		"-t", fmt.Sprintf("%.2f", cfg.SpeechProbeScanSecs),
		"-f", "null", "-",
	}
	res, err := bridge.Run(ctx, ffmpegPath, args, 0)
	if err != nil {
		return 0, false, err
	}
	starts := parseFloats(silenceStartRe, res.Stderr)
	ends := parseFloats(silenceEndRe, res.Stderr)

	if len(starts) == 0 {
		return 0, true, nil // voiced from the very start
	}
	if starts[0] > 0.01 {
		return 0, true, nil // voiced region precedes the first silence
	}
	if len(ends) == 0 {
		return 0, false, nil // silent for the entire scan window
	}
	return ends[0], true, nil
}

func parseFloats(re *regexp.Regexp, text string) []float64 {
	matches := re.FindAllStringSubmatch(text, -1)
	out := make([]float64, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			out = append(out, v)
		}
	}
	return out
}

// ProbeLanguage runs the speech-probe fallback (§4.4 step 2): extracts a
// window starting at voicedStart, transcribes it under each candidate
// language concurrently, and returns the language maximizing the
// script-aware score.
func ProbeLanguage(ctx context.Context, engine Engine, wavPath string, voicedStart float64, cfg *config.Config, log *logger.Logger) (string, error) {
	windowEnd := voicedStart + cfg.SpeechProbeWindowSecs

	type candidateResult struct {
		lang  string
		score int
	}
	results := make([]candidateResult, len(candidateLanguages))

	g, gctx := errgroup.WithContext(ctx)
	for i, lang := range candidateLanguages {
		i, lang := i, lang
		g.Go(func() error {
			text, err := engine.TranscribeWindow(gctx, wavPath, voicedStart, windowEnd, lang)
			if err != nil {
				log.Warn("speech probe candidate failed", "lang", lang, "err", err)
				results[i] = candidateResult{lang: lang, score: 0}
				return nil
			}
			results[i] = candidateResult{lang: lang, score: ScriptAwareScore(text)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	best := results[0]
	for _, r := range results[1:] {
		if r.score > best.score {
			best = r
		}
	}
	return best.lang, nil
}
