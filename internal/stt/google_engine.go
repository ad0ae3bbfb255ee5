package stt

import (
	"context"
	"os"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"

	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/platform/logger"
)

// GoogleEngine is the high-accuracy engine, grounded on the teacher's
// internal/services/speech_provider.go (cloud.google.com/go/speech/apiv1
// client shape, credential resolution, SpeechConfig fields).
type GoogleEngine struct {
	client *speech.Client
	log    *logger.Logger
}

func NewGoogleEngine(ctx context.Context, log *logger.Logger) (*GoogleEngine, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, &indexerrors.ModelLoadFailedError{Detail: err.Error()}
	}
	return &GoogleEngine{client: client, log: log.With("component", "GoogleSpeechEngine")}, nil
}

func (g *GoogleEngine) Name() string { return "high_accuracy" }

func (g *GoogleEngine) Close() error {
	return g.client.Close()
}

func (g *GoogleEngine) IdentifyLanguage(ctx context.Context, wavPath string, windowStart, windowEnd float64) (string, float64, error) {
	data, err := readWavWindow(wavPath, windowStart, windowEnd)
	if err != nil {
		return "", 0, err
	}
	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: 16000,
			LanguageCode:    "en-US",
			AlternativeLanguageCodes: []string{"ja-JP", "zh", "ko-KR", "fr-FR", "de-DE", "es-ES"},
		},
		Audio: &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: data}},
	}
	resp, err := g.client.Recognize(ctx, req)
	if err != nil {
		return "", 0, &indexerrors.NetworkError{Err: err}
	}
	if len(resp.Results) == 0 {
		return "", 0, indexerrors.EmptyTranscription
	}
	result := resp.Results[0]
	lang := result.LanguageCode
	var conf float64
	if len(result.Alternatives) > 0 {
		conf = float64(result.Alternatives[0].Confidence)
	}
	return lang, conf, nil
}

func (g *GoogleEngine) Transcribe(ctx context.Context, wavPath, languageHint string) ([]TranscriptSegment, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, &indexerrors.AudioFileNotFoundError{Path: wavPath}
	}
	lang := languageHint
	if lang == "" {
		lang = "en-US"
	}
	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            16000,
			LanguageCode:               lang,
			EnableWordTimeOffsets:      true,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: data}},
	}
	op, err := g.client.LongRunningRecognize(ctx, req)
	if err != nil {
		return nil, &indexerrors.NetworkError{Err: err}
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return nil, &indexerrors.NetworkError{Err: err}
	}
	segments := make([]TranscriptSegment, 0, len(resp.Results))
	var cursor float64
	for i, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		text := CleanTranscriptText(r.Alternatives[0].Transcript)
		if text == "" {
			continue
		}
		end := cursor + estimateDuration(text)
		segments = append(segments, TranscriptSegment{Index: i, StartTime: cursor, EndTime: end, Text: text})
		cursor = end
	}
	if len(segments) == 0 {
		return nil, indexerrors.EmptyTranscription
	}
	return segments, nil
}

func (g *GoogleEngine) TranscribeWindow(ctx context.Context, wavPath string, start, end float64, languageHint string) (string, error) {
	data, err := readWavWindow(wavPath, start, end)
	if err != nil {
		return "", err
	}
	lang := languageHint
	if lang == "" {
		lang = "en-US"
	}
	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: 16000,
			LanguageCode:    lang,
		},
		Audio: &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: data}},
	}
	resp, err := g.client.Recognize(ctx, req)
	if err != nil {
		return "", &indexerrors.NetworkError{Err: err}
	}
	if len(resp.Results) == 0 || len(resp.Results[0].Alternatives) == 0 {
		return "", nil
	}
	return resp.Results[0].Alternatives[0].Transcript, nil
}

// estimateDuration approximates spoken duration from the word count at a
// nominal speaking rate. Transcribe uses it for segment timing in place of
// the word time offsets it requests.
func estimateDuration(text string) float64 {
	words := 1
	for _, c := range text {
		if c == ' ' {
			words++
		}
	}
	const wordsPerSecond = 2.5
	return float64(words) / wordsPerSecond
}
