package stt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSRTRoundTrip(t *testing.T) {
	segments := []TranscriptSegment{
		{StartTime: 0, EndTime: 2.5, Text: "Hello there."},
		{StartTime: 2.5, EndTime: 5.125, Text: "General Kenobi."},
	}
	rendered := RenderSRT(segments)
	reparsed := ParseSRT(rendered)
	rerendered := RenderSRT(reparsed)
	require.Equal(t, rendered, rerendered)
}

func TestFormatTimestamp_ClampsAtZero(t *testing.T) {
	require.Equal(t, "00:00:00,000", FormatTimestamp(-5))
	require.Equal(t, "00:00:01,500", FormatTimestamp(1.5))
	require.Equal(t, "01:00:00,000", FormatTimestamp(3600))
}

func TestCleanTranscriptText_StripsDecoratorsAndPunctuation(t *testing.T) {
	require.Equal(t, "hello world", CleanTranscriptText("<|en|>hello world"))
	require.Equal(t, "", CleanTranscriptText("...!?"))
	require.Equal(t, "", CleanTranscriptText("<|nospeech|>"))
}

func TestScriptAwareScore_PrefersCJKCharCount(t *testing.T) {
	// CJK text should score by non-whitespace char count, not token count.
	cjkScore := ScriptAwareScore("こんにちは世界")
	require.Equal(t, 7, cjkScore)

	enScore := ScriptAwareScore("hello there world")
	require.Equal(t, 3, enScore)
}

func TestMapSegmentsToScene_StrictOverlap(t *testing.T) {
	segments := []TranscriptSegment{
		{StartTime: 0, EndTime: 5, Text: "a"},
		{StartTime: 5, EndTime: 10, Text: "b"},
		{StartTime: 12, EndTime: 14, Text: "c"},
	}
	// scene [4, 11) overlaps "a" (0<11 && 5>4) and "b" (5<11 && 10>4), not "c"
	got := MapSegmentsToScene(segments, 4, 11)
	require.Equal(t, "a b", got)
}

func TestMapSegmentsToScene_NoOverlapIsEmpty(t *testing.T) {
	segments := []TranscriptSegment{{StartTime: 20, EndTime: 25, Text: "x"}}
	got := MapSegmentsToScene(segments, 0, 5)
	require.Equal(t, "", got)
}

func TestMergeCJKFragments_BreaksOnSentenceEnd(t *testing.T) {
	frags := []TranscriptSegment{
		{StartTime: 0, EndTime: 1, Text: "你"},
		{StartTime: 1, EndTime: 2, Text: "好。"},
		{StartTime: 2, EndTime: 3, Text: "再"},
		{StartTime: 3, EndTime: 4, Text: "见"},
	}
	merged := MergeCJKFragments(frags, 1.0, 15.0, 40)
	require.Len(t, merged, 2)
	require.Equal(t, "你好。", merged[0].Text)
	require.Equal(t, "再见", merged[1].Text)
}

func TestMergeCJKFragments_BreaksOnSilenceGap(t *testing.T) {
	frags := []TranscriptSegment{
		{StartTime: 0, EndTime: 1, Text: "a"},
		{StartTime: 5, EndTime: 6, Text: "b"}, // gap of 4s > 1s
	}
	merged := MergeCJKFragments(frags, 1.0, 15.0, 40)
	require.Len(t, merged, 2)
}
