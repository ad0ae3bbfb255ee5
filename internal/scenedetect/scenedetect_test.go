package scenedetect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDenoise_DropsCloseCandidates(t *testing.T) {
	// §8: minSegmentDuration=2, candidates [0.5, 0.9, 1.4, 5.0] => [0.5, 5.0]
	got := Denoise([]float64{0.5, 0.9, 1.4, 5.0}, 2)
	require.Equal(t, []float64{0.5, 5.0}, got)
}

func TestMaterializeSegments_EmptyCuts(t *testing.T) {
	segs := MaterializeSegments(nil, 25)
	require.Equal(t, []Segment{{StartTime: 0, EndTime: 25}}, segs)
}

func TestMaterializeSegments_TwoCuts(t *testing.T) {
	segs := MaterializeSegments([]float64{10, 18}, 25)
	require.Equal(t, []Segment{
		{StartTime: 0, EndTime: 10},
		{StartTime: 10, EndTime: 18},
		{StartTime: 18, EndTime: 25},
	}, segs)
}

func TestMaterializeSegments_NoLeadingSegmentBeforeNearZeroFirstCut(t *testing.T) {
	segs := MaterializeSegments([]float64{0.005, 10}, 20)
	require.Equal(t, []Segment{
		{StartTime: 0.005, EndTime: 10},
		{StartTime: 10, EndTime: 20},
	}, segs)
}

func TestMergeShort_MergesIntoSuccessor(t *testing.T) {
	segs := []Segment{
		{StartTime: 0, EndTime: 1},
		{StartTime: 1, EndTime: 10},
	}
	merged := MergeShort(segs, 2)
	require.Equal(t, []Segment{{StartTime: 0, EndTime: 10}}, merged)
}

func TestSplitLong_AbsorbsShortTail(t *testing.T) {
	segs := []Segment{{StartTime: 0, EndTime: 32}}
	split := SplitLong(segs, 30, 15)
	// 32s / 15s => chunks [0,15) [15,30) [30,32); tail (2s) < 0.5*15=7.5 => absorbed
	require.Equal(t, []Segment{
		{StartTime: 0, EndTime: 15},
		{StartTime: 15, EndTime: 32},
	}, split)
}

func TestSplitLong_KeepsUnderLimit(t *testing.T) {
	segs := []Segment{{StartTime: 0, EndTime: 20}}
	split := SplitLong(segs, 30, 15)
	require.Equal(t, segs, split)
}
