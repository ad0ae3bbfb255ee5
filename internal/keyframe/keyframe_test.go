package keyframe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameCount(t *testing.T) {
	require.Equal(t, 1, FrameCount(1, 3))
	require.Equal(t, 1, FrameCount(4.9, 3))
	require.Equal(t, 1, FrameCount(5, 3))
	require.Equal(t, 2, FrameCount(10, 3))
	require.Equal(t, 3, FrameCount(15, 3))
	require.Equal(t, 3, FrameCount(100, 3)) // capped at maxPerScene
}

func TestTimestamps_EqualSubdivisions(t *testing.T) {
	ts := Timestamps(0, 10, 3)
	require.Len(t, ts, 3)
	require.InDelta(t, 2.5, ts[0], 0.001)
	require.InDelta(t, 5.0, ts[1], 0.001)
	require.InDelta(t, 7.5, ts[2], 0.001)
}
