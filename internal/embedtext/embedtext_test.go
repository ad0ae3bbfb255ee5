package embedtext

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSerializeVector_LengthInvariant(t *testing.T) {
	v := []float32{1.0, 2.0, 3.0}
	blob, err := SerializeVector(v, 3)
	require.NoError(t, err)
	require.Len(t, blob, 3*4)
}

func TestSerializeVector_DimMismatchErrors(t *testing.T) {
	v := []float32{1.0, 2.0}
	_, err := SerializeVector(v, 3)
	require.Error(t, err)
}

func TestSerializeDeserializeVector_RoundTrip(t *testing.T) {
	v := []float32{0.5, -1.25, 3.75, 0}
	blob, err := SerializeVector(v, 4)
	require.NoError(t, err)
	got := DeserializeVector(blob)
	require.Equal(t, v, got)
}
