package leddar

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReading(t *testing.T) {
	var empty Reading
	_, ok := empty.First()
	require.False(t, ok)
	require.Equal(t, "ts=0 temp=0.00", empty.String())

	r := NewReading(7, 25.5,
		Detection{Distance: 120, Amplitude: 3.25},
		Detection{Distance: 80, Amplitude: 1},
		Detection{Distance: 300, Amplitude: 0.5},
		Detection{Distance: 400, Amplitude: 0.25})
	require.Equal(t, MaxDetections, r.Count())
	det, ok := r.First()
	require.True(t, ok)
	require.Equal(t, Detection{Distance: 120, Amplitude: 3.25}, det)
	require.Equal(t, "ts=7 temp=25.50 [0] 120cm/3.25 [1] 80cm/1.00 [2] 300cm/0.50", r.String())

	r.ClearDetections()
	require.Zero(t, r.Count())
	require.Empty(t, r.Detections())
	require.Equal(t, uint32(7), r.Timestamp)
}
