package vad

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentTracker(t *testing.T) {
	tracker := NewSegmentTracker(8000)

	decisions := []bool{false, true, true, false, true}
	for _, d := range decisions {
		tracker.Observe(160, d)
	}

	segments := tracker.Close()
	require.Len(t, segments, 2)

	assert.Equal(t, VoiceSegment{
		StartPacket: 1,
		EndPacket:   2,
		StartSample: 160,
		EndSample:   480,
		Start:       20 * time.Millisecond,
		End:         60 * time.Millisecond,
		Duration:    40 * time.Millisecond,
	}, segments[0])

	assert.Equal(t, 4, segments[1].StartPacket)
	assert.Equal(t, 4, segments[1].EndPacket)
	assert.Equal(t, 100*time.Millisecond, segments[1].End)
}

func TestSegmentTrackerShortFinalPacket(t *testing.T) {
	tracker := NewSegmentTracker(8000)
	tracker.Observe(160, true)
	tracker.Observe(40, true)

	segments := tracker.Close()
	require.Len(t, segments, 1)
	assert.Equal(t, int64(200), segments[0].EndSample)
	assert.Equal(t, 25*time.Millisecond, segments[0].Duration)
}

func TestSegmentTrackerNoVoice(t *testing.T) {
	tracker := NewSegmentTracker(8000)
	tracker.Observe(160, false)
	assert.Empty(t, tracker.Close())
}
