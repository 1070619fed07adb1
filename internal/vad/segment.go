package vad

import "time"

// VoiceSegment represents a run of consecutive packets emitted as voice
type VoiceSegment struct {
	StartPacket int           `json:"start_packet"`
	EndPacket   int           `json:"end_packet"` // inclusive
	StartSample int64         `json:"start_sample"`
	EndSample   int64         `json:"end_sample"` // exclusive
	Start       time.Duration `json:"start"`
	End         time.Duration `json:"end"`
	Duration    time.Duration `json:"duration"`
}

// SegmentTracker builds voice segments from the emitted decision stream
type SegmentTracker struct {
	sampleRate int

	packetIndex  int
	sampleOffset int64
	current      *VoiceSegment
	segments     []VoiceSegment
}

// NewSegmentTracker creates a tracker that times samples at sampleRate
func NewSegmentTracker(sampleRate int) *SegmentTracker {
	return &SegmentTracker{sampleRate: sampleRate}
}

func (t *SegmentTracker) offset(samples int64) time.Duration {
	if t.sampleRate <= 0 {
		return 0
	}
	return time.Duration(samples) * time.Second / time.Duration(t.sampleRate)
}

// Observe records one emitted packet of the given length
func (t *SegmentTracker) Observe(packetLen int, voiced bool) {
	if voiced {
		if t.current == nil {
			t.current = &VoiceSegment{
				StartPacket: t.packetIndex,
				StartSample: t.sampleOffset,
			}
		}
		t.current.EndPacket = t.packetIndex
		t.current.EndSample = t.sampleOffset + int64(packetLen)
	} else {
		t.closeCurrent()
	}

	t.packetIndex++
	t.sampleOffset += int64(packetLen)
}

func (t *SegmentTracker) closeCurrent() {
	if t.current == nil {
		return
	}
	seg := *t.current
	seg.Start = t.offset(seg.StartSample)
	seg.End = t.offset(seg.EndSample)
	seg.Duration = seg.End - seg.Start
	t.segments = append(t.segments, seg)
	t.current = nil
}

// Close finishes any open segment and returns all segments in stream order
func (t *SegmentTracker) Close() []VoiceSegment {
	t.closeCurrent()
	return t.segments
}
