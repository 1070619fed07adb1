package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro1111/pcm-vad/internal/audio"
)

func constantPacket(n int, value int8) audio.Packet {
	p := make(audio.Packet, n)
	for i := range p {
		p[i] = value
	}
	return p
}

func TestNewClassifierValidation(t *testing.T) {
	_, err := NewClassifier(200, 3400)
	require.NoError(t, err)

	_, err = NewClassifier(-1, 3400)
	assert.Error(t, err)

	_, err = NewClassifier(3400, 200)
	assert.Error(t, err)

	_, err = NewClassifier(200, 200)
	assert.Error(t, err)
}

func TestClassifierBand(t *testing.T) {
	c, err := NewClassifier(DefaultMinMagnitude, DefaultMaxMagnitude)
	require.NoError(t, err)

	// A constant packet peaks at its DC bin: len * value.
	tests := []struct {
		name      string
		packet    audio.Packet
		magnitude float64
		voiced    bool
	}{
		{"silence", constantPacket(160, 0), 0, false},
		{"below band", constantPacket(160, 1), 160, false},
		{"inside band", constantPacket(160, 20), 3200, true},
		{"above band", constantPacket(160, 30), 4800, false},
		{"short packet inside band", constantPacket(40, 20), 800, true},
		{"negative samples", constantPacket(160, -10), 1600, true},
		{"lower bound is exclusive", constantPacket(100, 2), 200, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			voiced, mag := c.Classify(tt.packet)
			assert.InDelta(t, tt.magnitude, mag, 1e-6)
			assert.Equal(t, tt.voiced, voiced)
			assert.Equal(t, tt.voiced, c.IsVoice(tt.packet))
		})
	}
}
