package vad

import (
	"fmt"

	"github.com/skypro1111/pcm-vad/internal/audio"
	"github.com/skypro1111/pcm-vad/internal/dsp"
)

const (
	// DefaultMinMagnitude is the lower bound of the voice band
	DefaultMinMagnitude = 200
	// DefaultMaxMagnitude is the upper bound of the voice band
	DefaultMaxMagnitude = 3400
)

// PacketClassifier decides whether a single packet carries voice.
// Implementations must be safe for concurrent use.
type PacketClassifier interface {
	Classify(p audio.Packet) (voiced bool, magnitude float64)
}

// Classifier flags a packet as voice when the peak magnitude of its spectrum
// lies strictly inside (MinMagnitude, MaxMagnitude).
//
// The band is historically configured as min_freq/max_freq in Hz, but it is
// compared against the unscaled spectral magnitude, not a bin frequency.
type Classifier struct {
	MinMagnitude float64
	MaxMagnitude float64
}

// NewClassifier creates a classifier for the given magnitude band
func NewClassifier(minMagnitude, maxMagnitude float64) (*Classifier, error) {
	if minMagnitude < 0 {
		return nil, fmt.Errorf("min magnitude cannot be negative, got %f", minMagnitude)
	}
	if maxMagnitude <= minMagnitude {
		return nil, fmt.Errorf("max magnitude (%f) must be greater than min magnitude (%f)",
			maxMagnitude, minMagnitude)
	}

	return &Classifier{MinMagnitude: minMagnitude, MaxMagnitude: maxMagnitude}, nil
}

// Magnitude returns the peak spectral magnitude of the packet.
// The packet must not be empty.
func (c *Classifier) Magnitude(p audio.Packet) float64 {
	return dsp.MaxMagnitude(dsp.Transform(dsp.FromSamples(p)))
}

// Classify returns the voice flag and the peak magnitude it was derived from
func (c *Classifier) Classify(p audio.Packet) (bool, float64) {
	mag := c.Magnitude(p)
	return mag > c.MinMagnitude && mag < c.MaxMagnitude, mag
}

// IsVoice reports whether the packet falls inside the voice band
func (c *Classifier) IsVoice(p audio.Packet) bool {
	voiced, _ := c.Classify(p)
	return voiced
}
