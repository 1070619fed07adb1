package audio

import (
	"errors"
	"fmt"
	"io"
	"time"
)

// Packet is an ordered run of signed 8-bit samples read from the stream.
type Packet []int8

// Bytes returns the packet as raw stream bytes
func (p Packet) Bytes() []byte {
	return SamplesToBytes(p)
}

// Silence returns a zeroed byte sequence of the packet's length
func (p Packet) Silence() []byte {
	return make([]byte, len(p))
}

// Duration returns how long the packet plays at the given sample rate
func (p Packet) Duration(sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(len(p)) * time.Second / time.Duration(sampleRate)
}

// PacketReader reads packets of a fixed sample count from an underlying reader
type PacketReader struct {
	r          io.Reader
	packetSize int
	buf        []byte
	done       bool

	// Statistics
	totalPackets uint64
	totalBytes   uint64
	shortPackets uint64
}

// ReaderStats represents packet reader statistics
type ReaderStats struct {
	TotalPackets uint64 `json:"total_packets"`
	TotalBytes   uint64 `json:"total_bytes"`
	ShortPackets uint64 `json:"short_packets"`
}

// NewPacketReader creates a reader that yields packets of packetSize samples
func NewPacketReader(r io.Reader, packetSize int) (*PacketReader, error) {
	if r == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}
	if packetSize <= 0 {
		return nil, fmt.Errorf("packet size must be positive, got %d", packetSize)
	}

	return &PacketReader{
		r:          r,
		packetSize: packetSize,
		buf:        make([]byte, packetSize),
	}, nil
}

// Next returns the next packet. The last packet may be shorter than the
// configured size. Once the stream is exhausted Next returns io.EOF; a read
// that yields no bytes never produces an empty packet.
func (pr *PacketReader) Next() (Packet, error) {
	if pr.done {
		return nil, io.EOF
	}

	n, err := io.ReadFull(pr.r, pr.buf)
	switch {
	case err == nil:
	case errors.Is(err, io.ErrUnexpectedEOF):
		pr.done = true
		pr.shortPackets++
	case errors.Is(err, io.EOF):
		pr.done = true
		return nil, io.EOF
	default:
		return nil, fmt.Errorf("failed to read packet %d: %w", pr.totalPackets, err)
	}

	pr.totalPackets++
	pr.totalBytes += uint64(n)

	return BytesToSamples(pr.buf[:n]), nil
}

// GetStats returns current reader statistics
func (pr *PacketReader) GetStats() ReaderStats {
	return ReaderStats{
		TotalPackets: pr.totalPackets,
		TotalBytes:   pr.totalBytes,
		ShortPackets: pr.shortPackets,
	}
}

// BytesToSamples reinterprets raw bytes as signed 8-bit samples in a new slice
func BytesToSamples(data []byte) []int8 {
	samples := make([]int8, len(data))
	for i, b := range data {
		samples[i] = int8(b)
	}
	return samples
}

// SamplesToBytes reinterprets signed 8-bit samples as raw bytes in a new slice
func SamplesToBytes(samples []int8) []byte {
	data := make([]byte, len(samples))
	for i, s := range samples {
		data[i] = byte(s)
	}
	return data
}
