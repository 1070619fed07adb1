package vad

import (
	"fmt"

	"github.com/skypro1111/pcm-vad/internal/audio"
)

// Window is the sliding decision window. It tracks lookAhead+1 packets and
// lookBack+1+lookAhead voice flags in ring buffers; slot 0 of each is the
// oldest unit, the one about to be emitted.
type Window struct {
	packets []audio.Packet
	flags   []bool

	packetHead int
	flagHead   int
}

// NewWindow creates an empty window for the given context sizes
func NewWindow(lookBack, lookAhead int) (*Window, error) {
	if lookBack < 0 {
		return nil, fmt.Errorf("look back cannot be negative, got %d", lookBack)
	}
	if lookAhead < 0 {
		return nil, fmt.Errorf("look ahead cannot be negative, got %d", lookAhead)
	}

	return &Window{
		packets: make([]audio.Packet, lookAhead+1),
		flags:   make([]bool, lookBack+1+lookAhead),
	}, nil
}

// Size returns the number of flags considered per decision
func (w *Window) Size() int {
	return len(w.flags)
}

func (w *Window) newestPacket() int {
	return (w.packetHead + len(w.packets) - 1) % len(w.packets)
}

func (w *Window) newestFlag() int {
	return (w.flagHead + len(w.flags) - 1) % len(w.flags)
}

// Push stores p in the newest packet slot
func (w *Window) Push(p audio.Packet) {
	w.packets[w.newestPacket()] = p
}

// Newest returns the newest packet, nil if the slot is empty
func (w *Window) Newest() audio.Packet {
	return w.packets[w.newestPacket()]
}

// SetNewestFlag stores a precomputed voice flag for the newest packet
func (w *Window) SetNewestFlag(voiced bool) {
	w.flags[w.newestFlag()] = voiced
}

// ClassifyNewest runs c on the newest packet and stores the resulting flag.
// An empty newest slot is flagged as silence.
func (w *Window) ClassifyNewest(c PacketClassifier) bool {
	newest := w.Newest()
	voiced := false
	if len(newest) > 0 {
		voiced, _ = c.Classify(newest)
	}
	w.SetNewestFlag(voiced)
	return voiced
}

// DecideOldest returns the oldest packet and whether any flag in the window
// is set. ok is false while the oldest slot is still empty during priming.
func (w *Window) DecideOldest() (p audio.Packet, voiced bool, ok bool) {
	p = w.packets[w.packetHead]
	if len(p) == 0 {
		return nil, false, false
	}

	for _, f := range w.flags {
		if f {
			return p, true, true
		}
	}
	return p, false, true
}

// Advance drops the oldest packet and flag; the freed slots become the new
// empty tail.
func (w *Window) Advance() {
	w.packets[w.packetHead] = nil
	w.packetHead = (w.packetHead + 1) % len(w.packets)

	w.flags[w.flagHead] = false
	w.flagHead = (w.flagHead + 1) % len(w.flags)
}

// Flags returns a copy of the flags ordered oldest first
func (w *Window) Flags() []bool {
	out := make([]bool, len(w.flags))
	for i := range out {
		out[i] = w.flags[(w.flagHead+i)%len(w.flags)]
	}
	return out
}
