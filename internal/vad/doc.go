// Package vad provides packet-windowed Voice Activity Detection over 8-bit PCM.
// Each packet is classified by the peak magnitude of its spectrum; a sliding
// window ORs the flags of neighbouring packets so speech onsets and decays are
// kept, and the stream driver rewrites non-voice packets as silence.
package vad
