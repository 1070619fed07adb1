// Package audio handles raw 8-bit PCM packetisation and format conversion.
// It splits a sample stream into fixed-size packets with a possibly shorter
// final packet, and encodes/decodes 8-bit mono WAV for file input and output.
package audio
