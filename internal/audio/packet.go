// Package audio holds the PCM packet type and the mixing algorithm.
package audio

import "errors"

// Packet is an owned, immutable little-endian i16 PCM byte buffer: mono,
// 44.1 kHz. An empty Packet is legal and means "no audio".
type Packet []byte

// ErrOddLength is returned by NewPacket when the byte count is not a
// multiple of 2 and therefore cannot represent whole i16 samples.
var ErrOddLength = errors.New("audio: packet length must be a multiple of 2")

// NewPacket copies b into a Packet, validating that its length is even.
func NewPacket(b []byte) (Packet, error) {
	if len(b)%2 != 0 {
		return nil, ErrOddLength
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// SampleCount reports the number of i16 samples the packet carries.
func (p Packet) SampleCount() int {
	return len(p) / 2
}
