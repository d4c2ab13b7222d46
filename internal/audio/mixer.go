package audio

import (
	"encoding/binary"
	"math"
)

// Headroom is the scaling factor applied after per-index averaging, leaving
// dynamic-range margin before the final i16 clamp. Pinned at 0.5 to keep
// mix output deterministic.
const Headroom = 0.5

// Mix combines packets of possibly differing lengths into one Packet.
// For each sample index it averages the contributing samples (samples
// beyond a packet's own length simply don't contribute at that index),
// scales by Headroom, rounds to nearest, and clamps to the i16 range.
// An empty input returns an empty Packet.
func Mix(packets []Packet) Packet {
	if len(packets) == 0 {
		return Packet{}
	}

	n := 0
	for _, p := range packets {
		if c := p.SampleCount(); c > n {
			n = c
		}
	}
	if n == 0 {
		return Packet{}
	}

	sum := make([]int32, n)
	count := make([]uint32, n)
	for _, p := range packets {
		for i := 0; i < p.SampleCount(); i++ {
			sum[i] += int32(sampleAt(p, i))
			count[i]++
		}
	}

	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		var sample int16
		if count[i] != 0 {
			avg := float64(sum[i]) / float64(count[i])
			sample = clampI16(math.Round(avg * Headroom))
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}
	return out
}

func sampleAt(p Packet, i int) int16 {
	return int16(binary.LittleEndian.Uint16(p[i*2 : i*2+2]))
}

func clampI16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}
