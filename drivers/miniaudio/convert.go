package miniaudio

import (
	"encoding/binary"
	"math"
)

// deinterleave splits little-endian interleaved f32 frames into channels.
// Short input is treated as silence.
func deinterleave(dst [][]float32, src []byte, frames int) {
	chans := len(dst)
	for f := 0; f < frames; f++ {
		for c := 0; c < chans; c++ {
			off := (f*chans + c) * 4
			if off+4 > len(src) {
				dst[c][f] = 0
				continue
			}
			dst[c][f] = math.Float32frombits(binary.LittleEndian.Uint32(src[off:]))
		}
	}
}

// interleave packs channels into little-endian interleaved f32 frames.
func interleave(dst []byte, src [][]float32, frames int) {
	chans := len(src)
	for f := 0; f < frames; f++ {
		for c := 0; c < chans; c++ {
			off := (f*chans + c) * 4
			if off+4 > len(dst) {
				return
			}
			binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(src[c][f]))
		}
	}
}
