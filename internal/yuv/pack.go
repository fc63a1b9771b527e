// Package yuv implements the packed 10-bit transport format used to
// carry decoded frames from the decoder goroutine to encoder workers, and
// the 8-bit-to-10-bit sample promotion used for 8-bit sources.
package yuv

// PlaneSize420 returns the 8-bit-sample-count size of the three 4:2:0 planes
// (Y, U, V) for a w×h frame.
func PlaneSize420(w, h uint32) (y, u, v int) {
	y = int(w) * int(h)
	cw, ch := (w+1)/2, (h+1)/2
	u = int(cw) * int(ch)
	v = u
	return
}

// PackedPlaneBytes returns the number of bytes a plane of sampleCount 10-bit
// samples occupies once packed 4-samples-per-5-bytes, rounded up.
func PackedPlaneBytes(sampleCount int) int {
	groups := (sampleCount + 3) / 4
	return groups * 5
}

// PackedFrameSize returns the total packed-transport byte size of one 4:2:0
// frame at w×h.
func PackedFrameSize(w, h uint32) int {
	y, u, v := PlaneSize420(w, h)
	return PackedPlaneBytes(y) + PackedPlaneBytes(u) + PackedPlaneBytes(v)
}

// UnpackedFrameSize returns the byte size of one 4:2:0 frame where every
// sample occupies a 16-bit little-endian slot (the form expected on the
// encoder's stdin).
func UnpackedFrameSize(w, h uint32) int {
	y, u, v := PlaneSize420(w, h)
	return (y + u + v) * 2
}

// Pack10 packs samples (each holding a value in [0,1023] in its low 10 bits)
// into dst using the transport format: every 4 consecutive samples become a
// little-endian 40-bit group stored in 5 bytes. dst must be at least
// PackedPlaneBytes(len(samples)) bytes. A final partial group of 1-3 samples
// is padded with zero-valued samples.
func Pack10(samples []uint16, dst []byte) {
	n := len(samples)
	di := 0
	for i := 0; i < n; i += 4 {
		var s [4]uint64
		for j := 0; j < 4; j++ {
			if i+j < n {
				s[j] = uint64(samples[i+j] & 0x3FF)
			}
		}
		group := s[0] | (s[1] << 10) | (s[2] << 20) | (s[3] << 30)
		dst[di+0] = byte(group)
		dst[di+1] = byte(group >> 8)
		dst[di+2] = byte(group >> 16)
		dst[di+3] = byte(group >> 24)
		dst[di+4] = byte(group >> 32)
		di += 5
	}
}

// PackFromLE16 packs sampleCount samples already held in 16-bit-little-endian
// wire form (2 bytes each, value in the low 10 bits) into dst using the
// packed transport form, without an intermediate []uint16 allocation.
func PackFromLE16(src []byte, sampleCount int, dst []byte) {
	di := 0
	for i := 0; i < sampleCount; i += 4 {
		var s [4]uint64
		for j := 0; j < 4 && i+j < sampleCount; j++ {
			lo, hi := src[(i+j)*2], src[(i+j)*2+1]
			s[j] = (uint64(lo) | uint64(hi)<<8) & 0x3FF
		}
		group := s[0] | (s[1] << 10) | (s[2] << 20) | (s[3] << 30)
		dst[di+0] = byte(group)
		dst[di+1] = byte(group >> 8)
		dst[di+2] = byte(group >> 16)
		dst[di+3] = byte(group >> 24)
		dst[di+4] = byte(group >> 32)
		di += 5
	}
}

// Unpack10 reverses Pack10, recovering sampleCount 10-bit samples from their
// packed transport form in src.
func Unpack10(src []byte, sampleCount int, dst []uint16) {
	si := 0
	for i := 0; i < sampleCount; i += 4 {
		group := uint64(src[si]) |
			uint64(src[si+1])<<8 |
			uint64(src[si+2])<<16 |
			uint64(src[si+3])<<24 |
			uint64(src[si+4])<<32
		for j := 0; j < 4 && i+j < sampleCount; j++ {
			dst[i+j] = uint16((group >> (10 * uint(j))) & 0x3FF)
		}
		si += 5
	}
}

// UnpackToLE16 reverses packing directly into the 16-bit little-endian wire
// form an encoder expects on stdin (2 bytes per sample, value in the low 10
// bits), avoiding an intermediate []uint16 allocation.
func UnpackToLE16(src []byte, sampleCount int, dst []byte) {
	si := 0
	for i := 0; i < sampleCount; i += 4 {
		group := uint64(src[si]) |
			uint64(src[si+1])<<8 |
			uint64(src[si+2])<<16 |
			uint64(src[si+3])<<24 |
			uint64(src[si+4])<<32
		for j := 0; j < 4 && i+j < sampleCount; j++ {
			v := uint16((group >> (10 * uint(j))) & 0x3FF)
			dst[(i+j)*2] = byte(v)
			dst[(i+j)*2+1] = byte(v >> 8)
		}
		si += 5
	}
}

// Promote8To16LE left-shifts each 8-bit sample by 2 (10-bit MSB-aligned) and
// writes it as a 16-bit little-endian value, promoting an 8-bit source plane
// directly to the encoder's expected wire form.
func Promote8To16LE(src []byte, dst []byte) {
	for i, b := range src {
		v := uint16(b) << 2
		dst[i*2] = byte(v)
		dst[i*2+1] = byte(v >> 8)
	}
}
