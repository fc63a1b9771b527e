package encode

import (
	"io"
	"testing"

	"github.com/five82/carve/internal/yuv"
)

// packFrameLE16 packs one w×h 4:2:0 frame's worth of 16-bit-little-endian
// samples into the packed transport form, mirroring what ExtractFrame does.
func packFrameLE16(t *testing.T, width, height uint32, le16 []byte) []byte {
	t.Helper()
	ySamples, uSamples, vSamples := yuv.PlaneSize420(width, height)
	yPacked := yuv.PackedPlaneBytes(ySamples)
	uPacked := yuv.PackedPlaneBytes(uSamples)
	vPacked := yuv.PackedPlaneBytes(vSamples)

	out := make([]byte, yPacked+uPacked+vPacked)
	yuv.PackFromLE16(le16[:ySamples*2], ySamples, out[:yPacked])
	yuv.PackFromLE16(le16[ySamples*2:ySamples*2+uSamples*2], uSamples, out[yPacked:yPacked+uPacked])
	yuv.PackFromLE16(le16[ySamples*2+uSamples*2:], vSamples, out[yPacked+uPacked:])
	return out
}

func TestUnpackFramePlanesRoundTrip(t *testing.T) {
	const width, height = 8, 4

	le16 := make([]byte, yuv.UnpackedFrameSize(width, height))
	for i := 0; i < len(le16)/2; i++ {
		v := uint16((i * 7) % 1024)
		le16[i*2] = byte(v)
		le16[i*2+1] = byte(v >> 8)
	}

	packed := packFrameLE16(t, width, height, le16)

	got := make([]byte, yuv.UnpackedFrameSize(width, height))
	unpackFramePlanes(packed, width, height, got)

	for i := range got {
		if got[i] != le16[i] {
			t.Fatalf("byte %d: got %d, want %d", i, got[i], le16[i])
		}
	}
}

func TestYUVReaderStreamsMultipleFrames(t *testing.T) {
	const width, height = 8, 4
	const frameCount = 3

	unpackedSize := yuv.UnpackedFrameSize(width, height)
	packedSize := yuv.PackedFrameSize(width, height)

	packed := make([]byte, packedSize*frameCount)
	wantUnpacked := make([]byte, unpackedSize*frameCount)

	for f := 0; f < frameCount; f++ {
		le16 := make([]byte, unpackedSize)
		for i := 0; i < len(le16)/2; i++ {
			v := uint16((i + f*13) % 1024)
			le16[i*2] = byte(v)
			le16[i*2+1] = byte(v >> 8)
		}
		copy(wantUnpacked[f*unpackedSize:], le16)
		copy(packed[f*packedSize:], packFrameLE16(t, width, height, le16))
	}

	reader := newYUVReader(packed, width, height, frameCount)
	got, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	if len(got) != len(wantUnpacked) {
		t.Fatalf("got %d bytes, want %d", len(got), len(wantUnpacked))
	}
	for i := range got {
		if got[i] != wantUnpacked[i] {
			t.Fatalf("byte %d: got %d, want %d", i, got[i], wantUnpacked[i])
		}
	}
}
