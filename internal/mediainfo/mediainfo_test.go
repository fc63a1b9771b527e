package mediainfo

import (
	"os"
	"path/filepath"
	"testing"
)

func readFixture(t *testing.T, name string) *Response {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("reading fixture %s: %v", name, err)
	}
	resp, err := parseMediaInfoOutput(data)
	if err != nil {
		t.Fatalf("parsing fixture %s: %v", name, err)
	}
	return resp
}

func TestParseMediaInfoOutput(t *testing.T) {
	resp := readFixture(t, "video_sdr.json")

	if len(resp.Media.Track) != 3 {
		t.Fatalf("len(Track) = %d, want 3 (General, Video, Audio)", len(resp.Media.Track))
	}

	v := resp.videoTrack()
	if v == nil {
		t.Fatal("no video track decoded")
	}
	if v.Format != "AVC" || v.Width != "1920" || v.Height != "1080" || v.BitDepth != "8" {
		t.Errorf("video track = %+v", v)
	}
}

func TestParseMediaInfoOutputMalformed(t *testing.T) {
	if _, err := parseMediaInfoOutput([]byte(`{"media": {"track": [}`)); err == nil {
		t.Error("malformed JSON must not parse")
	}
}

func TestDetectHDR(t *testing.T) {
	tests := []struct {
		name         string
		fixture      string
		wantHDR      bool
		wantDepth    uint8
		wantTransfer string
	}{
		{"SDR AVC", "video_sdr.json", false, 8, "BT.709"},
		{"PQ HEVC", "video_hdr_pq.json", true, 10, "PQ"},
		{"HLG HEVC", "video_hdr_hlg.json", true, 10, "HLG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hdr := DetectHDR(readFixture(t, tt.fixture))
			if hdr.IsHDR != tt.wantHDR {
				t.Errorf("IsHDR = %v, want %v", hdr.IsHDR, tt.wantHDR)
			}
			if hdr.BitDepth == nil || *hdr.BitDepth != tt.wantDepth {
				t.Errorf("BitDepth = %v, want %d", hdr.BitDepth, tt.wantDepth)
			}
			if hdr.TransferCharacteristics != tt.wantTransfer {
				t.Errorf("Transfer = %q, want %q", hdr.TransferCharacteristics, tt.wantTransfer)
			}
		})
	}
}

func TestDetectHDRNoVideoTrack(t *testing.T) {
	hdr := DetectHDR(readFixture(t, "video_no_video_track.json"))
	if hdr.IsHDR {
		t.Error("audio-only file detected as HDR")
	}
	if hdr.BitDepth != nil {
		t.Error("audio-only file reported a video bit depth")
	}
}

func TestGetAudioChannels(t *testing.T) {
	channels := GetAudioChannels(readFixture(t, "video_hdr_pq.json"))
	if len(channels) != 2 || channels[0] != 8 || channels[1] != 6 {
		t.Errorf("channels = %v, want [8 6]", channels)
	}
}

func TestDetectHDRFromMetadata(t *testing.T) {
	tests := []struct {
		name      string
		primaries string
		transfer  string
		matrix    string
		want      bool
	}{
		{"BT.709 everywhere", "BT.709", "BT.709", "BT.709", false},
		{"PQ wide gamut", "BT.2020", "PQ", "BT.2020 non-constant", true},
		{"HLG wide gamut", "BT.2020", "HLG", "BT.2020 non-constant", true},
		{"wide primaries only", "BT.2020", "BT.709", "BT.709", true},
		{"SMPTE 2084 transfer only", "BT.709", "SMPTE 2084", "BT.709", true},
		{"BT.2100 primaries", "BT.2100", "BT.709", "BT.709", true},
		{"empty strings", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectHDRFromMetadata(tt.primaries, tt.transfer, tt.matrix); got != tt.want {
				t.Errorf("detectHDRFromMetadata(%q, %q, %q) = %v", tt.primaries, tt.transfer, tt.matrix, got)
			}
		})
	}
}
