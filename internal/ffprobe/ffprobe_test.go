package ffprobe

import (
	"os"
	"path/filepath"
	"testing"
)

func readFixture(t *testing.T, name string) *ffprobeOutput {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("reading fixture %s: %v", name, err)
	}
	out, err := parseFFprobeOutput(data)
	if err != nil {
		t.Fatalf("parsing fixture %s: %v", name, err)
	}
	return out
}

func TestParseFFprobeOutput(t *testing.T) {
	out := readFixture(t, "video_1080p_sdr.json")

	if out.Format.Duration != "120.500000" {
		t.Errorf("Duration = %q", out.Format.Duration)
	}
	if len(out.Streams) != 2 {
		t.Fatalf("len(Streams) = %d, want 2", len(out.Streams))
	}

	video := out.Streams[0]
	if video.CodecType != "video" || video.Width != 1920 || video.Height != 1080 {
		t.Errorf("video stream = %+v", video)
	}
	if video.BitsPerRawSample != "8" {
		t.Errorf("BitsPerRawSample = %q, want 8", video.BitsPerRawSample)
	}

	audio := out.Streams[1]
	if audio.CodecType != "audio" || audio.Channels != 2 {
		t.Errorf("audio stream = %+v", audio)
	}
}

func TestParseFFprobeOutputMalformed(t *testing.T) {
	if _, err := parseFFprobeOutput([]byte(`{"format": {"duration": "1"}, "streams": [}`)); err == nil {
		t.Error("malformed JSON must not parse")
	}
}

func TestExtractVideoProperties(t *testing.T) {
	tests := []struct {
		name      string
		fixture   string
		wantW     uint32
		wantH     uint32
		wantHDR   bool
		wantDepth uint8
	}{
		{"1080p SDR", "video_1080p_sdr.json", 1920, 1080, false, 8},
		{"4K PQ", "video_4k_hdr_pq.json", 3840, 2160, true, 10},
		{"4K HLG", "video_4k_hdr_hlg.json", 3840, 2160, true, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props, err := extractVideoProperties(readFixture(t, tt.fixture), tt.fixture)
			if err != nil {
				t.Fatalf("extractVideoProperties: %v", err)
			}
			if props.Width != tt.wantW || props.Height != tt.wantH {
				t.Errorf("dimensions %dx%d, want %dx%d", props.Width, props.Height, tt.wantW, tt.wantH)
			}
			if props.HDRInfo.IsHDR != tt.wantHDR {
				t.Errorf("IsHDR = %v, want %v", props.HDRInfo.IsHDR, tt.wantHDR)
			}
			if props.HDRInfo.BitDepth == nil || *props.HDRInfo.BitDepth != tt.wantDepth {
				t.Errorf("BitDepth = %v, want %d", props.HDRInfo.BitDepth, tt.wantDepth)
			}
		})
	}
}

func TestExtractVideoPropertiesHDRSignaling(t *testing.T) {
	props, err := extractVideoProperties(readFixture(t, "video_4k_hdr_pq.json"), "x")
	if err != nil {
		t.Fatal(err)
	}
	if props.HDRInfo.ColourPrimaries != "bt2020" {
		t.Errorf("ColourPrimaries = %q", props.HDRInfo.ColourPrimaries)
	}
	if props.HDRInfo.TransferCharacteristics != "smpte2084" {
		t.Errorf("TransferCharacteristics = %q", props.HDRInfo.TransferCharacteristics)
	}

	hlg, err := extractVideoProperties(readFixture(t, "video_4k_hdr_hlg.json"), "x")
	if err != nil {
		t.Fatal(err)
	}
	if hlg.HDRInfo.TransferCharacteristics != "arib-std-b67" {
		t.Errorf("HLG transfer = %q", hlg.HDRInfo.TransferCharacteristics)
	}
}

func TestExtractVideoPropertiesNoVideoStream(t *testing.T) {
	if _, err := extractVideoProperties(readFixture(t, "video_no_video_stream.json"), "audio.flac"); err == nil {
		t.Error("audio-only input must fail video extraction")
	}
}

func TestExtractAudioChannels(t *testing.T) {
	channels := extractAudioChannels(readFixture(t, "video_4k_hdr_pq.json"))
	if len(channels) != 2 || channels[0] != 8 || channels[1] != 6 {
		t.Errorf("channels = %v, want [8 6]", channels)
	}
}

func TestExtractAudioStreamInfo(t *testing.T) {
	streams := extractAudioStreamInfo(readFixture(t, "video_4k_hdr_pq.json"))
	if len(streams) != 2 {
		t.Fatalf("len(streams) = %d, want 2", len(streams))
	}

	if streams[0].CodecName != "truehd" || streams[0].Channels != 8 || streams[0].Index != 0 {
		t.Errorf("stream 0 = %+v", streams[0])
	}
	if streams[0].Disposition.Default != 1 || streams[0].Disposition.Original != 1 {
		t.Errorf("stream 0 disposition = %+v", streams[0].Disposition)
	}

	if streams[1].CodecName != "ac3" || streams[1].Channels != 6 || streams[1].Index != 1 {
		t.Errorf("stream 1 = %+v", streams[1])
	}
	if streams[1].Disposition.Dub != 1 {
		t.Errorf("stream 1 disposition = %+v", streams[1].Disposition)
	}
}

func TestExtractMediaInfo(t *testing.T) {
	info := extractMediaInfo(readFixture(t, "video_1080p_sdr.json"))
	if info.Duration != 120.5 {
		t.Errorf("Duration = %g, want 120.5", info.Duration)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("dimensions = %dx%d", info.Width, info.Height)
	}
	if info.TotalFrames != 2892 {
		t.Errorf("TotalFrames = %d, want 2892", info.TotalFrames)
	}
}

func TestDetectHDR(t *testing.T) {
	tests := []struct {
		name      string
		primaries string
		transfer  string
		matrix    string
		want      bool
	}{
		{"plain BT.709", "bt709", "bt709", "bt709", false},
		{"PQ with wide gamut", "bt2020", "smpte2084", "bt2020nc", true},
		{"HLG broadcast", "bt2020", "arib-std-b67", "bt2020nc", true},
		{"wide primaries alone", "bt2020", "bt709", "bt709", true},
		{"PQ transfer alone", "bt709", "smpte2084", "bt709", true},
		{"wide matrix alone", "bt709", "bt709", "bt2020nc", true},
		{"nothing reported", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectHDR(tt.primaries, tt.transfer, tt.matrix); got != tt.want {
				t.Errorf("detectHDR(%q, %q, %q) = %v", tt.primaries, tt.transfer, tt.matrix, got)
			}
		})
	}
}
