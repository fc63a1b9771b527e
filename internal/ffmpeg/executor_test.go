package ffmpeg

import (
	"strings"
	"testing"
)

func TestStatusField(t *testing.T) {
	line := "frame=  480 fps= 24 q=35.0 size=    1024KiB time=00:00:20.00 bitrate= 419.4kbits/s speed=1.01x"

	tests := []struct {
		key  string
		want string
	}{
		{"frame", "480"},
		{"fps", "24"},
		{"bitrate", "419.4kbits/s"},
		{"speed", "1.01x"},
		{"missing", ""},
	}
	for _, tt := range tests {
		if got := statusField(line, tt.key); got != tt.want {
			t.Errorf("statusField(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestParseProgressLine(t *testing.T) {
	line := "frame=  480 fps= 24 q=35.0 size=    1024KiB time=00:00:20.00 bitrate= 419.4kbits/s speed=2.00x"

	p := parseProgressLine(line, 40.0, 960)
	if p.CurrentFrame != 480 {
		t.Errorf("CurrentFrame = %d, want 480", p.CurrentFrame)
	}
	if p.TotalFrames != 960 {
		t.Errorf("TotalFrames = %d, want 960", p.TotalFrames)
	}
	if p.FPS != 24 {
		t.Errorf("FPS = %g, want 24", p.FPS)
	}
	if p.Speed != 2.0 {
		t.Errorf("Speed = %g, want 2", p.Speed)
	}
	if p.ElapsedSecs != 20.0 {
		t.Errorf("ElapsedSecs = %g, want 20", p.ElapsedSecs)
	}
	if p.Percent != 50.0 {
		t.Errorf("Percent = %g, want 50", p.Percent)
	}
	// 20s of video left at 2x speed.
	if p.ETA.Seconds() != 10 {
		t.Errorf("ETA = %v, want 10s", p.ETA)
	}
}

func TestParseProgressLineClampsPercent(t *testing.T) {
	line := "frame= 1000 fps= 24 time=00:01:00.00 speed=1.00x"
	p := parseProgressLine(line, 30.0, 1000)
	if p.Percent != 100 {
		t.Errorf("Percent = %g, want clamped 100", p.Percent)
	}
}

func TestBuildCommandShape(t *testing.T) {
	grain := uint8(8)
	params := &EncodeParams{
		InputPath:   "in.mkv",
		OutputPath:  "out.mkv",
		Quality:     27,
		Preset:      6,
		Tune:        0,
		ACBias:      0.1,
		FilmGrain:   &grain,
		CropFilter:  "crop=1920:800:0:140",
		PixelFormat: "yuv420p10le",
		VideoCodec:  "libsvtav1",
		AudioCodec:  "libopus",
	}

	joined := strings.Join(BuildCommand(params, true), " ")

	for _, want := range []string{
		"-i in.mkv", "-vf crop=1920:800:0:140", "-c:v libsvtav1",
		"-crf 27", "-preset 6", "film-grain=8", "-an", "out.mkv",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("command %q missing %q", joined, want)
		}
	}
}
