package util

import (
	"math"
	"testing"
)

func TestFormatBytes(t *testing.T) {
	cases := map[uint64]string{
		0:                  "0 B",
		1023:               "1023 B",
		1024:               "1.00 KiB",
		1536:               "1.50 KiB",
		1024 * 1024:        "1.00 MiB",
		2 * 1024 * 1024 * 1024: "2.00 GiB",
	}
	for bytes, want := range cases {
		if got := FormatBytes(bytes); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", bytes, got, want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		secs float64
		want string
	}{
		{0, "00:00:00"},
		{59, "00:00:59"},
		{3599, "00:59:59"},
		{3661, "01:01:01"},
		{86400, "24:00:00"},
		{-1, "??:??:??"},
		{math.NaN(), "??:??:??"},
	}
	for _, tt := range cases {
		if got := FormatDuration(tt.secs); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}

func TestParseFFmpegTime(t *testing.T) {
	good := map[string]float64{
		"00:00:00":    0,
		"00:01:00":    60,
		"01:02:03":    3723,
		"00:00:00.5":  0.5,
		"01:30:45.75": 5445.75,
	}
	for input, want := range good {
		got, ok := ParseFFmpegTime(input)
		if !ok || got != want {
			t.Errorf("ParseFFmpegTime(%q) = %v, %v; want %v, true", input, got, ok, want)
		}
	}

	for _, input := range []string{"", "00:00", "a:b:c", "1:2:3:4"} {
		if _, ok := ParseFFmpegTime(input); ok {
			t.Errorf("ParseFFmpegTime(%q) accepted malformed input", input)
		}
	}
}

func TestCalculateSizeReduction(t *testing.T) {
	cases := []struct {
		in, out uint64
		want    float64
	}{
		{100, 50, 50},
		{1000, 250, 75},
		{100, 100, 0},
		{0, 100, 0},    // undefined baseline reads as no change
		{100, 150, -50}, // output grew
	}
	for _, tt := range cases {
		if got := CalculateSizeReduction(tt.in, tt.out); got != tt.want {
			t.Errorf("CalculateSizeReduction(%d, %d) = %v, want %v", tt.in, tt.out, got, tt.want)
		}
	}
}
