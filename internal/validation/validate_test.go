package validation

import (
	"errors"
	"strings"
	"testing"
)

// stubAnalyzer satisfies MediaAnalyzer with canned responses.
type stubAnalyzer struct {
	props    *AnalyzerVideoProperties
	propsErr error
	audio    []AnalyzerAudioStream
	audioErr error
	codec    string
	codecErr error
	hdr      *AnalyzerHDRInfo
	hdrErr   error
	hasHDR   bool
}

func (s *stubAnalyzer) GetVideoProperties(string) (*AnalyzerVideoProperties, error) {
	return s.props, s.propsErr
}
func (s *stubAnalyzer) GetAudioStreams(string) ([]AnalyzerAudioStream, error) {
	return s.audio, s.audioErr
}
func (s *stubAnalyzer) GetVideoCodec(string) (string, error) { return s.codec, s.codecErr }
func (s *stubAnalyzer) GetHDRInfo(string) (*AnalyzerHDRInfo, error) {
	return s.hdr, s.hdrErr
}
func (s *stubAnalyzer) IsHDRDetectionAvailable() bool { return s.hasHDR }

func u8(v uint8) *uint8          { return &v }
func f64(v float64) *float64     { return &v }
func b(v bool) *bool             { return &v }
func dims(w, h uint32) *[2]uint32 { return &[2]uint32{w, h} }
func i(v int) *int               { return &v }

// goodOutput is a stub describing a clean 1920x800 SDR AV1 encode with one
// Opus track.
func goodOutput() *stubAnalyzer {
	return &stubAnalyzer{
		props: &AnalyzerVideoProperties{
			Width: 1920, Height: 800, DurationSecs: 120.5, BitDepth: u8(10),
		},
		audio:  []AnalyzerAudioStream{{Codec: "opus", Channels: 2}},
		codec:  "av1",
		hdr:    &AnalyzerHDRInfo{IsHDR: false, BitDepth: u8(10)},
		hasHDR: true,
	}
}

func TestValidateCleanOutput(t *testing.T) {
	result, err := ValidateWithAnalyzer(goodOutput(), "/out/movie.mkv", Options{
		ExpectedDimensions:  dims(1920, 800),
		ExpectedDuration:    f64(120.5),
		ExpectedHDR:         b(false),
		ExpectedAudioTracks: i(1),
	})
	if err != nil {
		t.Fatalf("ValidateWithAnalyzer: %v", err)
	}
	if !result.IsValid() {
		t.Fatalf("expected all checks to pass, failures: %v", result.GetFailures())
	}
	if got := len(result.GetValidationSteps()); got != 7 {
		t.Errorf("expected 7 validation steps, got %d", got)
	}
}

func TestValidateFailureModes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*stubAnalyzer)
		opts   Options
		check  func(t *testing.T, r *Result)
	}{
		{
			name:   "wrong codec",
			mutate: func(s *stubAnalyzer) { s.codec = "hevc" },
			check: func(t *testing.T, r *Result) {
				if r.IsAV1 {
					t.Error("hevc output passed the codec check")
				}
				if r.CodecName != "hevc" {
					t.Errorf("CodecName = %q, want hevc", r.CodecName)
				}
			},
		},
		{
			name:   "codec probe error",
			mutate: func(s *stubAnalyzer) { s.codecErr = errors.New("no stream") },
			check: func(t *testing.T, r *Result) {
				if r.IsAV1 {
					t.Error("unreadable codec passed the codec check")
				}
			},
		},
		{
			name:   "uncropped dimensions",
			mutate: func(s *stubAnalyzer) { s.props.Height = 1080 },
			opts:   Options{ExpectedDimensions: dims(1920, 800)},
			check: func(t *testing.T, r *Result) {
				if r.IsCropCorrect {
					t.Error("1080-high output matched an 800-high expectation")
				}
			},
		},
		{
			name:   "duration off by more than a second",
			mutate: func(s *stubAnalyzer) { s.props.DurationSecs = 122.0 },
			opts:   Options{ExpectedDuration: f64(120.5)},
			check: func(t *testing.T, r *Result) {
				if r.IsDurationCorrect {
					t.Error("1.5s duration drift passed the duration check")
				}
				if r.IsSyncPreserved {
					t.Error("1500ms drift passed the sync check")
				}
			},
		},
		{
			name:   "non-opus audio",
			mutate: func(s *stubAnalyzer) { s.audio = []AnalyzerAudioStream{{Codec: "aac", Channels: 2}} },
			check: func(t *testing.T, r *Result) {
				if r.IsAudioOpus {
					t.Error("aac track passed the Opus check")
				}
			},
		},
		{
			name:   "missing audio track",
			mutate: func(s *stubAnalyzer) {},
			opts:   Options{ExpectedAudioTracks: i(2)},
			check: func(t *testing.T, r *Result) {
				if r.IsAudioTrackCountCorrect {
					t.Error("1 track passed a 2-track expectation")
				}
			},
		},
		{
			name:   "sdr where hdr expected",
			mutate: func(s *stubAnalyzer) {},
			opts:   Options{ExpectedHDR: b(true)},
			check: func(t *testing.T, r *Result) {
				if r.IsHDRCorrect {
					t.Error("SDR output passed an HDR expectation")
				}
				if r.HDRMessage != "Expected HDR, found SDR" {
					t.Errorf("HDRMessage = %q", r.HDRMessage)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := goodOutput()
			tt.mutate(stub)
			result, err := ValidateWithAnalyzer(stub, "/out/movie.mkv", tt.opts)
			if err != nil {
				t.Fatalf("ValidateWithAnalyzer: %v", err)
			}
			tt.check(t, result)
		})
	}
}

func TestValidateToleratedDrift(t *testing.T) {
	stub := goodOutput()
	stub.props.DurationSecs = 120.8 // 0.3s off, inside the 1s slack

	result, err := ValidateWithAnalyzer(stub, "/out/movie.mkv", Options{
		ExpectedDuration: f64(120.5),
	})
	if err != nil {
		t.Fatalf("ValidateWithAnalyzer: %v", err)
	}
	if !result.IsDurationCorrect {
		t.Error("0.3s drift failed the duration check")
	}
	if !result.IsSyncPreserved {
		t.Error("300ms drift failed the sync check")
	}
}

func TestValidateHDRDetectionUnavailable(t *testing.T) {
	stub := goodOutput()
	stub.hasHDR = false

	result, err := ValidateWithAnalyzer(stub, "/out/movie.mkv", Options{ExpectedHDR: b(true)})
	if err != nil {
		t.Fatalf("ValidateWithAnalyzer: %v", err)
	}
	if !result.IsHDRCorrect {
		t.Error("missing mediainfo should skip, not fail, the HDR check")
	}
	if !strings.Contains(result.HDRMessage, "skipped") {
		t.Errorf("HDRMessage = %q, want a skip notice", result.HDRMessage)
	}
}

func TestValidateNoExpectations(t *testing.T) {
	result, err := ValidateWithAnalyzer(goodOutput(), "/out/movie.mkv", Options{})
	if err != nil {
		t.Fatalf("ValidateWithAnalyzer: %v", err)
	}
	if !result.IsCropCorrect || !result.IsDurationCorrect || !result.IsHDRCorrect {
		t.Error("checks with no expectation must pass")
	}
	// The actual dynamic range is still recorded for reporting.
	if result.ActualHDR == nil || *result.ActualHDR {
		t.Error("expected ActualHDR to be recorded as SDR")
	}
}

func TestValidatePropsError(t *testing.T) {
	stub := &stubAnalyzer{propsErr: errors.New("ffprobe exploded")}
	if _, err := ValidateWithAnalyzer(stub, "/out/movie.mkv", Options{}); err == nil {
		t.Fatal("expected an error when the output cannot be probed")
	}
}

func TestValidateBitDepthFallsBackToHDRProbe(t *testing.T) {
	stub := goodOutput()
	stub.props.BitDepth = nil
	stub.hdr.BitDepth = u8(8)

	result, err := ValidateWithAnalyzer(stub, "/out/movie.mkv", Options{})
	if err != nil {
		t.Fatalf("ValidateWithAnalyzer: %v", err)
	}
	if result.Is10Bit {
		t.Error("8-bit output (via mediainfo fallback) passed the depth check")
	}
}
