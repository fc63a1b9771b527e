// Package validation provides post-encode validation checks.
package validation

// Result accumulates the outcome of every post-encode check.
type Result struct {
	IsAV1                    bool
	Is10Bit                  bool
	IsCropCorrect            bool
	IsDurationCorrect        bool
	IsHDRCorrect             bool
	IsAudioOpus              bool
	IsAudioTrackCountCorrect bool
	IsSyncPreserved          bool

	CodecName          string
	PixelFormat        string
	BitDepth           *uint8
	ActualDimensions   *[2]uint32
	ExpectedDimensions *[2]uint32
	CropMessage        string
	ActualDuration     *float64
	ExpectedDuration   *float64
	DurationMessage    string
	ExpectedHDR        *bool
	ActualHDR          *bool
	HDRMessage         string
	AudioCodecs        []string
	AudioMessage       string
	SyncDriftMs        *float64
	SyncMessage        string
}

// ValidationStep is one named check with its outcome, in report order.
type ValidationStep struct {
	Name    string
	Passed  bool
	Details string
}

// IsValid reports whether every check passed.
func (r *Result) IsValid() bool {
	return r.IsAV1 &&
		r.Is10Bit &&
		r.IsCropCorrect &&
		r.IsDurationCorrect &&
		r.IsHDRCorrect &&
		r.IsAudioOpus &&
		r.IsAudioTrackCountCorrect &&
		r.IsSyncPreserved
}

// GetValidationSteps renders the result as the per-check list the reporters
// display.
func (r *Result) GetValidationSteps() []ValidationStep {
	return []ValidationStep{
		{Name: "Video codec", Passed: r.IsAV1, Details: r.codecDetails()},
		{Name: "Bit depth", Passed: r.Is10Bit, Details: r.bitDepthDetails()},
		{Name: "Crop detection", Passed: r.IsCropCorrect, Details: r.CropMessage},
		{Name: "Video duration", Passed: r.IsDurationCorrect, Details: r.DurationMessage},
		{Name: "HDR/SDR status", Passed: r.IsHDRCorrect, Details: r.HDRMessage},
		{Name: "Audio tracks", Passed: r.IsAudioOpus && r.IsAudioTrackCountCorrect, Details: r.AudioMessage},
		{Name: "Audio/video sync", Passed: r.IsSyncPreserved, Details: r.SyncMessage},
	}
}

// GetFailures returns a "Name: Details" line for each failed check.
func (r *Result) GetFailures() []string {
	var failures []string
	for _, step := range r.GetValidationSteps() {
		if !step.Passed {
			failures = append(failures, step.Name+": "+step.Details)
		}
	}
	return failures
}

func (r *Result) codecDetails() string {
	switch {
	case r.IsAV1:
		return "AV1 (" + r.CodecName + ")"
	case r.CodecName != "":
		return "Expected AV1, got " + r.CodecName
	default:
		return "Unknown codec"
	}
}

func (r *Result) bitDepthDetails() string {
	if r.BitDepth == nil {
		if r.PixelFormat != "" {
			return "Pixel format: " + r.PixelFormat
		}
		return "Unknown bit depth"
	}

	var depth string
	switch *r.BitDepth {
	case 8:
		depth = "8-bit"
	case 10:
		depth = "10-bit"
	case 12:
		depth = "12-bit"
	}
	if depth != "" && r.PixelFormat != "" {
		return depth + " (" + r.PixelFormat + ")"
	}
	return depth
}
