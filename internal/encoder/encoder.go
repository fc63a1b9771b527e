// Package encoder builds and runs the SvtAv1EncApp child process that turns
// one chunk's raw YUV into a per-chunk AV1 IVF bitstream.
package encoder

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"github.com/five82/carve/internal/ffms"
)

// SvtAv1EncApp is the external encoder binary invoked for every chunk and
// TQ probe. It is never swapped out per-call: the pipeline's only lever is
// the argument list built by MakeSvtCmd.
const SvtAv1EncApp = "SvtAv1EncApp"

// EncConfig describes one encoder invocation: a single chunk (or TQ probe)
// at a fixed CRF, writing to Output.
type EncConfig struct {
	Inf        *ffms.VidInf
	CRF        float32
	Preset     uint8
	Tune       uint8
	Output     string
	GrainTable *string
	Width      uint32
	Height     uint32
	Frames     int

	// Advanced SVT-AV1 tunings, passed through as their own long flags
	// rather than bundled into a single --svtav1-params string: SvtAv1EncApp
	// accepts each as first-class CLI input, unlike the ffmpeg libsvtav1
	// wrapper used elsewhere in this tree.
	ACBias                float32
	EnableVarianceBoost   bool
	VarianceBoostStrength uint8
	VarianceOctile        uint8
	LogicalProcessors     *uint32
	LowPriority           bool

	// ExtraParams holds trailing user-supplied encoder flags, split on
	// whitespace and appended just before -b <output>.
	ExtraParams string
}

// MakeSvtCmd builds the exec.Cmd for one encoder invocation: 10-bit
// stdin input, explicit width/height/fps, CRF rate control, colorimetry
// passthrough when present on Inf, an optional grain table, and -b <output>
// last. LowPriority asks the OS scheduler to deprioritize the child so it
// does not starve the calling process's own housekeeping goroutines.
func MakeSvtCmd(cfg *EncConfig) *exec.Cmd {
	args := []string{
		"-i", "stdin",
		"--input-depth", "10",
		"--width", fmt.Sprintf("%d", cfg.Width),
		"--forced-max-frame-width", fmt.Sprintf("%d", cfg.Width),
		"--height", fmt.Sprintf("%d", cfg.Height),
		"--forced-max-frame-height", fmt.Sprintf("%d", cfg.Height),
		"--fps-num", fmt.Sprintf("%d", cfg.Inf.FPSNum),
		"--fps-denom", fmt.Sprintf("%d", cfg.Inf.FPSDen),
		"--keyint", "-1",
		"--rc", "0",
		"--scd", "0",
		"--scm", "0",
		"--preset", fmt.Sprintf("%d", cfg.Preset),
		"--tune", fmt.Sprintf("%d", cfg.Tune),
		"--crf", fmt.Sprintf("%.2f", cfg.CRF),
	}

	args = append(args, colorimetryArgs(cfg.Inf)...)

	if cfg.ACBias != 0 {
		args = append(args, "--ac-bias", fmt.Sprintf("%g", cfg.ACBias))
	}
	if cfg.EnableVarianceBoost {
		args = append(args, "--enable-variance-boost", "1")
		if cfg.VarianceBoostStrength > 0 {
			args = append(args, "--variance-boost-strength", fmt.Sprintf("%d", cfg.VarianceBoostStrength))
		}
		if cfg.VarianceOctile > 0 {
			args = append(args, "--variance-octile", fmt.Sprintf("%d", cfg.VarianceOctile))
		}
	}
	if cfg.LogicalProcessors != nil {
		args = append(args, "--lp", fmt.Sprintf("%d", *cfg.LogicalProcessors))
	}
	if cfg.GrainTable != nil && *cfg.GrainTable != "" {
		args = append(args, "--fgs-table", *cfg.GrainTable)
	}

	args = append(args, TrailingParams(cfg.ExtraParams)...)
	args = append(args, "-b", cfg.Output)

	cmd := exec.Command(SvtAv1EncApp, args...)
	// Run the encoder as its own process group leader so a cancelled run
	// can signal any helper processes SvtAv1EncApp spawns, not just its
	// direct PID.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

// colorimetryArgs emits one flag pair per populated VidInf colorimetry
// field: primaries, transfer, matrix, range, chroma position, mastering
// display, and content light.
func colorimetryArgs(inf *ffms.VidInf) []string {
	var args []string
	if inf == nil {
		return args
	}
	if inf.ColorPrimaries != nil {
		args = append(args, "--color-primaries", fmt.Sprintf("%d", *inf.ColorPrimaries))
	}
	if inf.TransferCharacteristics != nil {
		args = append(args, "--transfer-characteristics", fmt.Sprintf("%d", *inf.TransferCharacteristics))
	}
	if inf.MatrixCoefficients != nil {
		args = append(args, "--matrix-coefficients", fmt.Sprintf("%d", *inf.MatrixCoefficients))
	}
	if inf.ColorRange != nil {
		// AVColorRange: 1 = MPEG (studio), 2 = JPEG (full). SvtAv1EncApp
		// wants 0 = studio, 1 = full.
		full := 0
		if *inf.ColorRange == 2 {
			full = 1
		}
		args = append(args, "--color-range", fmt.Sprintf("%d", full))
	}
	if inf.ChromaSamplePosition != nil {
		if pos := chromaPositionName(*inf.ChromaSamplePosition); pos != "" {
			args = append(args, "--chroma-sample-position", pos)
		}
	}
	if inf.MasteringDisplay != nil && *inf.MasteringDisplay != "" {
		args = append(args, "--mastering-display", *inf.MasteringDisplay)
	}
	if inf.ContentLight != nil && *inf.ContentLight != "" {
		args = append(args, "--content-light", *inf.ContentLight)
	}
	return args
}

// chromaPositionName maps an AVChromaLocation value onto the position name
// SvtAv1EncApp accepts. Locations AV1 cannot signal return "".
func chromaPositionName(loc int32) string {
	switch loc {
	case 1: // left
		return "vertical"
	case 3: // topleft
		return "colocated"
	default:
		return ""
	}
}

// TrailingParams splits a user-supplied param string on whitespace and
// returns the tokens to append just before -b <output>.
func TrailingParams(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	return strings.Fields(raw)
}
