package encoder

import (
	"strings"
	"testing"

	"github.com/five82/carve/internal/ffms"
)

func contains(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

func TestMakeSvtCmdCoreFlags(t *testing.T) {
	inf := &ffms.VidInf{FPSNum: 24000, FPSDen: 1001}
	cmd := MakeSvtCmd(&EncConfig{
		Inf:    inf,
		CRF:    28,
		Preset: 4,
		Tune:   2,
		Output: "encode/0000.ivf",
		Width:  1920,
		Height: 1080,
	})

	args := cmd.Args[1:]
	for _, want := range [][2]string{
		{"-i", "stdin"},
		{"--input-depth", "10"},
		{"--width", "1920"},
		{"--height", "1080"},
		{"--fps-num", "24000"},
		{"--fps-denom", "1001"},
		{"--keyint", "-1"},
		{"--rc", "0"},
		{"--scd", "0"},
		{"--scm", "0"},
		{"--crf", "28.00"},
		{"-b", "encode/0000.ivf"},
	} {
		if !contains(args, want[0], want[1]) {
			t.Errorf("args %v missing %s %s", args, want[0], want[1])
		}
	}
}

func TestMakeSvtCmdColorimetry(t *testing.T) {
	cp, tc, mc := int32(1), int32(1), int32(1)
	display := "G(0.265,0.690)B(0.150,0.060)R(0.680,0.320)WP(0.3127,0.3290)L(1000,0.0050)"
	inf := &ffms.VidInf{FPSNum: 24, FPSDen: 1, ColorPrimaries: &cp, TransferCharacteristics: &tc, MatrixCoefficients: &mc, MasteringDisplay: &display}

	cmd := MakeSvtCmd(&EncConfig{Inf: inf, Width: 3840, Height: 2160, Output: "o.ivf"})
	args := cmd.Args[1:]

	if !contains(args, "--color-primaries", "1") {
		t.Errorf("expected --color-primaries 1 in %v", args)
	}
	if !contains(args, "--mastering-display", display) {
		t.Errorf("expected mastering display flag in %v", args)
	}
	if contains(args, "--content-light", "") {
		t.Errorf("unexpected content-light flag when unset: %v", args)
	}
}

func TestMakeSvtCmdGrainTableAndLP(t *testing.T) {
	inf := &ffms.VidInf{FPSNum: 24, FPSDen: 1}
	grain := "grain.tbl"
	lp := uint32(4)
	cmd := MakeSvtCmd(&EncConfig{Inf: inf, Width: 1920, Height: 1080, Output: "o.ivf", GrainTable: &grain, LogicalProcessors: &lp})
	args := cmd.Args[1:]

	if !contains(args, "--fgs-table", grain) {
		t.Errorf("expected grain table flag in %v", args)
	}
	if !contains(args, "--lp", "4") {
		t.Errorf("expected --lp 4 in %v", args)
	}
}

func TestMakeSvtCmdTrailingParamsBeforeOutput(t *testing.T) {
	inf := &ffms.VidInf{FPSNum: 24, FPSDen: 1}
	cmd := MakeSvtCmd(&EncConfig{Inf: inf, Width: 1920, Height: 1080, Output: "o.ivf", ExtraParams: `--film-grain 8 --irefresh-type "2"`})
	args := cmd.Args[1:]

	outIdx := -1
	grainIdx := -1
	for i, a := range args {
		if a == "-b" {
			outIdx = i
		}
		if a == "--film-grain" {
			grainIdx = i
		}
	}
	if outIdx == -1 || grainIdx == -1 || grainIdx > outIdx {
		t.Errorf("expected trailing params before -b, got %v", args)
	}
}

func TestTrailingParamsSplitsOnWhitespace(t *testing.T) {
	got := TrailingParams("  --a  1   --b 2 ")
	want := []string{"--a", "1", "--b", "2"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTrailingParamsEmpty(t *testing.T) {
	if got := TrailingParams("   "); got != nil {
		t.Errorf("expected nil for blank input, got %v", got)
	}
}

func TestSvtAv1EncAppConstant(t *testing.T) {
	if !strings.Contains(SvtAv1EncApp, "SvtAv1EncApp") {
		t.Errorf("unexpected binary name %q", SvtAv1EncApp)
	}
}
