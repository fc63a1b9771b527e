package ffmpeg

import (
	"strings"
	"testing"
)

func TestSvtAv1ParamsBuilder(t *testing.T) {
	full := NewSvtAv1ParamsBuilder().
		WithTune(3).
		WithACBias(0.1).
		WithEnableVarianceBoost(true).
		WithVarianceBoostStrength(1).
		WithVarianceOctile(7).
		AddParam("film-grain", "8").
		Build()

	for _, want := range []string{
		"tune=3", "ac-bias=0.1", "enable-variance-boost=1",
		"variance-boost-strength=1", "variance-octile=7", "film-grain=8",
	} {
		if !strings.Contains(full, want) {
			t.Errorf("params %q missing %q", full, want)
		}
	}
	if strings.Count(full, ":") != 5 {
		t.Errorf("params %q not colon-separated as expected", full)
	}

	off := NewSvtAv1ParamsBuilder().WithEnableVarianceBoost(false).Build()
	if off != "enable-variance-boost=0" {
		t.Errorf("disabled boost = %q", off)
	}

	if got := NewSvtAv1ParamsBuilder().Build(); got != "" {
		t.Errorf("empty builder = %q", got)
	}
}

func TestVideoFilterChain(t *testing.T) {
	tests := []struct {
		name  string
		chain *VideoFilterChain
		want  string
	}{
		{"empty", NewVideoFilterChain(), ""},
		{"crop only", NewVideoFilterChain().AddCrop("crop=1920:800:0:140"), "crop=1920:800:0:140"},
		{
			"crop then denoise",
			NewVideoFilterChain().AddCrop("crop=1920:800:0:140").AddFilter("hqdn3d=1.5:1.5:3:3"),
			"crop=1920:800:0:140,hqdn3d=1.5:1.5:3:3",
		},
		{
			"blank entries are dropped",
			NewVideoFilterChain().AddCrop("").AddFilter("").AddCrop("crop=1920:1080:0:0"),
			"crop=1920:1080:0:0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.chain.Build(); got != tt.want {
				t.Errorf("Build() = %q, want %q", got, tt.want)
			}
			if tt.chain.IsEmpty() != (tt.want == "") {
				t.Errorf("IsEmpty() inconsistent with Build()")
			}
		})
	}
}
