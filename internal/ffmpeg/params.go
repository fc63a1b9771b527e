// Package ffmpeg builds and runs whole-file ffmpeg encodes.
package ffmpeg

import (
	"fmt"
	"strings"
)

// SvtAv1ParamsBuilder accumulates key=value pairs for -svtav1-params, in
// insertion order.
type SvtAv1ParamsBuilder struct {
	params []paramKV
}

type paramKV struct {
	key   string
	value string
}

// NewSvtAv1ParamsBuilder returns an empty builder.
func NewSvtAv1ParamsBuilder() *SvtAv1ParamsBuilder {
	return &SvtAv1ParamsBuilder{}
}

// WithTune sets the tune parameter.
func (b *SvtAv1ParamsBuilder) WithTune(tune uint8) *SvtAv1ParamsBuilder {
	return b.AddParam("tune", fmt.Sprintf("%d", tune))
}

// WithACBias sets the ac-bias parameter.
func (b *SvtAv1ParamsBuilder) WithACBias(acBias float32) *SvtAv1ParamsBuilder {
	return b.AddParam("ac-bias", fmt.Sprintf("%g", acBias))
}

// WithEnableVarianceBoost switches variance boost on or off.
func (b *SvtAv1ParamsBuilder) WithEnableVarianceBoost(enabled bool) *SvtAv1ParamsBuilder {
	val := "0"
	if enabled {
		val = "1"
	}
	return b.AddParam("enable-variance-boost", val)
}

// WithVarianceBoostStrength sets the variance boost strength.
func (b *SvtAv1ParamsBuilder) WithVarianceBoostStrength(strength uint8) *SvtAv1ParamsBuilder {
	return b.AddParam("variance-boost-strength", fmt.Sprintf("%d", strength))
}

// WithVarianceOctile sets the variance octile.
func (b *SvtAv1ParamsBuilder) WithVarianceOctile(octile uint8) *SvtAv1ParamsBuilder {
	return b.AddParam("variance-octile", fmt.Sprintf("%d", octile))
}

// AddParam appends an arbitrary key=value pair.
func (b *SvtAv1ParamsBuilder) AddParam(key, value string) *SvtAv1ParamsBuilder {
	b.params = append(b.params, paramKV{key, value})
	return b
}

// Build renders the accumulated pairs as SVT-AV1's colon-separated form.
func (b *SvtAv1ParamsBuilder) Build() string {
	parts := make([]string, len(b.params))
	for i, p := range b.params {
		parts[i] = p.key + "=" + p.value
	}
	return strings.Join(parts, ":")
}
