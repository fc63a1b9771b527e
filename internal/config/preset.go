package config

import "strings"

// Preset names a grouped bundle of Carve defaults a caller can apply in
// one step instead of setting CRF/SVT-AV1 fields individually.
type Preset string

const (
	// PresetGrain favors preserving fine film grain: a slower SVT-AV1
	// preset, lower CRF, and SVT-AV1's own grain synthesis enabled so the
	// source can be denoised before encode without losing texture.
	PresetGrain Preset = "grain"

	// PresetClean is the balanced default: no grain synthesis, standard
	// CRF and preset values.
	PresetClean Preset = "clean"

	// PresetQuick trades quality for speed: a faster SVT-AV1 preset and
	// higher CRF.
	PresetQuick Preset = "quick"
)

// ParsePreset parses a preset name case-insensitively. Returns
// ErrInvalidPreset for any unrecognized (including empty) input.
func ParsePreset(s string) (Preset, error) {
	switch Preset(strings.ToLower(s)) {
	case PresetGrain:
		return PresetGrain, nil
	case PresetClean:
		return PresetClean, nil
	case PresetQuick:
		return PresetQuick, nil
	default:
		return "", ErrInvalidPreset
	}
}

// PresetValues holds the concrete field values a Preset applies to a Config.
type PresetValues struct {
	CRFSD                  uint8
	CRFHD                  uint8
	CRFUHD                 uint8
	SVTAV1Preset           uint8
	VideoDenoiseFilter     string
	SVTAV1FilmGrain        *uint8
	SVTAV1FilmGrainDenoise *bool
}

func u8(v uint8) *uint8 { return &v }
func b(v bool) *bool    { return &v }

// GetPresetValues returns the concrete field values for a Preset. Unknown
// presets return the PresetClean values.
func GetPresetValues(p Preset) PresetValues {
	switch p {
	case PresetGrain:
		return PresetValues{
			CRFSD:                  DefaultCRFSD - 1,
			CRFHD:                  DefaultCRFHD - 1,
			CRFUHD:                 DefaultCRFUHD - 1,
			SVTAV1Preset:           4,
			VideoDenoiseFilter:     "hqdn3d=1.5:1.5:3:3",
			SVTAV1FilmGrain:        u8(8),
			SVTAV1FilmGrainDenoise: b(true),
		}
	case PresetQuick:
		return PresetValues{
			CRFSD:        DefaultCRFSD + 3,
			CRFHD:        DefaultCRFHD + 3,
			CRFUHD:       DefaultCRFUHD + 3,
			SVTAV1Preset: 8,
		}
	case PresetClean:
		fallthrough
	default:
		return PresetValues{
			CRFSD:        DefaultCRFSD,
			CRFHD:        DefaultCRFHD,
			CRFUHD:       DefaultCRFUHD,
			SVTAV1Preset: DefaultSVTAV1Preset,
		}
	}
}

// ApplyPreset overwrites c's CRF, SVT-AV1 preset, denoise-filter, and film
// grain fields with the named Preset's values, and records it in
// CarvePreset.
func (c *Config) ApplyPreset(p Preset) {
	v := GetPresetValues(p)

	c.CRFSD = v.CRFSD
	c.CRFHD = v.CRFHD
	c.CRFUHD = v.CRFUHD
	c.SVTAV1Preset = v.SVTAV1Preset
	c.VideoDenoiseFilter = v.VideoDenoiseFilter
	c.SVTAV1FilmGrain = v.SVTAV1FilmGrain
	c.SVTAV1FilmGrainDenoise = v.SVTAV1FilmGrainDenoise

	preset := p
	c.CarvePreset = &preset
}
