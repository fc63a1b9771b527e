package ffmpeg

import (
	"fmt"

	"github.com/five82/carve/internal/ffprobe"
)

// EncodeParams describes one whole-file ffmpeg encode: the libsvtav1 video
// settings, the Opus audio settings, and the filters applied on the way in.
type EncodeParams struct {
	InputPath  string
	OutputPath string

	Quality            uint32
	Preset             uint8
	Tune               uint8
	ACBias             float32
	EnableVarianceBoost   bool
	VarianceBoostStrength uint8
	VarianceOctile        uint8
	FilmGrain          *uint8
	FilmGrainDenoise   *bool
	CropFilter         string
	VideoDenoiseFilter string
	PixelFormat        string
	MatrixCoefficients string
	VideoCodec         string
	AudioCodec         string

	Duration      float64
	AudioChannels []uint32
	AudioStreams  []ffprobe.AudioStreamInfo
	LowPriority   bool
}

// SVTAV1CLIParams renders the -svtav1-params value for this encode.
func (p *EncodeParams) SVTAV1CLIParams() string {
	b := NewSvtAv1ParamsBuilder().
		WithTune(p.Tune).
		WithACBias(p.ACBias).
		WithEnableVarianceBoost(p.EnableVarianceBoost)

	if p.EnableVarianceBoost {
		b.WithVarianceBoostStrength(p.VarianceBoostStrength).
			WithVarianceOctile(p.VarianceOctile)
	}
	if p.FilmGrain != nil {
		b.AddParam("film-grain", fmt.Sprintf("%d", *p.FilmGrain))
		if p.FilmGrainDenoise != nil {
			denoise := "0"
			if *p.FilmGrainDenoise {
				denoise = "1"
			}
			b.AddParam("film-grain-denoise", denoise)
		}
	}
	return b.Build()
}

// BuildCommand assembles the full ffmpeg argument list for one encode.
// With disableAudio set, audio streams are dropped instead of transcoded.
func BuildCommand(p *EncodeParams, disableAudio bool) []string {
	args := []string{
		"-hide_banner",
		"-y",
		"-i", p.InputPath,
	}

	filters := NewVideoFilterChain().
		AddCrop(p.CropFilter).
		AddFilter(p.VideoDenoiseFilter)
	if !filters.IsEmpty() {
		args = append(args, "-vf", filters.Build())
	}

	args = append(args,
		"-map", "0:v:0",
		"-c:v", p.VideoCodec,
		"-preset", fmt.Sprintf("%d", p.Preset),
		"-crf", fmt.Sprintf("%d", p.Quality),
		"-pix_fmt", p.PixelFormat,
	)
	if svt := p.SVTAV1CLIParams(); svt != "" {
		args = append(args, "-svtav1-params", svt)
	}
	if p.MatrixCoefficients != "" {
		args = append(args, "-colorspace", p.MatrixCoefficients)
	}

	if disableAudio || len(p.AudioStreams) == 0 {
		args = append(args, "-an")
	} else {
		for i, stream := range p.AudioStreams {
			args = append(args,
				"-map", fmt.Sprintf("0:a:%d", i),
				fmt.Sprintf("-c:a:%d", i), p.AudioCodec,
				fmt.Sprintf("-b:a:%d", i), fmt.Sprintf("%dk", CalculateAudioBitrate(stream.Channels)),
			)
		}
	}

	args = append(args,
		"-map_metadata", "0",
		"-map_chapters", "0",
		p.OutputPath,
	)
	return args
}

// CalculateAudioBitrate returns the Opus bitrate in kbps for a channel
// layout: 64 mono, 128 stereo, 256 for 5.1, 384 for 7.1, and ~48 kbps per
// channel for anything else.
func CalculateAudioBitrate(channels uint32) uint32 {
	switch channels {
	case 1:
		return 64
	case 2:
		return 128
	case 6:
		return 256
	case 8:
		return 384
	default:
		return channels * 48
	}
}
