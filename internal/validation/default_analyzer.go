package validation

import (
	"github.com/five82/carve/internal/ffprobe"
	"github.com/five82/carve/internal/mediainfo"
)

// DefaultAnalyzer backs MediaAnalyzer with the real ffprobe and mediainfo
// binaries.
type DefaultAnalyzer struct{}

// NewDefaultAnalyzer returns the tool-backed analyzer.
func NewDefaultAnalyzer() *DefaultAnalyzer {
	return &DefaultAnalyzer{}
}

func (a *DefaultAnalyzer) GetVideoProperties(path string) (*AnalyzerVideoProperties, error) {
	props, err := ffprobe.GetVideoProperties(path)
	if err != nil {
		return nil, err
	}
	return &AnalyzerVideoProperties{
		Width:        props.Width,
		Height:       props.Height,
		DurationSecs: props.DurationSecs,
		BitDepth:     props.HDRInfo.BitDepth,
	}, nil
}

func (a *DefaultAnalyzer) GetAudioStreams(path string) ([]AnalyzerAudioStream, error) {
	streams, err := ffprobe.GetAudioStreamInfo(path)
	if err != nil {
		return nil, err
	}
	out := make([]AnalyzerAudioStream, len(streams))
	for i, s := range streams {
		out[i] = AnalyzerAudioStream{Codec: s.CodecName, Channels: int(s.Channels)}
	}
	return out, nil
}

func (a *DefaultAnalyzer) GetVideoCodec(path string) (string, error) {
	return ffprobe.GetVideoCodecName(path)
}

func (a *DefaultAnalyzer) GetHDRInfo(path string) (*AnalyzerHDRInfo, error) {
	info, err := mediainfo.GetMediaInfo(path)
	if err != nil {
		return nil, err
	}
	hdr := mediainfo.DetectHDR(info)
	return &AnalyzerHDRInfo{IsHDR: hdr.IsHDR, BitDepth: hdr.BitDepth}, nil
}

func (a *DefaultAnalyzer) IsHDRDetectionAvailable() bool {
	return mediainfo.IsAvailable()
}
