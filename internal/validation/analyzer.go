package validation

// MediaAnalyzer abstracts the external probing tools so the validation
// logic can run in tests without ffprobe or mediainfo installed.
type MediaAnalyzer interface {
	// GetVideoProperties returns the video stream's basic properties.
	GetVideoProperties(path string) (*AnalyzerVideoProperties, error)

	// GetAudioStreams returns one entry per audio stream.
	GetAudioStreams(path string) ([]AnalyzerAudioStream, error)

	// GetVideoCodec returns the video codec name.
	GetVideoCodec(path string) (string, error)

	// GetHDRInfo returns the dynamic-range probe's result.
	GetHDRInfo(path string) (*AnalyzerHDRInfo, error)

	// IsHDRDetectionAvailable reports whether GetHDRInfo can work at all
	// (mediainfo on PATH).
	IsHDRDetectionAvailable() bool
}

// AnalyzerVideoProperties is the slice of video-stream metadata the checks
// consume.
type AnalyzerVideoProperties struct {
	Width        uint32
	Height       uint32
	DurationSecs float64
	BitDepth     *uint8
}

// AnalyzerAudioStream describes one audio stream.
type AnalyzerAudioStream struct {
	Codec    string
	Channels int
}

// AnalyzerHDRInfo is the dynamic-range probe's result.
type AnalyzerHDRInfo struct {
	IsHDR    bool
	BitDepth *uint8
}
