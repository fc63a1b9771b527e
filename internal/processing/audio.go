package processing

import (
	"fmt"
	"strings"

	"github.com/five82/carve/internal/ffmpeg"
	"github.com/five82/carve/internal/ffprobe"
)

// GetAudioChannels returns the per-stream audio channel counts, or nil when
// the input cannot be probed. Audio analysis is best-effort: a file with no
// readable audio still encodes.
func GetAudioChannels(inputPath string) []uint32 {
	channels, err := ffprobe.GetAudioChannels(inputPath)
	if err != nil {
		return nil
	}
	return channels
}

// GetAudioStreamInfo returns detailed audio stream metadata, or nil when
// the input cannot be probed.
func GetAudioStreamInfo(inputPath string) []ffprobe.AudioStreamInfo {
	streams, err := ffprobe.GetAudioStreamInfo(inputPath)
	if err != nil {
		return nil
	}
	return streams
}

// FormatAudioDescription renders a channel-count summary for the
// initialization banner.
func FormatAudioDescription(channels []uint32) string {
	switch len(channels) {
	case 0:
		return "No audio"
	case 1:
		return fmt.Sprintf("%d channels", channels[0])
	}

	parts := make([]string, len(channels))
	for i, ch := range channels {
		parts[i] = fmt.Sprintf("Stream %d (%dch)", i, ch)
	}
	return fmt.Sprintf("%d streams: %s", len(channels), strings.Join(parts, ", "))
}

// FormatAudioDescriptionConfig renders the audio line of the encoding
// configuration display, including the Opus bitrate each stream will get.
func FormatAudioDescriptionConfig(channels []uint32, streams []ffprobe.AudioStreamInfo) string {
	if streams == nil {
		return FormatAudioDescription(channels)
	}

	switch len(streams) {
	case 0:
		return "No audio"
	case 1:
		return fmt.Sprintf("%d channels @ %dkbps Opus",
			streams[0].Channels, ffmpeg.CalculateAudioBitrate(streams[0].Channels))
	}

	parts := make([]string, len(streams))
	for i, s := range streams {
		parts[i] = fmt.Sprintf("Stream %d: %dch [%dkbps Opus]",
			s.Index, s.Channels, ffmpeg.CalculateAudioBitrate(s.Channels))
	}
	return strings.Join(parts, ", ")
}

// GenerateAudioResultsDescription renders the completed-encode audio
// summary. Detailed stream info is preferred; bare channel counts serve as
// the fallback when probing only partially succeeded.
func GenerateAudioResultsDescription(channels []uint32, streams []ffprobe.AudioStreamInfo) string {
	counts := channels
	if len(streams) > 0 {
		counts = make([]uint32, len(streams))
		for i, s := range streams {
			counts[i] = s.Channels
		}
	}

	switch len(counts) {
	case 0:
		return "No audio"
	case 1:
		return fmt.Sprintf("Opus %dch @ %dkbps", counts[0], ffmpeg.CalculateAudioBitrate(counts[0]))
	}

	parts := make([]string, len(counts))
	for i, ch := range counts {
		parts[i] = fmt.Sprintf("%dch@%dk", ch, ffmpeg.CalculateAudioBitrate(ch))
	}
	return fmt.Sprintf("Opus (%s)", strings.Join(parts, ", "))
}
