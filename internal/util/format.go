// Package util provides small shared helpers: formatting, filesystem
// checks, and host-capacity probing.
package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	KiB = 1024
	MiB = KiB * 1024
	GiB = MiB * 1024

	secondsPerMinute = 60
	secondsPerHour   = 3600
)

// FormatBytes renders a byte count with binary units (B, KiB, MiB, GiB).
func FormatBytes(bytes uint64) string {
	bf := float64(bytes)
	switch {
	case bf >= GiB:
		return fmt.Sprintf("%.2f GiB", bf/GiB)
	case bf >= MiB:
		return fmt.Sprintf("%.2f MiB", bf/MiB)
	case bf >= KiB:
		return fmt.Sprintf("%.2f KiB", bf/KiB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatBytesReadable renders a byte count as both MB and GB.
func FormatBytesReadable(bytes uint64) string {
	bf := float64(bytes)
	return fmt.Sprintf("%.2f MB (%.2f GB)", bf/MiB, bf/GiB)
}

// FormatDuration renders seconds as HH:MM:SS, or "??:??:??" when the value
// is negative or NaN.
func FormatDuration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		return "??:??:??"
	}
	return FormatDurationFromSecs(int64(seconds))
}

// FormatDurationFromSecs renders whole seconds as HH:MM:SS.
func FormatDurationFromSecs(secs int64) string {
	return fmt.Sprintf("%02d:%02d:%02d",
		secs/secondsPerHour,
		(secs%secondsPerHour)/secondsPerMinute,
		secs%secondsPerMinute)
}

// ParseFFmpegTime parses ffmpeg's HH:MM:SS.ms elapsed-time form into
// seconds.
func ParseFFmpegTime(timeStr string) (float64, bool) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 3 {
		return 0, false
	}

	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, false
		}
		vals[i] = v
	}
	return vals[0]*secondsPerHour + vals[1]*secondsPerMinute + vals[2], true
}

// CalculateSizeReduction returns the percentage saved going from inputSize
// to outputSize; negative when the output grew.
func CalculateSizeReduction(inputSize, outputSize uint64) float64 {
	if inputSize == 0 {
		return 0
	}
	return (float64(inputSize) - float64(outputSize)) / float64(inputSize) * 100
}
