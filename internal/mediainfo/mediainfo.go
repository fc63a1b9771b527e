// Package mediainfo reads HDR signaling via the MediaInfo CLI, which
// reports mastering metadata ffprobe misses on some containers.
package mediainfo

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// VideoTrack mirrors the fields of a MediaInfo "Video" track this package
// reads. MediaInfo reports everything as strings.
type VideoTrack struct {
	Format                  string `json:"Format"`
	Width                   string `json:"Width"`
	Height                  string `json:"Height"`
	Duration                string `json:"Duration"`
	BitDepth                string `json:"BitDepth"`
	ColorSpace              string `json:"ColorSpace"`
	ChromaSubsampling       string `json:"ChromaSubsampling"`
	ColourRange             string `json:"colour_range"`
	ColourPrimaries         string `json:"colour_primaries"`
	TransferCharacteristics string `json:"transfer_characteristics"`
	MatrixCoefficients      string `json:"matrix_coefficients"`
}

// AudioTrack mirrors the fields of a MediaInfo "Audio" track this package
// reads.
type AudioTrack struct {
	Format       string `json:"Format"`
	Channels     string `json:"Channels"`
	SamplingRate string `json:"SamplingRate"`
	BitRate      string `json:"BitRate"`
}

// Track is one entry of the media.track array. MediaInfo mixes track kinds
// in one list and distinguishes them by "@type", so decoding dispatches on
// that discriminator.
type Track struct {
	Type  string `json:"@type"`
	Video VideoTrack
	Audio AudioTrack
}

func (t *Track) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"@type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	t.Type = head.Type

	switch t.Type {
	case "Video":
		return json.Unmarshal(data, &t.Video)
	case "Audio":
		return json.Unmarshal(data, &t.Audio)
	}
	return nil
}

// Media holds the track array.
type Media struct {
	Track []Track `json:"track"`
}

// Response is the root of MediaInfo's --Output=JSON document.
type Response struct {
	Media Media `json:"media"`
}

// HDRInfo is the dynamic-range summary DetectHDR produces.
type HDRInfo struct {
	IsHDR                   bool
	ColourPrimaries         string
	TransferCharacteristics string
	MatrixCoefficients      string
	BitDepth                *uint8
}

// IsAvailable reports whether the mediainfo binary runs at all.
func IsAvailable() bool {
	return exec.Command("mediainfo", "--Version").Run() == nil
}

// GetMediaInfo runs mediainfo against inputPath and parses its JSON output.
func GetMediaInfo(inputPath string) (*Response, error) {
	raw, err := exec.Command("mediainfo", "--Output=JSON", inputPath).Output()
	if err != nil {
		return nil, fmt.Errorf("mediainfo failed: %w", err)
	}
	return parseMediaInfoOutput(raw)
}

func parseMediaInfoOutput(data []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse mediainfo output: %w", err)
	}
	return &resp, nil
}

func (r *Response) videoTrack() *VideoTrack {
	for i := range r.Media.Track {
		if r.Media.Track[i].Type == "Video" {
			return &r.Media.Track[i].Video
		}
	}
	return nil
}

// DetectHDR summarizes the first video track's dynamic-range signaling.
// A document with no video track reads as SDR.
func DetectHDR(info *Response) HDRInfo {
	v := info.videoTrack()
	if v == nil {
		return HDRInfo{IsHDR: false}
	}

	var bitDepth *uint8
	if bd, err := strconv.ParseUint(v.BitDepth, 10, 8); err == nil {
		depth := uint8(bd)
		bitDepth = &depth
	}

	return HDRInfo{
		IsHDR:                   detectHDRFromMetadata(v.ColourPrimaries, v.TransferCharacteristics, v.MatrixCoefficients),
		ColourPrimaries:         v.ColourPrimaries,
		TransferCharacteristics: v.TransferCharacteristics,
		MatrixCoefficients:      v.MatrixCoefficients,
		BitDepth:                bitDepth,
	}
}

// detectHDRFromMetadata applies the same rule as the ffprobe-side detector,
// phrased in MediaInfo's human-readable vocabulary (BT.2020, PQ, HLG,
// SMPTE 2084).
func detectHDRFromMetadata(primaries, transfer, matrix string) bool {
	return containsAny(primaries, "BT.2020", "BT.2100") ||
		containsAny(transfer, "PQ", "HLG", "SMPTE 2084") ||
		containsAny(matrix, "BT.2020")
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// GetAudioChannels lists each audio track's channel count.
func GetAudioChannels(info *Response) []uint32 {
	var channels []uint32
	for _, track := range info.Media.Track {
		if track.Type != "Audio" {
			continue
		}
		if ch, err := strconv.ParseUint(track.Audio.Channels, 10, 32); err == nil {
			channels = append(channels, uint32(ch))
		}
	}
	return channels
}
