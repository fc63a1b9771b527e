// Package processing provides video processing orchestration.
package processing

import (
	"bufio"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/five82/carve/internal/ffprobe"
)

const (
	// cropWorkers bounds how many ffmpeg cropdetect samples run at once.
	cropWorkers = 8

	// Samples are taken every 0.5% of the runtime between 15% and 85%,
	// expressed here in half-percent units (30/200 .. 170/200). The outer
	// 15% is skipped: studio logos and credits routinely letterbox
	// differently from the feature itself.
	cropWindowStart   = 30
	cropWindowEnd     = 170
	cropWindowDivisor = 200.0

	// Luma thresholds below which a row/column counts as a black bar. HDR
	// blacks sit much higher than SDR blacks.
	cropLumaThresholdSDR = 16
	cropLumaThresholdHDR = 100

	// A candidate seen in more than this share of samples wins outright.
	cropDominantShare = 0.8
	// A candidate above this share still wins if the runner-up stays under
	// cropNoiseShare (stray detections from dark scenes).
	cropLeaderShare = 0.6
	cropNoiseShare  = 0.05

	// framesPerSample is how many frames each cropdetect invocation reads.
	framesPerSample = 10
)

// CropCandidate is one detected crop geometry and how often it was seen.
type CropCandidate struct {
	Crop    string  // "W:H:X:Y" as printed by cropdetect
	Count   int     // Samples reporting this geometry
	Percent float64 // Share of all samples
}

// CropResult is the outcome of a crop-detection pass.
type CropResult struct {
	CropFilter     string // e.g. "crop=1920:800:0:140"; empty when not Required
	Required       bool
	MultipleRatios bool
	Message        string
	Candidates     []CropCandidate
	TotalSamples   int
}

var cropRegex = regexp.MustCompile(`crop=(\d+:\d+:\d+:\d+)`)

// DetectCrop samples the video at 141 evenly spaced positions and derives a
// single crop geometry from the per-sample cropdetect votes, or reports
// that no (or no unambiguous) crop applies.
func DetectCrop(inputPath string, props *ffprobe.VideoProperties, disableCrop bool) CropResult {
	if disableCrop {
		return CropResult{Required: false, Message: "Skipped"}
	}

	threshold := uint32(cropLumaThresholdSDR)
	if props.HDRInfo.IsHDR {
		threshold = uint32(cropLumaThresholdHDR)
	}

	votes := collectCropVotes(inputPath, props.DurationSecs, threshold)
	numPositions := cropWindowEnd - cropWindowStart + 1

	if len(votes) == 0 {
		return CropResult{
			Required:     false,
			Message:      fmt.Sprintf("Analyzed %d samples", numPositions),
			TotalSamples: numPositions,
		}
	}

	return decideCrop(votes, props.Width, props.Height, numPositions)
}

// collectCropVotes runs one bounded-concurrency cropdetect pass per sample
// position and tallies the winning geometry of each.
func collectCropVotes(inputPath string, durationSecs float64, threshold uint32) map[string]int {
	votes := make(map[string]int)
	var mu sync.Mutex
	var wg sync.WaitGroup
	gate := make(chan struct{}, cropWorkers)

	for pos := cropWindowStart; pos <= cropWindowEnd; pos++ {
		wg.Add(1)
		go func(fraction float64) {
			defer wg.Done()
			gate <- struct{}{}
			defer func() { <-gate }()

			crop := sampleCropAt(inputPath, durationSecs*fraction, threshold)
			if crop == "" {
				return
			}
			mu.Lock()
			votes[crop]++
			mu.Unlock()
		}(float64(pos) / cropWindowDivisor)
	}
	wg.Wait()
	return votes
}

// decideCrop turns the vote tally into a CropResult: a geometry is applied
// when it is the only one seen, when it dominates, or when it leads with
// nothing but noise behind it. Conflicting significant geometries mean the
// title genuinely switches aspect ratio, and cropping is skipped.
func decideCrop(votes map[string]int, srcW, srcH uint32, numPositions int) CropResult {
	type vote struct {
		crop  string
		count int
	}
	ranked := make([]vote, 0, len(votes))
	total := 0
	for crop, count := range votes {
		ranked = append(ranked, vote{crop, count})
		total += count
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].count > ranked[j].count })

	candidates := make([]CropCandidate, len(ranked))
	for i, v := range ranked {
		candidates[i] = CropCandidate{
			Crop:    v.crop,
			Count:   v.count,
			Percent: float64(v.count) / float64(total) * 100,
		}
	}

	accept := func(crop, message string) CropResult {
		if !removesPixels(crop, srcW, srcH) {
			return CropResult{
				Required:     false,
				Message:      fmt.Sprintf("Analyzed %d samples", numPositions),
				Candidates:   candidates,
				TotalSamples: total,
			}
		}
		return CropResult{
			CropFilter:   "crop=" + crop,
			Required:     true,
			Message:      message,
			Candidates:   candidates,
			TotalSamples: total,
		}
	}

	leaderShare := float64(ranked[0].count) / float64(total)
	switch {
	case len(ranked) == 1:
		return accept(ranked[0].crop, "Black bars detected")
	case leaderShare > cropDominantShare:
		return accept(ranked[0].crop, "Black bars detected")
	case leaderShare > cropLeaderShare &&
		float64(ranked[1].count)/float64(total) < cropNoiseShare:
		return accept(ranked[0].crop, "Black bars detected (clear winner with noise)")
	}

	return CropResult{
		Required:       false,
		MultipleRatios: true,
		Message:        "Multiple aspect ratios detected",
		Candidates:     candidates,
		TotalSamples:   total,
	}
}

// sampleCropAt runs cropdetect over a few frames starting at startTime and
// returns the geometry it reported most often, or "" when nothing parsed.
func sampleCropAt(inputPath string, startTime float64, threshold uint32) string {
	cmd := exec.Command("ffmpeg",
		"-hide_banner",
		"-ss", fmt.Sprintf("%.2f", startTime),
		"-i", inputPath,
		"-vframes", fmt.Sprintf("%d", framesPerSample),
		"-vf", fmt.Sprintf("cropdetect=limit=%d:round=2:reset=1", threshold),
		"-f", "null",
		"-",
	)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return ""
	}
	if err := cmd.Start(); err != nil {
		return ""
	}

	counts := make(map[string]int)
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		if m := cropRegex.FindStringSubmatch(scanner.Text()); len(m) >= 2 && wellFormedCrop(m[1]) {
			counts[m[1]]++
		}
	}
	_ = cmd.Wait()

	best, bestCount := "", 0
	for crop, count := range counts {
		if count > bestCount {
			best, bestCount = crop, count
		}
	}
	return best
}

// wellFormedCrop reports whether crop parses as four unsigned ints "w:h:x:y".
func wellFormedCrop(crop string) bool {
	parts := strings.Split(crop, ":")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		if _, err := strconv.ParseUint(part, 10, 32); err != nil {
			return false
		}
	}
	return true
}

// removesPixels reports whether the crop geometry differs from the full
// frame. Unparsable geometries count as effective so they surface rather
// than silently vanish.
func removesPixels(crop string, srcW, srcH uint32) bool {
	parts := strings.Split(crop, ":")
	if len(parts) < 2 {
		return true
	}
	w, errW := strconv.ParseUint(parts[0], 10, 32)
	h, errH := strconv.ParseUint(parts[1], 10, 32)
	if errW != nil || errH != nil {
		return true
	}
	return uint32(w) != srcW || uint32(h) != srcH
}

// GetOutputDimensions returns the post-crop frame size a crop filter string
// yields, or the source size when the filter is empty or unparsable.
func GetOutputDimensions(originalWidth, originalHeight uint32, cropFilter string) (uint32, uint32) {
	if cropFilter == "" {
		return originalWidth, originalHeight
	}

	parts := strings.Split(strings.TrimPrefix(cropFilter, "crop="), ":")
	if len(parts) >= 2 {
		w, errW := strconv.ParseUint(parts[0], 10, 32)
		h, errH := strconv.ParseUint(parts[1], 10, 32)
		if errW == nil && errH == nil {
			return uint32(w), uint32(h)
		}
	}
	return originalWidth, originalHeight
}
