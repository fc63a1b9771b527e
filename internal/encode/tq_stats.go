package encode

import (
	"fmt"
	"math"
	"sort"

	"github.com/five82/carve/internal/reporter"
	"github.com/five82/carve/internal/tq"
)

// TQStats aggregates the per-chunk search results of one TQ run for the
// end-of-run diagnostic summary.
type TQStats struct {
	AvgRounds float64
	MinRounds int
	MaxRounds int

	AvgPredictionDelta float64
	MaxPredictionDelta float64
	PredictedChunks    int

	MinFrames int
	MaxFrames int
	MinDur    float64
	MaxDur    float64
	NumChunks int

	CRFMin    float64
	CRFMax    float64
	CRFMean   float64
	CRFStdDev float64

	// RoundsBreakdown counts chunks by rounds-to-converge, with 4+ grouped.
	RoundsBreakdown map[int]int

	// BoundsExhaustedCount is how many searches stopped because the window
	// closed rather than because a probe hit tolerance.
	BoundsExhaustedCount int

	FailedChunks []FailedChunkInfo
}

// FailedChunkInfo details a chunk whose search ran out of rounds.
type FailedChunkInfo struct {
	ChunkIdx   int
	Probes     []tq.ProbeEntry
	FinalCRF   float64
	FinalScore float64
}

// ComputeTQStats folds the run's results into a TQStats, ignoring errored
// chunks. Returns nil for an empty run.
func ComputeTQStats(results []tqResult, fps float64, maxRounds int) *TQStats {
	if len(results) == 0 {
		return nil
	}

	stats := &TQStats{
		RoundsBreakdown: make(map[int]int),
		MinRounds:       math.MaxInt,
		MinFrames:       math.MaxInt,
		MinDur:          math.MaxFloat64,
	}

	var totalRounds int
	var predDeltaSum float64
	var crfs []float64

	for _, r := range results {
		if r.Error != nil {
			continue
		}
		stats.NumChunks++

		totalRounds += r.Round
		stats.MinRounds = min(stats.MinRounds, r.Round)
		stats.MaxRounds = max(stats.MaxRounds, r.Round)
		stats.RoundsBreakdown[min(r.Round, 4)]++

		crfs = append(crfs, r.FinalCRF)

		stats.MinFrames = min(stats.MinFrames, r.Frames)
		stats.MaxFrames = max(stats.MaxFrames, r.Frames)
		if fps > 0 {
			dur := float64(r.Frames) / fps
			stats.MinDur = min(stats.MinDur, dur)
			stats.MaxDur = max(stats.MaxDur, dur)
		}

		if r.PredictedCRF > 0 {
			delta := math.Abs(r.PredictedCRF - r.FinalCRF)
			predDeltaSum += delta
			stats.MaxPredictionDelta = max(stats.MaxPredictionDelta, delta)
			stats.PredictedChunks++
		}

		if r.BoundsExhausted {
			stats.BoundsExhaustedCount++
		}

		if r.Round >= maxRounds {
			stats.FailedChunks = append(stats.FailedChunks, FailedChunkInfo{
				ChunkIdx:   r.ChunkIdx,
				Probes:     r.Probes,
				FinalCRF:   r.FinalCRF,
				FinalScore: r.FinalScore,
			})
		}
	}

	if stats.NumChunks > 0 {
		stats.AvgRounds = float64(totalRounds) / float64(stats.NumChunks)
	}
	if stats.PredictedChunks > 0 {
		stats.AvgPredictionDelta = predDeltaSum / float64(stats.PredictedChunks)
	}
	stats.fillCRFDistribution(crfs)

	// Nothing valid seen: collapse the sentinels.
	if stats.MinRounds == math.MaxInt {
		stats.MinRounds = 0
	}
	if stats.MinFrames == math.MaxInt {
		stats.MinFrames = 0
	}
	if stats.MinDur == math.MaxFloat64 {
		stats.MinDur = 0
	}
	return stats
}

func (s *TQStats) fillCRFDistribution(crfs []float64) {
	if len(crfs) == 0 {
		return
	}
	s.CRFMin, s.CRFMax = crfs[0], crfs[0]
	var sum float64
	for _, crf := range crfs {
		s.CRFMin = min(s.CRFMin, crf)
		s.CRFMax = max(s.CRFMax, crf)
		sum += crf
	}
	s.CRFMean = sum / float64(len(crfs))

	var variance float64
	for _, crf := range crfs {
		d := crf - s.CRFMean
		variance += d * d
	}
	s.CRFStdDev = math.Sqrt(variance / float64(len(crfs)))
}

// ComputeScoreDistribution buckets final scores into 1-point bins across
// the target band, plus below/above overflow bins.
func ComputeScoreDistribution(results []tqResult, targetMin, targetMax float64) map[string]int {
	buckets := make(map[string]int)
	for score := math.Floor(targetMin); score < math.Ceil(targetMax); score++ {
		buckets[fmt.Sprintf("%.0f-%.0f", score, score+1)] = 0
	}
	buckets["below"] = 0
	buckets["above"] = 0

	for _, r := range results {
		if r.Error != nil {
			continue
		}
		switch {
		case r.FinalScore < targetMin:
			buckets["below"]++
		case r.FinalScore > targetMax:
			buckets["above"]++
		default:
			lo := math.Floor(r.FinalScore)
			buckets[fmt.Sprintf("%.0f-%.0f", lo, lo+1)]++
		}
	}
	return buckets
}

// OutputTQStats renders the diagnostic summary through the reporter's
// verbose channel.
func OutputTQStats(stats *TQStats, rep reporter.Reporter, targetMin, targetMax float64, results []tqResult, fps float64) {
	if stats == nil {
		return
	}

	say := func(format string, args ...any) { rep.Verbose(fmt.Sprintf(format, args...)) }

	rep.Verbose("")
	rep.Verbose("=== TQ Debug Statistics ===")

	say("Iterations: avg=%.1f, min=%d, max=%d", stats.AvgRounds, stats.MinRounds, stats.MaxRounds)

	outputScoreDistribution(rep, results, targetMin, targetMax)

	// Frame-score percentiles over every accepted probe this process
	if pct := tq.FinalScorePercentiles(); pct != nil {
		say("Frame-score percentiles: p1=%.1f p5=%.1f p25=%.1f p50=%.1f p75=%.1f p95=%.1f p99=%.1f",
			pct[0], pct[1], pct[2], pct[3], pct[4], pct[5], pct[6])
	}

	if stats.PredictedChunks > 0 {
		say("Prediction accuracy: avg delta=%.1f CRF, max delta=%.1f CRF (%d chunks)",
			stats.AvgPredictionDelta, stats.MaxPredictionDelta, stats.PredictedChunks)
	}

	if stats.NumChunks > 0 {
		say("Chunk lengths: %d chunks, frames %d-%d, duration %.1fs-%.1fs",
			stats.NumChunks, stats.MinFrames, stats.MaxFrames, stats.MinDur, stats.MaxDur)
		for _, r := range results {
			if r.Error != nil {
				continue
			}
			say("  Chunk %d: %d frames (%.1fs)", r.ChunkIdx, r.Frames, float64(r.Frames)/fps)
		}
	}

	say("CRF distribution: min=%.0f, max=%.0f, mean=%.1f, stddev=%.1f",
		stats.CRFMin, stats.CRFMax, stats.CRFMean, stats.CRFStdDev)

	outputRoundsBreakdown(rep, stats.RoundsBreakdown)

	if stats.BoundsExhaustedCount > 0 {
		say("Search bounds exhausted before convergence: %d chunks", stats.BoundsExhaustedCount)
	}

	outputFailedChunks(rep, stats.FailedChunks)

	rep.Verbose("=== End TQ Debug Statistics ===")
	rep.Verbose("")
}

func outputScoreDistribution(rep reporter.Reporter, results []tqResult, targetMin, targetMax float64) {
	buckets := ComputeScoreDistribution(results, targetMin, targetMax)
	rep.Verbose(fmt.Sprintf("Score distribution (target %.0f-%.0f):", targetMin, targetMax))

	var keys []string
	for k := range buckets {
		if k != "below" && k != "above" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if buckets["below"] > 0 {
		rep.Verbose(fmt.Sprintf("  <%.0f: %d chunks", targetMin, buckets["below"]))
	}
	for _, k := range keys {
		if buckets[k] > 0 {
			rep.Verbose(fmt.Sprintf("  %s: %d chunks", k, buckets[k]))
		}
	}
	if buckets["above"] > 0 {
		rep.Verbose(fmt.Sprintf("  >%.0f: %d chunks", targetMax, buckets["above"]))
	}
}

func outputRoundsBreakdown(rep reporter.Reporter, breakdown map[int]int) {
	rep.Verbose("Rounds breakdown:")
	for round := 1; round <= 4; round++ {
		count := breakdown[round]
		if count == 0 {
			continue
		}
		label := fmt.Sprintf("%d round", round)
		if round > 1 {
			label += "s"
		}
		if round == 4 {
			label = "4+ rounds"
		}
		rep.Verbose(fmt.Sprintf("  %s: %d chunks", label, count))
	}
}

func outputFailedChunks(rep reporter.Reporter, failed []FailedChunkInfo) {
	if len(failed) == 0 {
		return
	}
	rep.Verbose(fmt.Sprintf("Failed convergence: %d chunks hit max rounds", len(failed)))
	for _, fc := range failed {
		rep.Verbose(fmt.Sprintf("  Chunk %d: final CRF=%.0f, score=%.1f", fc.ChunkIdx, fc.FinalCRF, fc.FinalScore))
		rep.Verbose("    Probe history:")
		for _, p := range fc.Probes {
			rep.Verbose(fmt.Sprintf("      CRF %.0f -> %.1f", p.CRF, p.Score))
		}
	}
}
