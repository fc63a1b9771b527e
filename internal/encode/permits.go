package encode

import (
	"github.com/five82/carve/internal/util"
	"github.com/five82/carve/internal/yuv"
)

// CalculateThreadsPerWorker is the exported entry point processing uses to
// size each worker's --lp flag; see calculateThreadsPerWorker for the rule.
func CalculateThreadsPerWorker(workers int, width uint32) int {
	return calculateThreadsPerWorker(workers, width)
}

// calculateThreadsPerWorker derives the SVT-AV1 --lp (logical processors)
// value for one encoder worker: physical cores divided evenly across the
// requested worker count, plus one thread of SMT headroom when the host
// has hyperthreading, capped by what the resolution can actually make use
// of (4K: 16, 1080p: 10, SD: 6). Always returns at least 1.
func calculateThreadsPerWorker(workers int, width uint32) int {
	if workers < 1 {
		workers = 1
	}

	physical := util.PhysicalCores()
	logical := util.LogicalCores()

	threads := physical / workers
	if logical > physical {
		threads++
	}
	if threads < 1 {
		threads = 1
	}

	cap := 6
	switch {
	case width >= 3840:
		cap = 16
	case width >= 1920:
		cap = 10
	}
	if threads > cap {
		threads = cap
	}
	return threads
}

// CalculatePermits determines the number of in-flight chunk permits based on
// the requested base permits and available system memory.
//
// basePermits is the requested number (e.g., workers + buffer for standard mode,
// or just workers for TQ mode).
//
// The function caps permits to use at most memFraction (e.g., 0.5 for 50%) of
// available system memory, accounting for YUV buffer size and encoder overhead.
//
// Returns at least 1.
func CalculatePermits(basePermits int, width, height uint32, avgFramesPerChunk int, memFraction float64) int {
	permits := max(basePermits, 1)

	// Calculate estimated memory per in-flight chunk:
	// - YUV buffer: frames * packed frame size (packed 10-bit transport)
	// - SVT-AV1 encoder process: ~1 GB per instance
	frameSize := uint64(yuv.PackedFrameSize(width, height))
	yuvMemBytes := frameSize * uint64(avgFramesPerChunk)
	encoderOverhead := uint64(1 << 30) // ~1 GB per SVT-AV1 process
	chunkMemBytes := yuvMemBytes + encoderOverhead

	memPermits := util.MaxPermitsForMemory(chunkMemBytes, memFraction)
	if memPermits < permits {
		permits = memPermits
	}

	return permits
}

// ChunkMemoryBytes returns the estimated memory per in-flight chunk in bytes.
// Useful for verbose logging.
func ChunkMemoryBytes(width, height uint32, avgFramesPerChunk int) uint64 {
	frameSize := uint64(yuv.PackedFrameSize(width, height))
	yuvMemBytes := frameSize * uint64(avgFramesPerChunk)
	encoderOverhead := uint64(1 << 30)
	return yuvMemBytes + encoderOverhead
}
