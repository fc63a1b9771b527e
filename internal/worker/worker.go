// Package worker provides types and utilities for parallel chunk encoding.
package worker

import (
	"github.com/five82/carve/internal/chunk"
	"github.com/five82/carve/internal/tq"
)

// Semaphore provides a counting semaphore for controlling concurrency.
// It is used to limit the number of chunks in flight to prevent memory exhaustion.
type Semaphore struct {
	permits chan struct{}
}

// NewSemaphore creates a new semaphore with the given number of permits.
func NewSemaphore(count int) *Semaphore {
	if count <= 0 {
		count = 1
	}
	s := &Semaphore{
		permits: make(chan struct{}, count),
	}
	// Pre-fill the permits
	for i := 0; i < count; i++ {
		s.permits <- struct{}{}
	}
	return s
}

// Acquire blocks until a permit is available.
func (s *Semaphore) Acquire() {
	<-s.permits
}

// Release returns a permit to the semaphore.
func (s *Semaphore) Release() {
	select {
	case s.permits <- struct{}{}:
	default:
		// Semaphore is full, this shouldn't happen in normal use
	}
}

// Chan returns the underlying permit channel for use with select.
// This allows context-aware acquisition of permits.
func (s *Semaphore) Chan() <-chan struct{} {
	return s.permits
}

// EncodeResult contains the result of encoding a single chunk.
type EncodeResult struct {
	ChunkIdx int
	Frames   int
	Size     uint64
	Error    error
}

// Progress represents encoding progress information.
type Progress struct {
	ChunksComplete int
	ChunksTotal    int
	FramesComplete int
	FramesTotal    int
	BytesComplete  uint64
}

// Percent returns the completion percentage.
func (p Progress) Percent() float64 {
	if p.FramesTotal == 0 {
		return 0
	}
	return float64(p.FramesComplete) / float64(p.FramesTotal) * 100
}

// WorkPkg carries one chunk's decoded frames from the decoder goroutine to
// an encoder worker, plus (in TQ mode) the per-chunk CRF search state that
// travels with it across rework cycles.
type WorkPkg struct {
	Chunk      chunk.Chunk
	YUV        []byte
	FrameCount int
	Width      uint32
	Height     uint32
	Is10Bit    bool

	// TQState is non-nil only in target-quality mode; it accumulates probes
	// across rework cycles for this chunk.
	TQState *tq.State

	// PredictedCRF is the nearby-chunk CRF hint computed at dispatch time
	// (diagnostic only; the search window itself never narrows around it).
	// Zero means no prior completed chunk existed to predict from.
	PredictedCRF float64
}
