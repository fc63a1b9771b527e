package encode

import (
	"fmt"

	"github.com/five82/carve/internal/chunk"
	drerrors "github.com/five82/carve/internal/errors"
	"github.com/five82/carve/internal/ffms"
	"github.com/five82/carve/internal/worker"
)

// chunkFeed enumerates remaining (not-yet-done) chunks in ascending idx
// order and decodes each one's frames on demand. It is the single dispatch
// model shared by both the fixed-CRF (EncodeAll) and target-quality
// (EncodeAllTQ) pipelines: chunks never get reordered for decode proximity
// or any other heuristic, so there is exactly one cursor to advance.
type chunkFeed struct {
	chunks   []chunk.Chunk
	pos      int
	src      *ffms.VidSrc
	inf      *ffms.VidInf
	strat    ffms.DecodeStrat
	cropCalc *ffms.CropCalc
	width    uint32
	height   uint32
}

// newChunkFeed derives the decode strategy for the source and returns a feed
// over remaining, already positioned at the first chunk.
func newChunkFeed(idx *ffms.VidIdx, inf *ffms.VidInf, cropH, cropV uint32, remaining []chunk.Chunk) (*chunkFeed, error) {
	strat, cropCalc, err := ffms.GetDecodeStrat(idx, inf, cropH, cropV)
	if err != nil {
		return nil, fmt.Errorf("failed to determine decode strategy: %w", err)
	}

	width, height := inf.Width, inf.Height
	if cropCalc != nil {
		width, height = cropCalc.NewW, cropCalc.NewH
	}

	return &chunkFeed{
		chunks:   remaining,
		strat:    strat,
		cropCalc: cropCalc,
		inf:      inf,
		width:    width,
		height:   height,
	}, nil
}

// open creates the threaded video source the feed decodes from. Must be
// called once before the first Next; the caller owns closing it.
func (f *chunkFeed) open(idx *ffms.VidIdx, workers int) error {
	src, err := ffms.ThrVidSrc(idx, workers)
	if err != nil {
		return fmt.Errorf("failed to create video source: %w", err)
	}
	f.src = src
	return nil
}

func (f *chunkFeed) close() {
	if f.src != nil {
		f.src.Close()
	}
}

// done reports whether every chunk has already been handed out by Next.
func (f *chunkFeed) done() bool {
	return f.pos >= len(f.chunks)
}

// IsDecodeFailed reports whether err is the DecodeFailed sentinel next()
// returns for a chunk with zero readable frames: callers should
// skip that chunk and keep going rather than abort the run.
func IsDecodeFailed(err error) bool {
	ce, ok := err.(*drerrors.CoreError)
	return ok && ce.Kind == drerrors.KindDecodeFailed
}

// next decodes the next chunk's frames in ascending idx order.
// Individual frame read failures are dropped best-effort rather than
// failing the chunk; a chunk is only reported as an error (DecodeFailed,
// checked via IsDecodeFailed) when every one of its frames fails to read,
// in which case the caller is expected to skip it and move on rather than
// abort the run.
func (f *chunkFeed) next() (*worker.WorkPkg, error) {
	ch := f.chunks[f.pos]
	f.pos++

	frameCount := ch.Frames()
	frameSize := ffms.CalcFrameSize(f.inf, f.cropCalc)
	yuv := make([]byte, frameSize*frameCount)

	valid := 0
	for i := 0; i < frameCount; i++ {
		frameIdx := int(ch.Start) + i
		offset := valid * frameSize
		if err := ffms.ExtractFrame(f.src, frameIdx, yuv[offset:offset+frameSize], f.inf, f.strat, f.cropCalc); err != nil {
			continue
		}
		valid++
	}

	if valid == 0 {
		return nil, drerrors.NewDecodeError(ch.Idx)
	}
	if valid < frameCount {
		yuv = yuv[:valid*frameSize]
	}

	return &worker.WorkPkg{
		Chunk:      ch,
		YUV:        yuv,
		FrameCount: valid,
		Width:      f.width,
		Height:     f.height,
		Is10Bit:    f.inf.Is10Bit,
	}, nil
}

// remainingChunks partitions chunks into (not yet completed, total frames
// across every chunk including already-completed ones).
func remainingChunks(chunks []chunk.Chunk, done map[int]struct{}) (remaining []chunk.Chunk, totalFrames int) {
	remaining = make([]chunk.Chunk, 0, len(chunks))
	for _, ch := range chunks {
		totalFrames += ch.Frames()
		if _, skip := done[ch.Idx]; !skip {
			remaining = append(remaining, ch)
		}
	}
	return remaining, totalFrames
}
