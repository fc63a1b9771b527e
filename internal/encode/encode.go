// Package encode provides the parallel chunk encoding pipeline.
package encode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/five82/carve/internal/chunk"
	"github.com/five82/carve/internal/encoder"
	drerrors "github.com/five82/carve/internal/errors"
	"github.com/five82/carve/internal/ffms"
	"github.com/five82/carve/internal/worker"
	"github.com/five82/carve/internal/yuv"
)

// EncodeConfig contains configuration for the parallel encode pipeline.
type EncodeConfig struct {
	Workers     int     // Number of parallel encoder workers
	ChunkBuffer int     // Extra chunks to buffer in memory
	CRF         float32 // Quality (CRF value)
	Preset      uint8   // SVT-AV1 preset
	Tune        uint8   // SVT-AV1 tune
	GrainTable  *string // Optional film grain table path

	// Advanced SVT-AV1 parameters
	ACBias                float32
	EnableVarianceBoost   bool
	VarianceBoostStrength uint8
	VarianceOctile        uint8
	LogicalProcessors     *uint32 // Optional limit on CPU threads per encoder
	LowPriority           bool
	ExtraParams           string // Trailing user-supplied encoder flags
}

// ProgressCallback is called to report encoding progress.
type ProgressCallback func(progress worker.Progress)

// EncodeAll runs the fixed-CRF parallel encoding pipeline: a single decoder
// feed hands decoded chunks to a pool of encoder workers, and a result
// collector folds each finished chunk into the resume log and progress
// callback. There is no rework loop here: fixed-CRF chunks only ever pass
// through the encoder once, unlike the target-quality pipeline in
// encode_tq.go.
func EncodeAll(
	ctx context.Context,
	chunks []chunk.Chunk,
	inf *ffms.VidInf,
	cfg *EncodeConfig,
	idx *ffms.VidIdx,
	workDir string,
	cropH, cropV uint32,
	progressCb ProgressCallback,
) error {
	if err := chunk.EnsureEncodeDir(workDir); err != nil {
		return fmt.Errorf("failed to create encode directory: %w", err)
	}

	resume, err := chunk.LoadResumeLog(workDir)
	if err != nil {
		return fmt.Errorf("failed to load resume info: %w", err)
	}

	remaining, totalFrames := remainingChunks(chunks, resume.SkipSet())
	if len(remaining) == 0 {
		return nil
	}

	feed, err := newChunkFeed(idx, inf, cropH, cropV, remaining)
	if err != nil {
		return err
	}
	if err := feed.open(idx, cfg.Workers); err != nil {
		return err
	}
	defer feed.close()

	permits := CalculatePermits(cfg.Workers+cfg.ChunkBuffer, feed.width, feed.height, avgFrames(totalFrames, len(chunks)), 0.5)
	sem := worker.NewSemaphore(permits)

	workChan := make(chan *worker.WorkPkg, permits)
	resultChan := make(chan worker.EncodeResult, len(remaining))

	tracker := progressTracker{
		progress: worker.Progress{
			ChunksTotal:    len(chunks),
			ChunksComplete: len(chunks) - len(remaining),
			FramesTotal:    totalFrames,
			FramesComplete: resume.TotalEncodedFrames(),
			BytesComplete:  resume.TotalEncodedSize(),
		},
		cb: progressCb,
	}

	var encodeErr error
	var errOnce sync.Once
	fail := func(err error) { errOnce.Do(func() { encodeErr = err }) }

	var encoderWg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		encoderWg.Add(1)
		go func() {
			defer encoderWg.Done()
			runEncodeWorker(ctx, workChan, resultChan, sem, cfg, inf, workDir, feed.width, feed.height)
		}()
	}

	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		for result := range resultChan {
			if result.Error != nil {
				fail(result.Error)
				continue
			}
			_ = resume.Append(chunk.Completion{Idx: result.ChunkIdx, Frames: result.Frames, Bytes: result.Size})
			tracker.recordChunk(result.Frames, result.Size)
		}
	}()

	go func() {
		defer close(workChan)
		for !feed.done() {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if encodeErr != nil {
				return
			}

			sem.Acquire()
			pkg, err := feed.next()
			if err != nil {
				if IsDecodeFailed(err) {
					sem.Release()
					continue
				}
				fail(err)
				sem.Release()
				return
			}

			select {
			case workChan <- pkg:
			case <-ctx.Done():
				sem.Release()
				return
			}
		}
	}()

	encoderWg.Wait()
	close(resultChan)
	collectorWg.Wait()

	return encodeErr
}

// avgFrames returns the mean chunk length in frames, at least 1.
func avgFrames(totalFrames, numChunks int) int {
	if numChunks < 1 {
		return 1
	}
	avg := totalFrames / numChunks
	if avg < 1 {
		avg = 1
	}
	return avg
}

// progressTracker serializes progress accounting and callback dispatch
// behind a mutex so encoder workers and the result collector can both
// report completions without racing.
type progressTracker struct {
	mu       sync.Mutex
	progress worker.Progress
	cb       ProgressCallback
}

func (t *progressTracker) recordChunk(frames int, bytes uint64) {
	t.mu.Lock()
	t.progress.ChunksComplete++
	t.progress.FramesComplete += frames
	t.progress.BytesComplete += bytes
	snapshot := t.progress
	t.mu.Unlock()

	if t.cb != nil {
		t.cb(snapshot)
	}
}

// runEncodeWorker drains workChan, encoding each package once and freeing
// its YUV buffer immediately afterward.
func runEncodeWorker(
	ctx context.Context,
	workChan <-chan *worker.WorkPkg,
	resultChan chan<- worker.EncodeResult,
	sem *worker.Semaphore,
	cfg *EncodeConfig,
	inf *ffms.VidInf,
	workDir string,
	width, height uint32,
) {
	for pkg := range workChan {
		select {
		case <-ctx.Done():
			sem.Release()
			resultChan <- worker.EncodeResult{ChunkIdx: pkg.Chunk.Idx, Error: ctx.Err()}
			continue
		default:
		}

		outputPath := chunk.IVFPath(workDir, pkg.Chunk.Idx)
		result := encodeOnce(ctx, pkg, cfg, inf, outputPath, width, height)

		pkg.YUV = nil
		sem.Release()
		resultChan <- result
	}
}

// encodeOnce pipes pkg's YUV through SVT-AV1 at cfg.CRF and reports the
// resulting frame/byte counts.
func encodeOnce(
	ctx context.Context,
	pkg *worker.WorkPkg,
	cfg *EncodeConfig,
	inf *ffms.VidInf,
	outputPath string,
	width, height uint32,
) worker.EncodeResult {
	encCfg := &encoder.EncConfig{
		Inf:                   inf,
		CRF:                   cfg.CRF,
		Preset:                cfg.Preset,
		Tune:                  cfg.Tune,
		Output:                outputPath,
		GrainTable:            cfg.GrainTable,
		Width:                 width,
		Height:                height,
		Frames:                pkg.FrameCount,
		ACBias:                cfg.ACBias,
		EnableVarianceBoost:   cfg.EnableVarianceBoost,
		VarianceBoostStrength: cfg.VarianceBoostStrength,
		VarianceOctile:        cfg.VarianceOctile,
		LogicalProcessors:     cfg.LogicalProcessors,
		LowPriority:           cfg.LowPriority,
		ExtraParams:           cfg.ExtraParams,
	}

	if err := runEncoder(ctx, pkg.Chunk.Idx, encCfg, pkg.YUV); err != nil {
		return worker.EncodeResult{ChunkIdx: pkg.Chunk.Idx, Error: err}
	}

	stat, err := os.Stat(outputPath)
	if err != nil {
		return worker.EncodeResult{ChunkIdx: pkg.Chunk.Idx, Error: fmt.Errorf("failed to stat output: %w", err)}
	}

	return worker.EncodeResult{ChunkIdx: pkg.Chunk.Idx, Frames: pkg.FrameCount, Size: uint64(stat.Size())}
}

// runEncoder starts SvtAv1EncApp per encCfg, streams packedYUV (the packed
// 10-bit transport form) to its stdin unpacked frame-by-frame, and waits
// for it to exit. Shared by the fixed-CRF path and every TQ probe encode
// in encode_tq.go. If ctx is cancelled while the child is running,
// its whole process group is killed so no orphaned encoder survives the
// pipeline giving up on it.
func runEncoder(ctx context.Context, chunkIdx int, encCfg *encoder.EncConfig, packedYUV []byte) error {
	cmd := encoder.MakeSvtCmd(encCfg)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start encoder: %w", err)
	}
	_ = encoder.AfterStart(cmd, encCfg.LowPriority)

	done := make(chan struct{})
	killed := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			encoder.KillGroup(cmd)
			close(killed)
		case <-done:
		}
	}()

	reader := newYUVReader(packedYUV, encCfg.Width, encCfg.Height, encCfg.Frames)
	n, copyErr := io.Copy(stdin, reader)
	_ = stdin.Close()

	if copyErr != nil {
		_ = cmd.Wait()
		close(done)
		select {
		case <-killed:
			return ctx.Err()
		default:
		}
		frameSize := yuvFrameSize(encCfg.Width, encCfg.Height)
		return drerrors.NewStdinClosedError(chunkIdx, int(n)/frameSize)
	}

	waitErr := cmd.Wait()
	close(done)
	select {
	case <-killed:
		return ctx.Err()
	default:
	}
	if waitErr != nil {
		return drerrors.WrapExecError(chunkIdx, waitErr, stderr.String())
	}
	return nil
}

// yuvReader unpacks packed 10-bit frames on the fly, one frame at a
// time, and serves the resulting 16-bit little-endian wire form the encoder
// expects on stdin. Frame-at-a-time unpacking avoids holding a second
// full-chunk-sized buffer alongside the packed one.
type yuvReader struct {
	packed          []byte
	packedFrameSize int
	frameIdx        int
	frameCount      int
	width, height   uint32

	scratch []byte
	pos     int
}

func newYUVReader(packed []byte, width, height uint32, frameCount int) *yuvReader {
	return &yuvReader{
		packed:          packed,
		packedFrameSize: yuv.PackedFrameSize(width, height),
		frameCount:      frameCount,
		width:           width,
		height:          height,
		scratch:         make([]byte, yuv.UnpackedFrameSize(width, height)),
		pos:             0,
	}
}

func (r *yuvReader) fillFrame() bool {
	if r.frameIdx >= r.frameCount {
		return false
	}
	off := r.frameIdx * r.packedFrameSize
	unpackFramePlanes(r.packed[off:off+r.packedFrameSize], r.width, r.height, r.scratch)
	r.frameIdx++
	r.pos = 0
	return true
}

func (r *yuvReader) Read(p []byte) (n int, err error) {
	if r.pos >= len(r.scratch) {
		if !r.fillFrame() {
			return 0, io.EOF
		}
	}
	n = copy(p, r.scratch[r.pos:])
	r.pos += n
	return n, nil
}

// unpackFramePlanes reverses the per-plane packing ExtractFrame applies,
// writing the 16-bit-little-endian wire form for one frame into dst.
func unpackFramePlanes(packed []byte, width, height uint32, dst []byte) {
	ySamples, uSamples, vSamples := yuv.PlaneSize420(width, height)
	yPacked := yuv.PackedPlaneBytes(ySamples)
	uPacked := yuv.PackedPlaneBytes(uSamples)

	yLE := ySamples * 2
	uLE := uSamples * 2

	yuv.UnpackToLE16(packed[:yPacked], ySamples, dst[:yLE])
	yuv.UnpackToLE16(packed[yPacked:yPacked+uPacked], uSamples, dst[yLE:yLE+uLE])
	yuv.UnpackToLE16(packed[yPacked+uPacked:], vSamples, dst[yLE+uLE:])
}
