// Package encode provides the parallel chunk encoding pipeline.
package encode

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/five82/carve/internal/chunk"
	"github.com/five82/carve/internal/encoder"
	drerrors "github.com/five82/carve/internal/errors"
	"github.com/five82/carve/internal/ffms"
	"github.com/five82/carve/internal/reporter"
	"github.com/five82/carve/internal/tq"
	"github.com/five82/carve/internal/vship"
	"github.com/five82/carve/internal/worker"
	"github.com/five82/carve/internal/yuv"
)

// TQEncodeConfig contains configuration for target quality encoding.
type TQEncodeConfig struct {
	EncodeConfig  // Embed standard encode config
	TQConfig      *tq.Config
	MetricWorkers int
	Verbose       bool
}

// rampConfig tunes the gradual-ramp dispatch limiter: dispatch starts at
// Start in-flight chunks and grows by Increment per completion until it
// reaches the full permit count, so the first few completions can seed
// tracker.Predict's diagnostic CRF hint before the pipeline opens up.
type rampConfig struct {
	Start     int
	Increment int
}

var defaultRamp = rampConfig{Start: 2, Increment: 2}

// tqPipeline holds everything the TQ goroutines (decode-dispatch, encode,
// metrics, coordinator) need, so EncodeAllTQ's own body stays a short
// setup-then-run-then-drain sequence instead of one long function carrying
// two dozen loose parameters through closures.
type tqPipeline struct {
	ctx     context.Context
	cfg     *TQEncodeConfig
	inf     *ffms.VidInf
	workDir string
	splitDir string
	width, height uint32

	feed *chunkFeed
	sem  *worker.Semaphore

	encodeChan  chan *worker.WorkPkg
	metricsChan chan *worker.WorkPkg
	reworkChan  chan *worker.WorkPkg
	doneChan    chan tqResult

	tracker  *tq.CRFTracker
	progress progressTracker
	rep      reporter.Reporter

	ramp      rampConfig
	rampLimit atomic.Int32
	rampChan  chan struct{}

	errOnce atomic.Pointer[error]

	resultsMu sync.Mutex
	results   []tqResult
}

func (p *tqPipeline) setError(err error) { p.errOnce.CompareAndSwap(nil, &err) }
func (p *tqPipeline) getError() error {
	if ptr := p.errOnce.Load(); ptr != nil {
		return *ptr
	}
	return nil
}

// EncodeAllTQ runs the target-quality encoding pipeline: a decoder feed
// dispatches chunks in ascending idx order to encoder workers that probe
// CRF values, metrics workers that score each probe and either request
// rework or emit a done result, and a coordinator that re-queues rework,
// persists completions to the resume log, and drives the gradual ramp-up.
func EncodeAllTQ(
	ctx context.Context,
	chunks []chunk.Chunk,
	inf *ffms.VidInf,
	cfg *TQEncodeConfig,
	idx *ffms.VidIdx,
	workDir string,
	cropH, cropV uint32,
	progressCb ProgressCallback,
	rep reporter.Reporter,
) error {
	if err := chunk.EnsureEncodeDir(workDir); err != nil {
		return fmt.Errorf("failed to create encode directory: %w", err)
	}
	splitDir := filepath.Join(workDir, chunk.SplitDirName)
	if err := os.MkdirAll(splitDir, 0o755); err != nil {
		return fmt.Errorf("failed to create split directory: %w", err)
	}

	resume, err := chunk.LoadResumeLog(workDir)
	if err != nil {
		return fmt.Errorf("failed to load resume info: %w", err)
	}
	remaining, totalFrames := remainingChunks(chunks, resume.SkipSet())
	if len(remaining) == 0 {
		return nil
	}

	if err := vship.InitDevice(); err != nil {
		return fmt.Errorf("failed to initialize VSHIP: %w", err)
	}

	feed, err := newChunkFeed(idx, inf, cropH, cropV, remaining)
	if err != nil {
		return err
	}
	if err := feed.open(idx, cfg.Workers); err != nil {
		return err
	}
	defer feed.close()

	// TQ mode caps in-flight chunks at the worker count (not workers+buffer):
	// fewer chunks in flight at once means more completions land before new
	// ones dispatch, which feeds the diagnostic CRF-hint tracker sooner.
	basePermits := CalculatePermits(cfg.Workers, feed.width, feed.height, avgFrames(totalFrames, len(chunks)), 0.5)
	if basePermits < cfg.Workers {
		rep.Verbose(fmt.Sprintf("Memory cap: limiting permits to %d (chunk: %d MB)",
			basePermits, ChunkMemoryBytes(feed.width, feed.height, avgFrames(totalFrames, len(chunks)))/(1024*1024)))
	}

	const chanBuffer = 2
	p := &tqPipeline{
		ctx:         ctx,
		cfg:         cfg,
		inf:         inf,
		workDir:     workDir,
		splitDir:    splitDir,
		width:       feed.width,
		height:      feed.height,
		feed:        feed,
		sem:         worker.NewSemaphore(basePermits),
		encodeChan:  make(chan *worker.WorkPkg, chanBuffer),
		metricsChan: make(chan *worker.WorkPkg, chanBuffer),
		reworkChan:  make(chan *worker.WorkPkg, chanBuffer),
		doneChan:    make(chan tqResult, len(remaining)),
		tracker:     tq.NewTracker(),
		rep:         rep,
		ramp:        defaultRamp,
		rampChan:    make(chan struct{}, basePermits),
		progress: progressTracker{
			progress: worker.Progress{
				ChunksTotal:    len(chunks),
				ChunksComplete: len(chunks) - len(remaining),
				FramesTotal:    totalFrames,
				FramesComplete: resume.TotalEncodedFrames(),
				BytesComplete:  resume.TotalEncodedSize(),
			},
			cb: progressCb,
		},
	}
	p.rampLimit.Store(int32(p.ramp.Start))

	var encoderWg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		encoderWg.Add(1)
		go func() {
			defer encoderWg.Done()
			p.runProbeWorker()
		}()
	}

	var metricsWg sync.WaitGroup
	for i := 0; i < cfg.MetricWorkers; i++ {
		metricsWg.Add(1)
		go func() {
			defer metricsWg.Done()
			p.runMetricsWorker()
		}()
	}

	var coordWg sync.WaitGroup
	coordWg.Add(1)
	go func() {
		defer coordWg.Done()
		p.runCoordinator(resume, len(remaining))
	}()

	go p.runDispatcher(ctx)

	// Coordinator closes encodeChan once every chunk (including rework
	// cycles) has reached doneChan; only then can encoder workers drain out.
	coordWg.Wait()
	encoderWg.Wait()
	close(p.metricsChan)
	metricsWg.Wait()
	close(p.reworkChan)
	close(p.doneChan)

	if cfg.Verbose && p.getError() == nil {
		fps := float64(inf.FPSNum) / float64(inf.FPSDen)
		stats := ComputeTQStats(p.results, fps, cfg.TQConfig.MaxRounds)
		OutputTQStats(stats, rep, cfg.TQConfig.TargetMin, cfg.TQConfig.TargetMax, p.results, fps)
	}

	return p.getError()
}

// tqResult contains the result of a completed TQ chunk.
type tqResult struct {
	ChunkIdx   int
	Frames     int
	Size       uint64
	FinalCRF   float64
	FinalScore float64
	Round      int
	Probes     []tq.ProbeEntry
	Error      error

	// PredictedCRF is the nearby-chunk CRF hint in effect when this chunk
	// was dispatched (0 if none yet existed). Diagnostic only.
	PredictedCRF float64

	// BoundsExhausted mirrors tq.State.BoundsExhausted: the search stopped
	// because SearchMin/SearchMax collapsed, not because a probe converged.
	BoundsExhausted bool
}

// runDispatcher decodes chunks in ascending idx order and hands each one to
// encodeChan, gated by the semaphore and the gradual ramp limit.
func (p *tqPipeline) runDispatcher(ctx context.Context) {
	dispatched := 0
	defaultCRF := (p.cfg.TQConfig.QPMin + p.cfg.TQConfig.QPMax) / 2

	for !p.feed.done() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if p.getError() != nil {
			return
		}

		for dispatched >= int(p.rampLimit.Load()) && dispatched < cap(p.sem.Chan()) {
			select {
			case <-p.rampChan:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-p.sem.Chan():
		case <-ctx.Done():
			return
		}
		dispatched++

		pkg, err := p.feed.next()
		if err != nil {
			if IsDecodeFailed(err) {
				// A chunk with zero readable frames is skipped, not
				// fatal. It still has to reach doneChan so the coordinator's
				// completion count converges.
				dispatched--
				p.sem.Release()
				p.doneChan <- tqResult{Error: err}
				continue
			}
			p.setError(err)
			p.sem.Release()
			return
		}

		predictedCRF := p.tracker.Predict(pkg.Chunk.Idx, defaultCRF)
		pkg.PredictedCRF = predictedCRF
		p.rep.Verbose(fmt.Sprintf("Chunk %d: nearby-chunk CRF hint=%.1f (from %d completed chunks), search bounds [%.0f, %.0f]",
			pkg.Chunk.Idx, predictedCRF, p.tracker.Count(), p.cfg.TQConfig.QPMin, p.cfg.TQConfig.QPMax))

		pkg.TQState = tq.NewState(p.cfg.TQConfig.Target, p.cfg.TQConfig.QPMin, p.cfg.TQConfig.QPMax)

		select {
		case p.encodeChan <- pkg:
		case <-ctx.Done():
			p.sem.Release()
			return
		}
	}
}

// yuvFrameSize returns the byte size of one 10-bit 4:2:0 frame in its
// unpacked 16-bit-little-endian wire form (what the encoder reads from
// stdin), as distinct from yuv.PackedFrameSize's compact transport size.
func yuvFrameSize(width, height uint32) int {
	return yuv.UnpackedFrameSize(width, height)
}

// runProbeWorker encodes each work package at the CRF its TQ state's
// NextCRF chooses, then forwards it for scoring.
func (p *tqPipeline) runProbeWorker() {
	for pkg := range p.encodeChan {
		if p.getError() != nil {
			return
		}

		crf := tq.NextCRF(pkg.TQState)
		probePath := p.probePath(pkg.Chunk.Idx, crf)
		if err := p.encodeAt(pkg, crf, probePath); err != nil {
			p.setError(fmt.Errorf("chunk %d probe at CRF %.2f: %w", pkg.Chunk.Idx, crf, err))
			continue
		}

		p.metricsChan <- pkg
	}
}

func (p *tqPipeline) probePath(chunkIdx int, crf float64) string {
	return filepath.Join(p.splitDir, fmt.Sprintf("%04d_%.2f.ivf", chunkIdx, crf))
}

// encodeAt runs the encoder over the chunk's full frame buffer at crf.
func (p *tqPipeline) encodeAt(pkg *worker.WorkPkg, crf float64, outputPath string) error {
	encCfg := &encoder.EncConfig{
		Inf:                   p.inf,
		CRF:                   float32(crf),
		Preset:                p.cfg.Preset,
		Tune:                  p.cfg.Tune,
		Output:                outputPath,
		GrainTable:            p.cfg.GrainTable,
		Width:                 p.width,
		Height:                p.height,
		Frames:                pkg.FrameCount,
		ACBias:                p.cfg.ACBias,
		EnableVarianceBoost:   p.cfg.EnableVarianceBoost,
		VarianceBoostStrength: p.cfg.VarianceBoostStrength,
		VarianceOctile:        p.cfg.VarianceOctile,
		LogicalProcessors:     p.cfg.LogicalProcessors,
		LowPriority:           p.cfg.LowPriority,
		ExtraParams:           p.cfg.ExtraParams,
	}
	return runEncoder(p.ctx, pkg.Chunk.Idx, encCfg, pkg.YUV)
}

// runMetricsWorker scores each probe, deciding whether the chunk's TQ
// search is done or needs another round.
func (p *tqPipeline) runMetricsWorker() {
	var proc *vship.Processor
	defer func() {
		if proc != nil {
			_ = proc.Close()
		}
	}()

	for pkg := range p.metricsChan {
		if p.getError() != nil {
			return
		}

		if proc == nil {
			var err error
			proc, err = vship.NewProcessor(
				metricKind(p.cfg.TQConfig.Metric),
				p.width, p.height,
				p.inf.FPSNum, p.inf.FPSDen,
				int32PtrToIntPtr(p.inf.MatrixCoefficients),
				int32PtrToIntPtr(p.inf.TransferCharacteristics),
				int32PtrToIntPtr(p.inf.ColorPrimaries),
				int32PtrToIntPtr(p.inf.ColorRange),
				int32PtrToIntPtr(p.inf.ChromaSamplePosition),
			)
			if err != nil {
				p.doneChan <- tqResult{ChunkIdx: pkg.Chunk.Idx, Error: fmt.Errorf("failed to create VSHIP processor: %w", err)}
				continue
			}
		}

		crf := pkg.TQState.LastCRF
		probePath := p.probePath(pkg.Chunk.Idx, crf)

		score, frameScores, size, err := computeMetrics(pkg, probePath, proc, p.width, p.height, p.cfg.TQConfig)
		if err != nil {
			p.doneChan <- tqResult{ChunkIdx: pkg.Chunk.Idx, Error: drerrors.NewMetricFailedError(pkg.Chunk.Idx, err)}
			continue
		}
		pkg.TQState.AddProbe(crf, score, frameScores, size)

		if !tq.ShouldComplete(pkg.TQState, score, p.cfg.TQConfig) {
			p.reworkChan <- pkg
			continue
		}

		p.doneChan <- p.finishChunk(pkg)
	}
}

// finishChunk resolves the chunk's best probe and reports the final
// tqResult; the coordinator promotes that probe's bitstream to the
// per-chunk final slot.
func (p *tqPipeline) finishChunk(pkg *worker.WorkPkg) tqResult {
	best := pkg.TQState.BestProbe()
	if best == nil {
		best = &pkg.TQState.Probes[len(pkg.TQState.Probes)-1]
	}

	// The accepted scores feed the end-of-run distribution summary. CVVDP
	// probes carry no per-frame list, so their single aggregate stands in.
	if len(best.FrameScores) > 0 {
		tq.RecordFinalScores(best.FrameScores)
	} else {
		tq.RecordFinalScores([]float64{best.Score})
	}

	probeEntries := make([]tq.ProbeEntry, len(pkg.TQState.Probes))
	for i, pr := range pkg.TQState.Probes {
		probeEntries[i] = tq.ProbeEntry{CRF: pr.CRF, Score: pr.Score, Size: pr.Size}
	}

	result := tqResult{
		ChunkIdx:        pkg.Chunk.Idx,
		Frames:          pkg.FrameCount,
		FinalCRF:        best.CRF,
		FinalScore:      best.Score,
		Round:           pkg.TQState.Round,
		Probes:          probeEntries,
		PredictedCRF:    pkg.PredictedCRF,
		BoundsExhausted: pkg.TQState.BoundsExhausted,
		Size:            best.Size,
	}

	pkg.YUV = nil
	return result
}

// runCoordinator re-queues rework, records completions to the resume log,
// drives the gradual ramp-up, and reports progress, until every remaining
// chunk has reached doneChan.
func (p *tqPipeline) runCoordinator(resume *chunk.ResumeLog, totalRemaining int) {
	defer close(p.encodeChan)

	completed := 0
	maxPermits := cap(p.sem.Chan())

	for completed < totalRemaining {
		if p.getError() != nil {
			return
		}

		select {
		case pkg, ok := <-p.reworkChan:
			if !ok {
				continue
			}
			p.encodeChan <- pkg

		case result, ok := <-p.doneChan:
			if !ok {
				continue
			}
			completed++
			if result.Error != nil {
				p.setError(result.Error)
				p.sem.Release()
				continue
			}

			p.tracker.Record(result.ChunkIdx, result.FinalCRF)
			p.rep.Verbose(fmt.Sprintf("Chunk %d complete: CRF=%.0f, score=%.1f, %d iterations",
				result.ChunkIdx, result.FinalCRF, result.FinalScore, result.Round))

			p.advanceRamp(maxPermits)

			// Promote by copy: the winning probe's bitstream becomes the
			// chunk's final output, avoiding a re-encode.
			bestPath := p.probePath(result.ChunkIdx, result.FinalCRF)
			finalPath := chunk.IVFPath(p.workDir, result.ChunkIdx)
			if err := copyFile(bestPath, finalPath); err != nil {
				p.setError(fmt.Errorf("chunk %d: failed to promote best probe: %w", result.ChunkIdx, err))
				p.sem.Release()
				continue
			}

			_ = resume.Append(chunk.Completion{Idx: result.ChunkIdx, Frames: result.Frames, Bytes: result.Size})
			p.sem.Release()
			p.progress.recordChunk(result.Frames, result.Size)

			p.resultsMu.Lock()
			p.results = append(p.results, result)
			p.resultsMu.Unlock()
		}
	}
}

func (p *tqPipeline) advanceRamp(maxPermits int) {
	current := int(p.rampLimit.Load())
	if current >= maxPermits {
		return
	}
	next := min(current+p.ramp.Increment, maxPermits)
	p.rampLimit.Store(int32(next))
	p.rep.Verbose(fmt.Sprintf("Ramp-up: increased dispatch limit to %d", next))
	select {
	case p.rampChan <- struct{}{}:
	default:
	}
}

// metricKind maps a TQ metric selection onto the vship kernel that
// implements it.
func metricKind(m tq.Metric) vship.Kind {
	switch m {
	case tq.MetricButteraugli:
		return vship.KindButteraugli
	case tq.MetricCVVDP:
		return vship.KindCVVDP
	default:
		return vship.KindSSIMULACRA2
	}
}

// computeMetrics scores a probe by comparing every already-held source
// frame against the decoded probe output, reducing the per-frame scores per
// tqCfg.MetricMode. CVVDP is the odd one out: its kernel aggregates
// temporally as frames are fed, so its chunk score is the last value it
// returns and no per-frame list is kept.
func computeMetrics(
	pkg *worker.WorkPkg,
	probePath string,
	proc *vship.Processor,
	width, height uint32,
	tqCfg *tq.Config,
) (score float64, frameScores []float64, size uint64, err error) {
	stat, err := os.Stat(probePath)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("failed to stat probe file: %w", err)
	}
	size = uint64(stat.Size())

	probeIdx, err := ffms.NewVidIdx(probePath, false)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("failed to index probe file: %w", err)
	}
	defer probeIdx.Close()

	probeSrc, err := ffms.ThrVidSrc(probeIdx, 1)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("failed to create probe video source: %w", err)
	}
	defer probeSrc.Close()

	const pixelSize = 2
	packedFrameSize := yuv.PackedFrameSize(width, height)
	ySamples, uSamples, _ := yuv.PlaneSize420(width, height)
	ySize := ySamples * pixelSize
	uvSize := uSamples * pixelSize
	scratch := make([]byte, yuv.UnpackedFrameSize(width, height))

	// CVVDP aggregates across the probe's whole frame sequence; stale state
	// from the previous probe must not leak into this one.
	if err := proc.Reset(); err != nil {
		return 0, nil, 0, err
	}
	isCVVDP := proc.Kind() == vship.KindCVVDP

	frameScores = make([]float64, pkg.FrameCount)
	var last float64

	for i := 0; i < pkg.FrameCount; i++ {
		srcOffset := i * packedFrameSize
		unpackFramePlanes(pkg.YUV[srcOffset:srcOffset+packedFrameSize], width, height, scratch)

		srcY := unsafe.Pointer(&scratch[0])
		srcU := unsafe.Pointer(&scratch[ySize])
		srcV := unsafe.Pointer(&scratch[ySize+uvSize])
		srcPlanes := [3]unsafe.Pointer{srcY, srcU, srcV}
		srcStrides := [3]int64{
			int64(width) * int64(pixelSize),
			int64(width) / 2 * int64(pixelSize),
			int64(width) / 2 * int64(pixelSize),
		}

		frame, err := ffms.GetFrame(probeSrc, i)
		if err != nil {
			return 0, nil, 0, fmt.Errorf("failed to get frame %d: %w", i, err)
		}
		disPlanes := [3]unsafe.Pointer{frame.Data[0], frame.Data[1], frame.Data[2]}
		disStrides := [3]int64{int64(frame.Linesize[0]), int64(frame.Linesize[1]), int64(frame.Linesize[2])}

		s, err := proc.Compute(srcPlanes, disPlanes, srcStrides, disStrides)
		if err != nil {
			return 0, nil, 0, fmt.Errorf("failed to compute %s for frame %d: %w", proc.Kind(), i, err)
		}
		frameScores[i] = s
		last = s
	}

	if isCVVDP {
		// The kernel already reduced temporally; the last value is the
		// chunk score and a per-frame breakdown would be meaningless.
		return last, nil, size, nil
	}

	score = tq.ReduceScores(frameScores, tqCfg.MetricMode, tqCfg.Metric.BetterIsHigher())
	return score, frameScores, size, nil
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// int32PtrToIntPtr converts *int32 to *int, returning nil for nil input.
func int32PtrToIntPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	val := int(*v)
	return &val
}
