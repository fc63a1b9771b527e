// Package processing provides video processing orchestration.
package processing

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/five82/carve/internal/chunk"
	"github.com/five82/carve/internal/config"
	"github.com/five82/carve/internal/encode"
	drerrors "github.com/five82/carve/internal/errors"
	"github.com/five82/carve/internal/ffms"
	"github.com/five82/carve/internal/ffprobe"
	"github.com/five82/carve/internal/keyframe"
	"github.com/five82/carve/internal/mux"
	"github.com/five82/carve/internal/reporter"
	"github.com/five82/carve/internal/scd"
	"github.com/five82/carve/internal/tq"
	"github.com/five82/carve/internal/worker"
)

// chunkedRun carries the state a chunked/TQ encode accumulates across its
// phases (index → chunk → encode → assemble), so ProcessChunked itself
// reads as a short list of phase calls instead of one long function body.
type chunkedRun struct {
	ctx context.Context
	cfg *config.Config
	rep reporter.Reporter

	inputPath, outputPath string
	workDir               string

	idx    *ffms.VidIdx
	vidInf *ffms.VidInf
	fps    float64

	chunks       []chunk.Chunk
	cropH, cropV uint32

	audioStreams []ffprobe.AudioStreamInfo
	quality      uint32
}

// ProcessChunked runs the chunked/TQ encoding pipeline for a single file:
// index the source, derive chunk boundaries, run the parallel encode
// pipeline (fixed-CRF or target-quality), then assemble the finished
// bitstreams and mux in audio.
func ProcessChunked(
	ctx context.Context,
	cfg *config.Config,
	inputPath, outputPath string,
	videoProps *ffprobe.VideoProperties,
	audioStreams []ffprobe.AudioStreamInfo,
	quality uint32,
	rep reporter.Reporter,
) error {
	run := &chunkedRun{
		ctx:          ctx,
		cfg:          cfg,
		rep:          rep,
		inputPath:    inputPath,
		outputPath:   outputPath,
		workDir:      chunk.GetWorkDirPath(inputPath, cfg.TempDir),
		audioStreams: audioStreams,
		quality:      quality,
	}

	if err := chunk.CreateWorkDir(run.workDir); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	defer run.cleanupIfDone()

	if cfg.Resume {
		if !chunk.HasCmdSnapshot(run.workDir) {
			return drerrors.NewInvalidArgumentsError("no prior run to resume: " + chunk.CmdFileName + " not found in " + run.workDir)
		}
	} else {
		if err := chunk.ResetResumeLog(run.workDir); err != nil {
			return fmt.Errorf("failed to clear stale completion log: %w", err)
		}
		if len(cfg.CmdLine) > 0 {
			if err := chunk.WriteCmdSnapshot(run.workDir, cfg.CmdLine); err != nil {
				return fmt.Errorf("failed to write argument snapshot: %w", err)
			}
		}
	}

	if err := run.index(); err != nil {
		return err
	}
	defer run.idx.Close()

	if err := run.planChunks(videoProps); err != nil {
		return err
	}

	if err := run.encodeChunks(); err != nil {
		return err
	}

	return run.assemble()
}

// cleanupIfDone removes the work directory only once the output exists, so
// a failed run leaves done.txt and the partial bitstreams in place for the
// next invocation to resume from.
func (r *chunkedRun) cleanupIfDone() {
	if _, err := os.Stat(r.outputPath); err == nil {
		_ = chunk.CleanupWorkDir(r.workDir)
	}
}

// index creates the FFMS2 index and extracts source video properties.
func (r *chunkedRun) index() error {
	r.rep.StageProgress(reporter.StageProgress{Stage: "Indexing", Message: "Creating video index"})

	idx, err := ffms.NewVidIdx(r.inputPath, true)
	if err != nil {
		return drerrors.NewSourceOpenError(r.inputPath, err)
	}
	r.idx = idx

	vidInf, err := ffms.GetVidInf(idx)
	if err != nil {
		return drerrors.NewSourceOpenError(r.inputPath, err)
	}
	r.vidInf = vidInf
	r.fps = float64(vidInf.FPSNum) / float64(vidInf.FPSDen)
	return nil
}

// detectSceneBoundaries locates (or generates) the scenes.txt frame-index
// list that chunk.LoadScenesFromFile turns into Scenes. carve-scd, the
// real scene-change detector, is preferred whenever it is on PATH; when it
// is absent, fixed-length chunk boundaries from internal/keyframe stand in
// so the pipeline still has scene-aligned (if not cut-aligned) chunks to
// encode.
func (r *chunkedRun) detectSceneBoundaries(videoProps *ffprobe.VideoProperties) (string, error) {
	if scd.IsSCDBinaryAvailable() {
		return scd.DetectScenesIfNeeded(r.inputPath, r.workDir, r.vidInf.FPSNum, r.vidInf.FPSDen, r.vidInf.Frames, r.cfg.Verbose)
	}
	return keyframe.ExtractKeyframesIfNeeded(
		r.inputPath, r.workDir, r.vidInf.FPSNum, r.vidInf.FPSDen, r.vidInf.Frames,
		videoProps.Width, videoProps.Height,
	)
}

// planChunks derives chunk boundaries and the crop offsets every chunk's
// encode will apply.
func (r *chunkedRun) planChunks(videoProps *ffprobe.VideoProperties) error {
	r.rep.StageProgress(reporter.StageProgress{Stage: "Chunking", Message: "Determining chunk boundaries"})

	sceneFile, err := r.detectSceneBoundaries(videoProps)
	if err != nil {
		return fmt.Errorf("chunk-boundary detection failed: %w", err)
	}

	scenes, err := chunk.LoadScenesFromFile(sceneFile, uint32(r.vidInf.Frames))
	if err != nil {
		return fmt.Errorf("failed to load chunk boundaries: %w", err)
	}
	if err := chunk.ValidateScenes(scenes, r.vidInf.FPSNum, r.vidInf.FPSDen); err != nil {
		return fmt.Errorf("invalid chunk boundaries: %w", err)
	}

	r.chunks = chunk.Chunkify(scenes)
	r.rep.StageProgress(reporter.StageProgress{Stage: "Chunking", Message: fmt.Sprintf("Split video into %d chunks", len(r.chunks))})

	totalFrames := 0
	for _, c := range r.chunks {
		totalFrames += c.Frames()
	}
	avgChunkFrames := float64(totalFrames) / float64(len(r.chunks))
	r.rep.Verbose(fmt.Sprintf("Average chunk duration: %.1fs (%d frames)", avgChunkFrames/r.fps, int(avgChunkFrames)))

	cropResult := DetectCrop(r.inputPath, videoProps, r.cfg.CropMode == "none")
	if cropResult.Required && cropResult.CropFilter != "" {
		r.cropH, r.cropV = parseCropFilter(cropResult.CropFilter, videoProps.Width, videoProps.Height)
		r.rep.Verbose(fmt.Sprintf("Crop offsets: horizontal %d, vertical %d", r.cropH, r.cropV))
	} else if cropResult.TotalSamples == 0 && r.cfg.CropMode != "none" {
		cropErr := drerrors.NewCropDetectionError(fmt.Errorf("no sample read succeeded"))
		r.rep.Verbose(fmt.Sprintf("Crop detection skipped: %v", cropErr))
	}
	return nil
}

// encodeChunks dispatches the fixed-CRF or target-quality pipeline
// depending on whether Target Quality search is configured.
func (r *chunkedRun) encodeChunks() error {
	r.rep.StageProgress(reporter.StageProgress{Stage: "Encoding", Message: fmt.Sprintf("Starting chunked encoding with %d workers", r.cfg.Workers)})
	r.rep.EncodingStarted(uint64(r.vidInf.Frames))

	startTime := time.Now()
	progressCb := r.progressCallback(startTime)

	threadsPerWorker := uint32(encode.CalculateThreadsPerWorker(r.cfg.Workers, r.vidInf.Width))

	encCfg := &encode.EncodeConfig{
		Workers:               r.cfg.Workers,
		ChunkBuffer:           r.cfg.ChunkBuffer,
		CRF:                   float32(r.quality),
		Preset:                r.cfg.SVTAV1Preset,
		Tune:                  r.cfg.SVTAV1Tune,
		ACBias:                r.cfg.SVTAV1ACBias,
		EnableVarianceBoost:   r.cfg.SVTAV1EnableVarianceBoost,
		VarianceBoostStrength: r.cfg.SVTAV1VarianceBoostStrength,
		VarianceOctile:        r.cfg.SVTAV1VarianceOctile,
		LogicalProcessors:     &threadsPerWorker,
		LowPriority:           r.cfg.ResponsiveEncoding,
		ExtraParams:           r.cfg.SVTAV1ExtraParams,
	}

	var err error
	if r.cfg.TQMode() {
		err = r.encodeTargetQuality(encCfg, progressCb)
	} else {
		err = encode.EncodeAll(r.ctx, r.chunks, r.vidInf, encCfg, r.idx, r.workDir, r.cropH, r.cropV, progressCb)
	}
	if err != nil {
		return fmt.Errorf("chunked encoding failed: %w", err)
	}
	return nil
}

func (r *chunkedRun) encodeTargetQuality(encCfg *encode.EncodeConfig, progressCb encode.ProgressCallback) error {
	tqCfg, err := tq.ParseTargetRange(r.cfg.TargetQuality)
	if err != nil {
		return fmt.Errorf("invalid target quality: %w", err)
	}
	if r.cfg.QPRange != "" {
		qpMin, qpMax, err := tq.ParseQPRange(r.cfg.QPRange)
		if err != nil {
			return fmt.Errorf("invalid QP range: %w", err)
		}
		tqCfg.QPMin, tqCfg.QPMax = qpMin, qpMax
	}
	tqCfg.MetricMode = r.cfg.MetricMode

	r.rep.Verbose(fmt.Sprintf("Target quality: %s %.0f-%.0f", tqCfg.Metric, tqCfg.TargetMin, tqCfg.TargetMax))
	r.rep.Verbose(fmt.Sprintf("CRF search range: %.0f-%.0f", tqCfg.QPMin, tqCfg.QPMax))
	r.rep.Verbose(fmt.Sprintf("Metric mode: %s, workers %d", r.cfg.MetricMode, r.cfg.MetricWorkers))

	tqEncCfg := &encode.TQEncodeConfig{
		EncodeConfig:  *encCfg,
		TQConfig:      tqCfg,
		MetricWorkers: r.cfg.MetricWorkers,
		Verbose:       r.cfg.Verbose,
	}

	return encode.EncodeAllTQ(r.ctx, r.chunks, r.vidInf, tqEncCfg, r.idx, r.workDir, r.cropH, r.cropV, progressCb, r.rep)
}

func (r *chunkedRun) progressCallback(startTime time.Time) encode.ProgressCallback {
	return func(progress worker.Progress) {
		elapsed := time.Since(startTime)
		var speed float32
		var eta time.Duration

		if elapsed.Seconds() > 0 && progress.FramesComplete > 0 {
			videoSeconds := float64(progress.FramesComplete) / r.fps
			speed = float32(videoSeconds / elapsed.Seconds())
			if speed > 0 {
				remainingVideoSeconds := float64(progress.FramesTotal-progress.FramesComplete) / r.fps
				eta = time.Duration(remainingVideoSeconds/float64(speed)) * time.Second
			}
		}

		r.rep.EncodingProgress(reporter.ProgressSnapshot{
			CurrentFrame:   uint64(progress.FramesComplete),
			TotalFrames:    uint64(progress.FramesTotal),
			Percent:        float32(progress.Percent()),
			Speed:          speed,
			ETA:            eta,
			ChunksComplete: progress.ChunksComplete,
			ChunksTotal:    progress.ChunksTotal,
		})
	}
}

// assemble concatenates the finished per-chunk bitstreams and muxes in
// audio straight from the source container (no separate extraction pass:
// ffmpeg can stream-copy audio directly from the original input).
func (r *chunkedRun) assemble() error {
	r.rep.StageProgress(reporter.StageProgress{Stage: "Merging", Message: "Assembling encoded chunks"})

	encodeDir := filepath.Join(r.workDir, chunk.EncodeDirName)
	rate := mux.FrameRate{Num: r.vidInf.FPSNum, Den: r.vidInf.FPSDen}

	if len(r.audioStreams) == 0 {
		if err := mux.AssembleVideo(encodeDir, r.outputPath, rate); err != nil {
			return fmt.Errorf("video assembly failed: %w", err)
		}
		return nil
	}

	videoOnly := filepath.Join(r.workDir, "video_only.ivf")
	if err := mux.AssembleVideo(encodeDir, videoOnly, rate); err != nil {
		return fmt.Errorf("video assembly failed: %w", err)
	}

	r.rep.StageProgress(reporter.StageProgress{Stage: "Muxing", Message: "Muxing audio into final output"})
	if err := mux.MuxAudio(videoOnly, r.inputPath, r.outputPath); err != nil {
		return fmt.Errorf("final mux failed: %w", err)
	}
	return nil
}

// parseCropFilter extracts cropH and cropV from a crop filter string.
// Format: "crop=W:H:X:Y" where X is left offset and Y is top offset.
func parseCropFilter(filter string, srcWidth, srcHeight uint32) (cropH, cropV uint32) {
	var w, h, x, y uint32
	if _, err := fmt.Sscanf(filter, "crop=%d:%d:%d:%d", &w, &h, &x, &y); err != nil {
		return 0, 0
	}
	return x, y
}

// CheckChunkedDependencies verifies that required tools are available.
func CheckChunkedDependencies() error {
	if _, err := exec.LookPath("SvtAv1EncApp"); err != nil {
		return fmt.Errorf("SvtAv1EncApp not found in PATH (required for encoding)")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH (required for crop detection and audio muxing)")
	}
	if _, err := exec.LookPath("mkvmerge"); err != nil {
		return fmt.Errorf("mkvmerge not found in PATH (required to assemble chunk outputs)")
	}
	return nil
}
