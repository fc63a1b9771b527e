package processing

import (
	"context"
	"fmt"
	"time"

	"github.com/five82/carve/internal/config"
	drerrors "github.com/five82/carve/internal/errors"
	"github.com/five82/carve/internal/ffmpeg"
	"github.com/five82/carve/internal/ffprobe"
	"github.com/five82/carve/internal/mediainfo"
	"github.com/five82/carve/internal/reporter"
	"github.com/five82/carve/internal/util"
	"github.com/five82/carve/internal/validation"
)

// EncodeResult summarizes one finished file.
type EncodeResult struct {
	Filename          string
	Duration          time.Duration
	InputSize         uint64
	OutputSize        uint64
	VideoDurationSecs float64
	EncodingSpeed     float32
	ValidationPassed  bool
	ValidationSteps   []validation.ValidationStep
}

// ProcessVideos encodes each file in filesToProcess in turn: probe, crop,
// encode (chunked by default, whole-file ffmpeg with SinglePass), validate,
// and report. Per-file failures are reported and skipped; the batch keeps
// going.
func ProcessVideos(
	ctx context.Context,
	cfg *config.Config,
	filesToProcess []string,
	targetFilenameOverride string,
	rep reporter.Reporter,
) ([]EncodeResult, error) {
	if rep == nil {
		rep = reporter.NullReporter{}
	}

	sysInfo := util.GetSystemInfo()
	rep.Hardware(reporter.HardwareSummary{Hostname: sysInfo.Hostname})

	batch := len(filesToProcess) > 1
	if batch {
		var names []string
		for _, f := range filesToProcess {
			names = append(names, util.GetFilename(f))
		}
		rep.BatchStarted(reporter.BatchStartInfo{
			TotalFiles: len(filesToProcess),
			FileList:   names,
			OutputDir:  cfg.OutputDir,
		})
	}

	var results []EncodeResult
	for fileIdx, inputPath := range filesToProcess {
		if ctx.Err() != nil {
			rep.Warning(fmt.Sprintf("Encoding cancelled: %v", drerrors.NewCancelledError()))
			break
		}

		if batch {
			rep.FileProgress(reporter.FileProgressContext{
				CurrentFile: fileIdx + 1,
				TotalFiles:  len(filesToProcess),
			})
		}

		override := ""
		if !batch && targetFilenameOverride != "" {
			override = targetFilenameOverride
		}

		run := &fileRun{ctx: ctx, cfg: cfg, rep: rep, inputPath: inputPath}
		result, ok := run.process(override)
		if !ok {
			continue
		}
		results = append(results, *result)

		// Let the machine cool off between heavy batch encodes.
		if batch && fileIdx < len(filesToProcess)-1 && cfg.EncodeCooldownSecs > 0 {
			time.Sleep(time.Duration(cfg.EncodeCooldownSecs) * time.Second)
		}
	}

	summarize(rep, results, len(filesToProcess))
	return results, nil
}

// fileRun is the per-file orchestration state.
type fileRun struct {
	ctx context.Context
	cfg *config.Config
	rep reporter.Reporter

	inputPath  string
	outputPath string

	props        *ffprobe.VideoProperties
	hdr          mediainfo.HDRInfo
	audioCh      []uint32
	audioStreams []ffprobe.AudioStreamInfo
	quality      uint32
	category     string
}

// process runs one file end to end, reporting (not returning) failures.
// The bool result says whether an EncodeResult was produced.
func (f *fileRun) process(filenameOverride string) (*EncodeResult, bool) {
	start := time.Now()
	inputFilename := util.GetFilename(f.inputPath)
	f.outputPath = util.ResolveOutputPath(f.inputPath, f.cfg.OutputDir, filenameOverride)

	if util.FileExists(f.outputPath) {
		f.rep.Warning(fmt.Sprintf("Output file already exists: %s. Skipping encode.", f.outputPath))
		return nil, false
	}

	if !f.analyze(inputFilename) {
		return nil, false
	}
	f.announce(inputFilename)

	var expectedDims *[2]uint32
	if f.cfg.ChunkedMode() {
		// The chunked pipeline does its own crop detection, config
		// reporting, and frame accounting internally: chunk boundaries
		// aren't known until the video is indexed.
		err := ProcessChunked(f.ctx, f.cfg, f.inputPath, f.outputPath, f.props, f.audioStreams, f.quality, f.rep)
		if err != nil {
			f.rep.Error(reporter.ReporterError{
				Title:      "Encoding Error",
				Message:    fmt.Sprintf("Chunked encoding failed for %s: %v", inputFilename, err),
				Context:    fmt.Sprintf("File: %s", f.inputPath),
				Suggestion: "Check the chunk work directory logs for more details",
			})
			return nil, false
		}
	} else {
		dims, ok := f.encodeSinglePass(inputFilename)
		if !ok {
			return nil, false
		}
		expectedDims = dims
	}

	elapsed := time.Since(start)
	inputSize, _ := util.GetFileSize(f.inputPath)
	outputSize, _ := util.GetFileSize(f.outputPath)
	speed := float32(f.props.DurationSecs) / float32(elapsed.Seconds())

	passed, steps := f.validate(expectedDims)
	f.reportOutcome(inputFilename, inputSize, outputSize, elapsed, speed, expectedDims, passed, steps)

	return &EncodeResult{
		Filename:          inputFilename,
		Duration:          elapsed,
		InputSize:         inputSize,
		OutputSize:        outputSize,
		VideoDurationSecs: f.props.DurationSecs,
		EncodingSpeed:     speed,
		ValidationPassed:  passed,
		ValidationSteps:   steps,
	}, true
}

// analyze probes the input's video, HDR, and audio metadata.
func (f *fileRun) analyze(inputFilename string) bool {
	props, err := ffprobe.GetVideoProperties(f.inputPath)
	if err != nil {
		f.rep.Error(reporter.ReporterError{
			Title:      "Analysis Error",
			Message:    fmt.Sprintf("Could not analyze %s: %v", inputFilename, drerrors.NewProbeError(f.inputPath, err)),
			Context:    fmt.Sprintf("File: %s", f.inputPath),
			Suggestion: "Check if the file is a valid video format",
		})
		return false
	}
	f.props = props

	mi, err := mediainfo.GetMediaInfo(f.inputPath)
	if err != nil {
		f.rep.Error(reporter.ReporterError{
			Title:      "Analysis Error",
			Message:    fmt.Sprintf("Could not get mediainfo for %s: %v", inputFilename, err),
			Context:    fmt.Sprintf("File: %s", f.inputPath),
			Suggestion: "Check if mediainfo is installed",
		})
		return false
	}
	f.hdr = mediainfo.DetectHDR(mi)

	f.quality, f.category = qualityForResolution(props, f.cfg)
	f.audioCh = GetAudioChannels(f.inputPath)
	f.audioStreams = GetAudioStreamInfo(f.inputPath)
	return true
}

// announce emits the pre-encode file summary.
func (f *fileRun) announce(inputFilename string) {
	f.rep.Initialization(reporter.InitializationSummary{
		InputFile:        inputFilename,
		OutputFile:       util.GetFilename(f.outputPath),
		Duration:         util.FormatDuration(f.props.DurationSecs),
		Resolution:       fmt.Sprintf("%dx%d", f.props.Width, f.props.Height),
		Category:         f.category,
		DynamicRange:     dynamicRangeLabel(f.hdr.IsHDR),
		AudioDescription: FormatAudioDescription(f.audioCh),
	})
}

// encodeSinglePass runs the legacy whole-file ffmpeg encode, returning the
// expected post-crop dimensions for validation.
func (f *fileRun) encodeSinglePass(inputFilename string) (*[2]uint32, bool) {
	cropResult := DetectCrop(f.inputPath, f.props, f.cfg.CropMode == "none")
	f.rep.CropResult(reporter.CropSummary{
		Message:  cropResult.Message,
		Crop:     cropResult.CropFilter,
		Required: cropResult.Required,
		Disabled: f.cfg.CropMode == "none",
	})

	params := f.buildEncodeParams(cropResult)

	f.rep.EncodingConfig(reporter.EncodingConfigSummary{
		Encoder:             "SVT-AV1",
		Preset:              fmt.Sprintf("%d", params.Preset),
		Tune:                fmt.Sprintf("%d", params.Tune),
		Quality:             fmt.Sprintf("CRF %d", params.Quality),
		PixelFormat:         params.PixelFormat,
		MatrixCoefficients:  params.MatrixCoefficients,
		AudioCodec:          "Opus",
		AudioDescription:    FormatAudioDescriptionConfig(f.audioCh, f.audioStreams),
		CarvePreset:         presetLabel(f.cfg.CarvePreset),
		CarvePresetSettings: collectPresetSettings(params),
		SVTAV1Params:        params.SVTAV1CLIParams(),
	})

	totalFrames := uint64(0)
	if mi, err := ffprobe.GetMediaInfo(f.inputPath); err == nil {
		totalFrames = mi.TotalFrames
	}
	f.rep.EncodingStarted(totalFrames)

	result := ffmpeg.RunEncode(f.ctx, params, false, totalFrames, func(progress ffmpeg.Progress) {
		f.rep.EncodingProgress(reporter.ProgressSnapshot{
			CurrentFrame: progress.CurrentFrame,
			TotalFrames:  progress.TotalFrames,
			Percent:      progress.Percent,
			Speed:        progress.Speed,
			FPS:          progress.FPS,
			ETA:          progress.ETA,
			Bitrate:      progress.Bitrate,
		})
	})
	if !result.Success {
		f.rep.Error(reporter.ReporterError{
			Title:      "Encoding Error",
			Message:    fmt.Sprintf("FFmpeg failed to encode %s: %v", inputFilename, result.Error),
			Context:    fmt.Sprintf("File: %s", f.inputPath),
			Suggestion: "Check FFmpeg logs for more details",
		})
		return nil, false
	}

	w, h := GetOutputDimensions(f.props.Width, f.props.Height, params.CropFilter)
	return &[2]uint32{w, h}, true
}

// validate runs the post-encode checks. Chunked mode derives its crop from
// the source itself, so expectedDims is nil there and the dimension check
// is skipped.
func (f *fileRun) validate(expectedDims *[2]uint32) (bool, []validation.ValidationStep) {
	expectedDuration := f.props.DurationSecs
	expectedAudioTracks := len(f.audioCh)
	expectedHDR := f.hdr.IsHDR

	result, err := validation.ValidateOutputVideo(f.inputPath, f.outputPath, validation.Options{
		ExpectedDimensions:  expectedDims,
		ExpectedDuration:    &expectedDuration,
		ExpectedHDR:         &expectedHDR,
		ExpectedAudioTracks: &expectedAudioTracks,
	})
	if err != nil {
		return false, []validation.ValidationStep{
			{Name: "Validation", Passed: false, Details: err.Error()},
		}
	}
	return result.IsValid(), result.GetValidationSteps()
}

func (f *fileRun) reportOutcome(
	inputFilename string,
	inputSize, outputSize uint64,
	elapsed time.Duration,
	speed float32,
	expectedDims *[2]uint32,
	validationPassed bool,
	steps []validation.ValidationStep,
) {
	repSteps := make([]reporter.ValidationStep, len(steps))
	for i, s := range steps {
		repSteps[i] = reporter.ValidationStep{Name: s.Name, Passed: s.Passed, Details: s.Details}
	}
	f.rep.ValidationComplete(reporter.ValidationSummary{Passed: validationPassed, Steps: repSteps})

	w, h := f.props.Width, f.props.Height
	if expectedDims != nil {
		w, h = expectedDims[0], expectedDims[1]
	}
	f.rep.EncodingComplete(reporter.EncodingOutcome{
		InputFile:    inputFilename,
		OutputFile:   util.GetFilename(f.outputPath),
		OriginalSize: inputSize,
		EncodedSize:  outputSize,
		VideoStream:  fmt.Sprintf("AV1 (libsvtav1), %dx%d", w, h),
		AudioStream:  GenerateAudioResultsDescription(f.audioCh, f.audioStreams),
		TotalTime:    elapsed,
		AverageSpeed: speed,
		OutputPath:   f.outputPath,
	})
}

// buildEncodeParams assembles the whole-file ffmpeg parameters from the
// run's config and probed metadata.
func (f *fileRun) buildEncodeParams(crop CropResult) *ffmpeg.EncodeParams {
	params := &ffmpeg.EncodeParams{
		InputPath:             f.inputPath,
		OutputPath:            f.outputPath,
		Quality:               f.quality,
		Preset:                f.cfg.SVTAV1Preset,
		Tune:                  f.cfg.SVTAV1Tune,
		ACBias:                f.cfg.SVTAV1ACBias,
		EnableVarianceBoost:   f.cfg.SVTAV1EnableVarianceBoost,
		VarianceBoostStrength: f.cfg.SVTAV1VarianceBoostStrength,
		VarianceOctile:        f.cfg.SVTAV1VarianceOctile,
		VideoDenoiseFilter:    f.cfg.VideoDenoiseFilter,
		FilmGrain:             f.cfg.SVTAV1FilmGrain,
		FilmGrainDenoise:      f.cfg.SVTAV1FilmGrainDenoise,
		Duration:              f.props.DurationSecs,
		AudioChannels:         f.audioCh,
		AudioStreams:          f.audioStreams,
		VideoCodec:            "libsvtav1",
		PixelFormat:           "yuv420p10le",
		AudioCodec:            "libopus",
		LowPriority:           f.cfg.ResponsiveEncoding,
	}

	if crop.Required {
		params.CropFilter = crop.CropFilter
	}

	if f.hdr.IsHDR {
		params.MatrixCoefficients = f.hdr.MatrixCoefficients
		if params.MatrixCoefficients == "" {
			params.MatrixCoefficients = "bt2020nc"
		}
	} else {
		params.MatrixCoefficients = "bt709"
	}

	return params
}

// summarize closes out the run with either a per-file success line or the
// aggregated batch summary.
func summarize(rep reporter.Reporter, results []EncodeResult, totalFiles int) {
	switch len(results) {
	case 0:
		rep.Warning("No files were successfully encoded")
	case 1:
		rep.OperationComplete(fmt.Sprintf("Successfully encoded %s", results[0].Filename))
	default:
		var totalDuration time.Duration
		var totalOriginal, totalEncoded uint64
		var totalVideoSecs float64
		var fileResults []reporter.FileResult
		passed := 0

		for _, r := range results {
			totalDuration += r.Duration
			totalOriginal += r.InputSize
			totalEncoded += r.OutputSize
			totalVideoSecs += r.VideoDurationSecs
			fileResults = append(fileResults, reporter.FileResult{
				Filename:  r.Filename,
				Reduction: util.CalculateSizeReduction(r.InputSize, r.OutputSize),
			})
			if r.ValidationPassed {
				passed++
			}
		}

		avgSpeed := float32(0)
		if totalDuration.Seconds() > 0 {
			avgSpeed = float32(totalVideoSecs / totalDuration.Seconds())
		}

		rep.BatchComplete(reporter.BatchSummary{
			SuccessfulCount:       len(results),
			TotalFiles:            totalFiles,
			TotalOriginalSize:     totalOriginal,
			TotalEncodedSize:      totalEncoded,
			TotalDuration:         totalDuration,
			AverageSpeed:          avgSpeed,
			FileResults:           fileResults,
			ValidationPassedCount: passed,
			ValidationFailedCount: len(results) - passed,
		})
	}
}

// qualityForResolution picks the CRF tier and its display label by width.
func qualityForResolution(props *ffprobe.VideoProperties, cfg *config.Config) (uint32, string) {
	switch {
	case props.Width >= config.UHDWidthThreshold:
		return uint32(cfg.CRFUHD), "UHD"
	case props.Width >= config.HDWidthThreshold:
		return uint32(cfg.CRFHD), "HD"
	default:
		return uint32(cfg.CRFSD), "SD"
	}
}

func dynamicRangeLabel(isHDR bool) string {
	if isHDR {
		return "HDR"
	}
	return "SDR"
}

func presetLabel(p *config.Preset) string {
	if p == nil {
		return "Default"
	}
	switch *p {
	case config.PresetGrain:
		return "Grain"
	case config.PresetClean:
		return "Clean"
	case config.PresetQuick:
		return "Quick"
	default:
		return "Default"
	}
}

func collectPresetSettings(params *ffmpeg.EncodeParams) [][2]string {
	settings := [][2]string{
		{"CRF", fmt.Sprintf("%d", params.Quality)},
		{"SVT preset", fmt.Sprintf("%d", params.Preset)},
		{"Tune", fmt.Sprintf("%d", params.Tune)},
		{"AC bias", fmt.Sprintf("%.2f", params.ACBias)},
	}

	if params.EnableVarianceBoost {
		settings = append(settings, [2]string{"Variance boost",
			fmt.Sprintf("enabled (strength %d, octile %d)",
				params.VarianceBoostStrength, params.VarianceOctile)})
	} else {
		settings = append(settings, [2]string{"Variance boost", "disabled"})
	}

	if params.VideoDenoiseFilter != "" {
		settings = append(settings, [2]string{"Denoise", params.VideoDenoiseFilter})
	}

	if params.FilmGrain != nil {
		denoise := "-"
		if params.FilmGrainDenoise != nil {
			if *params.FilmGrainDenoise {
				denoise = "1"
			} else {
				denoise = "0"
			}
		}
		settings = append(settings, [2]string{"Film grain synth",
			fmt.Sprintf("film-grain %d, denoise %s", *params.FilmGrain, denoise)})
	}

	return settings
}
