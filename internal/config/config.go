// Package config provides configuration types and defaults for carve.
package config

import "fmt"

// Default constants
const (
	// DefaultCRFSD is the default CRF quality setting for SD content (<1920 width).
	DefaultCRFSD uint8 = 25

	// DefaultCRFHD is the default CRF quality setting for HD content (>=1920, <3840 width).
	DefaultCRFHD uint8 = 27

	// DefaultCRFUHD is the default CRF quality setting for UHD content (>=3840 width).
	DefaultCRFUHD uint8 = 29

	// HDWidthThreshold is the minimum width for HD resolution.
	HDWidthThreshold uint32 = 1920

	// UHDWidthThreshold is the minimum width for UHD resolution.
	UHDWidthThreshold uint32 = 3840

	// DefaultSVTAV1Preset is the SVT-AV1 preset (0-13, lower is slower/better).
	DefaultSVTAV1Preset uint8 = 6

	// DefaultSVTAV1Tune is the SVT-AV1 tune parameter.
	DefaultSVTAV1Tune uint8 = 0

	// DefaultSVTAV1ACBias is the SVT-AV1 ac-bias parameter.
	DefaultSVTAV1ACBias float32 = 0.1

	// DefaultSVTAV1EnableVarianceBoost is whether variance boost is enabled.
	DefaultSVTAV1EnableVarianceBoost bool = false

	// DefaultSVTAV1VarianceBoostStrength is the variance boost strength.
	DefaultSVTAV1VarianceBoostStrength uint8 = 0

	// DefaultSVTAV1VarianceOctile is the variance octile parameter.
	DefaultSVTAV1VarianceOctile uint8 = 0

	// DefaultCropMode is the crop mode for the main encode.
	DefaultCropMode string = "auto"

	// DefaultEncodeCooldownSecs is the cooldown period between encodes.
	DefaultEncodeCooldownSecs uint64 = 3

	// ProgressLogIntervalPercent is the progress logging interval.
	ProgressLogIntervalPercent uint8 = 5

	// DefaultChunkDuration is the default chunk duration in seconds for non-4K content.
	DefaultChunkDuration float64 = 10.0

	// DefaultChunkDuration4K is the default chunk duration in seconds for 4K content.
	DefaultChunkDuration4K float64 = 20.0

	// DefaultThreadsPerWorker is the default number of threads per encoder worker.
	// 2 threads provides good balance: 16 workers x 2 threads = 32 total on a typical CPU.
	// Can be increased (4-8) for fewer, more powerful workers.
	DefaultThreadsPerWorker int = 2

	// DefaultSceneThreshold is the fractional frame-difference threshold used
	// for chunk-boundary detection.
	DefaultSceneThreshold float64 = 0.4

	// DefaultMetricWorkers is the default number of parallel TQ metric-scoring
	// workers.
	DefaultMetricWorkers int = 4
)

// AutoParallelConfig returns optimal workers and buffer settings.
// Workers default high; CapWorkers reduces based on resolution and memory.
// Buffer: fixed prefetch amount to keep workers fed.
func AutoParallelConfig() (workers, buffer int) {
	// Default to maximum possible; CapWorkers will reduce based on
	// actual resolution and available memory at encode time
	workers = 24 // Will be capped down for higher resolutions
	buffer = 4   // Prefetch buffer to keep workers fed
	return workers, buffer
}

// Config holds all configuration for video processing.
type Config struct {
	// Input/output paths
	InputDir  string
	OutputDir string
	LogDir    string
	TempDir   string // Optional work-dir root; defaults to the input file's directory

	// SVT-AV1 parameters
	SVTAV1Preset                uint8
	SVTAV1Tune                  uint8
	SVTAV1ACBias                float32
	SVTAV1EnableVarianceBoost   bool
	SVTAV1VarianceBoostStrength uint8
	SVTAV1VarianceOctile        uint8

	// SVTAV1ExtraParams holds trailing user-supplied encoder flags, split
	// on whitespace and appended just before the chunk pipeline's -b
	// <output>. Empty by default.
	SVTAV1ExtraParams string

	// Optional filters and film grain
	VideoDenoiseFilter     string // Optional denoise filter (e.g., "hqdn3d=1.5:1.5:3:3")
	SVTAV1FilmGrain        *uint8 // Optional film grain synthesis strength
	SVTAV1FilmGrainDenoise *bool  // Optional film grain denoise toggle

	// Quality settings (CRF value 0-63) by resolution
	CRFSD  uint8 // CRF for SD content (<1920 width)
	CRFHD  uint8 // CRF for HD content (>=1920, <3840 width)
	CRFUHD uint8 // CRF for UHD content (>=3840 width)

	// CarvePreset records the last grouped preset applied via ApplyPreset,
	// if any; nil means the caller configured fields individually.
	CarvePreset *Preset

	// Processing options
	CropMode           string // "auto" or "none"
	ResponsiveEncoding bool   // Reserve CPU threads for responsiveness
	EncodeCooldownSecs uint64 // Cooldown between batch encodes

	// SinglePass selects the legacy whole-file ffmpeg encode instead of the
	// chunked parallel pipeline. Target Quality search requires the chunked
	// pipeline and cannot be combined with it.
	SinglePass bool

	// Resume skips chunks already recorded in the work directory's
	// completion log. Refused unless a prior run left its argument
	// snapshot (cmd.txt) behind.
	Resume bool

	// CmdLine is the argument vector that started this run, persisted to
	// cmd.txt on fresh chunked runs so a later --resume can reconstruct
	// the invocation. Empty when the caller is a library consumer rather
	// than the CLI.
	CmdLine []string

	// Parallel encoding options
	Workers           int // Number of parallel encoder workers
	ChunkBuffer       int // Extra chunks to buffer in memory
	ThreadsPerWorker  int // Threads per encoder worker (SVT-AV1 --lp flag)

	// Chunk duration (set automatically based on resolution)
	ChunkDuration float64 // Chunk duration in seconds

	// Scene-change threshold for chunk-boundary detection, as a fraction
	// (0-1) of the frame-difference metric. Higher means fewer, longer chunks.
	SceneThreshold float64

	// Target Quality search (empty TargetQuality disables TQ; chunked
	// encoding then uses the fixed CRF. SinglePass selects the whole-file path).
	TargetQuality string // e.g. "70-75"; parsed by internal/tq.ParseTargetRange
	QPRange       string // e.g. "20-45"; parsed by internal/tq.ParseQPRange
	MetricMode    string // "mean" or "pN" frame-score aggregation
	MetricWorkers int    // Parallel metric-scoring workers

	// Debug options
	Verbose bool // Enable verbose output
}

// NewConfig creates a new Config with default values.
func NewConfig(inputDir, outputDir, logDir string) *Config {
	workers, buffer := AutoParallelConfig()

	return &Config{
		InputDir:                    inputDir,
		OutputDir:                   outputDir,
		LogDir:                      logDir,
		SVTAV1Preset:                DefaultSVTAV1Preset,
		SVTAV1Tune:                  DefaultSVTAV1Tune,
		SVTAV1ACBias:                DefaultSVTAV1ACBias,
		SVTAV1EnableVarianceBoost:   DefaultSVTAV1EnableVarianceBoost,
		SVTAV1VarianceBoostStrength: DefaultSVTAV1VarianceBoostStrength,
		SVTAV1VarianceOctile:        DefaultSVTAV1VarianceOctile,
		CRFSD:                       DefaultCRFSD,
		CRFHD:                       DefaultCRFHD,
		CRFUHD:                      DefaultCRFUHD,
		CropMode:                    DefaultCropMode,
		ResponsiveEncoding:          false,
		EncodeCooldownSecs:          DefaultEncodeCooldownSecs,
		Workers:                     workers,
		ChunkBuffer:                 buffer,
		ThreadsPerWorker:            DefaultThreadsPerWorker,
		ChunkDuration:               DefaultChunkDuration,
		SceneThreshold:              DefaultSceneThreshold,
		MetricMode:                  "mean",
		MetricWorkers:               DefaultMetricWorkers,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.SVTAV1Preset > 13 {
		return fmt.Errorf("svt_av1_preset must be 0-13, got %d: %w", c.SVTAV1Preset, ErrInvalidSVTPreset)
	}

	if c.CRFSD > 63 {
		return fmt.Errorf("crf-sd must be 0-63, got %d: %w", c.CRFSD, ErrInvalidCRF)
	}
	if c.CRFHD > 63 {
		return fmt.Errorf("crf-hd must be 0-63, got %d: %w", c.CRFHD, ErrInvalidCRF)
	}
	if c.CRFUHD > 63 {
		return fmt.Errorf("crf-uhd must be 0-63, got %d: %w", c.CRFUHD, ErrInvalidCRF)
	}

	if c.SVTAV1FilmGrain == nil && c.SVTAV1FilmGrainDenoise != nil {
		return fmt.Errorf("svt_av1_film_grain_denoise set without svt_av1_film_grain: %w", ErrInvalidFilmGrain)
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}

	if c.ChunkBuffer < 0 {
		return fmt.Errorf("chunk_buffer must be non-negative, got %d", c.ChunkBuffer)
	}

	if c.ChunkDuration < 1 || c.ChunkDuration > 120 {
		return fmt.Errorf("chunk_duration must be between 1 and 120 seconds, got %g", c.ChunkDuration)
	}

	if c.SceneThreshold < 0 || c.SceneThreshold > 1 {
		return fmt.Errorf("scene_threshold must be between 0 and 1, got %g", c.SceneThreshold)
	}

	if c.TargetQuality != "" && c.MetricWorkers < 1 {
		return fmt.Errorf("metric_workers must be at least 1, got %d", c.MetricWorkers)
	}

	if c.SinglePass && c.TargetQuality != "" {
		return fmt.Errorf("target quality search requires the chunked pipeline; drop --single-pass")
	}
	if c.SinglePass && c.Resume {
		return fmt.Errorf("resume is only supported by the chunked pipeline; drop --single-pass")
	}

	return nil
}

// ChunkedMode reports whether the chunked parallel pipeline handles the
// encode. This is the default; SinglePass opts out.
func (c *Config) ChunkedMode() bool {
	return !c.SinglePass
}

// TQMode reports whether per-chunk Target Quality search is enabled.
func (c *Config) TQMode() bool {
	return c.TargetQuality != ""
}

// CRFForWidth returns the appropriate CRF value based on video width.
func (c *Config) CRFForWidth(width uint32) uint8 {
	if width >= UHDWidthThreshold {
		return c.CRFUHD
	}
	if width >= HDWidthThreshold {
		return c.CRFHD
	}
	return c.CRFSD
}
