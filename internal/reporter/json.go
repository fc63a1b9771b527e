package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/five82/carve/internal/util"
)

// JSONReporter emits NDJSON events in the schema Spindle consumes. One
// event per line; every event carries "type" and a Unix "timestamp".
type JSONReporter struct {
	writer             io.Writer
	mu                 sync.Mutex
	lastProgressBucket int
	lastProgressTime   time.Time
}

// NewJSONReporter returns a JSONReporter writing to stdout.
func NewJSONReporter() *JSONReporter {
	return NewJSONReporterWithWriter(os.Stdout)
}

// NewJSONReporterWithWriter returns a JSONReporter writing to w.
func NewJSONReporterWithWriter(w io.Writer) *JSONReporter {
	return &JSONReporter{writer: w, lastProgressBucket: -1}
}

// emit stamps the event type and timestamp onto fields and writes one
// NDJSON line. Marshal failures drop the event; reporting never fails an
// encode.
func (r *JSONReporter) emit(eventType string, fields map[string]any) {
	fields["type"] = eventType
	fields["timestamp"] = time.Now().Unix()

	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := json.Marshal(fields)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintln(r.writer, string(data))
}

func (r *JSONReporter) Hardware(summary HardwareSummary) {
	r.emit("hardware", map[string]any{
		"hostname": summary.Hostname,
	})
}

func (r *JSONReporter) Initialization(summary InitializationSummary) {
	r.emit("initialization", map[string]any{
		"input_file":        summary.InputFile,
		"output_file":       summary.OutputFile,
		"duration":          summary.Duration,
		"resolution":        summary.Resolution,
		"category":          summary.Category,
		"dynamic_range":     summary.DynamicRange,
		"audio_description": summary.AudioDescription,
	})
}

func (r *JSONReporter) StageProgress(update StageProgress) {
	fields := map[string]any{
		"stage":   update.Stage,
		"percent": update.Percent,
		"message": update.Message,
	}
	if update.ETA != nil {
		fields["eta_seconds"] = int64(update.ETA.Seconds())
	}
	r.emit("stage_progress", fields)
}

func (r *JSONReporter) CropResult(summary CropSummary) {
	r.emit("crop_result", map[string]any{
		"message":  summary.Message,
		"crop":     summary.Crop,
		"required": summary.Required,
		"disabled": summary.Disabled,
	})
}

func (r *JSONReporter) EncodingConfig(summary EncodingConfigSummary) {
	presetSettings := make([]map[string]string, len(summary.CarvePresetSettings))
	for i, kv := range summary.CarvePresetSettings {
		presetSettings[i] = map[string]string{"key": kv[0], "value": kv[1]}
	}

	r.emit("encoding_config", map[string]any{
		"encoder":               summary.Encoder,
		"preset":                summary.Preset,
		"tune":                  summary.Tune,
		"quality":               summary.Quality,
		"pixel_format":          summary.PixelFormat,
		"matrix_coefficients":   summary.MatrixCoefficients,
		"audio_codec":           summary.AudioCodec,
		"audio_description":     summary.AudioDescription,
		"carve_preset":          summary.CarvePreset,
		"carve_preset_settings": presetSettings,
		"svtav1_params":         summary.SVTAV1Params,
	})
}

func (r *JSONReporter) EncodingStarted(totalFrames uint64) {
	r.mu.Lock()
	r.lastProgressBucket = -1
	r.lastProgressTime = time.Time{}
	r.mu.Unlock()

	r.emit("encoding_started", map[string]any{
		"total_frames": totalFrames,
	})
}

func (r *JSONReporter) EncodingProgress(progress ProgressSnapshot) {
	// Progress arrives far faster than a log consumer wants it. Emit on
	// each whole-percent step, on a 5s heartbeat, and always near the end.
	const minInterval = 5 * time.Second

	bucket := int(progress.Percent)
	now := time.Now()

	r.mu.Lock()
	heartbeat := r.lastProgressTime.IsZero() || now.Sub(r.lastProgressTime) >= minInterval
	if bucket <= r.lastProgressBucket && !heartbeat && progress.Percent < 99.0 {
		r.mu.Unlock()
		return
	}
	if bucket > r.lastProgressBucket {
		r.lastProgressBucket = bucket
	}
	r.lastProgressTime = now
	r.mu.Unlock()

	r.emit("encoding_progress", map[string]any{
		"stage":         "encoding",
		"current_frame": progress.CurrentFrame,
		"total_frames":  progress.TotalFrames,
		"percent":       progress.Percent,
		"speed":         progress.Speed,
		"fps":           progress.FPS,
		"eta_seconds":   int64(progress.ETA.Seconds()),
		"bitrate":       progress.Bitrate,
	})
}

func (r *JSONReporter) ValidationComplete(summary ValidationSummary) {
	steps := make([]map[string]any, len(summary.Steps))
	for i, step := range summary.Steps {
		steps[i] = map[string]any{
			"step":    step.Name,
			"passed":  step.Passed,
			"details": step.Details,
		}
	}

	r.emit("validation_complete", map[string]any{
		"validation_passed": summary.Passed,
		"validation_steps":  steps,
	})
}

func (r *JSONReporter) EncodingComplete(summary EncodingOutcome) {
	r.emit("encoding_complete", map[string]any{
		"input_file":             summary.InputFile,
		"output_file":            summary.OutputFile,
		"original_size":          summary.OriginalSize,
		"encoded_size":           summary.EncodedSize,
		"video_stream":           summary.VideoStream,
		"audio_stream":           summary.AudioStream,
		"average_speed":          summary.AverageSpeed,
		"output_path":            summary.OutputPath,
		"duration_seconds":       int64(summary.TotalTime.Seconds()),
		"size_reduction_percent": util.CalculateSizeReduction(summary.OriginalSize, summary.EncodedSize),
	})
}

func (r *JSONReporter) Warning(message string) {
	r.emit("warning", map[string]any{"message": message})
}

func (r *JSONReporter) Verbose(message string) {
	r.emit("verbose", map[string]any{"message": message})
}

func (r *JSONReporter) Error(err ReporterError) {
	r.emit("error", map[string]any{
		"title":      err.Title,
		"message":    err.Message,
		"context":    err.Context,
		"suggestion": err.Suggestion,
	})
}

func (r *JSONReporter) OperationComplete(message string) {
	r.emit("operation_complete", map[string]any{"message": message})
}

func (r *JSONReporter) BatchStarted(info BatchStartInfo) {
	r.emit("batch_started", map[string]any{
		"total_files": info.TotalFiles,
		"file_list":   info.FileList,
		"output_dir":  info.OutputDir,
	})
}

func (r *JSONReporter) FileProgress(context FileProgressContext) {
	r.emit("file_progress", map[string]any{
		"current_file": context.CurrentFile,
		"total_files":  context.TotalFiles,
	})
}

func (r *JSONReporter) BatchComplete(summary BatchSummary) {
	r.emit("batch_complete", map[string]any{
		"successful_count":             summary.SuccessfulCount,
		"total_files":                  summary.TotalFiles,
		"total_original_size":          summary.TotalOriginalSize,
		"total_encoded_size":           summary.TotalEncodedSize,
		"total_duration_seconds":       int64(summary.TotalDuration.Seconds()),
		"total_size_reduction_percent": util.CalculateSizeReduction(summary.TotalOriginalSize, summary.TotalEncodedSize),
	})
}
