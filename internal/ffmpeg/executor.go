package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/five82/carve/internal/util"
)

// Progress is one parsed ffmpeg status line.
type Progress struct {
	CurrentFrame uint64
	TotalFrames  uint64
	Percent      float32
	Speed        float32
	FPS          float32
	ETA          time.Duration
	Bitrate      string
	ElapsedSecs  float64
}

// ProgressCallback receives each parsed status line during an encode.
type ProgressCallback func(Progress)

// Result is the outcome of one whole-file ffmpeg encode.
type Result struct {
	Success bool
	Error   error
	Stderr  string
}

var timeRegex = regexp.MustCompile(`time=(\d{2}:\d{2}:\d{2}\.?\d*)`)

// RunEncode runs one whole-file ffmpeg encode, streaming status lines from
// stderr through callback as they arrive.
func RunEncode(ctx context.Context, params *EncodeParams, disableAudio bool, totalFrames uint64, callback ProgressCallback) Result {
	cmd := exec.CommandContext(ctx, "ffmpeg", BuildCommand(params, disableAudio)...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{Error: fmt.Errorf("failed to get stderr pipe: %w", err)}
	}
	if err := cmd.Start(); err != nil {
		return Result{Error: fmt.Errorf("failed to start ffmpeg: %w", err)}
	}

	var captured strings.Builder
	scanStderr(stderr, &captured, params.Duration, totalFrames, callback)

	err = cmd.Wait()
	stderrStr := captured.String()

	switch {
	case err == nil:
		return Result{Success: true, Stderr: stderrStr}
	case ctx.Err() != nil:
		return Result{Error: fmt.Errorf("encoding cancelled: %w", ctx.Err()), Stderr: stderrStr}
	case strings.Contains(stderrStr, "No streams found"):
		return Result{Error: fmt.Errorf("no streams found in input file"), Stderr: stderrStr}
	default:
		return Result{Error: fmt.Errorf("ffmpeg failed: %w", err), Stderr: stderrStr}
	}
}

// scanStderr captures everything ffmpeg writes to stderr, splitting on both
// \n and \r: ffmpeg redraws its status line with bare carriage returns, so
// a line scanner would sit on one giant pseudo-line until exit.
func scanStderr(stderr io.Reader, captured *strings.Builder, duration float64, totalFrames uint64, callback ProgressCallback) {
	reader := bufio.NewReader(stderr)
	var line strings.Builder

	for {
		b, err := reader.ReadByte()
		if err != nil {
			return
		}
		captured.WriteByte(b)

		if b != '\r' && b != '\n' {
			line.WriteByte(b)
			continue
		}

		text := line.String()
		line.Reset()
		if callback != nil && strings.Contains(text, "frame=") {
			callback(parseProgressLine(text, duration, totalFrames))
		}
	}
}

// statusField extracts the whitespace-delimited value following "<key>=" in
// an ffmpeg status line, or "" when absent.
func statusField(line, key string) string {
	idx := strings.Index(line, key+"=")
	if idx < 0 {
		return ""
	}
	rest := strings.TrimLeft(line[idx+len(key)+1:], " ")
	if end := strings.IndexAny(rest, " \t\r\n"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

// parseProgressLine turns one "frame= ... fps= ... speed=..." status line
// into a Progress snapshot.
func parseProgressLine(line string, duration float64, totalFrames uint64) Progress {
	p := Progress{TotalFrames: totalFrames}

	if m := timeRegex.FindStringSubmatch(line); len(m) >= 2 {
		if secs, ok := util.ParseFFmpegTime(m[1]); ok {
			p.ElapsedSecs = secs
		}
	}
	if v, err := strconv.ParseUint(statusField(line, "frame"), 10, 64); err == nil {
		p.CurrentFrame = v
	}
	if v, err := strconv.ParseFloat(statusField(line, "fps"), 32); err == nil {
		p.FPS = float32(v)
	}
	p.Bitrate = statusField(line, "bitrate")
	if v, err := strconv.ParseFloat(strings.TrimSuffix(statusField(line, "speed"), "x"), 32); err == nil {
		p.Speed = float32(v)
	}

	if duration > 0 {
		p.Percent = float32(p.ElapsedSecs / duration * 100)
		if p.Percent > 100 {
			p.Percent = 100
		}
		if p.Speed > 0 {
			p.ETA = time.Duration((duration-p.ElapsedSecs)/float64(p.Speed)) * time.Second
		}
	}
	return p
}
