// Package mux concatenates per-chunk IVF outputs into a single container and
// muxes in the audio track(s) discovered for the source.
package mux

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	drerrors "github.com/five82/carve/internal/errors"
)

const batchFanIn = 1024

// FrameRate is the muxer's required default-duration directive.
type FrameRate struct {
	Num uint32
	Den uint32
}

// AssembleVideo concatenates every *.ivf file in encodeDir, sorted ascending
// by the numeric filename stem, into output. Counts above the 1024 fan-in
// limit are batched into temp_merge/batch_<k>.ivf and the batches merged in
// a second pass.
func AssembleVideo(encodeDir, output string, rate FrameRate) error {
	entries, err := os.ReadDir(encodeDir)
	if err != nil {
		return drerrors.NewMuxError("failed to read encode directory", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".ivf" {
			continue
		}
		files = append(files, filepath.Join(encodeDir, e.Name()))
	}

	sort.Slice(files, func(i, j int) bool {
		return stemIdx(files[i]) < stemIdx(files[j])
	})

	if len(files) == 0 {
		return drerrors.NewMuxError("no chunk outputs to assemble", nil)
	}

	if len(files) <= batchFanIn {
		return runMerge(files, output, rate)
	}

	tempDir := filepath.Join(encodeDir, "temp_merge")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return drerrors.NewMuxError("failed to create temp_merge directory", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var batches []string
	for k, run := range partition(files, batchFanIn) {
		batchPath := filepath.Join(tempDir, fmt.Sprintf("batch_%d.ivf", k))
		if err := runMerge(run, batchPath, rate); err != nil {
			return err
		}
		batches = append(batches, batchPath)
	}

	return runMerge(batches, output, rate)
}

// partition slices files into runs of at most size elements, preserving
// order.
func partition(files []string, size int) [][]string {
	var runs [][]string
	for i := 0; i < len(files); i += size {
		end := i + size
		if end > len(files) {
			end = len(files)
		}
		runs = append(runs, files[i:end])
	}
	return runs
}

func stemIdx(path string) int {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	idx, err := strconv.Atoi(stem)
	if err != nil {
		return 0
	}
	return idx
}

func runMerge(files []string, output string, rate FrameRate) error {
	args := []string{
		"-q", "-o", output,
		"-A", "-S", "-B", "-M", "-T",
		"--no-global-tags", "--no-chapters", "--no-date",
		"--disable-language-ietf", "--disable-track-statistics-tags",
	}
	// --default-duration applies to the next input file, so it has to
	// precede the first IVF in the argument list.
	args = append(args, "--default-duration", fmt.Sprintf("0:%d/%dfps", rate.Num, rate.Den))
	for i, f := range files {
		if i > 0 {
			args = append(args, "+")
		}
		args = append(args, f)
	}

	cmd := exec.Command("mkvmerge", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return drerrors.NewMuxError(string(out), err)
	}
	return nil
}

// MuxAudio remuxes every audio track of audioSourcePath, stream-copied, alongside
// the already-assembled video at videoPath, producing output. Passthrough
// only: no audio is re-encoded.
func MuxAudio(videoPath string, audioSourcePath string, output string) error {
	args := []string{
		"-y",
		"-i", videoPath,
		"-i", audioSourcePath,
		"-map", "0:v:0",
		"-map", "1:a",
		"-c", "copy",
		output,
	}
	cmd := exec.Command("ffmpeg", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return drerrors.NewMuxError(string(out), err)
	}
	return nil
}
