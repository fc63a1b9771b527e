// Package scd invokes the external carve-scd scene-change detector.
package scd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	drerrors "github.com/five82/carve/internal/errors"
)

const scdBinaryName = "carve-scd"

// DetectScenes runs the detector against videoPath, writing the detected
// boundary frame indices (one per line) to sceneFile.
func DetectScenes(videoPath, sceneFile string, fpsNum, fpsDen uint32, totalFrames int, showProgress bool) error {
	scdPath, err := exec.LookPath(scdBinaryName)
	if err != nil {
		return fmt.Errorf("%s not found in PATH: %w", scdBinaryName, err)
	}

	args := []string{
		"--input", videoPath,
		"--output", sceneFile,
		"--fps-num", fmt.Sprintf("%d", fpsNum),
		"--fps-den", fmt.Sprintf("%d", fpsDen),
		"--total-frames", fmt.Sprintf("%d", totalFrames),
	}

	if showProgress {
		args = append(args, "--progress")
	}

	cmd := exec.Command(scdPath, args...)
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return drerrors.NewSceneDetectError(err)
	}

	return nil
}

// DetectScenesIfNeeded runs the detector unless a scenes.txt already sits
// in workDir (a resumed run reuses the prior boundaries).
func DetectScenesIfNeeded(videoPath, workDir string, fpsNum, fpsDen uint32, totalFrames int, showProgress bool) (string, error) {
	sceneFile := filepath.Join(workDir, "scenes.txt")

	if _, err := os.Stat(sceneFile); err == nil {
		return sceneFile, nil
	}

	if err := DetectScenes(videoPath, sceneFile, fpsNum, fpsDen, totalFrames, showProgress); err != nil {
		return "", err
	}

	return sceneFile, nil
}

// IsSCDBinaryAvailable reports whether the detector is on PATH.
func IsSCDBinaryAvailable() bool {
	_, err := exec.LookPath(scdBinaryName)
	return err == nil
}

// GetSCDBinaryPath locates the detector binary.
func GetSCDBinaryPath() (string, error) {
	return exec.LookPath(scdBinaryName)
}
