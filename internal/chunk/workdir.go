package chunk

import (
	"bufio"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// hashLen is the number of hex characters kept from the input-path hash
// when deriving a work-dir name. The hash only disambiguates source paths
// under a shared work-dir root; it is not a content fingerprint.
const hashLen = 7

// GetWorkDirPath derives the hidden scratch directory used while chunking
// and encoding inputPath: ".<hash7>" where hash7 is the first 7 hex chars
// of a hash of the absolute input path. The directory sits next to the
// input unless tempRoot overrides the location.
func GetWorkDirPath(inputPath, tempRoot string) string {
	abs, err := filepath.Abs(inputPath)
	if err != nil {
		abs = inputPath
	}
	sum := sha1.Sum([]byte(abs))
	dirName := "." + hex.EncodeToString(sum[:])[:hashLen]

	if tempRoot == "" {
		tempRoot = filepath.Dir(abs)
	}
	return filepath.Join(tempRoot, dirName)
}

// CreateWorkDir creates workDir (and any missing parents) if it does not
// already exist, so a resumed run reuses whatever is already there.
func CreateWorkDir(workDir string) error {
	return os.MkdirAll(workDir, 0o755)
}

// CleanupWorkDir removes workDir and everything under it. Callers defer
// this only after a successful assemble; a failed run leaves the work dir
// in place so the next invocation can resume from done.txt.
func CleanupWorkDir(workDir string) error {
	return os.RemoveAll(workDir)
}

// LoadScenesFromFile reads newline-separated frame indices written by
// scene/chunk-boundary detection (one uint32 per line, blank lines
// ignored) and turns them into half-open Scenes via LoadScenes.
func LoadScenesFromFile(path string, totalFrames uint32) ([]Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scene file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var indices []uint32
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		n, err := strconv.ParseUint(line, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("malformed scene file line %q: %w", line, err)
		}
		indices = append(indices, uint32(n))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read scene file: %w", err)
	}

	return LoadScenes(indices, totalFrames), nil
}
