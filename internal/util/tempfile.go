package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// lowSpaceBytes is the free-space floor below which CheckDiskSpace warns:
// a 4K encode can easily need tens of gigabytes of scratch.
const lowSpaceBytes = 20 * GiB

// EnsureDirectoryWritable verifies path is an existing directory the
// process can create files in, by writing and removing a probe file.
func EnsureDirectoryWritable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}

	probe := filepath.Join(path, ".write_probe")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("directory not writable: %w", err)
	}
	_ = f.Close()
	return os.Remove(probe)
}

// TempDir is a created scratch directory that knows how to remove itself.
type TempDir struct {
	path string
}

// Path returns the directory's location.
func (d *TempDir) Path() string { return d.path }

// Cleanup removes the directory and everything under it.
func (d *TempDir) Cleanup() error { return os.RemoveAll(d.path) }

// CreateTempDir creates a uniquely named scratch directory
// "<prefix>_<random>" under baseDir.
func CreateTempDir(baseDir, prefix string) (*TempDir, error) {
	suffix, err := generateRandomString(8)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(baseDir, prefix+"_"+suffix)
	if err := os.Mkdir(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TempDir{path: path}, nil
}

// TempFile is a created scratch file that knows how to remove itself.
type TempFile struct {
	path string
}

// Path returns the file's location.
func (f *TempFile) Path() string { return f.path }

// Cleanup removes the file.
func (f *TempFile) Cleanup() error { return os.Remove(f.path) }

// CreateTempFile creates an empty, uniquely named scratch file
// "<prefix>_<random>.<ext>" under baseDir.
func CreateTempFile(baseDir, prefix, ext string) (*TempFile, error) {
	path, err := CreateTempFilePath(baseDir, prefix, ext)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	_ = f.Close()
	return &TempFile{path: path}, nil
}

// CreateTempFilePath derives a uniquely named path under baseDir without
// creating anything, for tools that insist on creating their own output.
func CreateTempFilePath(baseDir, prefix, ext string) (string, error) {
	suffix, err := generateRandomString(8)
	if err != nil {
		return "", err
	}
	return filepath.Join(baseDir, prefix+"_"+suffix+"."+ext), nil
}

// CleanupStaleTempFiles removes "<prefix>_*" files under dir whose
// modification time is older than maxAge, returning how many were removed.
// A missing dir is not an error: there is nothing to clean.
func CleanupStaleTempFiles(dir, prefix string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix+"_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(dir, entry.Name())) == nil {
			removed++
		}
	}
	return removed, nil
}

// GetAvailableSpace returns the free bytes on path's filesystem, or 0 when
// it cannot be determined.
func GetAvailableSpace(path string) uint64 {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0
	}
	return st.Bavail * uint64(st.Bsize)
}

// CheckDiskSpace reports whether path's filesystem has a comfortable
// amount of free space for encoding, warning through logf (if non-nil)
// when it does not. An undeterminable filesystem counts as comfortable;
// the encode will surface the real error soon enough.
func CheckDiskSpace(path string, logf func(format string, args ...any)) bool {
	available := GetAvailableSpace(path)
	if available == 0 {
		return true
	}
	if available < lowSpaceBytes {
		if logf != nil {
			logf("Low disk space on %s: %s available", path, FormatBytes(available))
		}
		return false
	}
	return true
}

// generateRandomString returns n hex characters of randomness.
func generateRandomString(n int) (string, error) {
	buf := make([]byte, (n+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf)[:n], nil
}
