// Package chunk models scenes and chunks, and persists the resume log.
package chunk

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	drerrors "github.com/five82/carve/internal/errors"
)

// Scene is a half-open [Start, End) range of source frame indices.
type Scene struct {
	Start uint32
	End   uint32
}

// Chunk is a Scene with a persistent, 0-based chunk-order identity.
type Chunk struct {
	Idx   int
	Start uint32
	End   uint32
}

// Frames returns the number of source frames spanned by the chunk.
func (c Chunk) Frames() int {
	return int(c.End - c.Start)
}

// Completion records a successfully encoded chunk for the resume log.
type Completion struct {
	Idx    int
	Frames int
	Bytes  uint64
}

// EncodeDirName and SplitDirName are the work-dir subdirectories holding
// finished chunk bitstreams and in-progress TQ probe files, respectively.
const (
	EncodeDirName = "encode"
	SplitDirName  = "split"
)

// EnsureEncodeDir creates <workDir>/encode if it does not already exist.
func EnsureEncodeDir(workDir string) error {
	return os.MkdirAll(filepath.Join(workDir, EncodeDirName), 0o755)
}

// IVFPath returns the path of the finished bitstream for chunk idx under
// <workDir>/encode.
func IVFPath(workDir string, idx int) string {
	return filepath.Join(workDir, EncodeDirName, fmt.Sprintf("%04d.ivf", idx))
}

// TotalEncodedFrames sums Frames across all recorded completions.
func (l *ResumeLog) TotalEncodedFrames() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for _, c := range l.complete {
		total += c.Frames
	}
	return total
}

// TotalEncodedSize sums Bytes across all recorded completions.
func (l *ResumeLog) TotalEncodedSize() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total uint64
	for _, c := range l.complete {
		total += c.Bytes
	}
	return total
}

// LoadScenes sorts unique-ascending frame indices and emits half-open scenes
// spanning [indices[0], totalFrames). The final scene always ends at
// totalFrames.
func LoadScenes(indices []uint32, totalFrames uint32) []Scene {
	uniq := make(map[uint32]struct{}, len(indices))
	for _, i := range indices {
		uniq[i] = struct{}{}
	}
	sorted := make([]uint32, 0, len(uniq))
	for i := range uniq {
		sorted = append(sorted, i)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	scenes := make([]Scene, 0, len(sorted))
	for i, s := range sorted {
		var e uint32
		if i+1 < len(sorted) {
			e = sorted[i+1]
		} else {
			e = totalFrames
		}
		scenes = append(scenes, Scene{Start: s, End: e})
	}
	return scenes
}

// ValidateScenes enforces the minimum/maximum scene-length constraints:
// min_len = round(fps), max_len = min(300, round(10*fps)). The final
// scene is exempt from the minimum.
func ValidateScenes(scenes []Scene, fpsNum, fpsDen uint32) error {
	if fpsDen == 0 {
		return drerrors.NewInvalidArgumentsError("fps denominator must be non-zero")
	}

	minLen := (fpsNum + fpsDen/2) / fpsDen
	maxLen := (fpsNum*10 + fpsDen/2) / fpsDen
	if maxLen > 300 {
		maxLen = 300
	}

	for i, sc := range scenes {
		if sc.End <= sc.Start {
			return drerrors.NewInvalidSceneError(i, uint64(sc.Start), uint64(sc.End), 0)
		}
		length := sc.End - sc.Start
		isLast := i == len(scenes)-1

		if (!isLast && length < minLen) || length > maxLen {
			return drerrors.NewInvalidSceneError(i, uint64(sc.Start), uint64(sc.End), uint64(length))
		}
	}
	return nil
}

// Chunkify assigns chunk-order indices 1:1 with the given scenes.
func Chunkify(scenes []Scene) []Chunk {
	chunks := make([]Chunk, len(scenes))
	for i, s := range scenes {
		chunks[i] = Chunk{Idx: i, Start: s.Start, End: s.End}
	}
	return chunks
}

// ResumeLog is the durable, append-only record of completed chunks backing
// <work_dir>/done.txt. All mutation happens under mu; the whole file is
// rewritten on every Append; overwrite-in-place is fine for a log this size.
type ResumeLog struct {
	mu       sync.Mutex
	path     string
	complete []Completion
}

// NewResumeLog returns a ResumeLog bound to done.txt under workDir, without
// reading any existing file.
func NewResumeLog(workDir string) *ResumeLog {
	return &ResumeLog{path: filepath.Join(workDir, "done.txt")}
}

// LoadResumeLog reads done.txt under workDir, silently discarding malformed
// lines. A missing file yields an empty, non-nil log.
func LoadResumeLog(workDir string) (*ResumeLog, error) {
	log := NewResumeLog(workDir)

	f, err := os.Open(log.path)
	if err != nil {
		if os.IsNotExist(err) {
			return log, nil
		}
		return nil, drerrors.NewLogIOError(err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 3 {
			continue
		}
		idx, err1 := strconv.Atoi(fields[0])
		frames, err2 := strconv.Atoi(fields[1])
		bytes, err3 := strconv.ParseUint(fields[2], 10, 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		log.complete = append(log.complete, Completion{Idx: idx, Frames: frames, Bytes: bytes})
	}
	return log, nil
}

// SkipSet returns the set of chunk indices already recorded as complete.
func (l *ResumeLog) SkipSet() map[int]struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	set := make(map[int]struct{}, len(l.complete))
	for _, c := range l.complete {
		set[c.Idx] = struct{}{}
	}
	return set
}

// Append records a new completion and persists the full log under a single
// mutex. A persist failure is non-fatal: it is returned for logging but the
// in-memory record is retained so a later Append will include it.
func (l *ResumeLog) Append(c Completion) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.complete = append(l.complete, c)
	return l.persistLocked()
}

func (l *ResumeLog) persistLocked() error {
	var b strings.Builder
	for _, c := range l.complete {
		fmt.Fprintf(&b, "%d %d %d\n", c.Idx, c.Frames, c.Bytes)
	}
	if err := os.WriteFile(l.path, []byte(b.String()), 0o644); err != nil {
		return drerrors.NewLogIOError(err)
	}
	return nil
}

// Completions returns a snapshot of all recorded completions.
func (l *ResumeLog) Completions() []Completion {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Completion, len(l.complete))
	copy(out, l.complete)
	return out
}
