package keyframe

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCalculateMaxFrames(t *testing.T) {
	tests := []struct {
		name   string
		fpsNum uint32
		fpsDen uint32
		want   int
	}{
		{"24fps film", 24, 1, 240},
		{"23.976fps NTSC film", 24000, 1001, 240},
		{"25fps PAL", 25, 1, 250},
		{"30fps hits the hard cap", 30, 1, 300},
		{"60fps clamped to hard cap", 60, 1, 300},
		{"zero denominator falls back to hard cap", 24, 0, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateMaxFrames(tt.fpsNum, tt.fpsDen); got != tt.want {
				t.Errorf("CalculateMaxFrames(%d, %d) = %d, want %d", tt.fpsNum, tt.fpsDen, got, tt.want)
			}
		})
	}
}

func TestCalculateMinFrames(t *testing.T) {
	tests := []struct {
		name   string
		fpsNum uint32
		fpsDen uint32
		secs   float64
		want   int
	}{
		{"24fps one second", 24, 1, 1.0, 24},
		{"23.976fps one second", 24000, 1001, 1.0, 24},
		{"30fps four seconds", 30, 1, 4.0, 120},
		{"zero denominator disables merging", 24, 0, 1.0, 0},
		{"zero duration disables merging", 24, 1, 0, 0},
		{"negative duration disables merging", 24, 1, -2.0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateMinFrames(tt.fpsNum, tt.fpsDen, tt.secs); got != tt.want {
				t.Errorf("CalculateMinFrames(%d, %d, %g) = %d, want %d",
					tt.fpsNum, tt.fpsDen, tt.secs, got, tt.want)
			}
		})
	}
}

func TestGenerateFixedChunks(t *testing.T) {
	got := GenerateFixedChunks(480, 24, 1, 5.0)
	want := []int{0, 120, 240, 360}
	if !intSliceEqual(got, want) {
		t.Errorf("GenerateFixedChunks = %v, want %v", got, want)
	}

	if got := GenerateFixedChunks(0, 24, 1, 5.0); !intSliceEqual(got, []int{0}) {
		t.Errorf("empty video should yield a single boundary, got %v", got)
	}
	if got := GenerateFixedChunks(100, 24, 0, 5.0); !intSliceEqual(got, []int{0}) {
		t.Errorf("zero fps denominator should yield a single boundary, got %v", got)
	}
}

func TestSplitLongScenes(t *testing.T) {
	tests := []struct {
		name        string
		keyframes   []int
		totalFrames int
		maxFrames   int
		want        []int
	}{
		{
			name:        "nothing oversized",
			keyframes:   []int{0, 100, 200},
			totalFrames: 300,
			maxFrames:   200,
			want:        []int{0, 100, 200},
		},
		{
			name:        "one oversized chunk quartered",
			keyframes:   []int{0, 1000},
			totalFrames: 1200,
			maxFrames:   300,
			want:        []int{0, 250, 500, 750, 1000},
		},
		{
			name:        "oversized final chunk",
			keyframes:   []int{0, 100},
			totalFrames: 800,
			maxFrames:   300,
			want:        []int{0, 100, 333, 566},
		},
		{
			name:        "empty input still covers the video",
			keyframes:   []int{},
			totalFrames: 1000,
			maxFrames:   300,
			want:        []int{0, 250, 500, 750},
		},
		{
			name:        "exactly max is left alone",
			keyframes:   []int{0, 300},
			totalFrames: 600,
			maxFrames:   300,
			want:        []int{0, 300},
		},
		{
			name:        "one frame over splits in two",
			keyframes:   []int{0, 301},
			totalFrames: 602,
			maxFrames:   300,
			want:        []int{0, 150, 301, 451},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitLongScenes(tt.keyframes, tt.totalFrames, tt.maxFrames)
			if !intSliceEqual(got, tt.want) {
				t.Errorf("SplitLongScenes(%v, %d, %d) = %v, want %v",
					tt.keyframes, tt.totalFrames, tt.maxFrames, got, tt.want)
			}
		})
	}
}

func TestMergeShortScenes(t *testing.T) {
	tests := []struct {
		name        string
		keyframes   []int
		totalFrames int
		minFrames   int
		want        []int
	}{
		{
			name:        "nothing undersized",
			keyframes:   []int{0, 100, 200},
			totalFrames: 300,
			minFrames:   50,
			want:        []int{0, 100, 200},
		},
		{
			name:        "short middle chunk folds into smaller previous neighbor",
			keyframes:   []int{0, 100, 120, 300},
			totalFrames: 400,
			minFrames:   50,
			want:        []int{0, 120, 300},
		},
		{
			name:        "short middle chunk folds into smaller next neighbor",
			keyframes:   []int{0, 200, 220, 250},
			totalFrames: 300,
			minFrames:   50,
			want:        []int{0, 200, 250},
		},
		{
			name:        "cascading merges collapse a run of tiny chunks",
			keyframes:   []int{0, 10, 20, 30, 200},
			totalFrames: 300,
			minFrames:   50,
			want:        []int{0, 200},
		},
		{
			name:        "short leading chunk absorbs its successor",
			keyframes:   []int{0, 10, 200},
			totalFrames: 300,
			minFrames:   50,
			want:        []int{0, 200},
		},
		{
			name:        "short trailing chunk folds backward",
			keyframes:   []int{0, 100, 180},
			totalFrames: 200,
			minFrames:   50,
			want:        []int{0, 100},
		},
		{
			name:        "zero minimum disables merging",
			keyframes:   []int{0, 10, 20},
			totalFrames: 100,
			minFrames:   0,
			want:        []int{0, 10, 20},
		},
		{
			name:        "single boundary left alone",
			keyframes:   []int{0},
			totalFrames: 10,
			minFrames:   50,
			want:        []int{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeShortScenes(tt.keyframes, tt.totalFrames, tt.minFrames)
			if !intSliceEqual(got, tt.want) {
				t.Errorf("MergeShortScenes(%v, %d, %d) = %v, want %v",
					tt.keyframes, tt.totalFrames, tt.minFrames, got, tt.want)
			}
		})
	}
}

func TestDedupe(t *testing.T) {
	tests := []struct {
		in   []int
		want []int
	}{
		{[]int{1, 2, 3}, []int{1, 2, 3}},
		{[]int{1, 1, 2, 3, 3, 3}, []int{1, 2, 3}},
		{[]int{5, 5, 5}, []int{5}},
		{[]int{}, []int{}},
		{[]int{42}, []int{42}},
	}
	for _, tt := range tests {
		if got := dedupe(tt.in); !intSliceEqual(got, tt.want) {
			t.Errorf("dedupe(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestExtractKeyframesWritesBoundedChunks(t *testing.T) {
	workDir := t.TempDir()

	// 2 minutes of 24fps 1080p video: the nominal 30s interval exceeds the
	// 10s validator maximum, so the written boundaries must be re-split.
	sceneFile, err := ExtractKeyframesIfNeeded("in.mkv", workDir, 24, 1, 2880, 1920, 1080)
	if err != nil {
		t.Fatalf("ExtractKeyframesIfNeeded: %v", err)
	}
	if sceneFile != filepath.Join(workDir, "scenes.txt") {
		t.Errorf("scene file at %s", sceneFile)
	}

	data, err := os.ReadFile(sceneFile)
	if err != nil {
		t.Fatalf("reading scene file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("scene file is empty")
	}

	// A second call must reuse the existing file rather than regenerate.
	if err := os.WriteFile(sceneFile, []byte("0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ExtractKeyframesIfNeeded("in.mkv", workDir, 24, 1, 2880, 1920, 1080); err != nil {
		t.Fatalf("second ExtractKeyframesIfNeeded: %v", err)
	}
	data2, _ := os.ReadFile(sceneFile)
	if string(data2) != "0\n" {
		t.Error("existing scene file was regenerated")
	}
}

func intSliceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
