package encode

import "testing"

func TestThreadsPerWorkerResolutionCaps(t *testing.T) {
	// One worker gets the most threads the host can give; each resolution
	// tier still caps what SVT-AV1 can usefully consume.
	tests := []struct {
		name  string
		width uint32
		cap   int
	}{
		{"4K", 3840, 16},
		{"1080p", 1920, 10},
		{"720p", 1280, 6},
		{"SD", 720, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := calculateThreadsPerWorker(1, tt.width); got > tt.cap {
				t.Errorf("threads = %d, exceeds %s cap of %d", got, tt.name, tt.cap)
			}
		})
	}
}

func TestThreadsPerWorkerAlwaysPositive(t *testing.T) {
	widths := []uint32{480, 1280, 1920, 2560, 3840, 7680}
	workerCounts := []int{-1, 0, 1, 8, 32, 100}

	for _, width := range widths {
		for _, workers := range workerCounts {
			if got := calculateThreadsPerWorker(workers, width); got < 1 {
				t.Errorf("calculateThreadsPerWorker(%d, %d) = %d, want >= 1", workers, width, got)
			}
		}
	}
}

func TestCalculatePermitsFloor(t *testing.T) {
	// Whatever memory says, at least one chunk must be allowed in flight.
	if got := CalculatePermits(0, 3840, 2160, 300, 0.5); got < 1 {
		t.Errorf("CalculatePermits = %d, want >= 1", got)
	}
}

func TestChunkMemoryBytesScalesWithFrames(t *testing.T) {
	small := ChunkMemoryBytes(1920, 1080, 24)
	large := ChunkMemoryBytes(1920, 1080, 240)
	if large <= small {
		t.Errorf("240-frame chunk (%d) should cost more than 24-frame chunk (%d)", large, small)
	}
}

func TestAvgFrames(t *testing.T) {
	tests := []struct {
		total  int
		chunks int
		want   int
	}{
		{1200, 5, 240},
		{10, 100, 1},
		{0, 0, 1},
	}
	for _, tt := range tests {
		if got := avgFrames(tt.total, tt.chunks); got != tt.want {
			t.Errorf("avgFrames(%d, %d) = %d, want %d", tt.total, tt.chunks, got, tt.want)
		}
	}
}
