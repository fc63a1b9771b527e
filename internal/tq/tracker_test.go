package tq

import (
	"math"
	"sync"
	"testing"
)

func TestTrackerEmptyReturnsDefault(t *testing.T) {
	tr := NewTracker()
	if got := tr.Predict(5, 28.0); got != 28.0 {
		t.Errorf("Predict on empty tracker = %v, want the default", got)
	}
	if tr.Count() != 0 {
		t.Errorf("Count = %d, want 0", tr.Count())
	}
}

func TestTrackerPredictions(t *testing.T) {
	tests := []struct {
		name    string
		records map[int]float64
		query   int
		want    float64
	}{
		{
			name:    "single neighbor dominates",
			records: map[int]float64{5: 25.0},
			query:   6,
			want:    25.0,
		},
		{
			name:    "exact index match wins outright",
			records: map[int]float64{3: 22.0, 5: 25.0, 7: 28.0},
			query:   5,
			want:    25.0,
		},
		{
			name:    "equidistant neighbors average evenly",
			records: map[int]float64{0: 20.0, 10: 30.0},
			query:   5,
			want:    25.0,
		},
		{
			name:    "closer neighbor carries more weight",
			records: map[int]float64{4: 20.0, 10: 30.0},
			query:   5,
			// dist 1 → weight 1; dist 5 → weight 0.2.
			want: (20.0*1 + 30.0*0.2) / 1.2,
		},
		{
			name:    "only the four nearest participate",
			records: map[int]float64{0: 20.0, 2: 22.0, 4: 24.0, 6: 26.0, 8: 28.0, 10: 30.0},
			query:   5,
			// Nearest four to 5 are chunks 4, 6 (dist 1) and 2, 8 (dist 3).
			want: (24.0 + 26.0 + 22.0/3 + 28.0/3) / (1 + 1 + 1.0/3 + 1.0/3),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker()
			for idx, crf := range tt.records {
				tr.Record(idx, crf)
			}
			got := tr.Predict(tt.query, 99.0)
			if math.Abs(got-tt.want) > 0.01 {
				t.Errorf("Predict(%d) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestTrackerOverwrite(t *testing.T) {
	tr := NewTracker()
	tr.Record(5, 20.0)
	tr.Record(5, 30.0)
	if got := tr.Predict(5, 28.0); got != 30.0 {
		t.Errorf("Predict = %v, want the overwritten 30.0", got)
	}
	if tr.Count() != 1 {
		t.Errorf("Count = %d, want 1", tr.Count())
	}
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(2)
		go func(idx int) {
			defer wg.Done()
			tr.Record(idx, float64(20+idx))
		}(i)
		go func(idx int) {
			defer wg.Done()
			_ = tr.Predict(idx, 28.0)
		}(i)
	}
	wg.Wait()

	if tr.Count() != 10 {
		t.Errorf("Count = %d, want 10", tr.Count())
	}
}
