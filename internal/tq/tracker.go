package tq

import (
	"sort"
	"sync"
)

// maxNeighbors bounds how many completed chunks inform one prediction.
const maxNeighbors = 4

// CRFTracker remembers the final CRF of every completed chunk and predicts
// a starting CRF for new chunks from their nearest completed neighbors.
// The prediction is a search-order hint only; it never narrows the search
// window.
type CRFTracker struct {
	mu      sync.RWMutex
	results map[int]float64 // chunk idx → final CRF
}

// NewTracker returns an empty tracker.
func NewTracker() *CRFTracker {
	return &CRFTracker{results: make(map[int]float64)}
}

// Record stores the final CRF of a completed chunk. Re-recording an index
// overwrites the earlier value.
func (t *CRFTracker) Record(chunkIdx int, crf float64) {
	t.mu.Lock()
	t.results[chunkIdx] = crf
	t.mu.Unlock()
}

// Predict estimates a CRF for chunkIdx as the 1/distance-weighted mean of
// up to maxNeighbors nearest completed chunks. An exact index match returns
// that chunk's CRF; an empty tracker returns defaultCRF.
func (t *CRFTracker) Predict(chunkIdx int, defaultCRF float64) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.results) == 0 {
		return defaultCRF
	}

	type neighbor struct {
		dist int
		crf  float64
	}
	neighbors := make([]neighbor, 0, len(t.results))
	for idx, crf := range t.results {
		dist := chunkIdx - idx
		if dist < 0 {
			dist = -dist
		}
		if dist == 0 {
			return crf
		}
		neighbors = append(neighbors, neighbor{dist, crf})
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].dist < neighbors[j].dist })
	if len(neighbors) > maxNeighbors {
		neighbors = neighbors[:maxNeighbors]
	}

	var weightedSum, weightSum float64
	for _, n := range neighbors {
		w := 1.0 / float64(n.dist)
		weightedSum += n.crf * w
		weightSum += w
	}
	if weightSum == 0 {
		return defaultCRF
	}
	return weightedSum / weightSum
}

// Count returns how many chunk results have been recorded.
func (t *CRFTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.results)
}
