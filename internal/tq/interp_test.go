package tq

import (
	"math"
	"testing"
)

const epsilon = 1e-6

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

func TestLerp(t *testing.T) {
	tests := []struct {
		name     string
		x        [2]float64
		y        [2]float64
		xi       float64
		expected float64
		wantNil  bool
	}{
		{name: "midpoint", x: [2]float64{0, 10}, y: [2]float64{0, 100}, xi: 5, expected: 50},
		{name: "at start", x: [2]float64{0, 10}, y: [2]float64{20, 40}, xi: 0, expected: 20},
		{name: "at end", x: [2]float64{0, 10}, y: [2]float64{20, 40}, xi: 10, expected: 40},
		{name: "quarter point", x: [2]float64{0, 10}, y: [2]float64{0, 100}, xi: 2.5, expected: 25},
		{name: "scenario S6 lerp", x: [2]float64{10, 20}, y: [2]float64{30, 40}, xi: 15, expected: 35},
		{name: "invalid - x1 <= x0", x: [2]float64{10, 10}, y: [2]float64{0, 100}, xi: 5, wantNil: true},
		{name: "invalid - x1 < x0", x: [2]float64{10, 5}, y: [2]float64{0, 100}, xi: 5, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Lerp(tt.x, tt.y, tt.xi)
			if tt.wantNil {
				if result != nil {
					t.Errorf("Lerp() = %v, want nil", *result)
				}
				return
			}
			if result == nil {
				t.Errorf("Lerp() = nil, want %v", tt.expected)
				return
			}
			if !almostEqual(*result, tt.expected, epsilon) {
				t.Errorf("Lerp() = %v, want %v", *result, tt.expected)
			}
		})
	}
}

func TestNaturalCubicScenarioS6(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{0, 1, 8, 27}

	result := NaturalCubic(x, y, 1.5)
	if result == nil {
		t.Fatal("NaturalCubic() returned nil for valid input")
	}
	if !almostEqual(*result, 3.625, 0.5) {
		t.Errorf("NaturalCubic() at x=1.5 = %v, want ~3.625", *result)
	}
}

func TestNaturalCubicRejectsInvalidInput(t *testing.T) {
	if NaturalCubic([]float64{0, 1}, []float64{0, 1}, 0.5) != nil {
		t.Error("expected nil for fewer than 3 points")
	}
	if NaturalCubic([]float64{0, 1, 1}, []float64{0, 1, 2}, 0.5) != nil {
		t.Error("expected nil for non-monotone x (zero-width segment)")
	}
	if NaturalCubic([]float64{0, 1, 2}, []float64{0, 1, 2}, 5) != nil {
		t.Error("expected nil for xi outside domain")
	}
}

func TestPCHIP(t *testing.T) {
	x := [4]float64{60, 65, 70, 75}
	y := [4]float64{40, 35, 28, 22}

	result := PCHIP(x, y, 65)
	if result == nil {
		t.Fatal("PCHIP() returned nil for valid input")
	}
	if !almostEqual(*result, 35, 0.1) {
		t.Errorf("PCHIP() at x=65 = %v, want ~35", *result)
	}

	result = PCHIP(x, y, 67.5)
	if result == nil {
		t.Fatal("PCHIP() returned nil for valid input")
	}
	if *result < 28 || *result > 35 {
		t.Errorf("PCHIP() at x=67.5 = %v, want value between 28 and 35", *result)
	}

	// flat segment: equal y should yield that y
	flatY := [4]float64{30, 30, 28, 22}
	result = PCHIP(x, flatY, 62.5)
	if result == nil {
		t.Fatal("PCHIP() returned nil for flat-segment input")
	}
	if !almostEqual(*result, 30, 0.01) {
		t.Errorf("PCHIP() over flat segment = %v, want 30", *result)
	}

	badX := [4]float64{60, 65, 65, 75}
	if PCHIP(badX, y, 67.5) != nil {
		t.Error("PCHIP() with non-increasing x should return nil")
	}
}

func TestAkimaMonotoneDatasetPreservesMonotonicity(t *testing.T) {
	x := [5]float64{55, 60, 65, 70, 75}
	y := [5]float64{45, 40, 35, 28, 22} // strictly decreasing

	result := Akima(x, y, 65)
	if result == nil {
		t.Fatal("Akima() returned nil for valid input")
	}
	if !almostEqual(*result, 35, 0.1) {
		t.Errorf("Akima() at x=65 = %v, want ~35", *result)
	}

	prev := math.Inf(1)
	for xi := 55.0; xi <= 75.0; xi += 2.5 {
		r := Akima(x, y, xi)
		if r == nil {
			t.Fatalf("Akima() returned nil at xi=%v", xi)
		}
		if *r > prev {
			t.Errorf("Akima() not monotone at xi=%v: %v > previous %v", xi, *r, prev)
		}
		prev = *r
	}

	if Akima(x, y, 50) != nil {
		t.Error("Akima() below range should return nil")
	}
	if Akima(x, y, 80) != nil {
		t.Error("Akima() above range should return nil")
	}
}

func TestRoundCRFSnapsToQuarterStep(t *testing.T) {
	tests := []struct {
		input    float64
		expected float64
	}{
		{28.0, 28.0},
		{28.1, 28.0},
		{28.125, 28.25}, // halfway between .0 and .25 rounds to .25
		{28.12, 28.0},
		{28.13, 28.25},
		{28.37, 28.25},
		{28.38, 28.5},
		{28.9, 29.0},
	}

	for _, tt := range tests {
		result := RoundCRF(tt.input)
		if !almostEqual(result, tt.expected, epsilon) {
			t.Errorf("RoundCRF(%v) = %v, want %v", tt.input, result, tt.expected)
		}
	}
}

func TestInterpolateCRF(t *testing.T) {
	probes := []Probe{
		{CRF: 35, Score: 65},
		{CRF: 28, Score: 72},
		{CRF: 22, Score: 78},
		{CRF: 18, Score: 82},
		{CRF: 15, Score: 86},
	}

	if result := InterpolateCRF(probes[:2], 70, 1); result != nil {
		t.Errorf("InterpolateCRF(round=1) = %v, want nil", *result)
	}
	if result := InterpolateCRF(probes[:2], 70, 2); result != nil {
		t.Errorf("InterpolateCRF(round=2) = %v, want nil", *result)
	}

	result := InterpolateCRF(probes[:2], 70, 3)
	if result == nil {
		t.Fatal("InterpolateCRF(round=3) returned nil")
	}
	if *result < 28 || *result > 35 {
		t.Errorf("InterpolateCRF(round=3) = %v, want value between 28 and 35", *result)
	}

	result = InterpolateCRF(probes[:3], 73, 4)
	if result == nil {
		t.Fatal("InterpolateCRF(round=4) returned nil")
	}

	result = InterpolateCRF(probes[:4], 75, 5)
	if result == nil {
		t.Fatal("InterpolateCRF(round=5) returned nil")
	}

	result = InterpolateCRF(probes, 80, 6)
	if result == nil {
		t.Fatal("InterpolateCRF(round=6) returned nil")
	}

	// Rounds beyond 6 fall back to bisection even with enough probes for Akima.
	if r := InterpolateCRF(probes, 80, 7); r != nil {
		t.Errorf("InterpolateCRF(round=7) = %v, want nil (falls back to bisection)", *r)
	}
	if r := InterpolateCRF(probes, 80, 10); r != nil {
		t.Errorf("InterpolateCRF(round=10) = %v, want nil (falls back to bisection)", *r)
	}

	// every result returned by InterpolateCRF must already be snapped to a 0.25 step
	scaled := *result * 4
	if math.Abs(scaled-math.Round(scaled)) > epsilon {
		t.Errorf("InterpolateCRF result %v is not a 0.25 step", *result)
	}
}
