package tq

import (
	"math"
	"sort"
)

// maxTau2 is the maximum allowed tau squared for monotonicity preservation in PCHIP.
const maxTau2 = 9.0

// hermiteInterp evaluates a cubic Hermite spline at xi given interval [xk, xk1],
// function values [yk, yk1], and derivatives [dk, dk1].
func hermiteInterp(xk, xk1, yk, yk1, dk, dk1, xi float64) float64 {
	h := xk1 - xk
	t := (xi - xk) / h
	t2 := t * t
	t3 := t2 * t

	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2

	return h00*yk + h10*h*dk + h01*yk1 + h11*h*dk1
}

// Lerp performs linear interpolation between two points.
// x[0], y[0] is the first point, x[1], y[1] is the second point.
// Returns nil if interpolation is not possible.
func Lerp(x, y [2]float64, xi float64) *float64 {
	if x[1] <= x[0] {
		return nil
	}

	t := (xi - x[0]) / (x[1] - x[0])
	result := t*(y[1]-y[0]) + y[0]
	return &result
}

// NaturalCubic performs natural cubic spline interpolation over n≥3 points
// via the Thomas algorithm (tridiagonal solve) with natural boundary
// conditions (second derivative zero at both ends). Requires strictly
// increasing x. Returns nil if any segment width is non-positive, if a
// pivot is zero, or if xi falls outside [x[0], x[n-1]].
func NaturalCubic(x, y []float64, xi float64) *float64 {
	n := len(x)
	if n < 3 || n != len(y) || xi < x[0] || xi > x[n-1] {
		return nil
	}

	h := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		h[i] = x[i+1] - x[i]
		if h[i] <= 0 {
			return nil
		}
	}

	a := make([]float64, n)
	b := make([]float64, n)
	c := make([]float64, n)
	d := make([]float64, n)
	for i := range b {
		b[i] = 2
	}
	b[0] = 1
	b[n-1] = 1

	for i := 1; i < n-1; i++ {
		a[i] = h[i-1]
		b[i] = 2 * (h[i-1] + h[i])
		c[i] = h[i]
		d[i] = 3 * ((y[i+1]-y[i])/h[i] - (y[i]-y[i-1])/h[i-1])
	}

	m := make([]float64, n)
	l := make([]float64, n)
	z := make([]float64, n)

	l[0] = b[0]
	if l[0] == 0 {
		return nil
	}
	for i := 1; i < n; i++ {
		l[i] = b[i] - a[i]*c[i-1]/l[i-1]
		if l[i] == 0 {
			return nil
		}
		z[i] = (d[i] - a[i]*z[i-1]) / l[i]
	}

	m[n-1] = z[n-1]
	for i := n - 2; i >= 0; i-- {
		m[i] = z[i] - c[i]*m[i+1]/l[i]
	}

	k := 0
	for i := 0; i < n-1; i++ {
		if xi >= x[i] && xi <= x[i+1] {
			k = i
			break
		}
	}

	dx := xi - x[k]
	hk := h[k]
	aCoeff := y[k]
	bCoeff := (y[k+1]-y[k])/hk - hk*(2*m[k]+m[k+1])/3
	cCoeff := m[k]
	dCoeff := (m[k+1] - m[k]) / (3 * hk)

	result := ((dCoeff*dx+cCoeff)*dx+bCoeff)*dx + aCoeff
	return &result
}

// PCHIP performs Piecewise Cubic Hermite Interpolating Polynomial interpolation.
// Requires exactly 4 points. Returns nil if interpolation is not possible.
func PCHIP(x, y [4]float64, xi float64) *float64 {
	// Verify strictly increasing x values
	for i := range 3 {
		if x[i+1] <= x[i] {
			return nil
		}
	}

	// Find the interval containing xi
	k := 0
	for i := range 3 {
		if xi >= x[i] && xi <= x[i+1] {
			k = i
			break
		}
	}

	// Compute slopes
	s0 := (y[1] - y[0]) / (x[1] - x[0])
	s1 := (y[2] - y[1]) / (x[2] - x[1])
	s2 := (y[3] - y[2]) / (x[3] - x[2])
	slopes := [3]float64{s0, s1, s2}

	// Compute derivatives
	d := [4]float64{s0, 0, 0, s2}

	// Interior points
	params := [2][4]float64{
		{s0, s1, x[1] - x[0], x[2] - x[1]},
		{s1, s2, x[2] - x[1], x[3] - x[2]},
	}

	for i := range 2 {
		sPrev, sNext := params[i][0], params[i][1]
		hPrev, hNext := params[i][2], params[i][3]
		idx := i + 1

		if sPrev*sNext <= 0 {
			d[idx] = 0
		} else {
			w1 := 2*hNext + hPrev
			w2 := 2*hPrev + hNext
			d[idx] = (w1 + w2) / (w1/sPrev + w2/sNext)
		}
	}

	// Apply monotonicity constraints
	for i := range 3 {
		if slopes[i] == 0 {
			d[i] = 0
			d[i+1] = 0
		} else {
			alpha := d[i] / slopes[i]
			beta := d[i+1] / slopes[i]
			tau := alpha*alpha + beta*beta

			if tau > maxTau2 {
				scale := 3.0 / math.Sqrt(tau)
				d[i] = scale * alpha * slopes[i]
				d[i+1] = scale * beta * slopes[i]
			}
		}
	}

	result := hermiteInterp(x[k], x[k+1], y[k], y[k+1], d[k], d[k+1], xi)
	return &result
}

// Akima performs Akima spline interpolation over exactly 5 points. Boundary
// slopes are extended as 2*m[1]-m[2] / 2*m[4]-m[3]; tangents are weighted by
// neighboring slope differences, averaging the two neighbors when the total
// weight is below 1e-10. Returns nil if interpolation is not possible.
func Akima(x, y [5]float64, xi float64) *float64 {
	for i := range 4 {
		if x[i+1] <= x[i] {
			return nil
		}
	}
	if xi < x[0] || xi > x[4] {
		return nil
	}

	k := 0
	for i := range 4 {
		if xi >= x[i] && xi <= x[i+1] {
			k = i
			break
		}
	}

	// m[1..4] are the 4 segment slopes; m[0] and m[5] extend the boundary.
	var m [6]float64
	for i := range 4 {
		m[i+1] = (y[i+1] - y[i]) / (x[i+1] - x[i])
	}
	m[0] = 2*m[1] - m[2]
	m[5] = 2*m[4] - m[3]

	var t [5]float64
	for i := range 4 {
		w1 := math.Abs(m[i+2] - m[i+1])
		w2 := math.Abs(m[i] - m[i+1])
		if w1+w2 < 1e-10 {
			t[i] = 0.5 * (m[i] + m[i+1])
		} else {
			t[i] = (w1*m[i] + w2*m[i+1]) / (w1 + w2)
		}
	}
	t[4] = m[4]

	result := hermiteInterp(x[k], x[k+1], y[k], y[k+1], t[k], t[k+1], xi)
	return &result
}

// InterpolateCRF uses the appropriate interpolation method based on the round number.
//   - Rounds 1-2: returns nil (binary search is used instead)
//   - Round 3 (n≥2): linear
//   - Round 4 (n≥3): natural cubic spline over all collected probes
//   - Round 5 (n≥4): PCHIP over the 4 lowest-score probes
//   - Round 6 (n≥5): Akima over the 5 lowest-score probes
//   - Rounds 1, 2, and >6: nil (bisection is used instead)
//
// Probes are sorted by score ascending before interpolation, since all four
// predictors require strictly monotone x. The result is snapped to the
// nearest 0.25 CRF step.
func InterpolateCRF(probes []Probe, target float64, round int) *float64 {
	if round <= 2 {
		return nil
	}

	sorted := make([]Probe, len(probes))
	copy(sorted, probes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Score < sorted[j].Score
	})

	n := len(sorted)
	x := make([]float64, n)
	y := make([]float64, n)
	for i, p := range sorted {
		x[i] = p.Score
		y[i] = p.CRF
	}

	var result *float64

	switch round {
	case 3:
		if n >= 2 {
			result = Lerp([2]float64{x[0], x[1]}, [2]float64{y[0], y[1]}, target)
		}
	case 4:
		if n >= 3 {
			result = NaturalCubic(x, y, target)
		}
	case 5:
		if n >= 4 {
			result = PCHIP([4]float64{x[0], x[1], x[2], x[3]}, [4]float64{y[0], y[1], y[2], y[3]}, target)
		}
	case 6:
		if n >= 5 {
			result = Akima([5]float64{x[0], x[1], x[2], x[3], x[4]}, [5]float64{y[0], y[1], y[2], y[3], y[4]}, target)
		}
	default:
		// Rounds 1, 2, and >6 fall back to bisection; only
		// round 6 interpolates via Akima.
	}

	if result == nil {
		return nil
	}

	rounded := RoundCRF(*result)
	return &rounded
}

// RoundCRF snaps a CRF value to the nearest 0.25 step.
func RoundCRF(crf float64) float64 {
	return math.Round(crf*4) / 4
}
