// Package features computes the deterministic 7-scalar summary of a
// pressure series used by inference and persistence.
package features

import "math"

// Vector is the fixed-key feature set extracted from one completed cycle's
// pressure series.
type Vector struct {
	Max          float64
	Min          float64
	Difference   float64
	Average      float64
	Variance     float64
	TrendSlope   float64
	CavityID     float64
}

// Mode selects the ordering used by ToVector.
type Mode int

const (
	Mode7D Mode = iota
	Mode6D
)

// Compute is a pure function of (pressures, cavityID): repeated calls with
// equal inputs return equal results. For length < 2 it returns all-zero
// numeric fields (cavity_id still set).
func Compute(pressures []float64, cavityID int) Vector {
	v := Vector{CavityID: float64(cavityID)}
	if len(pressures) < 2 {
		return v
	}

	max, min := pressures[0], pressures[0]
	sum := 0.0
	for _, p := range pressures {
		if p > max {
			max = p
		}
		if p < min {
			min = p
		}
		sum += p
	}
	n := float64(len(pressures))
	avg := sum / n

	varSum := 0.0
	for _, p := range pressures {
		d := p - avg
		varSum += d * d
	}
	variance := varSum / n

	slope := trendSlope(pressures)

	v.Max = round(max, 3)
	v.Min = round(min, 3)
	v.Difference = round(max-min, 3)
	v.Average = round(avg, 3)
	v.Variance = round(variance, 3)
	v.TrendSlope = round(slope, 6)
	return v
}

// trendSlope fits a degree-1 least-squares line to (x=[0..N-1], y=pressures)
// and returns its slope coefficient. Returns 0 on numerical failure
// (degenerate denominator).
func trendSlope(ys []float64) float64 {
	n := float64(len(ys))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func round(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}

// Map returns the named fields for persistence, matching the feature
// column names used elsewhere in the system.
func (v Vector) Map() map[string]float64 {
	return map[string]float64{
		"max":         v.Max,
		"min":         v.Min,
		"difference":  v.Difference,
		"average":     v.Average,
		"variance":    v.Variance,
		"trend_slope": v.TrendSlope,
		"cavity_id":   v.CavityID,
	}
}

// ToVector yields the ordered sequence used by inference and persistence.
// 7D: [max, min, difference, average, variance, trend_slope, cavity_id].
// 6D: the same, omitting cavity_id.
func ToVector(v Vector, mode Mode) []float64 {
	base := []float64{v.Max, v.Min, v.Difference, v.Average, v.Variance, v.TrendSlope}
	if mode == Mode6D {
		return base
	}
	return append(base, v.CavityID)
}
