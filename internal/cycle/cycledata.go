// Package cycle implements the per-cabin cycle detection state machine:
// IDLE, COLLECTING, PROCESSING, FAULT, driven by successive CabinFrame
// updates and a pressure-drop/pressure-rise heuristic.
package cycle

import "github.com/ldpj/backend/internal/plc"

// Data is the per-cabin accumulator built up during COLLECTING. Its
// parallel sequences always have equal length; PointCount is that length.
type Data struct {
	StartTime  float64
	Pressures  []float64
	Angles     []float64
	Timestamps []float64
	Analog     []float64
	Positions  []float64
}

// PointCount returns the number of points accumulated so far.
func (d *Data) PointCount() int {
	return len(d.Pressures)
}

func newData(start float64) *Data {
	return &Data{
		StartTime:  start,
		Pressures:  make([]float64, 0, 128),
		Angles:     make([]float64, 0, 128),
		Timestamps: make([]float64, 0, 128),
		Analog:     make([]float64, 0, 128),
		Positions:  make([]float64, 0, 128),
	}
}

func (d *Data) append(f plc.CabinFrame) {
	d.Pressures = append(d.Pressures, float64(f.Pressure))
	d.Angles = append(d.Angles, float64(f.Angle))
	d.Timestamps = append(d.Timestamps, f.Timestamp)
	d.Analog = append(d.Analog, float64(f.Analog))
	d.Positions = append(d.Positions, float64(f.Position))
}
