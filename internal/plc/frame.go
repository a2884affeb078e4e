package plc

// CabinFrame is one snapshot of one cabin at one sample instant.
// Immutable once produced.
type CabinFrame struct {
	CabinIndex int
	Analog     int16
	Pressure   float32
	Position   int16
	Angle      float32
	Timestamp  float64 // seconds, monotonic reference
}

// PollFrame is one sample of all cabins at one polling instant. A
// truncated raw read yields a short Cabins slice rather than padding.
type PollFrame struct {
	Timestamp float64
	Cabins    []CabinFrame
}

// CabinByIndex returns a lookup map from cabin index to frame.
func (f PollFrame) CabinByIndex() map[int]CabinFrame {
	m := make(map[int]CabinFrame, len(f.Cabins))
	for _, c := range f.Cabins {
		m[c.CabinIndex] = c
	}
	return m
}
