package cycle

import "github.com/ldpj/backend/internal/plc"

// State is one of the four cabin cycle states.
type State int

const (
	StateIdle State = iota
	StateCollecting
	StateProcessing
	StateFault
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCollecting:
		return "COLLECTING"
	case StateProcessing:
		return "PROCESSING"
	case StateFault:
		return "FAULT"
	default:
		return "UNKNOWN"
	}
}

// Config parameterizes the detection thresholds, all in the frame's
// engineering units (pressure) or seconds (timing).
type Config struct {
	StartPressureDrop      float64
	EndPressureRise        float64
	MinCollectionPoints    int
	MaxCollectionPoints    int
	MaxCollectionDurationS float64
	CollectionTimeoutS     float64
	// IdlePressureMin is reserved for a future idle-baseline guard; it is
	// accepted by configuration but unused by the current detection rule.
	IdlePressureMin float64
}

// DefaultConfig returns the spec's documented detection defaults.
func DefaultConfig() Config {
	return Config{
		StartPressureDrop:      50,
		EndPressureRise:        50,
		MinCollectionPoints:    100,
		MaxCollectionPoints:    3000,
		MaxCollectionDurationS: 45,
		CollectionTimeoutS:     60,
	}
}

// FSM is one cabin's cycle detection state machine. update is the only
// mutator besides Reset, Harvest, ForceFault, ClearFault.
type FSM struct {
	cfg           Config
	cabinIndex    int
	state         State
	lastPressure  float64
	hasLast       bool
	data          *Data
}

// New builds an FSM for one cabin, starting IDLE with no last pressure.
func New(cabinIndex int, cfg Config) *FSM {
	return &FSM{cfg: cfg, cabinIndex: cabinIndex, state: StateIdle}
}

// State returns the FSM's current state.
func (f *FSM) State() State { return f.state }

// CabinIndex returns the cabin this FSM tracks.
func (f *FSM) CabinIndex() int { return f.cabinIndex }

// PointCount returns the number of points accumulated in the current (or
// just-frozen) CycleData, 0 if none.
func (f *FSM) PointCount() int {
	if f.data == nil {
		return 0
	}
	return f.data.PointCount()
}

// Update feeds one CabinFrame through the state machine and returns the
// resulting state. The last-pressure baseline updates at the end of every
// call regardless of the resulting state, so a clean IDLE resume observes
// the current pressure as its previous sample.
func (f *FSM) Update(frame plc.CabinFrame) State {
	pressure := float64(frame.Pressure)

	switch f.state {
	case StateIdle:
		f.tryStart(frame, pressure)
	case StateCollecting:
		f.advanceCollecting(frame, pressure)
	case StateProcessing, StateFault:
		// external transitions only (reset/clear_fault); ignore frames
	}

	f.lastPressure = pressure
	f.hasLast = true
	return f.state
}

func (f *FSM) tryStart(frame plc.CabinFrame, pressure float64) {
	if !f.hasLast {
		return
	}
	if f.lastPressure-pressure >= f.cfg.StartPressureDrop {
		f.data = newData(frame.Timestamp)
		f.data.append(frame)
		f.state = StateCollecting
	}
}

func (f *FSM) advanceCollecting(frame plc.CabinFrame, pressure float64) {
	f.data.append(frame)

	riseDone := pressure-f.lastPressure >= f.cfg.EndPressureRise &&
		f.data.PointCount() >= f.cfg.MinCollectionPoints
	maxPoints := f.data.PointCount() >= f.cfg.MaxCollectionPoints
	elapsed := frame.Timestamp - f.data.StartTime
	maxDuration := elapsed >= f.cfg.MaxCollectionDurationS

	switch {
	case riseDone:
		f.state = StateProcessing
	case maxPoints:
		f.state = StateProcessing
	case maxDuration:
		f.state = StateProcessing
	case elapsed >= f.cfg.CollectionTimeoutS:
		f.state = StateFault
	}
}

// Harvest returns the accumulated CycleData without changing state. Callers
// in PROCESSING use this to pull the frozen series before calling Reset.
func (f *FSM) Harvest() *Data {
	return f.data
}

// Reset transitions to IDLE and drops the accumulated data. Valid from
// PROCESSING after harvest, or as a manual abort from any state.
func (f *FSM) Reset() {
	f.state = StateIdle
	f.data = nil
	f.lastPressure = 0
	f.hasLast = false
}

// ForceFault transitions directly to FAULT from any state; the cabin stays
// there until ClearFault.
func (f *FSM) ForceFault() {
	f.state = StateFault
}

// ClearFault transitions FAULT back to IDLE, dropping any partial data.
func (f *FSM) ClearFault() {
	if f.state == StateFault {
		f.state = StateIdle
		f.data = nil
		f.lastPressure = 0
		f.hasLast = false
	}
}
