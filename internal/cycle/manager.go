package cycle

import (
	"sort"

	"github.com/ldpj/backend/internal/plc"
)

// Manager owns one FSM per cabin index, with no cross-cabin messaging.
type Manager struct {
	cfg   Config
	fsms  map[int]*FSM
}

// NewManager builds a manager that lazily creates an FSM per cabin index on
// first sight.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, fsms: make(map[int]*FSM)}
}

// FSM returns the FSM for a cabin index, creating it if this is the first
// time the cabin has been seen.
func (m *Manager) FSM(cabinIndex int) *FSM {
	f, ok := m.fsms[cabinIndex]
	if !ok {
		f = New(cabinIndex, m.cfg)
		m.fsms[cabinIndex] = f
	}
	return f
}

// UpdateFrame routes one PollFrame's cabins to their respective FSMs.
func (m *Manager) UpdateFrame(frame plc.PollFrame) {
	for _, cabinFrame := range frame.Cabins {
		m.FSM(cabinFrame.CabinIndex).Update(cabinFrame)
	}
}

// InState returns the cabin indices whose FSM is currently in the given
// state, in ascending index order.
func (m *Manager) InState(state State) []int {
	indices := make([]int, 0)
	for idx, f := range m.fsms {
		if f.State() == state {
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)
	return indices
}

// CabinCount returns the number of distinct cabins this manager has seen.
func (m *Manager) CabinCount() int {
	return len(m.fsms)
}

// StuckCollecting returns, in ascending index order, the cabins whose FSM
// has been COLLECTING since before now-maxDurationS.
func (m *Manager) StuckCollecting(now, maxDurationS float64) []int {
	indices := make([]int, 0)
	for idx, f := range m.fsms {
		if f.State() != StateCollecting {
			continue
		}
		data := f.Harvest()
		if data != nil && now-data.StartTime >= maxDurationS {
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)
	return indices
}

// CabinSnapshot is one cabin's state as reported by Snapshot.
type CabinSnapshot struct {
	CabinIndex int
	State      State
	PointCount int
}

// Snapshot returns every known cabin's current state and point count, in
// ascending index order, for use by diagnostics.
func (m *Manager) Snapshot() []CabinSnapshot {
	out := make([]CabinSnapshot, 0, len(m.fsms))
	for idx, f := range m.fsms {
		out = append(out, CabinSnapshot{CabinIndex: idx, State: f.State(), PointCount: f.PointCount()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CabinIndex < out[j].CabinIndex })
	return out
}
