package cycle

import (
	"testing"

	"github.com/ldpj/backend/internal/plc"
)

func frameAt(index int, pressure float64, ts float64) plc.CabinFrame {
	return plc.CabinFrame{CabinIndex: index, Pressure: float32(pressure), Timestamp: ts}
}

func TestFSMStartsCollectingOnPressureDrop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StartPressureDrop = 50
	f := New(0, cfg)

	if got := f.Update(frameAt(0, 1000, 0)); got != StateIdle {
		t.Fatalf("expected IDLE after first sample, got %s", got)
	}
	if got := f.Update(frameAt(0, 940, 1)); got != StateCollecting {
		t.Fatalf("expected COLLECTING after qualifying drop, got %s", got)
	}
}

func TestFSMMaxPointsTransitionsToProcessing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StartPressureDrop = 50
	cfg.MaxCollectionPoints = 10
	cfg.MinCollectionPoints = 3
	f := New(0, cfg)

	f.Update(frameAt(0, 1000, 0))
	f.Update(frameAt(0, 940, 1))
	if f.State() != StateCollecting {
		t.Fatalf("expected COLLECTING after drop")
	}

	var state State
	for i := 0; i < 10; i++ {
		state = f.Update(frameAt(0, 500, float64(2+i)))
	}

	if state != StateProcessing {
		t.Fatalf("expected PROCESSING after reaching max points, got %s", state)
	}
	if f.PointCount() < 10 {
		t.Fatalf("expected at least 10 accumulated points, got %d", f.PointCount())
	}
}

func TestFSMEndByRiseTakesPriorityOverMaxPoints(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StartPressureDrop = 50
	cfg.EndPressureRise = 50
	cfg.MinCollectionPoints = 2
	cfg.MaxCollectionPoints = 1000
	f := New(0, cfg)

	f.Update(frameAt(0, 1000, 0))
	f.Update(frameAt(0, 940, 1))
	f.Update(frameAt(0, 935, 2))

	state := f.Update(frameAt(0, 1000, 3)) // rise of 65 with point_count already >= 2

	if state != StateProcessing {
		t.Fatalf("expected end-by-rise to transition to PROCESSING, got %s", state)
	}
}

func TestFSMCollectingTimesOutToFault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StartPressureDrop = 50
	cfg.EndPressureRise = 1e9 // unreachable
	cfg.MaxCollectionPoints = 1 << 20
	cfg.MaxCollectionDurationS = 1e9
	cfg.CollectionTimeoutS = 60
	f := New(0, cfg)

	f.Update(frameAt(0, 1000, 0))
	f.Update(frameAt(0, 940, 1))
	state := f.Update(frameAt(0, 940, 61))

	if state != StateFault {
		t.Fatalf("expected FAULT after collection timeout, got %s", state)
	}
}

func TestFSMHarvestThenResetClearsData(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StartPressureDrop = 50
	cfg.MaxCollectionPoints = 2
	f := New(0, cfg)

	f.Update(frameAt(0, 1000, 0))
	f.Update(frameAt(0, 940, 1))
	f.Update(frameAt(0, 935, 2))

	if f.State() != StateProcessing {
		t.Fatalf("expected PROCESSING before harvest")
	}

	data := f.Harvest()
	if data == nil || data.PointCount() == 0 {
		t.Fatalf("expected non-empty harvested data")
	}

	f.Reset()
	if f.State() != StateIdle {
		t.Fatalf("expected IDLE after reset")
	}
	if f.PointCount() != 0 {
		t.Fatalf("expected point count 0 after reset")
	}
}

func TestFSMIdleInvariantCycleDataEmpty(t *testing.T) {
	f := New(0, DefaultConfig())
	f.Update(frameAt(0, 1000, 0))

	if f.State() != StateIdle {
		t.Fatalf("expected IDLE with single sample")
	}
	if f.PointCount() != 0 {
		t.Fatalf("IDLE state must have empty cycle data, got point count %d", f.PointCount())
	}
}

func TestFSMForceFaultAndClearFault(t *testing.T) {
	f := New(0, DefaultConfig())
	f.ForceFault()
	if f.State() != StateFault {
		t.Fatalf("expected FAULT after ForceFault")
	}
	f.ClearFault()
	if f.State() != StateIdle {
		t.Fatalf("expected IDLE after ClearFault")
	}
}
