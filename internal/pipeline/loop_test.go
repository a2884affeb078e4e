package pipeline

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ldpj/backend/internal/cycle"
	"github.com/ldpj/backend/internal/health"
	"github.com/ldpj/backend/internal/inference"
	"github.com/ldpj/backend/internal/plc"
	"github.com/ldpj/backend/internal/resultsender"
	"github.com/ldpj/backend/internal/store"
)

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// recordingTransport is a minimal plc.Transport double that records the
// last WriteBlock call; reads are never exercised by these tests.
type recordingTransport struct {
	mu         sync.Mutex
	lastBlock  int
	lastOffset int
	lastData   []byte
	writes     int
}

var _ plc.Transport = (*recordingTransport)(nil)

func (t *recordingTransport) Connect() error  { return nil }
func (t *recordingTransport) Disconnect()     {}
func (t *recordingTransport) Connected() bool { return true }

func (t *recordingTransport) ReadBlock(block, offset, size int) ([]byte, error) {
	return make([]byte, size), nil
}

func (t *recordingTransport) WriteBlock(block, offset int, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastBlock, t.lastOffset, t.lastData = block, offset, data
	t.writes++
	return nil
}

func driveToProcessing(t *testing.T, mgr *cycle.Manager, cabinIndex int) {
	t.Helper()
	mgr.UpdateFrame(plc.PollFrame{Timestamp: 0, Cabins: []plc.CabinFrame{
		{CabinIndex: cabinIndex, Pressure: 1000, Timestamp: 0},
	}})
	mgr.UpdateFrame(plc.PollFrame{Timestamp: 1, Cabins: []plc.CabinFrame{
		{CabinIndex: cabinIndex, Pressure: 940, Timestamp: 1},
	}})
	mgr.UpdateFrame(plc.PollFrame{Timestamp: 2, Cabins: []plc.CabinFrame{
		{CabinIndex: cabinIndex, Pressure: 935, Timestamp: 2},
	}})
	mgr.UpdateFrame(plc.PollFrame{Timestamp: 3, Cabins: []plc.CabinFrame{
		{CabinIndex: cabinIndex, Pressure: 1000, Timestamp: 3},
	}})
	if mgr.FSM(cabinIndex).State() != cycle.StateProcessing {
		t.Fatalf("setup: expected cabin %d PROCESSING, got %s", cabinIndex, mgr.FSM(cabinIndex).State())
	}
}

func newTestLoop(t *testing.T, mgr *cycle.Manager, transport plc.Transport) (*Loop, *store.Store) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "ldpj.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sender := resultsender.New(resultsender.DefaultConfig(), transport)
	reporter := health.NewReporter()
	model := inference.New() // deliberately unloaded

	loop := New(DefaultConfig(), nil, mgr, model, sender, st, reporter, nil, nil, nil)
	return loop, st
}

// riseEndConfig lowers MinCollectionPoints so driveToProcessing's four-frame
// sequence can end by pressure rise; the default of 100 points would keep
// the cabin COLLECTING.
func riseEndConfig() cycle.Config {
	cfg := cycle.DefaultConfig()
	cfg.MinCollectionPoints = 2
	return cfg
}

func TestProcessCabinPersistsRecordAndWritesUnavailableResult(t *testing.T) {
	mgr := cycle.NewManager(riseEndConfig())
	driveToProcessing(t, mgr, 0)

	transport := &recordingTransport{}
	loop, st := newTestLoop(t, mgr, transport)

	loop.processCabin(0)

	if mgr.FSM(0).State() != cycle.StateIdle {
		t.Fatalf("expected cabin reset to IDLE after processing, got %s", mgr.FSM(0).State())
	}

	count, err := st.CountRecords()
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 persisted record, got %d", count)
	}

	rows, err := st.QueryRecords(store.Filters{})
	if err != nil {
		t.Fatalf("QueryRecords: %v", err)
	}
	if len(rows) != 1 || rows[0].Label != -1 || rows[0].CavityID != 0 {
		t.Fatalf("unexpected record: %+v", rows)
	}

	if transport.writes == 0 {
		t.Fatalf("expected a result write-back to the transport")
	}
	if transport.lastOffset != resultsender.DefaultConfig().WriteBackOffset {
		t.Fatalf("wrote to offset %d, want %d", transport.lastOffset, resultsender.DefaultConfig().WriteBackOffset)
	}
}

func TestProcessCabinSkipsShortHarvest(t *testing.T) {
	mgr := cycle.NewManager(riseEndConfig())
	driveToProcessing(t, mgr, 0)

	// Force a pathological short harvest (defensive guard: should never
	// occur through normal FSM operation, since both tryStart and
	// advanceCollecting always append at least one point each).
	data := mgr.FSM(0).Harvest()
	data.Pressures = data.Pressures[:1]
	data.Timestamps = data.Timestamps[:1]
	data.Angles = data.Angles[:1]
	data.Analog = data.Analog[:1]
	data.Positions = data.Positions[:1]

	transport := &recordingTransport{}
	loop, st := newTestLoop(t, mgr, transport)

	loop.processCabin(0)

	if mgr.FSM(0).State() != cycle.StateIdle {
		t.Fatalf("expected cabin reset to IDLE, got %s", mgr.FSM(0).State())
	}
	count, err := st.CountRecords()
	if err != nil {
		t.Fatalf("CountRecords: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no record persisted for a short harvest, got %d", count)
	}
	if transport.writes != 0 {
		t.Fatalf("expected no result write-back for a short harvest")
	}
}

func TestClearFaultedRaisesF009AndResetsCabin(t *testing.T) {
	mgr := cycle.NewManager(cycle.DefaultConfig())
	mgr.FSM(2).ForceFault()

	loop, _ := newTestLoop(t, mgr, &recordingTransport{})
	loop.clearFaulted()

	if mgr.FSM(2).State() != cycle.StateIdle {
		t.Fatalf("expected cabin 2 reset to IDLE after fault clear, got %s", mgr.FSM(2).State())
	}

	raised := false
	for _, e := range loop.reporter.Summary().ActiveFaults {
		if e.Code.Mnemonic == "F009" {
			raised = true
		}
	}
	if !raised {
		t.Fatalf("expected F009 active after clearing a faulted cabin")
	}
}

func TestStuckCabinIndicesDelegatesToManager(t *testing.T) {
	mgr := cycle.NewManager(cycle.DefaultConfig())
	t0 := nowSeconds()
	mgr.UpdateFrame(plc.PollFrame{Timestamp: t0, Cabins: []plc.CabinFrame{
		{CabinIndex: 1, Pressure: 1000, Timestamp: t0},
	}})
	mgr.UpdateFrame(plc.PollFrame{Timestamp: t0 + 1, Cabins: []plc.CabinFrame{
		{CabinIndex: 1, Pressure: 900, Timestamp: t0 + 1},
	}})
	if mgr.FSM(1).State() != cycle.StateCollecting {
		t.Fatalf("setup: expected cabin 1 COLLECTING")
	}

	loop, _ := newTestLoop(t, mgr, &recordingTransport{})
	if stuck := loop.StuckCabinIndices(1000); len(stuck) != 0 {
		t.Fatalf("expected no stuck cabins immediately, got %v", stuck)
	}
}

func TestSetThresholdAndLoopIntervalApplyLive(t *testing.T) {
	mgr := cycle.NewManager(cycle.DefaultConfig())
	loop, _ := newTestLoop(t, mgr, &recordingTransport{})

	if loop.Threshold() != DefaultConfig().Threshold {
		t.Fatalf("expected initial threshold %v, got %v", DefaultConfig().Threshold, loop.Threshold())
	}
	loop.SetThreshold(0.75)
	if loop.Threshold() != 0.75 {
		t.Fatalf("expected threshold 0.75 after SetThreshold, got %v", loop.Threshold())
	}

	loop.SetLoopInterval(250 * time.Millisecond)
	if loop.LoopInterval() != 250*time.Millisecond {
		t.Fatalf("expected loop interval 250ms after SetLoopInterval, got %v", loop.LoopInterval())
	}
}
