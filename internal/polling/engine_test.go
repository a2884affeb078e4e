package polling

import (
	"testing"
	"time"

	"github.com/ldpj/backend/internal/plc"
)

func TestEngineStartStopLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Period = time.Millisecond
	cfg.CabinCount = 2

	transport := plc.NewMockTransport(plc.Config{CabinCount: cfg.CabinCount})
	eng := New(cfg, transport)

	if err := eng.Start(); err != nil {
		t.Fatalf("unexpected error starting engine: %v", err)
	}
	if !eng.IsRunning() {
		t.Fatalf("expected engine to report running after Start")
	}

	time.Sleep(20 * time.Millisecond)
	eng.Stop()

	if eng.IsRunning() {
		t.Fatalf("expected engine to report stopped after Stop")
	}
	if eng.Counters().TotalPolls == 0 {
		t.Fatalf("expected at least one successful poll")
	}
}

func TestEngineStartIsIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Period = time.Millisecond
	cfg.CabinCount = 2
	transport := plc.NewMockTransport(plc.Config{CabinCount: cfg.CabinCount})
	eng := New(cfg, transport)

	_ = eng.Start()
	_ = eng.Start() // must not spawn a second worker or panic
	time.Sleep(5 * time.Millisecond)
	eng.Stop()
}

func TestEngineBufferLengthBoundedByCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Period = time.Millisecond
	cfg.CabinCount = 1
	cfg.BufferCapacity = 5
	transport := plc.NewMockTransport(plc.Config{CabinCount: cfg.CabinCount})
	eng := New(cfg, transport)

	_ = eng.Start()
	time.Sleep(50 * time.Millisecond)
	eng.Stop()

	if eng.BufferLength() > 5 {
		t.Fatalf("buffer length %d exceeds configured capacity 5", eng.BufferLength())
	}
}
