package obsmetrics

import "testing"

func TestNewRegistersAllCollectors(t *testing.T) {
	m := New()
	if m.PollDrainSize == nil || m.InferenceLatency == nil || m.CyclesCompleted == nil ||
		m.CyclesFaulted == nil || m.ActiveFaults == nil || m.PollErrors == nil ||
		m.PollReconnects == nil || m.RingBufferLength == nil || m.RecordStoreSizeMB == nil {
		t.Fatalf("expected all collectors to be initialized")
	}
}
