package polling

import (
	"testing"

	"github.com/ldpj/backend/internal/plc"
)

func TestRingBufferEvictsOldestOnOverflow(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 0; i < 5; i++ {
		rb.Append(plc.PollFrame{Timestamp: float64(i)})
	}

	if rb.Len() != 3 {
		t.Fatalf("expected length capped at 3, got %d", rb.Len())
	}

	latest, ok := rb.Latest()
	if !ok || latest.Timestamp != 4 {
		t.Fatalf("expected latest timestamp 4, got %+v ok=%v", latest, ok)
	}
}

func TestRingBufferDrainSinceIsNonDestructiveAndOrdered(t *testing.T) {
	rb := NewRingBuffer(10)
	for i := 0; i < 5; i++ {
		rb.Append(plc.PollFrame{Timestamp: float64(i)})
	}

	drained := rb.DrainSince(2)
	if len(drained) != 2 {
		t.Fatalf("expected 2 frames newer than watermark 2, got %d", len(drained))
	}
	if drained[0].Timestamp != 3 || drained[1].Timestamp != 4 {
		t.Fatalf("expected ordered [3,4], got %+v", drained)
	}

	if rb.Len() != 5 {
		t.Fatalf("drain must not remove frames, got length %d", rb.Len())
	}
}

func TestRingBufferLenNeverExceedsCapacity(t *testing.T) {
	rb := NewRingBuffer(2)
	for i := 0; i < 100; i++ {
		rb.Append(plc.PollFrame{Timestamp: float64(i)})
		if rb.Len() > 2 {
			t.Fatalf("buffer length exceeded capacity at iteration %d: %d", i, rb.Len())
		}
	}
}
