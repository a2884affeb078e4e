package eventbus

import "testing"

func TestDisabledBusIsNoOp(t *testing.T) {
	b := New("")
	if b.Enabled() {
		t.Fatalf("expected bus built with empty addr to be disabled")
	}

	// must not panic even though there is no client
	b.PublishCycle(CycleEvent{CavityID: 1})
	b.PublishFault(FaultEvent{Mnemonic: "F001"})

	if err := b.Close(); err != nil {
		t.Fatalf("expected disabled bus Close to be a no-op, got %v", err)
	}
}
