// Package eventbus optionally fans out fault and cycle-completion events
// over Redis pub/sub for external dashboards. It is disabled by default and
// is explicitly a single-node publish path, not a multi-node coordination
// mechanism: no consumer group semantics, no delivery guarantee.
package eventbus

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// CycleEvent is published whenever a cabin completes a cycle.
type CycleEvent struct {
	CavityID    int     `json:"cavity_id"`
	Label       int     `json:"label"`
	Probability float64 `json:"probability"`
	Timestamp   string  `json:"timestamp"`
}

// FaultEvent is published whenever a fault is newly raised. The daemon does
// not publish resolves: the fault reporter notifies its callbacks on raises
// only.
type FaultEvent struct {
	Mnemonic string `json:"mnemonic"`
	Message  string `json:"message"`
	Action   string `json:"action"` // "raised"
}

// Bus publishes to two well-known channels. A nil client disables
// publishing entirely (used when ipc.eventbus is not enabled).
type Bus struct {
	client         *redis.Client
	cycleChannel   string
	faultChannel   string
	publishTimeout time.Duration
}

// New builds a Bus over an existing go-redis client. Pass addr="" to build
// a disabled bus whose Publish* calls are no-ops.
func New(addr string) *Bus {
	if addr == "" {
		return &Bus{}
	}
	return &Bus{
		client:         redis.NewClient(&redis.Options{Addr: addr}),
		cycleChannel:   "ldpj:cycles",
		faultChannel:   "ldpj:faults",
		publishTimeout: 2 * time.Second,
	}
}

// Enabled reports whether this bus has a live Redis client.
func (b *Bus) Enabled() bool {
	return b.client != nil
}

// PublishCycle fans out a completed cycle on its own goroutine. Failures are
// logged only: the event bus is best-effort and never blocks the processing
// loop.
func (b *Bus) PublishCycle(event CycleEvent) {
	if !b.Enabled() {
		return
	}
	go b.publish(b.cycleChannel, event)
}

// PublishFault fans out a fault transition. It publishes synchronously,
// bounded by the publish timeout.
func (b *Bus) PublishFault(event FaultEvent) {
	if !b.Enabled() {
		return
	}
	b.publish(b.faultChannel, event)
}

func (b *Bus) publish(channel string, event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("eventbus: failed to marshal event for %s: %v", channel, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.publishTimeout)
	defer cancel()

	if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
		log.Printf("eventbus: publish to %s failed: %v", channel, err)
	}
}

// Close releases the underlying Redis connection, if any.
func (b *Bus) Close() error {
	if !b.Enabled() {
		return nil
	}
	return b.client.Close()
}
