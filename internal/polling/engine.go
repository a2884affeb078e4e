package polling

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ldpj/backend/internal/circuitbreaker"
	"github.com/ldpj/backend/internal/plc"
)

// Config parameterizes the poll loop's timing and ring buffer sizing.
type Config struct {
	Period             time.Duration
	ReconnectIntervalS float64
	BufferCapacity     int
	CabinCount         int
	CabinSizeBytes     int
	DBNumber           int
	StartOffset        int
}

// DefaultConfig returns the spec's documented polling defaults.
func DefaultConfig() Config {
	return Config{
		Period:             10 * time.Millisecond,
		ReconnectIntervalS: 5,
		BufferCapacity:     DefaultCapacity,
		CabinCount:         25,
		CabinSizeBytes:     plc.CabinSizeBytes,
		DBNumber:           9,
		StartOffset:        0,
	}
}

// Counters are the poller's observable counts.
type Counters struct {
	TotalPolls uint64
	Errors     uint64
	Reconnects uint64
}

// Engine runs the background sampler over a Transport, maintaining a ring
// buffer and a reconnect path guarded by a circuit breaker.
type Engine struct {
	cfg       Config
	transport plc.Transport
	buf       *RingBuffer
	breaker   *circuitbreaker.CircuitBreaker

	running int32
	wg      sync.WaitGroup
	stopCh  chan struct{}

	totalPolls uint64
	errors     uint64
	reconnects uint64
}

// New builds an Engine bound to the given transport.
func New(cfg Config, transport plc.Transport) *Engine {
	cbCfg := circuitbreaker.DefaultConfig("plc-reconnect")
	cbCfg.Timeout = time.Duration(cfg.ReconnectIntervalS * float64(time.Second))

	return &Engine{
		cfg:       cfg,
		transport: transport,
		buf:       NewRingBuffer(cfg.BufferCapacity),
		breaker:   circuitbreaker.New(cbCfg),
	}
}

// Start connects the transport and spawns the background worker. Idempotent:
// calling Start while already running is a no-op.
func (e *Engine) Start() error {
	if !atomic.CompareAndSwapInt32(&e.running, 0, 1) {
		return nil
	}

	if err := e.transport.Connect(); err != nil {
		log.Printf("polling: initial connect failed: %v", err)
	}

	e.stopCh = make(chan struct{})
	e.wg.Add(1)
	go e.run()
	return nil
}

// Stop clears the running flag, joins the worker with a 5-second bound,
// then disconnects the transport.
func (e *Engine) Stop() {
	if !atomic.CompareAndSwapInt32(&e.running, 1, 0) {
		return
	}
	close(e.stopCh)

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Printf("polling: worker did not join within 5s bound")
	}

	e.transport.Disconnect()
}

// IsRunning reports whether the worker is active.
func (e *Engine) IsRunning() bool {
	return atomic.LoadInt32(&e.running) == 1
}

// PLCConnected reports the transport's current connection state.
func (e *Engine) PLCConnected() bool {
	return e.transport.Connected()
}

// BufferLength returns the ring buffer's current occupancy.
func (e *Engine) BufferLength() int {
	return e.buf.Len()
}

// Counters returns a snapshot of the poll counters.
func (e *Engine) Counters() Counters {
	return Counters{
		TotalPolls: atomic.LoadUint64(&e.totalPolls),
		Errors:     atomic.LoadUint64(&e.errors),
		Reconnects: atomic.LoadUint64(&e.reconnects),
	}
}

// LatestFrame returns the most recently sampled frame, if any.
func (e *Engine) LatestFrame() (plc.PollFrame, bool) {
	return e.buf.Latest()
}

// DrainFramesSince returns every frame strictly newer than watermark, in
// order, without removing them from the buffer.
func (e *Engine) DrainFramesSince(watermark float64) []plc.PollFrame {
	return e.buf.DrainSince(watermark)
}

func (e *Engine) run() {
	defer e.wg.Done()

	readSize := e.cfg.CabinCount * e.cfg.CabinSizeBytes
	reconnectSleep := time.Duration(e.cfg.ReconnectIntervalS * float64(time.Second))

	for {
		select {
		case <-e.stopCh:
			return
		default:
		}

		t0 := time.Now()

		if !e.transport.Connected() {
			if err := e.reconnect(); err != nil {
				atomic.AddUint64(&e.errors, 1)
				e.sleepOrStop(reconnectSleep)
				continue
			}
		}

		raw, err := e.transport.ReadBlock(e.cfg.DBNumber, e.cfg.StartOffset, readSize)
		if err != nil {
			atomic.AddUint64(&e.errors, 1)
			e.sleepRemainder(t0)
			continue
		}

		now := float64(time.Now().UnixNano()) / 1e9
		frame := plc.ParseFrame(raw, e.cfg.CabinCount, e.cfg.CabinSizeBytes, now)
		e.buf.Append(frame)
		atomic.AddUint64(&e.totalPolls, 1)

		e.sleepRemainder(t0)
	}
}

func (e *Engine) reconnect() error {
	_, err := e.breaker.Execute(func() (interface{}, error) {
		return nil, e.transport.Connect()
	})
	if err == nil {
		atomic.AddUint64(&e.reconnects, 1)
	}
	return err
}

func (e *Engine) sleepRemainder(t0 time.Time) {
	elapsed := time.Since(t0)
	remaining := e.cfg.Period - elapsed
	if remaining > 0 {
		e.sleepOrStop(remaining)
	}
}

func (e *Engine) sleepOrStop(d time.Duration) {
	select {
	case <-time.After(d):
	case <-e.stopCh:
	}
}
