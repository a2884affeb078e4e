// Package pipeline wires the polling engine, cycle detection, feature
// extraction, inference, persistence, result write-back, health, alarms,
// and the event bus into the single-threaded processing loop described in
// the concurrency model: the loop is the foreground cooperative worker,
// never blocking longer than one drain-plus-inference round trip.
package pipeline

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ldpj/backend/internal/alarm"
	"github.com/ldpj/backend/internal/cycle"
	"github.com/ldpj/backend/internal/eventbus"
	"github.com/ldpj/backend/internal/features"
	"github.com/ldpj/backend/internal/health"
	"github.com/ldpj/backend/internal/inference"
	"github.com/ldpj/backend/internal/obsmetrics"
	"github.com/ldpj/backend/internal/polling"
	"github.com/ldpj/backend/internal/resultsender"
	"github.com/ldpj/backend/internal/store"
)

// Config parameterizes loop timing and feature projection.
type Config struct {
	LoopInterval time.Duration
	FeatureMode  features.Mode
	Threshold    float64
	PushOnLeak   bool
}

// DefaultConfig returns the spec's documented runtime defaults.
func DefaultConfig() Config {
	return Config{
		LoopInterval: 50 * time.Millisecond,
		FeatureMode:  features.Mode7D,
		Threshold:    0.3,
		PushOnLeak:   true,
	}
}

// Loop is the processing-loop orchestrator: one iteration drains frames,
// advances FSMs, harvests completed cycles, and routes faulted cabins back
// to IDLE by way of a raised F009.
type Loop struct {
	cfg Config

	poller   *polling.Engine
	cycles   *cycle.Manager
	model    *inference.Model
	sender   *resultsender.Sender
	recorder *store.Store
	reporter *health.Reporter
	pusher   *alarm.Pusher
	bus      *eventbus.Bus
	metrics  *obsmetrics.Metrics

	lastWatermark float64
	batchTag      string // stamped once per process run, shared by every record this run persists

	running      int32
	paused       int32
	watchdog     int32
	loopInterval int64 // nanoseconds, read/written atomically; hot-reloadable
	stopCh       chan struct{}
	wg           sync.WaitGroup

	mu              sync.Mutex
	lastInferenceMS float64
	threshold       float64 // hot-reloadable; guarded by mu alongside lastInferenceMS
}

// New builds a Loop bound to its collaborators. Any of pusher, bus, or
// metrics may be nil to disable the corresponding side effect.
func New(cfg Config, poller *polling.Engine, cycles *cycle.Manager, model *inference.Model,
	sender *resultsender.Sender, recorder *store.Store, reporter *health.Reporter,
	pusher *alarm.Pusher, bus *eventbus.Bus, metrics *obsmetrics.Metrics) *Loop {
	return &Loop{
		cfg:          cfg,
		poller:       poller,
		cycles:       cycles,
		model:        model,
		sender:       sender,
		recorder:     recorder,
		reporter:     reporter,
		pusher:       pusher,
		bus:          bus,
		metrics:      metrics,
		loopInterval: int64(cfg.LoopInterval),
		threshold:    cfg.Threshold,
		batchTag:     uuid.NewString(),
	}
}

// BatchTag returns the tag stamped on every record persisted this process
// run, generated once at construction.
func (l *Loop) BatchTag() string {
	return l.batchTag
}

// SetThreshold updates the inference decision threshold applied by the next
// processed cabin. Safe to call while the loop is running.
func (l *Loop) SetThreshold(threshold float64) {
	l.mu.Lock()
	l.threshold = threshold
	l.mu.Unlock()
}

// Threshold returns the currently active inference decision threshold.
func (l *Loop) Threshold() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.threshold
}

// SetLoopInterval updates the tick period used by the next iteration's
// sleep. Safe to call while the loop is running.
func (l *Loop) SetLoopInterval(d time.Duration) {
	atomic.StoreInt64(&l.loopInterval, int64(d))
}

// Start spawns the loop's single worker goroutine. Idempotent.
func (l *Loop) Start() {
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		return
	}
	l.stopCh = make(chan struct{})
	l.wg.Add(1)
	go l.run()
}

// Stop signals the worker to exit and waits for it, bounded by a 10-second
// deadline matching the documented suspension-point budget.
func (l *Loop) Stop() {
	if !atomic.CompareAndSwapInt32(&l.running, 1, 0) {
		return
	}
	close(l.stopCh)

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Printf("pipeline: worker did not join within 10s bound")
	}
}

// Alive reports whether the loop's worker is running.
func (l *Loop) Alive() bool {
	return atomic.LoadInt32(&l.running) == 1
}

// Pause suspends draining and processing without stopping the worker.
func (l *Loop) Pause() {
	atomic.StoreInt32(&l.paused, 1)
}

// Resume lifts a prior Pause.
func (l *Loop) Resume() {
	atomic.StoreInt32(&l.paused, 0)
}

// Paused reports the current pause state.
func (l *Loop) Paused() bool {
	return atomic.LoadInt32(&l.paused) == 1
}

// SetWatchdog toggles the advisory watchdog flag surfaced in diagnostics.
// It carries no automatic restart behavior; it is diagnostic-only.
func (l *Loop) SetWatchdog(on bool) {
	if on {
		atomic.StoreInt32(&l.watchdog, 1)
	} else {
		atomic.StoreInt32(&l.watchdog, 0)
	}
}

// WatchdogOn reports the current watchdog flag.
func (l *Loop) WatchdogOn() bool {
	return atomic.LoadInt32(&l.watchdog) == 1
}

// StuckCabinIndices satisfies health.Deps.StuckCabinIndices.
func (l *Loop) StuckCabinIndices(maxStuckDurationS float64) []int {
	now := float64(time.Now().UnixNano()) / 1e9
	return l.cycles.StuckCollecting(now, maxStuckDurationS)
}

// LastInferenceMS satisfies health.Deps.LastInferenceMS.
func (l *Loop) LastInferenceMS() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastInferenceMS
}

func (l *Loop) setLastInferenceMS(ms float64) {
	l.mu.Lock()
	l.lastInferenceMS = ms
	l.mu.Unlock()
}

// CabinDiagnostic is one cabin's state as surfaced by GetDiagnostics.
type CabinDiagnostic struct {
	CabinIndex int
	State      string
	PointCount int
}

// Diagnostics is the structured snapshot returned by GetDiagnostics.
type Diagnostics struct {
	Cabins        []CabinDiagnostic
	BufferLength  int
	Counters      polling.Counters
	ModelLoaded   bool
	ModelVersion  string
	Paused        bool
	WatchdogOn    bool
	LastWatermark float64
}

// GetDiagnostics returns a structured snapshot of per-cabin states, point
// counts, poller buffer length and counters, model identity, and flags.
func (l *Loop) GetDiagnostics() Diagnostics {
	snap := l.cycles.Snapshot()
	cabins := make([]CabinDiagnostic, 0, len(snap))
	for _, s := range snap {
		cabins = append(cabins, CabinDiagnostic{
			CabinIndex: s.CabinIndex,
			State:      s.State.String(),
			PointCount: s.PointCount,
		})
	}

	return Diagnostics{
		Cabins:        cabins,
		BufferLength:  l.poller.BufferLength(),
		Counters:      l.poller.Counters(),
		ModelLoaded:   l.model.Loaded(),
		ModelVersion:  l.model.Version(),
		Paused:        l.Paused(),
		WatchdogOn:    l.WatchdogOn(),
		LastWatermark: l.lastWatermarkSnapshot(),
	}
}

func (l *Loop) lastWatermarkSnapshot() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastWatermark
}

func (l *Loop) run() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stopCh:
			return
		default:
		}

		t0 := time.Now()

		if l.Paused() {
			l.sleepOrStop(l.LoopInterval())
			continue
		}

		l.drainAndAdvance()
		l.harvestCompleted()
		l.clearFaulted()
		if l.metrics != nil {
			l.metrics.ActiveFaults.Set(float64(len(l.reporter.Summary().ActiveFaults)))
		}

		l.sleepRemainder(t0)
	}
}

func (l *Loop) drainAndAdvance() {
	l.mu.Lock()
	watermark := l.lastWatermark
	l.mu.Unlock()

	frames := l.poller.DrainFramesSince(watermark)
	if len(frames) == 0 {
		return
	}

	for _, frame := range frames {
		l.cycles.UpdateFrame(frame)
		if frame.Timestamp > watermark {
			watermark = frame.Timestamp
		}
	}

	l.mu.Lock()
	l.lastWatermark = watermark
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.PollDrainSize.Observe(float64(len(frames)))
	}
}

func (l *Loop) harvestCompleted() {
	for _, idx := range l.cycles.InState(cycle.StateProcessing) {
		l.processCabin(idx)
	}
}

func (l *Loop) clearFaulted() {
	for _, idx := range l.cycles.InState(cycle.StateFault) {
		l.reporter.RaiseFault("F009", fmt.Sprintf("cabin %d stuck in COLLECTING", idx))
		l.cycles.FSM(idx).ClearFault()
		if l.metrics != nil {
			l.metrics.CyclesFaulted.WithLabelValues(fmt.Sprintf("%d", idx)).Inc()
		}
	}
}

func (l *Loop) processCabin(cabinIndex int) {
	fsm := l.cycles.FSM(cabinIndex)
	data := fsm.Harvest()
	if data == nil || data.PointCount() < 2 {
		fsm.Reset()
		return
	}

	vector := features.Compute(data.Pressures, cabinIndex)
	projected := features.ToVector(vector, l.cfg.FeatureMode)

	result, latencyMS := l.infer(projected, cabinIndex)
	l.setLastInferenceMS(latencyMS)
	if l.metrics != nil {
		l.metrics.InferenceLatency.WithLabelValues(fmt.Sprintf("%d", cabinIndex)).Observe(latencyMS)
	}

	duration := 0.0
	if n := len(data.Timestamps); n > 0 {
		duration = data.Timestamps[n-1] - data.StartTime
	}

	record := store.Record{
		BatchID:      l.batchTag,
		CavityID:     cabinIndex,
		Timestamp:    store.NowLocalISO8601(),
		Pressures:    data.Pressures,
		Angles:       data.Angles,
		Analog:       data.Analog,
		Positions:    data.Positions,
		Features:     vector.Map(),
		Label:        result.Label,
		Probability:  result.Probability,
		Confidence:   result.Confidence,
		ModelVersion: l.model.Version(),
		DurationS:    duration,
		PointCount:   data.PointCount(),
	}

	if _, err := l.recorder.LogRecord(record); err != nil {
		log.Printf("pipeline: record insert for cabin %d failed: %v", cabinIndex, err)
		l.reporter.RaiseFault("F006", "record insert failed")
	} else {
		l.reporter.ResolveFault("F006")
	}

	if err := l.sender.WriteResult(result.Label, result.Probability); err != nil {
		log.Printf("pipeline: result write for cabin %d failed: %v", cabinIndex, err)
	}

	if result.Label == 0 && l.cfg.PushOnLeak && l.pusher != nil {
		l.pusher.Push("LEAK", fmt.Sprintf("leak detected on cavity %d", cabinIndex), "WARNING")
	}

	if l.bus != nil {
		l.bus.PublishCycle(eventbus.CycleEvent{
			CavityID:    cabinIndex,
			Label:       result.Label,
			Probability: result.Probability,
			Timestamp:   record.Timestamp,
		})
	}
	if l.metrics != nil {
		l.metrics.CyclesCompleted.WithLabelValues(fmt.Sprintf("%d", cabinIndex), fmt.Sprintf("%d", result.Label)).Inc()
	}

	fsm.Reset()
}

func (l *Loop) infer(vector []float64, cabinIndex int) (inference.Result, float64) {
	if !l.model.Loaded() {
		return inference.Unavailable, 0
	}

	start := time.Now()
	result, err := l.model.Predict(vector, l.Threshold())
	latencyMS := float64(time.Since(start)) / float64(time.Millisecond)
	if err != nil {
		log.Printf("pipeline: inference for cabin %d failed: %v", cabinIndex, err)
		return inference.Unavailable, latencyMS
	}
	return result, latencyMS
}

func (l *Loop) sleepRemainder(t0 time.Time) {
	elapsed := time.Since(t0)
	remaining := l.LoopInterval() - elapsed
	if remaining > 0 {
		l.sleepOrStop(remaining)
	}
}

func (l *Loop) sleepOrStop(d time.Duration) {
	select {
	case <-time.After(d):
	case <-l.stopCh:
	}
}

// LoopInterval returns the currently active tick period.
func (l *Loop) LoopInterval() time.Duration {
	return time.Duration(atomic.LoadInt64(&l.loopInterval))
}
