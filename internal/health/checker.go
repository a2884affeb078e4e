package health

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/disk"
)

// ProbeStatus is one probe's outcome in a Report.
type ProbeStatus struct {
	Name    string
	OK      bool
	Message string
}

// Report is the structured result of RunAllChecks.
type Report struct {
	Timestamp time.Time
	Probes    []ProbeStatus
}

// Deps wires the checker to the live components it probes. Every field is
// required for the corresponding probe to run; a nil field disables it.
type Deps struct {
	PLCConnected      func() bool
	ModelLoaded       func() bool
	LastInferenceMS   func() float64
	PollerAlive       func() bool
	StuckCabinIndices func(maxStuckDurationS float64) []int
	DBSizeMB          func() float64
	DiskPath          string
}

// Thresholds parameterizes the probes' pass/fail boundaries.
type Thresholds struct {
	CheckIntervalS     float64
	MaxLatencyMS       float64
	DiskFreeMinMB      float64
	MaxStuckDurationS  float64
	MaxStoreSizeMB     float64
}

// DefaultThresholds returns the spec's documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CheckIntervalS:    60,
		MaxLatencyMS:      500,
		DiskFreeMinMB:     500,
		MaxStuckDurationS: 120,
		MaxStoreSizeMB:    450,
	}
}

// Checker is the background self-diagnosis worker.
type Checker struct {
	deps       Deps
	thresholds Thresholds
	reporter   *Reporter

	running int32
	stopCh  chan struct{}
	wg      sync.WaitGroup

	mu         sync.Mutex
	lastReport Report
}

// NewChecker builds a Checker bound to deps and reporter.
func NewChecker(deps Deps, thresholds Thresholds, reporter *Reporter) *Checker {
	return &Checker{deps: deps, thresholds: thresholds, reporter: reporter}
}

// Start spawns the periodic probe worker.
func (c *Checker) Start() {
	if !atomic.CompareAndSwapInt32(&c.running, 0, 1) {
		return
	}
	c.stopCh = make(chan struct{})
	c.wg.Add(1)
	go c.run()
}

// Stop signals the worker to exit and waits for it to return. The wait has
// no timeout of its own.
func (c *Checker) Stop() {
	if !atomic.CompareAndSwapInt32(&c.running, 1, 0) {
		return
	}
	close(c.stopCh)
	c.wg.Wait()
}

// Alive reports whether the worker is currently running.
func (c *Checker) Alive() bool {
	return atomic.LoadInt32(&c.running) == 1
}

func (c *Checker) run() {
	defer c.wg.Done()
	interval := time.Duration(c.thresholds.CheckIntervalS * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.RunAllChecks()
		}
	}
}

// RunAllChecks executes every enabled probe synchronously and returns the
// resulting report; also usable on-demand outside the periodic worker.
func (c *Checker) RunAllChecks() Report {
	report := Report{Timestamp: time.Now()}

	report.Probes = append(report.Probes, c.checkSafely("plc_link", c.probePLCLink))
	report.Probes = append(report.Probes, c.checkSafely("model", c.probeModel))
	report.Probes = append(report.Probes, c.checkSafely("latency", c.probeLatency))
	report.Probes = append(report.Probes, c.checkSafely("disk", c.probeDisk))
	report.Probes = append(report.Probes, c.checkSafely("poller", c.probePoller))
	report.Probes = append(report.Probes, c.checkSafely("fsm", c.probeFSM))
	report.Probes = append(report.Probes, c.checkSafely("store", c.probeStore))

	c.mu.Lock()
	c.lastReport = report
	c.mu.Unlock()

	return report
}

// LastReport returns the most recently computed report.
func (c *Checker) LastReport() Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastReport
}

// checkSafely wraps a probe so a panic inside it never crashes the checker;
// it is caught and reported as a failed probe entry.
func (c *Checker) checkSafely(name string, probe func() ProbeStatus) (status ProbeStatus) {
	defer func() {
		if r := recover(); r != nil {
			status = ProbeStatus{Name: name, OK: false, Message: "probe panicked"}
			log.Printf("health: probe %s panicked: %v", name, r)
		}
	}()
	return probe()
}

func (c *Checker) probePLCLink() ProbeStatus {
	if c.deps.PLCConnected == nil {
		return ProbeStatus{Name: "plc_link", OK: true, Message: "not monitored"}
	}
	if c.deps.PLCConnected() {
		c.reporter.ResolveFault("F001")
		return ProbeStatus{Name: "plc_link", OK: true}
	}
	c.reporter.RaiseFault("F001", "PLC transport not connected")
	return ProbeStatus{Name: "plc_link", OK: false, Message: "not connected"}
}

func (c *Checker) probeModel() ProbeStatus {
	if c.deps.ModelLoaded == nil {
		return ProbeStatus{Name: "model", OK: true, Message: "not monitored"}
	}
	if c.deps.ModelLoaded() {
		c.reporter.ResolveFault("F002")
		return ProbeStatus{Name: "model", OK: true}
	}
	c.reporter.RaiseFault("F002", "inference model not loaded")
	return ProbeStatus{Name: "model", OK: false, Message: "not loaded"}
}

func (c *Checker) probeLatency() ProbeStatus {
	if c.deps.LastInferenceMS == nil {
		return ProbeStatus{Name: "latency", OK: true, Message: "not monitored"}
	}
	ms := c.deps.LastInferenceMS()
	if ms <= c.thresholds.MaxLatencyMS {
		c.reporter.ResolveFault("F004")
		return ProbeStatus{Name: "latency", OK: true}
	}
	c.reporter.RaiseFault("F004", "inference latency exceeded threshold")
	return ProbeStatus{Name: "latency", OK: false, Message: "latency above threshold"}
}

func (c *Checker) probeDisk() ProbeStatus {
	if c.deps.DiskPath == "" {
		return ProbeStatus{Name: "disk", OK: true, Message: "not monitored"}
	}
	usage, err := disk.Usage(c.deps.DiskPath)
	if err != nil {
		return ProbeStatus{Name: "disk", OK: false, Message: "probe error: " + err.Error()}
	}
	freeMB := float64(usage.Free) / (1024 * 1024)
	if freeMB >= c.thresholds.DiskFreeMinMB {
		c.reporter.ResolveFault("F005")
		return ProbeStatus{Name: "disk", OK: true, Message: humanize.Bytes(usage.Free) + " free"}
	}
	c.reporter.RaiseFault("F005", "free disk space below threshold")
	return ProbeStatus{Name: "disk", OK: false, Message: humanize.Bytes(usage.Free) + " free"}
}

func (c *Checker) probePoller() ProbeStatus {
	if c.deps.PollerAlive == nil {
		return ProbeStatus{Name: "poller", OK: true, Message: "not monitored"}
	}
	if c.deps.PollerAlive() {
		c.reporter.ResolveFault("F008")
		return ProbeStatus{Name: "poller", OK: true}
	}
	c.reporter.RaiseFault("F008", "polling worker not alive")
	return ProbeStatus{Name: "poller", OK: false, Message: "worker not alive"}
}

func (c *Checker) probeFSM() ProbeStatus {
	if c.deps.StuckCabinIndices == nil {
		return ProbeStatus{Name: "fsm", OK: true, Message: "not monitored"}
	}
	stuck := c.deps.StuckCabinIndices(c.thresholds.MaxStuckDurationS)
	if len(stuck) == 0 {
		c.reporter.ResolveFault("F009")
		return ProbeStatus{Name: "fsm", OK: true}
	}
	c.reporter.RaiseFault("F009", "cabin FSM stuck in COLLECTING")
	return ProbeStatus{Name: "fsm", OK: false}
}

func (c *Checker) probeStore() ProbeStatus {
	if c.deps.DBSizeMB == nil {
		return ProbeStatus{Name: "store", OK: true, Message: "not monitored"}
	}
	sizeMB := c.deps.DBSizeMB()
	if sizeMB <= c.thresholds.MaxStoreSizeMB {
		c.reporter.ResolveFault("F007")
		return ProbeStatus{Name: "store", OK: true}
	}
	c.reporter.RaiseFault("F007", "record store size exceeded threshold")
	return ProbeStatus{Name: "store", OK: false}
}
