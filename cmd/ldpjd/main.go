// Command ldpjd is the edge daemon: it polls a PLC-driven cabin array,
// detects per-cabin fill/release cycles, extracts features, scores them
// with a portable inference artifact, persists the outcome, writes the
// result back to the PLC, and serves a read-only HTTP/websocket API over
// the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ldpj/backend/internal/alarm"
	"github.com/ldpj/backend/internal/config"
	"github.com/ldpj/backend/internal/cycle"
	"github.com/ldpj/backend/internal/eventbus"
	"github.com/ldpj/backend/internal/features"
	"github.com/ldpj/backend/internal/health"
	"github.com/ldpj/backend/internal/httpapi"
	"github.com/ldpj/backend/internal/inference"
	"github.com/ldpj/backend/internal/obsmetrics"
	"github.com/ldpj/backend/internal/pipeline"
	"github.com/ldpj/backend/internal/plc"
	"github.com/ldpj/backend/internal/polling"
	"github.com/ldpj/backend/internal/resultsender"
	"github.com/ldpj/backend/internal/store"
)

func main() {
	mode := flag.String("mode", "mock", "PLC transport: s7 or mock")
	configPath := flag.String("config", "config.yaml", "path to YAML configuration file")
	modelPath := flag.String("model", "model.json", "path to the inference artifact")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus /metrics listen address")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.Info(fmt.Sprintf(format, args...))
	})); err != nil {
		logger.Warn("automaxprocs: could not set GOMAXPROCS", "error", err)
	}
	if _, err := memlimit.SetGoMemLimitWithOpts(memlimit.WithRatio(0.9)); err != nil {
		logger.Warn("automemlimit: could not set GOMEMLIMIT", "error", err)
	}

	cfg := config.Load(*configPath)
	logger.Info("configuration loaded", "path", *configPath, "mode", *mode, "cabin_count", cfg.CabinArray.CabinCount)

	transport := buildTransport(*mode, cfg, logger)

	pollerCfg := polling.Config{
		Period:             time.Duration(cfg.Polling.IntervalMS) * time.Millisecond,
		ReconnectIntervalS: cfg.Connection.ReconnectIntervalS,
		BufferCapacity:     cfg.Polling.BufferSize,
		CabinCount:         cfg.CabinArray.CabinCount,
		CabinSizeBytes:     cfg.CabinArray.CabinSizeBytes,
		DBNumber:           cfg.CabinArray.DBNumber,
		StartOffset:        cfg.CabinArray.StartOffset,
	}
	poller := polling.New(pollerCfg, transport)

	cycleCfg := cycle.Config{
		StartPressureDrop:      cfg.Cycle.StartPressureDrop,
		EndPressureRise:        cfg.Cycle.EndPressureRise,
		MinCollectionPoints:    cfg.Cycle.MinCollectionPoints,
		MaxCollectionPoints:    cfg.Cycle.MaxCollectionPoints,
		MaxCollectionDurationS: cfg.Cycle.MaxCollectionDurationS,
		CollectionTimeoutS:     cfg.Cycle.CollectionTimeoutS,
		IdlePressureMin:        cfg.Cycle.IdlePressureMin,
	}
	cycles := cycle.NewManager(cycleCfg)

	model := inference.New()
	if err := model.Load(*modelPath); err != nil {
		logger.Warn("inference model not loaded, running with label=-1 until a valid artifact is supplied",
			"path", *modelPath, "error", err)
	} else {
		logger.Info("inference model loaded", "path", *modelPath, "version", model.Version())
	}

	sender := resultsender.New(resultsender.Config{
		WriteBackDB:     cfg.WriteBack.DBNumber,
		WriteBackOffset: cfg.WriteBack.ByteOffset,
		Scale:           cfg.WriteBack.Scale,
		Base:            cfg.WriteBack.Base,
		FaultDB:         cfg.FaultWrite.DBNumber,
		FaultOffset:     cfg.FaultWrite.ByteOffset,
	}, transport)

	recorder, err := store.Open(cfg.Runtime.Database.Path)
	if err != nil {
		logger.Error("record store open failed", "path", cfg.Runtime.Database.Path, "error", err)
		os.Exit(1)
	}

	reporter := health.NewReporter()

	var pusher *alarm.Pusher
	if cfg.IPC.AlarmPusher.Enabled && len(cfg.IPC.AlarmPusher.Targets) > 0 {
		targets := make([]alarm.Target, 0, len(cfg.IPC.AlarmPusher.Targets))
		for _, t := range cfg.IPC.AlarmPusher.Targets {
			targets = append(targets, alarm.Target{URL: t.URL, TimeoutS: t.TimeoutS, Retries: t.Retries, Secret: t.Secret})
		}
		pusher = alarm.New(targets)
		reporter.RegisterCallback(severityGatedPush(pusher, cfg.IPC.AlarmPusher.MinFaultLevelToPush, logger))
		logger.Info("alarm pusher enabled", "targets", len(targets), "min_level", cfg.IPC.AlarmPusher.MinFaultLevelToPush)
	}

	var bus *eventbus.Bus
	if cfg.IPC.EventBus.Enabled {
		bus = eventbus.New(cfg.IPC.EventBus.Addr)
		reporter.RegisterCallback(func(event health.Event) {
			go bus.PublishFault(eventbus.FaultEvent{
				Mnemonic: event.Code.Mnemonic,
				Message:  event.Message,
				Action:   "raised",
			})
		})
		logger.Info("event bus enabled", "addr", cfg.IPC.EventBus.Addr)
	} else {
		bus = eventbus.New("")
	}

	metrics := obsmetrics.New()

	featureMode := features.Mode7D
	if cfg.Runtime.FeatureMode == "6d" {
		featureMode = features.Mode6D
	}

	loopCfg := pipeline.Config{
		LoopInterval: time.Duration(cfg.Runtime.LoopInterval) * time.Millisecond,
		FeatureMode:  featureMode,
		Threshold:    cfg.Runtime.Threshold,
		PushOnLeak:   cfg.IPC.AlarmPusher.PushOnLeak,
	}
	loop := pipeline.New(loopCfg, poller, cycles, model, sender, recorder, reporter, pusher, bus, metrics)

	watcher := config.NewWatcher(*configPath, cfg)
	if err := watcher.Start(); err != nil {
		logger.Warn("config hot-reload watcher failed to start, continuing without it", "error", err)
	} else {
		go watchLiveConfig(watcher, loop, logger)
	}

	checker := health.NewChecker(health.Deps{
		PLCConnected:      poller.PLCConnected,
		ModelLoaded:       model.Loaded,
		LastInferenceMS:   loop.LastInferenceMS,
		PollerAlive:       poller.IsRunning,
		StuckCabinIndices: loop.StuckCabinIndices,
		DBSizeMB:          recorder.GetDBSizeMB,
		DiskPath:          dbDir(cfg.Runtime.Database.Path),
	}, health.Thresholds{
		CheckIntervalS:    cfg.Health.CheckIntervalS,
		MaxLatencyMS:      cfg.Health.MaxLatencyMS,
		DiskFreeMinMB:     cfg.Health.DiskFreeMinMB,
		MaxStuckDurationS: cfg.Health.MaxStuckDurationS,
		MaxStoreSizeMB:    cfg.Health.MaxStoreSizeMB,
	}, reporter)

	var apiServer *httpapi.Server
	if cfg.IPC.APIServer.Enabled {
		apiServer = httpapi.New(recorder, checker, loop, cfg.IPC.APIServer.APIKey, cfg.IPC.APIServer.Host, cfg.IPC.APIServer.Port)
	}

	metricsServer := &http.Server{Addr: *metricsAddr, Handler: promhttp.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	if err := transport.Connect(); err != nil {
		logger.Warn("initial PLC connect failed, polling will retry on its own schedule", "error", err)
	}
	if err := poller.Start(); err != nil {
		logger.Error("polling engine failed to start", "error", err)
		os.Exit(1)
	}
	checker.Start()
	loop.Start()
	if apiServer != nil {
		if err := apiServer.Start(); err != nil {
			logger.Error("http api failed to start", "error", err)
		} else {
			logger.Info("http api listening", "host", cfg.IPC.APIServer.Host, "port", cfg.IPC.APIServer.Port)
		}
	}

	logger.Info("ldpjd started", "mode", *mode)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info("shutdown signal received, stopping cooperative workers")

	// Shutdown is a two-step cooperative stop followed by the store close:
	// processing loop, then health checker, then polling engine, then the
	// record store.
	watcher.Stop()
	loop.Stop()
	checker.Stop()
	poller.Stop()
	if err := bus.Close(); err != nil {
		logger.Warn("event bus close failed", "error", err)
	}

	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = apiServer.Stop(shutdownCtx)
		cancel()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = metricsServer.Shutdown(shutdownCtx)
	cancel()

	if err := recorder.Close(); err != nil {
		logger.Error("record store close failed", "error", err)
	}

	logger.Info("ldpjd stopped")
}

// buildTransport selects the PLC transport for --mode. Mode "s7" requires a
// concrete Dialer speaking the real S7 wire protocol; that driver is an
// external transport library concern this module does not implement, so s7
// mode logs the gap and falls back to the mock transport rather than
// starting with a Dialer that can never connect.
func buildTransport(mode string, cfg config.Config, logger *slog.Logger) plc.Transport {
	plcCfg := plc.Config{
		IP:                 cfg.Connection.IP,
		Rack:               cfg.Connection.Rack,
		Slot:               cfg.Connection.Slot,
		ReconnectIntervalS: cfg.Connection.ReconnectIntervalS,
		DBNumber:           cfg.CabinArray.DBNumber,
		StartOffset:        cfg.CabinArray.StartOffset,
		CabinCount:         cfg.CabinArray.CabinCount,
		CabinSizeBytes:     cfg.CabinArray.CabinSizeBytes,
	}

	switch mode {
	case "s7":
		logger.Warn("mode=s7 requested but no S7 Dialer is wired into this build; " +
			"supply one through a separate build that implements plc.Dialer, falling back to mock")
		return plc.NewMockTransport(plcCfg)
	case "mock":
		return plc.NewMockTransport(plcCfg)
	default:
		logger.Warn("unrecognized --mode, defaulting to mock", "mode", mode)
		return plc.NewMockTransport(plcCfg)
	}
}

// severityGatedPush wraps a Pusher so only faults at or above minLevel are
// forwarded, matching ipc.alarm_pusher.min_fault_level_to_push.
func severityGatedPush(pusher *alarm.Pusher, minLevel string, logger *slog.Logger) health.Callback {
	threshold := severityFromString(minLevel)
	return func(event health.Event) {
		if event.Code.Severity < threshold {
			return
		}
		pusher.Push(event.Code.Mnemonic, event.Message, event.Code.Severity.String())
	}
}

func severityFromString(level string) health.Severity {
	switch level {
	case "INFO":
		return health.SeverityInfo
	case "ERROR":
		return health.SeverityError
	case "CRITICAL":
		return health.SeverityCritical
	default:
		return health.SeverityWarning
	}
}

// watchLiveConfig applies threshold and loop-interval changes reloaded by
// watcher to the running loop. Connection, cabin-array, and database
// settings are never touched here; the watcher itself never reloads them.
func watchLiveConfig(watcher *config.Watcher, loop *pipeline.Loop, logger *slog.Logger) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	lastThreshold := loop.Threshold()
	lastInterval := loop.LoopInterval()

	for range ticker.C {
		live := watcher.Current()
		if live.Runtime.Threshold != lastThreshold {
			loop.SetThreshold(live.Runtime.Threshold)
			lastThreshold = live.Runtime.Threshold
			logger.Info("live threshold applied", "threshold", lastThreshold)
		}
		newInterval := time.Duration(live.Runtime.LoopInterval) * time.Millisecond
		if newInterval != lastInterval && newInterval > 0 {
			loop.SetLoopInterval(newInterval)
			lastInterval = newInterval
			logger.Info("live loop interval applied", "interval_ms", live.Runtime.LoopInterval)
		}
	}
}

func dbDir(path string) string {
	dir := "."
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			dir = path[:i]
			break
		}
	}
	return dir
}
