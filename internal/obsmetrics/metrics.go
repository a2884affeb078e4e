// Package obsmetrics holds the Prometheus instrumentation for the
// processing loop, poller, and inference path.
package obsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every registered collector for the daemon.
type Metrics struct {
	PollDrainSize      prometheus.Histogram
	InferenceLatency   *prometheus.HistogramVec
	CyclesCompleted    *prometheus.CounterVec
	CyclesFaulted      *prometheus.CounterVec
	ActiveFaults       prometheus.Gauge
	PollErrors         prometheus.Counter
	PollReconnects     prometheus.Counter
	RingBufferLength   prometheus.Gauge
	RecordStoreSizeMB  prometheus.Gauge
}

// New builds and registers the daemon's metrics.
func New() *Metrics {
	return &Metrics{
		PollDrainSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ldpj_poll_drain_size",
			Help:    "Number of PollFrames drained per processing loop iteration",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		InferenceLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ldpj_inference_latency_ms",
				Help:    "Inference latency in milliseconds",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"cavity_id"},
		),
		CyclesCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ldpj_cycles_completed_total",
				Help: "Total completed test cycles, by label",
			},
			[]string{"cavity_id", "label"},
		),
		CyclesFaulted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ldpj_cycles_faulted_total",
				Help: "Total cycles that ended in FAULT (collection timeout)",
			},
			[]string{"cavity_id"},
		),
		ActiveFaults: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ldpj_active_faults",
			Help: "Current number of active faults",
		}),
		PollErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ldpj_poll_errors_total",
			Help: "Total PLC read/connect errors observed by the poller",
		}),
		PollReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ldpj_poll_reconnects_total",
			Help: "Total successful PLC reconnects",
		}),
		RingBufferLength: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ldpj_ring_buffer_length",
			Help: "Current ring buffer occupancy",
		}),
		RecordStoreSizeMB: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ldpj_record_store_size_mb",
			Help: "Current on-disk size of the record store in megabytes",
		}),
	}
}
