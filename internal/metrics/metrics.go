package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	tradesTotal        *prometheus.CounterVec
	simulationDuration prometheus.Histogram
	gateRejections     *prometheus.CounterVec
	batchesTotal       *prometheus.CounterVec
	batchDuration      prometheus.Histogram
	workersActive      prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{Registry: reg}

	r.tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orb_trades_total",
			Help: "Total number of evaluated trades by terminal state",
		},
		[]string{"state"},
	)
	r.simulationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orb_simulation_duration_seconds",
			Help:    "Time to load and evaluate one session",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)
	r.gateRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orb_cost_gate_rejections_total",
			Help: "Trades rejected by the minimum-viable-risk gate",
		},
		[]string{"symbol"},
	)
	r.batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orb_batches_total",
			Help: "Total number of batch runs",
		},
		[]string{"status"},
	)
	r.batchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orb_batch_duration_seconds",
			Help:    "Batch run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 900},
		},
	)
	r.workersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "orb_workers_active",
			Help: "Number of batch workers currently evaluating a session",
		},
	)

	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.simulationDuration)
	reg.MustRegister(r.gateRejections)
	reg.MustRegister(r.batchesTotal)
	reg.MustRegister(r.batchDuration)
	reg.MustRegister(r.workersActive)

	return r
}

// RecordTrade counts one evaluated trade.
func (r *Registry) RecordTrade(state string) {
	r.tradesTotal.WithLabelValues(state).Inc()
}

// RecordSimulation records the time spent on one session.
func (r *Registry) RecordSimulation(duration float64) {
	r.simulationDuration.Observe(duration)
}

// RecordGateRejection counts a cost-gate rejection.
func (r *Registry) RecordGateRejection(symbol string) {
	r.gateRejections.WithLabelValues(symbol).Inc()
}

// RecordBatch records a batch completion.
func (r *Registry) RecordBatch(status string, duration float64) {
	r.batchesTotal.WithLabelValues(status).Inc()
	r.batchDuration.Observe(duration)
}

// WorkerInc marks a worker busy.
func (r *Registry) WorkerInc() {
	r.workersActive.Inc()
}

// WorkerDec marks a worker idle.
func (r *Registry) WorkerDec() {
	r.workersActive.Dec()
}

// WriteTextfile writes the current metrics in the text exposition format,
// for pickup by a node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}
