package prometheus

import (
	"time"

	"chainpay-reconciler/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements metrics.Collector for Prometheus.
type PrometheusCollector struct {
	ledgerCalls   *prometheus.CounterVec
	ledgerLatency *prometheus.HistogramVec
	circuitState  *prometheus.GaugeVec

	reconcilePasses   *prometheus.CounterVec
	reconcileLatency  prometheus.Histogram
	reconcileOutcomes *prometheus.CounterVec
	stalePending      prometheus.Gauge
	storageErrors     *prometheus.CounterVec

	transfers *prometheus.CounterVec
}

// NewPrometheusCollector creates a collector whose metric names are prefixed by namespace.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		ledgerCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_requests_total",
				Help:      "Ledger REST calls by operation and result",
			},
			[]string{"op", "result"},
		),
		ledgerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ledger_request_duration_seconds",
				Help:      "Ledger REST call latency by operation",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		reconcilePasses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_passes_total",
				Help:      "Reconciliation passes, split by whether the owner lock was held elsewhere",
			},
			[]string{"skipped"},
		),
		reconcileLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reconcile_pass_duration_seconds",
				Help:      "Wall-clock time of a reconciliation pass",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
		reconcileOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_records_total",
				Help:      "Pending records examined by outcome",
			},
			[]string{"outcome"},
		),
		stalePending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stale_pending_records",
				Help:      "Pending records older than the stale threshold, summed over all owners in the last full sweep",
			},
		),
		storageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_write_errors_total",
				Help:      "Failed transaction store writes by operation",
			},
			[]string{"op"},
		),
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_total",
				Help:      "Submitted transfers by result",
			},
			[]string{"result"},
		),
	}
}

// Register registers all metrics with the given registerer.
func (pc *PrometheusCollector) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pc.ledgerCalls,
		pc.ledgerLatency,
		pc.circuitState,
		pc.reconcilePasses,
		pc.reconcileLatency,
		pc.reconcileOutcomes,
		pc.stalePending,
		pc.storageErrors,
		pc.transfers,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func (pc *PrometheusCollector) RecordLedgerCall(op string, success bool, duration time.Duration) {
	pc.ledgerCalls.WithLabelValues(op, result(success)).Inc()
	pc.ledgerLatency.WithLabelValues(op).Observe(duration.Seconds())
}

func (pc *PrometheusCollector) RecordCircuitState(name string, state metrics.CircuitState) {
	pc.circuitState.WithLabelValues(name).Set(float64(state))
}

func (pc *PrometheusCollector) RecordReconcilePass(skipped bool, duration time.Duration) {
	label := "false"
	if skipped {
		label = "true"
	}
	pc.reconcilePasses.WithLabelValues(label).Inc()
	if !skipped {
		pc.reconcileLatency.Observe(duration.Seconds())
	}
}

func (pc *PrometheusCollector) RecordReconcileOutcome(outcome string, n int) {
	if n <= 0 {
		return
	}
	pc.reconcileOutcomes.WithLabelValues(outcome).Add(float64(n))
}

func (pc *PrometheusCollector) RecordStalePending(n int) {
	pc.stalePending.Set(float64(n))
}

func (pc *PrometheusCollector) RecordStorageWriteError(op string) {
	pc.storageErrors.WithLabelValues(op).Inc()
}

func (pc *PrometheusCollector) RecordTransfer(success bool) {
	pc.transfers.WithLabelValues(result(success)).Inc()
}

var _ metrics.Collector = (*PrometheusCollector)(nil)
