package operator

import (
	"github.com/prometheus/client_golang/prometheus"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	metricsNamespace = "kubeop"
	metricsSubsystem = "operator"
)

// Drop reasons.
const (
	reasonFiltered   = "filtered"
	reasonNoParent   = "no_parent"
	reasonScheduling = "scheduling_error"
	reasonStopping   = "stopping"
)

var (
	scheduledTotal = mustRegisterCounterVec("scheduled_total",
		"Number of items enqueued, by event source.", "operator", "source")

	droppedTotal = mustRegisterCounterVec("dropped_total",
		"Number of events dropped without being enqueued or reconciled.", "operator", "reason")

	childrenCreatedTotal = mustRegisterCounterVec("children_created_total",
		"Number of children created.", "operator")

	patchesTotal = mustRegisterCounterVec("feedback_patches_total",
		"Number of feedback patches applied, by target.", "operator", "target")

	reconcileErrorsTotal = mustRegisterCounterVec("reconcile_errors_total",
		"Number of reconciliation steps that failed or panicked.", "operator")

	reconcileDuration = mustRegisterHistogramVec("reconcile_duration_seconds",
		"Duration of reconciliation steps.", prometheus.DefBuckets, "operator")
)

// mustRegisterCounterVec creates a counter vector and registers it with the
// controller-runtime registry. Must be called from package initialisation.
func mustRegisterCounterVec(name, help string, labelNames ...string) *prometheus.CounterVec {
	m := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      name,
		Help:      help,
	}, labelNames)
	ctrlmetrics.Registry.MustRegister(m)
	return m
}

func mustRegisterHistogramVec(name, help string, buckets []float64, labelNames ...string) *prometheus.HistogramVec {
	m := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labelNames)
	ctrlmetrics.Registry.MustRegister(m)
	return m
}
