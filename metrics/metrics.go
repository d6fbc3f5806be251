package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()

	// PositionsTotal counts position updates by outcome: accepted, invalid, throttled, dropped
	PositionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "minefield_positions_total", Help: "Observer position updates by outcome."},
		[]string{"outcome"},
	)
	// PlansTotal counts reconciliation plans handed to the provider
	PlansTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "minefield_reconciliation_plans_total", Help: "Reconciliation plans issued."},
	)
	// ReconciliationsTotal counts plan results by status: success, failed, timeout, stale
	ReconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "minefield_reconciliations_total", Help: "Reconciliation results by status."},
		[]string{"status"},
	)
	// GeofenceCalls counts provider calls by operation
	GeofenceCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "minefield_geofence_calls_total", Help: "Geofence provider calls by operation."},
		[]string{"op"},
	)
	// ReconcileDuration records provider execution time in seconds
	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "minefield_reconcile_duration_seconds", Help: "Geofence reconciliation duration in seconds.", Buckets: prometheus.DefBuckets},
	)
	// ActiveGeofences is the size of the current active set
	ActiveGeofences = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "minefield_active_geofences", Help: "Fields in the active geofence set."},
	)
	// AlarmsTotal counts alarms by publish status
	AlarmsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "minefield_alarms_total", Help: "Minefield entry alarms by publish status."},
		[]string{"status"},
	)
)

var regOnce sync.Once

// RegisterDefault registers the collectors on Registry once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(PositionsTotal)
		Registry.MustRegister(PlansTotal)
		Registry.MustRegister(ReconciliationsTotal)
		Registry.MustRegister(GeofenceCalls)
		Registry.MustRegister(ReconcileDuration)
		Registry.MustRegister(ActiveGeofences)
		Registry.MustRegister(AlarmsTotal)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
