// Package metrics expone la instrumentacion Prometheus del servicio: sesiones
// activas, barridos de expiracion y resultados de reconciliacion de pagos.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resultados posibles de una reconciliacion.
const (
	ReconcileCreated       = "created"
	ReconcilePaymentReused = "payment_reused"
	ReconcileClassReused   = "class_reused"
	ReconcileRaceLost      = "race_lost"
	ReconcileFailed        = "failed"
)

var (
	// SessionsActive refleja el tamano actual de la tabla de sesiones.
	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "educamp_sessions_active",
		Help: "Current number of sessions held in memory",
	})

	// SessionsCreated cuenta logins exitosos.
	SessionsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "educamp_sessions_created_total",
		Help: "Total number of sessions created",
	})

	// SessionsRemoved cuenta sesiones eliminadas, por motivo:
	// "expired", "swept", "logout", "deactivated".
	SessionsRemoved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "educamp_sessions_removed_total",
		Help: "Total number of sessions removed",
	}, []string{"reason"})

	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "educamp_session_sweep_duration_seconds",
		Help:    "Duration of a full expired-session sweep",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
	})

	// ReconcileTotal cuenta reconciliaciones por resultado.
	ReconcileTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "educamp_enrollment_reconcile_total",
		Help: "Payment to enrollment reconciliations by outcome",
	}, []string{"outcome"})

	ReconcileLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "educamp_enrollment_reconcile_latency_seconds",
		Help:    "Latency of payment to enrollment reconciliation",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})
)

func init() {
	prometheus.MustRegister(
		SessionsActive,
		SessionsCreated,
		SessionsRemoved,
		SweepDuration,
		ReconcileTotal,
		ReconcileLatency,
	)
}

// Handler devuelve el handler HTTP de Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}
