// Package metrics define las métricas Prometheus de los componentes de dominio.
// Vive aparte del paquete http para evitar ciclos de imports (jwt, media, search).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	JWKSRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jwks_refresh_total",
		Help: "Refrescos del JWKS del issuer por resultado",
	}, []string{"result"}) // ok|not_modified|error

	MediaGrantsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "media_operations_total",
		Help: "Operaciones del gateway de media por kind y resultado",
	}, []string{"op", "kind", "result"})

	SearchSyncTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "search_sync_records_total",
		Help: "Registros del outbox procesados por resultado",
	}, []string{"result"}) // done|retry|poisoned

	SearchBatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "search_sync_batch_duration_seconds",
		Help:    "Latencia de los envíos batch al servicio de búsqueda",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	SearchBatchSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "search_sync_batch_size",
		Help:    "Registros por batch enviado",
		Buckets: []float64{1, 5, 10, 25, 50, 100},
	})

	OutboxPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "search_outbox_pending",
		Help: "Filas pendientes en el outbox de búsqueda",
	})

	OutboxPoisoned = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "search_outbox_poisoned",
		Help: "Filas poisoned en el outbox de búsqueda",
	})

	CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "Estado del circuit breaker (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})

	SessionEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_events_total",
		Help: "Eventos de sesión (login, refresh, reuse, logout)",
	}, []string{"event"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		JWKSRefreshTotal,
		MediaGrantsTotal,
		SearchSyncTotal,
		SearchBatchDuration,
		SearchBatchSize,
		OutboxPending,
		OutboxPoisoned,
		CircuitBreakerState,
		SessionEventsTotal,
	}
}

// Register registra las métricas de dominio en el registry indicado (o el default si es nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

// ObserveMedia adapta MediaGrantsTotal a la firma de media.Options.Observe.
func ObserveMedia(op, kind, result string) {
	MediaGrantsTotal.WithLabelValues(op, kind, result).Inc()
}

// ObserveJWKS adapta JWKSRefreshTotal a jwt.JWKSConfig.OnRefresh.
func ObserveJWKS(result string) {
	JWKSRefreshTotal.WithLabelValues(result).Inc()
}
