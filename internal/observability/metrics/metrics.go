package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "certengine_"

	// ResultSuccess labels a successful operation.
	ResultSuccess = "success"
	// ResultError labels a failed operation.
	ResultError = "error"
)

var (
	registerOnce sync.Once

	measurementsReceived prometheus.Counter
	measurementsDropped  *prometheus.CounterVec

	certificatesCreated *prometheus.CounterVec
	issuanceLatency     *prometheus.HistogramVec
	registryRequests    *prometheus.CounterVec

	reconcileTotal        *prometheus.CounterVec
	reconcileLatency      *prometheus.HistogramVec
	duplicateConfirmation *prometheus.CounterVec

	outboxDispatchTotal   *prometheus.CounterVec
	outboxDispatchLatency *prometheus.HistogramVec
	outboxDLQTotal        prometheus.Counter

	consumerLag *prometheus.GaugeVec
)

// Init registers engine metrics and a DB-backed outbox backlog gauge.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		measurementsReceived = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "measurements_received_total",
				Help: "Total measurement events consumed",
			},
		)
		measurementsDropped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "measurements_dropped_total",
				Help: "Total ineligible measurements by drop reason",
			},
			[]string{"reason"},
		)

		certificatesCreated = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "certificates_created_total",
				Help: "Total certificate aggregates created by point type",
			},
			[]string{"point_type"},
		)
		issuanceLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "issuance_latency_seconds",
				Help:    "Measurement-to-issuance-request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		registryRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "registry_requests_total",
				Help: "Total outbound registry issuance requests by result",
			},
			[]string{"result"},
		)

		reconcileTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconcile_total",
				Help: "Total registry confirmations processed by type and result",
			},
			[]string{"type", "result"},
		)
		reconcileLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reconcile_latency_seconds",
				Help:    "Registry confirmation processing latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		)
		duplicateConfirmation = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "duplicate_confirmations_total",
				Help: "Registry confirmations absorbed as duplicates by type",
			},
			[]string{"type"},
		)

		outboxDispatchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "outbox_dispatch_total",
				Help: "Outbox dispatch runs by result",
			},
			[]string{"result"},
		)
		outboxDispatchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "outbox_dispatch_latency_seconds",
				Help:    "Outbox dispatch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		outboxDLQTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "outbox_dead_letter_total",
				Help: "Outbox records routed to the dead letter store",
			},
		)

		consumerLag = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "event_consumer_lag_seconds",
				Help: "Consumer processing lag in seconds",
			},
			[]string{"consumer"},
		)

		collectors := []prometheus.Collector{
			measurementsReceived,
			measurementsDropped,
			certificatesCreated,
			issuanceLatency,
			registryRequests,
			reconcileTotal,
			reconcileLatency,
			duplicateConfirmation,
			outboxDispatchTotal,
			outboxDispatchLatency,
			outboxDLQTotal,
			consumerLag,
		}
		if db != nil {
			collectors = append(collectors, prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: metricPrefix + "outbox_pending",
					Help: "Pending outbox records",
				},
				func() float64 {
					var pending int
					row := db.QueryRow(`SELECT COUNT(*) FROM event_outbox WHERE status = 'pending'`)
					if err := row.Scan(&pending); err != nil {
						return 0
					}
					return float64(pending)
				},
			))
		}
		for _, collector := range collectors {
			if err := prometheus.Register(collector); err != nil && logger != nil {
				logger.Printf("metrics register error: %v", err)
			}
		}
	})
}

// MeasurementReceived counts one consumed measurement event.
func MeasurementReceived() {
	if measurementsReceived != nil {
		measurementsReceived.Inc()
	}
}

// MeasurementDropped counts an ineligible measurement by reason.
func MeasurementDropped(reason string) {
	if measurementsDropped != nil {
		measurementsDropped.WithLabelValues(reason).Inc()
	}
}

// CertificateCreated counts a created aggregate.
func CertificateCreated(pointType string) {
	if certificatesCreated != nil {
		certificatesCreated.WithLabelValues(pointType).Inc()
	}
}

// ObserveIssuance records one pipeline pass.
func ObserveIssuance(result string, duration time.Duration) {
	if issuanceLatency != nil {
		issuanceLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// RegistryRequest counts an outbound issuance request.
func RegistryRequest(result string) {
	if registryRequests != nil {
		registryRequests.WithLabelValues(result).Inc()
	}
}

// ObserveReconcile records one registry confirmation.
func ObserveReconcile(confirmation, result string, duration time.Duration) {
	if reconcileTotal != nil {
		reconcileTotal.WithLabelValues(confirmation, result).Inc()
	}
	if reconcileLatency != nil {
		reconcileLatency.WithLabelValues(confirmation).Observe(duration.Seconds())
	}
}

// DuplicateConfirmation counts an absorbed duplicate confirmation.
func DuplicateConfirmation(confirmation string) {
	if duplicateConfirmation != nil {
		duplicateConfirmation.WithLabelValues(confirmation).Inc()
	}
}

// ObserveOutboxDispatch records one dispatch run.
func ObserveOutboxDispatch(result string, duration time.Duration, dlq int) {
	if outboxDispatchTotal != nil {
		outboxDispatchTotal.WithLabelValues(result).Inc()
	}
	if outboxDispatchLatency != nil {
		outboxDispatchLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
	if outboxDLQTotal != nil && dlq > 0 {
		outboxDLQTotal.Add(float64(dlq))
	}
}

// ObserveConsumerLag records the age of the event a consumer just handled.
func ObserveConsumerLag(consumer string, lag time.Duration) {
	if consumerLag != nil {
		consumerLag.WithLabelValues(consumer).Set(lag.Seconds())
	}
}
