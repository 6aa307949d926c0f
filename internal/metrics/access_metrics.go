package metrics

import (
	"strconv"
	"time"

	"github.com/Dhoini/stream-access-service/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы операций для меток
const (
	OutcomeCreated         = "created"
	OutcomeReused          = "reused"
	OutcomeAlreadyEntitled = "already_entitled"
	OutcomeGranted         = "granted"
	OutcomeExisting        = "existing"
	OutcomePending         = "pending"
	OutcomeMismatch        = "mismatch"
	OutcomeTimeout         = "timeout"
	OutcomeFailed          = "failed"
)

// AccessMetrics интерфейс для метрик доступа к трансляциям
type AccessMetrics interface {
	IncAccessDecision(reason string, granted bool)
	IncCheckout(outcome string)
	IncConfirmation(source, outcome string)
	IncTierDegraded()
	ObserveProcessorCall(operation, status string, duration time.Duration)
	IncEventPublished(eventType, status string)
}

type accessMetrics struct {
	log             *logger.Logger
	accessDecisions *prometheus.CounterVec
	checkouts       *prometheus.CounterVec
	confirmations   *prometheus.CounterVec
	tierDegraded    prometheus.Counter
	processorCalls  *prometheus.HistogramVec
	eventsPublished *prometheus.CounterVec
}

// NewAccessMetrics создает метрики сервиса доступа
func NewAccessMetrics(registry prometheus.Registerer, log *logger.Logger) AccessMetrics {
	factory := promauto.With(registry)

	return &accessMetrics{
		log: log,
		accessDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stream_access_decisions_total",
				Help: "The total number of access decisions by reason",
			},
			[]string{"reason", "granted"},
		),
		checkouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stream_checkouts_total",
				Help: "The total number of checkout attempts by outcome",
			},
			[]string{"outcome"},
		),
		confirmations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stream_payment_confirmations_total",
				Help: "The total number of payment confirmations by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		tierDegraded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "stream_tier_lookup_degraded_total",
				Help: "Tier lookups that failed and fell back to the none tier",
			},
		),
		processorCalls: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stream_payment_processor_call_duration_seconds",
				Help:    "Payment processor call latency",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 8), // 50ms .. 6.4s
			},
			[]string{"operation", "status"},
		),
		eventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stream_access_events_published_total",
				Help: "Domain events handed to the broker by type and status",
			},
			[]string{"type", "status"},
		),
	}
}

// IncAccessDecision учитывает решение о доступе
func (m *accessMetrics) IncAccessDecision(reason string, granted bool) {
	m.accessDecisions.WithLabelValues(reason, strconv.FormatBool(granted)).Inc()
}

// IncCheckout учитывает попытку покупки
func (m *accessMetrics) IncCheckout(outcome string) {
	m.checkouts.WithLabelValues(outcome).Inc()
}

// IncConfirmation учитывает подтверждение оплаты (return или webhook)
func (m *accessMetrics) IncConfirmation(source, outcome string) {
	m.confirmations.WithLabelValues(source, outcome).Inc()
}

// IncTierDegraded учитывает деградацию к TierNone
func (m *accessMetrics) IncTierDegraded() {
	m.tierDegraded.Inc()
}

// ObserveProcessorCall записывает длительность вызова платежного провайдера
func (m *accessMetrics) ObserveProcessorCall(operation, status string, duration time.Duration) {
	m.processorCalls.WithLabelValues(operation, status).Observe(duration.Seconds())
}

// IncEventPublished учитывает публикацию доменного события
func (m *accessMetrics) IncEventPublished(eventType, status string) {
	m.eventsPublished.WithLabelValues(eventType, status).Inc()
}
