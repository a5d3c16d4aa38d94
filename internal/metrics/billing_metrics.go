package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lumoapp/billing-service/pkg/logger"
)

// BillingMetrics интерфейс для метрик синхронизации подписок
type BillingMetrics interface {
	IncWebhookEvent(eventType, outcome string)
	IncEnforcementCancellation(outcome string)
	IncLedgerRecordCreated(currency string)
	ObserveLedgerSweepRemoved(count int)
	IncSubscriptionCreated(planType string)
	IncSubscriptionCancelled(planType string)
}

type billingMetrics struct {
	log                      *logger.Logger
	webhookEvents            *prometheus.CounterVec
	enforcementCancellations *prometheus.CounterVec
	ledgerRecordsCreated     *prometheus.CounterVec
	ledgerSweepRemoved       prometheus.Gauge
	subscriptionsCreated     *prometheus.CounterVec
	subscriptionsCancelled   *prometheus.CounterVec
}

// NewBillingMetrics создает новые метрики синхронизации подписок
func NewBillingMetrics(registry *prometheus.Registry, log *logger.Logger) BillingMetrics {
	webhookEvents := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "The total number of processed webhook events by type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	enforcementCancellations := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "enforcement_cancellations_total",
			Help: "The total number of single-active-subscription enforcement cancellations",
		},
		[]string{"outcome"},
	)

	ledgerRecordsCreated := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_records_created_total",
			Help: "The total number of created financial ledger records",
		},
		[]string{"currency"},
	)

	ledgerSweepRemoved := promauto.With(registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_sweep_removed",
			Help: "The number of ledger records removed by the last retention sweep",
		},
	)

	subscriptionsCreated := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_created_total",
			Help: "The total number of created subscriptions",
		},
		[]string{"plan_type"},
	)

	subscriptionsCancelled := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_cancelled_total",
			Help: "The total number of cancelled subscriptions",
		},
		[]string{"plan_type"},
	)

	return &billingMetrics{
		log:                      log,
		webhookEvents:            webhookEvents,
		enforcementCancellations: enforcementCancellations,
		ledgerRecordsCreated:     ledgerRecordsCreated,
		ledgerSweepRemoved:       ledgerSweepRemoved,
		subscriptionsCreated:     subscriptionsCreated,
		subscriptionsCancelled:   subscriptionsCancelled,
	}
}

// IncWebhookEvent увеличивает счетчик обработанных событий вебхука
func (m *billingMetrics) IncWebhookEvent(eventType, outcome string) {
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

// IncEnforcementCancellation увеличивает счетчик отмен при применении политики
func (m *billingMetrics) IncEnforcementCancellation(outcome string) {
	m.enforcementCancellations.WithLabelValues(outcome).Inc()
}

// IncLedgerRecordCreated увеличивает счетчик созданных финансовых записей
func (m *billingMetrics) IncLedgerRecordCreated(currency string) {
	m.ledgerRecordsCreated.WithLabelValues(currency).Inc()
}

// ObserveLedgerSweepRemoved записывает количество удаленных записей
func (m *billingMetrics) ObserveLedgerSweepRemoved(count int) {
	m.ledgerSweepRemoved.Set(float64(count))
}

// IncSubscriptionCreated увеличивает счетчик созданных подписок
func (m *billingMetrics) IncSubscriptionCreated(planType string) {
	m.subscriptionsCreated.WithLabelValues(planType).Inc()
}

// IncSubscriptionCancelled увеличивает счетчик отмененных подписок
func (m *billingMetrics) IncSubscriptionCancelled(planType string) {
	m.subscriptionsCancelled.WithLabelValues(planType).Inc()
}
