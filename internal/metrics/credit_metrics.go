package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stickerai/credits-service/pkg/logger"
)

// CreditMetrics интерфейс для метрик кредитных операций
type CreditMetrics interface {
	IncTransaction(kind string)
	ObserveTransactionAmount(kind string, amount float64)
	IncPurchase(productID string, status string)
	IncDuplicateReceipt(platform string)
	IncSubscriptionEvent(event string, planID string)
}

type creditMetrics struct {
	log                *logger.Logger
	transactions       *prometheus.CounterVec
	transactionAmounts *prometheus.HistogramVec
	purchases          *prometheus.CounterVec
	duplicateReceipts  *prometheus.CounterVec
	subscriptionEvents *prometheus.CounterVec
}

// NewCreditMetrics создает новые метрики кредитных операций
func NewCreditMetrics(registry *prometheus.Registry, log *logger.Logger) CreditMetrics {
	transactions := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_transactions_total",
			Help: "The total number of ledger transactions by kind",
		},
		[]string{"kind"},
	)

	transactionAmounts := promauto.With(registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "credit_transaction_amount",
			Help:    "Credit transaction amounts distribution",
			Buckets: prometheus.ExponentialBuckets(10, 10, 5), // 10, 100, 1000, 10000, 100000
		},
		[]string{"kind"},
	)

	purchases := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_purchases_total",
			Help: "The total number of purchase attempts by product and outcome",
		},
		[]string{"product_id", "status"},
	)

	duplicateReceipts := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_duplicate_receipts_total",
			Help: "The total number of rejected duplicate store receipts",
		},
		[]string{"platform"},
	)

	subscriptionEvents := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_events_total",
			Help: "The total number of subscription lifecycle events",
		},
		[]string{"event", "plan_id"},
	)

	return &creditMetrics{
		log:                log,
		transactions:       transactions,
		transactionAmounts: transactionAmounts,
		purchases:          purchases,
		duplicateReceipts:  duplicateReceipts,
		subscriptionEvents: subscriptionEvents,
	}
}

// IncTransaction увеличивает счетчик транзакций по типу
func (m *creditMetrics) IncTransaction(kind string) {
	m.transactions.WithLabelValues(kind).Inc()
}

// ObserveTransactionAmount записывает сумму транзакции
func (m *creditMetrics) ObserveTransactionAmount(kind string, amount float64) {
	m.transactionAmounts.WithLabelValues(kind).Observe(amount)
}

// IncPurchase увеличивает счетчик попыток покупок
func (m *creditMetrics) IncPurchase(productID string, status string) {
	m.purchases.WithLabelValues(productID, status).Inc()
}

// IncDuplicateReceipt увеличивает счетчик отклоненных дубликатов чеков
func (m *creditMetrics) IncDuplicateReceipt(platform string) {
	m.duplicateReceipts.WithLabelValues(platform).Inc()
}

// IncSubscriptionEvent увеличивает счетчик событий жизненного цикла подписок
func (m *creditMetrics) IncSubscriptionEvent(event string, planID string) {
	m.subscriptionEvents.WithLabelValues(event, planID).Inc()
}
