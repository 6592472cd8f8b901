package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"

	"github.com/stickerai/credits-service/internal/domain"
	"github.com/stickerai/credits-service/pkg/logger"
)

const (
	TopicTransactionCreated   = "credits.transaction.created"
	TopicPurchaseCompleted    = "credits.purchase.completed"
	TopicPurchaseRefunded     = "credits.purchase.refunded"
	TopicSubscriptionCreated  = "credits.subscription.created"
	TopicSubscriptionRenewed  = "credits.subscription.renewed"
	TopicSubscriptionCanceled = "credits.subscription.canceled"
	TopicSubscriptionExpired  = "credits.subscription.expired"
)

// TransactionEvent представляет событие леджера для Kafka
type TransactionEvent struct {
	ID          string                 `json:"id"`
	UserID      string                 `json:"user_id"`
	Kind        domain.TransactionKind `json:"kind"`
	Amount      int64                  `json:"amount"`
	NewBalance  int64                  `json:"new_balance"`
	Description string                 `json:"description,omitempty"`
	Sequence    int64                  `json:"sequence"`
	Timestamp   time.Time              `json:"timestamp"`
}

// PurchaseEvent представляет событие покупки для Kafka
type PurchaseEvent struct {
	UserID                string          `json:"user_id"`
	ProductID             string          `json:"product_id"`
	ExternalTransactionID string          `json:"external_transaction_id"`
	Platform              domain.Platform `json:"platform"`
	Credits               int64           `json:"credits"`
	Refunded              bool            `json:"refunded"`
	Timestamp             time.Time       `json:"timestamp"`
}

// SubscriptionEvent представляет событие жизненного цикла подписки для Kafka
type SubscriptionEvent struct {
	ID        string                    `json:"id"`
	UserID    string                    `json:"user_id"`
	PlanID    string                    `json:"plan_id"`
	Status    domain.SubscriptionStatus `json:"status"`
	StartDate time.Time                 `json:"start_date"`
	EndDate   time.Time                 `json:"end_date"`
	AutoRenew bool                      `json:"auto_renew"`
	Timestamp time.Time                 `json:"timestamp"`
}

// CreditProducer интерфейс для отправки событий кредитной системы
type CreditProducer interface {
	PublishTransactionCreated(ctx context.Context, txn domain.Transaction, newBalance int64) error
	PublishPurchaseCompleted(ctx context.Context, record domain.PurchaseRecord, credits int64) error
	PublishPurchaseRefunded(ctx context.Context, record domain.PurchaseRecord, credits int64) error
	PublishSubscriptionCreated(ctx context.Context, sub domain.Subscription) error
	PublishSubscriptionRenewed(ctx context.Context, sub domain.Subscription) error
	PublishSubscriptionCanceled(ctx context.Context, sub domain.Subscription) error
	PublishSubscriptionExpired(ctx context.Context, sub domain.Subscription) error
	Close() error
}

type kafkaCreditProducer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewKafkaCreditProducer создает новый продюсер событий кредитной системы
func NewKafkaCreditProducer(producer sarama.SyncProducer, log *logger.Logger) CreditProducer {
	return &kafkaCreditProducer{
		producer: producer,
		log:      log,
	}
}

// PublishTransactionCreated публикует событие о записи в леджере
func (p *kafkaCreditProducer) PublishTransactionCreated(ctx context.Context, txn domain.Transaction, newBalance int64) error {
	event := TransactionEvent{
		ID:          txn.ID.String(),
		UserID:      txn.UserID.String(),
		Kind:        txn.Kind,
		Amount:      txn.Amount,
		NewBalance:  newBalance,
		Description: txn.Description,
		Sequence:    txn.Sequence,
		Timestamp:   time.Now(),
	}
	return p.publishEvent(ctx, TopicTransactionCreated, txn.UserID.String(), event)
}

// PublishPurchaseCompleted публикует событие о зачисленной покупке
func (p *kafkaCreditProducer) PublishPurchaseCompleted(ctx context.Context, record domain.PurchaseRecord, credits int64) error {
	return p.publishEvent(ctx, TopicPurchaseCompleted, record.ExternalTransactionID, purchaseEvent(record, credits))
}

// PublishPurchaseRefunded публикует событие о возврате покупки
func (p *kafkaCreditProducer) PublishPurchaseRefunded(ctx context.Context, record domain.PurchaseRecord, credits int64) error {
	return p.publishEvent(ctx, TopicPurchaseRefunded, record.ExternalTransactionID, purchaseEvent(record, credits))
}

// PublishSubscriptionCreated публикует событие о создании подписки
func (p *kafkaCreditProducer) PublishSubscriptionCreated(ctx context.Context, sub domain.Subscription) error {
	return p.publishEvent(ctx, TopicSubscriptionCreated, sub.UserID.String(), subscriptionEvent(sub))
}

// PublishSubscriptionRenewed публикует событие о продлении подписки
func (p *kafkaCreditProducer) PublishSubscriptionRenewed(ctx context.Context, sub domain.Subscription) error {
	return p.publishEvent(ctx, TopicSubscriptionRenewed, sub.UserID.String(), subscriptionEvent(sub))
}

// PublishSubscriptionCanceled публикует событие об отмене подписки
func (p *kafkaCreditProducer) PublishSubscriptionCanceled(ctx context.Context, sub domain.Subscription) error {
	return p.publishEvent(ctx, TopicSubscriptionCanceled, sub.UserID.String(), subscriptionEvent(sub))
}

// PublishSubscriptionExpired публикует событие об истечении подписки
func (p *kafkaCreditProducer) PublishSubscriptionExpired(ctx context.Context, sub domain.Subscription) error {
	return p.publishEvent(ctx, TopicSubscriptionExpired, sub.UserID.String(), subscriptionEvent(sub))
}

func purchaseEvent(record domain.PurchaseRecord, credits int64) PurchaseEvent {
	return PurchaseEvent{
		UserID:                record.UserID.String(),
		ProductID:             record.ProductID,
		ExternalTransactionID: record.ExternalTransactionID,
		Platform:              record.Platform,
		Credits:               credits,
		Refunded:              record.Refunded,
		Timestamp:             time.Now(),
	}
}

func subscriptionEvent(sub domain.Subscription) SubscriptionEvent {
	return SubscriptionEvent{
		ID:        sub.ID.String(),
		UserID:    sub.UserID.String(),
		PlanID:    sub.PlanID,
		Status:    sub.Status,
		StartDate: sub.StartDate,
		EndDate:   sub.EndDate,
		AutoRenew: sub.AutoRenew,
		Timestamp: time.Now(),
	}
}

// publishEvent сериализует событие и отправляет его в Kafka с повторами.
// Ключ сообщения сохраняет порядок событий одного пользователя в партиции.
func (p *kafkaCreditProducer) publishEvent(ctx context.Context, topic string, key string, event any) error {
	messageValue, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal credit event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(messageValue),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event_type"),
				Value: []byte(topic),
			},
		},
		Timestamp: time.Now(),
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	var partition int32
	var offset int64
	err = backoff.Retry(func() error {
		var sendErr error
		partition, offset, sendErr = p.producer.SendMessage(message)
		return sendErr
	}, policy)
	if err != nil {
		return fmt.Errorf("failed to publish credit event: %w", err)
	}

	p.log.Info("Published credit event to topic %s: partition=%d offset=%d",
		topic, partition, offset)

	return nil
}

// Close закрывает продюсер
func (p *kafkaCreditProducer) Close() error {
	return p.producer.Close()
}
