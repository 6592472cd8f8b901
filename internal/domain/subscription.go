package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus статус подписки
type SubscriptionStatus string

const (
	SubscriptionStatusPending  SubscriptionStatus = "pending"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
)

// Subscription представляет собой подписку пользователя.
// Переходы статусов: pending -> active -> {canceled, expired};
// canceled -> expired по окончании оплаченного периода.
// Из expired возврата нет, создается новая подписка.
type Subscription struct {
	ID                   uuid.UUID          `json:"id"`
	UserID               uuid.UUID          `json:"user_id"`
	PlanID               string             `json:"plan_id"`
	Status               SubscriptionStatus `json:"status"`
	StartDate            time.Time          `json:"start_date"`
	EndDate              time.Time          `json:"end_date"`
	AutoRenew            bool               `json:"auto_renew"`
	CanceledAt           *time.Time         `json:"canceled_at,omitempty"`
	CancelReason         string             `json:"cancel_reason,omitempty"`
	LastPaymentAt        *time.Time         `json:"last_payment_at,omitempty"`
	NextPaymentAt        *time.Time         `json:"next_payment_at,omitempty"`
	PaymentTransactionID string             `json:"payment_transaction_id,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// IsLive сообщает, дает ли подписка доступ в данный момент:
// активна либо отменена, но оплаченный период еще не истек (grace period).
// Дата авторитетна, статус вспомогателен.
func (s Subscription) IsLive(now time.Time) bool {
	switch s.Status {
	case SubscriptionStatusActive:
		return true
	case SubscriptionStatusCanceled:
		return s.EndDate.After(now)
	default:
		return false
	}
}

// DaysRemaining возвращает количество оставшихся дней, округленное вверх
func (s Subscription) DaysRemaining(now time.Time) int {
	if !s.EndDate.After(now) {
		return 0
	}
	remaining := s.EndDate.Sub(now)
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// ActiveSubscription живая подписка вместе с оставшимися днями
type ActiveSubscription struct {
	Subscription
	DaysRemaining int `json:"days_remaining"`
}
