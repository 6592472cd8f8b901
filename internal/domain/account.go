package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionTier уровень доступа аккаунта
type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierPremium SubscriptionTier = "premium"
)

// Account представляет собой аккаунт пользователя в каталоге пользователей.
// Баланс кредитов изменяется исключительно через Ledger.
type Account struct {
	ID                 uuid.UUID        `json:"id"`
	Email              string           `json:"email"`
	Credits            int64            `json:"credits"`
	SubscriptionTier   SubscriptionTier `json:"subscription_tier"`
	SubscriptionExpiry *time.Time       `json:"subscription_expiry,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}
