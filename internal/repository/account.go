package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stickerai/credits-service/internal/domain"
)

// AccountStore интерфейс каталога пользователей.
// Ledger является единственным писателем баланса.
type AccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Account, error)
	Create(ctx context.Context, account domain.Account) (domain.Account, error)
	SetBalance(ctx context.Context, id uuid.UUID, balance int64) error
	UpdateSubscription(ctx context.Context, id uuid.UUID, tier domain.SubscriptionTier, expiry *time.Time) error
}
