package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stickerai/credits-service/internal/domain"
)

// PurchaseStore интерфейс записей о внешних покупках.
// Create возвращает ErrDuplicate при повторном внешнем ID транзакции.
type PurchaseStore interface {
	Create(ctx context.Context, record domain.PurchaseRecord) (domain.PurchaseRecord, error)
	GetByExternalID(ctx context.Context, externalTransactionID string) (domain.PurchaseRecord, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.PurchaseRecord, error)
	MarkRefunded(ctx context.Context, externalTransactionID, reason string, at time.Time) error
}
