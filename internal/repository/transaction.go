package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/stickerai/credits-service/internal/domain"
)

// TransactionStore интерфейс журнала транзакций (только добавление).
// Sequence присваивается хранилищем в порядке коммита.
type TransactionStore interface {
	Append(ctx context.Context, txn domain.Transaction) (domain.Transaction, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error)
	SumByKind(ctx context.Context, userID uuid.UUID, kind domain.TransactionKind) (int64, error)
}
