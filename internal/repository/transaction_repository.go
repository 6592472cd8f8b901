package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stickerai/credits-service/internal/domain"
	"github.com/stickerai/credits-service/pkg/logger"
)

// InMemoryTransactionRepository реализация журнала транзакций в памяти
type InMemoryTransactionRepository struct {
	transactions []domain.Transaction
	nextSequence int64
	mutex        sync.RWMutex
	log          *logger.Logger
}

// NewInMemoryTransactionRepository создает новый журнал транзакций в памяти
func NewInMemoryTransactionRepository(log *logger.Logger) *InMemoryTransactionRepository {
	return &InMemoryTransactionRepository{
		nextSequence: 1,
		log:          log,
	}
}

// Append добавляет транзакцию в журнал и присваивает ей порядковый номер коммита
func (r *InMemoryTransactionRepository) Append(ctx context.Context, txn domain.Transaction) (domain.Transaction, error) {
	if txn.Amount <= 0 {
		return domain.Transaction{}, ErrInvalidData
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	txn.Sequence = r.nextSequence
	r.nextSequence++

	r.transactions = append(r.transactions, txn)

	return txn, nil
}

// GetByUserID возвращает транзакции пользователя от новых к старым
// (в порядке коммита)
func (r *InMemoryTransactionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []domain.Transaction
	for _, txn := range r.transactions {
		if txn.UserID == userID {
			result = append(result, txn)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Sequence > result[j].Sequence
	})

	return result, nil
}

// SumByKind возвращает сумму транзакций пользователя указанного типа
func (r *InMemoryTransactionRepository) SumByKind(ctx context.Context, userID uuid.UUID, kind domain.TransactionKind) (int64, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var total int64
	for _, txn := range r.transactions {
		if txn.UserID == userID && txn.Kind == kind {
			total += txn.Amount
		}
	}

	return total, nil
}
