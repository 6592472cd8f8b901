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

// InMemoryPurchaseRepository реализация записей о покупках в памяти.
// Ключ карты - внешний ID транзакции, он же ключ дедупликации.
type InMemoryPurchaseRepository struct {
	purchases map[string]domain.PurchaseRecord
	mutex     sync.RWMutex
	log       *logger.Logger
}

// NewInMemoryPurchaseRepository создает новый репозиторий покупок в памяти
func NewInMemoryPurchaseRepository(log *logger.Logger) *InMemoryPurchaseRepository {
	return &InMemoryPurchaseRepository{
		purchases: make(map[string]domain.PurchaseRecord),
		log:       log,
	}
}

// Create добавляет запись о покупке.
// Возвращает ErrDuplicate, если внешний ID транзакции уже встречался.
func (r *InMemoryPurchaseRepository) Create(ctx context.Context, record domain.PurchaseRecord) (domain.PurchaseRecord, error) {
	if record.ExternalTransactionID == "" {
		return domain.PurchaseRecord{}, ErrInvalidData
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.purchases[record.ExternalTransactionID]; exists {
		return domain.PurchaseRecord{}, ErrDuplicate
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	r.purchases[record.ExternalTransactionID] = record

	return record, nil
}

// GetByExternalID возвращает запись о покупке по внешнему ID транзакции
func (r *InMemoryPurchaseRepository) GetByExternalID(ctx context.Context, externalTransactionID string) (domain.PurchaseRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	record, exists := r.purchases[externalTransactionID]
	if !exists {
		return domain.PurchaseRecord{}, ErrNotFound
	}

	return record, nil
}

// GetByUserID возвращает покупки пользователя от новых к старым
func (r *InMemoryPurchaseRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.PurchaseRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []domain.PurchaseRecord
	for _, record := range r.purchases {
		if record.UserID == userID {
			result = append(result, record)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// MarkRefunded переключает флаг refunded записи о покупке
func (r *InMemoryPurchaseRepository) MarkRefunded(ctx context.Context, externalTransactionID, reason string, at time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	record, exists := r.purchases[externalTransactionID]
	if !exists {
		return ErrNotFound
	}

	record.Refunded = true
	record.RefundedAt = &at
	record.RefundReason = reason
	r.purchases[externalTransactionID] = record

	return nil
}
