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

// InMemorySubscriptionRepository реализация хранилища подписок в памяти
type InMemorySubscriptionRepository struct {
	subscriptions map[uuid.UUID]domain.Subscription
	mutex         sync.RWMutex
	log           *logger.Logger
}

// NewInMemorySubscriptionRepository создает новое хранилище подписок в памяти
func NewInMemorySubscriptionRepository(log *logger.Logger) *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{
		subscriptions: make(map[uuid.UUID]domain.Subscription),
		log:           log,
	}
}

// Create создает новую подписку
func (r *InMemorySubscriptionRepository) Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if _, exists := r.subscriptions[sub.ID]; exists {
		return domain.Subscription{}, ErrDuplicate
	}

	now := time.Now()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	r.subscriptions[sub.ID] = sub

	return sub, nil
}

// Update обновляет существующую подписку
func (r *InMemorySubscriptionRepository) Update(ctx context.Context, sub domain.Subscription) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	existing, exists := r.subscriptions[sub.ID]
	if !exists {
		return ErrNotFound
	}

	sub.CreatedAt = existing.CreatedAt
	sub.UpdatedAt = time.Now()

	r.subscriptions[sub.ID] = sub

	return nil
}

// GetByUserID возвращает все подписки пользователя от новых к старым
func (r *InMemorySubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []domain.Subscription
	for _, sub := range r.subscriptions {
		if sub.UserID == userID {
			result = append(result, sub)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// GetLiveByUserID возвращает живую подписку пользователя
func (r *InMemorySubscriptionRepository) GetLiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) (domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, sub := range r.subscriptions {
		if sub.UserID == userID && sub.IsLive(now) {
			return sub, nil
		}
	}

	return domain.Subscription{}, ErrNotFound
}

// GetExpiredCandidates возвращает подписки, чей оплаченный период истек,
// но статус еще не переведен в expired
func (r *InMemorySubscriptionRepository) GetExpiredCandidates(ctx context.Context, now time.Time) ([]domain.Subscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var result []domain.Subscription
	for _, sub := range r.subscriptions {
		switch sub.Status {
		case domain.SubscriptionStatusActive, domain.SubscriptionStatusCanceled:
			if !sub.EndDate.After(now) {
				result = append(result, sub)
			}
		}
	}

	return result, nil
}
