package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stickerai/credits-service/internal/domain"
)

// SubscriptionStore интерфейс хранилища подписок.
// История подписок пользователя хранится бессрочно.
type SubscriptionStore interface {
	Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error)
	Update(ctx context.Context, sub domain.Subscription) error
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error)
	// GetLiveByUserID возвращает живую подписку (active либо canceled в grace period)
	GetLiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) (domain.Subscription, error)
	// GetExpiredCandidates возвращает подписки со статусом active или canceled,
	// у которых endDate уже прошла
	GetExpiredCandidates(ctx context.Context, now time.Time) ([]domain.Subscription, error)
}
