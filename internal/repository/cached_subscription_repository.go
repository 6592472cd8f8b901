package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stickerai/credits-service/internal/domain"
	"github.com/stickerai/credits-service/pkg/logger"
)

// CachedSubscriptionRepository реализует SubscriptionStore с кешированием
// горячего пути GetLiveByUserID. Любая мутация инвалидирует кеш пользователя.
type CachedSubscriptionRepository struct {
	repo  SubscriptionStore
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedSubscriptionRepository создает новое хранилище подписок с кешированием
func NewCachedSubscriptionRepository(
	repo SubscriptionStore,
	cache *RedisCacheRepository,
	log *logger.Logger,
) SubscriptionStore {
	return &CachedSubscriptionRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// Create сохраняет подписку в основном хранилище и инвалидирует кеш пользователя
func (r *CachedSubscriptionRepository) Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	created, err := r.repo.Create(ctx, sub)
	if err != nil {
		return domain.Subscription{}, err
	}

	if err := r.cache.InvalidateLiveSubscription(ctx, created.UserID.String()); err != nil {
		// Ошибка кеша не фатальна, продолжаем выполнение
		r.log.Warnw("Failed to invalidate subscription cache after create", "error", err, "userID", created.UserID)
	}

	return created, nil
}

// Update обновляет подписку и инвалидирует кеш пользователя
func (r *CachedSubscriptionRepository) Update(ctx context.Context, sub domain.Subscription) error {
	if err := r.repo.Update(ctx, sub); err != nil {
		return err
	}

	if err := r.cache.InvalidateLiveSubscription(ctx, sub.UserID.String()); err != nil {
		r.log.Warnw("Failed to invalidate subscription cache after update", "error", err, "userID", sub.UserID)
	}

	return nil
}

// GetByUserID возвращает историю подписок из основного хранилища
func (r *CachedSubscriptionRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Subscription, error) {
	return r.repo.GetByUserID(ctx, userID)
}

// GetLiveByUserID возвращает живую подписку (сначала из кеша, потом из БД)
func (r *CachedSubscriptionRepository) GetLiveByUserID(ctx context.Context, userID uuid.UUID, now time.Time) (domain.Subscription, error) {
	cached, err := r.cache.GetCachedLiveSubscription(ctx, userID.String())
	if err != nil {
		r.log.Warnw("Error getting subscription from cache", "error", err, "userID", userID)
		// Продолжаем выполнение при ошибке кеша
	}

	// Закешированная запись могла перестать быть живой, проверяем по дате
	if cached != nil && cached.IsLive(now) {
		r.log.Debugw("Live subscription found in cache", "userID", userID)
		return *cached, nil
	}

	sub, err := r.repo.GetLiveByUserID(ctx, userID, now)
	if err != nil {
		return domain.Subscription{}, err
	}

	if err := r.cache.CacheLiveSubscription(ctx, sub); err != nil {
		r.log.Warnw("Failed to cache live subscription", "error", err, "userID", userID)
	}

	return sub, nil
}

// GetExpiredCandidates всегда читает основное хранилище (путь воркера)
func (r *CachedSubscriptionRepository) GetExpiredCandidates(ctx context.Context, now time.Time) ([]domain.Subscription, error) {
	return r.repo.GetExpiredCandidates(ctx, now)
}
