package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stickerai/credits-service/internal/domain"
	"github.com/stickerai/credits-service/pkg/logger"
)

// InMemoryAccountRepository реализация каталога пользователей в памяти
type InMemoryAccountRepository struct {
	accounts map[uuid.UUID]domain.Account
	mutex    sync.RWMutex
	log      *logger.Logger
}

// NewInMemoryAccountRepository создает новый репозиторий аккаунтов в памяти
func NewInMemoryAccountRepository(log *logger.Logger) *InMemoryAccountRepository {
	return &InMemoryAccountRepository{
		accounts: make(map[uuid.UUID]domain.Account),
		log:      log,
	}
}

// GetByID возвращает аккаунт по ID
func (r *InMemoryAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	account, exists := r.accounts[id]
	if !exists {
		return domain.Account{}, ErrNotFound
	}

	return account, nil
}

// Create создает новый аккаунт
func (r *InMemoryAccountRepository) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.accounts[account.ID]; exists {
		return domain.Account{}, ErrDuplicate
	}

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	if account.SubscriptionTier == "" {
		account.SubscriptionTier = domain.TierFree
	}

	r.accounts[account.ID] = account

	return account, nil
}

// SetBalance записывает новый баланс кредитов аккаунта
func (r *InMemoryAccountRepository) SetBalance(ctx context.Context, id uuid.UUID, balance int64) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return ErrNotFound
	}

	account.Credits = balance
	account.UpdatedAt = time.Now()
	r.accounts[id] = account

	return nil
}

// UpdateSubscription обновляет поля подписки аккаунта
func (r *InMemoryAccountRepository) UpdateSubscription(ctx context.Context, id uuid.UUID, tier domain.SubscriptionTier, expiry *time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return ErrNotFound
	}

	account.SubscriptionTier = tier
	account.SubscriptionExpiry = expiry
	account.UpdatedAt = time.Now()
	r.accounts[id] = account

	return nil
}
