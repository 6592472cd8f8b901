package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/stickerai/credits-service/internal/domain"
	"github.com/stickerai/credits-service/internal/repository"
	"github.com/stickerai/credits-service/pkg/logger"
)

// AccountService интерфейс сервиса аккаунтов
type AccountService interface {
	Register(ctx context.Context, email string) (domain.Account, error)
	GetByID(ctx context.Context, userID uuid.UUID) (domain.Account, error)
}

type accountService struct {
	accounts repository.AccountStore
	log      *logger.Logger
}

// NewAccountService создает новый сервис аккаунтов
func NewAccountService(accounts repository.AccountStore, log *logger.Logger) AccountService {
	return &accountService{
		accounts: accounts,
		log:      log,
	}
}

// Register создает аккаунт бесплатного уровня с нулевым балансом.
// Баланс всегда равен сумме записей леджера, поэтому стартовых кредитов нет.
func (s *accountService) Register(ctx context.Context, email string) (domain.Account, error) {
	s.log.Debug("Registering account: email=%s", email)

	account := domain.Account{
		ID:               uuid.New(),
		Email:            email,
		Credits:          0,
		SubscriptionTier: domain.TierFree,
	}

	created, err := s.accounts.Create(ctx, account)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.Account{}, err
		}
		s.log.Error("Failed to create account for %s: %v", email, err)
		return domain.Account{}, domain.NewInternal(err, true)
	}

	s.log.Infow("Account registered", "userID", created.ID.String(), "email", email)
	return created, nil
}

// GetByID возвращает аккаунт пользователя
func (s *accountService) GetByID(ctx context.Context, userID uuid.UUID) (domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Account{}, domain.NewUserNotFound(userID.String())
		}
		return domain.Account{}, domain.NewInternal(err, true)
	}
	return account, nil
}
