package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/stickerai/credits-service/internal/domain"
	"github.com/stickerai/credits-service/internal/kafka/producer"
	"github.com/stickerai/credits-service/internal/locks"
	"github.com/stickerai/credits-service/internal/metrics"
	"github.com/stickerai/credits-service/internal/repository"
	"github.com/stickerai/credits-service/pkg/logger"
)

// LedgerService интерфейс сервиса кредитного леджера.
// Все мутирующие операции сериализуются по пользователю:
// баланс пересчитывается только под блокировкой этого пользователя.
type LedgerService interface {
	Validate(ctx context.Context, userID uuid.UUID, amount int64) (domain.ValidationResult, error)
	Deduct(ctx context.Context, userID uuid.UUID, amount int64, description string, relatedIDs []string) (*domain.TransactionResult, error)
	Add(ctx context.Context, userID uuid.UUID, amount int64, description string, relatedIDs []string) (*domain.TransactionResult, error)
	Refund(ctx context.Context, userID uuid.UUID, amount int64, description string, relatedIDs []string) (*domain.TransactionResult, error)
	History(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error)
	Totals(ctx context.Context, userID uuid.UUID, kind domain.TransactionKind) (int64, error)
}

type ledgerService struct {
	accounts     repository.AccountStore
	transactions repository.TransactionStore
	userLocks    *locks.KeyedMutex
	events       producer.CreditProducer
	metrics      metrics.CreditMetrics
	log          *logger.Logger
}

// NewLedgerService создает новый сервис кредитного леджера
func NewLedgerService(
	accounts repository.AccountStore,
	transactions repository.TransactionStore,
	events producer.CreditProducer,
	creditMetrics metrics.CreditMetrics,
	log *logger.Logger,
) LedgerService {
	return &ledgerService{
		accounts:     accounts,
		transactions: transactions,
		userLocks:    locks.NewKeyedMutex(),
		events:       events,
		metrics:      creditMetrics,
		log:          log,
	}
}

// Validate проверяет, хватает ли пользователю кредитов на операцию.
// Никогда не изменяет состояние.
func (s *ledgerService) Validate(ctx context.Context, userID uuid.UUID, amount int64) (domain.ValidationResult, error) {
	s.log.Debug("Validating credits for user %s: amount=%d", userID, amount)

	if amount <= 0 {
		return domain.ValidationResult{}, domain.NewInvalidAmount(amount)
	}

	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ValidationResult{}, domain.NewUserNotFound(userID.String())
		}
		return domain.ValidationResult{}, domain.NewInternal(err, true)
	}

	if account.Credits < amount {
		return domain.ValidationResult{
			Valid:          false,
			CurrentBalance: account.Credits,
			Message:        domain.InsufficientCreditsMessage(amount, account.Credits),
		}, nil
	}

	return domain.ValidationResult{Valid: true, CurrentBalance: account.Credits}, nil
}

// Deduct списывает кредиты за потребление
func (s *ledgerService) Deduct(ctx context.Context, userID uuid.UUID, amount int64, description string, relatedIDs []string) (*domain.TransactionResult, error) {
	return s.apply(ctx, userID, amount, domain.TransactionKindConsumption, description, relatedIDs)
}

// Add зачисляет купленные кредиты
func (s *ledgerService) Add(ctx context.Context, userID uuid.UUID, amount int64, description string, relatedIDs []string) (*domain.TransactionResult, error) {
	return s.apply(ctx, userID, amount, domain.TransactionKindPurchase, description, relatedIDs)
}

// Refund зачисляет кредиты как компенсацию за неудачную операцию
func (s *ledgerService) Refund(ctx context.Context, userID uuid.UUID, amount int64, description string, relatedIDs []string) (*domain.TransactionResult, error) {
	return s.apply(ctx, userID, amount, domain.TransactionKindRefund, description, relatedIDs)
}

// apply атомарно изменяет баланс и дописывает запись в леджер.
// Если запись не удалась, баланс откатывается компенсирующей записью старого значения.
func (s *ledgerService) apply(ctx context.Context, userID uuid.UUID, amount int64, kind domain.TransactionKind, description string, relatedIDs []string) (*domain.TransactionResult, error) {
	if amount <= 0 {
		s.log.Warn("Rejected transaction with non-positive amount: user=%s amount=%d", userID, amount)
		return nil, domain.NewInvalidAmount(amount)
	}

	key := userID.String()
	s.userLocks.Lock(key)
	defer s.userLocks.Unlock(key)

	account, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewUserNotFound(userID.String())
		}
		return nil, domain.NewInternal(err, true)
	}

	txn := domain.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Kind:        kind,
		Amount:      amount,
		Description: description,
		RelatedIDs:  relatedIDs,
		CreatedAt:   time.Now(),
	}

	newBalance := account.Credits + txn.Effect()
	if newBalance < 0 {
		s.log.Warn("Insufficient credits for user %s: required=%d available=%d", userID, amount, account.Credits)
		return nil, domain.NewInsufficientCredits(amount, account.Credits)
	}

	if err := s.accounts.SetBalance(ctx, userID, newBalance); err != nil {
		s.log.Error("Failed to update balance for user %s: %v", userID, err)
		return nil, domain.NewUpdateFailed(err)
	}

	committed, err := s.transactions.Append(ctx, txn)
	if err != nil {
		// Возвращаем старый баланс, чтобы не оставить списание без записи в леджере
		if rbErr := s.accounts.SetBalance(ctx, userID, account.Credits); rbErr != nil {
			s.log.Error("Failed to roll back balance for user %s after append failure: append=%v rollback=%v",
				userID, err, rbErr)
			return nil, domain.NewInternal(err, false)
		}
		s.log.Error("Failed to append transaction for user %s, balance rolled back: %v", userID, err)
		return nil, domain.NewUpdateFailed(err)
	}

	if s.metrics != nil {
		s.metrics.IncTransaction(string(kind))
		s.metrics.ObserveTransactionAmount(string(kind), float64(amount))
	}
	s.publishTransaction(ctx, committed, newBalance)

	s.log.Infow("Ledger transaction committed",
		"userID", userID.String(), "kind", string(kind), "amount", amount, "newBalance", newBalance)

	return &domain.TransactionResult{Transaction: committed, NewBalance: newBalance}, nil
}

// History возвращает записи леджера пользователя, новые первыми
func (s *ledgerService) History(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	s.log.Debug("Getting transaction history for user %s", userID)

	txns, err := s.transactions.GetByUserID(ctx, userID)
	if err != nil {
		return nil, domain.NewInternal(err, true)
	}
	return txns, nil
}

// Totals возвращает сумму по типу транзакций пользователя
func (s *ledgerService) Totals(ctx context.Context, userID uuid.UUID, kind domain.TransactionKind) (int64, error) {
	s.log.Debug("Getting totals for user %s: kind=%s", userID, kind)

	total, err := s.transactions.SumByKind(ctx, userID, kind)
	if err != nil {
		return 0, domain.NewInternal(err, true)
	}
	return total, nil
}

// publishTransaction отправляет событие леджера, ошибки доставки не фатальны
func (s *ledgerService) publishTransaction(ctx context.Context, txn domain.Transaction, newBalance int64) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTransactionCreated(ctx, txn, newBalance); err != nil {
		s.log.Warnw("Failed to publish transaction event", "transactionID", txn.ID.String(), "error", err)
	}
}
