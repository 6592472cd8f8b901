package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stickerai/credits-service/internal/catalog"
	"github.com/stickerai/credits-service/internal/domain"
	"github.com/stickerai/credits-service/internal/kafka/producer"
	"github.com/stickerai/credits-service/internal/locks"
	"github.com/stickerai/credits-service/internal/metrics"
	"github.com/stickerai/credits-service/internal/receipts"
	"github.com/stickerai/credits-service/internal/repository"
	"github.com/stickerai/credits-service/pkg/logger"
)

// PurchaseService интерфейс сверки покупок из магазинов приложений.
// Каждый чек зачисляется не более одного раза: обработка сериализуется
// по внешнему ID транзакции, а уже обработанные ID отклоняются.
type PurchaseService interface {
	ProcessPurchase(ctx context.Context, userID uuid.UUID, receipt domain.Receipt) (*domain.PurchaseResult, error)
	ProcessRefund(ctx context.Context, userID uuid.UUID, externalTransactionID string, reason string) (*domain.PurchaseResult, error)
	PurchaseHistory(ctx context.Context, userID uuid.UUID) ([]domain.PurchaseRecord, error)
}

type purchaseService struct {
	purchases  repository.PurchaseStore
	ledger     LedgerService
	validators *receipts.Registry
	txnLocks   *locks.KeyedMutex
	events     producer.CreditProducer
	metrics    metrics.CreditMetrics
	log        *logger.Logger
}

// NewPurchaseService создает новый сервис сверки покупок
func NewPurchaseService(
	purchases repository.PurchaseStore,
	ledger LedgerService,
	validators *receipts.Registry,
	events producer.CreditProducer,
	creditMetrics metrics.CreditMetrics,
	log *logger.Logger,
) PurchaseService {
	return &purchaseService{
		purchases:  purchases,
		ledger:     ledger,
		validators: validators,
		txnLocks:   locks.NewKeyedMutex(),
		events:     events,
		metrics:    creditMetrics,
		log:        log,
	}
}

// ProcessPurchase проверяет чек магазина и зачисляет кредиты пакета
func (s *purchaseService) ProcessPurchase(ctx context.Context, userID uuid.UUID, receipt domain.Receipt) (*domain.PurchaseResult, error) {
	s.log.Debug("Processing purchase for user %s: product=%s platform=%s", userID, receipt.ProductID, receipt.Platform)

	validator, ok := s.validators.ForPlatform(receipt.Platform)
	if !ok {
		return nil, domain.NewValidationFailed(string(receipt.Platform), errors.New("unsupported platform"))
	}

	validation, err := validator.Validate(ctx, receipt)
	if err != nil {
		s.log.Error("Receipt validation failed for user %s: %v", userID, err)
		s.incPurchase(receipt.ProductID, "validation_failed")
		return nil, domain.NewValidationFailed(string(receipt.Platform), err)
	}
	if !validation.Valid {
		s.log.Warn("Receipt rejected for user %s: %s", userID, validation.Error)
		s.incPurchase(receipt.ProductID, "invalid_receipt")
		return nil, domain.NewInvalidReceipt(validation.Error)
	}

	pkg, ok := catalog.PackageByID(receipt.ProductID)
	if !ok {
		s.log.Warn("Unknown product in receipt for user %s: %s", userID, receipt.ProductID)
		s.incPurchase(receipt.ProductID, "invalid_product")
		return nil, domain.NewInvalidProduct(receipt.ProductID)
	}

	extID := validation.ExternalTransactionID
	s.txnLocks.Lock(extID)
	defer s.txnLocks.Unlock(extID)

	if _, err := s.purchases.GetByExternalID(ctx, extID); err == nil {
		s.log.Warn("Duplicate receipt for user %s: externalTransactionID=%s", userID, extID)
		s.incDuplicate(receipt)
		return nil, domain.NewDuplicateTransaction(extID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, domain.NewInternal(err, true)
	}

	ledgerResult, err := s.ledger.Add(ctx, userID, pkg.Credits,
		fmt.Sprintf("Purchased %s", pkg.Name), []string{extID})
	if err != nil {
		s.incPurchase(receipt.ProductID, "credit_failed")
		return nil, err
	}

	record := domain.PurchaseRecord{
		ID:                    uuid.New(),
		UserID:                userID,
		ProductID:             receipt.ProductID,
		ExternalTransactionID: extID,
		Platform:              receipt.Platform,
		CreatedAt:             time.Now(),
	}
	created, err := s.purchases.Create(ctx, record)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Другой экземпляр успел записать тот же чек: отменяем свое зачисление
			s.revokeCredits(ctx, userID, pkg.Credits, extID)
			s.incDuplicate(receipt)
			return nil, domain.NewDuplicateTransaction(extID)
		}
		s.log.Error("Failed to record purchase %s for user %s: %v", extID, userID, err)
		s.revokeCredits(ctx, userID, pkg.Credits, extID)
		return nil, domain.NewInternal(err, true)
	}

	s.incPurchase(receipt.ProductID, "completed")
	s.publishPurchase(ctx, created, pkg.Credits, false)

	s.log.Infow("Purchase completed",
		"userID", userID.String(), "productID", receipt.ProductID,
		"externalTransactionID", extID, "credits", pkg.Credits, "newBalance", ledgerResult.NewBalance)

	return &domain.PurchaseResult{
		TransactionID: extID,
		CreditsAdded:  pkg.Credits,
		NewBalance:    ledgerResult.NewBalance,
	}, nil
}

// ProcessRefund отменяет покупку и списывает зачисленные за нее кредиты
func (s *purchaseService) ProcessRefund(ctx context.Context, userID uuid.UUID, externalTransactionID string, reason string) (*domain.PurchaseResult, error) {
	s.log.Debug("Processing refund for user %s: externalTransactionID=%s", userID, externalTransactionID)

	s.txnLocks.Lock(externalTransactionID)
	defer s.txnLocks.Unlock(externalTransactionID)

	record, err := s.purchases.GetByExternalID(ctx, externalTransactionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NewTransactionNotFound(externalTransactionID)
		}
		return nil, domain.NewInternal(err, true)
	}
	if record.UserID != userID {
		s.log.Warn("Refund for transaction %s requested by non-owner %s", externalTransactionID, userID)
		return nil, domain.NewTransactionNotFound(externalTransactionID)
	}
	if record.Refunded {
		return nil, domain.NewAlreadyRefunded(externalTransactionID)
	}

	pkg, ok := catalog.PackageByID(record.ProductID)
	if !ok {
		return nil, domain.NewInvalidProduct(record.ProductID)
	}

	description := fmt.Sprintf("Refund of %s: %s", pkg.Name, reason)
	ledgerResult, err := s.ledger.Deduct(ctx, userID, pkg.Credits, description, []string{externalTransactionID})
	if err != nil {
		// Возврат требует, чтобы зачисленные кредиты еще не были потрачены
		if domain.IsCode(err, domain.CodeInsufficientCredits) {
			validation, vErr := s.ledger.Validate(ctx, userID, pkg.Credits)
			if vErr != nil {
				return nil, vErr
			}
			return nil, domain.NewInsufficientCreditsForRefund(pkg.Credits, validation.CurrentBalance)
		}
		return nil, err
	}

	now := time.Now()
	if err := s.purchases.MarkRefunded(ctx, externalTransactionID, reason, now); err != nil {
		s.log.Error("Failed to mark purchase %s refunded after deduction: %v", externalTransactionID, err)
		return nil, domain.NewInternal(err, false)
	}
	record.Refunded = true
	record.RefundedAt = &now
	record.RefundReason = reason

	s.incPurchase(record.ProductID, "refunded")
	s.publishPurchase(ctx, record, pkg.Credits, true)

	s.log.Infow("Purchase refunded",
		"userID", userID.String(), "externalTransactionID", externalTransactionID,
		"credits", pkg.Credits, "newBalance", ledgerResult.NewBalance)

	return &domain.PurchaseResult{
		TransactionID: externalTransactionID,
		CreditsAdded:  -pkg.Credits,
		NewBalance:    ledgerResult.NewBalance,
	}, nil
}

// PurchaseHistory возвращает покупки пользователя, новые первыми
func (s *purchaseService) PurchaseHistory(ctx context.Context, userID uuid.UUID) ([]domain.PurchaseRecord, error) {
	records, err := s.purchases.GetByUserID(ctx, userID)
	if err != nil {
		return nil, domain.NewInternal(err, true)
	}
	return records, nil
}

// revokeCredits списывает кредиты, зачисленные за чек, который не удалось записать
func (s *purchaseService) revokeCredits(ctx context.Context, userID uuid.UUID, credits int64, extID string) {
	if _, err := s.ledger.Deduct(ctx, userID, credits,
		fmt.Sprintf("Reversal of unrecorded purchase %s", extID), []string{extID}); err != nil {
		s.log.Error("Failed to revoke credits for unrecorded purchase %s: %v", extID, err)
	}
}

func (s *purchaseService) incPurchase(productID, status string) {
	if s.metrics != nil {
		s.metrics.IncPurchase(productID, status)
	}
}

func (s *purchaseService) incDuplicate(receipt domain.Receipt) {
	if s.metrics != nil {
		s.metrics.IncDuplicateReceipt(string(receipt.Platform))
		s.metrics.IncPurchase(receipt.ProductID, "duplicate")
	}
}

// publishPurchase отправляет событие покупки, ошибки доставки не фатальны
func (s *purchaseService) publishPurchase(ctx context.Context, record domain.PurchaseRecord, credits int64, refunded bool) {
	if s.events == nil {
		return
	}
	var err error
	if refunded {
		err = s.events.PublishPurchaseRefunded(ctx, record, credits)
	} else {
		err = s.events.PublishPurchaseCompleted(ctx, record, credits)
	}
	if err != nil {
		s.log.Warnw("Failed to publish purchase event",
			"externalTransactionID", record.ExternalTransactionID, "error", err)
	}
}
