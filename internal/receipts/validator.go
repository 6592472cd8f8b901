package receipts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/stickerai/credits-service/internal/domain"
	"github.com/stickerai/credits-service/pkg/logger"
)

// ValidationResult результат проверки чека магазином
type ValidationResult struct {
	Valid bool
	// ExternalTransactionID канонический ID транзакции, выданный магазином
	ExternalTransactionID string
	// Error детализация отказа (заполняется при Valid=false)
	Error string
}

// Validator интерфейс проверки чеков для одной платформы.
// Реальная криптографическая проверка чеков выполняется магазином;
// здесь она замокана и трактуется как черный ящик.
type Validator interface {
	Validate(ctx context.Context, receipt domain.Receipt) (ValidationResult, error)
}

// Registry реестр валидаторов по платформам
type Registry struct {
	validators map[domain.Platform]Validator
	log        *logger.Logger
}

// NewRegistry создает реестр с моковыми валидаторами App Store и Google Play
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		validators: map[domain.Platform]Validator{
			domain.PlatformIOS:     &mockAppStoreValidator{log: log},
			domain.PlatformAndroid: &mockPlayStoreValidator{log: log},
		},
		log: log,
	}
}

// ForPlatform возвращает валидатор для платформы
func (r *Registry) ForPlatform(platform domain.Platform) (Validator, bool) {
	v, ok := r.validators[platform]
	return v, ok
}

// canonicalTransactionID возвращает канонический ID транзакции.
// Если магазин прислал свой ID, он и есть канонический;
// иначе ID детерминированно выводится из содержимого чека.
func canonicalTransactionID(platform domain.Platform, receipt domain.Receipt) string {
	if receipt.ExternalTransactionID != "" {
		return receipt.ExternalTransactionID
	}
	sum := sha256.Sum256([]byte(receipt.ReceiptData))
	return fmt.Sprintf("%s_%s", platform, hex.EncodeToString(sum[:8]))
}

// mockAppStoreValidator моковая проверка чеков App Store
type mockAppStoreValidator struct {
	log *logger.Logger
}

func (v *mockAppStoreValidator) Validate(ctx context.Context, receipt domain.Receipt) (ValidationResult, error) {
	if receipt.ReceiptData == "" {
		return ValidationResult{Valid: false, Error: "empty receipt data"}, nil
	}
	if receipt.ProductID == "" {
		return ValidationResult{Valid: false, Error: "missing product id"}, nil
	}

	v.log.Debugw("Mock App Store receipt accepted", "productID", receipt.ProductID)
	return ValidationResult{
		Valid:                 true,
		ExternalTransactionID: canonicalTransactionID(domain.PlatformIOS, receipt),
	}, nil
}

// mockPlayStoreValidator моковая проверка чеков Google Play
type mockPlayStoreValidator struct {
	log *logger.Logger
}

func (v *mockPlayStoreValidator) Validate(ctx context.Context, receipt domain.Receipt) (ValidationResult, error) {
	if receipt.ReceiptData == "" {
		return ValidationResult{Valid: false, Error: "empty purchase token"}, nil
	}
	if receipt.ProductID == "" {
		return ValidationResult{Valid: false, Error: "missing product id"}, nil
	}

	v.log.Debugw("Mock Play Store receipt accepted", "productID", receipt.ProductID)
	return ValidationResult{
		Valid:                 true,
		ExternalTransactionID: canonicalTransactionID(domain.PlatformAndroid, receipt),
	}, nil
}
