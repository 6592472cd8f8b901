package domain

import (
	"errors"
	"fmt"
)

// ErrorCode код ошибки ядра, пересекающий границу сервиса
type ErrorCode string

const (
	CodeInvalidAmount                ErrorCode = "INVALID_AMOUNT"
	CodeInsufficientCredits          ErrorCode = "INSUFFICIENT_CREDITS"
	CodeInsufficientCreditsForRefund ErrorCode = "INSUFFICIENT_CREDITS_FOR_REFUND"
	CodeUserNotFound                 ErrorCode = "USER_NOT_FOUND"
	CodeUpdateFailed                 ErrorCode = "UPDATE_FAILED"
	CodeInvalidProduct               ErrorCode = "INVALID_PRODUCT"
	CodeInvalidPlan                  ErrorCode = "INVALID_PLAN"
	CodeDuplicateTransaction         ErrorCode = "DUPLICATE_TRANSACTION"
	CodeInvalidReceipt               ErrorCode = "INVALID_RECEIPT"
	CodeValidationFailed             ErrorCode = "VALIDATION_FAILED"
	CodeTransactionNotFound          ErrorCode = "TRANSACTION_NOT_FOUND"
	CodeAlreadyRefunded              ErrorCode = "ALREADY_REFUNDED"
	CodeExistingSubscription         ErrorCode = "EXISTING_SUBSCRIPTION"
	CodeNoActiveSubscription         ErrorCode = "NO_ACTIVE_SUBSCRIPTION"
	CodeNoSubscriptionToRenew        ErrorCode = "NO_SUBSCRIPTION_TO_RENEW"
	CodeInternal                     ErrorCode = "INTERNAL"
)

// CreditError представляет типизированную ошибку ядра.
// Retryable выставляется только когда частичной мутации заведомо не было.
type CreditError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Err       error
}

// Error реализует интерфейс error
func (e *CreditError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap возвращает оригинальную ошибку
func (e *CreditError) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по коду
func (e *CreditError) Is(target error) bool {
	var other *CreditError
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// CodeOf возвращает код ошибки или CodeInternal для неожиданных ошибок
func CodeOf(err error) ErrorCode {
	var ce *CreditError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeInternal
}

// IsRetryable сообщает, безопасно ли повторить операцию
func IsRetryable(err error) bool {
	var ce *CreditError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// IsCode проверяет, что ошибка несет указанный код
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// NewInvalidAmount создает ошибку неположительной суммы
func NewInvalidAmount(amount int64) *CreditError {
	return &CreditError{
		Code:    CodeInvalidAmount,
		Message: fmt.Sprintf("credit amount must be positive, got %d", amount),
	}
}

// InsufficientCreditsMessage формирует сообщение о недостатке кредитов.
// Текст стабилен: клиенты показывают его пользователю как есть.
func InsufficientCreditsMessage(required, available int64) string {
	return fmt.Sprintf("Insufficient credits. Required: %d, Available: %d", required, available)
}

// NewInsufficientCredits создает ошибку недостатка кредитов
func NewInsufficientCredits(required, available int64) *CreditError {
	return &CreditError{
		Code:    CodeInsufficientCredits,
		Message: InsufficientCreditsMessage(required, available),
	}
}

// NewInsufficientCreditsForRefund создает ошибку недостатка кредитов для возврата
func NewInsufficientCreditsForRefund(required, available int64) *CreditError {
	return &CreditError{
		Code:    CodeInsufficientCreditsForRefund,
		Message: fmt.Sprintf("insufficient credits for refund: required %d, available %d", required, available),
	}
}

// NewUserNotFound создает ошибку отсутствующего аккаунта
func NewUserNotFound(userID string) *CreditError {
	return &CreditError{
		Code:    CodeUserNotFound,
		Message: fmt.Sprintf("user %s not found", userID),
	}
}

// NewUpdateFailed создает retryable ошибку неудачной записи баланса
func NewUpdateFailed(err error) *CreditError {
	return &CreditError{
		Code:      CodeUpdateFailed,
		Message:   "failed to update credit balance",
		Retryable: true,
		Err:       err,
	}
}

// NewInvalidProduct создает ошибку неизвестного продукта
func NewInvalidProduct(productID string) *CreditError {
	return &CreditError{
		Code:    CodeInvalidProduct,
		Message: fmt.Sprintf("unknown product: %s", productID),
	}
}

// NewInvalidPlan создает ошибку неизвестного плана подписки
func NewInvalidPlan(planID string) *CreditError {
	return &CreditError{
		Code:    CodeInvalidPlan,
		Message: fmt.Sprintf("unknown subscription plan: %s", planID),
	}
}

// NewDuplicateTransaction создает ошибку повторного чека
func NewDuplicateTransaction(externalTransactionID string) *CreditError {
	return &CreditError{
		Code:    CodeDuplicateTransaction,
		Message: fmt.Sprintf("transaction %s has already been processed", externalTransactionID),
	}
}

// NewInvalidReceipt создает ошибку отклоненного чека
func NewInvalidReceipt(detail string) *CreditError {
	return &CreditError{
		Code:    CodeInvalidReceipt,
		Message: fmt.Sprintf("receipt rejected: %s", detail),
	}
}

// NewValidationFailed создает ошибку неудачной валидации чека
func NewValidationFailed(platform string, err error) *CreditError {
	return &CreditError{
		Code:    CodeValidationFailed,
		Message: fmt.Sprintf("receipt validation failed for platform %s", platform),
		Err:     err,
	}
}

// NewTransactionNotFound создает ошибку отсутствующей покупки для возврата
func NewTransactionNotFound(externalTransactionID string) *CreditError {
	return &CreditError{
		Code:    CodeTransactionNotFound,
		Message: fmt.Sprintf("purchase transaction %s not found", externalTransactionID),
	}
}

// NewAlreadyRefunded создает ошибку повторного возврата
func NewAlreadyRefunded(externalTransactionID string) *CreditError {
	return &CreditError{
		Code:    CodeAlreadyRefunded,
		Message: fmt.Sprintf("transaction %s has already been refunded", externalTransactionID),
	}
}

// NewExistingSubscription создает ошибку существующей живой подписки
func NewExistingSubscription(userID string) *CreditError {
	return &CreditError{
		Code:    CodeExistingSubscription,
		Message: fmt.Sprintf("user %s already has an active subscription", userID),
	}
}

// NewNoActiveSubscription создает ошибку отсутствия живой подписки
func NewNoActiveSubscription(userID string) *CreditError {
	return &CreditError{
		Code:    CodeNoActiveSubscription,
		Message: fmt.Sprintf("user %s has no active subscription", userID),
	}
}

// NewNoSubscriptionToRenew создает ошибку отсутствия подписки для продления
func NewNoSubscriptionToRenew(userID string) *CreditError {
	return &CreditError{
		Code:    CodeNoSubscriptionToRenew,
		Message: fmt.Sprintf("user %s has no subscription to renew", userID),
	}
}

// NewInternal оборачивает неожиданную внутреннюю ошибку.
// retryable=true допустимо только если мутация заведомо не началась.
func NewInternal(err error, retryable bool) *CreditError {
	return &CreditError{
		Code:      CodeInternal,
		Message:   "internal error",
		Retryable: retryable,
		Err:       err,
	}
}
