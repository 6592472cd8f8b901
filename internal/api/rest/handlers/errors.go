package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stickerai/credits-service/internal/domain"
	"github.com/stickerai/credits-service/pkg/logger"
	"github.com/stickerai/credits-service/pkg/res"
)

// statusFor отображает код ошибки ядра в HTTP статус
func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeInvalidAmount, domain.CodeInvalidProduct, domain.CodeInvalidPlan,
		domain.CodeInvalidReceipt, domain.CodeValidationFailed:
		return http.StatusBadRequest
	case domain.CodeInsufficientCredits, domain.CodeInsufficientCreditsForRefund:
		return http.StatusPaymentRequired
	case domain.CodeUserNotFound, domain.CodeTransactionNotFound,
		domain.CodeNoActiveSubscription, domain.CodeNoSubscriptionToRenew:
		return http.StatusNotFound
	case domain.CodeDuplicateTransaction, domain.CodeAlreadyRefunded,
		domain.CodeExistingSubscription:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeCreditError пишет типизированную ошибку ядра в ответ
func writeCreditError(c *gin.Context, log *logger.Logger, err error) {
	var ce *domain.CreditError
	if !errors.As(err, &ce) {
		log.Error("Unexpected error: %v", err)
		res.Error(c, http.StatusInternalServerError, res.ErrorResponse{
			Error:     "internal error",
			ErrorCode: string(domain.CodeInternal),
		})
		return
	}

	status := statusFor(ce.Code)
	if status >= 500 {
		log.Error("Request failed: %v", err)
	}
	res.Error(c, status, res.ErrorResponse{
		Error:     ce.Message,
		ErrorCode: string(ce.Code),
		Retryable: ce.Retryable,
	})
}
