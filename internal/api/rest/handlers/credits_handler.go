package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stickerai/credits-service/internal/domain"
	"github.com/stickerai/credits-service/internal/service"
	"github.com/stickerai/credits-service/pkg/logger"
	"github.com/stickerai/credits-service/pkg/req"
	"github.com/stickerai/credits-service/pkg/res"
)

// CreditsHandler обработчик операций леджера
type CreditsHandler struct {
	ledger service.LedgerService
	log    *logger.Logger
}

// NewCreditsHandler создает новый обработчик леджера
func NewCreditsHandler(ledger service.LedgerService, log *logger.Logger) *CreditsHandler {
	return &CreditsHandler{
		ledger: ledger,
		log:    log,
	}
}

// AmountRequest тело запроса операции с суммой кредитов
type AmountRequest struct {
	Amount      int64    `json:"amount" validate:"required,gt=0"`
	Description string   `json:"description"`
	RelatedIDs  []string `json:"related_ids"`
}

// ValidateRequest тело запроса проверки баланса
type ValidateRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

// parseUserID извлекает UUID пользователя из пути
func parseUserID(c *gin.Context, log *logger.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		log.Warn("Invalid user ID format: %s", c.Param("id"))
		res.Error(c, http.StatusBadRequest, res.ErrorResponse{Error: "invalid user ID format"})
		return uuid.Nil, false
	}
	return id, true
}

// Validate проверяет достаточность кредитов без списания
func (h *CreditsHandler) Validate(c *gin.Context) {
	userID, ok := parseUserID(c, h.log)
	if !ok {
		return
	}
	body, err := req.HandleBody[ValidateRequest](c, h.log)
	if err != nil {
		return
	}

	result, err := h.ledger.Validate(c.Request.Context(), userID, body.Amount)
	if err != nil {
		writeCreditError(c, h.log, err)
		return
	}

	res.JSON(c, http.StatusOK, result)
}

// Deduct списывает кредиты за потребление
func (h *CreditsHandler) Deduct(c *gin.Context) {
	userID, ok := parseUserID(c, h.log)
	if !ok {
		return
	}
	body, err := req.HandleBody[AmountRequest](c, h.log)
	if err != nil {
		return
	}

	result, err := h.ledger.Deduct(c.Request.Context(), userID, body.Amount, body.Description, body.RelatedIDs)
	if err != nil {
		writeCreditError(c, h.log, err)
		return
	}

	res.JSON(c, http.StatusOK, result)
}

// Add зачисляет купленные кредиты
func (h *CreditsHandler) Add(c *gin.Context) {
	userID, ok := parseUserID(c, h.log)
	if !ok {
		return
	}
	body, err := req.HandleBody[AmountRequest](c, h.log)
	if err != nil {
		return
	}

	result, err := h.ledger.Add(c.Request.Context(), userID, body.Amount, body.Description, body.RelatedIDs)
	if err != nil {
		writeCreditError(c, h.log, err)
		return
	}

	res.JSON(c, http.StatusOK, result)
}

// Refund зачисляет компенсацию
func (h *CreditsHandler) Refund(c *gin.Context) {
	userID, ok := parseUserID(c, h.log)
	if !ok {
		return
	}
	body, err := req.HandleBody[AmountRequest](c, h.log)
	if err != nil {
		return
	}

	result, err := h.ledger.Refund(c.Request.Context(), userID, body.Amount, body.Description, body.RelatedIDs)
	if err != nil {
		writeCreditError(c, h.log, err)
		return
	}

	res.JSON(c, http.StatusOK, result)
}

// History возвращает записи леджера пользователя, новые первыми
func (h *CreditsHandler) History(c *gin.Context) {
	userID, ok := parseUserID(c, h.log)
	if !ok {
		return
	}

	transactions, err := h.ledger.History(c.Request.Context(), userID)
	if err != nil {
		writeCreditError(c, h.log, err)
		return
	}

	res.JSON(c, http.StatusOK, transactions)
}

// Totals возвращает сумму по типу транзакций (?kind=purchase|consumption|refund)
func (h *CreditsHandler) Totals(c *gin.Context) {
	userID, ok := parseUserID(c, h.log)
	if !ok {
		return
	}

	kind := domain.TransactionKind(c.Query("kind"))
	switch kind {
	case domain.TransactionKindPurchase, domain.TransactionKindConsumption, domain.TransactionKindRefund:
	default:
		res.Error(c, http.StatusBadRequest, res.ErrorResponse{Error: "invalid transaction kind"})
		return
	}

	total, err := h.ledger.Totals(c.Request.Context(), userID, kind)
	if err != nil {
		writeCreditError(c, h.log, err)
		return
	}

	res.JSON(c, http.StatusOK, gin.H{"kind": kind, "total": total})
}
