package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stickerai/credits-service/internal/domain"
	"github.com/stickerai/credits-service/internal/service"
	"github.com/stickerai/credits-service/pkg/logger"
	"github.com/stickerai/credits-service/pkg/req"
	"github.com/stickerai/credits-service/pkg/res"
)

// PurchaseHandler обработчик покупок и возвратов
type PurchaseHandler struct {
	purchases service.PurchaseService
	log       *logger.Logger
}

// NewPurchaseHandler создает новый обработчик покупок
func NewPurchaseHandler(purchases service.PurchaseService, log *logger.Logger) *PurchaseHandler {
	return &PurchaseHandler{
		purchases: purchases,
		log:       log,
	}
}

// PurchaseRequest тело запроса обработки покупки
type PurchaseRequest struct {
	Platform              string `json:"platform" validate:"required,oneof=ios android"`
	ReceiptData           string `json:"receipt_data" validate:"required"`
	ProductID             string `json:"product_id" validate:"required"`
	ExternalTransactionID string `json:"external_transaction_id"`
}

// RefundRequest тело запроса возврата покупки
type RefundRequest struct {
	ExternalTransactionID string `json:"external_transaction_id" validate:"required"`
	Reason                string `json:"reason"`
}

// ProcessPurchase проверяет чек магазина и зачисляет кредиты
func (h *PurchaseHandler) ProcessPurchase(c *gin.Context) {
	userID, ok := parseUserID(c, h.log)
	if !ok {
		return
	}
	body, err := req.HandleBody[PurchaseRequest](c, h.log)
	if err != nil {
		return
	}

	receipt := domain.Receipt{
		Platform:              domain.Platform(body.Platform),
		ReceiptData:           body.ReceiptData,
		ProductID:             body.ProductID,
		ExternalTransactionID: body.ExternalTransactionID,
	}

	result, err := h.purchases.ProcessPurchase(c.Request.Context(), userID, receipt)
	if err != nil {
		writeCreditError(c, h.log, err)
		return
	}

	res.JSON(c, http.StatusCreated, result)
}

// ProcessRefund отменяет покупку и списывает зачисленные кредиты
func (h *PurchaseHandler) ProcessRefund(c *gin.Context) {
	userID, ok := parseUserID(c, h.log)
	if !ok {
		return
	}
	body, err := req.HandleBody[RefundRequest](c, h.log)
	if err != nil {
		return
	}

	result, err := h.purchases.ProcessRefund(c.Request.Context(), userID, body.ExternalTransactionID, body.Reason)
	if err != nil {
		writeCreditError(c, h.log, err)
		return
	}

	res.JSON(c, http.StatusOK, result)
}

// History возвращает покупки пользователя, новые первыми
func (h *PurchaseHandler) History(c *gin.Context) {
	userID, ok := parseUserID(c, h.log)
	if !ok {
		return
	}

	records, err := h.purchases.PurchaseHistory(c.Request.Context(), userID)
	if err != nil {
		writeCreditError(c, h.log, err)
		return
	}

	res.JSON(c, http.StatusOK, records)
}
