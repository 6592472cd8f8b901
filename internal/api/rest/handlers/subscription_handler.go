package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stickerai/credits-service/internal/service"
	"github.com/stickerai/credits-service/pkg/logger"
	"github.com/stickerai/credits-service/pkg/req"
	"github.com/stickerai/credits-service/pkg/res"
)

// SubscriptionHandler обработчик жизненного цикла подписок
type SubscriptionHandler struct {
	subscriptions service.SubscriptionService
	log           *logger.Logger
}

// NewSubscriptionHandler создает новый обработчик подписок
func NewSubscriptionHandler(subscriptions service.SubscriptionService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptions: subscriptions,
		log:           log,
	}
}

// CreateSubscriptionRequest тело запроса оформления подписки
type CreateSubscriptionRequest struct {
	PlanID               string `json:"plan_id" validate:"required"`
	PaymentTransactionID string `json:"payment_transaction_id" validate:"required"`
}

// CancelSubscriptionRequest тело запроса отмены подписки
type CancelSubscriptionRequest struct {
	Reason string `json:"reason"`
}

// RenewSubscriptionRequest тело запроса продления подписки
type RenewSubscriptionRequest struct {
	PaymentTransactionID string `json:"payment_transaction_id" validate:"required"`
}

// Create оформляет новую подписку
func (h *SubscriptionHandler) Create(c *gin.Context) {
	userID, ok := parseUserID(c, h.log)
	if !ok {
		return
	}
	body, err := req.HandleBody[CreateSubscriptionRequest](c, h.log)
	if err != nil {
		return
	}

	sub, err := h.subscriptions.Create(c.Request.Context(), userID, body.PlanID, body.PaymentTransactionID)
	if err != nil {
		writeCreditError(c, h.log, err)
		return
	}

	res.JSON(c, http.StatusCreated, sub)
}

// Cancel отключает автопродление, доступ сохраняется до конца периода
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	userID, ok := parseUserID(c, h.log)
	if !ok {
		return
	}
	body, err := req.HandleBody[CancelSubscriptionRequest](c, h.log)
	if err != nil {
		return
	}

	sub, err := h.subscriptions.Cancel(c.Request.Context(), userID, body.Reason)
	if err != nil {
		writeCreditError(c, h.log, err)
		return
	}

	res.JSON(c, http.StatusOK, sub)
}

// Renew продлевает подписку от текущей даты окончания
func (h *SubscriptionHandler) Renew(c *gin.Context) {
	userID, ok := parseUserID(c, h.log)
	if !ok {
		return
	}
	body, err := req.HandleBody[RenewSubscriptionRequest](c, h.log)
	if err != nil {
		return
	}

	sub, err := h.subscriptions.Renew(c.Request.Context(), userID, body.PaymentTransactionID)
	if err != nil {
		writeCreditError(c, h.log, err)
		return
	}

	res.JSON(c, http.StatusOK, sub)
}

// GetActive возвращает живую подписку пользователя
func (h *SubscriptionHandler) GetActive(c *gin.Context) {
	userID, ok := parseUserID(c, h.log)
	if !ok {
		return
	}

	sub, err := h.subscriptions.GetActive(c.Request.Context(), userID)
	if err != nil {
		writeCreditError(c, h.log, err)
		return
	}

	res.JSON(c, http.StatusOK, sub)
}

// Benefits возвращает преимущества текущего уровня пользователя
func (h *SubscriptionHandler) Benefits(c *gin.Context) {
	userID, ok := parseUserID(c, h.log)
	if !ok {
		return
	}

	benefits, err := h.subscriptions.Benefits(c.Request.Context(), userID)
	if err != nil {
		writeCreditError(c, h.log, err)
		return
	}

	res.JSON(c, http.StatusOK, benefits)
}

// History возвращает все подписки пользователя
func (h *SubscriptionHandler) History(c *gin.Context) {
	userID, ok := parseUserID(c, h.log)
	if !ok {
		return
	}

	subs, err := h.subscriptions.HistoryFor(c.Request.Context(), userID)
	if err != nil {
		writeCreditError(c, h.log, err)
		return
	}

	res.JSON(c, http.StatusOK, subs)
}
