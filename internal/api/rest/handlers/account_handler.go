package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stickerai/credits-service/internal/repository"
	"github.com/stickerai/credits-service/internal/service"
	"github.com/stickerai/credits-service/pkg/logger"
	"github.com/stickerai/credits-service/pkg/req"
	"github.com/stickerai/credits-service/pkg/res"
)

// AccountHandler обработчик аккаунтов
type AccountHandler struct {
	accounts service.AccountService
	log      *logger.Logger
}

// NewAccountHandler создает новый обработчик аккаунтов
func NewAccountHandler(accounts service.AccountService, log *logger.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		log:      log,
	}
}

// RegisterRequest тело запроса регистрации аккаунта
type RegisterRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Register создает аккаунт бесплатного уровня
func (h *AccountHandler) Register(c *gin.Context) {
	body, err := req.HandleBody[RegisterRequest](c, h.log)
	if err != nil {
		return
	}

	account, err := h.accounts.Register(c.Request.Context(), body.Email)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			res.Error(c, http.StatusConflict, res.ErrorResponse{Error: "account already exists"})
			return
		}
		writeCreditError(c, h.log, err)
		return
	}

	res.JSON(c, http.StatusCreated, account)
}

// Get возвращает аккаунт пользователя вместе с балансом
func (h *AccountHandler) Get(c *gin.Context) {
	userID, ok := parseUserID(c, h.log)
	if !ok {
		return
	}

	account, err := h.accounts.GetByID(c.Request.Context(), userID)
	if err != nil {
		writeCreditError(c, h.log, err)
		return
	}

	res.JSON(c, http.StatusOK, account)
}
