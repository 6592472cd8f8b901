package res

import (
	"github.com/gin-gonic/gin"
)

// ErrorResponse представляет формат JSON-ответа для ошибок.
type ErrorResponse struct {
	Error     string `json:"error"`                // Сообщение об ошибке (для пользователя)
	ErrorCode string `json:"error_code,omitempty"` // Код ошибки (для программной обработки)
	Retryable bool   `json:"retryable,omitempty"`  // Можно ли безопасно повторить запрос
	Details   any    `json:"details,omitempty"`    // Детали ошибки (например, ошибки валидации)
}

// JSON отправляет JSON-ответ с заданным статусом.
func JSON(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}

// Error отправляет JSON-ответ ошибки.
func Error(c *gin.Context, status int, errResponse ErrorResponse) {
	c.JSON(status, errResponse)
}
