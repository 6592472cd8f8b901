package req

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/stickerai/credits-service/pkg/logger"
	"github.com/stickerai/credits-service/pkg/res"
)

var validate = validator.New()

// Decode декодирует JSON тела запроса в структуру типа T.
func Decode[T any](c *gin.Context) (T, error) {
	var payload T
	if err := c.ShouldBindJSON(&payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// IsValid валидирует структуру типа T по validate-тегам.
func IsValid[T any](payload T) error {
	return validate.Struct(payload)
}

// HandleBody декодирует, валидирует и обрабатывает тело запроса.
// При ошибке сам пишет ответ 422 и возвращает nil.
func HandleBody[T any](c *gin.Context, log *logger.Logger) (*T, error) {
	payload, err := Decode[T](c)
	if err != nil {
		log.Warnw("Failed to decode request body", "error", err, "path", c.FullPath())
		res.Error(c, http.StatusUnprocessableEntity, res.ErrorResponse{Error: "invalid request format"})
		return nil, err
	}

	if err := IsValid(payload); err != nil {
		log.Warnw("Request body validation failed", "error", err, "path", c.FullPath())
		details := err.Error()
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			res.Error(c, http.StatusUnprocessableEntity, res.ErrorResponse{Error: "invalid request data", Details: fields})
			return nil, err
		}
		res.Error(c, http.StatusUnprocessableEntity, res.ErrorResponse{Error: "invalid request data", Details: details})
		return nil, err
	}

	return &payload, nil
}
