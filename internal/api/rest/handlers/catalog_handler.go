package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stickerai/credits-service/internal/catalog"
	"github.com/stickerai/credits-service/pkg/res"
)

// GetPackages возвращает доступные пакеты кредитов
func GetPackages(c *gin.Context) {
	res.JSON(c, http.StatusOK, catalog.Packages())
}

// GetPlans возвращает доступные планы подписки
func GetPlans(c *gin.Context) {
	res.JSON(c, http.StatusOK, catalog.Plans())
}
