package handler

import (
	"github.com/gin-gonic/gin"
)

// AddDocsRoutes подключает статику с документацией API
func AddDocsRoutes(router *gin.Engine) {
	router.StaticFile("/docs", "./docs/swagger-ui.html")
	router.StaticFile("/docs/swagger.json", "./docs/swagger.json")
}
