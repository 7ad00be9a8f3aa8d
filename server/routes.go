package server

import (
	"github.com/gin-gonic/gin"
)

// registerRoutes регистрирует все маршруты каталога
func (s *Server) registerRoutes(engine *gin.Engine) {
	engine.GET("/health", s.catalogHandler.HandleHealth)

	api := engine.Group("/api")
	{
		api.GET("/search", s.catalogHandler.HandleSearch)
		api.GET("/compare/:sku", s.catalogHandler.HandleCompare)
		api.GET("/products/:id", s.catalogHandler.HandleProduct)
		api.GET("/providers/:id", s.catalogHandler.HandleProvider)
		api.GET("/providers/:id/offerings", s.catalogHandler.HandleProviderOfferings)
		api.GET("/stats", s.catalogHandler.HandleStats)
		api.POST("/import", s.catalogHandler.HandleImport)
	}
}
