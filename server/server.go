package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"catalogserver/database"
	"catalogserver/internal/config"
	"catalogserver/server/handlers"
	"catalogserver/server/middleware"
	"catalogserver/server/services"
)

// Server HTTP сервер каталога
type Server struct {
	config *config.Config
	db     *database.CatalogDB
	logger *slog.Logger

	catalogHandler *handlers.CatalogHandler
	httpServer     *http.Server
}

// NewServer создает сервер со всеми сервисами каталога
func NewServer(cfg *config.Config, db *database.CatalogDB, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	searchService := services.NewSearchService(db, cfg.PageSize, cfg.MaxPageSize, logger)
	compareService := services.NewCompareService(db)
	productService := services.NewProductService(db, cfg.PageSize, cfg.MaxPageSize)
	ingestionService := services.NewIngestionService(db, logger)

	return &Server{
		config: cfg,
		db:     db,
		logger: logger,
		catalogHandler: handlers.NewCatalogHandler(
			searchService, compareService, productService, ingestionService, db, logger),
	}
}

// buildEngine собирает gin engine с middleware и маршрутами
func (s *Server) buildEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(middleware.LoggerMiddleware(s.logger))
	engine.Use(middleware.RecoveryMiddleware(s.logger))
	engine.Use(middleware.CORSMiddleware())
	engine.Use(middleware.GzipMiddleware())
	engine.Use(middleware.RateLimitMiddleware(s.config.RateLimitRPS, s.config.RateLimitBurst))

	s.registerRoutes(engine)
	return engine
}

// Start запускает HTTP сервер и блокируется до его остановки
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.buildEngine(),
		ReadTimeout: 15 * time.Second,
		// Загрузка больших прайс-листов держит соединение дольше обычного запроса
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server on %s: %w", addr, err)
	}
	return nil
}

// Shutdown останавливает сервер gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("initiating graceful shutdown")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}

	s.logger.Info("graceful shutdown completed")
	return nil
}
