package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"catalogserver/database"
	"catalogserver/importer"
	"catalogserver/normalization"
	apperrors "catalogserver/server/errors"
	"catalogserver/server/middleware"
	"catalogserver/server/services"
)

// CatalogHandler HTTP обработчики каталога
type CatalogHandler struct {
	searchService    *services.SearchService
	compareService   *services.CompareService
	productService   *services.ProductService
	ingestionService *services.IngestionService
	db               *database.CatalogDB
	logger           *slog.Logger
}

// NewCatalogHandler создает обработчики каталога
func NewCatalogHandler(
	searchService *services.SearchService,
	compareService *services.CompareService,
	productService *services.ProductService,
	ingestionService *services.IngestionService,
	db *database.CatalogDB,
	logger *slog.Logger,
) *CatalogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogHandler{
		searchService:    searchService,
		compareService:   compareService,
		productService:   productService,
		ingestionService: ingestionService,
		db:               db,
		logger:           logger,
	}
}

// HandleSearch обрабатывает поисковый запрос
// @Summary Поиск по каталогу продуктов
// @Description Взвешенный поиск с фасетами; при нулевой выдаче включается нечеткий поиск
// @Tags catalog
// @Produce json
// @Param q query string false "Поисковый запрос"
// @Param filters query string false "Фильтры вида provider:id1,id2;brand:id3"
// @Param sort query string false "Ключ сортировки: relevance, price, price_desc, name, name_desc"
// @Param page query int false "Номер страницы"
// @Param per_page query int false "Размер страницы"
// @Success 200 {object} services.SearchResponse "Поисковая выдача"
// @Failure 400 {object} map[string]string "Неверные параметры"
// @Router /api/search [get]
func (h *CatalogHandler) HandleSearch(c *gin.Context) {
	params := services.SearchParams{
		Query:   c.Query("q"),
		Filters: c.Query("filters"),
		Sort:    c.Query("sort"),
		Page:    intQuery(c, "page", 1),
		PerPage: intQuery(c, "per_page", 0),
	}

	resp, err := h.searchService.Search(c.Request.Context(), params)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleCompare обрабатывает сравнение цен по SKU
// @Summary Сравнение предложений поставщиков по SKU
// @Description Возвращает предложения по возрастанию эффективной цены; неизвестный SKU дает пустой список
// @Tags catalog
// @Produce json
// @Param sku path string true "Артикул продукта"
// @Success 200 {object} services.CompareResponse "Предложения поставщиков"
// @Router /api/compare/{sku} [get]
func (h *CatalogHandler) HandleCompare(c *gin.Context) {
	resp, err := h.compareService.Compare(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleProduct возвращает полную карточку продукта
// @Summary Карточка продукта
// @Description Продукт с атрибутами, изображениями и предложениями поставщиков
// @Tags catalog
// @Produce json
// @Param id path string true "Идентификатор продукта"
// @Success 200 {object} services.ProductDetail "Карточка продукта"
// @Failure 404 {object} map[string]string "Продукт не найден"
// @Router /api/products/{id} [get]
func (h *CatalogHandler) HandleProduct(c *gin.Context) {
	detail, err := h.productService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// HandleProvider возвращает карточку поставщика
// @Summary Карточка поставщика
// @Tags providers
// @Produce json
// @Param id path string true "Идентификатор поставщика"
// @Success 200 {object} database.Provider "Карточка поставщика"
// @Failure 404 {object} map[string]string "Поставщик не найден"
// @Router /api/providers/{id} [get]
func (h *CatalogHandler) HandleProvider(c *gin.Context) {
	provider, err := h.productService.GetProvider(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, provider)
}

// HandleProviderOfferings возвращает страницу каталога поставщика
// @Summary Предложения поставщика
// @Description Постраничный список листингов поставщика, новые первыми
// @Tags providers
// @Produce json
// @Param id path string true "Идентификатор поставщика"
// @Param page query int false "Номер страницы"
// @Param per_page query int false "Размер страницы"
// @Success 200 {object} services.ProviderCatalog "Страница каталога поставщика"
// @Failure 404 {object} map[string]string "Поставщик не найден"
// @Router /api/providers/{id}/offerings [get]
func (h *CatalogHandler) HandleProviderOfferings(c *gin.Context) {
	catalog, err := h.productService.ProviderOfferings(
		c.Request.Context(), c.Param("id"),
		intQuery(c, "page", 1), intQuery(c, "per_page", 0),
	)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, catalog)
}

// HandleImport принимает прайс-лист и загружает его в каталог
// @Summary Загрузка прайс-листа
// @Description Принимает Excel или CSV файл и применяет его одной транзакцией
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Файл прайс-листа (.xlsx или .csv)"
// @Param sheet formData string false "Имя листа Excel (по умолчанию первый)"
// @Success 200 {object} services.IngestionReport "Отчет о загрузке"
// @Failure 400 {object} map[string]string "Файл не читается"
// @Router /api/import [post]
func (h *CatalogHandler) HandleImport(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.renderError(c, apperrors.NewValidationError("file field is required", err))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.renderError(c, apperrors.NewInternalError("failed to open uploaded file", err))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	var offers []normalization.RawOffer
	switch ext {
	case ".csv":
		offers, err = importer.ParseCSVReader(file)
	default:
		offers, err = importer.ParseExcelReader(file, c.PostForm("sheet"))
	}
	if err != nil {
		var srcErr *importer.ErrSourceUnreadable
		if errors.As(err, &srcErr) {
			h.renderError(c, apperrors.NewValidationError(srcErr.Error(), nil))
			return
		}
		h.renderError(c, apperrors.NewInternalError("failed to parse uploaded file", err))
		return
	}

	report, err := h.ingestionService.Ingest(c.Request.Context(), offers, fileHeader.Filename)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleStats возвращает сводные счетчики каталога
// @Summary Статистика каталога
// @Tags catalog
// @Produce json
// @Success 200 {object} database.CatalogStats "Счетчики каталога"
// @Router /api/stats [get]
func (h *CatalogHandler) HandleStats(c *gin.Context) {
	stats, err := h.db.GetStats()
	if err != nil {
		h.renderError(c, apperrors.NewInternalError("failed to load catalog stats", err))
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HandleHealth проверка живости сервера
// @Summary Проверка состояния сервера
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string "Статус"
// @Router /health [get]
func (h *CatalogHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// renderError переводит ошибку приложения в JSON ответ с HTTP статусом
func (h *CatalogHandler) renderError(c *gin.Context, err error) {
	reqID := middleware.RequestIDFromGin(c)

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.StatusCode() >= http.StatusInternalServerError {
			h.logger.Error("request failed",
				"error", appErr.Error(), "request_id", reqID, "path", c.Request.URL.Path)
		}
		c.JSON(appErr.StatusCode(), gin.H{
			"error":      appErr.UserMessage(),
			"request_id": reqID,
		})
		return
	}

	h.logger.Error("unexpected error",
		"error", err.Error(), "request_id", reqID, "path", c.Request.URL.Path)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":      "internal server error",
		"request_id": reqID,
	})
}

// intQuery извлекает целочисленный query-параметр с значением по умолчанию
func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
