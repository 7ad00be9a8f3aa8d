package services

import (
	"context"
	"strings"

	"catalogserver/database"
	apperrors "catalogserver/server/errors"
)

// ProductDetail полная карточка продукта с атрибутами, изображениями и предложениями
type ProductDetail struct {
	ProductSummary
	Attributes []database.AttributeRow `json:"attributes"`
	Images     []database.ImageRow     `json:"images"`
	Offers     []Offer                 `json:"offers"`
}

// ProviderOffering предложение в каталоге одного поставщика
type ProviderOffering struct {
	Product ProductSummary `json:"product"`
	Offer   Offer          `json:"offer"`
}

// ProviderCatalog страница каталога поставщика
type ProviderCatalog struct {
	Provider  database.Provider  `json:"provider"`
	Offerings []ProviderOffering `json:"offerings"`
	Total     int                `json:"total"`
	Page      int                `json:"page"`
	PerPage   int                `json:"per_page"`
}

// ProductService сервис карточек продуктов и поставщиков
type ProductService struct {
	db *database.CatalogDB

	defaultPerPage int
	maxPerPage     int
}

// NewProductService создает новый сервис карточек
func NewProductService(db *database.CatalogDB, defaultPerPage, maxPerPage int) *ProductService {
	return &ProductService{
		db:             db,
		defaultPerPage: defaultPerPage,
		maxPerPage:     maxPerPage,
	}
}

// GetProduct возвращает полную карточку продукта по id
func (ps *ProductService) GetProduct(ctx context.Context, productID string) (*ProductDetail, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, apperrors.NewValidationError("product id must not be empty", nil)
	}

	summary, err := ps.db.GetProductSummary(ctx, productID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load product", err)
	}
	if summary == nil {
		return nil, apperrors.NewNotFoundError("product not found", nil)
	}

	attributes, err := ps.db.ListProductAttributes(ctx, productID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load product attributes", err)
	}

	images, err := ps.db.ListProductImages(ctx, productID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load product images", err)
	}

	offers, err := ps.db.ListOffersByProduct(ctx, productID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load product offers", err)
	}

	return &ProductDetail{
		ProductSummary: toProductSummary(*summary),
		Attributes:     attributes,
		Images:         images,
		Offers:         toOffers(offers),
	}, nil
}

// GetProvider возвращает карточку поставщика по id
func (ps *ProductService) GetProvider(ctx context.Context, providerID string) (*database.Provider, error) {
	providerID = strings.TrimSpace(providerID)
	if providerID == "" {
		return nil, apperrors.NewValidationError("provider id must not be empty", nil)
	}

	provider, err := ps.db.GetProvider(ctx, providerID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load provider", err)
	}
	if provider == nil {
		return nil, apperrors.NewNotFoundError("provider not found", nil)
	}
	return provider, nil
}

// ProviderOfferings возвращает страницу каталога поставщика
func (ps *ProductService) ProviderOfferings(ctx context.Context, providerID string, page, perPage int) (*ProviderCatalog, error) {
	provider, err := ps.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = ps.defaultPerPage
	}
	if perPage > ps.maxPerPage {
		perPage = ps.maxPerPage
	}
	offset := (page - 1) * perPage

	rows, err := ps.db.ListProviderOfferings(ctx, providerID, perPage, offset)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list provider offerings", err)
	}

	total, err := ps.db.CountProviderOfferings(ctx, providerID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to count provider offerings", err)
	}

	offerings := make([]ProviderOffering, 0, len(rows))
	for _, row := range rows {
		offerRows := toOffers([]database.OfferRow{row.Offer})
		offerings = append(offerings, ProviderOffering{
			Product: toProductSummary(row.Product),
			Offer:   offerRows[0],
		})
	}

	return &ProviderCatalog{
		Provider:  *provider,
		Offerings: offerings,
		Total:     total,
		Page:      page,
		PerPage:   perPage,
	}, nil
}
