package services

import (
	"context"
	"strings"

	"catalogserver/database"
	"catalogserver/normalization"
	apperrors "catalogserver/server/errors"
)

// Offer предложение поставщика по продукту
type Offer struct {
	ProviderID        string   `json:"provider_id"`
	ProviderName      string   `json:"provider_name"`
	ProviderSlug      string   `json:"provider_slug"`
	UnitOfMeasure     string   `json:"unit_of_measure"`
	Currency          string   `json:"currency"`
	ListPrice         *float64 `json:"list_price"`
	Price             *float64 `json:"price"`
	InventoryQuantity *float64 `json:"inventory_quantity"`
	InventoryUpdated  *string  `json:"inventory_updated_at"`
}

// CompareResponse сравнение предложений поставщиков по одному SKU
type CompareResponse struct {
	SKU    string  `json:"sku"`
	Offers []Offer `json:"offers"`
}

// CompareService сервис сравнения цен поставщиков по SKU
type CompareService struct {
	db *database.CatalogDB
}

// NewCompareService создает новый сервис сравнения
func NewCompareService(db *database.CatalogDB) *CompareService {
	return &CompareService{db: db}
}

// Compare возвращает предложения всех поставщиков по SKU
// Сопоставление без учета регистра; неизвестный SKU дает пустой список,
// а не ошибку. Предложения идут по возрастанию действующей цены,
// листинги без цены - в конце
func (cs *CompareService) Compare(ctx context.Context, sku string) (*CompareResponse, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, apperrors.NewValidationError("sku must not be empty", nil)
	}

	productID, canonicalSKU, found, err := cs.db.FindProductBySKU(ctx, sku)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to look up product by sku", err)
	}

	if !found {
		return &CompareResponse{SKU: sku, Offers: []Offer{}}, nil
	}

	rows, err := cs.db.ListOffersByProduct(ctx, productID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list offers", err)
	}

	return &CompareResponse{
		SKU:    canonicalSKU,
		Offers: toOffers(rows),
	}, nil
}

// toOffers переводит строки листингов в DTO ответа
func toOffers(rows []database.OfferRow) []Offer {
	offers := make([]Offer, 0, len(rows))
	for _, row := range rows {
		offer := Offer{
			ProviderID:        row.ProviderID,
			ProviderName:      row.ProviderName,
			ProviderSlug:      row.ProviderSlug,
			UnitOfMeasure:     row.UnitOfMeasure,
			Currency:          row.Currency,
			InventoryQuantity: row.InventoryQuantity,
		}
		if row.ListPriceCents != nil {
			v := normalization.CentsToFloat(*row.ListPriceCents)
			offer.ListPrice = &v
		}
		if row.PriceCents != nil {
			v := normalization.CentsToFloat(*row.PriceCents)
			offer.Price = &v
		}
		if row.InventoryUpdatedAt != nil {
			s := row.InventoryUpdatedAt.UTC().Format("2006-01-02T15:04:05Z")
			offer.InventoryUpdated = &s
		}
		offers = append(offers, offer)
	}
	return offers
}
