package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"catalogserver/database"
	"catalogserver/normalization"
	apperrors "catalogserver/server/errors"
)

// IngestionReport итог загрузки одной партии прайс-листа
type IngestionReport struct {
	SourceLabel string    `json:"source_label"`
	StartedAt   time.Time `json:"started_at"`
	Duration    string    `json:"duration"`

	RowsRead            int `json:"rows_read"`
	RowsAccepted        int `json:"rows_accepted"`
	RowsRejected        int `json:"rows_rejected"`
	DuplicatesDiscarded int `json:"duplicates_discarded"`
	PriceViolations     int `json:"price_violations"`

	RejectedByReason map[normalization.RejectReason]int `json:"rejected_by_reason,omitempty"`

	ProductsCreated   int `json:"products_created"`
	ProductsUpdated   int `json:"products_updated"`
	ListingsCreated   int `json:"listings_created"`
	ListingsUpdated   int `json:"listings_updated"`
	ProvidersCreated  int `json:"providers_created"`
	BrandsCreated     int `json:"brands_created"`
	CategoriesCreated int `json:"categories_created"`

	// Touched-счетчики включают и созданные, и найденные существующими сущности
	ProvidersTouched  int `json:"providers_touched"`
	BrandsTouched     int `json:"brands_touched"`
	CategoriesTouched int `json:"categories_touched"`

	Rejections []normalization.RowRejection `json:"rejections,omitempty"`
}

// reject фиксирует отклоненную строку в отчете
func (r *IngestionReport) reject(rejection normalization.RowRejection) {
	r.RowsRejected++
	r.Rejections = append(r.Rejections, rejection)
	if r.RejectedByReason == nil {
		r.RejectedByReason = make(map[normalization.RejectReason]int)
	}
	r.RejectedByReason[rejection.Reason]++
	if rejection.Reason == normalization.ReasonPriceInvariant {
		r.PriceViolations++
	}
}

// String краткая сводка для логов и CLI
func (r *IngestionReport) String() string {
	return fmt.Sprintf(
		"source=%s rows=%d accepted=%d rejected=%d duplicates=%d products(+%d/~%d) listings(+%d/~%d) providers+%d brands+%d categories+%d in %s",
		r.SourceLabel, r.RowsRead, r.RowsAccepted, r.RowsRejected, r.DuplicatesDiscarded,
		r.ProductsCreated, r.ProductsUpdated, r.ListingsCreated, r.ListingsUpdated,
		r.ProvidersCreated, r.BrandsCreated, r.CategoriesCreated, r.Duration,
	)
}

// IngestionService сервис загрузки прайс-листов в каталог
// Загрузки сериализуются мьютексом: одна партия - одна транзакция
type IngestionService struct {
	db     *database.CatalogDB
	logger *slog.Logger

	ingestMutex sync.Mutex
}

// NewIngestionService создает новый сервис загрузки
func NewIngestionService(db *database.CatalogDB, logger *slog.Logger) *IngestionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestionService{
		db:     db,
		logger: logger,
	}
}

// dedupKey ключ дедупликации строк внутри партии
type dedupKey struct {
	vendorKey string
	skuKey    string
}

// Ingest загружает партию сырых строк в каталог
// Строки очищаются, дедуплицируются по паре (поставщик, SKU) с победой
// последней строки, затем применяются в одной транзакции. Повторная
// загрузка того же файла не создает дубликатов
func (is *IngestionService) Ingest(ctx context.Context, rows []normalization.RawOffer, sourceLabel string) (*IngestionReport, error) {
	is.ingestMutex.Lock()
	defer is.ingestMutex.Unlock()

	report := &IngestionReport{
		SourceLabel: sourceLabel,
		StartedAt:   time.Now(),
		RowsRead:    len(rows),
	}

	// Очистка и нормализация построчно
	var cleaned []*normalization.CleanOffer
	for _, raw := range rows {
		offer, rejection := normalization.CleanRow(raw)
		if rejection != nil {
			report.reject(*rejection)
			continue
		}
		cleaned = append(cleaned, offer)
	}

	// Дедупликация внутри партии: последняя строка с тем же ключом побеждает
	seen := make(map[dedupKey]int)
	var deduped []*normalization.CleanOffer
	for _, offer := range cleaned {
		key := dedupKey{vendorKey: offer.VendorKey, skuKey: offer.SKUKey}
		if idx, ok := seen[key]; ok {
			deduped[idx] = offer
			report.DuplicatesDiscarded++
			continue
		}
		seen[key] = len(deduped)
		deduped = append(deduped, offer)
	}

	batch, err := is.db.BeginIngest(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to begin ingest transaction", err)
	}
	defer batch.Rollback()

	resolver := NewEntityResolver(batch)

	for _, offer := range deduped {
		// Инвариант цен: контрактная цена не выше прайсовой
		// Нарушение отбраковывает строку, но не партию
		if offer.PriceCents != nil && offer.ListPriceCents != nil && *offer.PriceCents > *offer.ListPriceCents {
			report.reject(normalization.RowRejection{
				RowNumber: offer.RowNumber,
				Reason:    normalization.ReasonPriceInvariant,
				Detail: fmt.Sprintf("price %d exceeds list price %d (cents)",
					*offer.PriceCents, *offer.ListPriceCents),
			})
			continue
		}

		if err := is.applyOffer(batch, resolver, offer, report); err != nil {
			return nil, apperrors.NewInternalError(
				fmt.Sprintf("failed to apply row %d", offer.RowNumber), err)
		}
		report.RowsAccepted++
	}

	report.ProvidersCreated = resolver.ProvidersCreated()
	report.BrandsCreated = resolver.BrandsCreated()
	report.CategoriesCreated = resolver.CategoriesCreated()
	report.ProvidersTouched = resolver.ProvidersTouched()
	report.BrandsTouched = resolver.BrandsTouched()
	report.CategoriesTouched = resolver.CategoriesTouched()

	if err := batch.Commit(); err != nil {
		return nil, apperrors.NewInternalError("failed to commit ingest transaction", err)
	}

	report.Duration = time.Since(report.StartedAt).Round(time.Millisecond).String()
	is.logger.Info("ingest completed", "report", report.String())

	return report, nil
}

// applyOffer применяет одну очищенную строку: сущности, продукт, листинг, атрибуты
func (is *IngestionService) applyOffer(
	batch *database.IngestBatch,
	resolver *EntityResolver,
	offer *normalization.CleanOffer,
	report *IngestionReport,
) error {
	providerID, err := resolver.ResolveProvider(offer.Vendor)
	if err != nil {
		return err
	}
	brandID, err := resolver.ResolveBrand(offer.Brand)
	if err != nil {
		return err
	}
	categoryID, err := resolver.ResolveCategory(offer.Category)
	if err != nil {
		return err
	}

	productID, productCreated, err := batch.UpsertProduct(database.ProductUpsert{
		SKU:         offer.SKU,
		Name:        offer.Name,
		Description: offer.Description,
		BrandID:     brandID,
		CategoryID:  categoryID,
	})
	if err != nil {
		return err
	}
	if productCreated {
		report.ProductsCreated++
	} else {
		report.ProductsUpdated++
	}

	now := time.Now()
	var inventoryUpdated *time.Time
	if offer.InventoryQuantity != nil {
		inventoryUpdated = &now
	}

	listingID, listingCreated, err := batch.UpsertListing(database.ListingUpsert{
		ProviderID:        providerID,
		ProductID:         productID,
		UnitOfMeasure:     offer.UnitOfMeasure,
		Currency:          offer.Currency,
		ListPriceCents:    offer.ListPriceCents,
		PriceCents:        offer.PriceCents,
		InventoryQuantity: offer.InventoryQuantity,
		InventoryUpdated:  inventoryUpdated,
	})
	if err != nil {
		return err
	}
	if listingCreated {
		report.ListingsCreated++
	} else {
		report.ListingsUpdated++
	}

	for key, value := range offer.Attributes {
		if err := batch.UpsertListingAttribute(listingID, key, value); err != nil {
			return err
		}
	}

	return nil
}
