package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Provider карточка поставщика
type Provider struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Slug         string  `json:"slug"`
	Website      *string `json:"website"`
	ContactEmail *string `json:"contact_email"`
	ContactPhone *string `json:"contact_phone"`
	Description  *string `json:"description"`
}

// OfferRow листинг поставщика, соединенный с его карточкой
type OfferRow struct {
	ID                 string
	ProviderID         string
	ProviderName       string
	ProviderSlug       string
	UnitOfMeasure      string
	Currency           string
	ListPriceCents     *int64
	PriceCents         *int64
	InventoryQuantity  *float64
	InventoryUpdatedAt *time.Time
}

// AttributeRow свободный атрибут продукта или листинга
type AttributeRow struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	ValueType string `json:"value_type"`
}

// ImageRow изображение продукта
type ImageRow struct {
	URL       string  `json:"url"`
	AltText   *string `json:"alt_text"`
	SortOrder int     `json:"sort_order"`
}

// FindProductBySKU ищет продукт по точному SKU без учета регистра
// Возвращает id, каноничный SKU и признак существования
func (db *CatalogDB) FindProductBySKU(ctx context.Context, sku string) (string, string, bool, error) {
	var id, canonicalSKU string
	err := db.conn.QueryRowContext(ctx,
		"SELECT id, sku FROM products WHERE sku = ? COLLATE NOCASE", sku,
	).Scan(&id, &canonicalSKU)
	if err == sql.ErrNoRows {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, fmt.Errorf("failed to find product by sku: %w", err)
	}
	return id, canonicalSKU, true, nil
}

// ListOffersByProduct возвращает все листинги продукта для сравнения цен
// Сортировка: эффективная цена по возрастанию, без цены - в конце,
// при равенстве - по имени поставщика
func (db *CatalogDB) ListOffersByProduct(ctx context.Context, productID string) ([]OfferRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT pp.id, pr.id, pr.name, pr.slug,
		       COALESCE(pp.unit_of_measure, ''), pp.currency,
		       pp.list_price_cents, pp.price_cents,
		       pp.inventory_quantity, pp.inventory_updated_at
		FROM provider_products pp
		JOIN providers pr ON pr.id = pp.provider_id
		WHERE pp.product_id = ? AND pp.active = 1
		ORDER BY COALESCE(pp.price_cents, pp.list_price_cents) IS NULL,
		         COALESCE(pp.price_cents, pp.list_price_cents) ASC,
		         pr.name COLLATE NOCASE ASC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	defer rows.Close()

	return scanOffers(rows)
}

// GetProductSummary возвращает строку выдачи для одного продукта
func (db *CatalogDB) GetProductSummary(ctx context.Context, productID string) (*ProductSummaryRow, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT p.id, p.sku, p.name, COALESCE(p.description, ''),
		       b.id, b.name, b.slug,
		       c.id, c.name, c.slug,
		       COUNT(DISTINCT pp.provider_id),
		       MIN(COALESCE(pp.price_cents, pp.list_price_cents)),
		       MAX(COALESCE(pp.price_cents, pp.list_price_cents))
		FROM products p
		LEFT JOIN brands b ON b.id = p.brand_id
		LEFT JOIN categories c ON c.id = p.default_category_id
		LEFT JOIN provider_products pp ON pp.product_id = p.id AND pp.active = 1
		WHERE p.id = ?
		GROUP BY p.id`,
		productID,
	)

	var r ProductSummaryRow
	var minPrice, maxPrice sql.NullInt64
	err := row.Scan(
		&r.ID, &r.SKU, &r.Name, &r.Description,
		&r.BrandID, &r.BrandName, &r.BrandSlug,
		&r.CategoryID, &r.CategoryName, &r.CategorySlug,
		&r.ProviderCount, &minPrice, &maxPrice,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product summary: %w", err)
	}
	if minPrice.Valid {
		r.MinPriceCents = &minPrice.Int64
	}
	if maxPrice.Valid {
		r.MaxPriceCents = &maxPrice.Int64
	}
	return &r, nil
}

// ListProductAttributes возвращает свободные атрибуты продукта
func (db *CatalogDB) ListProductAttributes(ctx context.Context, productID string) ([]AttributeRow, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT key, value, value_type FROM product_attributes WHERE product_id = ? ORDER BY key", productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list product attributes: %w", err)
	}
	defer rows.Close()

	var attributes []AttributeRow
	for rows.Next() {
		var a AttributeRow
		if err := rows.Scan(&a.Key, &a.Value, &a.ValueType); err != nil {
			return nil, fmt.Errorf("failed to scan attribute: %w", err)
		}
		attributes = append(attributes, a)
	}
	return attributes, rows.Err()
}

// ListProductImages возвращает изображения продукта в порядке sort_order
func (db *CatalogDB) ListProductImages(ctx context.Context, productID string) ([]ImageRow, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT url, alt_text, sort_order FROM product_images WHERE product_id = ? ORDER BY sort_order", productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list product images: %w", err)
	}
	defer rows.Close()

	var images []ImageRow
	for rows.Next() {
		var img ImageRow
		if err := rows.Scan(&img.URL, &img.AltText, &img.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// GetProvider возвращает карточку поставщика по id
func (db *CatalogDB) GetProvider(ctx context.Context, providerID string) (*Provider, error) {
	var p Provider
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, name, slug, website, contact_email, contact_phone, description
		FROM providers WHERE id = ?`, providerID,
	).Scan(&p.ID, &p.Name, &p.Slug, &p.Website, &p.ContactEmail, &p.ContactPhone, &p.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return &p, nil
}

// ProviderOfferingRow листинг поставщика вместе с продуктом для страницы поставщика
type ProviderOfferingRow struct {
	Offer   OfferRow
	Product ProductSummaryRow
}

// ListProviderOfferings возвращает страницу листингов поставщика, новые первыми
func (db *CatalogDB) ListProviderOfferings(ctx context.Context, providerID string, limit, offset int) ([]ProviderOfferingRow, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT pp.id, pr.id, pr.name, pr.slug,
		       COALESCE(pp.unit_of_measure, ''), pp.currency,
		       pp.list_price_cents, pp.price_cents,
		       pp.inventory_quantity, pp.inventory_updated_at,
		       p.id, p.sku, p.name, COALESCE(p.description, ''),
		       b.id, b.name, b.slug,
		       c.id, c.name, c.slug
		FROM provider_products pp
		JOIN providers pr ON pr.id = pp.provider_id
		JOIN products p ON p.id = pp.product_id
		LEFT JOIN brands b ON b.id = p.brand_id
		LEFT JOIN categories c ON c.id = p.default_category_id
		WHERE pp.provider_id = ?
		ORDER BY pp.created_at DESC, pp.id
		LIMIT ? OFFSET ?`,
		providerID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider offerings: %w", err)
	}
	defer rows.Close()

	var offerings []ProviderOfferingRow
	for rows.Next() {
		var o ProviderOfferingRow
		var listPrice, priceCents sql.NullInt64
		var inventoryQty sql.NullFloat64
		var inventoryAt sql.NullTime
		if err := rows.Scan(
			&o.Offer.ID, &o.Offer.ProviderID, &o.Offer.ProviderName, &o.Offer.ProviderSlug,
			&o.Offer.UnitOfMeasure, &o.Offer.Currency,
			&listPrice, &priceCents, &inventoryQty, &inventoryAt,
			&o.Product.ID, &o.Product.SKU, &o.Product.Name, &o.Product.Description,
			&o.Product.BrandID, &o.Product.BrandName, &o.Product.BrandSlug,
			&o.Product.CategoryID, &o.Product.CategoryName, &o.Product.CategorySlug,
		); err != nil {
			return nil, fmt.Errorf("failed to scan provider offering: %w", err)
		}
		if listPrice.Valid {
			o.Offer.ListPriceCents = &listPrice.Int64
		}
		if priceCents.Valid {
			o.Offer.PriceCents = &priceCents.Int64
		}
		if inventoryQty.Valid {
			o.Offer.InventoryQuantity = &inventoryQty.Float64
		}
		if inventoryAt.Valid {
			o.Offer.InventoryUpdatedAt = &inventoryAt.Time
		}
		o.Product.ProviderCount = 1
		offerings = append(offerings, o)
	}

	return offerings, rows.Err()
}

// CountProviderOfferings возвращает общее число листингов поставщика
func (db *CatalogDB) CountProviderOfferings(ctx context.Context, providerID string) (int, error) {
	var total int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM provider_products WHERE provider_id = ?", providerID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to count provider offerings: %w", err)
	}
	return total, nil
}

// scanOffers читает строки листингов из результата запроса
func scanOffers(rows *sql.Rows) ([]OfferRow, error) {
	var offers []OfferRow
	for rows.Next() {
		var o OfferRow
		var listPrice, priceCents sql.NullInt64
		var inventoryQty sql.NullFloat64
		var inventoryAt sql.NullTime
		if err := rows.Scan(
			&o.ID, &o.ProviderID, &o.ProviderName, &o.ProviderSlug,
			&o.UnitOfMeasure, &o.Currency,
			&listPrice, &priceCents, &inventoryQty, &inventoryAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		if listPrice.Valid {
			o.ListPriceCents = &listPrice.Int64
		}
		if priceCents.Valid {
			o.PriceCents = &priceCents.Int64
		}
		if inventoryQty.Valid {
			o.InventoryQuantity = &inventoryQty.Float64
		}
		if inventoryAt.Valid {
			o.InventoryUpdatedAt = &inventoryAt.Time
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}
