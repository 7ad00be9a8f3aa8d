package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"catalogserver/normalization"
)

// IngestBatch одна транзакция загрузки прайс-листа
// Все upsert-операции батча выполняются в ней и фиксируются атомарно
type IngestBatch struct {
	tx *sql.Tx
}

// BeginIngest открывает транзакцию загрузки
func (db *CatalogDB) BeginIngest(ctx context.Context) (*IngestBatch, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin ingest transaction: %w", err)
	}
	return &IngestBatch{tx: tx}, nil
}

// Commit фиксирует транзакцию загрузки
func (b *IngestBatch) Commit() error {
	if err := b.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ingest transaction: %w", err)
	}
	return nil
}

// Rollback откатывает транзакцию загрузки
// Безопасен после успешного Commit (ошибка игнорируется вызывающим через defer)
func (b *IngestBatch) Rollback() error {
	return b.tx.Rollback()
}

// FindProviderIDByName ищет поставщика по имени без учета регистра
// Возвращает пустую строку, если поставщик не найден
func (b *IngestBatch) FindProviderIDByName(name string) (string, error) {
	var id string
	err := b.tx.QueryRow("SELECT id FROM providers WHERE name = ? COLLATE NOCASE", name).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find provider by name: %w", err)
	}
	return id, nil
}

// InsertProvider создает нового поставщика с уникальным slug
// Конкурентная вставка того же имени разрешается уникальным ограничением:
// проигравший повторяет поиск вместо ошибки
func (b *IngestBatch) InsertProvider(name string) (string, error) {
	slug, err := b.uniqueSlug("providers", name)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	result, err := b.tx.Exec(
		"INSERT INTO providers (id, name, slug) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING",
		id, name, slug,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert provider: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		// Проиграли гонку за имя: переиспользуем существующую запись
		return b.FindProviderIDByName(name)
	}
	return id, nil
}

// FindBrandIDByName ищет бренд по имени без учета регистра
func (b *IngestBatch) FindBrandIDByName(name string) (string, error) {
	var id string
	err := b.tx.QueryRow("SELECT id FROM brands WHERE name = ? COLLATE NOCASE", name).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find brand by name: %w", err)
	}
	return id, nil
}

// InsertBrand создает новый бренд
func (b *IngestBatch) InsertBrand(name string) (string, error) {
	slug, err := b.uniqueSlug("brands", name)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	result, err := b.tx.Exec(
		"INSERT INTO brands (id, name, slug) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING",
		id, name, slug,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert brand: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return b.FindBrandIDByName(name)
	}
	return id, nil
}

// FindCategoryIDByName ищет категорию по имени без учета регистра
func (b *IngestBatch) FindCategoryIDByName(name string) (string, error) {
	var id string
	err := b.tx.QueryRow("SELECT id FROM categories WHERE name = ? COLLATE NOCASE", name).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find category by name: %w", err)
	}
	return id, nil
}

// InsertCategory создает новую категорию (иерархия плоская, parent_id не заполняется)
func (b *IngestBatch) InsertCategory(name string) (string, error) {
	slug, err := b.uniqueSlug("categories", name)
	if err != nil {
		return "", err
	}

	id := uuid.New().String()
	result, err := b.tx.Exec(
		"INSERT INTO categories (id, name, slug) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING",
		id, name, slug,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert category: %w", err)
	}

	if affected, _ := result.RowsAffected(); affected == 0 {
		return b.FindCategoryIDByName(name)
	}
	return id, nil
}

// ProductUpsert данные для upsert продукта по SKU
type ProductUpsert struct {
	SKU         string
	Name        string
	Description string
	BrandID     string // пустая строка = не задан
	CategoryID  string
}

// UpsertProduct создает или обновляет продукт по натуральному ключу SKU
// Непустые входящие значения обновляют поля; пустые никогда не затирают заполненные
// Возвращает id продукта и признак создания новой записи
func (b *IngestBatch) UpsertProduct(p ProductUpsert) (string, bool, error) {
	var existingID string
	err := b.tx.QueryRow("SELECT id FROM products WHERE sku = ? COLLATE NOCASE", p.SKU).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return "", false, fmt.Errorf("failed to look up product by sku: %w", err)
	}

	if existingID != "" {
		_, err = b.tx.Exec(`
			UPDATE products SET
				name = CASE WHEN ? <> '' THEN ? ELSE name END,
				description = CASE WHEN ? <> '' THEN ? ELSE description END,
				brand_id = CASE WHEN ? <> '' THEN ? ELSE brand_id END,
				default_category_id = CASE WHEN ? <> '' THEN ? ELSE default_category_id END,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			p.Name, p.Name,
			p.Description, p.Description,
			p.BrandID, p.BrandID,
			p.CategoryID, p.CategoryID,
			existingID,
		)
		if err != nil {
			return "", false, fmt.Errorf("failed to update product: %w", err)
		}
		return existingID, false, nil
	}

	id := uuid.New().String()
	_, err = b.tx.Exec(
		"INSERT INTO products (id, sku, name, description, brand_id, default_category_id) VALUES (?, ?, ?, ?, ?, ?)",
		id, p.SKU, p.Name, nullIfEmpty(p.Description), nullIfEmpty(p.BrandID), nullIfEmpty(p.CategoryID),
	)
	if err != nil {
		return "", false, fmt.Errorf("failed to insert product: %w", err)
	}
	return id, true, nil
}

// ListingUpsert данные для upsert листинга по ключу (provider, product)
type ListingUpsert struct {
	ProviderID        string
	ProductID         string
	UnitOfMeasure     string
	Currency          string
	ListPriceCents    *int64
	PriceCents        *int64
	InventoryQuantity *float64
	InventoryUpdated  *time.Time
}

// UpsertListing создает или обновляет листинг поставщика
// Повторная загрузка той же пары (поставщик, SKU) обновляет цены и остатки,
// а не создает дубликат. Возвращает id листинга и признак создания
func (b *IngestBatch) UpsertListing(l ListingUpsert) (string, bool, error) {
	var existingID string
	err := b.tx.QueryRow(
		"SELECT id FROM provider_products WHERE provider_id = ? AND product_id = ?",
		l.ProviderID, l.ProductID,
	).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return "", false, fmt.Errorf("failed to look up listing: %w", err)
	}

	if existingID != "" {
		_, err = b.tx.Exec(`
			UPDATE provider_products SET
				unit_of_measure = ?,
				currency = ?,
				list_price_cents = ?,
				price_cents = ?,
				inventory_quantity = ?,
				inventory_updated_at = ?,
				active = 1,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			l.UnitOfMeasure, l.Currency, l.ListPriceCents, l.PriceCents,
			l.InventoryQuantity, l.InventoryUpdated, existingID,
		)
		if err != nil {
			return "", false, fmt.Errorf("failed to update listing: %w", err)
		}
		return existingID, false, nil
	}

	id := uuid.New().String()
	_, err = b.tx.Exec(`
		INSERT INTO provider_products
			(id, provider_id, product_id, unit_of_measure, currency,
			 list_price_cents, price_cents, inventory_quantity, inventory_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider_id, product_id) DO UPDATE SET
			unit_of_measure = excluded.unit_of_measure,
			currency = excluded.currency,
			list_price_cents = excluded.list_price_cents,
			price_cents = excluded.price_cents,
			inventory_quantity = excluded.inventory_quantity,
			inventory_updated_at = excluded.inventory_updated_at,
			active = 1,
			updated_at = CURRENT_TIMESTAMP`,
		id, l.ProviderID, l.ProductID, l.UnitOfMeasure, l.Currency,
		l.ListPriceCents, l.PriceCents, l.InventoryQuantity, l.InventoryUpdated,
	)
	if err != nil {
		return "", false, fmt.Errorf("failed to insert listing: %w", err)
	}
	return id, true, nil
}

// UpsertListingAttribute сохраняет свободный атрибут листинга
func (b *IngestBatch) UpsertListingAttribute(listingID, key, value string) error {
	_, err := b.tx.Exec(`
		INSERT INTO provider_product_attributes (id, provider_product_id, key, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(provider_product_id, key) DO UPDATE SET value = excluded.value`,
		uuid.New().String(), listingID, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert listing attribute: %w", err)
	}
	return nil
}

// uniqueSlug подбирает уникальный slug в таблице, добавляя числовой суффикс при коллизии
func (b *IngestBatch) uniqueSlug(table, name string) (string, error) {
	base := normalization.Slugify(name)
	slug := base
	for counter := 2; ; counter++ {
		var exists int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE slug = ?", table)
		if err := b.tx.QueryRow(query, slug).Scan(&exists); err != nil {
			return "", fmt.Errorf("failed to check slug uniqueness: %w", err)
		}
		if exists == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, counter)
	}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
