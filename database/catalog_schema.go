package database

import (
	"database/sql"
	"fmt"
)

// InitCatalogSchema создает схему каталога, если она еще не существует
// Все операции идемпотентны: повторный запуск на существующей базе безопасен
func InitCatalogSchema(conn *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS providers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE COLLATE NOCASE,
			slug TEXT NOT NULL UNIQUE,
			website TEXT,
			contact_email TEXT,
			contact_phone TEXT,
			description TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS brands (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE COLLATE NOCASE,
			slug TEXT NOT NULL UNIQUE,
			description TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		// parent_id оставлен для совместимости со старой схемой, но иерархия категорий плоская
		`CREATE TABLE IF NOT EXISTS categories (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE COLLATE NOCASE,
			slug TEXT NOT NULL UNIQUE,
			description TEXT,
			parent_id TEXT REFERENCES categories(id)
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			sku TEXT NOT NULL UNIQUE COLLATE NOCASE,
			name TEXT NOT NULL,
			description TEXT,
			brand_id TEXT REFERENCES brands(id),
			default_category_id TEXT REFERENCES categories(id),
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS provider_products (
			id TEXT PRIMARY KEY,
			provider_id TEXT NOT NULL REFERENCES providers(id) ON DELETE CASCADE,
			product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			unit_of_measure TEXT,
			currency TEXT NOT NULL DEFAULT 'USD',
			list_price_cents INTEGER,
			price_cents INTEGER,
			inventory_quantity REAL,
			inventory_updated_at TIMESTAMP,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(provider_id, product_id)
		)`,
		`CREATE TABLE IF NOT EXISTS product_attributes (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			value_type TEXT NOT NULL DEFAULT 'string',
			UNIQUE(product_id, key)
		)`,
		`CREATE TABLE IF NOT EXISTS provider_product_attributes (
			id TEXT PRIMARY KEY,
			provider_product_id TEXT NOT NULL REFERENCES provider_products(id) ON DELETE CASCADE,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			value_type TEXT NOT NULL DEFAULT 'string',
			UNIQUE(provider_product_id, key)
		)`,
		`CREATE TABLE IF NOT EXISTS product_images (
			id TEXT PRIMARY KEY,
			product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			alt_text TEXT,
			sort_order INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS ix_products_brand ON products(brand_id)`,
		`CREATE INDEX IF NOT EXISTS ix_products_category ON products(default_category_id)`,
		`CREATE INDEX IF NOT EXISTS ix_products_name ON products(name COLLATE NOCASE)`,
		`CREATE INDEX IF NOT EXISTS ix_provider_products_product ON provider_products(product_id)`,
		`CREATE INDEX IF NOT EXISTS ix_provider_products_provider ON provider_products(provider_id)`,
		`CREATE INDEX IF NOT EXISTS ix_product_images_product ON product_images(product_id)`,
	}

	for _, statement := range statements {
		if _, err := conn.Exec(statement); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}
