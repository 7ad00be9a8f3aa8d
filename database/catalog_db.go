package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DBConfig конфигурация connection pool базы данных
type DBConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// CatalogDB обертка для работы с базой данных каталога
type CatalogDB struct {
	conn *sql.DB
}

// NewCatalogDB создает новое подключение к базе данных каталога
func NewCatalogDB(dbPath string) (*CatalogDB, error) {
	return NewCatalogDBWithConfig(dbPath, DBConfig{})
}

// NewCatalogDBWithConfig создает новое подключение к базе данных каталога с конфигурацией
func NewCatalogDBWithConfig(dbPath string, config DBConfig) (*CatalogDB, error) {
	// _txlock=immediate: транзакции загрузки сразу берут write lock,
	// читатели при этом не блокируются (WAL)
	conn, err := sql.Open("sqlite3", dbPath+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	// Настройка connection pooling
	if config.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(config.MaxOpenConns)
	} else {
		conn.SetMaxOpenConns(25)
	}

	if config.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(config.MaxIdleConns)
	} else {
		conn.SetMaxIdleConns(5)
	}

	if config.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(config.ConnMaxLifetime)
	} else {
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	// Проверяем подключение
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping catalog database: %w", err)
	}

	// Включаем поддержку FOREIGN KEY constraints в SQLite
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// WAL позволяет читателям работать параллельно с транзакцией загрузки
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Printf("Warning: failed to enable WAL mode: %v", err)
	}

	catalogDB := &CatalogDB{conn: conn}

	// Инициализируем схему
	if err := InitCatalogSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	return catalogDB, nil
}

// Close закрывает подключение к базе данных каталога
func (db *CatalogDB) Close() error {
	return db.conn.Close()
}

// GetDB возвращает указатель на sql.DB для прямого доступа
func (db *CatalogDB) GetDB() *sql.DB {
	return db.conn
}

// CatalogStats сводные счетчики каталога
type CatalogStats struct {
	Products   int `json:"products"`
	Providers  int `json:"providers"`
	Brands     int `json:"brands"`
	Categories int `json:"categories"`
	Listings   int `json:"listings"`
}

// GetStats возвращает сводные счетчики каталога
func (db *CatalogDB) GetStats() (*CatalogStats, error) {
	stats := &CatalogStats{}

	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM products", &stats.Products},
		{"SELECT COUNT(*) FROM providers", &stats.Providers},
		{"SELECT COUNT(*) FROM brands", &stats.Brands},
		{"SELECT COUNT(*) FROM categories", &stats.Categories},
		{"SELECT COUNT(*) FROM provider_products", &stats.Listings},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("failed to collect catalog stats: %w", err)
		}
	}

	return stats, nil
}
