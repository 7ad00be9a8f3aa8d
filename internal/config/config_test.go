package config

import (
	"testing"
	"time"
)

// TestLoadConfig_Defaults проверяет загрузку конфигурации со значениями по умолчанию
func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("Expected default port 8000, got %s", cfg.Port)
	}
	if cfg.DatabasePath != "catalog.db" {
		t.Errorf("Expected default database path catalog.db, got %s", cfg.DatabasePath)
	}
	if cfg.PageSize != 20 {
		t.Errorf("Expected default page size 20, got %d", cfg.PageSize)
	}
	if cfg.MaxPageSize != 100 {
		t.Errorf("Expected default max page size 100, got %d", cfg.MaxPageSize)
	}
}

// TestLoadConfig_FromEnv проверяет загрузку конфигурации из переменных окружения
func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CATALOG_DB_PATH", "/tmp/test_catalog.db")
	t.Setenv("PAGE_SIZE", "50")
	t.Setenv("DB_CONN_MAX_LIFETIME", "10m")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Port)
	}
	if cfg.DatabasePath != "/tmp/test_catalog.db" {
		t.Errorf("Expected database path /tmp/test_catalog.db, got %s", cfg.DatabasePath)
	}
	if cfg.PageSize != 50 {
		t.Errorf("Expected page size 50, got %d", cfg.PageSize)
	}
	if cfg.ConnMaxLifetime != 10*time.Minute {
		t.Errorf("Expected conn max lifetime 10m, got %v", cfg.ConnMaxLifetime)
	}
}

// TestValidate_InvalidPort проверяет валидацию некорректного порта
func TestValidate_InvalidPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected validation error for invalid port")
	}
}

// TestValidate_InvalidLogLevel проверяет валидацию некорректного уровня логирования
func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")

	if _, err := LoadConfig(); err == nil {
		t.Error("Expected validation error for invalid log level")
	}
}
