package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"catalogserver/database"
	"catalogserver/internal/config"
	"catalogserver/normalization"
	"catalogserver/server/services"
)

// newTestServer поднимает сервер с чистой базой и тестовой конфигурацией
func newTestServer(t *testing.T) (*Server, *database.CatalogDB) {
	t.Helper()

	db, err := database.NewCatalogDB(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	srv := NewServer(cfg, db, nil)
	return srv, db
}

// seedServer загружает минимальный каталог напрямую через сервис
func seedServer(t *testing.T, db *database.CatalogDB) {
	t.Helper()

	svc := services.NewIngestionService(db, nil)
	rows := []normalization.RawOffer{
		{RowNumber: 2, Vendor: "Acme Supply", SKU: "DRL-100", Name: "Cordless Drill",
			Brand: "PowerMax", Category: "Tools", ListPrice: "149.99", Price: "119.99"},
		{RowNumber: 3, Vendor: "Global Parts", SKU: "DRL-100", Name: "Cordless Drill",
			ListPrice: "155.00", Price: "125.00"},
	}
	_, err := svc.Ingest(context.Background(), rows, "seed")
	require.NoError(t, err)
}

// TestServer_SearchEndpoint проверяет поисковый endpoint
func TestServer_SearchEndpoint(t *testing.T) {
	srv, db := newTestServer(t)
	seedServer(t, db)
	engine := srv.buildEngine()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search?q=drill", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp services.SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "DRL-100", resp.Items[0].SKU)
	assert.Equal(t, 2, resp.Items[0].ProviderCount)
}

// TestServer_CompareEndpoint проверяет сравнение цен по SKU
func TestServer_CompareEndpoint(t *testing.T) {
	srv, db := newTestServer(t)
	seedServer(t, db)
	engine := srv.buildEngine()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/compare/drl-100", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp services.CompareResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "DRL-100", resp.SKU)
	require.Len(t, resp.Offers, 2)
	assert.Equal(t, "Acme Supply", resp.Offers[0].ProviderName)
}

// TestServer_CompareUnknownSKU неизвестный SKU дает 200 и пустой список
func TestServer_CompareUnknownSKU(t *testing.T) {
	srv, _ := newTestServer(t)
	engine := srv.buildEngine()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/compare/NOPE-404", nil)
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp services.CompareResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Offers)
}

// TestServer_InvalidFilter неизвестный фасет в фильтре дает 400
func TestServer_InvalidFilter(t *testing.T) {
	srv, _ := newTestServer(t)
	engine := srv.buildEngine()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/search?filters=warehouse:1", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestServer_ProductNotFound неизвестный продукт дает 404
func TestServer_ProductNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	engine := srv.buildEngine()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/products/missing-id", nil)
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestServer_ImportEndpoint проверяет загрузку прайс-листа через HTTP
func TestServer_ImportEndpoint(t *testing.T) {
	srv, db := newTestServer(t)
	engine := srv.buildEngine()

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Vendor", "SKU", "Name", "Price"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Acme Supply", "DRL-100", "Cordless Drill", "119.99"}))

	var workbook bytes.Buffer
	require.NoError(t, f.Write(&workbook))
	require.NoError(t, f.Close())

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "pricelist.xlsx")
	require.NoError(t, err)
	_, err = part.Write(workbook.Bytes())
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/import", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var report services.IngestionReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 1, report.RowsAccepted)

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Products)
}

// TestServer_HealthAndStats проверяет служебные endpoint'ы
func TestServer_HealthAndStats(t *testing.T) {
	srv, db := newTestServer(t)
	seedServer(t, db)
	engine := srv.buildEngine()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var stats database.CatalogStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Products)
	assert.Equal(t, 2, stats.Listings)
}
