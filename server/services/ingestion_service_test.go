package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalogserver/database"
	"catalogserver/normalization"
)

// newTestCatalog создает чистую базу каталога во временной директории
func newTestCatalog(t *testing.T) *database.CatalogDB {
	t.Helper()

	db, err := database.NewCatalogDB(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("failed to open test catalog: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// rawOffer собирает сырую строку прайс-листа для тестов
func rawOffer(rowNumber int, vendor, sku, name, listPrice, price string) normalization.RawOffer {
	return normalization.RawOffer{
		RowNumber: rowNumber,
		Vendor:    vendor,
		SKU:       sku,
		Name:      name,
		ListPrice: listPrice,
		Price:     price,
	}
}

// TestIngest_Basic проверяет загрузку партии с созданием всех сущностей
func TestIngest_Basic(t *testing.T) {
	db := newTestCatalog(t)
	svc := NewIngestionService(db, nil)

	rows := []normalization.RawOffer{
		{
			RowNumber: 2, Vendor: "Acme Supply", SKU: "DRL-100",
			Name: "Cordless Drill", Brand: "PowerMax", Category: "Tools",
			ListPrice: "149.99", Price: "119.99", UnitOfMeasure: "EA",
		},
		{
			RowNumber: 3, Vendor: "Global Parts", SKU: "DRL-100",
			Name: "Cordless Drill 18V", ListPrice: "155.00", Price: "125.00",
		},
	}

	report, err := svc.Ingest(context.Background(), rows, "test.xlsx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.RowsAccepted != 2 {
		t.Errorf("rows accepted = %d, want 2", report.RowsAccepted)
	}
	if report.ProductsCreated != 1 {
		t.Errorf("products created = %d, want 1 (same SKU from two vendors)", report.ProductsCreated)
	}
	if report.ProductsUpdated != 1 {
		t.Errorf("products updated = %d, want 1", report.ProductsUpdated)
	}
	if report.ListingsCreated != 2 {
		t.Errorf("listings created = %d, want 2", report.ListingsCreated)
	}
	if report.ProvidersCreated != 2 {
		t.Errorf("providers created = %d, want 2", report.ProvidersCreated)
	}
	if report.BrandsCreated != 1 {
		t.Errorf("brands created = %d, want 1", report.BrandsCreated)
	}
	if report.CategoriesCreated != 1 {
		t.Errorf("categories created = %d, want 1", report.CategoriesCreated)
	}
	if report.ProvidersTouched != 2 || report.BrandsTouched != 1 {
		t.Errorf("touched providers=%d brands=%d, want 2/1",
			report.ProvidersTouched, report.BrandsTouched)
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats.Products != 1 || stats.Listings != 2 || stats.Providers != 2 {
		t.Errorf("stats = %+v, want 1 product, 2 listings, 2 providers", stats)
	}
}

// TestIngest_Idempotent проверяет, что повторная загрузка того же файла
// не создает дубликатов
func TestIngest_Idempotent(t *testing.T) {
	db := newTestCatalog(t)
	svc := NewIngestionService(db, nil)

	rows := []normalization.RawOffer{
		rawOffer(2, "Acme Supply", "DRL-100", "Cordless Drill", "149.99", "119.99"),
		rawOffer(3, "Acme Supply", "BAT-20V", "20V Battery", "59.99", "49.99"),
	}

	first, err := svc.Ingest(context.Background(), rows, "first run")
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	second, err := svc.Ingest(context.Background(), rows, "second run")
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}

	if first.ProductsCreated != 2 || first.ListingsCreated != 2 {
		t.Errorf("first run: created products=%d listings=%d, want 2/2",
			first.ProductsCreated, first.ListingsCreated)
	}
	if second.ProductsCreated != 0 || second.ListingsCreated != 0 {
		t.Errorf("second run: created products=%d listings=%d, want 0/0",
			second.ProductsCreated, second.ListingsCreated)
	}
	if second.ListingsUpdated != 2 {
		t.Errorf("second run: listings updated = %d, want 2", second.ListingsUpdated)
	}

	stats, _ := db.GetStats()
	if stats.Products != 2 || stats.Listings != 2 {
		t.Errorf("after rerun: products=%d listings=%d, want 2/2", stats.Products, stats.Listings)
	}
}

// TestIngest_DuplicateRowsLastWins проверяет дедупликацию внутри партии:
// при повторе пары (поставщик, SKU) побеждает последняя строка
func TestIngest_DuplicateRowsLastWins(t *testing.T) {
	db := newTestCatalog(t)
	svc := NewIngestionService(db, nil)

	rows := []normalization.RawOffer{
		rawOffer(2, "Acme Supply", "DRL-100", "Cordless Drill", "149.99", "119.99"),
		rawOffer(3, "acme supply", "drl-100", "Cordless Drill", "149.99", "99.99"),
	}

	report, err := svc.Ingest(context.Background(), rows, "dupes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.DuplicatesDiscarded != 1 {
		t.Errorf("duplicates discarded = %d, want 1", report.DuplicatesDiscarded)
	}
	if report.ListingsCreated != 1 {
		t.Errorf("listings created = %d, want 1", report.ListingsCreated)
	}

	var priceCents int64
	err = db.GetDB().QueryRow("SELECT price_cents FROM provider_products").Scan(&priceCents)
	if err != nil {
		t.Fatalf("failed to read listing price: %v", err)
	}
	if priceCents != 9999 {
		t.Errorf("price_cents = %d, want 9999 (last row wins)", priceCents)
	}
}

// TestIngest_RejectsIncompleteRows проверяет отбраковку строк без SKU или поставщика
func TestIngest_RejectsIncompleteRows(t *testing.T) {
	db := newTestCatalog(t)
	svc := NewIngestionService(db, nil)

	rows := []normalization.RawOffer{
		rawOffer(2, "", "DRL-100", "Cordless Drill", "", ""),
		rawOffer(3, "Acme Supply", "", "Mystery Item", "", ""),
		rawOffer(4, "Acme Supply", "BAT-20V", "20V Battery", "", "49.99"),
	}

	report, err := svc.Ingest(context.Background(), rows, "partial")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.RowsRejected != 2 {
		t.Fatalf("rows rejected = %d, want 2", report.RowsRejected)
	}
	if report.RowsAccepted != 1 {
		t.Errorf("rows accepted = %d, want 1", report.RowsAccepted)
	}
	for _, rejection := range report.Rejections {
		if rejection.Reason != normalization.ReasonIncompleteRow {
			t.Errorf("rejection reason = %s, want %s", rejection.Reason, normalization.ReasonIncompleteRow)
		}
	}
}

// TestIngest_PriceInvariantViolation проверяет отбраковку строки
// с ценой выше прайсовой; остальная партия загружается
func TestIngest_PriceInvariantViolation(t *testing.T) {
	db := newTestCatalog(t)
	svc := NewIngestionService(db, nil)

	rows := []normalization.RawOffer{
		rawOffer(2, "Acme Supply", "DRL-100", "Cordless Drill", "100.00", "150.00"),
		rawOffer(3, "Acme Supply", "BAT-20V", "20V Battery", "59.99", "49.99"),
	}

	report, err := svc.Ingest(context.Background(), rows, "bad price")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.RowsRejected != 1 {
		t.Fatalf("rows rejected = %d, want 1", report.RowsRejected)
	}
	if report.Rejections[0].Reason != normalization.ReasonPriceInvariant {
		t.Errorf("rejection reason = %s, want %s",
			report.Rejections[0].Reason, normalization.ReasonPriceInvariant)
	}
	if report.PriceViolations != 1 {
		t.Errorf("price violations = %d, want 1", report.PriceViolations)
	}
	if report.RejectedByReason[normalization.ReasonPriceInvariant] != 1 {
		t.Errorf("rejected by reason = %v, want 1 price violation", report.RejectedByReason)
	}
	if report.RowsAccepted != 1 {
		t.Errorf("rows accepted = %d, want 1 (batch still commits)", report.RowsAccepted)
	}

	stats, _ := db.GetStats()
	if stats.Products != 1 {
		t.Errorf("products = %d, want 1 (violating row excluded)", stats.Products)
	}
}

// TestIngest_SyntheticBatch проверяет загрузку большой синтетической партии
// и идемпотентность повторного прогона на тех же данных
func TestIngest_SyntheticBatch(t *testing.T) {
	db := newTestCatalog(t)
	svc := NewIngestionService(db, nil)

	gofakeit.Seed(42)

	vendors := make([]string, 5)
	for i := range vendors {
		vendors[i] = fmt.Sprintf("%s %d", gofakeit.Company(), i+1)
	}

	rows := make([]normalization.RawOffer, 0, 200)
	for i := 0; i < 200; i++ {
		listPrice := gofakeit.Price(50, 500)
		rows = append(rows, normalization.RawOffer{
			RowNumber: i + 2,
			Vendor:    vendors[i%len(vendors)],
			SKU:       fmt.Sprintf("SKU-%05d", i%80), // 80 уникальных продуктов
			Name:      gofakeit.ProductName(),
			Brand:     gofakeit.Company(),
			ListPrice: fmt.Sprintf("%.2f", listPrice),
			Price:     fmt.Sprintf("%.2f", listPrice*0.8),
		})
	}

	first, err := svc.Ingest(context.Background(), rows, "synthetic")
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	if first.RowsRejected != 0 {
		t.Fatalf("rows rejected = %d, want 0: %+v", first.RowsRejected, first.Rejections)
	}
	if first.ProductsCreated != 80 {
		t.Errorf("products created = %d, want 80", first.ProductsCreated)
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats.Products != 80 {
		t.Errorf("products = %d, want 80", stats.Products)
	}
	if stats.Providers != 5 {
		t.Errorf("providers = %d, want 5", stats.Providers)
	}

	second, err := svc.Ingest(context.Background(), rows, "synthetic rerun")
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}
	if second.ProductsCreated != 0 || second.ListingsCreated != 0 || second.ProvidersCreated != 0 {
		t.Errorf("rerun created products=%d listings=%d providers=%d, want 0/0/0",
			second.ProductsCreated, second.ListingsCreated, second.ProvidersCreated)
	}

	after, _ := db.GetStats()
	if after.Listings != stats.Listings {
		t.Errorf("listings changed on rerun: %d -> %d", stats.Listings, after.Listings)
	}
}

// TestIngest_ListingAttributes проверяет сохранение свободных атрибутов листинга
func TestIngest_ListingAttributes(t *testing.T) {
	db := newTestCatalog(t)
	svc := NewIngestionService(db, nil)

	rows := []normalization.RawOffer{
		{
			RowNumber: 2, Vendor: "Acme Supply", SKU: "DRL-100", Name: "Cordless Drill",
			Attributes: map[string]string{"Color": "Blue", "Warranty": "3 years"},
		},
	}

	if _, err := svc.Ingest(context.Background(), rows, "attrs"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	err := db.GetDB().QueryRow("SELECT COUNT(*) FROM provider_product_attributes").Scan(&count)
	if err != nil {
		t.Fatalf("failed to count attributes: %v", err)
	}
	if count != 2 {
		t.Errorf("listing attributes = %d, want 2", count)
	}
}

// TestIngest_ReportString проверяет сводку отчета
func TestIngest_ReportString(t *testing.T) {
	db := newTestCatalog(t)
	svc := NewIngestionService(db, nil)

	rows := []normalization.RawOffer{
		rawOffer(2, "Acme Supply", "DRL-100", "Cordless Drill", "149.99", "119.99"),
	}
	report, err := svc.Ingest(context.Background(), rows, "summary.xlsx")
	require.NoError(t, err)

	summary := report.String()
	assert.Contains(t, summary, "summary.xlsx")
	assert.Contains(t, summary, "rows=1")
	assert.Contains(t, summary, "accepted=1")
}
