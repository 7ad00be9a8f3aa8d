package normalization

import (
	"testing"
)

// TestCleanRow_Basic проверяет нормализацию обычной строки прайс-листа
func TestCleanRow_Basic(t *testing.T) {
	raw := RawOffer{
		RowNumber:     2,
		Vendor:        "  Acme   Corp ",
		SKU:           " ABC-123 ",
		Description:   "Cordless  drill,  20V",
		UnitOfMeasure: "EA",
		ListPrice:     "$1,234.50",
		Price:         "999.99",
	}

	clean, rejection := CleanRow(raw)
	if rejection != nil {
		t.Fatalf("CleanRow() unexpected rejection: %+v", rejection)
	}

	if clean.Vendor != "Acme Corp" {
		t.Errorf("Expected vendor 'Acme Corp', got %q", clean.Vendor)
	}
	if clean.VendorKey != "acme corp" {
		t.Errorf("Expected vendor key 'acme corp', got %q", clean.VendorKey)
	}
	if clean.SKU != "ABC-123" {
		t.Errorf("Expected SKU 'ABC-123', got %q", clean.SKU)
	}
	if clean.Name != "Cordless drill, 20V" {
		t.Errorf("Expected name from description, got %q", clean.Name)
	}
	if clean.UnitOfMeasure != "each" {
		t.Errorf("Expected unit 'each', got %q", clean.UnitOfMeasure)
	}
	if clean.Currency != "USD" {
		t.Errorf("Expected default currency USD, got %q", clean.Currency)
	}
	if clean.ListPriceCents == nil || *clean.ListPriceCents != 123450 {
		t.Errorf("Expected list price 123450 cents, got %v", clean.ListPriceCents)
	}
	if clean.PriceCents == nil || *clean.PriceCents != 99999 {
		t.Errorf("Expected price 99999 cents, got %v", clean.PriceCents)
	}
}

// TestCleanRow_IncompleteRow проверяет отклонение строк без SKU или поставщика
func TestCleanRow_IncompleteRow(t *testing.T) {
	tests := []struct {
		name string
		raw  RawOffer
	}{
		{"no sku and no vendor", RawOffer{RowNumber: 3, Description: "something"}},
		{"no vendor", RawOffer{RowNumber: 4, SKU: "ABC-1"}},
		{"no sku", RawOffer{RowNumber: 5, Vendor: "Acme"}},
		{"whitespace only", RawOffer{RowNumber: 6, SKU: "   ", Vendor: " \t "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clean, rejection := CleanRow(tt.raw)
			if clean != nil {
				t.Fatalf("Expected rejection, got clean row %+v", clean)
			}
			if rejection.Reason != ReasonIncompleteRow {
				t.Errorf("Expected reason %s, got %s", ReasonIncompleteRow, rejection.Reason)
			}
			if rejection.RowNumber != tt.raw.RowNumber {
				t.Errorf("Expected row number %d, got %d", tt.raw.RowNumber, rejection.RowNumber)
			}
		})
	}
}

// TestCleanRow_NameFallsBackToSKU проверяет, что при пустых имени и описании именем становится SKU
func TestCleanRow_NameFallsBackToSKU(t *testing.T) {
	clean, rejection := CleanRow(RawOffer{RowNumber: 1, Vendor: "Acme", SKU: "XYZ-9"})
	if rejection != nil {
		t.Fatalf("Unexpected rejection: %+v", rejection)
	}
	if clean.Name != "XYZ-9" {
		t.Errorf("Expected name XYZ-9, got %q", clean.Name)
	}
}

// TestParsePriceCents проверяет разбор ценовых ячеек
func TestParsePriceCents(t *testing.T) {
	tests := []struct {
		input    string
		expected *int64
	}{
		{"$1,234.50", ptr(int64(123450))},
		{"999.99", ptr(int64(99999))},
		{"10", ptr(int64(1000))},
		{"0.05", ptr(int64(5))},
		{"19.999", ptr(int64(2000))}, // округление до цента
		{"", nil},
		{"-5.00", nil}, // отрицательная цена не попадает в листинги
		{"-$120", nil},
		{"N/A", nil},
		{"n/a", nil},
		{"-", nil},
		{"call for pricing", nil},
	}

	for _, tt := range tests {
		got := ParsePriceCents(tt.input)
		if tt.expected == nil {
			if got != nil {
				t.Errorf("ParsePriceCents(%q) = %d, expected nil", tt.input, *got)
			}
			continue
		}
		if got == nil {
			t.Errorf("ParsePriceCents(%q) = nil, expected %d", tt.input, *tt.expected)
			continue
		}
		if *got != *tt.expected {
			t.Errorf("ParsePriceCents(%q) = %d, expected %d", tt.input, *got, *tt.expected)
		}
	}
}

// TestCanonicalUnit проверяет канонизацию единиц измерения
func TestCanonicalUnit(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"EA", "each"},
		{"Each", "each"},
		{"ea.", "each"},
		{"BX", "box"},
		{"doz", "dozen"},
		{"", "each"},
		{"Pallet", "Pallet"}, // неизвестный токен проходит без изменений
	}

	for _, tt := range tests {
		if got := CanonicalUnit(tt.input); got != tt.expected {
			t.Errorf("CanonicalUnit(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

// TestSlugify проверяет построение slug из имени
func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Acme Corp", "acme-corp"},
		{"W.W. Grainger, Inc.", "w-w-grainger-inc"},
		{"  ", "item"},
		{"---", "item"},
	}

	for _, tt := range tests {
		if got := Slugify(tt.input); got != tt.expected {
			t.Errorf("Slugify(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func ptr[T any](v T) *T {
	return &v
}
