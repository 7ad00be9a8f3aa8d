package normalization

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// RejectReason причина отклонения строки прайс-листа
type RejectReason string

const (
	// ReasonIncompleteRow строка без SKU или без поставщика
	ReasonIncompleteRow RejectReason = "INCOMPLETE_ROW"
	// ReasonPriceInvariant цена выше прайсовой (price > list_price)
	ReasonPriceInvariant RejectReason = "PRICE_INVARIANT_VIOLATION"
)

// RawOffer сырая строка прайс-листа до нормализации
// Все поля строковые: значения приходят из ячеек таблицы как есть
type RawOffer struct {
	RowNumber         int
	Vendor            string
	SKU               string
	Name              string
	Description       string
	Brand             string
	Category          string
	UnitOfMeasure     string
	Currency          string
	ListPrice         string
	Price             string
	InventoryQuantity string

	// Attributes свободные колонки листа, не вошедшие в фиксированную схему
	Attributes map[string]string
}

// CleanOffer нормализованная строка прайс-листа
// Display-поля сохраняют исходный регистр, Key-поля используются для сопоставления сущностей
type CleanOffer struct {
	RowNumber int

	Vendor    string
	VendorKey string

	SKU    string
	SKUKey string

	Name        string
	Description string

	Brand    string
	BrandKey string

	Category    string
	CategoryKey string

	UnitOfMeasure string
	Currency      string

	ListPriceCents    *int64
	PriceCents        *int64
	InventoryQuantity *float64

	Attributes map[string]string
}

// RowRejection отклоненная строка с причиной
type RowRejection struct {
	RowNumber int          `json:"row_number"`
	Reason    RejectReason `json:"reason"`
	Detail    string       `json:"detail"`
}

// CleanRow нормализует сырую строку прайс-листа
// Возвращает либо очищенную строку, либо причину отклонения
// Нарушение ценового инварианта здесь не проверяется: оно относится к коммиту батча
func CleanRow(raw RawOffer) (*CleanOffer, *RowRejection) {
	vendor := NormalizeText(raw.Vendor)
	sku := NormalizeText(raw.SKU)

	// Строка без SKU или без поставщика не может образовать листинг
	if sku == "" || vendor == "" {
		detail := "missing SKU and vendor name"
		if sku != "" {
			detail = "missing vendor name"
		} else if vendor != "" {
			detail = "missing SKU"
		}
		return nil, &RowRejection{
			RowNumber: raw.RowNumber,
			Reason:    ReasonIncompleteRow,
			Detail:    detail,
		}
	}

	clean := &CleanOffer{
		RowNumber:   raw.RowNumber,
		Vendor:      vendor,
		VendorKey:   NormalizeKey(raw.Vendor),
		SKU:         sku,
		SKUKey:      NormalizeKey(raw.SKU),
		Name:        NormalizeText(raw.Name),
		Description: NormalizeText(raw.Description),
		Brand:       NormalizeText(raw.Brand),
		BrandKey:    NormalizeKey(raw.Brand),
		Category:    NormalizeText(raw.Category),
		CategoryKey: NormalizeKey(raw.Category),
	}

	// Название продукта: явное имя, иначе описание (обрезанное), иначе SKU
	if clean.Name == "" {
		clean.Name = truncate(clean.Description, 255)
	}
	if clean.Name == "" {
		clean.Name = sku
	}

	clean.UnitOfMeasure = CanonicalUnit(raw.UnitOfMeasure)

	clean.Currency = strings.ToUpper(NormalizeText(raw.Currency))
	if clean.Currency == "" {
		clean.Currency = "USD"
	}

	clean.ListPriceCents = ParsePriceCents(raw.ListPrice)
	clean.PriceCents = ParsePriceCents(raw.Price)
	clean.InventoryQuantity = parseQuantity(raw.InventoryQuantity)

	// Свободные атрибуты: чистим ключи и значения, пустые отбрасываем
	for key, value := range raw.Attributes {
		cleanKey := NormalizeText(key)
		cleanValue := NormalizeText(value)
		if cleanKey == "" || cleanValue == "" {
			continue
		}
		if clean.Attributes == nil {
			clean.Attributes = make(map[string]string)
		}
		clean.Attributes[cleanKey] = cleanValue
	}

	return clean, nil
}

// NormalizeText очищает текстовое поле: обрезает края и схлопывает внутренние пробелы
// Регистр сохраняется для отображения
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(text)), " ")
}

// NormalizeKey строит ключ сопоставления: нормализация пробелов + нижний регистр
// Два имени с одинаковым ключом считаются одной сущностью
func NormalizeKey(text string) string {
	return strings.ToLower(NormalizeText(text))
}

var nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify строит URL-совместимый идентификатор из имени
func Slugify(name string) string {
	slug := nonAlphaNum.ReplaceAllString(strings.ToLower(name), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		return "item"
	}
	return slug
}

// Маркеры отсутствующего значения в ценовых ячейках
var missingValueMarkers = map[string]bool{
	"":     true,
	"n/a":  true,
	"na":   true,
	"none": true,
	"null": true,
	"-":    true,
	"--":   true,
}

// ParsePriceCents разбирает ценовую ячейку в центы (фиксированная точность 2 знака)
// Пустая ячейка, "N/A" или нечисловое значение дают nil, а не ошибку
func ParsePriceCents(value string) *int64 {
	cleaned := strings.TrimSpace(value)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, "€", "")
	cleaned = strings.ReplaceAll(cleaned, "£", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")

	if missingValueMarkers[strings.ToLower(cleaned)] {
		return nil
	}

	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	// Отрицательная цена - мусор в ячейке, а не скидка
	if parsed < 0 {
		return nil
	}

	// Округление до цента через строковое представление,
	// чтобы 19.999 из таблицы не превращалось в 1999 центов
	rounded, err := strconv.ParseInt(strings.ReplaceAll(fmt.Sprintf("%.2f", parsed), ".", ""), 10, 64)
	if err != nil {
		return nil
	}
	return &rounded
}

// CentsToFloat переводит центы в денежное значение для API ответов
func CentsToFloat(cents int64) float64 {
	return float64(cents) / 100
}

// Канонические единицы измерения и их синонимы
var unitSynonyms = map[string]string{
	"ea":     "each",
	"ea.":    "each",
	"each":   "each",
	"eaches": "each",
	"bx":     "box",
	"bx.":    "box",
	"box":    "box",
	"cs":     "case",
	"cs.":    "case",
	"case":   "case",
	"pk":     "pack",
	"pk.":    "pack",
	"pack":   "pack",
	"pkg":    "pack",
	"dz":     "dozen",
	"dz.":    "dozen",
	"doz":    "dozen",
	"dozen":  "dozen",
	"pr":     "pair",
	"pr.":    "pair",
	"pair":   "pair",
	"rl":     "roll",
	"rl.":    "roll",
	"roll":   "roll",
	"ft":     "foot",
	"ft.":    "foot",
	"foot":   "foot",
	"set":    "set",
	"st":     "set",
}

// CanonicalUnit приводит единицу измерения к каноническому токену
// Неизвестные токены проходят без изменений (нормализуется только регистр и пробелы)
func CanonicalUnit(unit string) string {
	normalized := NormalizeKey(unit)
	if normalized == "" {
		return "each"
	}
	if canonical, ok := unitSynonyms[normalized]; ok {
		return canonical
	}
	return NormalizeText(unit)
}

// parseQuantity разбирает количество на складе; нечисловое значение дает nil
func parseQuantity(value string) *float64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
	if missingValueMarkers[strings.ToLower(cleaned)] {
		return nil
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &parsed
}

// truncate обрезает строку до максимальной длины в рунах
func truncate(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen])
}
