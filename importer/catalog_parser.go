package importer

import (
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/xuri/excelize/v2"

	"catalogserver/normalization"
)

// ErrSourceUnreadable структурная ошибка источника: файл не читается,
// лист не найден или отсутствуют обязательные колонки
// Такая ошибка фатальна для всего запуска загрузки
type ErrSourceUnreadable struct {
	Reason string
	Err    error
}

func (e *ErrSourceUnreadable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("source unreadable: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("source unreadable: %s", e.Reason)
}

func (e *ErrSourceUnreadable) Unwrap() error {
	return e.Err
}

// columnIndices индексы найденных колонок листа (-1 = колонка отсутствует)
type columnIndices struct {
	vendor      int
	sku         int
	name        int
	description int
	brand       int
	category    int
	uom         int
	currency    int
	listPrice   int
	price       int
	inventory   int
}

// Синонимы заголовков колонок; сопоставление по нормализованному заголовку
var columnSynonyms = map[string]func(*columnIndices, int){
	"vendor":                   func(c *columnIndices, i int) { c.vendor = i },
	"supplier":                 func(c *columnIndices, i int) { c.vendor = i },
	"provider":                 func(c *columnIndices, i int) { c.vendor = i },
	"sku":                      func(c *columnIndices, i int) { c.sku = i },
	"manufacturer part number": func(c *columnIndices, i int) { c.sku = i },
	"mfr part number":          func(c *columnIndices, i int) { c.sku = i },
	"part number":              func(c *columnIndices, i int) { c.sku = i },
	"name":                     func(c *columnIndices, i int) { c.name = i },
	"product name":             func(c *columnIndices, i int) { c.name = i },
	"description":              func(c *columnIndices, i int) { c.description = i },
	"brand":                    func(c *columnIndices, i int) { c.brand = i },
	"manufacturer":             func(c *columnIndices, i int) { c.brand = i },
	"category":                 func(c *columnIndices, i int) { c.category = i },
	"uom":                      func(c *columnIndices, i int) { c.uom = i },
	"unit":                     func(c *columnIndices, i int) { c.uom = i },
	"unit of measure":          func(c *columnIndices, i int) { c.uom = i },
	"currency":                 func(c *columnIndices, i int) { c.currency = i },
	"list price":               func(c *columnIndices, i int) { c.listPrice = i },
	"msrp":                     func(c *columnIndices, i int) { c.listPrice = i },
	"price":                    func(c *columnIndices, i int) { c.price = i },
	"contract price":           func(c *columnIndices, i int) { c.price = i },
	"naspo price":              func(c *columnIndices, i int) { c.price = i },
	"qty":                      func(c *columnIndices, i int) { c.inventory = i },
	"quantity":                 func(c *columnIndices, i int) { c.inventory = i },
	"quantity on hand":         func(c *columnIndices, i int) { c.inventory = i },
	"inventory":                func(c *columnIndices, i int) { c.inventory = i },
}

// ParseExcelFile парсит Excel-файл прайс-листа поставщиков
// sheetName пустой = первый лист книги
func ParseExcelFile(filePath, sheetName string) ([]normalization.RawOffer, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, &ErrSourceUnreadable{Reason: "failed to open Excel file", Err: err}
	}
	defer f.Close()

	return parseWorkbook(f, sheetName)
}

// ParseExcelReader парсит Excel-книгу из потока (HTTP upload)
func ParseExcelReader(r io.Reader, sheetName string) ([]normalization.RawOffer, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &ErrSourceUnreadable{Reason: "failed to read Excel stream", Err: err}
	}
	defer f.Close()

	return parseWorkbook(f, sheetName)
}

func parseWorkbook(f *excelize.File, sheetName string) ([]normalization.RawOffer, error) {
	if sheetName == "" {
		sheetName = f.GetSheetName(0)
		if sheetName == "" {
			return nil, &ErrSourceUnreadable{Reason: "no sheets found in workbook"}
		}
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, &ErrSourceUnreadable{Reason: fmt.Sprintf("sheet %q not found", sheetName), Err: err}
	}

	// Лист только с заголовком - корректная загрузка нуля строк
	if len(rows) == 0 {
		return nil, &ErrSourceUnreadable{Reason: "sheet has no header row"}
	}

	return parseRows(rows)
}

// parseRows превращает таблицу ячеек в сырые строки прайс-листа
// Первая строка - заголовки; колонки ищутся по синонимам
func parseRows(rows [][]string) ([]normalization.RawOffer, error) {
	headers := rows[0]
	indices, extraColumns := findColumnIndices(headers)

	log.Printf("Found columns - Vendor: %d, SKU: %d, Name: %d, Description: %d, ListPrice: %d, Price: %d, UoM: %d",
		indices.vendor, indices.sku, indices.name, indices.description,
		indices.listPrice, indices.price, indices.uom)

	// Обязательные колонки: без них нельзя построить ни продукт, ни листинг
	var missing []string
	if indices.sku == -1 {
		missing = append(missing, "SKU / Manufacturer Part Number")
	}
	if indices.vendor == -1 {
		missing = append(missing, "Vendor")
	}
	if len(missing) > 0 {
		return nil, &ErrSourceUnreadable{
			Reason: fmt.Sprintf("required columns not found: %s", strings.Join(missing, ", ")),
		}
	}

	var offers []normalization.RawOffer
	for rowIdx := 1; rowIdx < len(rows); rowIdx++ {
		row := rows[rowIdx]
		if isEmptyRow(row) {
			continue
		}

		offer := normalization.RawOffer{
			RowNumber:         rowIdx + 1, // нумерация строк листа с единицы
			Vendor:            cellAt(row, indices.vendor),
			SKU:               cellAt(row, indices.sku),
			Name:              cellAt(row, indices.name),
			Description:       cellAt(row, indices.description),
			Brand:             cellAt(row, indices.brand),
			Category:          cellAt(row, indices.category),
			UnitOfMeasure:     cellAt(row, indices.uom),
			Currency:          cellAt(row, indices.currency),
			ListPrice:         cellAt(row, indices.listPrice),
			Price:             cellAt(row, indices.price),
			InventoryQuantity: cellAt(row, indices.inventory),
		}

		// Неопознанные колонки сохраняются как свободные атрибуты листинга
		for colIdx, header := range extraColumns {
			value := cellAt(row, colIdx)
			if value == "" {
				continue
			}
			if offer.Attributes == nil {
				offer.Attributes = make(map[string]string)
			}
			offer.Attributes[header] = value
		}

		offers = append(offers, offer)
	}

	return offers, nil
}

// findColumnIndices ищет индексы известных колонок по заголовкам
// Возвращает также неопознанные колонки: индекс -> исходный заголовок
func findColumnIndices(headers []string) (columnIndices, map[int]string) {
	indices := columnIndices{
		vendor: -1, sku: -1, name: -1, description: -1, brand: -1,
		category: -1, uom: -1, currency: -1, listPrice: -1, price: -1, inventory: -1,
	}
	extra := make(map[int]string)

	for i, header := range headers {
		normalized := strings.ToLower(strings.TrimSpace(header))
		if assign, ok := columnSynonyms[normalized]; ok {
			assign(&indices, i)
		} else if normalized != "" {
			extra[i] = strings.TrimSpace(header)
		}
	}

	return indices, extra
}

// cellAt безопасно извлекает ячейку строки (короткие строки дают пустое значение)
func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// isEmptyRow проверяет, что строка не содержит значений
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
