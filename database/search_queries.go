package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SortKey закрытый набор вариантов сортировки выдачи
type SortKey int

const (
	SortRelevance SortKey = iota
	SortPriceAsc
	SortPriceDesc
	SortNameAsc
	SortNameDesc
)

// FacetKey закрытый набор фасетов поиска
type FacetKey string

const (
	FacetProvider FacetKey = "provider"
	FacetBrand    FacetKey = "brand"
	FacetCategory FacetKey = "category"
)

// SearchConditions условия отбора продуктов
// QueryTokens и RawQuery приходят уже в нижнем регистре
type SearchConditions struct {
	RawQuery    string   // полный запрос для сопоставления с SKU
	QueryTokens []string // токены запроса (исходные + стеммированные)
	ProviderIDs []string
	BrandIDs    []string
	CategoryIDs []string
	ProductIDs  []string // ограничение по заранее отобранным продуктам (fuzzy fallback)
}

// hasTextQuery признак наличия текстовой части запроса
func (c SearchConditions) hasTextQuery() bool {
	return c.RawQuery != ""
}

// ProductSummaryRow строка выдачи поиска с агрегатами по листингам
type ProductSummaryRow struct {
	ID            string
	SKU           string
	Name          string
	Description   string
	BrandID       *string
	BrandName     *string
	BrandSlug     *string
	CategoryID    *string
	CategoryName  *string
	CategorySlug  *string
	ProviderCount int
	MinPriceCents *int64
	MaxPriceCents *int64
	Score         float64
}

// FacetCountRow значение фасета со счетчиком продуктов
type FacetCountRow struct {
	ID    string
	Name  string
	Count int
}

// ProductLite минимальное представление продукта для нечеткого сопоставления
type ProductLite struct {
	ID   string
	SKU  string
	Name string
}

// buildScoreExpr строит SQL-выражение релевантности
// Точное совпадение SKU весит больше вхождения в имя, имя - больше описания
func buildScoreExpr(c SearchConditions) (string, []interface{}) {
	if !c.hasTextQuery() {
		return "0", nil
	}

	var parts []string
	var args []interface{}

	parts = append(parts, "CASE WHEN LOWER(p.sku) = ? THEN 100 ELSE 0 END")
	args = append(args, c.RawQuery)
	parts = append(parts, "CASE WHEN INSTR(LOWER(p.sku), ?) > 0 THEN 40 ELSE 0 END")
	args = append(args, c.RawQuery)

	for _, token := range c.QueryTokens {
		parts = append(parts, "CASE WHEN INSTR(LOWER(p.name), ?) > 0 THEN 15 ELSE 0 END")
		args = append(args, token)
		parts = append(parts, "CASE WHEN INSTR(LOWER(COALESCE(p.description, '')), ?) > 0 THEN 5 ELSE 0 END")
		args = append(args, token)
	}

	return "(" + strings.Join(parts, " + ") + ")", args
}

// buildWhere строит WHERE-условия отбора
// excludeFacet исключает фильтр одного фасета: его счетчики должны отражать
// "что будет, если выбрать это значение", а не уже суженный набор
func buildWhere(c SearchConditions, excludeFacet FacetKey) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if c.hasTextQuery() {
		scoreExpr, scoreArgs := buildScoreExpr(c)
		conditions = append(conditions, scoreExpr+" > 0")
		args = append(args, scoreArgs...)
	}

	if len(c.ProviderIDs) > 0 && excludeFacet != FacetProvider {
		conditions = append(conditions, fmt.Sprintf(
			"p.id IN (SELECT pp_f.product_id FROM provider_products pp_f WHERE pp_f.active = 1 AND pp_f.provider_id IN (%s))",
			placeholders(len(c.ProviderIDs)),
		))
		args = append(args, toArgs(c.ProviderIDs)...)
	}

	if len(c.BrandIDs) > 0 && excludeFacet != FacetBrand {
		conditions = append(conditions, fmt.Sprintf("p.brand_id IN (%s)", placeholders(len(c.BrandIDs))))
		args = append(args, toArgs(c.BrandIDs)...)
	}

	if len(c.CategoryIDs) > 0 && excludeFacet != FacetCategory {
		conditions = append(conditions, fmt.Sprintf("p.default_category_id IN (%s)", placeholders(len(c.CategoryIDs))))
		args = append(args, toArgs(c.CategoryIDs)...)
	}

	if len(c.ProductIDs) > 0 {
		conditions = append(conditions, fmt.Sprintf("p.id IN (%s)", placeholders(len(c.ProductIDs))))
		args = append(args, toArgs(c.ProductIDs)...)
	}

	if len(conditions) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(conditions, " AND "), args
}

// SearchProducts выполняет отбор продуктов с агрегатами и пагинацией
func (db *CatalogDB) SearchProducts(ctx context.Context, c SearchConditions, sort SortKey, limit, offset int) ([]ProductSummaryRow, error) {
	scoreExpr, scoreArgs := buildScoreExpr(c)
	whereExpr, whereArgs := buildWhere(c, "")

	query := fmt.Sprintf(`
		SELECT p.id, p.sku, p.name, COALESCE(p.description, ''),
		       b.id, b.name, b.slug,
		       c.id, c.name, c.slug,
		       COUNT(DISTINCT pp.provider_id) AS provider_count,
		       MIN(COALESCE(pp.price_cents, pp.list_price_cents)) AS min_price,
		       MAX(COALESCE(pp.price_cents, pp.list_price_cents)) AS max_price,
		       %s AS score
		FROM products p
		LEFT JOIN brands b ON b.id = p.brand_id
		LEFT JOIN categories c ON c.id = p.default_category_id
		LEFT JOIN provider_products pp ON pp.product_id = p.id AND pp.active = 1
		WHERE %s
		GROUP BY p.id
		ORDER BY %s
		LIMIT ? OFFSET ?`,
		scoreExpr, whereExpr, orderClause(sort),
	)

	args := append(append(scoreArgs, whereArgs...), limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	defer rows.Close()

	var results []ProductSummaryRow
	for rows.Next() {
		var r ProductSummaryRow
		var minPrice, maxPrice sql.NullInt64
		if err := rows.Scan(
			&r.ID, &r.SKU, &r.Name, &r.Description,
			&r.BrandID, &r.BrandName, &r.BrandSlug,
			&r.CategoryID, &r.CategoryName, &r.CategorySlug,
			&r.ProviderCount, &minPrice, &maxPrice, &r.Score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		if minPrice.Valid {
			r.MinPriceCents = &minPrice.Int64
		}
		if maxPrice.Valid {
			r.MaxPriceCents = &maxPrice.Int64
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

// CountProducts возвращает полное число совпадений до пагинации
func (db *CatalogDB) CountProducts(ctx context.Context, c SearchConditions) (int, error) {
	whereExpr, whereArgs := buildWhere(c, "")

	var total int
	query := fmt.Sprintf("SELECT COUNT(*) FROM products p WHERE %s", whereExpr)
	if err := db.conn.QueryRowContext(ctx, query, whereArgs...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return total, nil
}

// FacetCounts считает значения одного фасета для текущего контекста фильтров
// Фильтр самого фасета исключается из условий (см. buildWhere)
// Значения упорядочены по убыванию счетчика, затем по имени
func (db *CatalogDB) FacetCounts(ctx context.Context, c SearchConditions, facet FacetKey) ([]FacetCountRow, error) {
	whereExpr, whereArgs := buildWhere(c, facet)

	var query string
	switch facet {
	case FacetProvider:
		query = fmt.Sprintf(`
			SELECT pr.id, pr.name, COUNT(DISTINCT p.id) AS cnt
			FROM products p
			JOIN provider_products pp ON pp.product_id = p.id AND pp.active = 1
			JOIN providers pr ON pr.id = pp.provider_id
			WHERE %s
			GROUP BY pr.id, pr.name
			ORDER BY cnt DESC, pr.name COLLATE NOCASE ASC`, whereExpr)
	case FacetBrand:
		query = fmt.Sprintf(`
			SELECT b.id, b.name, COUNT(DISTINCT p.id) AS cnt
			FROM products p
			JOIN brands b ON b.id = p.brand_id
			WHERE %s
			GROUP BY b.id, b.name
			ORDER BY cnt DESC, b.name COLLATE NOCASE ASC`, whereExpr)
	case FacetCategory:
		query = fmt.Sprintf(`
			SELECT c2.id, c2.name, COUNT(DISTINCT p.id) AS cnt
			FROM products p
			JOIN categories c2 ON c2.id = p.default_category_id
			WHERE %s
			GROUP BY c2.id, c2.name
			ORDER BY cnt DESC, c2.name COLLATE NOCASE ASC`, whereExpr)
	default:
		return nil, fmt.Errorf("unknown facet key: %s", facet)
	}

	rows, err := db.conn.QueryContext(ctx, query, whereArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to count facet %s: %w", facet, err)
	}
	defer rows.Close()

	var counts []FacetCountRow
	for rows.Next() {
		var row FacetCountRow
		if err := rows.Scan(&row.ID, &row.Name, &row.Count); err != nil {
			return nil, fmt.Errorf("failed to scan facet row: %w", err)
		}
		counts = append(counts, row)
	}

	return counts, rows.Err()
}

// ProductsForFuzzy возвращает кандидатов нечеткого сопоставления: все продукты
// Фасетные фильтры сюда не входят: они применяются поверх отобранных id,
// иначе счетчики фасетов с исключением собственного фильтра теряют смысл
func (db *CatalogDB) ProductsForFuzzy(ctx context.Context) ([]ProductLite, error) {
	// Порядок по имени задает разрешение ничьих при равной схожести
	query := "SELECT p.id, p.sku, p.name FROM products p ORDER BY p.name COLLATE NOCASE ASC"
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load fuzzy candidates: %w", err)
	}
	defer rows.Close()

	var products []ProductLite
	for rows.Next() {
		var p ProductLite
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan fuzzy candidate: %w", err)
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

// orderClause возвращает ORDER BY для ключа сортировки
// NULL-цены всегда в конце независимо от направления
func orderClause(sort SortKey) string {
	switch sort {
	case SortPriceAsc:
		return "min_price IS NULL, min_price ASC, p.name COLLATE NOCASE ASC"
	case SortPriceDesc:
		return "max_price IS NULL, max_price DESC, p.name COLLATE NOCASE ASC"
	case SortNameAsc:
		return "p.name COLLATE NOCASE ASC"
	case SortNameDesc:
		return "p.name COLLATE NOCASE DESC"
	default:
		return "score DESC, p.name COLLATE NOCASE ASC"
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(values []string) []interface{} {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
