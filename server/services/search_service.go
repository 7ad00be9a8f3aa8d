package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"catalogserver/database"
	"catalogserver/normalization"
	"catalogserver/normalization/algorithms"
	apperrors "catalogserver/server/errors"
)

// fuzzyThreshold минимальная триграммная схожесть для нечеткого совпадения
const fuzzyThreshold = 0.3

// Транспозиции соседних букв триграммы недооценивают, поэтому слова
// в пределах одной правки тоже принимаются (только от этой длины)
const (
	fuzzyMaxEdits   = 1
	fuzzyMinEditLen = 4
)

// SearchParams параметры поискового запроса
type SearchParams struct {
	Query   string
	Filters string // грамматика "provider:id1,id2;brand:id3;category:id4"
	Sort    string
	Page    int
	PerPage int
}

// Filters разобранные фильтры по фасетам
type Filters struct {
	ProviderIDs []string
	BrandIDs    []string
	CategoryIDs []string
}

// ParseFilters разбирает строку фильтров
// Формат: пары "фасет:id1,id2" через точку с запятой; неизвестный фасет - ошибка
func ParseFilters(raw string) (Filters, error) {
	var f Filters
	if strings.TrimSpace(raw) == "" {
		return f, nil
	}

	for _, clause := range strings.Split(raw, ";") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}

		parts := strings.SplitN(clause, ":", 2)
		if len(parts) != 2 {
			return f, fmt.Errorf("invalid filter clause %q: expected facet:id1,id2", clause)
		}

		facet := strings.ToLower(strings.TrimSpace(parts[0]))
		var ids []string
		for _, id := range strings.Split(parts[1], ",") {
			id = strings.TrimSpace(id)
			if id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			continue
		}

		switch facet {
		case "provider":
			f.ProviderIDs = append(f.ProviderIDs, ids...)
		case "brand":
			f.BrandIDs = append(f.BrandIDs, ids...)
		case "category":
			f.CategoryIDs = append(f.CategoryIDs, ids...)
		default:
			return f, fmt.Errorf("unknown filter facet %q", facet)
		}
	}

	return f, nil
}

// ParseSortKey разбирает ключ сортировки; пустая строка - релевантность
func ParseSortKey(raw string) (database.SortKey, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "relevance":
		return database.SortRelevance, nil
	case "price":
		return database.SortPriceAsc, nil
	case "price_desc":
		return database.SortPriceDesc, nil
	case "name":
		return database.SortNameAsc, nil
	case "name_desc":
		return database.SortNameDesc, nil
	default:
		return database.SortRelevance, fmt.Errorf("unknown sort key %q", raw)
	}
}

// ProductSummary карточка продукта в поисковой выдаче
type ProductSummary struct {
	ID            string      `json:"id"`
	SKU           string      `json:"sku"`
	Name          string      `json:"name"`
	Description   string      `json:"description,omitempty"`
	Brand         *FacetValue `json:"brand"`
	Category      *FacetValue `json:"category"`
	ProviderCount int         `json:"provider_count"`
	MinPrice      *float64    `json:"min_price"`
	MaxPrice      *float64    `json:"max_price"`
}

// FacetValue значение фасета в карточке или блоке фасетов
type FacetValue struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug,omitempty"`
	Count int    `json:"count,omitempty"`
}

// SearchResponse ответ поискового запроса
type SearchResponse struct {
	Items   []ProductSummary        `json:"items"`
	Total   int                     `json:"total"`
	Page    int                     `json:"page"`
	PerPage int                     `json:"per_page"`
	Fuzzy   bool                    `json:"fuzzy"`
	Facets  map[string][]FacetValue `json:"facets"`
}

// SearchService сервис каталожного поиска с фасетами и нечетким запасным поиском
type SearchService struct {
	db           *database.CatalogDB
	stemmer      *algorithms.EnglishStemmer
	trigram      *algorithms.TrigramSimilarity
	editDistance *algorithms.DamerauLevenshtein
	logger       *slog.Logger

	defaultPerPage int
	maxPerPage     int
}

// NewSearchService создает новый поисковый сервис
func NewSearchService(db *database.CatalogDB, defaultPerPage, maxPerPage int, logger *slog.Logger) *SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchService{
		db:             db,
		stemmer:        algorithms.NewEnglishStemmer(),
		trigram:        algorithms.NewTrigramSimilarity(),
		editDistance:   algorithms.NewDamerauLevenshtein(),
		logger:         logger,
		defaultPerPage: defaultPerPage,
		maxPerPage:     maxPerPage,
	}
}

// Search выполняет поиск по каталогу
// При нулевой выдаче текстового запроса включается нечеткий поиск
// по триграммной схожести имен и SKU
func (ss *SearchService) Search(ctx context.Context, params SearchParams) (*SearchResponse, error) {
	filters, err := ParseFilters(params.Filters)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid filters", err)
	}

	sortKey, err := ParseSortKey(params.Sort)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid sort key", err)
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	perPage := params.PerPage
	if perPage < 1 {
		perPage = ss.defaultPerPage
	}
	if perPage > ss.maxPerPage {
		perPage = ss.maxPerPage
	}
	offset := (page - 1) * perPage

	conditions := database.SearchConditions{
		RawQuery:    strings.ToLower(strings.TrimSpace(params.Query)),
		QueryTokens: ss.tokenize(params.Query),
		ProviderIDs: filters.ProviderIDs,
		BrandIDs:    filters.BrandIDs,
		CategoryIDs: filters.CategoryIDs,
	}

	total, err := ss.db.CountProducts(ctx, conditions)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to count products", err)
	}

	fuzzy := false
	if total == 0 && conditions.RawQuery != "" {
		ids, err := ss.fuzzyMatch(ctx, conditions.RawQuery)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			fuzzy = true
			// Фасетные фильтры остаются условиями поверх отобранных id:
			// счетчик фасета с исключением собственного фильтра должен
			// видеть всех нечетких кандидатов, а не уже суженный набор
			conditions = database.SearchConditions{
				ProviderIDs: filters.ProviderIDs,
				BrandIDs:    filters.BrandIDs,
				CategoryIDs: filters.CategoryIDs,
				ProductIDs:  ids,
			}
			total, err = ss.db.CountProducts(ctx, conditions)
			if err != nil {
				return nil, apperrors.NewInternalError("failed to count fuzzy matches", err)
			}
			ss.logger.Debug("fuzzy fallback engaged", "query", params.Query, "matches", len(ids))
		}
	}

	var rows []database.ProductSummaryRow
	if fuzzy && sortKey == database.SortRelevance {
		// Страница нарезается по глобальному порядку схожести:
		// LIMIT/OFFSET в SQL резал бы выдачу по имени
		all, err := ss.db.SearchProducts(ctx, conditions, sortKey, len(conditions.ProductIDs), 0)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to search products", err)
		}
		ss.orderBySimilarity(conditions.ProductIDs, all)
		rows = pageSlice(all, offset, perPage)
	} else {
		var err error
		rows, err = ss.db.SearchProducts(ctx, conditions, sortKey, perPage, offset)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to search products", err)
		}
	}

	items := make([]ProductSummary, 0, len(rows))
	for _, row := range rows {
		items = append(items, toProductSummary(row))
	}

	facets, err := ss.collectFacets(ctx, conditions)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Items:   items,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Fuzzy:   fuzzy,
		Facets:  facets,
	}, nil
}

// tokenize разбивает запрос на токены и добавляет их стеммированные формы
// Исходный токен сохраняется: точные вхождения весят наравне с основами
func (ss *SearchService) tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(query)))
	if len(fields) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(fields)*2)
	var tokens []string
	for _, field := range fields {
		if !seen[field] {
			seen[field] = true
			tokens = append(tokens, field)
		}
		stemmed := ss.stemmer.Stem(field)
		if stemmed != "" && !seen[stemmed] {
			seen[stemmed] = true
			tokens = append(tokens, stemmed)
		}
	}
	return tokens
}

// fuzzyMatch отбирает продукты по схожести запроса с именем и SKU
// Сравнение пословное: опечатка в одном слове запроса сопоставляется
// с ближайшим словом имени, а не со всей строкой. Основная метрика -
// триграммная; транспозиции добирает расстояние Дамерау-Левенштейна
// Возвращает id в порядке убывания схожести
func (ss *SearchService) fuzzyMatch(ctx context.Context, query string) ([]string, error) {
	candidates, err := ss.db.ProductsForFuzzy(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load fuzzy candidates", err)
	}

	queryWords := strings.Fields(query)

	type scored struct {
		id    string
		score float64
	}

	var matches []scored
	for _, candidate := range candidates {
		targets := strings.Fields(strings.ToLower(candidate.Name))
		targets = append(targets, strings.ToLower(candidate.SKU))

		var score float64
		for _, queryWord := range queryWords {
			for _, target := range targets {
				if sim := ss.wordSimilarity(queryWord, target); sim > score {
					score = sim
				}
			}
		}
		if score >= fuzzyThreshold {
			matches = append(matches, scored{id: candidate.ID, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.id
	}
	return ids, nil
}

// wordSimilarity схожесть пары слов для нечеткого сопоставления
// Слова в пределах fuzzyMaxEdits правок принимаются даже при низкой
// триграммной схожести: перестановка соседних букв рвет почти все триграммы
func (ss *SearchService) wordSimilarity(queryWord, target string) float64 {
	sim := ss.trigram.Similarity(queryWord, target)
	if sim >= fuzzyThreshold || len(queryWord) < fuzzyMinEditLen {
		return sim
	}
	if ss.editDistance.Distance(queryWord, target) <= fuzzyMaxEdits {
		if editSim := ss.editDistance.Similarity(queryWord, target); editSim > sim {
			return editSim
		}
	}
	return sim
}

// pageSlice вырезает страницу из полной выдачи
func pageSlice(rows []database.ProductSummaryRow, offset, limit int) []database.ProductSummaryRow {
	if offset >= len(rows) {
		return nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

// orderBySimilarity переупорядочивает строки выдачи по позиции id
// в отсортированном списке нечетких совпадений
func (ss *SearchService) orderBySimilarity(orderedIDs []string, rows []database.ProductSummaryRow) {
	pos := make(map[string]int, len(orderedIDs))
	for i, id := range orderedIDs {
		pos[id] = i
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return pos[rows[i].ID] < pos[rows[j].ID]
	})
}

// collectFacets собирает счетчики значений по всем трем фасетам
// Счетчик фасета не учитывает фильтр по самому этому фасету
func (ss *SearchService) collectFacets(ctx context.Context, c database.SearchConditions) (map[string][]FacetValue, error) {
	facets := make(map[string][]FacetValue, 3)
	for _, facet := range []database.FacetKey{database.FacetProvider, database.FacetBrand, database.FacetCategory} {
		counts, err := ss.db.FacetCounts(ctx, c, facet)
		if err != nil {
			return nil, apperrors.NewInternalError(fmt.Sprintf("failed to count %s facet", facet), err)
		}
		values := make([]FacetValue, 0, len(counts))
		for _, row := range counts {
			values = append(values, FacetValue{ID: row.ID, Name: row.Name, Count: row.Count})
		}
		facets[string(facet)] = values
	}
	return facets, nil
}

// toProductSummary переводит строку выдачи в DTO ответа
func toProductSummary(row database.ProductSummaryRow) ProductSummary {
	summary := ProductSummary{
		ID:            row.ID,
		SKU:           row.SKU,
		Name:          row.Name,
		Description:   row.Description,
		ProviderCount: row.ProviderCount,
	}
	if row.BrandID != nil && row.BrandName != nil {
		summary.Brand = &FacetValue{ID: *row.BrandID, Name: *row.BrandName}
		if row.BrandSlug != nil {
			summary.Brand.Slug = *row.BrandSlug
		}
	}
	if row.CategoryID != nil && row.CategoryName != nil {
		summary.Category = &FacetValue{ID: *row.CategoryID, Name: *row.CategoryName}
		if row.CategorySlug != nil {
			summary.Category.Slug = *row.CategorySlug
		}
	}
	if row.MinPriceCents != nil {
		v := normalization.CentsToFloat(*row.MinPriceCents)
		summary.MinPrice = &v
	}
	if row.MaxPriceCents != nil {
		v := normalization.CentsToFloat(*row.MaxPriceCents)
		summary.MaxPrice = &v
	}
	return summary
}
