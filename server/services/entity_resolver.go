package services

import (
	"fmt"

	"catalogserver/database"
	"catalogserver/normalization"
)

// EntityResolver разрешает имена поставщиков, брендов и категорий в id записей
// Кэш живет в рамках одной партии загрузки: повторные имена не ходят в базу
type EntityResolver struct {
	batch *database.IngestBatch

	providers  map[string]string // нормализованное имя -> id
	brands     map[string]string
	categories map[string]string

	providersCreated  int
	brandsCreated     int
	categoriesCreated int
}

// NewEntityResolver создает резолвер, привязанный к транзакции загрузки
func NewEntityResolver(batch *database.IngestBatch) *EntityResolver {
	return &EntityResolver{
		batch:      batch,
		providers:  make(map[string]string),
		brands:     make(map[string]string),
		categories: make(map[string]string),
	}
}

// ResolveProvider возвращает id поставщика, создавая запись при необходимости
func (er *EntityResolver) ResolveProvider(name string) (string, error) {
	return er.resolve(name, er.providers,
		er.batch.FindProviderIDByName, er.batch.InsertProvider, &er.providersCreated)
}

// ResolveBrand возвращает id бренда; пустое имя дает пустой id без ошибки
func (er *EntityResolver) ResolveBrand(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	return er.resolve(name, er.brands,
		er.batch.FindBrandIDByName, er.batch.InsertBrand, &er.brandsCreated)
}

// ResolveCategory возвращает id категории; пустое имя дает пустой id без ошибки
func (er *EntityResolver) ResolveCategory(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	return er.resolve(name, er.categories,
		er.batch.FindCategoryIDByName, er.batch.InsertCategory, &er.categoriesCreated)
}

// resolve общая схема: кэш -> поиск в базе -> создание
func (er *EntityResolver) resolve(
	name string,
	cache map[string]string,
	find func(string) (string, error),
	insert func(string) (string, error),
	created *int,
) (string, error) {
	key := normalization.NormalizeKey(name)
	if id, ok := cache[key]; ok {
		return id, nil
	}

	id, err := find(name)
	if err != nil {
		return "", fmt.Errorf("failed to resolve entity %q: %w", name, err)
	}

	if id == "" {
		id, err = insert(name)
		if err != nil {
			return "", fmt.Errorf("failed to create entity %q: %w", name, err)
		}
		*created++
	}

	cache[key] = id
	return id, nil
}

// ProvidersCreated количество поставщиков, созданных в этой партии
func (er *EntityResolver) ProvidersCreated() int { return er.providersCreated }

// BrandsCreated количество брендов, созданных в этой партии
func (er *EntityResolver) BrandsCreated() int { return er.brandsCreated }

// CategoriesCreated количество категорий, созданных в этой партии
func (er *EntityResolver) CategoriesCreated() int { return er.categoriesCreated }

// ProvidersTouched число различных поставщиков, встреченных в партии
func (er *EntityResolver) ProvidersTouched() int { return len(er.providers) }

// BrandsTouched число различных брендов, встреченных в партии
func (er *EntityResolver) BrandsTouched() int { return len(er.brands) }

// CategoriesTouched число различных категорий, встреченных в партии
func (er *EntityResolver) CategoriesTouched() int { return len(er.categories) }
