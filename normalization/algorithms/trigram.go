package algorithms

import (
	"strings"
)

// NGramGenerator генерирует N-граммы из текста
type NGramGenerator struct {
	n int // размер граммы (2 для биграмм, 3 для триграмм)
}

// NewNGramGenerator создает новый генератор N-грамм
func NewNGramGenerator(n int) *NGramGenerator {
	if n < 1 {
		n = 3 // по умолчанию триграммы
	}
	return &NGramGenerator{n: n}
}

// Generate создает N-граммы из текста
// Добавляет padding символы в начале и конце для лучшего сравнения коротких строк
func (ng *NGramGenerator) Generate(text string) []string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return []string{}
	}

	padded := strings.Repeat("_", ng.n-1) + normalized + strings.Repeat("_", ng.n-1)

	var ngrams []string
	runes := []rune(padded)

	for i := 0; i <= len(runes)-ng.n; i++ {
		ngram := string(runes[i : i+ng.n])
		// Пропускаем граммы, состоящие только из padding
		if strings.Trim(ngram, "_") != "" {
			ngrams = append(ngrams, ngram)
		}
	}

	return ngrams
}

// TrigramSimilarity вычисляет схожесть двух строк как коэффициент Жаккара
// над множествами их триграмм. Результат в диапазоне [0, 1]
type TrigramSimilarity struct {
	generator *NGramGenerator
}

// NewTrigramSimilarity создает новый вычислитель триграммной схожести
func NewTrigramSimilarity() *TrigramSimilarity {
	return &TrigramSimilarity{generator: NewNGramGenerator(3)}
}

// Similarity вычисляет схожесть двух строк в диапазоне [0, 1]
func (ts *TrigramSimilarity) Similarity(str1, str2 string) float64 {
	if strings.EqualFold(strings.TrimSpace(str1), strings.TrimSpace(str2)) {
		if strings.TrimSpace(str1) == "" {
			return 0
		}
		return 1
	}

	set1 := toSet(ts.generator.Generate(str1))
	set2 := toSet(ts.generator.Generate(str2))

	if len(set1) == 0 || len(set2) == 0 {
		return 0
	}

	intersection := 0
	for gram := range set1 {
		if set2[gram] {
			intersection++
		}
	}

	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

func toSet(grams []string) map[string]bool {
	set := make(map[string]bool, len(grams))
	for _, gram := range grams {
		set[gram] = true
	}
	return set
}
