package algorithms

import (
	"strings"
	"sync"

	"github.com/kljensen/snowball"
)

// EnglishStemmer стемминг английских слов алгоритмом Snowball с кэшированием
// Используется поисковым движком для приведения токенов запроса к основе слова
type EnglishStemmer struct {
	language string
	cache    map[string]string
	mu       sync.RWMutex
}

// NewEnglishStemmer создает новый стеммер для английского языка
func NewEnglishStemmer() *EnglishStemmer {
	return &EnglishStemmer{
		language: "english",
		cache:    make(map[string]string),
	}
}

// Stem возвращает основу слова
// При ошибке стемминга возвращается исходное слово в нижнем регистре
func (s *EnglishStemmer) Stem(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return ""
	}

	s.mu.RLock()
	if cached, ok := s.cache[word]; ok {
		s.mu.RUnlock()
		return cached
	}
	s.mu.RUnlock()

	stemmed, err := snowball.Stem(word, s.language, false)
	if err != nil {
		stemmed = word
	}

	s.mu.Lock()
	s.cache[word] = stemmed
	s.mu.Unlock()

	return stemmed
}

// StemTokens возвращает основы для списка токенов
func (s *EnglishStemmer) StemTokens(tokens []string) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if stemmed := s.Stem(token); stemmed != "" {
			result = append(result, stemmed)
		}
	}
	return result
}
