package algorithms

// DamerauLevenshtein вычисляет расстояние Дамерау-Левенштейна
// Учитывает вставку, удаление, замену и транспозицию двух соседних символов
type DamerauLevenshtein struct{}

// NewDamerauLevenshtein создает новый вычислитель расстояния Дамерау-Левенштейна
func NewDamerauLevenshtein() *DamerauLevenshtein {
	return &DamerauLevenshtein{}
}

// Distance вычисляет расстояние между двумя строками
// Возвращает минимальное количество операций для преобразования одной строки в другую
func (dl *DamerauLevenshtein) Distance(str1, str2 string) int {
	r1 := []rune(str1)
	r2 := []rune(str2)
	len1 := len(r1)
	len2 := len(r2)

	// Крайние случаи
	if len1 == 0 {
		return len2
	}
	if len2 == 0 {
		return len1
	}

	// Матрица (len1+1) x (len2+1)
	matrix := make([][]int, len1+1)
	for i := range matrix {
		matrix[i] = make([]int, len2+1)
		matrix[i][0] = i
	}
	for j := 0; j <= len2; j++ {
		matrix[0][j] = j
	}

	for i := 1; i <= len1; i++ {
		for j := 1; j <= len2; j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}

			deletion := matrix[i-1][j] + 1
			insertion := matrix[i][j-1] + 1
			substitution := matrix[i-1][j-1] + cost

			min := deletion
			if insertion < min {
				min = insertion
			}
			if substitution < min {
				min = substitution
			}

			// Транспозиция соседних символов
			if i > 1 && j > 1 && r1[i-1] == r2[j-2] && r1[i-2] == r2[j-1] {
				transposition := matrix[i-2][j-2] + 1
				if transposition < min {
					min = transposition
				}
			}

			matrix[i][j] = min
		}
	}

	return matrix[len1][len2]
}

// Similarity вычисляет нормализованную схожесть в диапазоне [0, 1]
// 1 означает идентичные строки, 0 - полностью различные
func (dl *DamerauLevenshtein) Similarity(str1, str2 string) float64 {
	if str1 == str2 {
		return 1
	}

	maxLen := len([]rune(str1))
	if l2 := len([]rune(str2)); l2 > maxLen {
		maxLen = l2
	}
	if maxLen == 0 {
		return 1
	}

	distance := dl.Distance(str1, str2)
	return 1 - float64(distance)/float64(maxLen)
}
