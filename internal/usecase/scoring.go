package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/DRSN-tech/search-backend/internal/domain"
)

const explanationSeparator = " • "

// displayScore переводит скалярное произведение из [-1,1] в [0,1].
func displayScore(dot float64) float64 {
	return clamp01((dot + 1) / 2)
}

// matchLevel возвращает словесную оценку совпадения по итоговому скору.
func matchLevel(score float64) string {
	switch {
	case score > 0.9:
		return "Excellent match"
	case score > 0.75:
		return "Very good match"
	case score > 0.6:
		return "Good match"
	default:
		return "Moderate match"
	}
}

// buildExplanation собирает человекочитаемое объяснение результата:
// уровень совпадения плюс фрагменты о вкладе модальностей.
func buildExplanation(score float64, fused *domain.FusedQuery, hit *domain.SearchHit, query *domain.SearchQuery) string {
	parts := []string{matchLevel(score)}

	hasText := query.HasText()
	hasImage := query.HasImage()

	switch {
	case hasText && hasImage:
		if fused.Scores.ImageContribution > 0.6 {
			parts = append(parts, fmt.Sprintf("Strong visual similarity (%.0f%%)", fused.Scores.ImageContribution*100))
		}
		if fused.Scores.TextContribution > 0.4 {
			parts = append(parts, fmt.Sprintf("Matches text query (%.0f%%)", fused.Scores.TextContribution*100))
		}
		if fused.Scores.ImageTextAlignment > 0.7 {
			parts = append(parts, "Image and text are well-aligned")
		}
	case hasImage:
		parts = append(parts, "Visually similar to your image")
	case hasText:
		if titleMatchesKeywords(hit.Title(), query.Text) {
			parts = append(parts, "Matches query keywords")
		}
	}

	if category := hit.Category(); category != "" && hasText {
		if strings.Contains(strings.ToLower(query.Text), strings.ToLower(category)) {
			parts = append(parts, fmt.Sprintf("In %s category", category))
		}
	}

	return strings.Join(parts, explanationSeparator)
}

// titleMatchesKeywords проверяет, встречается ли в названии товара хотя бы
// одно из первых трех слов запроса.
func titleMatchesKeywords(title, query string) bool {
	words := strings.Fields(strings.ToLower(query))
	if len(words) > 3 {
		words = words[:3]
	}

	lowerTitle := strings.ToLower(title)
	for _, word := range words {
		if strings.Contains(lowerTitle, word) {
			return true
		}
	}

	return false
}

// applyDiversity штрафует повторы категории: k-е вхождение категории
// умножает скор на (1 - weight*k), после чего результаты пересортировываются.
func applyDiversity(results []domain.SearchResult, weight float64) []domain.SearchResult {
	if weight <= 0 || len(results) < 2 {
		return results
	}

	seen := make(map[string]int, len(results))
	for i := range results {
		occurrences := seen[results[i].Category]
		if occurrences > 0 {
			factor := 1 - weight*float64(occurrences)
			if factor < 0 {
				factor = 0
			}
			results[i].Score *= factor
		}
		seen[results[i].Category] = occurrences + 1
	}

	sortResults(results)
	return results
}

// sortResults упорядочивает результаты по убыванию скора.
// Равные скоры разрешаются по возрастанию идентификатора товара,
// чтобы порядок выдачи был детерминированным.
func sortResults(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ProductID < results[j].ProductID
	})
}
