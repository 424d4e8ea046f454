package voyage

import (
	"strings"
	"unicode"
)

// EstimateEmbeddingTokens approximates the cost of embedding texts at one
// token per four bytes, rounded up, plus two per text.
func EstimateEmbeddingTokens(texts []string) int {
	total := 0
	for _, text := range texts {
		total += (len(text)+3)/4 + 2
	}
	return total
}

// EstimateRerankTokens approximates the cost of a rerank call as the
// number of words in the query and every document.
func EstimateRerankTokens(query string, documents []string) int {
	total := CountWords(query)
	for _, doc := range documents {
		total += CountWords(doc)
	}
	return total
}

// CountWords counts the non-empty runs of letters and digits in text.
func CountWords(text string) int {
	return len(strings.FieldsFunc(text, isSeparator))
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || !(unicode.IsLetter(r) || unicode.IsNumber(r))
}
