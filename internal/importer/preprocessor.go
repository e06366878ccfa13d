package importer

import (
	"strings"
	"unicode"
)

// Preprocess normalizes metadata text (trim, collapse whitespace).
func Preprocess(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}

// EmbeddingText is the text embedded for a movie when no precomputed embeddings are supplied.
func EmbeddingText(title string, genres []string, overview string) string {
	parts := []string{title}
	if len(genres) > 0 {
		parts = append(parts, strings.Join(genres, ", "))
	}
	if overview != "" {
		parts = append(parts, overview)
	}
	return strings.Join(parts, ". ")
}
