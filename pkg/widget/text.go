package widget

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	truncationSuffix = "..."
	fallbackInitial  = "?"
)

// Initials returns the badge letter of a name: its first letter or number, uppercased.
func Initials(name string) string {
	for _, character := range strings.TrimSpace(name) {
		if unicode.IsLetter(character) || unicode.IsNumber(character) {
			return cases.Upper(language.Und).String(string(character))
		}
	}
	return fallbackInitial
}

// Truncate shortens text to at most limit runes followed by an ellipsis.
func Truncate(text string, limit int) string {
	trimmed := strings.TrimSpace(text)
	if limit <= 0 || utf8.RuneCountInString(trimmed) <= limit {
		return trimmed
	}
	runes := []rune(trimmed)
	return string(runes[:limit]) + truncationSuffix
}
