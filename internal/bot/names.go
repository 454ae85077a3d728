package bot

import (
	"unicode"
	"unicode/utf8"
)

const (
	minNameLength = 2
	maxNameLength = 50
)

// ValidName accepts 2 to 50 characters of Latin letters (accents included),
// spaces, hyphens and apostrophes, with at least one letter.
func ValidName(name string) bool {
	n := utf8.RuneCountInString(name)
	if n < minNameLength || n > maxNameLength {
		return false
	}
	letters := 0
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) && unicode.Is(unicode.Latin, r):
			letters++
		case r == ' ', r == '-', r == '\'', r == '’':
		default:
			return false
		}
	}
	return letters > 0
}
