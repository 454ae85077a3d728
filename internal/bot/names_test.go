package bot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"single letter", "J", false},
		{"two letters", "Jo", true},
		{"fifty letters", strings.Repeat("a", 50), true},
		{"fifty one letters", strings.Repeat("a", 51), false},
		{"accents", "José Pérez", true},
		{"hyphen and apostrophe", "María-José O'Neil", true},
		{"typographic apostrophe", "D’Angelo", true},
		{"digits", "Juan2", false},
		{"emoji", "Juan 😀", false},
		{"only separators", "--", false},
		{"punctuation", "Juan!", false},
		{"cyrillic", "Иван", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidName(tt.input))
		})
	}
}

func TestKeyedMutexDropsIdleEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock(testKey)
	assert.Equal(t, 1, k.size())
	unlock()
	assert.Equal(t, 0, k.size())
}
