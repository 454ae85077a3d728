package accounts

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/Ananth-NQI/lineflow-backend/internal/utils"
)

// LocalCreator builds usernames without calling any site. It is used when no
// remote creator is configured.
type LocalCreator struct {
	digits func(n int) (string, error)
}

func NewLocalCreator() *LocalCreator {
	return &LocalCreator{digits: utils.RandomDigits}
}

// Create returns slug(name) + 4 random digits + suffix and the fixed password
func (l *LocalCreator) Create(ctx context.Context, req Request) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if req.FixedPassword == "" {
		return Account{}, &CreateError{Category: CategoryConfigMissing, Message: "fixed password not configured"}
	}
	rnd, err := l.digits(4)
	if err != nil {
		return Account{}, &CreateError{Message: err.Error()}
	}
	return Account{
		Username: Slug(req.Name) + rnd + req.UsernameSuffix,
		Password: req.FixedPassword,
	}, nil
}

// Slug lowercases name, drops accents and keeps only ASCII letters and digits
func Slug(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		folded = strings.ToLower(name)
	}
	var b strings.Builder
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
