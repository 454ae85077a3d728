// Package accounts creates site accounts for contacts that finished the name step.
package accounts

import (
	"context"
	"errors"
	"fmt"
)

// Failure classes a creator may report. Anything else is a generic failure.
var (
	ErrConfigMissing = errors.New("account creator configuration missing")
	ErrAntiBotBlock  = errors.New("blocked by anti-bot challenge")
	ErrRetryLater    = errors.New("account creator overloaded")
	ErrAuthFailed    = errors.New("account creator authentication failed")
)

// Error categories used on the wire by remote creators
const (
	CategoryConfigMissing = "config-missing"
	CategoryAntiBotBlock  = "anti-bot-block"
	CategoryRetryLater    = "retry-later"
	CategoryAuthFailed    = "auth-failed"
)

// Request is what the engine knows when it asks for an account
type Request struct {
	Name           string `json:"name"`
	UsernameSuffix string `json:"username_suffix"`
	FixedPassword  string `json:"fixed_password"`
}

// Account is a freshly created site account
type Account struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

// Creator creates one account per call
type Creator interface {
	Create(ctx context.Context, req Request) (Account, error)
}

// CreateError keeps the raw detail of a failed creation for the logs.
// errors.Is matches it against the sentinel of its category.
type CreateError struct {
	Category string
	Status   int
	Message  string
}

func (e *CreateError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("create account: status %d: %s (%s)", e.Status, e.Message, e.category())
	}
	return fmt.Sprintf("create account: %s (%s)", e.Message, e.category())
}

func (e *CreateError) Unwrap() error {
	switch e.Category {
	case CategoryConfigMissing:
		return ErrConfigMissing
	case CategoryAntiBotBlock:
		return ErrAntiBotBlock
	case CategoryRetryLater:
		return ErrRetryLater
	case CategoryAuthFailed:
		return ErrAuthFailed
	}
	return nil
}

func (e *CreateError) category() string {
	if e.Category == "" {
		return "generic"
	}
	return e.Category
}

// Category returns the failure class of err, "generic" when unknown
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfigMissing):
		return CategoryConfigMissing
	case errors.Is(err, ErrAntiBotBlock):
		return CategoryAntiBotBlock
	case errors.Is(err, ErrRetryLater):
		return CategoryRetryLater
	case errors.Is(err, ErrAuthFailed):
		return CategoryAuthFailed
	}
	return "generic"
}
