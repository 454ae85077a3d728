package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// CurrentVersion of the bot document layout
const CurrentVersion = 2

// Defaults for the numeric settings
const (
	DefaultRateLimitSeconds = 0
	DefaultInactivityHours  = 2.0
	DefaultReminderMinutes  = 15
)

// BotConfig is the operator-editable document. Empty or nil fields fall back
// to built-in defaults when resolved.
type BotConfig struct {
	Version          int       `yaml:"version,omitempty" json:"version,omitempty"`
	AppName          string    `yaml:"app_name,omitempty" json:"app_name,omitempty"`
	SiteURL          string    `yaml:"url,omitempty" json:"url,omitempty"`
	UsernameSuffix   string    `yaml:"username_suffix,omitempty" json:"username_suffix,omitempty"`
	FixedPassword    string    `yaml:"fixed_password,omitempty" json:"fixed_password,omitempty"`
	DepositImagePath string    `yaml:"deposit_image_path,omitempty" json:"deposit_image_path,omitempty"`
	Safety           Safety    `yaml:"safety,omitempty" json:"safety,omitempty"`
	Reminders        Reminders `yaml:"reminders,omitempty" json:"reminders,omitempty"`
	Texts            Texts     `yaml:"texts,omitempty" json:"texts,omitempty"`
	Clearance        Clearance `yaml:"clearance,omitempty" json:"clearance,omitempty"`
}

type Safety struct {
	RateLimitSeconds *int     `yaml:"rate_limit_seconds,omitempty" json:"rate_limit_seconds,omitempty"`
	InactivityHours  *float64 `yaml:"inactivity_hours,omitempty" json:"inactivity_hours,omitempty"`
}

type Reminders struct {
	ProofMinutes *int `yaml:"proof_minutes,omitempty" json:"proof_minutes,omitempty"`
}

// Clearance is the anti-bot credential maintained by the external renewal tool
type Clearance struct {
	Cookie    string `yaml:"cookie,omitempty" json:"cookie,omitempty"`
	UpdatedAt string `yaml:"updated_at,omitempty" json:"updated_at,omitempty"` // RFC3339
	Expires   string `yaml:"expires,omitempty" json:"expires,omitempty"`
}

// Settings is BotConfig with every default applied
type Settings struct {
	AppName          string
	SiteURL          string
	UsernameSuffix   string
	FixedPassword    string
	DepositImagePath string
	RateLimit        time.Duration
	Inactivity       time.Duration
	ReminderDelay    time.Duration
	Texts            Texts
}

// Default returns the document written on first start
func Default() BotConfig {
	rate := DefaultRateLimitSeconds
	hours := DefaultInactivityHours
	minutes := DefaultReminderMinutes
	return BotConfig{
		Version:        CurrentVersion,
		AppName:        "Lineflow Suite",
		SiteURL:        "www.example.com",
		UsernameSuffix: "_line",
		FixedPassword:  "Hola1234",
		Safety: Safety{
			RateLimitSeconds: &rate,
			InactivityHours:  &hours,
		},
		Reminders: Reminders{ProofMinutes: &minutes},
		Texts:     DefaultTexts(),
	}
}

// Resolve applies defaults to every absent field
func (c BotConfig) Resolve() Settings {
	def := Default()
	s := Settings{
		AppName:          or(c.AppName, def.AppName),
		SiteURL:          or(c.SiteURL, def.SiteURL),
		UsernameSuffix:   or(c.UsernameSuffix, def.UsernameSuffix),
		FixedPassword:    or(c.FixedPassword, def.FixedPassword),
		DepositImagePath: strings.TrimSpace(c.DepositImagePath),
		RateLimit:        time.Duration(DefaultRateLimitSeconds) * time.Second,
		Inactivity:       hoursToDuration(DefaultInactivityHours),
		ReminderDelay:    time.Duration(DefaultReminderMinutes) * time.Minute,
		Texts:            c.Texts.withDefaults(),
	}
	if v := c.Safety.RateLimitSeconds; v != nil && *v >= 0 {
		s.RateLimit = time.Duration(*v) * time.Second
	}
	if v := c.Safety.InactivityHours; v != nil && *v > 0 {
		s.Inactivity = hoursToDuration(*v)
	}
	if v := c.Reminders.ProofMinutes; v != nil && *v > 0 {
		s.ReminderDelay = time.Duration(*v) * time.Minute
	}
	return s
}

// Store keeps the bot document in memory and on disk
type Store struct {
	path   string
	logger *zap.Logger

	mu  sync.RWMutex
	doc BotConfig
}

// LoadStore reads path, writing the default document first when it is missing.
// An unreadable document falls back to defaults without touching the file.
func LoadStore(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{path: path, logger: logger}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.doc = Default()
		if err := s.write(s.doc); err != nil {
			return nil, err
		}
		logger.Info("bot config created with defaults", zap.String("path", path))
	case err != nil:
		return nil, fmt.Errorf("read bot config: %w", err)
	default:
		var doc BotConfig
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			logger.Warn("bot config unreadable, using defaults", zap.String("path", path), zap.Error(err))
			doc = Default()
		}
		s.doc = doc
	}
	return s, nil
}

// NewStaticStore serves doc without a backing file (tests, dry runs)
func NewStaticStore(doc BotConfig) *Store {
	return &Store{doc: doc, logger: zap.NewNop()}
}

// Get returns a copy of the current document
func (s *Store) Get() BotConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Settings resolves the current document
func (s *Store) Settings() Settings {
	return s.Get().Resolve()
}

// Update overlays the non-empty fields of patch and persists the result
func (s *Store) Update(patch BotConfig) (BotConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// decode into a fresh value so pointers in s.doc are never written through
	var next BotConfig
	if err := overlay(&next, s.doc); err != nil {
		return BotConfig{}, err
	}
	if err := overlay(&next, patch); err != nil {
		return BotConfig{}, err
	}
	next.Version = CurrentVersion
	if err := s.write(next); err != nil {
		return BotConfig{}, err
	}
	s.doc = next
	return next, nil
}

// SetClearance records a freshly renewed anti-bot cookie
func (s *Store) SetClearance(cookie string, at time.Time, expires string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.doc
	next.Clearance = Clearance{
		Cookie:    cookie,
		UpdatedAt: at.UTC().Format(time.RFC3339),
		Expires:   expires,
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.doc = next
	return nil
}

// Clearance implements renewal.Source
func (s *Store) Clearance() Clearance {
	return s.Get().Clearance
}

func (s *Store) write(doc BotConfig) error {
	if s.path == "" {
		return nil
	}
	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode bot config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write bot config: %w", err)
	}
	return nil
}

// overlay copies every field present in src onto dst. Fields are "present"
// when they survive yaml omitempty.
func overlay(dst any, src any) error {
	raw, err := yaml.Marshal(src)
	if err != nil {
		return fmt.Errorf("encode overlay: %w", err)
	}
	if err := yaml.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("apply overlay: %w", err)
	}
	return nil
}

func or(v, fallback string) string {
	if t := strings.TrimSpace(v); t != "" {
		return t
	}
	return fallback
}

func hoursToDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
