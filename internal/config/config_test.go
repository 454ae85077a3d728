package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEmptyDocumentUsesDefaults(t *testing.T) {
	s := BotConfig{}.Resolve()

	assert.Equal(t, "_line", s.UsernameSuffix)
	assert.Equal(t, "Hola1234", s.FixedPassword)
	assert.Equal(t, time.Duration(0), s.RateLimit)
	assert.Equal(t, 2*time.Hour, s.Inactivity)
	assert.Equal(t, 15*time.Minute, s.ReminderDelay)
	assert.Equal(t, DefaultTexts().AskName, s.Texts.AskName)
	assert.Empty(t, s.DepositImagePath)
}

func TestResolveOverridesOnlyPresentFields(t *testing.T) {
	rate := 5
	minutes := 30
	doc := BotConfig{
		SiteURL:   "  www.site.test ",
		Safety:    Safety{RateLimitSeconds: &rate},
		Reminders: Reminders{ProofMinutes: &minutes},
		Texts:     Texts{AskName: "  ¿Cómo te llamás?  "},
	}
	s := doc.Resolve()

	assert.Equal(t, "www.site.test", s.SiteURL)
	assert.Equal(t, 5*time.Second, s.RateLimit)
	assert.Equal(t, 30*time.Minute, s.ReminderDelay)
	assert.Equal(t, 2*time.Hour, s.Inactivity)
	assert.Equal(t, "¿Cómo te llamás?", s.Texts.AskName)
	assert.Equal(t, DefaultTexts().InvalidName, s.Texts.InvalidName)
}

func TestRender(t *testing.T) {
	out := Render("¡Hola {{name}}! Tu usuario es {{ username }}.{{missing}}", map[string]string{
		"name":     "Juan",
		"username": "juan1234_line",
	})
	assert.Equal(t, "¡Hola Juan! Tu usuario es juan1234_line.", out)
	assert.Equal(t, "sin cierre {{name", Render("sin cierre {{name", nil))
}

func TestLoadStoreWritesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "bot-config.yaml")

	store, err := LoadStore(path, nil)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, store.Get().Version)

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := LoadStore(path, nil)
	require.NoError(t, err)
	assert.Equal(t, store.Get().Texts.Welcome, reloaded.Get().Texts.Welcome)
}

func TestLoadStoreCorruptFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot-config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("texts: [unterminated"), 0o644))

	store, err := LoadStore(path, nil)
	require.NoError(t, err)
	assert.Equal(t, Default().Texts.AskName, store.Settings().Texts.AskName)
}

func TestStoreUpdateMergesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bot-config.yaml")
	store, err := LoadStore(path, nil)
	require.NoError(t, err)

	rate := 3
	updated, err := store.Update(BotConfig{
		SiteURL: "www.nuevo.test",
		Safety:  Safety{RateLimitSeconds: &rate},
		Texts:   Texts{Welcome: "Buenas!"},
	})
	require.NoError(t, err)
	assert.Equal(t, "www.nuevo.test", updated.SiteURL)
	assert.Equal(t, "Buenas!", updated.Texts.Welcome)
	assert.Equal(t, DefaultTexts().AskName, updated.Texts.AskName, "untouched fields survive")
	require.NotNil(t, updated.Safety.InactivityHours)
	assert.Equal(t, DefaultInactivityHours, *updated.Safety.InactivityHours)

	reloaded, err := LoadStore(path, nil)
	require.NoError(t, err)
	s := reloaded.Settings()
	assert.Equal(t, "www.nuevo.test", s.SiteURL)
	assert.Equal(t, 3*time.Second, s.RateLimit)
	assert.Equal(t, "Buenas!", s.Texts.Welcome)
}

func TestSetClearance(t *testing.T) {
	store := NewStaticStore(Default())
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SetClearance("cookie-value", at, ""))
	c := store.Clearance()
	assert.Equal(t, "cookie-value", c.Cookie)
	assert.Equal(t, "2026-10-19T12:00:00Z", c.UpdatedAt)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LINES", "line001=whatsapp:+5491100000001,line002=whatsapp:+5491100000002")
	t.Setenv("REPLY_PACING", "0s")
	t.Setenv("DATA_DIR", "/tmp/lineflow")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, "whatsapp:+5491100000002", cfg.Lines["line002"])
	assert.Equal(t, time.Duration(0), cfg.ReplyPacing)
	assert.Equal(t, "/tmp/lineflow/config/bot-config.yaml", cfg.BotConfigPath)
	assert.False(t, cfg.IsProduction())
}

func TestLoadEnvRejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	_, err := Load()
	assert.Error(t, err)
}
