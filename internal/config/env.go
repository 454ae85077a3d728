// Package config loads process settings from the environment and the bot
// texts from a versioned YAML document.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds process-level settings read once at start-up
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development" validate:"oneof=development production test"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	DataDir       string `env:"DATA_DIR" envDefault:"data"`
	BotConfigPath string `env:"BOT_CONFIG_PATH"` // defaults to DATA_DIR/config/bot-config.yaml
	MediaDir      string `env:"MEDIA_DIR"`       // defaults to DATA_DIR/media

	// Session store backend
	StoreDriver string `env:"STORE_DRIVER" envDefault:"file" validate:"oneof=memory file sqlite postgres"`

	// Database used by the sqlite/postgres session store and the ledger
	DBDriver               string `env:"DB_DRIVER" envDefault:"sqlite" validate:"oneof=sqlite postgres"`
	DBDSN                  string `env:"DB_DSN"`
	DBUser                 string `env:"DB_USER"`
	DBPass                 string `env:"DB_PASS"`
	DBName                 string `env:"DB_NAME"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	// Twilio transport
	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	// LINES maps line ids to WhatsApp senders: "line001=whatsapp:+5491100000001,line002=..."
	Lines                    map[string]string `env:"LINES" envSeparator:"," envKeyValSeparator:"="`
	PublicBaseURL            string            `env:"PUBLIC_BASE_URL" validate:"omitempty,url"`
	DisableWebhookValidation bool              `env:"DISABLE_WEBHOOK_VALIDATION"`

	// Remote account creator; the local generator is used when empty
	AccountCreatorURL     string        `env:"ACCOUNT_CREATOR_URL" validate:"omitempty,url"`
	AccountCreatorToken   string        `env:"ACCOUNT_CREATOR_TOKEN"`
	AccountCreatorTimeout time.Duration `env:"ACCOUNT_CREATOR_TIMEOUT" envDefault:"30s"`

	AdminToken string `env:"ADMIN_TOKEN"`

	// Engine and jobs
	ReplyPacing      time.Duration `env:"REPLY_PACING" envDefault:"800ms"`
	ImagePacing      time.Duration `env:"IMAGE_PACING" envDefault:"1s"`
	CleanupInterval  time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
	CleanupMaxAge    time.Duration `env:"CLEANUP_MAX_AGE" envDefault:"24h"`
	RenewalCheckEach time.Duration `env:"RENEWAL_CHECK_INTERVAL" envDefault:"10m"`
	AutoStartLines   bool          `env:"AUTO_START_LINES" envDefault:"true"`
}

// LoadDotEnv reads .env files for local development. Missing files are fine.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no .env file found in %s", strings.Join(paths, ", "))
}

// Load parses and validates the environment
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.BotConfigPath == "" {
		cfg.BotConfigPath = cfg.DataDir + "/config/bot-config.yaml"
	}
	if cfg.MediaDir == "" {
		cfg.MediaDir = cfg.DataDir + "/media"
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// SessionFile is where the file store keeps its document
func (c *Config) SessionFile() string {
	return c.DataDir + "/sessions/sessions.json"
}
