package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Ananth-NQI/lineflow-backend/database"
	"github.com/Ananth-NQI/lineflow-backend/internal/accounts"
	"github.com/Ananth-NQI/lineflow-backend/internal/bot"
	"github.com/Ananth-NQI/lineflow-backend/internal/config"
	"github.com/Ananth-NQI/lineflow-backend/internal/handlers"
	"github.com/Ananth-NQI/lineflow-backend/internal/jobs"
	"github.com/Ananth-NQI/lineflow-backend/internal/ledger"
	"github.com/Ananth-NQI/lineflow-backend/internal/lines"
	"github.com/Ananth-NQI/lineflow-backend/internal/logger"
	"github.com/Ananth-NQI/lineflow-backend/internal/renewal"
	"github.com/Ananth-NQI/lineflow-backend/internal/routes"
	"github.com/Ananth-NQI/lineflow-backend/internal/storage"
)

const version = "2.0.0"

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := config.LoadDotEnv(".env", "environments/.env.development"); err != nil {
			log.Println("⚠️  No .env file found - checking environment variables")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("❌ Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("❌ Service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	// ========== DATABASE ==========
	db, err := database.Connect(databaseSettings(cfg), zlog)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			zlog.Warn("database close failed", zap.Error(err))
		}
	}()

	accountLedger, err := ledger.New(db)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	zlog.Info("📒 Account ledger ready")

	store, err := openSessionStore(cfg, db, zlog)
	if err != nil {
		return err
	}

	// ========== BOT CONFIG & COLLABORATORS ==========
	botConfig, err := config.LoadStore(cfg.BotConfigPath, zlog)
	if err != nil {
		return fmt.Errorf("load bot config: %w", err)
	}
	gate := renewal.NewGate(botConfig)

	var creator accounts.Creator
	if cfg.AccountCreatorURL != "" {
		creator = accounts.NewHTTPCreator(cfg.AccountCreatorURL, cfg.AccountCreatorToken, cfg.AccountCreatorTimeout)
		zlog.Info("👤 Using remote account creator", zap.String("url", cfg.AccountCreatorURL))
	} else {
		creator = accounts.NewLocalCreator()
		zlog.Warn("⚠️  ACCOUNT_CREATOR_URL not set - generating usernames locally")
	}

	// ========== LINES ==========
	twilioConfigured := cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != ""
	factory := lines.LogFactory(zlog)
	if twilioConfigured {
		factory = lines.TwilioFactory(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.PublicBaseURL, zlog)
		zlog.Info("✅ Twilio transport configured")
	} else {
		zlog.Warn("⚠️  Twilio credentials not found - replies will only be logged")
	}
	manager := lines.NewManager(factory, zlog)
	for id, number := range cfg.Lines {
		if err := manager.Register(id, number); err != nil {
			return fmt.Errorf("register line: %w", err)
		}
	}

	engine, err := bot.NewEngine(bot.Options{
		Store:       store,
		Sender:      manager,
		Creator:     creator,
		Ledger:      accountLedger,
		Settings:    botConfig,
		Renewal:     gate,
		Logger:      zlog,
		TextPacing:  cfg.ReplyPacing,
		ImagePacing: cfg.ImagePacing,
	})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Stop()
	manager.SetHandler(engine.HandleIncoming)

	if cfg.AutoStartLines {
		started := manager.StartConfigured()
		zlog.Info("📱 Lines started", zap.Int("started", started), zap.Int("configured", len(manager.Configured())))
	}

	// ========== JOBS ==========
	maintenance := jobs.NewMaintenanceJob(jobs.MaintenanceOptions{
		Sessions:        store,
		Renewal:         gate,
		CleanupInterval: cfg.CleanupInterval,
		CleanupMaxAge:   cfg.CleanupMaxAge,
		RenewalInterval: cfg.RenewalCheckEach,
		Logger:          zlog,
	})
	maintenance.Start()

	// ========== HTTP ==========
	app := fiber.New(fiber.Config{
		AppName: "Lineflow Backend v" + version,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	var pinger handlers.Pinger
	if sqlDB, err := db.DB(); err == nil {
		pinger = sqlDB
	}

	routes.SetupRoutes(app, routes.Handlers{
		WhatsApp: handlers.NewWhatsAppHandler(manager, zlog),
		Admin: handlers.NewAdminHandler(handlers.AdminDeps{
			Lines:         manager,
			Sessions:      store,
			Engine:        engine,
			Stats:         accountLedger,
			BotConfig:     botConfig,
			CleanupMaxAge: cfg.CleanupMaxAge,
			Logger:        zlog,
		}),
		Health: handlers.NewHealthHandler(version, cfg.StoreDriver, twilioConfigured, pinger),
	}, routes.Options{
		Version:                  version,
		Environment:              cfg.Environment,
		DisableWebhookValidation: cfg.DisableWebhookValidation,
		TwilioAuthToken:          cfg.TwilioAuthToken,
		PublicBaseURL:            cfg.PublicBaseURL,
		AdminToken:               cfg.AdminToken,
		MediaDir:                 cfg.MediaDir,
		Logger:                   zlog,
	})

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		zlog.Info("🛑 Gracefully shutting down...")
		zlog.Info("⏹️  Stopping maintenance jobs...")
		maintenance.Stop()

		zlog.Info("⏹️  Stopping lines...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := manager.StopAll(ctx); err != nil {
			zlog.Warn("lines did not stop cleanly", zap.Error(err))
		}

		zlog.Info("⏹️  Shutting down server...")
		_ = app.Shutdown()
	}()

	zlog.Info("========================================")
	zlog.Info("🚀 Lineflow Backend starting", zap.String("port", cfg.Port), zap.String("version", version))
	zlog.Info("📊 Storage", zap.String("sessions", cfg.StoreDriver), zap.String("ledger", cfg.DBDriver))
	zlog.Info("🌍 Environment", zap.String("environment", cfg.Environment))
	zlog.Info("📱 WhatsApp", zap.Bool("twilio", twilioConfigured), zap.Strings("lines", manager.Configured()))
	zlog.Info("========================================")

	return app.Listen(":" + cfg.Port)
}

func databaseSettings(cfg *config.Config) database.Settings {
	s := database.Settings{
		Driver:                 cfg.DBDriver,
		DSN:                    cfg.DBDSN,
		User:                   cfg.DBUser,
		Password:               cfg.DBPass,
		Name:                   cfg.DBName,
		InstanceConnectionName: cfg.InstanceConnectionName,
	}
	// a database-backed session store shares the ledger's database
	if cfg.StoreDriver == "sqlite" || cfg.StoreDriver == "postgres" {
		s.Driver = cfg.StoreDriver
	}
	if s.Driver == "sqlite" && s.DSN == "" {
		s.DSN = cfg.DataDir + "/lineflow.db"
	}
	return s
}

func openSessionStore(cfg *config.Config, db *gorm.DB, zlog *zap.Logger) (storage.SessionStore, error) {
	switch cfg.StoreDriver {
	case "memory":
		zlog.Warn("⚠️  Using in-memory session storage (not for production!)")
		return storage.NewMemoryStore(), nil
	case "file":
		store, err := storage.NewFileStore(cfg.SessionFile(), zlog)
		if err != nil {
			return nil, fmt.Errorf("open session file: %w", err)
		}
		zlog.Info("✅ Using JSON file session storage", zap.String("path", cfg.SessionFile()))
		return store, nil
	default:
		store, err := storage.NewDatabaseStore(db)
		if err != nil {
			return nil, fmt.Errorf("open session table: %w", err)
		}
		zlog.Info("✅ Using database session storage", zap.String("driver", cfg.StoreDriver))
		return store, nil
	}
}
