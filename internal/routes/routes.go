package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/lineflow-backend/internal/handlers"
	"github.com/Ananth-NQI/lineflow-backend/internal/middleware"
)

// Handlers groups the HTTP handlers served by the app
type Handlers struct {
	WhatsApp *handlers.WhatsAppHandler
	Admin    *handlers.AdminHandler
	Health   *handlers.HealthHandler
}

// Options controls environment-dependent routing
type Options struct {
	Version                  string
	Environment              string
	DisableWebhookValidation bool
	TwilioAuthToken          string
	PublicBaseURL            string
	AdminToken               string
	MediaDir                 string
	Logger                   *zap.Logger
}

func (o Options) development() bool {
	return o.Environment == "development" || o.Environment == "test"
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, h Handlers, opts Options) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to Lineflow Backend!",
			"version": opts.Version,
			"endpoints": fiber.Map{
				"health":        "/health",
				"metrics":       "/metrics",
				"webhook":       "/webhook/whatsapp/:lineId",
				"test_whatsapp": "/test/whatsapp",
				"admin":         "/admin",
			},
		})
	})

	app.Get("/health", h.Health.Check)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// deposit image and other media fetched by Twilio
	if opts.MediaDir != "" {
		app.Static("/media", opts.MediaDir)
	}

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")
	if opts.development() || opts.DisableWebhookValidation {
		webhooks.Post("/whatsapp/:lineId", h.WhatsApp.HandleWebhook)
		log.Warn("⚠️  WhatsApp webhook validation DISABLED", zap.String("environment", opts.Environment))
	} else {
		webhooks.Post("/whatsapp/:lineId",
			middleware.ValidateTwilioSignature(opts.TwilioAuthToken, opts.PublicBaseURL, log),
			h.WhatsApp.HandleWebhook)
	}

	// ========== TEST ROUTES (Development Only) ==========
	if opts.development() {
		app.Post("/test/whatsapp", h.WhatsApp.HandleTestWebhook)
	}

	// ========== ADMIN ROUTES ==========
	admin := app.Group("/admin", middleware.RequireAdminToken(opts.AdminToken))

	admin.Get("/status", h.Admin.Status)
	admin.Get("/stats", h.Admin.Stats)
	admin.Get("/stats/daily", h.Admin.DailyStats)

	admin.Get("/lines", h.Admin.ListLines)
	admin.Get("/lines/:id", h.Admin.GetLine)
	admin.Post("/lines/:id/start", h.Admin.StartLine)
	admin.Post("/lines/:id/stop", h.Admin.StopLine)
	admin.Post("/lines/:id/restart", h.Admin.RestartLine)

	admin.Get("/sessions", h.Admin.ListSessions)
	admin.Post("/sessions/cleanup", h.Admin.CleanupSessions)

	admin.Get("/config", h.Admin.GetConfig)
	admin.Put("/config", h.Admin.UpdateConfig)
	admin.Post("/clearance", h.Admin.UpdateClearance)
}
