package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// Pinger checks a backing service, usually the database
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	Version  string
	Storage  string
	Twilio   bool
	database Pinger
}

// NewHealthHandler creates a new health handler. database may be nil.
func NewHealthHandler(version, storage string, twilio bool, database Pinger) *HealthHandler {
	return &HealthHandler{
		Version:  version,
		Storage:  storage,
		Twilio:   twilio,
		database: database,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "healthy"
	code := fiber.StatusOK
	dbHealthy := true
	if h.database != nil {
		if err := h.database.PingContext(c.UserContext()); err != nil {
			status = "unhealthy"
			code = fiber.StatusServiceUnavailable
			dbHealthy = false
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"status":  status,
		"service": "Lineflow Backend",
		"version": h.Version,
		"storage": h.Storage,
		"services": fiber.Map{
			"database": dbHealthy,
			"twilio":   h.Twilio,
		},
	})
}
