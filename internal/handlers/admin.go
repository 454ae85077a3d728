package handlers

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/lineflow-backend/internal/bot"
	"github.com/Ananth-NQI/lineflow-backend/internal/config"
	"github.com/Ananth-NQI/lineflow-backend/internal/ledger"
	"github.com/Ananth-NQI/lineflow-backend/internal/lines"
	"github.com/Ananth-NQI/lineflow-backend/internal/models"
	"github.com/Ananth-NQI/lineflow-backend/internal/storage"
)

// LineController is the part of the line registry exposed to operators
type LineController interface {
	Start(id string) error
	Stop(id string) error
	Restart(id string) error
	Status(id string) (lines.LineStatus, error)
	Statuses() []lines.LineStatus
}

// StatusReporter summarizes the engine
type StatusReporter interface {
	Status(ctx context.Context) (bot.SystemStatus, error)
}

// StatsSource reads aggregate numbers from the account ledger
type StatsSource interface {
	Stats(ctx context.Context) (models.AccountStats, error)
	ByDay(ctx context.Context, days int) ([]ledger.DayCount, error)
}

// BotConfigStore is the editable bot document
type BotConfigStore interface {
	Get() config.BotConfig
	Update(patch config.BotConfig) (config.BotConfig, error)
	SetClearance(cookie string, at time.Time, expires string) error
}

// AdminDeps wires an AdminHandler. Stats is optional.
type AdminDeps struct {
	Lines         LineController
	Sessions      storage.SessionStore
	Engine        StatusReporter
	Stats         StatsSource
	BotConfig     BotConfigStore
	CleanupMaxAge time.Duration
	Logger        *zap.Logger
}

// AdminHandler handles operator requests
type AdminHandler struct {
	lines         LineController
	sessions      storage.SessionStore
	engine        StatusReporter
	stats         StatsSource
	botConfig     BotConfigStore
	cleanupMaxAge time.Duration
	logger        *zap.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(deps AdminDeps) *AdminHandler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.CleanupMaxAge <= 0 {
		deps.CleanupMaxAge = 24 * time.Hour
	}
	return &AdminHandler{
		lines:         deps.Lines,
		sessions:      deps.Sessions,
		engine:        deps.Engine,
		stats:         deps.Stats,
		botConfig:     deps.BotConfig,
		cleanupMaxAge: deps.CleanupMaxAge,
		logger:        deps.Logger.With(zap.String("component", "admin")),
	}
}

// ListLines returns every slot with its status
func (h *AdminHandler) ListLines(c *fiber.Ctx) error {
	statuses := h.lines.Statuses()
	ready := 0
	for _, s := range statuses {
		if s.Status == lines.StatusReady {
			ready++
		}
	}
	return c.JSON(fiber.Map{
		"success": true,
		"lines":   statuses,
		"count":   len(statuses),
		"ready":   ready,
	})
}

// GetLine returns one slot
func (h *AdminHandler) GetLine(c *fiber.Ctx) error {
	st, err := h.lines.Status(c.Params("id"))
	if err != nil {
		return lineError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "line": st})
}

// StartLine, StopLine and RestartLine control one slot
func (h *AdminHandler) StartLine(c *fiber.Ctx) error {
	return h.lineAction(c, "start", h.lines.Start)
}

func (h *AdminHandler) StopLine(c *fiber.Ctx) error {
	return h.lineAction(c, "stop", h.lines.Stop)
}

func (h *AdminHandler) RestartLine(c *fiber.Ctx) error {
	return h.lineAction(c, "restart", h.lines.Restart)
}

func (h *AdminHandler) lineAction(c *fiber.Ctx, action string, fn func(string) error) error {
	id := c.Params("id")
	if err := fn(id); err != nil {
		h.logger.Warn("line action failed", zap.String("action", action), zap.String("line_id", id), zap.Error(err))
		return lineError(c, err)
	}
	h.logger.Info("line action done", zap.String("action", action), zap.String("line_id", id))

	st, err := h.lines.Status(id)
	if err != nil {
		return lineError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "line": st})
}

// ListSessions returns stored sessions, optionally for one line
func (h *AdminHandler) ListSessions(c *fiber.Ctx) error {
	sessions, err := h.sessions.List(c.UserContext())
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch sessions",
		})
	}

	lineID := c.Query("line")
	out := make([]models.Session, 0, len(sessions))
	for _, s := range sessions {
		if lineID == "" || s.LineID == lineID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Meta.UpdatedAt.After(out[j].Meta.UpdatedAt)
	})

	return c.JSON(fiber.Map{
		"success":  true,
		"sessions": out,
		"count":    len(out),
	})
}

// CleanupSessions deletes sessions idle for longer than older_than (default CLEANUP_MAX_AGE)
func (h *AdminHandler) CleanupSessions(c *fiber.Ctx) error {
	age := h.cleanupMaxAge
	if raw := c.Query("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "older_than must be a positive duration like 24h",
			})
		}
		age = d
	}

	removed, err := h.sessions.CleanupOlderThan(c.UserContext(), age)
	if err != nil {
		h.logger.Error("session cleanup failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to clean sessions",
		})
	}
	h.logger.Info("🧹 sessions cleaned from admin", zap.Int("removed", removed), zap.Duration("older_than", age))
	return c.JSON(fiber.Map{"success": true, "removed": removed})
}

// GetConfig returns the bot document
func (h *AdminHandler) GetConfig(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "config": h.botConfig.Get()})
}

// UpdateConfig merges the present fields into the bot document
func (h *AdminHandler) UpdateConfig(c *fiber.Ctx) error {
	var patch config.BotConfig
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	// the clearance has its own endpoint
	patch.Clearance = config.Clearance{}

	doc, err := h.botConfig.Update(patch)
	if err != nil {
		h.logger.Error("bot config update failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update config",
		})
	}
	h.logger.Info("⚙️ bot config updated")
	return c.JSON(fiber.Map{"success": true, "config": doc})
}

// ClearanceRequest is posted by the external renewal tool
type ClearanceRequest struct {
	Cookie    string `json:"cookie"`
	Expires   string `json:"expires"`
	UpdatedAt string `json:"updated_at"` // RFC3339, defaults to now
}

// UpdateClearance stores a renewed anti-bot cookie
func (h *AdminHandler) UpdateClearance(c *fiber.Ctx) error {
	var req ClearanceRequest
	if err := c.BodyParser(&req); err != nil || req.Cookie == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "cookie is required",
		})
	}

	at := time.Now()
	if req.UpdatedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.UpdatedAt)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "updated_at must be RFC3339",
			})
		}
		at = parsed
	}

	if err := h.botConfig.SetClearance(req.Cookie, at, req.Expires); err != nil {
		h.logger.Error("clearance update failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store clearance",
		})
	}
	h.logger.Info("🍪 clearance renewed", zap.Time("updated_at", at))
	return c.JSON(fiber.Map{"success": true})
}

// Status reports engine, clearance and line health
func (h *AdminHandler) Status(c *fiber.Ctx) error {
	st, err := h.engine.Status(c.UserContext())
	if err != nil {
		h.logger.Error("status failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to build status",
		})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"status":  st,
		"lines":   h.lines.Statuses(),
	})
}

// Stats returns ledger totals
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	if h.stats == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Ledger not configured",
		})
	}
	stats, err := h.stats.Stats(c.UserContext())
	if err != nil {
		h.logger.Error("stats failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch stats",
		})
	}
	return c.JSON(fiber.Map{"success": true, "stats": stats})
}

// DailyStats returns accounts created per day for the last ?days= days (default 7)
func (h *AdminHandler) DailyStats(c *fiber.Ctx) error {
	if h.stats == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Ledger not configured",
		})
	}
	days := c.QueryInt("days", 7)
	if days < 1 || days > 90 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "days must be between 1 and 90",
		})
	}
	counts, err := h.stats.ByDay(c.UserContext(), days)
	if err != nil {
		h.logger.Error("daily stats failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch stats",
		})
	}
	return c.JSON(fiber.Map{"success": true, "days": counts})
}

func lineError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, lines.ErrUnknownLine):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, lines.ErrLineNotConfigured):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
