package handlers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/lineflow-backend/internal/lines"
	"github.com/Ananth-NQI/lineflow-backend/internal/models"
)

// Deliverer queues inbound events on their line
type Deliverer interface {
	Deliver(ev models.InboundEvent) error
}

// WhatsAppHandler turns Twilio webhooks into inbound events
type WhatsAppHandler struct {
	lines  Deliverer
	logger *zap.Logger
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(lines Deliverer, logger *zap.Logger) *WhatsAppHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WhatsAppHandler{lines: lines, logger: logger.With(zap.String("component", "webhook"))}
}

// TwilioWebhookPayload represents an incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid        string `form:"MessageSid"`
	AccountSid        string `form:"AccountSid"`
	From              string `form:"From"` // whatsapp:+5491155550000
	To                string `form:"To"`   // the line's sender
	Body              string `form:"Body"`
	NumMedia          string `form:"NumMedia"`
	MediaUrl0         string `form:"MediaUrl0"`
	MediaContentType0 string `form:"MediaContentType0"`
	MessageStatus     string `form:"MessageStatus"`
}

// HandleWebhook queues an incoming message on the line named in the path
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		h.logger.Warn("invalid webhook payload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	// delivery status callbacks carry no sender body worth handling
	if payload.From == "" || payload.MessageStatus != "" {
		return c.SendStatus(fiber.StatusOK)
	}

	ev := payload.event(c.Params("lineId"))
	h.logger.Info("📱 WhatsApp message received",
		zap.String("line_id", ev.LineID),
		zap.String("contact_id", ev.ContactID),
		zap.String("kind", ev.Kind),
		zap.String("event_id", ev.EventID))

	return h.deliver(c, ev)
}

// TestWebhookPayload is the JSON body accepted by the development endpoint
type TestWebhookPayload struct {
	Line     string `json:"line"`
	From     string `json:"from"`
	Message  string `json:"message"`
	MimeType string `json:"mime_type"`
}

// HandleTestWebhook queues a message without Twilio (development only)
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := c.BodyParser(&payload); err != nil || payload.From == "" || payload.Line == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}

	ev := models.InboundEvent{
		EventID:   uuid.NewString(),
		LineID:    payload.Line,
		ContactID: payload.From,
		Text:      payload.Message,
		Timestamp: time.Now(),
		Kind:      kindFor(payload.MimeType),
		HasMedia:  payload.MimeType != "",
		MimeType:  payload.MimeType,
	}
	h.logger.Info("🧪 Test webhook received", zap.String("line_id", ev.LineID), zap.String("contact_id", ev.ContactID))

	if err := h.lines.Deliver(ev); err != nil {
		return deliveryError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"event_id": ev.EventID,
	})
}

func (h *WhatsAppHandler) deliver(c *fiber.Ctx, ev models.InboundEvent) error {
	if err := h.lines.Deliver(ev); err != nil {
		h.logger.Warn("message not queued", zap.String("line_id", ev.LineID), zap.Error(err))
		return deliveryError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (p TwilioWebhookPayload) event(lineID string) models.InboundEvent {
	numMedia, _ := strconv.Atoi(p.NumMedia)
	ev := models.InboundEvent{
		EventID:     p.MessageSid,
		LineID:      lineID,
		ContactID:   models.CleanPhone(p.From),
		PhoneNumber: p.From,
		Text:        p.Body,
		Timestamp:   time.Now(),
		Kind:        models.KindChat,
	}
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if numMedia > 0 {
		ev.HasMedia = true
		ev.MimeType = p.MediaContentType0
		ev.Kind = kindFor(p.MediaContentType0)
	}
	return ev
}

func kindFor(mimeType string) string {
	mt := strings.ToLower(mimeType)
	switch {
	case mt == "":
		return models.KindChat
	case strings.HasPrefix(mt, "image/"):
		return models.KindImage
	case strings.HasPrefix(mt, "audio/"):
		return models.KindAudio
	}
	return models.KindDocument
}

func deliveryError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, lines.ErrUnknownLine):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, lines.ErrLineNotActive), errors.Is(err, lines.ErrQueueFull):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return err
}
