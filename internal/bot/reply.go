package bot

import (
	"context"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/lineflow-backend/internal/logger"
	"github.com/Ananth-NQI/lineflow-backend/internal/metrics"
	"github.com/Ananth-NQI/lineflow-backend/internal/models"
)

// reply is the only way text reaches a contact. Send failures are logged, not retried.
func (e *Engine) reply(ctx context.Context, t *turn, text string) {
	if text == "" {
		return
	}
	e.stamp(ctx, t)

	t.log.Debug("sending message",
		logger.Event("SEND_ATTEMPT"),
		zap.String("preview", preview(text, 80)),
		zap.Int("length", len(text)))

	if err := e.sender.SendText(ctx, t.key.LineID, t.key.ContactID, text); err != nil {
		metrics.MessagesSentTotal.WithLabelValues("text", "error").Inc()
		t.log.Error("message not sent", logger.Event("SEND_FAIL"), zap.Error(err))
	} else {
		metrics.MessagesSentTotal.WithLabelValues("text", "ok").Inc()
		t.log.Debug("message sent", logger.Event("SEND_OK"))
	}
	e.sleep(ctx, e.textPacing)
}

// replyImage sends a local image with an optional caption
func (e *Engine) replyImage(ctx context.Context, t *turn, path, caption string) {
	e.stamp(ctx, t)

	t.log.Debug("sending image", logger.Event("SEND_ATTEMPT"), zap.String("path", path))
	if err := e.sender.SendImage(ctx, t.key.LineID, t.key.ContactID, path, caption); err != nil {
		metrics.MessagesSentTotal.WithLabelValues("image", "error").Inc()
		t.log.Error("image not sent", logger.Event("SEND_FAIL"), zap.String("path", path), zap.Error(err))
	} else {
		metrics.MessagesSentTotal.WithLabelValues("image", "ok").Inc()
		t.log.Debug("image sent", logger.Event("SEND_OK"))
	}
	e.sleep(ctx, e.imagePacing)
}

// stamp records the outbound action on the session
func (e *Engine) stamp(ctx context.Context, t *turn) {
	now := e.now()
	s, err := e.store.Upsert(ctx, t.key.LineID, t.key.ContactID, func(s models.Session) models.Session {
		s.Meta.LastActionAt = now
		s.Meta.MessageCount++
		return s
	})
	if err != nil {
		t.log.Warn("could not stamp session", zap.Error(err))
		return
	}
	t.sess = s
}
