package bot

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/lineflow-backend/internal/logger"
	"github.com/Ananth-NQI/lineflow-backend/internal/metrics"
	"github.com/Ananth-NQI/lineflow-backend/internal/models"
	"github.com/Ananth-NQI/lineflow-backend/internal/reminder"
	"github.com/Ananth-NQI/lineflow-backend/internal/storage"
)

func (e *Engine) scheduleReminder(key models.ContactKey, delay time.Duration) {
	e.reminders.Schedule(key, delay, func(claim reminder.Claim) { e.fireReminder(key, claim) })
}

// fireReminder nudges a contact still waiting in the proof step
func (e *Engine) fireReminder(key models.ContactKey, claim reminder.Claim) {
	log := logger.WithContact(e.logger, key.LineID, key.ContactID)
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerPanicsTotal.Inc()
			log.Error("panic in reminder", logger.Event("HANDLER_PANIC"), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	unlock := e.locks.Lock(key)
	defer unlock()

	// a turn holding the lock may have cancelled or replaced this timer
	if !claim() {
		log.Debug("reminder skipped, timer was replaced", logger.Event("REMINDER_STALE"))
		return
	}

	ctx := context.Background()
	sess, err := e.store.Get(ctx, key.LineID, key.ContactID)
	if err != nil {
		if !errors.Is(err, storage.ErrSessionNotFound) {
			log.Error("reminder could not load session", zap.Error(err))
		}
		return
	}
	if sess.State != models.StateWaitProof {
		log.Debug("reminder skipped, contact moved on", logger.Event("REMINDER_STALE"), zap.String("state", string(sess.State)))
		return
	}

	t := &turn{key: key, sess: sess, cfg: e.settings.Settings(), log: log}
	e.reply(ctx, t, t.cfg.Texts.ProofReminder)
	metrics.RemindersFiredTotal.Inc()
	log.Info("proof reminder sent", logger.Event("REMINDER_SENT"))
}
