// Package bot is the conversation engine: it turns inbound messages into
// session transitions and replies.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/lineflow-backend/internal/accounts"
	"github.com/Ananth-NQI/lineflow-backend/internal/config"
	"github.com/Ananth-NQI/lineflow-backend/internal/logger"
	"github.com/Ananth-NQI/lineflow-backend/internal/metrics"
	"github.com/Ananth-NQI/lineflow-backend/internal/models"
	"github.com/Ananth-NQI/lineflow-backend/internal/reminder"
	"github.com/Ananth-NQI/lineflow-backend/internal/renewal"
	"github.com/Ananth-NQI/lineflow-backend/internal/storage"
)

const (
	defaultTextPacing  = 800 * time.Millisecond
	defaultImagePacing = time.Second

	// a CREATING_ACCOUNT session older than this was interrupted mid-creation
	staleCreation = 2 * time.Minute

	persistAttempts = 3
)

// Sender delivers replies on a line
type Sender interface {
	SendText(ctx context.Context, lineID, contactID, text string) error
	SendImage(ctx context.Context, lineID, contactID, path, caption string) error
}

// Ledger is the account log. Failures never change the conversation.
type Ledger interface {
	LogAccount(ctx context.Context, rec models.AccountRecord) error
	UpdateDepositFlag(ctx context.Context, phone string, deposited bool) error
	LookupByPhone(ctx context.Context, phone string) (models.AccountRecord, error)
}

// SettingsSource resolves the bot configuration, once per event
type SettingsSource interface {
	Settings() config.Settings
}

// RenewalChecker reports whether the anti-bot clearance is stale
type RenewalChecker interface {
	Check() renewal.Status
}

// Options wires an Engine. Ledger and Renewal are optional.
type Options struct {
	Store    storage.SessionStore
	Sender   Sender
	Creator  accounts.Creator
	Ledger   Ledger
	Settings SettingsSource
	Renewal  RenewalChecker
	Logger   *zap.Logger

	// Pause after each reply. Zero uses the defaults, negative disables.
	TextPacing  time.Duration
	ImagePacing time.Duration
}

type Engine struct {
	store     storage.SessionStore
	sender    Sender
	creator   accounts.Creator
	ledger    Ledger
	settings  SettingsSource
	renewal   RenewalChecker
	reminders *reminder.Scheduler
	locks     *keyedMutex
	logger    *zap.Logger

	textPacing  time.Duration
	imagePacing time.Duration
	retryDelay  time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

func NewEngine(opts Options) (*Engine, error) {
	if opts.Store == nil || opts.Sender == nil || opts.Creator == nil || opts.Settings == nil {
		return nil, errors.New("bot: store, sender, creator and settings are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		store:       opts.Store,
		sender:      opts.Sender,
		creator:     opts.Creator,
		ledger:      opts.Ledger,
		settings:    opts.Settings,
		renewal:     opts.Renewal,
		reminders:   reminder.NewScheduler(),
		locks:       newKeyedMutex(),
		logger:      logger.WithComponent(opts.Logger, "engine"),
		textPacing:  pacing(opts.TextPacing, defaultTextPacing),
		imagePacing: pacing(opts.ImagePacing, defaultImagePacing),
		retryDelay:  100 * time.Millisecond,
		now:         time.Now,
		sleep:       sleepContext,
	}, nil
}

// HandleIncoming is the single inbound entry point. It never panics and
// never returns an error: failures are logged and the event is dropped.
func (e *Engine) HandleIncoming(ctx context.Context, ev models.InboundEvent) {
	log := logger.WithContact(e.logger, ev.LineID, ev.ContactID)
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerPanicsTotal.Inc()
			log.Error("panic while handling message",
				logger.Event("HANDLER_PANIC"),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	unlock := e.locks.Lock(ev.Key())
	defer unlock()

	log.Debug("message received",
		zap.String("event_id", ev.EventID),
		zap.String("kind", ev.Kind),
		zap.Bool("has_media", ev.HasMedia),
		zap.String("mime_type", ev.MimeType),
		zap.Int("length", len(ev.Text)))

	if err := e.handle(ctx, ev, log); err != nil {
		log.Error("message handling failed", logger.Event("HANDLE_ERROR"), zap.Error(err))
	}
}

// Stop cancels every pending reminder
func (e *Engine) Stop() {
	e.reminders.Stop()
}

// PendingReminders is the number of contacts waiting for a proof reminder
func (e *Engine) PendingReminders() int {
	return e.reminders.Len()
}

// turn is the state shared by the steps handling one event
type turn struct {
	ev   models.InboundEvent
	key  models.ContactKey
	cfg  config.Settings
	sess models.Session
	text string
	norm string
	log  *zap.Logger
}

// load returns the current session after the inactivity reset, creating it on first contact
func (e *Engine) load(ctx context.Context, t *turn) error {
	sess, wasReset, err := e.store.ResetIfInactive(ctx, t.key.LineID, t.key.ContactID, t.cfg.Inactivity)
	if err != nil {
		return fmt.Errorf("reset inactive session: %w", err)
	}
	if sess.LineID == "" {
		sess, err = e.store.Upsert(ctx, t.key.LineID, t.key.ContactID, func(s models.Session) models.Session { return s })
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
	}
	if wasReset {
		e.reminders.Cancel(t.key)
		t.log.Info("session reset after inactivity", logger.Event("SESSION_RESET"))
	}

	if sess.State == models.StateCreatingAccount && e.now().Sub(sess.Meta.LastStateChange) > staleCreation {
		sess, err = e.setState(ctx, t.key, models.StateWaitName, nil)
		if err != nil {
			return err
		}
		t.log.Warn("interrupted account creation repaired", logger.Event("STATE_REPAIRED"))
	}

	t.sess = sess
	return nil
}

// persist runs an upsert, retrying before giving up. Used for every state
// write that must land before the contact sees the consequence.
func (e *Engine) persist(ctx context.Context, key models.ContactKey, fn storage.Transform) (models.Session, error) {
	var err error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		var s models.Session
		s, err = e.store.Upsert(ctx, key.LineID, key.ContactID, fn)
		if err == nil {
			return s, nil
		}
		e.logger.Warn("session write failed",
			logger.Event("PERSIST_RETRY"),
			zap.String("key", key.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < persistAttempts {
			e.sleep(ctx, time.Duration(attempt)*e.retryDelay)
		}
	}
	return models.Session{}, fmt.Errorf("persist %s: %w", key, err)
}

// setState moves the contact to next and applies fn to the same write
func (e *Engine) setState(ctx context.Context, key models.ContactKey, next models.State, fn storage.Transform) (models.Session, error) {
	now := e.now()
	s, err := e.persist(ctx, key, func(s models.Session) models.Session {
		s = s.WithState(next, now)
		if fn != nil {
			s = fn(s)
		}
		return s
	})
	if err != nil {
		return models.Session{}, err
	}
	metrics.StateTransitionsTotal.WithLabelValues(string(next)).Inc()
	return s, nil
}

// touch zeroes lastActionAt so expected input never trips the cooldown
func (e *Engine) touch(ctx context.Context, t *turn) {
	_, err := e.store.Upsert(ctx, t.key.LineID, t.key.ContactID, func(s models.Session) models.Session {
		s.Meta.LastActionAt = time.Time{}
		return s
	})
	if err != nil {
		t.log.Warn("could not clear last action", zap.Error(err))
	}
}

func pacing(d, fallback time.Duration) time.Duration {
	switch {
	case d < 0:
		return 0
	case d == 0:
		return fallback
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
