package bot

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/lineflow-backend/internal/config"
	"github.com/Ananth-NQI/lineflow-backend/internal/intent"
	"github.com/Ananth-NQI/lineflow-backend/internal/ledger"
	"github.com/Ananth-NQI/lineflow-backend/internal/logger"
	"github.com/Ananth-NQI/lineflow-backend/internal/models"
)

func (e *Engine) handle(ctx context.Context, ev models.InboundEvent, log *zap.Logger) error {
	t := &turn{
		ev:   ev,
		key:  ev.Key(),
		cfg:  e.settings.Settings(),
		text: strings.TrimSpace(ev.Text),
		log:  log,
	}
	if err := e.load(ctx, t); err != nil {
		return err
	}
	t.norm = intent.Normalize(t.text)

	// the proof step looks at the attachment before any text
	if t.sess.State == models.StateWaitProof {
		if done, err := e.onWaitProof(ctx, t); done || err != nil {
			return err
		}
	}

	if t.text == "" {
		log.Debug("media outside proof step ignored", logger.Event("MEDIA_IGNORED"))
		return nil
	}

	if e.rateLimited(t) {
		log.Debug("message suppressed by cooldown", logger.Event("RATE_LIMITED"))
		return nil
	}

	switch {
	case intent.Any(t.norm, intent.Restarts...):
		return e.onRestart(ctx, t)
	case t.sess.State == models.StateCreatingAccount:
		e.reply(ctx, t, t.cfg.Texts.PleaseWait)
		return nil
	case intent.Is(t.norm, intent.Deposit):
		if t.sess.State == models.StateWaitName {
			e.reply(ctx, t, t.cfg.Texts.AskName)
			return nil
		}
		return e.startDeposit(ctx, t, "DEPOSIT_COMMAND")
	case intent.Is(t.norm, intent.ForgotAccount):
		return e.onForgotAccount(ctx, t)
	}

	switch t.sess.State {
	case models.StateWaitName:
		return e.onWaitName(ctx, t)
	case models.StateWaitDepositChoice:
		return e.onDepositChoice(ctx, t)
	}

	switch {
	case intent.Is(t.norm, intent.Info):
		return e.onMenuOption(ctx, t, models.OptionInfo, t.cfg.Texts.Info, "FLOW_INFO")
	case intent.Is(t.norm, intent.Support):
		return e.onMenuOption(ctx, t, models.OptionSupport, t.cfg.Texts.Support, "FLOW_SUPPORT")
	case intent.Is(t.norm, intent.CreateAccount):
		if t.sess.Completed {
			e.reply(ctx, t, t.cfg.Texts.AlreadyHasAccount)
			return nil
		}
		return e.onCreateAccount(ctx, t)
	}

	if t.sess.Completed {
		e.reply(ctx, t, t.cfg.Texts.WelcomeBack)
		log.Info("welcome back sent", logger.Event("WELCOME_BACK"))
		return nil
	}
	return e.onUnknownContact(ctx, t)
}

// rateLimited drops unrecognized chatter outside the flow during the cooldown
func (e *Engine) rateLimited(t *turn) bool {
	if t.cfg.RateLimit <= 0 || t.sess.InFlow() || intent.IsCommand(t.norm) {
		return false
	}
	if t.sess.Meta.LastActionAt.IsZero() {
		return false
	}
	return e.now().Sub(t.sess.Meta.LastActionAt) < t.cfg.RateLimit
}

// onWaitProof handles the proof step. It reports false when the message is a
// global command that must go through normal dispatch.
func (e *Engine) onWaitProof(ctx context.Context, t *turn) (bool, error) {
	e.touch(ctx, t)

	if t.ev.IsImage() {
		e.reminders.Cancel(t.key)
		now := e.now()
		if _, err := e.setState(ctx, t.key, models.StateCompleted, func(s models.Session) models.Session {
			s.Completed = true
			s.Data.ProofReceived = true
			s.Data.CompletedAt = &now
			return s
		}); err != nil {
			return true, err
		}
		e.reply(ctx, t, t.cfg.Texts.ProofRedirect)
		t.log.Info("proof image received, hand-off sent",
			logger.Event("PROOF_IMAGE_RECEIVED"),
			zap.String("kind", t.ev.Kind),
			zap.String("mime_type", t.ev.MimeType))
		return true, nil
	}

	if t.text == "" {
		e.reply(ctx, t, t.cfg.Texts.PhotoRequestEmpty)
		return true, nil
	}

	if intent.Any(t.norm, intent.Menu, intent.Restart, intent.Cancel, intent.Info, intent.Support) {
		e.reminders.Cancel(t.key)
		return false, nil
	}

	if intent.Is(t.norm, intent.Deposit) {
		e.reply(ctx, t, t.cfg.Texts.ProofAlreadySent)
		return true, nil
	}

	e.reply(ctx, t, t.cfg.Texts.PhotoRequest)
	t.log.Info("text received while waiting for proof", logger.Event("PROOF_EXPECTED_IMAGE"), zap.String("text", preview(t.text, 80)))
	return true, nil
}

func (e *Engine) onRestart(ctx context.Context, t *turn) error {
	e.reminders.Cancel(t.key)
	now := e.now()
	if _, err := e.setState(ctx, t.key, models.StateWaitName, func(s models.Session) models.Session {
		s.Completed = false
		s.Meta.Attempts = 0
		s.Meta.LastWelcomeAt = now
		return s
	}); err != nil {
		return err
	}
	e.reply(ctx, t, t.cfg.Texts.AskName)
	t.log.Info("flow restarted", logger.Event("CMD_MENU"), zap.String("text", t.norm))
	return nil
}

// startDeposit sends the bank details and waits for the proof photo
func (e *Engine) startDeposit(ctx context.Context, t *turn, event string) error {
	now := e.now()
	if _, err := e.setState(ctx, t.key, models.StateWaitProof, func(s models.Session) models.Session {
		s.Completed = false
		s.Data.DepositResponse = "SI"
		s.Data.WaitingProofSince = &now
		return s
	}); err != nil {
		return err
	}

	texts := t.cfg.Texts
	e.reply(ctx, t, texts.BankDetails)
	e.reply(ctx, t, texts.AccountNumber)
	if t.cfg.DepositImagePath != "" {
		e.replyImage(ctx, t, t.cfg.DepositImagePath, texts.DepositImageText)
	}
	e.reply(ctx, t, texts.AskProof)
	e.scheduleReminder(t.key, t.cfg.ReminderDelay)

	t.log.Info("bank details sent, waiting for proof", logger.Event(event))
	e.updateDeposit(ctx, t, true)
	return nil
}

func (e *Engine) onWaitName(ctx context.Context, t *turn) error {
	e.touch(ctx, t)

	switch {
	case intent.Is(t.norm, intent.Info):
		e.markOption(ctx, t, models.OptionInfo)
		e.reply(ctx, t, t.cfg.Texts.Info)
		e.reply(ctx, t, t.cfg.Texts.AskName)
		return nil
	case intent.Is(t.norm, intent.Support):
		e.markOption(ctx, t, models.OptionSupport)
		e.reply(ctx, t, t.cfg.Texts.Support)
		e.reply(ctx, t, t.cfg.Texts.AskName)
		return nil
	case intent.Is(t.norm, intent.CreateAccount):
		e.reply(ctx, t, t.cfg.Texts.AskName)
		return nil
	}

	if !ValidName(t.text) {
		if _, err := e.store.Upsert(ctx, t.key.LineID, t.key.ContactID, func(s models.Session) models.Session {
			s.Meta.Attempts++
			return s
		}); err != nil {
			t.log.Warn("could not count invalid name", zap.Error(err))
		}
		e.reply(ctx, t, t.cfg.Texts.InvalidName)
		t.log.Info("invalid name", logger.Event("NAME_INVALID"), zap.String("text", preview(t.text, 50)))
		return nil
	}

	return e.createAccount(ctx, t, t.text)
}

func (e *Engine) onDepositChoice(ctx context.Context, t *turn) error {
	e.touch(ctx, t)

	switch {
	case intent.Is(t.norm, intent.Yes):
		return e.startDeposit(ctx, t, "DEPOSIT_YES")
	case intent.Is(t.norm, intent.No):
		now := e.now()
		if _, err := e.setState(ctx, t.key, models.StateCompleted, func(s models.Session) models.Session {
			s.Completed = true
			s.Data.DepositResponse = "NO"
			s.Data.CompletedAt = &now
			return s
		}); err != nil {
			return err
		}
		e.reply(ctx, t, t.cfg.Texts.DepositNo)
		t.log.Info("contact declined the deposit", logger.Event("DEPOSIT_NO"))
		e.updateDeposit(ctx, t, false)
		return nil
	}

	e.reply(ctx, t, t.cfg.Texts.AskDeposit)
	return nil
}

// onMenuOption answers INFO or SUPPORT and offers the options not used yet
func (e *Engine) onMenuOption(ctx context.Context, t *turn, option, text, event string) error {
	s, err := e.store.Upsert(ctx, t.key.LineID, t.key.ContactID, func(s models.Session) models.Session {
		if s.State == models.StateWaitProof {
			s = s.WithState(models.StateEntry, e.now())
		}
		return s.MarkOption(option)
	})
	if err != nil {
		return err
	}
	t.sess = s

	e.reply(ctx, t, text)
	e.reply(ctx, t, t.cfg.Texts.MoreHelp)
	e.reply(ctx, t, menuText(t.cfg.Texts, s.Data.UsedOptions))
	t.log.Info("menu option answered", logger.Event(event))
	return nil
}

func (e *Engine) onCreateAccount(ctx context.Context, t *turn) error {
	if _, err := e.setState(ctx, t.key, models.StateWaitName, func(s models.Session) models.Session {
		s.Data.CreationRequests++
		return s.MarkOption(models.OptionCreateAccount)
	}); err != nil {
		return err
	}
	e.reply(ctx, t, t.cfg.Texts.AskName)
	t.log.Info("account creation started", logger.Event("FLOW_CREATE_START"))
	return nil
}

func (e *Engine) onForgotAccount(ctx context.Context, t *turn) error {
	rec, found := e.lookup(ctx, t)
	if !found {
		e.reply(ctx, t, t.cfg.Texts.ForgotNotFound)
		t.log.Info("no account to recover", logger.Event("FORGOT_NOT_FOUND"))
		return nil
	}
	e.reply(ctx, t, t.cfg.Texts.ForgotFound)
	e.sendCredentials(ctx, t, rec.Username, rec.Password)
	t.log.Info("account details resent", logger.Event("FORGOT_FOUND"), zap.String("username", rec.Username))
	return nil
}

// onUnknownContact restores a returning contact from the ledger, or starts the flow
func (e *Engine) onUnknownContact(ctx context.Context, t *turn) error {
	if rec, found := e.lookup(ctx, t); found {
		now := e.now()
		if _, err := e.setState(ctx, t.key, models.StateCompleted, func(s models.Session) models.Session {
			s.Completed = true
			s.Data.Restored = true
			s.Data.Name = rec.Name
			s.Data.Username = rec.Username
			s.Data.CompletedAt = &now
			return s
		}); err != nil {
			return err
		}
		e.reply(ctx, t, config.Render(t.cfg.Texts.ReturningGreeting, map[string]string{
			"name":     firstNonEmpty(rec.Name, "👋"),
			"username": rec.Username,
		}))
		t.log.Info("returning contact restored from ledger", logger.Event("SESSION_RESTORED"), zap.String("username", rec.Username))
		return nil
	}

	now := e.now()
	if _, err := e.setState(ctx, t.key, models.StateWaitName, func(s models.Session) models.Session {
		s.Meta.LastWelcomeAt = now
		return s
	}); err != nil {
		return err
	}
	e.reply(ctx, t, t.cfg.Texts.Welcome)
	e.reply(ctx, t, t.cfg.Texts.AskName)
	t.log.Info("new contact, flow started", logger.Event("WELCOME_SENT"), zap.String("text", preview(t.text, 50)))
	return nil
}

func (e *Engine) lookup(ctx context.Context, t *turn) (models.AccountRecord, bool) {
	if e.ledger == nil {
		return models.AccountRecord{}, false
	}
	rec, err := e.ledger.LookupByPhone(ctx, t.ev.Phone())
	if err != nil {
		if !errors.Is(err, ledger.ErrNotFound) {
			t.log.Warn("ledger lookup failed", logger.Event("LEDGER_ERROR"), zap.Error(err))
		}
		return models.AccountRecord{}, false
	}
	return rec, true
}

func (e *Engine) updateDeposit(ctx context.Context, t *turn, deposited bool) {
	if e.ledger == nil {
		return
	}
	if err := e.ledger.UpdateDepositFlag(ctx, t.ev.Phone(), deposited); err != nil {
		t.log.Warn("ledger deposit update failed", logger.Event("LEDGER_UPDATE_ERROR"), zap.Error(err))
	}
}

func (e *Engine) markOption(ctx context.Context, t *turn, option string) {
	if _, err := e.store.Upsert(ctx, t.key.LineID, t.key.ContactID, func(s models.Session) models.Session {
		return s.MarkOption(option)
	}); err != nil {
		t.log.Warn("could not record menu option", zap.Error(err))
	}
}

// menuText lists the options the contact has not tried yet, or all of them
func menuText(texts config.Texts, used map[string]bool) string {
	all := []struct{ key, label string }{
		{models.OptionInfo, "INFORMACION"},
		{models.OptionSupport, "ASISTENCIA"},
		{models.OptionCreateAccount, "CREAR USUARIO"},
	}
	var labels []string
	for _, o := range all {
		if !used[o.key] {
			labels = append(labels, o.label)
		}
	}
	if len(labels) == 0 {
		for _, o := range all {
			labels = append(labels, o.label)
		}
	}
	return config.Render(texts.MenuOptions, map[string]string{"options": strings.Join(labels, ", ")})
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}
