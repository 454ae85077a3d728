package bot

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/lineflow-backend/internal/accounts"
	"github.com/Ananth-NQI/lineflow-backend/internal/config"
	"github.com/Ananth-NQI/lineflow-backend/internal/logger"
	"github.com/Ananth-NQI/lineflow-backend/internal/metrics"
	"github.com/Ananth-NQI/lineflow-backend/internal/models"
)

// createAccount runs the creation step for a validated name
func (e *Engine) createAccount(ctx context.Context, t *turn, name string) error {
	now := e.now()
	if _, err := e.setState(ctx, t.key, models.StateCreatingAccount, func(s models.Session) models.Session {
		s.Data.Name = name
		s.Data.NameCapturedAt = &now
		return s
	}); err != nil {
		return err
	}
	e.reply(ctx, t, t.cfg.Texts.Creating)

	// advisory only: the creator's own answer decides
	if e.renewal != nil {
		if st := e.renewal.Check(); st.Urgent() {
			t.log.Warn("anti-bot clearance needs urgent renewal, trying anyway",
				logger.Event("CLEARANCE_WARNING"),
				zap.String("reason", st.Reason),
				zap.String("priority", string(st.Priority)))
		}
	}

	started := time.Now()
	acc, err := e.creator.Create(ctx, accounts.Request{
		Name:           name,
		UsernameSuffix: t.cfg.UsernameSuffix,
		FixedPassword:  t.cfg.FixedPassword,
	})
	metrics.AccountCreationDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		category := accounts.Category(err)
		metrics.AccountsCreatedTotal.WithLabelValues(category).Inc()
		t.log.Error("account creation failed",
			logger.Event("CREATE_ERROR"),
			zap.String("category", category),
			zap.Error(err))

		if _, perr := e.setState(ctx, t.key, models.StateWaitName, nil); perr != nil {
			return perr
		}
		e.reply(ctx, t, creationErrorText(t.cfg.Texts, err))
		return nil
	}

	metrics.AccountsCreatedTotal.WithLabelValues("ok").Inc()
	created := e.now()
	// credentials are only sent once the new state is stored
	if _, err := e.setState(ctx, t.key, models.StateWaitDepositChoice, func(s models.Session) models.Session {
		s.Completed = false
		s.Data.Username = acc.Username
		s.Data.AccountCreatedAt = &created
		return s
	}); err != nil {
		return err
	}

	e.sendCredentials(ctx, t, acc.Username, acc.Password)
	t.log.Info("account created", logger.Event("CREATE_OK"), zap.String("username", acc.Username), zap.String("email", acc.Email))

	e.logAccount(ctx, t, name, acc)
	e.reply(ctx, t, t.cfg.Texts.AskDeposit)
	return nil
}

// sendCredentials emits each label and value as its own message so they can be copied
func (e *Engine) sendCredentials(ctx context.Context, t *turn, username, password string) {
	texts := t.cfg.Texts
	e.reply(ctx, t, texts.UsernameLabel)
	e.reply(ctx, t, username)
	e.reply(ctx, t, texts.PasswordLabel)
	e.reply(ctx, t, password)
	e.reply(ctx, t, texts.URLLabel)
	e.reply(ctx, t, t.cfg.SiteURL)
}

func (e *Engine) logAccount(ctx context.Context, t *turn, name string, acc accounts.Account) {
	if e.ledger == nil {
		return
	}
	err := e.ledger.LogAccount(ctx, models.AccountRecord{
		Name:     name,
		Phone:    t.ev.Phone(),
		Username: acc.Username,
		Password: acc.Password,
		LineID:   t.key.LineID,
	})
	if err != nil {
		t.log.Warn("ledger write failed", logger.Event("LEDGER_ERROR"), zap.Error(err))
		return
	}
	t.log.Info("account saved to ledger", logger.Event("LEDGER_SAVED"), zap.String("username", acc.Username))
}

// creationErrorText maps a creator failure to a short message for the contact
func creationErrorText(texts config.Texts, err error) string {
	switch {
	case errors.Is(err, accounts.ErrConfigMissing):
		return texts.ErrorConfig
	case errors.Is(err, accounts.ErrRetryLater):
		return texts.ErrorBusy
	case errors.Is(err, accounts.ErrAntiBotBlock):
		return texts.ErrorMaintenance
	case errors.Is(err, accounts.ErrAuthFailed):
		return texts.ErrorAuth
	}
	return texts.ErrorGeneric
}
