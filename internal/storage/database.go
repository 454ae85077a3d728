package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Ananth-NQI/lineflow-backend/internal/models"
)

// DatabaseStore keeps one row per conversation, so an upsert rewrites a
// single record instead of the whole document.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

type sessionRow struct {
	LineID       string    `gorm:"primaryKey;size:32"`
	ContactID    string    `gorm:"primaryKey;size:128"`
	State        string    `gorm:"size:32;not null"`
	Completed    bool      `gorm:"not null;default:false"`
	LastActionAt time.Time `gorm:"index"`
	DataJSON     string    `gorm:"type:text"`
	MetaJSON     string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (sessionRow) TableName() string {
	return "whatsapp_sessions"
}

// NewDatabaseStore migrates the sessions table on db
func NewDatabaseStore(db *gorm.DB) (*DatabaseStore, error) {
	if err := db.AutoMigrate(&sessionRow{}); err != nil {
		return nil, fmt.Errorf("migrate sessions: %w", err)
	}
	return &DatabaseStore{db: db, now: time.Now}, nil
}

func (d *DatabaseStore) Get(ctx context.Context, lineID, contactID string) (models.Session, error) {
	row, err := d.take(d.db.WithContext(ctx), lineID, contactID)
	if err != nil {
		return models.Session{}, err
	}
	return row.toSession()
}

func (d *DatabaseStore) Upsert(ctx context.Context, lineID, contactID string, fn Transform) (models.Session, error) {
	var out models.Session
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next, err := d.upsertTx(tx, lineID, contactID, fn)
		out = next
		return err
	})
	if err != nil {
		return models.Session{}, err
	}
	return out, nil
}

func (d *DatabaseStore) ResetIfInactive(ctx context.Context, lineID, contactID string, inactivity time.Duration) (models.Session, bool, error) {
	var (
		out   models.Session
		reset bool
	)
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := d.take(tx, lineID, contactID)
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		current, err := row.toSession()
		if err != nil {
			return err
		}
		if !inactive(current, inactivity, d.now()) {
			out = current
			return nil
		}
		out, err = d.upsertTx(tx, lineID, contactID, resetSession)
		reset = err == nil
		return err
	})
	if err != nil {
		return models.Session{}, false, err
	}
	return out, reset, nil
}

func (d *DatabaseStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := d.db.WithContext(ctx).Model(&sessionRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return int(n), nil
}

func (d *DatabaseStore) List(ctx context.Context) ([]models.Session, error) {
	var rows []sessionRow
	if err := d.db.WithContext(ctx).Order("updated_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]models.Session, 0, len(rows))
	for _, row := range rows {
		s, err := row.toSession()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *DatabaseStore) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := d.now().Add(-age)
	res := d.db.WithContext(ctx).Where("last_action_at < ?", cutoff).Delete(&sessionRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}

func (d *DatabaseStore) take(tx *gorm.DB, lineID, contactID string) (sessionRow, error) {
	var row sessionRow
	err := tx.Where("line_id = ? AND contact_id = ?", lineID, contactID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return sessionRow{}, ErrSessionNotFound
		}
		return sessionRow{}, fmt.Errorf("get session: %w", err)
	}
	return row, nil
}

func (d *DatabaseStore) upsertTx(tx *gorm.DB, lineID, contactID string, fn Transform) (models.Session, error) {
	row, err := d.take(tx, lineID, contactID)
	found := err == nil
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return models.Session{}, err
	}

	var prev *models.Session
	if found {
		current, err := row.toSession()
		if err != nil {
			return models.Session{}, err
		}
		prev = &current
	}

	next := apply(prev, lineID, contactID, fn, d.now())
	nextRow, err := rowFromSession(next)
	if err != nil {
		return models.Session{}, err
	}

	if found {
		err = tx.Save(&nextRow).Error
	} else {
		err = tx.Create(&nextRow).Error
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("save session: %w", err)
	}
	return next, nil
}

func (r sessionRow) toSession() (models.Session, error) {
	s := models.Session{
		LineID:    r.LineID,
		ContactID: r.ContactID,
		State:     models.State(r.State),
		Completed: r.Completed,
	}
	if r.DataJSON != "" {
		if err := json.Unmarshal([]byte(r.DataJSON), &s.Data); err != nil {
			return models.Session{}, fmt.Errorf("decode session data: %w", err)
		}
	}
	if r.MetaJSON != "" {
		if err := json.Unmarshal([]byte(r.MetaJSON), &s.Meta); err != nil {
			return models.Session{}, fmt.Errorf("decode session meta: %w", err)
		}
	}
	return s, nil
}

func rowFromSession(s models.Session) (sessionRow, error) {
	data, err := json.Marshal(s.Data)
	if err != nil {
		return sessionRow{}, fmt.Errorf("encode session data: %w", err)
	}
	meta, err := json.Marshal(s.Meta)
	if err != nil {
		return sessionRow{}, fmt.Errorf("encode session meta: %w", err)
	}
	return sessionRow{
		LineID:       s.LineID,
		ContactID:    s.ContactID,
		State:        string(s.State),
		Completed:    s.Completed,
		LastActionAt: s.Meta.LastActionAt,
		DataJSON:     string(data),
		MetaJSON:     string(meta),
		CreatedAt:    s.Meta.CreatedAt,
		UpdatedAt:    s.Meta.UpdatedAt,
	}, nil
}
