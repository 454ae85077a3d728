// Package ledger records every account handed out, keyed by the contact phone.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Ananth-NQI/lineflow-backend/internal/models"
)

var ErrNotFound = errors.New("ledger record not found")

// Ledger is the gorm-backed account log
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

// DayCount is the number of accounts created on one calendar day
type DayCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// New migrates the ledger table and returns the ledger
func New(db *gorm.DB) (*Ledger, error) {
	if err := db.AutoMigrate(&models.AccountRecord{}); err != nil {
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Ledger{db: db, now: time.Now}, nil
}

// LogAccount appends a row for a newly created account
func (l *Ledger) LogAccount(ctx context.Context, rec models.AccountRecord) error {
	rec.ID = ""
	if err := l.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("log account: %w", err)
	}
	return nil
}

// UpdateDepositFlag sets the deposit flag on the latest row for phone
func (l *Ledger) UpdateDepositFlag(ctx context.Context, phone string, deposited bool) error {
	rec, err := l.LookupByPhone(ctx, phone)
	if err != nil {
		return err
	}
	err = l.db.WithContext(ctx).Model(&models.AccountRecord{}).
		Where("id = ?", rec.ID).
		Update("deposited", deposited).Error
	if err != nil {
		return fmt.Errorf("update deposit flag: %w", err)
	}
	return nil
}

// LookupByPhone returns the most recent account for phone
func (l *Ledger) LookupByPhone(ctx context.Context, phone string) (models.AccountRecord, error) {
	clean := models.CleanPhone(phone)
	if clean == "" {
		return models.AccountRecord{}, ErrNotFound
	}

	var rec models.AccountRecord
	err := l.db.WithContext(ctx).
		Where("phone = ?", clean).
		Order("created_at DESC").
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.AccountRecord{}, ErrNotFound
	}
	if err != nil {
		return models.AccountRecord{}, fmt.Errorf("lookup account: %w", err)
	}
	return rec, nil
}

// Stats summarizes accounts for the admin dashboard
func (l *Ledger) Stats(ctx context.Context) (models.AccountStats, error) {
	now := l.now()
	today := startOfDay(now)
	weekAgo := now.Add(-7 * 24 * time.Hour)

	stats := models.AccountStats{ByLine: make(map[string]int)}
	db := l.db.WithContext(ctx).Model(&models.AccountRecord{})

	counts := []struct {
		dst   *int
		query func(*gorm.DB) *gorm.DB
	}{
		{&stats.Total, func(q *gorm.DB) *gorm.DB { return q }},
		{&stats.Today, func(q *gorm.DB) *gorm.DB { return q.Where("created_at >= ?", today) }},
		{&stats.ThisWeek, func(q *gorm.DB) *gorm.DB { return q.Where("created_at >= ?", weekAgo) }},
		{&stats.Deposited, func(q *gorm.DB) *gorm.DB { return q.Where("deposited = ?", true) }},
		{&stats.DepositedToday, func(q *gorm.DB) *gorm.DB {
			return q.Where("deposited = ? AND created_at >= ?", true, today)
		}},
		{&stats.DepositedThisWeek, func(q *gorm.DB) *gorm.DB {
			return q.Where("deposited = ? AND created_at >= ?", true, weekAgo)
		}},
	}
	for _, c := range counts {
		var n int64
		if err := c.query(db.Session(&gorm.Session{})).Count(&n).Error; err != nil {
			return models.AccountStats{}, fmt.Errorf("count accounts: %w", err)
		}
		*c.dst = int(n)
	}

	var perLine []struct {
		LineID string
		Total  int
	}
	err := l.db.WithContext(ctx).Model(&models.AccountRecord{}).
		Select("line_id, COUNT(*) AS total").
		Group("line_id").
		Scan(&perLine).Error
	if err != nil {
		return models.AccountStats{}, fmt.Errorf("count accounts by line: %w", err)
	}
	for _, row := range perLine {
		stats.ByLine[row.LineID] = row.Total
	}

	if stats.Total > 0 {
		stats.DepositRate = float64(stats.Deposited) / float64(stats.Total) * 100
	}
	return stats, nil
}

// ByDay returns per-day account counts for the last days days, oldest first
func (l *Ledger) ByDay(ctx context.Context, days int) ([]DayCount, error) {
	if days <= 0 {
		days = 30
	}
	now := l.now()
	first := startOfDay(now).AddDate(0, 0, -(days - 1))

	var created []time.Time
	err := l.db.WithContext(ctx).Model(&models.AccountRecord{}).
		Where("created_at >= ?", first).
		Pluck("created_at", &created).Error
	if err != nil {
		return nil, fmt.Errorf("list account dates: %w", err)
	}

	buckets := make(map[string]int, days)
	for _, t := range created {
		buckets[t.In(now.Location()).Format(time.DateOnly)]++
	}

	out := make([]DayCount, 0, days)
	for d := first; !d.After(now); d = d.AddDate(0, 0, 1) {
		key := d.Format(time.DateOnly)
		out = append(out, DayCount{Date: key, Count: buckets[key]})
	}
	return out, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
