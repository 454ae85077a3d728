package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Ananth-NQI/lineflow-backend/internal/models"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "ledger.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	l, err := New(db)
	require.NoError(t, err)
	return l
}

func TestLogAndLookupByPhone(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	require.NoError(t, l.LogAccount(ctx, models.AccountRecord{
		Name: "Juan", Phone: "5491100000001@c.us", Username: "juan1234_line", Password: "Hola1234", LineID: "line001",
		CreatedAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, l.LogAccount(ctx, models.AccountRecord{
		Name: "Juan", Phone: "whatsapp:5491100000001", Username: "juan9999_line", Password: "Hola1234", LineID: "line002",
	}))

	rec, err := l.LookupByPhone(ctx, "5491100000001")
	require.NoError(t, err)
	assert.Equal(t, "juan9999_line", rec.Username, "latest row wins")
	assert.Equal(t, "5491100000001", rec.Phone)
	assert.NotEmpty(t, rec.ID)

	_, err = l.LookupByPhone(ctx, "5491100000009")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.LookupByPhone(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateDepositFlag(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)

	require.NoError(t, l.LogAccount(ctx, models.AccountRecord{Name: "Ana", Phone: "100", Username: "ana0001_line", LineID: "line001"}))
	require.NoError(t, l.UpdateDepositFlag(ctx, "100@c.us", true))

	rec, err := l.LookupByPhone(ctx, "100")
	require.NoError(t, err)
	assert.True(t, rec.Deposited)

	assert.ErrorIs(t, l.UpdateDepositFlag(ctx, "200", true), ErrNotFound)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	now := time.Now()

	rows := []models.AccountRecord{
		{Phone: "1", LineID: "line001", Deposited: true, CreatedAt: now},
		{Phone: "2", LineID: "line001", CreatedAt: now},
		{Phone: "3", LineID: "line002", Deposited: true, CreatedAt: now.Add(-3 * 24 * time.Hour)},
		{Phone: "4", LineID: "line002", CreatedAt: now.Add(-20 * 24 * time.Hour)},
	}
	for _, r := range rows {
		require.NoError(t, l.LogAccount(ctx, r))
	}

	s, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Today)
	assert.Equal(t, 3, s.ThisWeek)
	assert.Equal(t, 2, s.Deposited)
	assert.Equal(t, 1, s.DepositedToday)
	assert.Equal(t, 2, s.DepositedThisWeek)
	assert.InDelta(t, 50.0, s.DepositRate, 0.001)
	assert.Equal(t, map[string]int{"line001": 2, "line002": 2}, s.ByLine)
}

func TestByDay(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t)
	now := time.Now()

	require.NoError(t, l.LogAccount(ctx, models.AccountRecord{Phone: "1", CreatedAt: now}))
	require.NoError(t, l.LogAccount(ctx, models.AccountRecord{Phone: "2", CreatedAt: now}))
	require.NoError(t, l.LogAccount(ctx, models.AccountRecord{Phone: "3", CreatedAt: now.AddDate(0, 0, -40)}))

	days, err := l.ByDay(ctx, 7)
	require.NoError(t, err)
	require.Len(t, days, 7)
	assert.Equal(t, now.Format(time.DateOnly), days[6].Date)
	assert.Equal(t, 2, days[6].Count)

	total := 0
	for _, d := range days {
		total += d.Count
	}
	assert.Equal(t, 2, total)
}
