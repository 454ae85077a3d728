package database

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func TestConnectSQLiteCreatesParentDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "bot.db")

	db, err := Connect(Settings{Driver: "sqlite", DSN: dbPath}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	_, err = os.Stat(filepath.Dir(dbPath))
	assert.NoError(t, err)
}

func TestConnectInMemorySQLite(t *testing.T) {
	db, err := Connect(Settings{Driver: "sqlite", DSN: ":memory:"}, nil)
	require.NoError(t, err)
	assert.NoError(t, Close(db))
}

func TestConnectUnknownDriver(t *testing.T) {
	_, err := Connect(Settings{Driver: "mongo", DSN: "x"}, nil)
	assert.Error(t, err)
}

func TestWithSQLitePragmas(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"data/bot.db", "data/bot.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"},
		{"file:data/bot.db?cache=shared", "file:data/bot.db?cache=shared&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"},
		{":memory:", ":memory:?_pragma=busy_timeout(5000)"},
		{"bot.db?_pragma=foreign_keys(1)", "bot.db?_pragma=foreign_keys(1)"},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, withSQLitePragmas(tt.dsn))
		})
	}
}

type counter struct {
	ID    int `gorm:"primaryKey"`
	Value int
}

func TestSQLiteConcurrentWriters(t *testing.T) {
	db, err := Connect(Settings{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "bot.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	require.NoError(t, db.AutoMigrate(&counter{}))

	const writers, writes = 30, 10
	var wg sync.WaitGroup
	errs := make(chan error, writers*writes)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				errs <- db.Transaction(func(tx *gorm.DB) error {
					var c counter
					if err := tx.FirstOrCreate(&c, counter{ID: id}).Error; err != nil {
						return fmt.Errorf("load %d: %w", id, err)
					}
					c.Value++
					return tx.Save(&c).Error
				})
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var total int
	require.NoError(t, db.Model(&counter{}).Select("SUM(value)").Scan(&total).Error)
	assert.Equal(t, writers*writes, total)
}

func TestGormLogsThroughZapWithoutNotFoundNoise(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	db, err := Connect(Settings{Driver: "sqlite", DSN: ":memory:"}, zap.New(core))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	require.NoError(t, db.AutoMigrate(&counter{}))

	err = db.Take(&counter{}, 42).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Zero(t, logs.FilterMessageSnippet("record not found").Len())

	var rows []counter
	require.Error(t, db.Table("missing_table").Find(&rows).Error)
	failures := logs.FilterMessageSnippet("no such table")
	require.Equal(t, 1, failures.Len())
	assert.Equal(t, zapcore.WarnLevel, failures.All()[0].Level)
}
