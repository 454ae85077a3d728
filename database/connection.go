package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqliteDriver "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Settings describes how to reach the database
type Settings struct {
	Driver string // "postgres" or "sqlite"
	DSN    string

	// Used to build a postgres DSN when DSN is empty
	User                   string
	Password               string
	Name                   string
	InstanceConnectionName string // Cloud SQL socket
}

// Connect opens the database described by s
func Connect(s Settings, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver := strings.ToLower(strings.TrimSpace(s.Driver))
	cfg := &gorm.Config{Logger: gormLogger(logger)}

	switch driver {
	case "sqlite", "":
		dsn := strings.TrimSpace(s.DSN)
		if dsn == "" {
			dsn = "data/lineflow.db"
		}
		if err := ensureSQLiteDirectory(dsn); err != nil {
			return nil, err
		}
		db, err := gorm.Open(sqliteDriver.Open(withSQLitePragmas(dsn)), cfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql db: %w", err)
		}
		// sqlite has a single writer; concurrent upserts queue in the pool
		sqlDB.SetMaxOpenConns(1)
		logger.Info("✅ SQLite database opened", zap.String("dsn", dsn))
		return db, nil

	case "postgres":
		dsn := strings.TrimSpace(s.DSN)
		if dsn == "" {
			dsn = postgresDSN(s, logger)
		}
		db, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		logger.Info("✅ Database connected successfully!")
		return db, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", s.Driver)
	}
}

// Close releases the pool behind db
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}

// gormLogger writes gorm warnings and errors through zap. A lookup that finds
// nothing is an expected outcome for session reads and is not logged.
func gormLogger(logger *zap.Logger) gormlogger.Interface {
	w, err := zap.NewStdLogAt(logger.With(zap.String("component", "gorm")), zap.WarnLevel)
	if err != nil {
		return gormlogger.Discard
	}
	return gormlogger.New(w, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// withSQLitePragmas adds a busy timeout, and WAL for file databases, unless
// the DSN already sets pragmas of its own.
func withSQLitePragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	pragmas := "_pragma=busy_timeout(5000)"
	if !inMemory(dsn) {
		pragmas += "&_pragma=journal_mode(WAL)"
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + pragmas
	}
	return dsn + "?" + pragmas
}

func inMemory(dsn string) bool {
	lower := strings.ToLower(dsn)
	return lower == ":memory:" || strings.HasPrefix(lower, "file::memory:") || strings.Contains(lower, "mode=memory")
}

func postgresDSN(s Settings, logger *zap.Logger) string {
	user := s.User
	if user == "" {
		user = "postgres"
	}
	name := s.Name
	if name == "" {
		name = "lineflow"
	}

	if s.InstanceConnectionName != "" {
		// Production: Cloud SQL via unix socket
		logger.Info("Connecting to Cloud SQL via socket", zap.String("instance", s.InstanceConnectionName))
		return fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s sslmode=disable",
			s.InstanceConnectionName, user, s.Password, name)
	}

	logger.Info("Connecting to local PostgreSQL")
	return fmt.Sprintf("host=localhost user=%s password=%s dbname=%s port=5432 sslmode=disable",
		user, s.Password, name)
}

func ensureSQLiteDirectory(dsn string) error {
	if inMemory(dsn) {
		return nil
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sqlite db dir: %w", err)
	}
	return nil
}
