package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Ananth-NQI/lineflow-backend/internal/models"
)

// NewFileStore returns a MemoryStore mirrored to a single JSON document at
// path. A missing or unreadable document starts an empty store; write
// failures are returned to the caller.
func NewFileStore(path string, logger *zap.Logger) (*MemoryStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	sessions := readDocument(path, logger)

	store := &MemoryStore{
		sessions: sessions,
		now:      time.Now,
		persist: func(doc map[string]models.Session) error {
			return writeDocument(path, doc)
		},
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := writeDocument(path, sessions); err != nil {
			return nil, err
		}
	}

	logger.Info("session file loaded",
		zap.String("path", path),
		zap.Int("sessions", len(sessions)),
	)
	return store, nil
}

func readDocument(path string, logger *zap.Logger) map[string]models.Session {
	empty := make(map[string]models.Session)

	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("session file unreadable, starting empty", zap.String("path", path), zap.Error(err))
		}
		return empty
	}

	var doc map[string]models.Session
	if err := json.Unmarshal(raw, &doc); err != nil {
		logger.Warn("session file corrupt, starting empty", zap.String("path", path), zap.Error(err))
		return empty
	}
	if doc == nil {
		return empty
	}
	return doc
}

// writeDocument replaces the whole file atomically
func writeDocument(path string, doc map[string]models.Session) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write sessions: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write sessions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write sessions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace sessions file: %w", err)
	}
	return nil
}
