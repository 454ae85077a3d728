package storage

import (
	"context"
	"os"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/lineflow-backend/database"
	"github.com/Ananth-NQI/lineflow-backend/internal/models"
)

const (
	line    = "line001"
	contact = "5491155550000@c.us"
)

// every backend must satisfy the same contract
func backends(t *testing.T) map[string]SessionStore {
	t.Helper()

	fileStore, err := NewFileStore(filepath.Join(t.TempDir(), "sessions", "sessions.json"), nil)
	require.NoError(t, err)

	db, err := database.Connect(database.Settings{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "sessions.db")}, nil)
	require.NoError(t, err)
	dbStore, err := NewDatabaseStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	return map[string]SessionStore{
		"memory":   NewMemoryStore(),
		"file":     fileStore,
		"database": dbStore,
	}
}

func TestUpsertCreatesDefaultRecord(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, line, contact)
			require.ErrorIs(t, err, ErrSessionNotFound)

			s, err := store.Upsert(ctx, line, contact, func(s models.Session) models.Session { return s })
			require.NoError(t, err)
			assert.Equal(t, models.StateEntry, s.State)
			assert.Equal(t, line, s.LineID)
			assert.Equal(t, contact, s.ContactID)
			assert.False(t, s.Meta.CreatedAt.IsZero())
			assert.False(t, s.Meta.UpdatedAt.IsZero())

			n, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestUpsertAppliesTransformAndKeepsIdentity(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Upsert(ctx, line, contact, func(s models.Session) models.Session {
				s.State = models.StateWaitName
				s.Data.Name = "Juan"
				s = s.MarkOption(models.OptionInfo)
				s.LineID = "tampered"
				return s
			})
			require.NoError(t, err)

			got, err := store.Get(ctx, line, contact)
			require.NoError(t, err)
			assert.Equal(t, models.StateWaitName, got.State)
			assert.Equal(t, "Juan", got.Data.Name)
			assert.True(t, got.Data.UsedOptions[models.OptionInfo])
			assert.Equal(t, line, got.LineID, "identity is immutable")

			_, err = store.Upsert(ctx, line, contact, func(s models.Session) models.Session {
				s.Meta.MessageCount++
				return s
			})
			require.NoError(t, err)
			got, err = store.Get(ctx, line, contact)
			require.NoError(t, err)
			assert.Equal(t, 1, got.Meta.MessageCount)
			assert.Equal(t, "Juan", got.Data.Name)
		})
	}
}

func TestResetIfInactive(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, reset, err := store.ResetIfInactive(ctx, line, contact, 2*time.Hour)
			require.NoError(t, err)
			assert.False(t, reset, "missing session is a no-op")

			_, err = store.Upsert(ctx, line, contact, func(s models.Session) models.Session {
				s.State = models.StateCompleted
				s.Completed = true
				s.Data.Username = "juan1234_suffix"
				s.Meta.LastActionAt = time.Now().Add(-30 * time.Minute)
				return s
			})
			require.NoError(t, err)

			s, reset, err := store.ResetIfInactive(ctx, line, contact, 2*time.Hour)
			require.NoError(t, err)
			assert.False(t, reset)
			assert.Equal(t, models.StateCompleted, s.State)

			_, err = store.Upsert(ctx, line, contact, func(s models.Session) models.Session {
				s.Meta.LastActionAt = time.Now().Add(-3 * time.Hour)
				return s
			})
			require.NoError(t, err)

			s, reset, err = store.ResetIfInactive(ctx, line, contact, 2*time.Hour)
			require.NoError(t, err)
			assert.True(t, reset)
			assert.Equal(t, models.StateEntry, s.State)
			assert.False(t, s.Completed)
			assert.Empty(t, s.Data.Username)

			got, err := store.Get(ctx, line, contact)
			require.NoError(t, err)
			assert.Equal(t, models.StateEntry, got.State)
		})
	}
}

func TestCleanupOlderThan(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for i, age := range []time.Duration{time.Hour, 30 * time.Hour, 48 * time.Hour} {
				contactID := string(rune('a' + i))
				_, err := store.Upsert(ctx, line, contactID, func(s models.Session) models.Session {
					s.Meta.LastActionAt = time.Now().Add(-age)
					return s
				})
				require.NoError(t, err)
			}

			cleaned, err := store.CleanupOlderThan(ctx, 24*time.Hour)
			require.NoError(t, err)
			assert.Equal(t, 2, cleaned)

			list, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, "a", list[0].ContactID)
		})
	}
}

func TestFileStoreSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	ctx := context.Background()

	first, err := NewFileStore(path, nil)
	require.NoError(t, err)
	_, err = first.Upsert(ctx, line, contact, func(s models.Session) models.Session {
		s.State = models.StateWaitProof
		return s
	})
	require.NoError(t, err)

	second, err := NewFileStore(path, nil)
	require.NoError(t, err)
	got, err := second.Get(ctx, line, contact)
	require.NoError(t, err)
	assert.Equal(t, models.StateWaitProof, got.State)
}

func TestFileStoreCorruptDocumentStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store, err := NewFileStore(path, nil)
	require.NoError(t, err)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = store.Upsert(context.Background(), line, contact, func(s models.Session) models.Session { return s })
	require.NoError(t, err, "first write replaces the corrupt document")
}

func TestFileStoreWriteFailurePropagates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions")
	path := filepath.Join(dir, "sessions.json")

	store, err := NewFileStore(path, nil)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	_, err = store.Upsert(context.Background(), line, contact, func(s models.Session) models.Session {
		s.State = models.StateWaitName
		return s
	})
	require.Error(t, err)

	_, err = store.Get(context.Background(), line, contact)
	assert.ErrorIs(t, err, ErrSessionNotFound, "failed write must not be visible")
}

func TestConcurrentUpsertsAcrossContacts(t *testing.T) {
	const contacts, writes = 30, 10

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			errs := make(chan error, contacts*writes)

			for c := 0; c < contacts; c++ {
				wg.Add(1)
				go func(id string) {
					defer wg.Done()
					for i := 0; i < writes; i++ {
						_, err := store.Upsert(ctx, line, id, func(s models.Session) models.Session {
							s.Meta.MessageCount++
							return s
						})
						errs <- err
					}
				}(fmt.Sprintf("54911%08d@c.us", c))
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			all, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, all, contacts)
			for _, s := range all {
				assert.Equal(t, writes, s.Meta.MessageCount, s.ContactID)
			}
		})
	}
}
