package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Ananth-NQI/lineflow-backend/internal/models"
	"github.com/Ananth-NQI/lineflow-backend/internal/renewal"
	"github.com/Ananth-NQI/lineflow-backend/internal/storage"
)

type staticRenewal renewal.Status

func (s staticRenewal) Check() renewal.Status { return renewal.Status(s) }

func seedSession(t *testing.T, store storage.SessionStore, contact string, lastAction time.Time) {
	t.Helper()
	_, err := store.Upsert(context.Background(), "line001", contact, func(s models.Session) models.Session {
		s.Meta.LastActionAt = lastAction
		return s
	})
	require.NoError(t, err)
}

func TestCleanupSessions(t *testing.T) {
	store := storage.NewMemoryStore()
	seedSession(t, store, "old", time.Now().Add(-30*time.Hour))
	seedSession(t, store, "fresh", time.Now().Add(-time.Hour))

	job := NewMaintenanceJob(MaintenanceOptions{Sessions: store, CleanupMaxAge: 24 * time.Hour})
	removed, err := job.CleanupSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(context.Background(), "line001", "fresh")
	assert.NoError(t, err)
	_, err = store.Get(context.Background(), "line001", "old")
	assert.ErrorIs(t, err, storage.ErrSessionNotFound)
}

func TestCheckRenewalWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	job := NewMaintenanceJob(MaintenanceOptions{
		Sessions: storage.NewMemoryStore(),
		Renewal:  staticRenewal{NeedsRenewal: true, Reason: renewal.ReasonExpired, Priority: renewal.PriorityHigh},
		Logger:   zap.New(core),
	})

	st := job.CheckRenewal()
	assert.True(t, st.Urgent())
	assert.Equal(t, 1, logs.Len())
}

func TestStartRunsJobsImmediatelyAndStops(t *testing.T) {
	store := storage.NewMemoryStore()
	seedSession(t, store, "old", time.Now().Add(-48*time.Hour))

	job := NewMaintenanceJob(MaintenanceOptions{
		Sessions:        store,
		Renewal:         staticRenewal{Reason: renewal.ReasonValid, Priority: renewal.PriorityNone},
		CleanupInterval: time.Hour,
	})
	job.Start()
	job.Start()

	assert.Eventually(t, func() bool {
		n, _ := store.Count(context.Background())
		return n == 0
	}, time.Second, 10*time.Millisecond)

	job.Stop()
	job.Stop()
}
