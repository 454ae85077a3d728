package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Ananth-NQI/lineflow-backend/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// Transform is a pure function from the current session to the next one.
// It receives a private copy and must return the record to persist.
type Transform func(models.Session) models.Session

// SessionStore persists one conversation record per (line, contact)
type SessionStore interface {
	// Get returns ErrSessionNotFound when the pair was never seen
	Get(ctx context.Context, lineID, contactID string) (models.Session, error)

	// Upsert loads or synthesizes the record, applies fn, stamps UpdatedAt and
	// persists the result. It is the only way sessions change.
	Upsert(ctx context.Context, lineID, contactID string, fn Transform) (models.Session, error)

	// ResetIfInactive sends the session back to the entry state when the last
	// action is older than inactivity. The bool reports whether it did.
	ResetIfInactive(ctx context.Context, lineID, contactID string, inactivity time.Duration) (models.Session, bool, error)

	Count(ctx context.Context) (int, error)
	List(ctx context.Context) ([]models.Session, error)

	// CleanupOlderThan deletes sessions whose last action predates now-age
	CleanupOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// apply runs fn on the existing record (or a fresh one) and enforces the
// fields the transform is not allowed to change.
func apply(prev *models.Session, lineID, contactID string, fn Transform, now time.Time) models.Session {
	var base models.Session
	if prev != nil {
		base = prev.Clone()
	} else {
		base = models.NewSession(lineID, contactID, now)
	}
	createdAt := base.Meta.CreatedAt

	next := fn(base)
	next.LineID = lineID
	next.ContactID = contactID
	if next.State == "" {
		next.State = models.StateEntry
	}
	next.Meta.CreatedAt = createdAt
	next.Meta.UpdatedAt = now
	return next
}

// inactive reports whether s should be reset at now
func inactive(s models.Session, inactivity time.Duration, now time.Time) bool {
	return now.Sub(s.Meta.LastActionAt) > inactivity
}

// resetSession is the transform applied by ResetIfInactive
func resetSession(s models.Session) models.Session {
	s.State = models.StateEntry
	s.Data = models.SessionData{}
	s.Completed = false
	return s
}
