package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Ananth-NQI/lineflow-backend/internal/models"
)

// MemoryStore holds sessions in a map. With a persist hook it becomes the
// file-backed store: every write hands the whole document to the hook.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	persist  func(map[string]models.Session) error
	now      func() time.Time
}

// NewMemoryStore creates a store that forgets everything on restart
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]models.Session),
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(ctx context.Context, lineID, contactID string) (models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[key(lineID, contactID)]
	if !ok {
		return models.Session{}, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Upsert(ctx context.Context, lineID, contactID string, fn Transform) (models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.upsertLocked(lineID, contactID, fn)
}

func (m *MemoryStore) ResetIfInactive(ctx context.Context, lineID, contactID string, inactivity time.Duration) (models.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[key(lineID, contactID)]
	if !ok {
		return models.Session{}, false, nil
	}
	if !inactive(s, inactivity, m.now()) {
		return s.Clone(), false, nil
	}

	next, err := m.upsertLocked(lineID, contactID, resetSession)
	if err != nil {
		return models.Session{}, false, err
	}
	return next, true, nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}

func (m *MemoryStore) List(ctx context.Context) ([]models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Meta.UpdatedAt.After(out[j].Meta.UpdatedAt)
	})
	return out, nil
}

func (m *MemoryStore) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-age)
	next := make(map[string]models.Session, len(m.sessions))
	for k, s := range m.sessions {
		if s.Meta.LastActionAt.Before(cutoff) {
			continue
		}
		next[k] = s
	}

	cleaned := len(m.sessions) - len(next)
	if cleaned == 0 {
		return 0, nil
	}
	if err := m.write(next); err != nil {
		return 0, err
	}
	m.sessions = next
	return cleaned, nil
}

// upsertLocked must be called with mu held
func (m *MemoryStore) upsertLocked(lineID, contactID string, fn Transform) (models.Session, error) {
	k := key(lineID, contactID)

	var prev *models.Session
	if s, ok := m.sessions[k]; ok {
		prev = &s
	}
	next := apply(prev, lineID, contactID, fn, m.now())

	if m.persist != nil {
		doc := make(map[string]models.Session, len(m.sessions)+1)
		for id, s := range m.sessions {
			doc[id] = s
		}
		doc[k] = next
		if err := m.persist(doc); err != nil {
			return models.Session{}, err
		}
	}

	m.sessions[k] = next
	return next.Clone(), nil
}

func (m *MemoryStore) write(doc map[string]models.Session) error {
	if m.persist == nil {
		return nil
	}
	return m.persist(doc)
}

func key(lineID, contactID string) string {
	return models.ContactKey{LineID: lineID, ContactID: contactID}.String()
}
