package bot

import (
	"sync"

	"github.com/Ananth-NQI/lineflow-backend/internal/models"
)

// keyedMutex serializes work per contact. Entries are dropped when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[models.ContactKey]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[models.ContactKey]*keyedEntry)}
}

// Lock blocks until key is free and returns the unlock function
func (k *keyedMutex) Lock(key models.ContactKey) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
