package service

import "sync"

// messageLocks serializes read-modify-write sequences per message id so
// concurrent edit/delete/react handlers for the same message cannot
// lose updates. Locks for different messages do not contend.
type messageLocks struct {
	mu    sync.Mutex
	locks map[int64]*messageLock
}

type messageLock struct {
	mu   sync.Mutex
	refs int
}

func newMessageLocks() *messageLocks {
	return &messageLocks{locks: make(map[int64]*messageLock)}
}

// Lock acquires the lock for one message id and returns the release
// function. The entry is dropped once the last holder releases it.
func (m *messageLocks) Lock(messageID int64) func() {
	m.mu.Lock()
	entry, ok := m.locks[messageID]
	if !ok {
		entry = &messageLock{}
		m.locks[messageID] = entry
	}
	entry.refs++
	m.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		m.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(m.locks, messageID)
		}
		m.mu.Unlock()
	}
}
