// Package presence tracks which users are currently online. Entries are
// process-local and never persisted; a periodic sweep evicts users that
// stopped sending events.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/Degefa-Gomora/evangadiForum1/internal/domain"
)

// Entry is one online user. A user holds at most one entry: a new
// connection for the same user replaces the previous one.
type Entry struct {
	UserID        string
	Username      string
	AvatarURL     string
	ConnectionID  string
	LastActivity  time.Time
	CurrentRoomID string
}

// Tracker maintains the set of currently connected users. It is owned
// by the composition root and passed by handle, never as a global.
type Tracker struct {
	mu     sync.RWMutex
	byUser map[string]*Entry
	now    func() time.Time
}

// NewTracker creates an empty presence tracker.
func NewTracker() *Tracker {
	return &Tracker{
		byUser: make(map[string]*Entry),
		now:    time.Now,
	}
}

// Register inserts or replaces the entry for the given user. The last
// connection wins; a previous connection for the same user is dropped.
func (t *Tracker) Register(connectionID string, identity domain.Identity, roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byUser[identity.UserID] = &Entry{
		UserID:        identity.UserID,
		Username:      identity.Username,
		AvatarURL:     identity.AvatarURL,
		ConnectionID:  connectionID,
		LastActivity:  t.now(),
		CurrentRoomID: roomID,
	}
}

// Touch refreshes the activity timestamp for a user. Stale events from
// already-evicted users are ignored.
func (t *Tracker) Touch(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.byUser[userID]; ok {
		e.LastActivity = t.now()
	}
}

// SetRoom records which room a user currently has in the foreground.
func (t *Tracker) SetRoom(userID, roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.byUser[userID]; ok {
		e.CurrentRoomID = roomID
		e.LastActivity = t.now()
	}
}

// Remove drops the entry owned by the given connection and reports
// whether one was removed. A connection that was already replaced by a
// newer one for the same user does not remove the newer entry.
func (t *Tracker) Remove(connectionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for userID, e := range t.byUser {
		if e.ConnectionID == connectionID {
			delete(t.byUser, userID)
			return true
		}
	}
	return false
}

// SweepInactive removes every entry whose last activity is older than
// timeout and returns the removed entries for broadcast.
func (t *Tracker) SweepInactive(now time.Time, timeout time.Duration) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []Entry
	for userID, e := range t.byUser {
		if now.Sub(e.LastActivity) > timeout {
			removed = append(removed, *e)
			delete(t.byUser, userID)
		}
	}
	return removed
}

// Snapshot returns the current online users, sorted by user id for a
// stable wire order.
func (t *Tracker) Snapshot() []domain.UserSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	users := make([]domain.UserSummary, 0, len(t.byUser))
	for _, e := range t.byUser {
		users = append(users, domain.UserSummary{
			UserID:    e.UserID,
			Username:  e.Username,
			AvatarURL: e.AvatarURL,
		})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users
}

// Count returns the number of online users.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byUser)
}
