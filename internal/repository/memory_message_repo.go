package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Degefa-Gomora/evangadiForum1/internal/domain"
)

// MemoryMessageRepository is an in-memory MessageRepository used by
// tests and by the "memory" database driver for local runs. Ids are
// assigned from a monotonic counter and never reused.
type MemoryMessageRepository struct {
	mu       sync.RWMutex
	nextID   int64
	messages map[int64]*domain.ChatMessage
	now      func() time.Time
}

// NewMemoryMessageRepository creates an empty in-memory store.
func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{
		nextID:   1,
		messages: make(map[int64]*domain.ChatMessage),
		now:      time.Now,
	}
}

func (r *MemoryMessageRepository) Insert(ctx context.Context, msg *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg.MessageID = r.nextID
	r.nextID++
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.now().UTC()
	}
	if msg.Reactions == nil {
		msg.Reactions = []domain.Reaction{}
	}

	stored := *msg
	r.messages[stored.MessageID] = &stored
	return nil
}

func (r *MemoryMessageRepository) Update(ctx context.Context, messageID int64, patch domain.MessagePatch) (*domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.messages[messageID]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}

	if patch.Body != nil {
		stored.Body = *patch.Body
	}
	if patch.EditedAt != nil {
		stored.EditedAt = patch.EditedAt
	}
	if patch.Deleted != nil {
		stored.Deleted = *patch.Deleted
	}
	if patch.Reactions != nil {
		stored.Reactions = append([]domain.Reaction(nil), (*patch.Reactions)...)
	}

	out := *stored
	return &out, nil
}

func (r *MemoryMessageRepository) FetchPage(ctx context.Context, roomID string, visibility domain.Visibility, limit int, before *time.Time) ([]domain.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var page []domain.ChatMessage
	for id := int64(1); id < r.nextID; id++ {
		msg, ok := r.messages[id]
		if !ok || msg.RoomID != roomID || msg.Visibility != visibility {
			continue
		}
		if before != nil && !msg.CreatedAt.Before(*before) {
			continue
		}
		page = append(page, *msg)
	}

	if len(page) > limit {
		page = page[len(page)-limit:]
	}
	return page, nil
}

func (r *MemoryMessageRepository) FetchOne(ctx context.Context, messageID int64) (*domain.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.messages[messageID]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	out := *stored
	return &out, nil
}

func (r *MemoryMessageRepository) Close() error {
	return nil
}
