package repository

import (
	"context"
	"time"

	"github.com/Degefa-Gomora/evangadiForum1/internal/domain"
)

// MessageRepository is the narrow persistence contract for chat
// messages. Insert assigns MessageID and CreatedAt; ids are monotonic
// and never reused. Update applies a partial patch and returns the
// updated row, or domain.ErrMessageNotFound.
type MessageRepository interface {
	Insert(ctx context.Context, msg *domain.ChatMessage) error
	Update(ctx context.Context, messageID int64, patch domain.MessagePatch) (*domain.ChatMessage, error)

	// FetchPage returns up to limit messages for a room in ascending
	// chronological order. A non-nil before bound pages backwards from
	// that timestamp.
	FetchPage(ctx context.Context, roomID string, visibility domain.Visibility, limit int, before *time.Time) ([]domain.ChatMessage, error)
	FetchOne(ctx context.Context, messageID int64) (*domain.ChatMessage, error)

	Close() error
}
