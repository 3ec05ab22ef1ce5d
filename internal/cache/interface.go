package cache

import (
	"context"
	"time"

	"github.com/Degefa-Gomora/evangadiForum1/internal/domain"
)

// HistoryPage is a cached history query result.
type HistoryPage struct {
	Messages []domain.ChatMessage `json:"messages"`
}

// HistoryCache caches paginated history pages. The latest page of a
// room is never cached; it is always read fresh from the store.
type HistoryCache interface {
	Get(ctx context.Context, key string) (*HistoryPage, error)
	Set(ctx context.Context, key string, page *HistoryPage, ttl time.Duration) error
	BuildKey(roomID string, visibility domain.Visibility, limit int, before time.Time) string
	Close() error
}
