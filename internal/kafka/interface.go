package kafka

import (
	"context"

	"github.com/Degefa-Gomora/evangadiForum1/internal/domain"
)

// Feed event kinds.
const (
	FeedMessageCreated = "message_created"
	FeedMessageUpdated = "message_updated"
)

// FeedEvent is one entry on the outbound chat event stream consumed by
// downstream indexing and analytics. Client delivery never depends on
// it; the hub fan-out is the sole dissemination path.
type FeedEvent struct {
	Kind    string             `json:"kind"`
	Message domain.ChatMessage `json:"message"`
}

// EventProducer publishes chat feed events.
type EventProducer interface {
	Produce(ctx context.Context, event *FeedEvent) error
	Close() error
}

// NopProducer discards events. Used when the feed is disabled.
type NopProducer struct{}

func (NopProducer) Produce(ctx context.Context, event *FeedEvent) error { return nil }
func (NopProducer) Close() error                                        { return nil }
