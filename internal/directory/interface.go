package directory

import (
	"context"

	"github.com/Degefa-Gomora/evangadiForum1/internal/domain"
)

// UserDirectory lists the verified forum users that may be picked as
// DM targets. Read-only; user records are owned by the forum backend.
type UserDirectory interface {
	ListVerifiedUsers(ctx context.Context) ([]domain.UserSummary, error)
}
