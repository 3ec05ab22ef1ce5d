// Package room computes deterministic room identifiers. Room id
// computation is pure; membership bookkeeping lives in the hub.
package room

import (
	"fmt"
	"strings"

	"github.com/Degefa-Gomora/evangadiForum1/internal/domain"
)

// PublicRoom is the single shared lobby every client may observe.
const PublicRoom = "forum_lobby"

// PublicRoomID returns the identifier of the public room.
func PublicRoomID() string {
	return PublicRoom
}

// PrivateRoomID returns the room identifier for a DM between two users.
// The two ids are sorted so both participants compute the same room
// regardless of who initiates: PrivateRoomID("5", "2") == "2-5".
func PrivateRoomID(userA, userB string) (string, error) {
	if userA == "" || userB == "" {
		return "", domain.ErrInvalidParticipants
	}
	if userB < userA {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%s-%s", userA, userB), nil
}

// IsParticipant reports whether a user is one of the two sides of a
// private room id. The public room has no participant constraint.
func IsParticipant(roomID, userID string) bool {
	if roomID == PublicRoom {
		return true
	}
	a, b, ok := strings.Cut(roomID, "-")
	if !ok {
		return false
	}
	return a == userID || b == userID
}
