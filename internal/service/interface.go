package service

import (
	"context"
	"time"

	"github.com/Degefa-Gomora/evangadiForum1/internal/domain"
)

// Conn is one client connection as the protocol sees it. Implemented
// by hub.Client; tests substitute a recording fake.
type Conn interface {
	ID() string
	Identity() *domain.Identity
	SetIdentity(identity *domain.Identity)
	SendMessage(message interface{}) error
	AllowSend() bool
}

// Broadcaster is the fan-out surface of the hub: room membership plus
// room-scoped and global broadcast.
type Broadcaster interface {
	JoinRoom(clientID, roomID string)
	LeaveRoom(clientID, roomID string)
	Rooms(clientID string) []string
	BroadcastToRoom(roomID string, message interface{}, exclude string) error
	BroadcastToAll(message interface{}) error
}

// ChatService is the event-driven protocol tying presence, rooms, the
// message store and the reaction ledger together.
type ChatService interface {
	HandleConnect(ctx context.Context, c Conn, identity *domain.Identity)
	HandleIdentify(ctx context.Context, c Conn, token string) error
	HandleJoinRoom(ctx context.Context, c Conn, roomID string) error
	HandleLeaveRoom(ctx context.Context, c Conn, roomID string) error
	HandleFetchHistory(ctx context.Context, c Conn, roomID, targetUserID string) error
	HandleSendText(ctx context.Context, c Conn, evt *domain.SendTextEvent) error
	HandleSendFile(ctx context.Context, c Conn, evt *domain.SendFileEvent) error
	HandleSendVoice(ctx context.Context, c Conn, evt *domain.SendVoiceEvent) error
	HandleEditMessage(ctx context.Context, c Conn, messageID int64, newText string) error
	HandleDeleteMessage(ctx context.Context, c Conn, messageID int64) error
	HandleReactMessage(ctx context.Context, c Conn, messageID int64, symbol string) error
	HandleTyping(ctx context.Context, c Conn, roomID, recipientID string) error
	HandleStopTyping(ctx context.Context, c Conn, roomID, recipientID string) error
	HandleListUsers(ctx context.Context, c Conn) error
	HandlePing(ctx context.Context, c Conn) error
	HandleDisconnect(ctx context.Context, c Conn) error

	// FetchHistoryPage backs both the websocket fetch_history event and
	// the HTTP history endpoint.
	FetchHistoryPage(ctx context.Context, roomID string, visibility domain.Visibility, before *time.Time) ([]domain.ChatMessage, error)

	Start(ctx context.Context) error
	Stop()
}
