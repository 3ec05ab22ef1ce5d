package audit

import (
	"context"

	"github.com/Degefa-Gomora/evangadiForum1/pkg/log"
)

// Audit actions for the chat server.
const (
	ActionIdentify       = "chat.identify"
	ActionIdentifyFailed = "chat.identify_failed"
	ActionJoinRoom       = "chat.join_room"
	ActionLeaveRoom      = "chat.leave_room"
	ActionSendMessage    = "chat.send_message"
	ActionEditMessage    = "chat.edit_message"
	ActionDeleteMessage  = "chat.delete_message"
	ActionReact          = "chat.react"
	ActionDisconnect     = "chat.disconnect"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action string, userID string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Msg(msg)
}

// LogWithDetail emits an audit log with an extra detail field.
func LogWithDetail(ctx context.Context, action string, userID string, detail string, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldUserID, userID).
		Str(FieldDetail, detail).
		Msg(msg)
}
