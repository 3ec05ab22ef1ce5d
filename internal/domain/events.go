package domain

// WebSocket event types from client.
const (
	EventIdentify      = "identify"
	EventJoinRoom      = "join_room"
	EventLeaveRoom     = "leave_room"
	EventFetchHistory  = "fetch_history"
	EventSendText      = "send_text"
	EventSendFile      = "send_file"
	EventSendVoice     = "send_voice"
	EventEditMessage   = "edit_message"
	EventDeleteMessage = "delete_message"
	EventReactMessage  = "react_message"
	EventTyping        = "typing"
	EventStopTyping    = "stop_typing"
	EventListUsers     = "list_users"
	EventPing          = "ping"
)

// WebSocket event types to client.
const (
	EventIdentified       = "identified"
	EventRoomJoined       = "room_joined"
	EventRoomLeft         = "room_left"
	EventPresenceSnapshot = "presence_snapshot"
	EventHistoryPage      = "history_page"
	EventMessageCreated   = "message_created"
	EventMessageUpdated   = "message_updated"
	EventTypingIndicator  = "typing_indicator"
	EventTypingStopped    = "typing_stopped"
	EventUserDirectory    = "user_directory"
	EventPong             = "pong"
	EventOperationError   = "operation_error"
)

// Error codes carried by operation_error events.
const (
	ErrCodeUnauthenticated      = "UNAUTHENTICATED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeMessageNotFound      = "MESSAGE_NOT_FOUND"
	ErrCodeAlreadyDeleted       = "ALREADY_DELETED"
	ErrCodeUneditableKind       = "UNEDITABLE_KIND"
	ErrCodeCannotReactToDeleted = "CANNOT_REACT_TO_DELETED"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeInvalidParticipants  = "INVALID_PARTICIPANTS"
	ErrCodeHistoryUnavailable   = "HISTORY_UNAVAILABLE"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// BaseEvent is the envelope every inbound event starts with.
type BaseEvent struct {
	Type string `json:"type"`
}

// Client -> Server events

type IdentifyEvent struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type JoinRoomEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type LeaveRoomEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type FetchHistoryEvent struct {
	Type         string `json:"type"`
	RoomID       string `json:"room_id,omitempty"`
	TargetUserID string `json:"target_user_id,omitempty"`
}

type SendTextEvent struct {
	Type        string `json:"type"`
	RoomID      string `json:"room_id,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
	Text        string `json:"text"`
}

type SendFileEvent struct {
	Type        string `json:"type"`
	RoomID      string `json:"room_id,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
	Caption     string `json:"caption,omitempty"`
	Data        []byte `json:"data"`
	Name        string `json:"name"`
	MimeType    string `json:"mime_type"`
}

type SendVoiceEvent struct {
	Type            string  `json:"type"`
	RoomID          string  `json:"room_id,omitempty"`
	RecipientID     string  `json:"recipient_id,omitempty"`
	Data            []byte  `json:"data"`
	MimeType        string  `json:"mime_type"`
	DurationSeconds float64 `json:"duration_seconds"`
}

type EditMessageEvent struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id"`
	NewText   string `json:"new_text"`
}

type DeleteMessageEvent struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id"`
}

type ReactMessageEvent struct {
	Type      string `json:"type"`
	MessageID int64  `json:"message_id"`
	Symbol    string `json:"symbol"`
}

type TypingEvent struct {
	Type        string `json:"type"`
	RoomID      string `json:"room_id,omitempty"`
	RecipientID string `json:"recipient_id,omitempty"`
}

// Server -> Client events

type IdentifiedEvent struct {
	Type string      `json:"type"`
	User UserSummary `json:"user"`
}

type RoomJoinedEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type RoomLeftEvent struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id"`
}

type PresenceSnapshotEvent struct {
	Type  string        `json:"type"`
	Users []UserSummary `json:"users"`
}

type HistoryPageEvent struct {
	Type     string        `json:"type"`
	RoomID   string        `json:"room_id"`
	Messages []ChatMessage `json:"messages"`
}

type MessageCreatedEvent struct {
	Type    string      `json:"type"`
	Message ChatMessage `json:"message"`
}

type MessageUpdatedEvent struct {
	Type    string      `json:"type"`
	Message ChatMessage `json:"message"`
}

type TypingIndicatorEvent struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	RoomID   string `json:"room_id"`
}

type TypingStoppedEvent struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	RoomID string `json:"room_id"`
}

type UserDirectoryEvent struct {
	Type  string        `json:"type"`
	Users []UserSummary `json:"users"`
}

type OperationErrorEvent struct {
	Type   string `json:"type"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// NewErrorEvent builds an operation_error event for a single connection.
func NewErrorEvent(kind, detail string) *OperationErrorEvent {
	return &OperationErrorEvent{
		Type:   EventOperationError,
		Kind:   kind,
		Detail: detail,
	}
}

// ErrorEventFrom maps an operation error onto the wire.
func ErrorEventFrom(err error) *OperationErrorEvent {
	return NewErrorEvent(ErrorKind(err), err.Error())
}
