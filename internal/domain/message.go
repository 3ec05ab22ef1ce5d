package domain

import (
	"fmt"
	"strings"
	"time"
)

// Visibility marks a message as public-room or direct-message traffic.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// BodyKind discriminates the message payload variant.
type BodyKind string

const (
	BodyKindText      BodyKind = "text"
	BodyKindFile      BodyKind = "file"
	BodyKindVoice     BodyKind = "voice"
	BodyKindTombstone BodyKind = "deleted"
)

// DeletedPlaceholder is what clients render in place of a removed message.
const DeletedPlaceholder = "This message has been deleted."

// FileAttachment is an opaque uploaded file. Data passes through unchanged.
type FileAttachment struct {
	Data     []byte `json:"data"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
}

// VoiceAttachment is an opaque recorded audio clip.
type VoiceAttachment struct {
	Data            []byte  `json:"data"`
	MimeType        string  `json:"mime_type"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Body is the tagged message payload. Exactly one kind is populated;
// text may ride along with a file attachment as its caption, never with
// a voice attachment. Use the constructors so illegal combinations
// cannot be built.
type Body struct {
	Kind  BodyKind         `json:"kind"`
	Text  string           `json:"text,omitempty"`
	File  *FileAttachment  `json:"file,omitempty"`
	Voice *VoiceAttachment `json:"voice,omitempty"`
}

// NewTextBody builds a plain text payload.
func NewTextBody(text string) Body {
	return Body{Kind: BodyKindText, Text: strings.TrimSpace(text)}
}

// NewFileBody builds a file payload with an optional caption.
func NewFileBody(caption string, data []byte, name, mimeType string) Body {
	return Body{
		Kind: BodyKindFile,
		Text: strings.TrimSpace(caption),
		File: &FileAttachment{Data: data, Name: name, MimeType: mimeType},
	}
}

// NewVoiceBody builds a voice payload.
func NewVoiceBody(data []byte, mimeType string, durationSeconds float64) Body {
	return Body{
		Kind:  BodyKindVoice,
		Voice: &VoiceAttachment{Data: data, MimeType: mimeType, DurationSeconds: durationSeconds},
	}
}

// TombstoneBody is the payload of a deleted message.
func TombstoneBody() Body {
	return Body{Kind: BodyKindTombstone, Text: DeletedPlaceholder}
}

// Validate checks the kind-specific required fields.
func (b Body) Validate() error {
	switch b.Kind {
	case BodyKindText:
		if b.Text == "" {
			return fmt.Errorf("%w: message text must not be empty", ErrValidation)
		}
		if b.File != nil || b.Voice != nil {
			return fmt.Errorf("%w: text body must not carry attachments", ErrValidation)
		}
	case BodyKindFile:
		if b.File == nil || len(b.File.Data) == 0 {
			return fmt.Errorf("%w: file data is required", ErrValidation)
		}
		if b.File.Name == "" {
			return fmt.Errorf("%w: file name is required", ErrValidation)
		}
		if b.File.MimeType == "" {
			return fmt.Errorf("%w: file mime type is required", ErrValidation)
		}
		if b.Voice != nil {
			return fmt.Errorf("%w: file body must not carry audio", ErrValidation)
		}
	case BodyKindVoice:
		if b.Voice == nil || len(b.Voice.Data) == 0 {
			return fmt.Errorf("%w: audio data is required", ErrValidation)
		}
		if b.Voice.MimeType == "" {
			return fmt.Errorf("%w: audio mime type is required", ErrValidation)
		}
		if b.Voice.DurationSeconds < 0 {
			return fmt.Errorf("%w: audio duration must not be negative", ErrValidation)
		}
		if b.Text != "" || b.File != nil {
			return fmt.Errorf("%w: voice body must not carry text or files", ErrValidation)
		}
	case BodyKindTombstone:
		// Always valid; payload fields are cleared on delete.
	default:
		return fmt.Errorf("%w: unknown body kind %q", ErrValidation, b.Kind)
	}
	return nil
}

// Editable reports whether the payload may be edited after sending.
// Only plain text messages are editable; attachments are immutable.
func (b Body) Editable() bool {
	return b.Kind == BodyKindText
}

// Reaction tracks the users that reacted to a message with one symbol.
// UserIDs and Usernames are parallel lists.
type Reaction struct {
	Symbol    string   `json:"symbol"`
	UserIDs   []string `json:"user_ids"`
	Usernames []string `json:"usernames"`
}

// ChatMessage is a persisted chat entry. Sender identity fields are
// snapshots taken at send time, not live references.
type ChatMessage struct {
	MessageID   int64      `json:"message_id"`
	UserID      string     `json:"user_id"`
	Username    string     `json:"username"`
	AvatarURL   string     `json:"avatar_url"`
	RoomID      string     `json:"room_id"`
	Visibility  Visibility `json:"visibility"`
	RecipientID string     `json:"recipient_id,omitempty"`
	Body        Body       `json:"body"`
	CreatedAt   time.Time  `json:"created_at"`
	EditedAt    *time.Time `json:"edited_at,omitempty"`
	Deleted     bool       `json:"deleted"`
	Reactions   []Reaction `json:"reactions"`
}

// MessagePatch is a partial update applied by the message store.
// Nil fields are left untouched.
type MessagePatch struct {
	Body      *Body
	EditedAt  *time.Time
	Deleted   *bool
	Reactions *[]Reaction
}

// Identity is the verified user identity attached to a connection at
// handshake time. The auth collaborator has already checked credentials.
type Identity struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

// UserSummary is the public projection of a user for presence and
// directory listings.
type UserSummary struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}
