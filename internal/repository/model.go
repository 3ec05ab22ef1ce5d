package repository

import (
	"encoding/json"
	"time"

	"github.com/Degefa-Gomora/evangadiForum1/internal/domain"
	"github.com/Degefa-Gomora/evangadiForum1/pkg/log"
)

// ChatMessageModel is the GORM row for the chat_messages table. The
// payload variant is flattened into nullable columns; reactions are
// stored as a JSON document.
type ChatMessageModel struct {
	MessageID   int64      `gorm:"column:message_id;primaryKey;autoIncrement"`
	UserID      string     `gorm:"column:user_id;index"`
	Username    string     `gorm:"column:username"`
	AvatarURL   string     `gorm:"column:avatar_url"`
	RoomID      string     `gorm:"column:room_id;index"`
	Visibility  string     `gorm:"column:message_type"`
	RecipientID *string    `gorm:"column:recipient_id"`
	MessageText *string    `gorm:"column:message_text"`
	FileData    []byte     `gorm:"column:file_data"`
	FileName    *string    `gorm:"column:file_name"`
	FileType    *string    `gorm:"column:file_type"`
	AudioData   []byte     `gorm:"column:audio_data"`
	AudioType   *string    `gorm:"column:audio_type"`
	AudioDur    *float64   `gorm:"column:audio_duration"`
	CreatedAt   time.Time  `gorm:"column:created_at;index"`
	EditedAt    *time.Time `gorm:"column:edited_at"`
	IsDeleted   bool       `gorm:"column:is_deleted"`
	Reactions   string     `gorm:"column:reactions;type:text"`
}

// TableName overrides the GORM table name.
func (ChatMessageModel) TableName() string {
	return "chat_messages"
}

// ToDomain converts a row into the domain message, rebuilding the
// tagged body from the flattened columns.
func (m *ChatMessageModel) ToDomain() *domain.ChatMessage {
	msg := &domain.ChatMessage{
		MessageID:  m.MessageID,
		UserID:     m.UserID,
		Username:   m.Username,
		AvatarURL:  m.AvatarURL,
		RoomID:     m.RoomID,
		Visibility: domain.Visibility(m.Visibility),
		CreatedAt:  m.CreatedAt,
		EditedAt:   m.EditedAt,
		Deleted:    m.IsDeleted,
		Reactions:  decodeReactions(m.Reactions, m.MessageID),
	}
	if m.RecipientID != nil {
		msg.RecipientID = *m.RecipientID
	}

	text := ""
	if m.MessageText != nil {
		text = *m.MessageText
	}

	switch {
	case m.IsDeleted:
		msg.Body = domain.TombstoneBody()
	case len(m.AudioData) > 0:
		var dur float64
		if m.AudioDur != nil {
			dur = *m.AudioDur
		}
		msg.Body = domain.NewVoiceBody(m.AudioData, deref(m.AudioType), dur)
	case len(m.FileData) > 0:
		msg.Body = domain.NewFileBody(text, m.FileData, deref(m.FileName), deref(m.FileType))
	default:
		msg.Body = domain.NewTextBody(text)
	}

	return msg
}

// FromDomain flattens a domain message into a row.
func FromDomain(msg *domain.ChatMessage) *ChatMessageModel {
	m := &ChatMessageModel{
		MessageID:  msg.MessageID,
		UserID:     msg.UserID,
		Username:   msg.Username,
		AvatarURL:  msg.AvatarURL,
		RoomID:     msg.RoomID,
		Visibility: string(msg.Visibility),
		CreatedAt:  msg.CreatedAt,
		EditedAt:   msg.EditedAt,
		IsDeleted:  msg.Deleted,
		Reactions:  encodeReactions(msg.Reactions),
	}
	if msg.RecipientID != "" {
		m.RecipientID = ptr(msg.RecipientID)
	}
	applyBody(m, msg.Body)
	return m
}

func applyBody(m *ChatMessageModel, body domain.Body) {
	m.MessageText = nil
	m.FileData = nil
	m.FileName = nil
	m.FileType = nil
	m.AudioData = nil
	m.AudioType = nil
	m.AudioDur = nil

	switch body.Kind {
	case domain.BodyKindText:
		m.MessageText = ptr(body.Text)
	case domain.BodyKindFile:
		if body.Text != "" {
			m.MessageText = ptr(body.Text)
		}
		m.FileData = body.File.Data
		m.FileName = ptr(body.File.Name)
		m.FileType = ptr(body.File.MimeType)
	case domain.BodyKindVoice:
		m.AudioData = body.Voice.Data
		m.AudioType = ptr(body.Voice.MimeType)
		m.AudioDur = ptr(body.Voice.DurationSeconds)
	case domain.BodyKindTombstone:
		m.MessageText = ptr(domain.DeletedPlaceholder)
	}
}

// decodeReactions tolerates malformed stored JSON: a row that cannot be
// decoded yields an empty list rather than a failed fetch.
func decodeReactions(raw string, messageID int64) []domain.Reaction {
	if raw == "" {
		return []domain.Reaction{}
	}
	var reactions []domain.Reaction
	if err := json.Unmarshal([]byte(raw), &reactions); err != nil {
		l := log.L()
		l.Warn().Err(err).Int64(log.FieldMessageID, messageID).Msg("malformed reactions column, resetting to empty")
		return []domain.Reaction{}
	}
	return reactions
}

func encodeReactions(reactions []domain.Reaction) string {
	if reactions == nil {
		reactions = []domain.Reaction{}
	}
	data, err := json.Marshal(reactions)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func ptr[T any](v T) *T { return &v }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
