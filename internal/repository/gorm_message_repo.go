package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Degefa-Gomora/evangadiForum1/internal/domain"
	"github.com/Degefa-Gomora/evangadiForum1/pkg/log"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a GORM-backed message repository and
// migrates the chat_messages table.
func NewGormMessageRepository(db *gorm.DB) (*GormMessageRepository, error) {
	if err := db.AutoMigrate(&ChatMessageModel{}); err != nil {
		return nil, err
	}
	return &GormMessageRepository{db: db}, nil
}

func (r *GormMessageRepository) Insert(ctx context.Context, msg *domain.ChatMessage) error {
	l := log.Ctx(ctx)

	model := FromDomain(msg)
	model.MessageID = 0
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, msg.RoomID).Msg("failed to insert chat message")
		return err
	}

	msg.MessageID = model.MessageID
	msg.CreatedAt = model.CreatedAt
	l.Debug().Int64(log.FieldMessageID, msg.MessageID).Msg("chat message inserted")
	return nil
}

func (r *GormMessageRepository) Update(ctx context.Context, messageID int64, patch domain.MessagePatch) (*domain.ChatMessage, error) {
	l := log.Ctx(ctx)

	updates := map[string]interface{}{}
	if patch.Body != nil {
		var stub ChatMessageModel
		applyBody(&stub, *patch.Body)
		updates["message_text"] = stub.MessageText
		updates["file_data"] = stub.FileData
		updates["file_name"] = stub.FileName
		updates["file_type"] = stub.FileType
		updates["audio_data"] = stub.AudioData
		updates["audio_type"] = stub.AudioType
		updates["audio_duration"] = stub.AudioDur
	}
	if patch.EditedAt != nil {
		updates["edited_at"] = *patch.EditedAt
	}
	if patch.Deleted != nil {
		updates["is_deleted"] = *patch.Deleted
	}
	if patch.Reactions != nil {
		updates["reactions"] = encodeReactions(*patch.Reactions)
	}

	if len(updates) > 0 {
		result := r.db.WithContext(ctx).
			Model(&ChatMessageModel{}).
			Where("message_id = ?", messageID).
			Updates(updates)
		if result.Error != nil {
			l.Error().Err(result.Error).Int64(log.FieldMessageID, messageID).Msg("failed to update chat message")
			return nil, result.Error
		}
		if result.RowsAffected == 0 {
			return nil, domain.ErrMessageNotFound
		}
	}

	return r.FetchOne(ctx, messageID)
}

func (r *GormMessageRepository) FetchPage(ctx context.Context, roomID string, visibility domain.Visibility, limit int, before *time.Time) ([]domain.ChatMessage, error) {
	l := log.Ctx(ctx)

	query := r.db.WithContext(ctx).
		Model(&ChatMessageModel{}).
		Where("room_id = ? AND message_type = ?", roomID, string(visibility))
	if before != nil {
		query = query.Where("created_at < ?", *before)
	}

	// Take the most recent window, then present it oldest-first.
	var models []ChatMessageModel
	if err := query.Order("created_at DESC, message_id DESC").Limit(limit).Find(&models).Error; err != nil {
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to fetch chat history page")
		return nil, err
	}

	messages := make([]domain.ChatMessage, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		messages = append(messages, *models[i].ToDomain())
	}
	return messages, nil
}

func (r *GormMessageRepository) FetchOne(ctx context.Context, messageID int64) (*domain.ChatMessage, error) {
	var model ChatMessageModel
	err := r.db.WithContext(ctx).First(&model, "message_id = ?", messageID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormMessageRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
