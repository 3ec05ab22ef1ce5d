package directory

import (
	"context"

	"gorm.io/gorm"

	"github.com/Degefa-Gomora/evangadiForum1/internal/domain"
	"github.com/Degefa-Gomora/evangadiForum1/pkg/log"
)

// UserModel is a read-only projection of the forum's users table.
type UserModel struct {
	UserID     string `gorm:"column:userid;primaryKey"`
	Username   string `gorm:"column:username"`
	AvatarURL  string `gorm:"column:avatar_url"`
	IsVerified bool   `gorm:"column:is_verified"`
}

// TableName overrides the GORM table name.
func (UserModel) TableName() string {
	return "users"
}

// GormUserDirectory implements UserDirectory over the shared forum
// database.
type GormUserDirectory struct {
	db *gorm.DB
}

// NewGormUserDirectory creates a GORM-backed user directory.
func NewGormUserDirectory(db *gorm.DB) *GormUserDirectory {
	return &GormUserDirectory{db: db}
}

func (d *GormUserDirectory) ListVerifiedUsers(ctx context.Context) ([]domain.UserSummary, error) {
	l := log.Ctx(ctx)

	var models []UserModel
	err := d.db.WithContext(ctx).
		Where("is_verified = ?", true).
		Order("username ASC").
		Find(&models).Error
	if err != nil {
		l.Error().Err(err).Msg("failed to list verified users")
		return nil, err
	}

	users := make([]domain.UserSummary, 0, len(models))
	for _, m := range models {
		users = append(users, domain.UserSummary{
			UserID:    m.UserID,
			Username:  m.Username,
			AvatarURL: m.AvatarURL,
		})
	}
	return users, nil
}

// StaticUserDirectory serves a fixed user list. Used with the memory
// database driver and in tests.
type StaticUserDirectory struct {
	Users []domain.UserSummary
}

func (d *StaticUserDirectory) ListVerifiedUsers(ctx context.Context) ([]domain.UserSummary, error) {
	return append([]domain.UserSummary(nil), d.Users...), nil
}
