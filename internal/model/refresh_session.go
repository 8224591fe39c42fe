package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// refresh_sessions: учёт выданных refresh-токенов. Сам токен не хранится, только хэш.
type RefreshSession struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	StaffUID  uuid.UUID `gorm:"type:uuid;not null;index"`
	TokenHash string    `gorm:"type:text;not null"`

	ExpiresAt  time.Time `gorm:"not null"`
	RevokedAt  *time.Time
	LastUsedAt *time.Time

	UserAgent *string `gorm:"type:varchar(255)"`
	IPAddress *string `gorm:"type:varchar(64)"`

	CreatedAt time.Time `gorm:"not null"`

	Staff *Staff `gorm:"foreignKey:StaffUID;references:UID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (s *RefreshSession) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Live: не отозвана и не истекла.
func (s *RefreshSession) Live(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
