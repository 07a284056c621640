package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
)

// Notification stores in-app notification payloads addressed to one user.
type Notification struct {
	ID        uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID                  `gorm:"column:user_id;type:uuid;not null"`
	Severity  enums.NotificationSeverity `gorm:"column:severity;type:text;not null"`
	Title     string                     `gorm:"column:title;type:text;not null"`
	Message   string                     `gorm:"column:message;type:text;not null"`
	Link      *string                    `gorm:"column:link;type:text"`
	ReadAt    *time.Time                 `gorm:"column:read_at"`
	CreatedAt time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
