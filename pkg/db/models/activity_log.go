package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLog is an audit trail entry.
type ActivityLog struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID      *uuid.UUID `gorm:"column:user_id;type:uuid"`
	Action      string     `gorm:"column:action;type:text;not null"`
	Description string     `gorm:"column:description;type:text;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (a *ActivityLog) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
