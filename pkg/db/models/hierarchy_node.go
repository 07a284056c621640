package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
)

// HierarchyNode is a user positioned in the reseller network. Nodes are
// immutable once created; the parent never changes.
type HierarchyNode struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Name      string     `gorm:"column:name;type:text;not null"`
	Role      enums.Role `gorm:"column:role;type:text;not null"`
	ParentID  *uuid.UUID `gorm:"column:parent_id;type:uuid"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (n *HierarchyNode) BeforeCreate(*gorm.DB) error {
	ensureID(&n.ID)
	return nil
}
