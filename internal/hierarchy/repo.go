package hierarchy

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
)

// Repository reads and seeds hierarchy nodes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, node *models.HierarchyNode) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.HierarchyNode, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.HierarchyNode, error)
	FindByName(ctx context.Context, role enums.Role, name string, parentID *uuid.UUID) ([]models.HierarchyNode, error)
	ListByRoles(ctx context.Context, roles []enums.Role) ([]models.HierarchyNode, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a hierarchy repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, node *models.HierarchyNode) error {
	return r.db.WithContext(ctx).Create(node).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.HierarchyNode, error) {
	var node models.HierarchyNode
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&node).Error; err != nil {
		return nil, err
	}
	return &node, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.HierarchyNode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var nodes []models.HierarchyNode
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}

// FindByName returns at most two matches so callers can detect ambiguity.
func (r *repository) FindByName(ctx context.Context, role enums.Role, name string, parentID *uuid.UUID) ([]models.HierarchyNode, error) {
	query := r.db.WithContext(ctx).Where("role = ? AND LOWER(name) = LOWER(?)", role, name)
	if parentID != nil {
		query = query.Where("parent_id = ?", *parentID)
	}
	var nodes []models.HierarchyNode
	if err := query.Order("created_at ASC").Limit(2).Find(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}

func (r *repository) ListByRoles(ctx context.Context, roles []enums.Role) ([]models.HierarchyNode, error) {
	var nodes []models.HierarchyNode
	if err := r.db.WithContext(ctx).
		Where("role IN ?", roles).
		Order("created_at ASC").
		Find(&nodes).Error; err != nil {
		return nil, err
	}
	return nodes, nil
}
