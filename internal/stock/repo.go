package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
)

// Repository reads and mutates voucher_stocks rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Get(ctx context.Context, sellerID uuid.UUID, voucherType enums.VoucherType) (*models.VoucherStock, error) {
	var row models.VoucherStock
	err := r.db.WithContext(ctx).
		Where("seller_id = ? AND voucher_type = ?", sellerID, voucherType).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// LockForUpdate reads the row with SELECT ... FOR UPDATE. Dialects without
// row locks fall back to the guarded decrement alone.
func (r *Repository) LockForUpdate(ctx context.Context, sellerID uuid.UUID, voucherType enums.VoucherType) (*models.VoucherStock, error) {
	var row models.VoucherStock
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("seller_id = ? AND voucher_type = ?", sellerID, voucherType).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Increment creates the entry or adds amount to it in a single statement.
func (r *Repository) Increment(ctx context.Context, sellerID uuid.UUID, voucherType enums.VoucherType, amount int) error {
	row := models.VoucherStock{
		SellerID:    sellerID,
		VoucherType: voucherType,
		Quantity:    amount,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "seller_id"}, {Name: "voucher_type"}},
			DoUpdates: clause.Assignments(map[string]any{
				"quantity":   gorm.Expr("voucher_stocks.quantity + excluded.quantity"),
				"updated_at": gorm.Expr("excluded.updated_at"),
			}),
		}).
		Create(&row).Error
}

// Decrement subtracts amount only while enough stock remains; a zero
// RowsAffected means the guard rejected the update.
func (r *Repository) Decrement(ctx context.Context, sellerID uuid.UUID, voucherType enums.VoucherType, amount int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.VoucherStock{}).
		Where("seller_id = ? AND voucher_type = ? AND quantity >= ?", sellerID, voucherType, amount).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity - ?", amount),
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *Repository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.VoucherStock, error) {
	var rows []models.VoucherStock
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("voucher_type ASC").
		Find(&rows).Error
	return rows, err
}
