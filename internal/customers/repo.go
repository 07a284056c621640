package customers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
)

// Repository persists customers, their purchases and loyalty coupons.
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

func (r *Repository) CreateCustomer(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

func (r *Repository) FindCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *Repository) AppendTransaction(ctx context.Context, txn *models.CustomerTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// AddPurchaseQty bumps the running total in place and returns the new value.
// The UPDATE holds the customer row until the surrounding transaction ends.
func (r *Repository) AddPurchaseQty(ctx context.Context, customerID uuid.UUID, qty int) (int, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", customerID).
		Update("cumulative_purchase_qty", gorm.Expr("cumulative_purchase_qty + ?", qty))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	var total int
	err := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Select("cumulative_purchase_qty").
		Where("id = ?", customerID).
		Scan(&total).Error
	return total, err
}

func (r *Repository) ListTransactions(ctx context.Context, customerID uuid.UUID) ([]models.CustomerTransaction, error) {
	var rows []models.CustomerTransaction
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// FindDefaultCampaign returns nil when no active default exists.
func (r *Repository) FindDefaultCampaign(ctx context.Context) (*models.LoyaltyCampaign, error) {
	var campaigns []models.LoyaltyCampaign
	err := r.db.WithContext(ctx).
		Where("is_default = ? AND active = ?", true, true).
		Order("created_at ASC").
		Limit(1).
		Find(&campaigns).Error
	if err != nil || len(campaigns) == 0 {
		return nil, err
	}
	return &campaigns[0], nil
}

// LockDefaultCampaigns reports whether any default campaign exists, locking
// the matching rows on dialects that support it.
func (r *Repository) LockDefaultCampaigns(ctx context.Context) (bool, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.LoyaltyCampaign{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("is_default = ?", true).
		Pluck("id", &ids).Error
	return len(ids) > 0, err
}

func (r *Repository) CreateCampaign(ctx context.Context, campaign *models.LoyaltyCampaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

func (r *Repository) CreateCoupon(ctx context.Context, coupon *models.CustomerCoupon) error {
	return r.db.WithContext(ctx).Create(coupon).Error
}

func (r *Repository) FindCoupon(ctx context.Context, customerID, grantID uuid.UUID) (*models.CustomerCoupon, error) {
	var coupon models.CustomerCoupon
	err := r.db.WithContext(ctx).
		Where("id = ? AND customer_id = ?", grantID, customerID).
		First(&coupon).Error
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *Repository) ListCoupons(ctx context.Context, customerID uuid.UUID) ([]models.CustomerCoupon, error) {
	var rows []models.CustomerCoupon
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("issued_at ASC").
		Find(&rows).Error
	return rows, err
}

// MarkCouponUsed flips an unused grant. It reports false when the grant was
// already used.
func (r *Repository) MarkCouponUsed(ctx context.Context, grantID uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CustomerCoupon{}).
		Where("id = ? AND is_used = ?", grantID, false).
		Updates(map[string]any{"is_used": true, "used_at": at})
	return res.RowsAffected == 1, res.Error
}
