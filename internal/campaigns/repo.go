package campaigns

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
)

// SalesTotal is the quantity attributed to one node over a period.
type SalesTotal struct {
	UserID uuid.UUID `gorm:"column:user_id"`
	Qty    int       `gorm:"column:qty"`
}

// Repository persists gift campaigns and their claims.
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

func (r *Repository) CreateCampaign(ctx context.Context, campaign *models.GiftCampaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

func (r *Repository) FindCampaign(ctx context.Context, id uuid.UUID) (*models.GiftCampaign, error) {
	var campaign models.GiftCampaign
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&campaign).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

// LockCampaign loads the campaign with a row lock so claim acceptance is
// serialized per campaign.
func (r *Repository) LockCampaign(ctx context.Context, id uuid.UUID) (*models.GiftCampaign, error) {
	var campaign models.GiftCampaign
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&campaign).Error
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// CloseExpired completes active campaigns whose period ended before cutoff.
func (r *Repository) CloseExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.GiftCampaign{}).
		Where("status = ? AND period_end < ?", enums.CampaignStatusActive, cutoff).
		Updates(map[string]any{"status": enums.CampaignStatusCompleted, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// AttributedSales rolls sale records up to the column that identifies role's
// nodes. Nodes without sales in [from, to] are absent.
func (r *Repository) AttributedSales(ctx context.Context, role enums.Role, from, to time.Time) ([]SalesTotal, error) {
	column, err := attributionColumn(role)
	if err != nil {
		return nil, err
	}
	var totals []SalesTotal
	err = r.db.WithContext(ctx).
		Model(&models.SaleRecord{}).
		Select(fmt.Sprintf("%s AS user_id, SUM(quantity_sold) AS qty", column)).
		Where("created_at >= ? AND created_at <= ?", from, to).
		Group(column).
		Scan(&totals).Error
	return totals, err
}

func attributionColumn(role enums.Role) (string, error) {
	switch role {
	case enums.RoleMitraCabang:
		return "partner_id", nil
	case enums.RoleCabang:
		return "branch_id", nil
	case enums.RoleLink:
		return "seller_id", nil
	default:
		return "", fmt.Errorf("role %q has no sales attribution", role)
	}
}

func (r *Repository) CreateClaim(ctx context.Context, claim *models.GiftClaim) error {
	return r.db.WithContext(ctx).Create(claim).Error
}

// FindClaim returns nil when the user has not claimed yet.
func (r *Repository) FindClaim(ctx context.Context, campaignID, userID uuid.UUID) (*models.GiftClaim, error) {
	var claims []models.GiftClaim
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND user_id = ?", campaignID, userID).
		Limit(1).
		Find(&claims).Error
	if err != nil || len(claims) == 0 {
		return nil, err
	}
	return &claims[0], nil
}

func (r *Repository) LockClaim(ctx context.Context, id uuid.UUID) (*models.GiftClaim, error) {
	var claim models.GiftClaim
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&claim).Error
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

func (r *Repository) ListClaims(ctx context.Context, campaignID uuid.UUID) ([]models.GiftClaim, error) {
	var claims []models.GiftClaim
	err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("position ASC").
		Find(&claims).Error
	return claims, err
}

// CountAccepted counts claims that hold a prize slot.
func (r *Repository) CountAccepted(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.GiftClaim{}).
		Where("campaign_id = ? AND status IN ?", campaignID, []enums.ClaimStatus{enums.ClaimStatusPending, enums.ClaimStatusApproved}).
		Count(&n).Error
	return n, err
}

// SaveReview moves a pending claim to its final status. It reports false when
// the claim was no longer pending.
func (r *Repository) SaveReview(ctx context.Context, claim *models.GiftClaim) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.GiftClaim{}).
		Where("id = ? AND status = ?", claim.ID, enums.ClaimStatusPending).
		Updates(map[string]any{
			"status":      claim.Status,
			"reviewed_by": claim.ReviewedBy,
			"reviewed_at": claim.ReviewedAt,
			"note":        claim.Note,
		})
	return res.RowsAffected == 1, res.Error
}
