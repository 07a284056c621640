package enums

import "fmt"

// CampaignStatus tracks a gift campaign lifecycle.
type CampaignStatus string

const (
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

var validCampaignStatuses = []CampaignStatus{
	CampaignStatusActive,
	CampaignStatusCompleted,
	CampaignStatusCancelled,
}

func (s CampaignStatus) IsValid() bool {
	for _, candidate := range validCampaignStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ClaimStatus tracks a prize claim through review.
type ClaimStatus string

const (
	ClaimStatusPending  ClaimStatus = "pending"
	ClaimStatusApproved ClaimStatus = "approved"
	ClaimStatusRejected ClaimStatus = "rejected"
)

var validClaimStatuses = []ClaimStatus{
	ClaimStatusPending,
	ClaimStatusApproved,
	ClaimStatusRejected,
}

func (s ClaimStatus) IsValid() bool {
	for _, candidate := range validClaimStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseClaimDecision accepts only the terminal review outcomes.
func ParseClaimDecision(value string) (ClaimStatus, error) {
	switch ClaimStatus(value) {
	case ClaimStatusApproved, ClaimStatusRejected:
		return ClaimStatus(value), nil
	default:
		return "", fmt.Errorf("invalid claim decision %q", value)
	}
}
