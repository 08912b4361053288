package model

import "github.com/shopspring/decimal"

// ReserveRule skims a percentage of postings on SourceAccountID into ReserveAccountID.
type ReserveRule struct {
	TenantID         string          `json:"tenant_id"`
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	TargetPercentage decimal.Decimal `json:"target_percentage"` // 25 means 25%
	SourceAccountID  string          `json:"source_account_id"`
	ReserveAccountID string          `json:"reserve_account_id"`
	IsAutomated      bool            `json:"is_automated"`
}
