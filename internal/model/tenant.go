package model

// Tenant holds per-tenant ledger configuration.
type Tenant struct {
	ID                         string `json:"id"`
	Name                       string `json:"name"`
	Currency                   string `json:"currency"`
	OperatingAccountID         string `json:"operating_account_id"` // bank-feed cash account
	LargeOutflowThresholdCents int64  `json:"large_outflow_threshold_cents"`
}
