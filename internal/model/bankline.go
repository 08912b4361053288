package model

import "time"

// LineType is the direction of a bank statement line.
type LineType string

const (
	LineCredit LineType = "credit" // money into the operating account
	LineDebit  LineType = "debit"  // money out of the operating account
)

// BankStatementLine is an externally reported bank line awaiting reconciliation.
// A line moves from unmatched to matched exactly once and never back.
type BankStatementLine struct {
	TenantID             string    `json:"tenant_id"`
	ID                   string    `json:"id"`
	Date                 time.Time `json:"date"`
	Description          string    `json:"description"`
	AmountCents          int64     `json:"amount_cents"` // always positive; Type carries direction
	Type                 LineType  `json:"type"`
	IsMatched            bool      `json:"is_matched"`
	MatchedTransactionID string    `json:"matched_transaction_id,omitempty"`
	SuggestedAccountID   string    `json:"suggested_account_id,omitempty"` // advisory only
}
