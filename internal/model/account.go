package model

// AccountType classifies accounts in the chart of accounts.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// Valid reports whether t is one of the five account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// DebitNormal reports whether a debit increases accounts of this type.
// Asset and expense accounts grow on the debit side; the rest on the credit side.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// Delta returns the signed change in balance caused by a debit/credit pair.
func (t AccountType) Delta(debitCents, creditCents int64) int64 {
	if t.DebitNormal() {
		return debitCents - creditCents
	}
	return creditCents - debitCents
}

// Account is a chart-of-accounts entry owned by a tenant.
type Account struct {
	TenantID     string      `json:"tenant_id"`
	ID           string      `json:"id"`
	Code         string      `json:"code"` // unique within a tenant
	Name         string      `json:"name"`
	Type         AccountType `json:"type"` // immutable after creation
	Subtype      string      `json:"subtype,omitempty"`
	Currency     string      `json:"currency"`
	BalanceCents int64       `json:"balance_cents"` // cache, rebuildable from the log
}
