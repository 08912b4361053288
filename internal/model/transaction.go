package model

import "time"

// TransactionStatus is the lifecycle state of a ledger transaction.
type TransactionStatus string

const (
	StatusPosted TransactionStatus = "posted"
	StatusVoid   TransactionStatus = "void"
)

// Source records which workflow produced a transaction.
type Source string

const (
	SourceManual   Source = "manual"
	SourceBankFeed Source = "bank_feed"
	SourceSystem   Source = "system" // reserve allocation
)

// JournalEntry is one side of a double-entry transaction.
// Exactly one of DebitCents/CreditCents is non-zero.
type JournalEntry struct {
	ID           string `json:"id"` // "YYYY-MM-NNNx" where x = a,b,c...
	AccountID    string `json:"account_id"`
	DebitCents   int64  `json:"debit_cents"`
	CreditCents  int64  `json:"credit_cents"`
	IsReconciled bool   `json:"is_reconciled"`
}

// Magnitude returns the non-zero side of the entry.
func (e JournalEntry) Magnitude() int64 {
	if e.DebitCents != 0 {
		return e.DebitCents
	}
	return e.CreditCents
}

// Transaction is a posted double-entry transaction. It owns its entries.
type Transaction struct {
	ID          string            `json:"id"`
	TenantID    string            `json:"tenant_id"`
	Date        time.Time         `json:"date"`
	Description string            `json:"description"`
	Status      TransactionStatus `json:"status"`
	Source      Source            `json:"source"`
	Reference   string            `json:"reference,omitempty"`
	Entries     []JournalEntry    `json:"entries"`
}

// Totals returns the debit and credit sums across all entries.
func (t Transaction) Totals() (debits, credits int64) {
	for _, e := range t.Entries {
		debits += e.DebitCents
		credits += e.CreditCents
	}
	return debits, credits
}

// Touches reports whether any entry references accountID.
func (t Transaction) Touches(accountID string) bool {
	for _, e := range t.Entries {
		if e.AccountID == accountID {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no entry storage with t.
func (t Transaction) Clone() Transaction {
	cp := t
	cp.Entries = append([]JournalEntry(nil), t.Entries...)
	return cp
}
