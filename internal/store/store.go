// Package store defines the persistence boundary of the ledger core.
//
// Implementations must apply a Commit atomically: the transaction, its entries,
// the balance deltas, an optional bank-line match and an optional void marker
// either all become visible or none do.
package store

import (
	"context"
	"errors"

	"github.com/cleared-dev/ledger/internal/model"
)

var (
	// ErrNotFound is returned when a keyed record does not exist for the tenant.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateCode is returned when an account code is already used in the tenant.
	ErrDuplicateCode = errors.New("duplicate account code")
	// ErrLineMatched is returned when a commit tries to match a line that is already matched.
	ErrLineMatched = errors.New("bank line already matched")
	// ErrConflict is returned when a commit references state that changed underneath it.
	ErrConflict = errors.New("conflicting update")
)

// Commit is one atomic ledger write.
type Commit struct {
	Transaction model.Transaction
	// Deltas maps account ID to the signed change of its cached balance.
	Deltas map[string]int64
	// MatchLineID, when set, flips that bank line to matched against Transaction.ID.
	MatchLineID string
	// VoidTransactionID, when set, marks that posted transaction void.
	VoidTransactionID string
}

// LineFilter narrows ListBankLines.
type LineFilter struct {
	UnmatchedOnly bool
}

// Store is the full persistence surface used by the services.
type Store interface {
	PutTenant(ctx context.Context, t model.Tenant) error
	GetTenant(ctx context.Context, tenantID string) (model.Tenant, error)
	ListTenants(ctx context.Context) ([]model.Tenant, error)

	CreateAccount(ctx context.Context, a model.Account) error
	// UpdateAccount rewrites name, subtype and currency. Type and balance are untouched.
	UpdateAccount(ctx context.Context, a model.Account) error
	GetAccount(ctx context.Context, tenantID, accountID string) (model.Account, error)
	ListAccounts(ctx context.Context, tenantID string) ([]model.Account, error)
	// ReplaceBalances overwrites cached balances; accounts absent from balances are set to zero.
	ReplaceBalances(ctx context.Context, tenantID string, balances map[string]int64) error

	Commit(ctx context.Context, c Commit) error
	GetTransaction(ctx context.Context, tenantID, txnID string) (model.Transaction, error)
	ListTransactions(ctx context.Context, tenantID string) ([]model.Transaction, error)
	NextSequence(ctx context.Context, tenantID string, year, month int) (int, error)

	AddBankLines(ctx context.Context, lines []model.BankStatementLine) error
	GetBankLine(ctx context.Context, tenantID, lineID string) (model.BankStatementLine, error)
	ListBankLines(ctx context.Context, tenantID string, f LineFilter) ([]model.BankStatementLine, error)
	// SetSuggestion records an advisory account on an unmatched line.
	SetSuggestion(ctx context.Context, tenantID, lineID, accountID string) error

	PutReserveRule(ctx context.Context, r model.ReserveRule) error
	ListReserveRules(ctx context.Context, tenantID string) ([]model.ReserveRule, error)

	Close() error
}
