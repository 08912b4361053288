package ledger

import (
	"fmt"
	"math"

	"github.com/cleared-dev/ledger/internal/model"
)

// ValidationError describes a single rule violation. It unwraps to one of the
// package sentinels so callers can use errors.Is.
type ValidationError struct {
	Err         error
	Entry       int // index into the candidate's entries, -1 for the whole transaction
	Description string
}

func (e ValidationError) Error() string {
	if e.Entry < 0 {
		return fmt.Sprintf("%v: %s", e.Err, e.Description)
	}
	return fmt.Sprintf("%v [entry %d]: %s", e.Err, e.Entry, e.Description)
}

func (e ValidationError) Unwrap() error { return e.Err }

// AccountChecker resolves account IDs within one tenant.
type AccountChecker interface {
	Lookup(accountID string) (model.Account, bool)
}

// AccountSet is an AccountChecker over a fixed set of accounts keyed by ID.
type AccountSet map[string]model.Account

func (s AccountSet) Lookup(accountID string) (model.Account, bool) {
	a, ok := s[accountID]
	return a, ok
}

// ValidateEntries checks a candidate's entries and returns every violation found.
// An empty result means the entries may be committed.
func ValidateEntries(entries []model.JournalEntry, accounts AccountChecker) []ValidationError {
	var errs []ValidationError

	if len(entries) < 2 {
		errs = append(errs, ValidationError{
			Err:         ErrTooFewEntries,
			Entry:       -1,
			Description: fmt.Sprintf("got %d", len(entries)),
		})
	}

	var debits, credits int64
	overflow := false
	for i, e := range entries {
		if e.DebitCents < 0 || e.CreditCents < 0 {
			errs = append(errs, ValidationError{
				Err:         ErrInvalidEntry,
				Entry:       i,
				Description: "amounts must not be negative",
			})
		} else if (e.DebitCents == 0) == (e.CreditCents == 0) {
			errs = append(errs, ValidationError{
				Err:         ErrInvalidEntry,
				Entry:       i,
				Description: "entry must have exactly one of debit or credit",
			})
		}

		if _, ok := accounts.Lookup(e.AccountID); !ok {
			errs = append(errs, ValidationError{
				Err:         ErrUnknownAccount,
				Entry:       i,
				Description: fmt.Sprintf("account %q", e.AccountID),
			})
		}

		if e.DebitCents > 0 {
			if debits+e.DebitCents < debits {
				overflow = true
			}
			debits += e.DebitCents
		}
		if e.CreditCents > 0 {
			if credits+e.CreditCents < credits {
				overflow = true
			}
			credits += e.CreditCents
		}
	}

	if overflow {
		errs = append(errs, ValidationError{
			Err:         ErrInvalidEntry,
			Entry:       -1,
			Description: "totals overflow",
		})
	} else if debits != credits {
		errs = append(errs, ValidationError{
			Err:         ErrLedgerUnbalanced,
			Entry:       -1,
			Description: fmt.Sprintf("debits (%d) != credits (%d)", debits, credits),
		})
	}

	return errs
}

// Deltas returns the signed balance change per account for a validated set of entries.
func Deltas(entries []model.JournalEntry, accounts AccountChecker) map[string]int64 {
	out := make(map[string]int64)
	for _, e := range entries {
		a, ok := accounts.Lookup(e.AccountID)
		if !ok {
			continue
		}
		out[e.AccountID] += a.Type.Delta(e.DebitCents, e.CreditCents)
	}
	return out
}

// CheckBalances reports an account whose cached balance would leave the
// int64 range after applying deltas.
func CheckBalances(deltas map[string]int64, accounts AccountChecker) error {
	for accountID, d := range deltas {
		a, ok := accounts.Lookup(accountID)
		if !ok {
			continue
		}
		b := a.BalanceCents
		if (d > 0 && b > math.MaxInt64-d) || (d < 0 && b < math.MinInt64-d) {
			return fmt.Errorf("account %s (%s): %w", a.Code, accountID, ErrBalanceOverflow)
		}
	}
	return nil
}
