package ledger

import "errors"

var (
	// ErrLedgerUnbalanced is returned when total debits differ from total credits.
	ErrLedgerUnbalanced = errors.New("ledger unbalanced")
	// ErrUnknownAccount is returned when an entry references an account the tenant does not have.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrInvalidEntry is returned when an entry is not exactly one non-negative, non-zero side.
	ErrInvalidEntry = errors.New("invalid journal entry")
	// ErrTooFewEntries is returned when a transaction has fewer than two entries.
	ErrTooFewEntries = errors.New("transaction needs at least two entries")
	// ErrBalanceOverflow is returned when a posting would push a cached balance outside int64.
	ErrBalanceOverflow = errors.New("account balance out of range")
	// ErrAlreadyVoid is returned when reversing a transaction that is already void.
	ErrAlreadyVoid = errors.New("transaction already void")
	// ErrTransactionNotFound is returned when a transaction ID does not exist for the tenant.
	ErrTransactionNotFound = errors.New("transaction not found")
)
