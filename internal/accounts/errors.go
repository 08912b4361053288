package accounts

import "errors"

var (
	// ErrDuplicateCode is returned when an account code is already used by the tenant.
	ErrDuplicateCode = errors.New("account code already exists")
	// ErrTypeImmutable is returned when an update tries to change an account's type.
	ErrTypeImmutable = errors.New("account type cannot change")
	// ErrInvalidType is returned for a type outside asset, liability, equity, revenue and expense.
	ErrInvalidType = errors.New("invalid account type")
	// ErrNotFound is returned when no account matches the given id or code.
	ErrNotFound = errors.New("account not found")
)
