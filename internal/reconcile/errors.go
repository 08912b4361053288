package reconcile

import "errors"

var (
	// ErrUnknownLine is returned when a bank line does not exist for the tenant.
	ErrUnknownLine = errors.New("unknown bank line")
	// ErrLineAlreadyMatched is returned when a bank line was matched before.
	ErrLineAlreadyMatched = errors.New("bank line already matched")
	// ErrNoOperatingAccount is returned when the tenant has no bank-feed operating account configured.
	ErrNoOperatingAccount = errors.New("tenant has no operating account")
)
