package id

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FormatTransactionID returns a transaction ID like "2025-01-001".
// Sequences are per tenant and per month.
func FormatTransactionID(year, month, seq int) string {
	return fmt.Sprintf("%04d-%02d-%03d", year, month, seq)
}

// ForDate is FormatTransactionID for the month containing d.
func ForDate(d time.Time, seq int) string {
	return FormatTransactionID(d.Year(), int(d.Month()), seq)
}

// FormatEntryID returns a journal entry ID like "2025-01-001a" (entry 0='a', 1='b', ...
// 25='z', 26='aa').
func FormatEntryID(txnID string, entry int) string {
	return txnID + suffix(entry)
}

func suffix(n int) string {
	var b []byte
	for n >= 0 {
		b = append([]byte{byte('a' + n%26)}, b...)
		n = n/26 - 1
	}
	return string(b)
}

// ParseTransactionID parses "2025-01-001" into year, month, seq.
// An entry suffix is ignored.
func ParseTransactionID(s string) (year, month, seq int, err error) {
	base := TransactionOf(s)

	parts := strings.SplitN(base, "-", 3)
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid transaction ID format: %q", s)
	}

	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid year in transaction ID %q: %w", s, err)
	}

	month, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid month in transaction ID %q: %w", s, err)
	}
	if month < 1 || month > 12 {
		return 0, 0, 0, fmt.Errorf("month %d out of range in transaction ID %q", month, s)
	}

	seq, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid sequence in transaction ID %q: %w", s, err)
	}

	return year, month, seq, nil
}

// TransactionOf strips the entry suffix from an entry ID.
// "2025-01-001a" -> "2025-01-001"
func TransactionOf(entryID string) string {
	i := len(entryID)
	for i > 0 && entryID[i-1] >= 'a' && entryID[i-1] <= 'z' {
		i--
	}
	return entryID[:i]
}

// New returns a random identifier for accounts, bank lines and rules.
func New() string {
	return uuid.NewString()
}
