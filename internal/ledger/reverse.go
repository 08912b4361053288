package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

// Reverse corrects a posted transaction without editing history: it posts a
// transaction with every side swapped, referencing the original, and marks the
// original void in the same commit. Bank lines matched to the original stay matched.
func (l *Ledger) Reverse(ctx context.Context, tenantID, txnID string, date time.Time) (model.Transaction, error) {
	orig, err := l.Transaction(ctx, tenantID, txnID)
	if err != nil {
		return model.Transaction{}, err
	}
	if orig.Status == model.StatusVoid {
		return model.Transaction{}, fmt.Errorf("reversing %s: %w", txnID, ErrAlreadyVoid)
	}

	entries := make([]model.JournalEntry, len(orig.Entries))
	for i, e := range orig.Entries {
		entries[i] = model.JournalEntry{
			AccountID:   e.AccountID,
			DebitCents:  e.CreditCents,
			CreditCents: e.DebitCents,
		}
	}

	txn, err := l.PostTransaction(ctx, tenantID, model.Transaction{
		Date:        date,
		Description: "Reversal of " + orig.ID + ": " + orig.Description,
		Source:      model.SourceSystem,
		Reference:   orig.ID,
		Entries:     entries,
	}, voiding(orig.ID))
	if errors.Is(err, store.ErrConflict) {
		return model.Transaction{}, fmt.Errorf("reversing %s: %w", txnID, ErrAlreadyVoid)
	}
	if err != nil {
		return model.Transaction{}, err
	}
	return txn, nil
}
