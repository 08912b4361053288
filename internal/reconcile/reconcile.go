// Package reconcile ties bank statement lines to the ledger.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cleared-dev/ledger/internal/advisor"
	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
	"github.com/cleared-dev/ledger/internal/tenant"
)

// Poster posts balanced transactions. *ledger.Ledger satisfies it.
type Poster interface {
	PostTransaction(ctx context.Context, tenantID string, candidate model.Transaction, opts ...ledger.PostOption) (model.Transaction, error)
}

// Service matches bank lines and records advisory suggestions.
type Service struct {
	store     store.Store
	ledger    Poster
	suggester advisor.Suggester
	log       *slog.Logger
}

// NewService creates a Service. A nil suggester never suggests; a nil logger discards output.
func NewService(st store.Store, l Poster, s advisor.Suggester, log *slog.Logger) *Service {
	if s == nil {
		s = advisor.Nop{}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{store: st, ledger: l, suggester: s, log: log}
}

// ListUnmatched returns the tenant's unmatched lines ordered by date, then ID.
func (s *Service) ListUnmatched(ctx context.Context, tenantID string) ([]model.BankStatementLine, error) {
	return s.store.ListBankLines(ctx, tenantID, store.LineFilter{UnmatchedOnly: true})
}

// Lines returns every bank line of the tenant ordered by date, then ID.
func (s *Service) Lines(ctx context.Context, tenantID string) ([]model.BankStatementLine, error) {
	return s.store.ListBankLines(ctx, tenantID, store.LineFilter{})
}

// Match posts a transaction between the tenant's operating account and
// targetAccountID for the line's amount, and marks the line matched in the same
// commit. Money in debits the operating account; money out credits it. Both
// entries are marked reconciled. A line is matched at most once, even under
// concurrent calls.
func (s *Service) Match(ctx context.Context, tenantID, lineID, targetAccountID string) (model.Transaction, error) {
	line, err := s.store.GetBankLine(ctx, tenantID, lineID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Transaction{}, fmt.Errorf("line %s: %w", lineID, ErrUnknownLine)
	}
	if err != nil {
		return model.Transaction{}, err
	}
	if line.IsMatched {
		return model.Transaction{}, fmt.Errorf("line %s matched to %s: %w", lineID, line.MatchedTransactionID, ErrLineAlreadyMatched)
	}

	operating, err := s.operatingAccount(ctx, tenantID)
	if err != nil {
		return model.Transaction{}, err
	}
	if targetAccountID == operating {
		return model.Transaction{}, fmt.Errorf("line %s: target is the operating account: %w", lineID, ledger.ErrInvalidEntry)
	}

	cash := model.JournalEntry{AccountID: operating, IsReconciled: true}
	other := model.JournalEntry{AccountID: targetAccountID, IsReconciled: true}
	if line.Type == model.LineCredit {
		cash.DebitCents = line.AmountCents
		other.CreditCents = line.AmountCents
	} else {
		other.DebitCents = line.AmountCents
		cash.CreditCents = line.AmountCents
	}

	txn, err := s.ledger.PostTransaction(ctx, tenantID, model.Transaction{
		Date:        line.Date,
		Description: line.Description,
		Source:      model.SourceBankFeed,
		Reference:   "bank:" + line.ID,
		Entries:     []model.JournalEntry{cash, other},
	}, ledger.WithBankLine(line.ID))
	switch {
	case errors.Is(err, store.ErrLineMatched):
		return model.Transaction{}, fmt.Errorf("line %s: %w", lineID, ErrLineAlreadyMatched)
	case errors.Is(err, store.ErrNotFound):
		return model.Transaction{}, fmt.Errorf("line %s: %w", lineID, ErrUnknownLine)
	case err != nil:
		return model.Transaction{}, err
	}

	s.log.Info("bank line matched", "tenant", tenantID, "line", lineID, "transaction", txn.ID, "account", targetAccountID)
	return txn, nil
}

func (s *Service) operatingAccount(ctx context.Context, tenantID string) (string, error) {
	t, err := s.store.GetTenant(ctx, tenantID)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("tenant %s: %w", tenantID, ErrNoOperatingAccount)
	}
	if err != nil {
		return "", err
	}
	if t.OperatingAccountID == "" {
		return "", fmt.Errorf("tenant %s: %w", tenantID, ErrNoOperatingAccount)
	}
	return t.OperatingAccountID, nil
}

// SuggestAccountForLine asks the advisor for an account. It never fails; an
// advisor problem reads as no suggestion.
func (s *Service) SuggestAccountForLine(ctx context.Context, tenantID, description string) (string, bool) {
	return s.suggester.Suggest(tenant.WithID(ctx, tenantID), description)
}

// Suggest records the advisor's hint on an unmatched line. The ledger is not touched.
// Suggestions naming an account the tenant does not have are dropped.
func (s *Service) Suggest(ctx context.Context, tenantID, lineID string) (model.BankStatementLine, bool, error) {
	line, err := s.store.GetBankLine(ctx, tenantID, lineID)
	if errors.Is(err, store.ErrNotFound) {
		return model.BankStatementLine{}, false, fmt.Errorf("line %s: %w", lineID, ErrUnknownLine)
	}
	if err != nil {
		return model.BankStatementLine{}, false, err
	}
	if line.IsMatched {
		return line, false, fmt.Errorf("line %s: %w", lineID, ErrLineAlreadyMatched)
	}

	accountID, ok := s.SuggestAccountForLine(ctx, tenantID, line.Description)
	if !ok {
		return line, false, nil
	}
	if _, err := s.store.GetAccount(ctx, tenantID, accountID); err != nil {
		s.log.Debug("dropping suggestion for unknown account", "tenant", tenantID, "line", lineID, "account", accountID)
		return line, false, nil
	}

	if err := s.store.SetSuggestion(ctx, tenantID, lineID, accountID); err != nil {
		if errors.Is(err, store.ErrLineMatched) {
			return line, false, fmt.Errorf("line %s: %w", lineID, ErrLineAlreadyMatched)
		}
		return line, false, err
	}
	line.SuggestedAccountID = accountID
	return line, true, nil
}

// SuggestAll records hints on every unmatched line and returns how many got one.
func (s *Service) SuggestAll(ctx context.Context, tenantID string) (int, error) {
	lines, err := s.ListUnmatched(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, l := range lines {
		_, ok, err := s.Suggest(ctx, tenantID, l.ID)
		if errors.Is(err, ErrLineAlreadyMatched) {
			continue
		}
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}
