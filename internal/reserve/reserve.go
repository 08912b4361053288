// Package reserve skims a percentage of qualifying postings into reserve
// accounts by posting separate System transactions through the ledger.
package reserve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

var (
	// ErrInvalidRule is returned by Register for a rule that cannot be applied.
	ErrInvalidRule = errors.New("invalid reserve rule")

	hundred = decimal.NewFromInt(100)
)

// Ledger is the subset of *ledger.Ledger the engine posts through.
type Ledger interface {
	PostTransaction(ctx context.Context, tenantID string, candidate model.Transaction, opts ...ledger.PostOption) (model.Transaction, error)
	Transactions(ctx context.Context, tenantID string) ([]model.Transaction, error)
}

// Allocation is what one rule would move for one transaction.
type Allocation struct {
	RuleID           string `json:"rule_id"`
	RuleName         string `json:"rule_name"`
	TransactionID    string `json:"transaction_id"`
	SourceAccountID  string `json:"source_account_id"`
	ReserveAccountID string `json:"reserve_account_id"`
	AmountCents      int64  `json:"amount_cents"`
	Automated        bool   `json:"automated"`
	Reference        string `json:"reference"`
}

// Reference is the idempotency key of the allocation of rule for transaction txnID.
func Reference(ruleID, txnID string) string {
	return "reserve:" + ruleID + ":" + txnID
}

// Amount returns round(pct/100 × Σ magnitudes of the entries on the rule's source account).
func Amount(rule model.ReserveRule, txn model.Transaction) int64 {
	var base int64
	for _, e := range txn.Entries {
		if e.AccountID == rule.SourceAccountID {
			base += e.Magnitude()
		}
	}
	if base == 0 {
		return 0
	}
	return decimal.NewFromInt(base).Mul(rule.TargetPercentage).Div(hundred).Round(0).IntPart()
}

// Engine applies reserve rules. Dedupe-then-post runs under one mutex so an
// allocation is posted at most once per rule and transaction.
type Engine struct {
	store  store.Store
	ledger Ledger
	log    *slog.Logger

	mu sync.Mutex
}

// NewEngine creates an Engine. A nil logger discards output.
func NewEngine(st store.Store, l Ledger, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Engine{store: st, ledger: l, log: log}
}

// Register validates and stores a rule. An empty ID is filled with a new UUID.
func (e *Engine) Register(ctx context.Context, rule model.ReserveRule) (model.ReserveRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if !rule.TargetPercentage.IsPositive() || rule.TargetPercentage.GreaterThan(hundred) {
		return model.ReserveRule{}, fmt.Errorf("rule %s: percentage %s not in (0, 100]: %w", rule.Name, rule.TargetPercentage, ErrInvalidRule)
	}
	if rule.SourceAccountID == rule.ReserveAccountID {
		return model.ReserveRule{}, fmt.Errorf("rule %s: source and reserve account are the same: %w", rule.Name, ErrInvalidRule)
	}
	for _, accountID := range []string{rule.SourceAccountID, rule.ReserveAccountID} {
		if _, err := e.store.GetAccount(ctx, rule.TenantID, accountID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return model.ReserveRule{}, fmt.Errorf("rule %s: account %q: %w", rule.Name, accountID, ledger.ErrUnknownAccount)
			}
			return model.ReserveRule{}, err
		}
	}
	if err := e.store.PutReserveRule(ctx, rule); err != nil {
		return model.ReserveRule{}, err
	}
	return rule, nil
}

// Rules returns the tenant's rules in registration order.
func (e *Engine) Rules(ctx context.Context, tenantID string) ([]model.ReserveRule, error) {
	return e.store.ListReserveRules(ctx, tenantID)
}

// Hook returns the post-commit hook that applies rules to every new posting.
func (e *Engine) Hook() ledger.Hook {
	return func(ctx context.Context, txn model.Transaction) {
		if _, err := e.ApplyReserveRules(ctx, txn); err != nil {
			e.log.Error("reserve allocation failed", "tenant", txn.TenantID, "transaction", txn.ID, "error", err)
		}
	}
}

// Preview reports the allocations every rule, automated or not, would make for txn.
// Nothing is posted.
func (e *Engine) Preview(ctx context.Context, tenantID string, txn model.Transaction) ([]Allocation, error) {
	rules, err := e.store.ListReserveRules(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return allocations(rules, txn, false), nil
}

func allocations(rules []model.ReserveRule, txn model.Transaction, automatedOnly bool) []Allocation {
	var out []Allocation
	for _, r := range rules {
		if automatedOnly && !r.IsAutomated {
			continue
		}
		if !txn.Touches(r.SourceAccountID) {
			continue
		}
		amount := Amount(r, txn)
		if amount == 0 {
			continue
		}
		out = append(out, Allocation{
			RuleID:           r.ID,
			RuleName:         r.Name,
			TransactionID:    txn.ID,
			SourceAccountID:  r.SourceAccountID,
			ReserveAccountID: r.ReserveAccountID,
			AmountCents:      amount,
			Automated:        r.IsAutomated,
			Reference:        Reference(r.ID, txn.ID),
		})
	}
	return out
}

// ApplyReserveRules posts one System transaction per automated rule whose source
// account txn touches: debit the reserve account, credit the source account.
// System and void transactions are ignored.
func (e *Engine) ApplyReserveRules(ctx context.Context, txn model.Transaction) ([]model.Transaction, error) {
	if !qualifies(txn) {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rules, err := e.store.ListReserveRules(ctx, txn.TenantID)
	if err != nil {
		return nil, err
	}
	allocs := allocations(rules, txn, true)
	if len(allocs) == 0 {
		return nil, nil
	}
	posted, err := e.postedReferences(ctx, txn.TenantID)
	if err != nil {
		return nil, err
	}
	return e.post(ctx, txn, allocs, posted)
}

// EvaluateReserveRules sweeps every posted non-system transaction of the tenant
// and posts the allocations that are missing.
func (e *Engine) EvaluateReserveRules(ctx context.Context, tenantID string) ([]model.Transaction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rules, err := e.store.ListReserveRules(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	txns, err := e.ledger.Transactions(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	posted := references(txns)

	var out []model.Transaction
	var errs []error
	for _, t := range txns {
		if !qualifies(t) {
			continue
		}
		got, err := e.post(ctx, t, allocations(rules, t, true), posted)
		out = append(out, got...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return out, errors.Join(errs...)
}

func qualifies(txn model.Transaction) bool {
	return txn.Source != model.SourceSystem && txn.Status == model.StatusPosted
}

func (e *Engine) postedReferences(ctx context.Context, tenantID string) (map[string]bool, error) {
	txns, err := e.ledger.Transactions(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return references(txns), nil
}

func references(txns []model.Transaction) map[string]bool {
	refs := make(map[string]bool)
	for _, t := range txns {
		if t.Source == model.SourceSystem && t.Reference != "" {
			refs[t.Reference] = true
		}
	}
	return refs
}

// post runs with e.mu held. It records new references in posted.
func (e *Engine) post(ctx context.Context, txn model.Transaction, allocs []Allocation, posted map[string]bool) ([]model.Transaction, error) {
	var out []model.Transaction
	var errs []error
	for _, a := range allocs {
		if posted[a.Reference] {
			continue
		}
		got, err := e.ledger.PostTransaction(ctx, txn.TenantID, model.Transaction{
			Date:        txn.Date,
			Description: fmt.Sprintf("%s reserve for %s", a.RuleName, txn.ID),
			Source:      model.SourceSystem,
			Reference:   a.Reference,
			Entries: []model.JournalEntry{
				{AccountID: a.ReserveAccountID, DebitCents: a.AmountCents},
				{AccountID: a.SourceAccountID, CreditCents: a.AmountCents},
			},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %s on %s: %w", a.RuleID, txn.ID, err))
			continue
		}
		posted[a.Reference] = true
		out = append(out, got)
		e.log.Info("reserve allocated",
			"tenant", txn.TenantID,
			"rule", a.RuleID,
			"transaction", txn.ID,
			"allocation", got.ID,
			"amount_cents", a.AmountCents,
		)
	}
	return out, errors.Join(errs...)
}
