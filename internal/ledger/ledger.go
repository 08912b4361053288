// Package ledger posts balanced double-entry transactions and keeps the
// per-account balance cache consistent with the transaction log.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

// Hook observes every committed transaction. Hooks run after the tenant lock
// is released, in registration order, and cannot undo the commit. Their context
// keeps the caller's values but is never cancelled.
type Hook func(ctx context.Context, txn model.Transaction)

// Ledger is the only writer of transactions and balances.
type Ledger struct {
	store store.Store
	log   *slog.Logger
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	hooksMu sync.RWMutex
	hooks   []Hook
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger. The default discards output.
func WithLogger(log *slog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithClock overrides the clock used for undated transactions.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger over st.
func New(st store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store: st,
		log:   slog.New(slog.DiscardHandler),
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Subscribe registers a post-commit hook.
func (l *Ledger) Subscribe(h Hook) {
	l.hooksMu.Lock()
	defer l.hooksMu.Unlock()
	l.hooks = append(l.hooks, h)
}

func (l *Ledger) tenantLock(tenantID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[tenantID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[tenantID] = m
	}
	return m
}

type postConfig struct {
	matchLineID string
	voidTxnID   string
}

// PostOption adjusts a single PostTransaction call.
type PostOption func(*postConfig)

// WithBankLine flips the given bank line to matched in the same commit as the posting.
// If the line is already matched, nothing is written and store.ErrLineMatched is returned.
func WithBankLine(lineID string) PostOption {
	return func(c *postConfig) { c.matchLineID = lineID }
}

func voiding(txnID string) PostOption {
	return func(c *postConfig) { c.voidTxnID = txnID }
}

// PostTransaction validates candidate and, if it balances, commits it with the
// balance updates it implies. Only Date, Description, Source, Reference and the
// entries' AccountID, DebitCents, CreditCents and IsReconciled are read from candidate.
// On any error nothing is written.
func (l *Ledger) PostTransaction(ctx context.Context, tenantID string, candidate model.Transaction, opts ...PostOption) (model.Transaction, error) {
	var cfg postConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	lock := l.tenantLock(tenantID)
	lock.Lock()
	txn, err := l.post(ctx, tenantID, candidate, cfg)
	lock.Unlock()
	if err != nil {
		l.log.Debug("posting rejected", "tenant", tenantID, "description", candidate.Description, "error", err)
		return model.Transaction{}, err
	}

	l.log.Info("transaction posted",
		"tenant", tenantID,
		"id", txn.ID,
		"source", txn.Source,
		"entries", len(txn.Entries),
	)
	l.publish(ctx, txn)
	return txn, nil
}

// post runs with the tenant lock held.
func (l *Ledger) post(ctx context.Context, tenantID string, candidate model.Transaction, cfg postConfig) (model.Transaction, error) {
	accounts, err := l.resolve(ctx, tenantID, candidate.Entries)
	if err != nil {
		return model.Transaction{}, err
	}

	entries := make([]model.JournalEntry, len(candidate.Entries))
	for i, e := range candidate.Entries {
		entries[i] = model.JournalEntry{
			AccountID:    e.AccountID,
			DebitCents:   e.DebitCents,
			CreditCents:  e.CreditCents,
			IsReconciled: e.IsReconciled,
		}
	}

	if verrs := ValidateEntries(entries, accounts); len(verrs) > 0 {
		joined := make([]error, len(verrs))
		for i, ve := range verrs {
			joined[i] = ve
		}
		return model.Transaction{}, fmt.Errorf("validation failed: %w", errors.Join(joined...))
	}
	deltas := Deltas(entries, accounts)
	if err := CheckBalances(deltas, accounts); err != nil {
		return model.Transaction{}, err
	}

	date := candidate.Date
	if date.IsZero() {
		date = l.now()
	}
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)

	seq, err := l.store.NextSequence(ctx, tenantID, date.Year(), int(date.Month()))
	if err != nil {
		return model.Transaction{}, err
	}
	txnID := id.ForDate(date, seq)
	for i := range entries {
		entries[i].ID = id.FormatEntryID(txnID, i)
	}

	source := candidate.Source
	if source == "" {
		source = model.SourceManual
	}

	txn := model.Transaction{
		ID:          txnID,
		TenantID:    tenantID,
		Date:        date,
		Description: candidate.Description,
		Status:      model.StatusPosted,
		Source:      source,
		Reference:   candidate.Reference,
		Entries:     entries,
	}

	err = l.store.Commit(ctx, store.Commit{
		Transaction:       txn,
		Deltas:            deltas,
		MatchLineID:       cfg.matchLineID,
		VoidTransactionID: cfg.voidTxnID,
	})
	if err != nil {
		return model.Transaction{}, fmt.Errorf("committing %s: %w", txnID, err)
	}
	return txn, nil
}

// resolve loads every account the entries reference. Unknown IDs are left out
// so validation reports them.
func (l *Ledger) resolve(ctx context.Context, tenantID string, entries []model.JournalEntry) (AccountSet, error) {
	set := make(AccountSet, len(entries))
	for _, e := range entries {
		if _, seen := set[e.AccountID]; seen || e.AccountID == "" {
			continue
		}
		a, err := l.store.GetAccount(ctx, tenantID, e.AccountID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		set[a.ID] = a
	}
	return set, nil
}

func (l *Ledger) publish(ctx context.Context, txn model.Transaction) {
	l.hooksMu.RLock()
	hooks := append([]Hook(nil), l.hooks...)
	l.hooksMu.RUnlock()
	ctx = context.WithoutCancel(ctx)
	for _, h := range hooks {
		h(ctx, txn.Clone())
	}
}

// Transaction returns one transaction by ID.
func (l *Ledger) Transaction(ctx context.Context, tenantID, txnID string) (model.Transaction, error) {
	txn, err := l.store.GetTransaction(ctx, tenantID, txnID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", txnID, ErrTransactionNotFound)
	}
	return txn, err
}

// Transactions returns the tenant's log in commit order.
func (l *Ledger) Transactions(ctx context.Context, tenantID string) ([]model.Transaction, error) {
	return l.store.ListTransactions(ctx, tenantID)
}

// Balance returns the cached balance of an account.
func (l *Ledger) Balance(ctx context.Context, tenantID, accountID string) (int64, error) {
	a, err := l.store.GetAccount(ctx, tenantID, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("account %s: %w", accountID, ErrUnknownAccount)
	}
	if err != nil {
		return 0, err
	}
	return a.BalanceCents, nil
}
