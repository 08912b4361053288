// Package memstore is an in-memory store.Store used by tests and the "memory" database driver.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

type tenantState struct {
	accounts     map[string]model.Account
	codes        map[string]string // code -> account ID
	transactions []model.Transaction
	txnIndex     map[string]int
	lines        map[string]model.BankStatementLine
	lineOrder    []string
	rules        []model.ReserveRule
}

// Store keeps all state behind a single RWMutex. Every read returns copies.
type Store struct {
	mu      sync.RWMutex
	tenants map[string]model.Tenant
	state   map[string]*tenantState
}

var _ store.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		tenants: make(map[string]model.Tenant),
		state:   make(map[string]*tenantState),
	}
}

func (s *Store) tenant(tenantID string) *tenantState {
	ts, ok := s.state[tenantID]
	if !ok {
		ts = &tenantState{
			accounts: make(map[string]model.Account),
			codes:    make(map[string]string),
			txnIndex: make(map[string]int),
			lines:    make(map[string]model.BankStatementLine),
		}
		s.state[tenantID] = ts
	}
	return ts
}

func (s *Store) PutTenant(_ context.Context, t model.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
	s.tenant(t.ID)
	return nil
}

func (s *Store) GetTenant(_ context.Context, tenantID string) (model.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return model.Tenant{}, fmt.Errorf("tenant %s: %w", tenantID, store.ErrNotFound)
	}
	return t, nil
}

func (s *Store) ListTenants(_ context.Context) ([]model.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateAccount(_ context.Context, a model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.tenant(a.TenantID)
	if _, ok := ts.codes[a.Code]; ok {
		return fmt.Errorf("account code %s: %w", a.Code, store.ErrDuplicateCode)
	}
	if _, ok := ts.accounts[a.ID]; ok {
		return fmt.Errorf("account %s: %w", a.ID, store.ErrConflict)
	}
	ts.accounts[a.ID] = a
	ts.codes[a.Code] = a.ID
	return nil
}

func (s *Store) UpdateAccount(_ context.Context, a model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.tenant(a.TenantID)
	cur, ok := ts.accounts[a.ID]
	if !ok {
		return fmt.Errorf("account %s: %w", a.ID, store.ErrNotFound)
	}
	cur.Name = a.Name
	cur.Subtype = a.Subtype
	cur.Currency = a.Currency
	ts.accounts[a.ID] = cur
	return nil
}

func (s *Store) GetAccount(_ context.Context, tenantID, accountID string) (model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.state[tenantID]
	if !ok {
		return model.Account{}, fmt.Errorf("account %s: %w", accountID, store.ErrNotFound)
	}
	a, ok := ts.accounts[accountID]
	if !ok {
		return model.Account{}, fmt.Errorf("account %s: %w", accountID, store.ErrNotFound)
	}
	return a, nil
}

func (s *Store) ListAccounts(_ context.Context, tenantID string) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.state[tenantID]
	if !ok {
		return nil, nil
	}
	out := make([]model.Account, 0, len(ts.accounts))
	for _, a := range ts.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) ReplaceBalances(_ context.Context, tenantID string, balances map[string]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.tenant(tenantID)
	for accountID, a := range ts.accounts {
		a.BalanceCents = balances[accountID]
		ts.accounts[accountID] = a
	}
	return nil
}

// Commit checks every precondition before touching state, so a failed commit leaves nothing behind.
func (s *Store) Commit(_ context.Context, c store.Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	txn := c.Transaction
	ts := s.tenant(txn.TenantID)

	if _, ok := ts.txnIndex[txn.ID]; ok {
		return fmt.Errorf("transaction %s: %w", txn.ID, store.ErrConflict)
	}
	for accountID := range c.Deltas {
		if _, ok := ts.accounts[accountID]; !ok {
			return fmt.Errorf("account %s: %w", accountID, store.ErrNotFound)
		}
	}
	var line model.BankStatementLine
	if c.MatchLineID != "" {
		l, ok := ts.lines[c.MatchLineID]
		if !ok {
			return fmt.Errorf("bank line %s: %w", c.MatchLineID, store.ErrNotFound)
		}
		if l.IsMatched {
			return fmt.Errorf("bank line %s: %w", c.MatchLineID, store.ErrLineMatched)
		}
		line = l
	}
	voidIdx := -1
	if c.VoidTransactionID != "" {
		i, ok := ts.txnIndex[c.VoidTransactionID]
		if !ok {
			return fmt.Errorf("transaction %s: %w", c.VoidTransactionID, store.ErrNotFound)
		}
		if ts.transactions[i].Status == model.StatusVoid {
			return fmt.Errorf("transaction %s already void: %w", c.VoidTransactionID, store.ErrConflict)
		}
		voidIdx = i
	}

	ts.txnIndex[txn.ID] = len(ts.transactions)
	ts.transactions = append(ts.transactions, txn.Clone())
	for accountID, delta := range c.Deltas {
		a := ts.accounts[accountID]
		a.BalanceCents += delta
		ts.accounts[accountID] = a
	}
	if c.MatchLineID != "" {
		line.IsMatched = true
		line.MatchedTransactionID = txn.ID
		ts.lines[line.ID] = line
	}
	if voidIdx >= 0 {
		ts.transactions[voidIdx].Status = model.StatusVoid
	}
	return nil
}

func (s *Store) GetTransaction(_ context.Context, tenantID, txnID string) (model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.state[tenantID]
	if !ok {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", txnID, store.ErrNotFound)
	}
	i, ok := ts.txnIndex[txnID]
	if !ok {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", txnID, store.ErrNotFound)
	}
	return ts.transactions[i].Clone(), nil
}

func (s *Store) ListTransactions(_ context.Context, tenantID string) ([]model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.state[tenantID]
	if !ok {
		return nil, nil
	}
	out := make([]model.Transaction, len(ts.transactions))
	for i, t := range ts.transactions {
		out[i] = t.Clone()
	}
	return out, nil
}

func (s *Store) NextSequence(_ context.Context, tenantID string, year, month int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.state[tenantID]
	if !ok {
		return 1, nil
	}
	maxSeq := 0
	for _, t := range ts.transactions {
		y, m, seq, err := id.ParseTransactionID(t.ID)
		if err != nil || y != year || m != month {
			continue
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq + 1, nil
}

func (s *Store) AddBankLines(_ context.Context, lines []model.BankStatementLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range lines {
		if _, ok := s.tenant(l.TenantID).lines[l.ID]; ok {
			return fmt.Errorf("bank line %s: %w", l.ID, store.ErrConflict)
		}
	}
	for _, l := range lines {
		ts := s.tenant(l.TenantID)
		ts.lines[l.ID] = l
		ts.lineOrder = append(ts.lineOrder, l.ID)
	}
	return nil
}

func (s *Store) GetBankLine(_ context.Context, tenantID, lineID string) (model.BankStatementLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.state[tenantID]
	if !ok {
		return model.BankStatementLine{}, fmt.Errorf("bank line %s: %w", lineID, store.ErrNotFound)
	}
	l, ok := ts.lines[lineID]
	if !ok {
		return model.BankStatementLine{}, fmt.Errorf("bank line %s: %w", lineID, store.ErrNotFound)
	}
	return l, nil
}

func (s *Store) ListBankLines(_ context.Context, tenantID string, f store.LineFilter) ([]model.BankStatementLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.state[tenantID]
	if !ok {
		return nil, nil
	}
	var out []model.BankStatementLine
	for _, lineID := range ts.lineOrder {
		l := ts.lines[lineID]
		if f.UnmatchedOnly && l.IsMatched {
			continue
		}
		out = append(out, l)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SetSuggestion(_ context.Context, tenantID, lineID, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.tenant(tenantID)
	l, ok := ts.lines[lineID]
	if !ok {
		return fmt.Errorf("bank line %s: %w", lineID, store.ErrNotFound)
	}
	if l.IsMatched {
		return fmt.Errorf("bank line %s: %w", lineID, store.ErrLineMatched)
	}
	l.SuggestedAccountID = accountID
	ts.lines[lineID] = l
	return nil
}

func (s *Store) PutReserveRule(_ context.Context, r model.ReserveRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.tenant(r.TenantID)
	for i, existing := range ts.rules {
		if existing.ID == r.ID {
			ts.rules[i] = r
			return nil
		}
	}
	ts.rules = append(ts.rules, r)
	return nil
}

func (s *Store) ListReserveRules(_ context.Context, tenantID string) ([]model.ReserveRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.state[tenantID]
	if !ok {
		return nil, nil
	}
	return append([]model.ReserveRule(nil), ts.rules...), nil
}

func (s *Store) Close() error { return nil }
