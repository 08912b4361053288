package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

// accountNamespace seeds deterministic IDs for seeded chart accounts.
var accountNamespace = uuid.MustParse("6f1f5a8e-2f0b-4b8c-9a57-0d7c1d1e9a10")

// Service manages a tenant's chart of accounts on top of a store.
type Service struct {
	store store.Store
	log   *slog.Logger
}

// NewService creates a Service. A nil logger discards output.
func NewService(st store.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Service{store: st, log: log}
}

// SeedID returns the stable ID given to a chart account seeded from a code.
func SeedID(tenantID, code string) string {
	return uuid.NewSHA1(accountNamespace, []byte(tenantID+":"+code)).String()
}

// Create adds an account to the tenant's chart. An empty ID is filled with a new UUID.
func (s *Service) Create(ctx context.Context, a model.Account) (model.Account, error) {
	a.Code = strings.TrimSpace(a.Code)
	a.Name = strings.TrimSpace(a.Name)
	if a.Code == "" {
		return model.Account{}, fmt.Errorf("account code is required")
	}
	if !a.Type.Valid() {
		return model.Account{}, fmt.Errorf("account %s: %w %q", a.Code, ErrInvalidType, a.Type)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.BalanceCents = 0

	if err := s.store.CreateAccount(ctx, a); err != nil {
		if errors.Is(err, store.ErrDuplicateCode) {
			return model.Account{}, fmt.Errorf("account %s in tenant %s: %w", a.Code, a.TenantID, ErrDuplicateCode)
		}
		return model.Account{}, err
	}
	s.log.Info("account created", "tenant", a.TenantID, "code", a.Code, "type", a.Type)
	return a, nil
}

// Update renames or re-describes an account. Changing Type fails with ErrTypeImmutable.
func (s *Service) Update(ctx context.Context, a model.Account) (model.Account, error) {
	cur, err := s.Get(ctx, a.TenantID, a.ID)
	if err != nil {
		return model.Account{}, err
	}
	if a.Type != "" && a.Type != cur.Type {
		return model.Account{}, fmt.Errorf("account %s: %w", cur.Code, ErrTypeImmutable)
	}
	if a.Code != "" && a.Code != cur.Code {
		return model.Account{}, fmt.Errorf("account %s: code cannot change", cur.Code)
	}
	cur.Name = a.Name
	cur.Subtype = a.Subtype
	cur.Currency = a.Currency
	if err := s.store.UpdateAccount(ctx, cur); err != nil {
		return model.Account{}, err
	}
	return cur, nil
}

// Get returns an account by ID.
func (s *Service) Get(ctx context.Context, tenantID, accountID string) (model.Account, error) {
	a, err := s.store.GetAccount(ctx, tenantID, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return model.Account{}, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	return a, err
}

// Resolve finds an account by ID or, failing that, by code.
func (s *Service) Resolve(ctx context.Context, tenantID, ref string) (model.Account, error) {
	if a, err := s.store.GetAccount(ctx, tenantID, ref); err == nil {
		return a, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return model.Account{}, err
	}
	all, err := s.List(ctx, tenantID)
	if err != nil {
		return model.Account{}, err
	}
	for _, a := range all {
		if a.Code == ref {
			return a, nil
		}
	}
	return model.Account{}, fmt.Errorf("account %s: %w", ref, ErrNotFound)
}

// List returns all accounts of the tenant ordered by code.
func (s *Service) List(ctx context.Context, tenantID string) ([]model.Account, error) {
	return s.store.ListAccounts(ctx, tenantID)
}

// ByType returns all accounts of the given type.
func (s *Service) ByType(ctx context.Context, tenantID string, accountType model.AccountType) ([]model.Account, error) {
	all, err := s.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var result []model.Account
	for _, a := range all {
		if a.Type == accountType {
			result = append(result, a)
		}
	}
	return result, nil
}

// SeedDefaultChart creates every default chart account the tenant does not have yet.
// It is idempotent and returns the accounts it created.
func (s *Service) SeedDefaultChart(ctx context.Context, tenantID, entityType, currency string) ([]model.Account, error) {
	existing, err := s.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, a := range existing {
		have[a.Code] = true
	}

	var created []model.Account
	for _, a := range DefaultChart(entityType) {
		if have[a.Code] {
			continue
		}
		a.TenantID = tenantID
		a.ID = SeedID(tenantID, a.Code)
		a.Currency = currency
		got, err := s.Create(ctx, a)
		if err != nil {
			return created, fmt.Errorf("seeding %s: %w", a.Code, err)
		}
		created = append(created, got)
	}
	return created, nil
}

// Import creates accounts read from a chart-of-accounts CSV, skipping codes that already exist.
func (s *Service) Import(ctx context.Context, tenantID string, accts []model.Account) (int, error) {
	n := 0
	for _, a := range accts {
		a.TenantID = tenantID
		if a.ID == "" {
			a.ID = SeedID(tenantID, a.Code)
		}
		if _, err := s.Create(ctx, a); err != nil {
			if errors.Is(err, ErrDuplicateCode) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

// Save writes the tenant's chart to accounts/chart-of-accounts.csv under dir.
func (s *Service) Save(ctx context.Context, tenantID, dir string) (string, error) {
	accts, err := s.List(ctx, tenantID)
	if err != nil {
		return "", err
	}

	acctDir := filepath.Join(dir, "accounts")
	if err := os.MkdirAll(acctDir, 0o755); err != nil {
		return "", fmt.Errorf("creating accounts dir: %w", err)
	}

	path := filepath.Join(acctDir, "chart-of-accounts.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating chart of accounts file: %w", err)
	}
	defer f.Close()

	if err := WriteAccounts(f, accts); err != nil {
		return "", fmt.Errorf("writing chart of accounts: %w", err)
	}
	return path, nil
}

// Load reads accounts/chart-of-accounts.csv under dir.
func Load(dir string) ([]model.Account, error) {
	path := filepath.Join(dir, "accounts", "chart-of-accounts.csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening chart of accounts: %w", err)
	}
	defer f.Close()

	accts, err := ReadAccounts(f)
	if err != nil {
		return nil, fmt.Errorf("reading chart of accounts: %w", err)
	}
	return accts, nil
}
