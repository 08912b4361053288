package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/auditlog"
	"github.com/cleared-dev/ledger/internal/config"
	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/reserve"
)

const chaseCSV = `Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #
CREDIT,01/13/2025,ACME CONSULTING INVOICE 1042,1000.00,ACH_CREDIT,1000.00,
DEBIT,01/15/2025,GITHUB *PRO SUBSCRIPTION,-4.00,ACH_DEBIT,996.00,
DEBIT,01/16/2025,GITHUB *PRO SUBSCRIPTION,-4.00,ACH_DEBIT,992.00,
`

func testConfig() *config.Config {
	cfg := config.Default("Acme", "llc")
	cfg.Database.Driver = "memory"
	cfg.Git.AutoCommit = false
	cfg.Tenants[0].ID = "acme"
	cfg.Tenants[0].SuggestRules = []config.SuggestRuleConfig{{Keyword: "GITHUB", AccountCode: "5020"}}
	cfg.Tenants[0].ReserveRules = []config.ReserveRuleConfig{
		{Name: "Tax", Percentage: "25", SourceCode: "1010", ReserveCode: "1030", Automated: true},
	}
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	require.NoError(t, a.Bootstrap(context.Background()))
	return a
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	a := newApp(t, testConfig())

	accts, err := a.Accounts.List(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, accts, len(accounts.DefaultChart("llc")))

	tenant, err := a.Store.GetTenant(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, accounts.SeedID("acme", "1010"), tenant.OperatingAccountID)

	rules, err := a.Reserve.Rules(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, ReserveRuleID("acme", "Tax"), rules[0].ID)

	// Bootstrapping again changes nothing.
	require.NoError(t, a.Bootstrap(ctx))
	rules, err = a.Reserve.Rules(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestBootstrap_UnknownBankFeedAccount(t *testing.T) {
	cfg := testConfig()
	cfg.Tenants[0].BankFeed.AccountCode = "9999"
	a, err := New(context.Background(), cfg, t.TempDir(), nil)
	require.NoError(t, err)
	defer a.Close()

	err = a.Bootstrap(context.Background())
	assert.ErrorIs(t, err, accounts.ErrNotFound)
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	a := newApp(t, testConfig())

	res, err := a.Importer.Import(ctx, "acme", "chase", strings.NewReader(chaseCSV))
	require.NoError(t, err)
	require.Equal(t, 3, res.Imported)

	var income, github model.BankStatementLine
	for _, l := range res.Lines {
		if l.Type == model.LineCredit {
			income = l
		} else if github.ID == "" {
			github = l
		}
	}

	// The keyword rule from config points GITHUB at 5020.
	line, ok, err := a.Reconcile.Suggest(ctx, "acme", github.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, accounts.SeedID("acme", "5020"), line.SuggestedAccountID)

	_, err = a.Reconcile.Match(ctx, "acme", income.ID, accounts.SeedID("acme", "4010"))
	require.NoError(t, err)

	// 25% of the 1000.00 deposit moved from checking into the tax reserve.
	cash, err := a.Ledger.Balance(ctx, "acme", accounts.SeedID("acme", "1010"))
	require.NoError(t, err)
	assert.Equal(t, int64(75000), cash)
	reserveBal, err := a.Ledger.Balance(ctx, "acme", accounts.SeedID("acme", "1030"))
	require.NoError(t, err)
	assert.Equal(t, int64(25000), reserveBal)

	entries, err := auditlog.Read(a.Dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, auditlog.ActionMatch, entries[0].Action)
	assert.Equal(t, auditlog.ActionReserve, entries[1].Action)

	findings, err := a.Watchdog.Run(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, model.FindingDuplicate, findings[0].Kind)

	drift, err := a.Ledger.Verify(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, drift)

	out, err := a.Exporter.Export(ctx, "acme", filepath.Join(a.Dir, "books"))
	require.NoError(t, err)
	assert.Len(t, out.Files, 2)
	for _, f := range out.Files {
		_, err := os.Stat(f)
		assert.NoError(t, err)
	}
}

func TestNew_SQLite(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Driver = "sqlite3"
	cfg.Database.DSN = "books.db"
	cfg.Audit.Enabled = false

	a := newApp(t, cfg)
	assert.Nil(t, a.Audit)
	_, err := os.Stat(filepath.Join(a.Dir, "books.db"))
	assert.NoError(t, err)
}

func TestReserveAllocatedAfterCallerCancels(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Driver = "sqlite3"
	cfg.Database.DSN = "books.db"
	cfg.Audit.Enabled = false
	a := newApp(t, cfg)

	// A ledger over the same store whose first hook cancels the caller's
	// context, like a client hanging up right after the commit.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := ledger.New(a.Store)
	l.Subscribe(func(context.Context, model.Transaction) { cancel() })
	l.Subscribe(reserve.NewEngine(a.Store, l, nil).Hook())

	_, err := l.PostTransaction(ctx, "acme", model.Transaction{
		Date:        time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
		Description: "Client X",
		Entries: []model.JournalEntry{
			{AccountID: accounts.SeedID("acme", "1010"), DebitCents: 100000},
			{AccountID: accounts.SeedID("acme", "4010"), CreditCents: 100000},
		},
	})
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	bg := context.Background()
	txns, err := l.Transactions(bg, "acme")
	require.NoError(t, err)
	assert.Len(t, txns, 2)
	held, err := l.Balance(bg, "acme", accounts.SeedID("acme", "1030"))
	require.NoError(t, err)
	assert.Equal(t, int64(25000), held)
}

func TestNew_RedisUnavailableFallsBack(t *testing.T) {
	cfg := testConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = "127.0.0.1:1"

	a := newApp(t, cfg)
	assert.Nil(t, a.redis)
	_, ok := a.Reconcile.SuggestAccountForLine(context.Background(), "acme", "GITHUB *PRO")
	assert.True(t, ok)
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := testConfig()
	cfg.Database.Driver = "mysql"
	_, err := New(context.Background(), cfg, t.TempDir(), nil)
	assert.Error(t, err)
}
