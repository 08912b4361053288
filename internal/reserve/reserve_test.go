package reserve

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store/memstore"
)

func pct(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	store  *memstore.Store
	ledger *ledger.Ledger
	engine *Engine
}

func newFixture(t *testing.T, hooked bool) fixture {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	for _, a := range []model.Account{
		{TenantID: "acme", ID: "cash", Code: "1010", Type: model.AccountTypeAsset},
		{TenantID: "acme", ID: "tax", Code: "1030", Type: model.AccountTypeAsset},
		{TenantID: "acme", ID: "savings", Code: "1040", Type: model.AccountTypeAsset},
		{TenantID: "acme", ID: "revenue", Code: "4010", Type: model.AccountTypeRevenue},
		{TenantID: "acme", ID: "software", Code: "5020", Type: model.AccountTypeExpense},
	} {
		require.NoError(t, st.CreateAccount(ctx, a))
	}
	l := ledger.New(st, ledger.WithClock(func() time.Time { return time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC) }))
	e := NewEngine(st, l, nil)
	if hooked {
		l.Subscribe(e.Hook())
	}
	return fixture{store: st, ledger: l, engine: e}
}

func (f fixture) register(t *testing.T, id string, p string, automated bool) {
	t.Helper()
	_, err := f.engine.Register(context.Background(), model.ReserveRule{
		TenantID: "acme", ID: id, Name: id,
		TargetPercentage: pct(p),
		SourceAccountID:  "cash",
		ReserveAccountID: map[string]string{"tax-rule": "tax", "save-rule": "savings", "preview-rule": "savings"}[id],
		IsAutomated:      automated,
	})
	require.NoError(t, err)
}

func (f fixture) sale(t *testing.T, cents int64) model.Transaction {
	t.Helper()
	txn, err := f.ledger.PostTransaction(context.Background(), "acme", model.Transaction{
		Description: "sale",
		Entries: []model.JournalEntry{
			{AccountID: "cash", DebitCents: cents},
			{AccountID: "revenue", CreditCents: cents},
		},
	})
	require.NoError(t, err)
	return txn
}

func (f fixture) balance(t *testing.T, accountID string) int64 {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), "acme", accountID)
	require.NoError(t, err)
	return b
}

func TestAmount(t *testing.T) {
	txn := model.Transaction{Entries: []model.JournalEntry{
		{AccountID: "cash", DebitCents: 100},
		{AccountID: "revenue", CreditCents: 60},
		{AccountID: "cash", CreditCents: 0},
		{AccountID: "revenue", CreditCents: 40},
	}}
	tests := []struct {
		source string
		pct    string
		want   int64
	}{
		{"cash", "25", 25},
		{"cash", "33.333", 33},
		{"cash", "0.5", 1},
		{"revenue", "10", 10},
		{"software", "50", 0},
	}
	for _, tt := range tests {
		got := Amount(model.ReserveRule{SourceAccountID: tt.source, TargetPercentage: pct(tt.pct)}, txn)
		assert.Equal(t, tt.want, got, "%s at %s%%", tt.source, tt.pct)
	}
}

func TestHook_RulesAreAdditive(t *testing.T) {
	f := newFixture(t, true)
	f.register(t, "tax-rule", "25", true)
	f.register(t, "save-rule", "10", true)

	sale := f.sale(t, 100000)

	txns, err := f.ledger.Transactions(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, txns, 3)

	for _, alloc := range txns[1:] {
		assert.Equal(t, model.SourceSystem, alloc.Source)
		d, c := alloc.Totals()
		assert.Equal(t, d, c)
	}
	assert.Equal(t, Reference("tax-rule", sale.ID), txns[1].Reference)
	assert.Equal(t, Reference("save-rule", sale.ID), txns[2].Reference)

	assert.Equal(t, int64(25000), f.balance(t, "tax"))
	assert.Equal(t, int64(10000), f.balance(t, "savings"))
	assert.Equal(t, int64(100000-25000-10000), f.balance(t, "cash"))
	assert.Equal(t, int64(100000), f.balance(t, "revenue"))
}

func TestHook_SkipsUntouchedAndManualRules(t *testing.T) {
	f := newFixture(t, true)
	f.register(t, "preview-rule", "5", false)

	_, err := f.ledger.PostTransaction(context.Background(), "acme", model.Transaction{
		Entries: []model.JournalEntry{
			{AccountID: "software", DebitCents: 500},
			{AccountID: "revenue", CreditCents: 500},
		},
	})
	require.NoError(t, err)
	f.sale(t, 1000)

	txns, err := f.ledger.Transactions(context.Background(), "acme")
	require.NoError(t, err)
	assert.Len(t, txns, 2)
	assert.Zero(t, f.balance(t, "savings"))
}

func TestPreview_IncludesManualRulesAndNeverPosts(t *testing.T) {
	f := newFixture(t, false)
	f.register(t, "tax-rule", "25", true)
	f.register(t, "preview-rule", "5", false)
	sale := f.sale(t, 2000)

	allocs, err := f.engine.Preview(context.Background(), "acme", sale)
	require.NoError(t, err)
	assert.Equal(t, []Allocation{
		{RuleID: "tax-rule", RuleName: "tax-rule", TransactionID: sale.ID, SourceAccountID: "cash", ReserveAccountID: "tax", AmountCents: 500, Automated: true, Reference: Reference("tax-rule", sale.ID)},
		{RuleID: "preview-rule", RuleName: "preview-rule", TransactionID: sale.ID, SourceAccountID: "cash", ReserveAccountID: "savings", AmountCents: 100, Automated: false, Reference: Reference("preview-rule", sale.ID)},
	}, allocs)

	txns, err := f.ledger.Transactions(context.Background(), "acme")
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestEvaluateReserveRules_Idempotent(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.sale(t, 1000)
	f.sale(t, 3000)
	f.register(t, "tax-rule", "25", true)

	posted, err := f.engine.EvaluateReserveRules(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, posted, 2)
	assert.Equal(t, int64(1000), f.balance(t, "tax"))

	again, err := f.engine.EvaluateReserveRules(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, again)
	assert.Equal(t, int64(1000), f.balance(t, "tax"))
}

func TestApplyReserveRules_SystemAndVoidIgnored(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.register(t, "tax-rule", "25", true)
	sale := f.sale(t, 1000)

	sys := sale
	sys.Source = model.SourceSystem
	got, err := f.engine.ApplyReserveRules(ctx, sys)
	require.NoError(t, err)
	assert.Empty(t, got)

	void := sale
	void.Status = model.StatusVoid
	got, err = f.engine.ApplyReserveRules(ctx, void)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = f.engine.ApplyReserveRules(ctx, sale)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = f.engine.ApplyReserveRules(ctx, sale)
	require.NoError(t, err)
	assert.Empty(t, got, "second application of the same rule is a no-op")
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	base := model.ReserveRule{TenantID: "acme", Name: "tax", TargetPercentage: pct("25"), SourceAccountID: "cash", ReserveAccountID: "tax"}

	r, err := f.engine.Register(ctx, base)
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)

	bad := base
	bad.TargetPercentage = pct("0")
	_, err = f.engine.Register(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidRule)

	bad.TargetPercentage = pct("100.01")
	_, err = f.engine.Register(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidRule)

	bad = base
	bad.ReserveAccountID = "cash"
	_, err = f.engine.Register(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidRule)

	bad = base
	bad.ReserveAccountID = "ghost"
	_, err = f.engine.Register(ctx, bad)
	assert.ErrorIs(t, err, ledger.ErrUnknownAccount)

	rules, err := f.engine.Rules(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}
