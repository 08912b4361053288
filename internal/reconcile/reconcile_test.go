package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/advisor"
	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store/memstore"
	"github.com/cleared-dev/ledger/internal/tenant"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	store  *memstore.Store
	ledger *ledger.Ledger
	svc    *Service
}

func newFixture(t *testing.T, s advisor.Suggester) fixture {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	require.NoError(t, st.PutTenant(ctx, model.Tenant{ID: "acme", Currency: "USD", OperatingAccountID: "cash"}))
	for _, a := range []model.Account{
		{TenantID: "acme", ID: "cash", Code: "1010", Name: "Business Checking", Type: model.AccountTypeAsset},
		{TenantID: "acme", ID: "revenue", Code: "4010", Name: "Service Revenue", Type: model.AccountTypeRevenue},
		{TenantID: "acme", ID: "software", Code: "5020", Name: "Software", Type: model.AccountTypeExpense},
	} {
		require.NoError(t, st.CreateAccount(ctx, a))
	}
	require.NoError(t, st.AddBankLines(ctx, []model.BankStatementLine{
		{TenantID: "acme", ID: "in-1", Date: date(2025, 1, 3), Description: "Client X", AmountCents: 500000, Type: model.LineCredit},
		{TenantID: "acme", ID: "out-1", Date: date(2025, 1, 4), Description: "GITHUB *PRO", AmountCents: 400, Type: model.LineDebit},
	}))
	l := ledger.New(st)
	return fixture{store: st, ledger: l, svc: NewService(st, l, s, nil)}
}

func balance(t *testing.T, f fixture, accountID string) int64 {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), "acme", accountID)
	require.NoError(t, err)
	return b
}

func TestMatch_WorkedExample(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	txn, err := f.svc.Match(ctx, "acme", "in-1", "revenue")
	require.NoError(t, err)
	require.Len(t, txn.Entries, 2)
	assert.Equal(t, model.JournalEntry{ID: txn.ID + "a", AccountID: "cash", DebitCents: 500000, IsReconciled: true}, txn.Entries[0])
	assert.Equal(t, model.JournalEntry{ID: txn.ID + "b", AccountID: "revenue", CreditCents: 500000, IsReconciled: true}, txn.Entries[1])
	assert.Equal(t, model.SourceBankFeed, txn.Source)
	assert.Equal(t, date(2025, 1, 3), txn.Date)

	assert.Equal(t, int64(500000), balance(t, f, "cash"))
	assert.Equal(t, int64(500000), balance(t, f, "revenue"))

	line, err := f.store.GetBankLine(ctx, "acme", "in-1")
	require.NoError(t, err)
	assert.True(t, line.IsMatched)
	assert.Equal(t, txn.ID, line.MatchedTransactionID)

	_, err = f.svc.Match(ctx, "acme", "in-1", "revenue")
	assert.ErrorIs(t, err, ErrLineAlreadyMatched)
	assert.Equal(t, int64(500000), balance(t, f, "cash"))
}

func TestMatch_DebitLineCreditsOperatingAccount(t *testing.T) {
	f := newFixture(t, nil)
	txn, err := f.svc.Match(context.Background(), "acme", "out-1", "software")
	require.NoError(t, err)
	assert.Equal(t, "software", txn.Entries[1].AccountID)
	assert.Equal(t, int64(400), txn.Entries[1].DebitCents)
	assert.Equal(t, int64(400), txn.Entries[0].CreditCents)

	assert.Equal(t, int64(-400), balance(t, f, "cash"))
	assert.Equal(t, int64(400), balance(t, f, "software"))
}

func TestMatch_ExactlyOnceUnderConcurrency(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	var wins, already int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Match(ctx, "acme", "in-1", "revenue")
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, ErrLineAlreadyMatched):
				atomic.AddInt32(&already, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(n-1), already)

	txns, err := f.ledger.Transactions(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, txns, 1)
	assert.Equal(t, int64(500000), balance(t, f, "cash"))
}

func TestMatch_Errors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Match(ctx, "acme", "nope", "revenue")
	assert.ErrorIs(t, err, ErrUnknownLine)

	_, err = f.svc.Match(ctx, "acme", "in-1", "ghost")
	assert.ErrorIs(t, err, ledger.ErrUnknownAccount)
	line, err := f.store.GetBankLine(ctx, "acme", "in-1")
	require.NoError(t, err)
	assert.False(t, line.IsMatched, "failed posting must leave the line unmatched")

	_, err = f.svc.Match(ctx, "acme", "in-1", "cash")
	assert.ErrorIs(t, err, ledger.ErrInvalidEntry)
}

func TestMatch_NoOperatingAccount(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.store.PutTenant(ctx, model.Tenant{ID: "acme"}))

	_, err := f.svc.Match(ctx, "acme", "in-1", "revenue")
	assert.ErrorIs(t, err, ErrNoOperatingAccount)

	require.NoError(t, f.store.AddBankLines(ctx, []model.BankStatementLine{
		{TenantID: "globex", ID: "g-1", Date: date(2025, 1, 3), AmountCents: 1, Type: model.LineCredit},
	}))
	_, err = f.svc.Match(ctx, "globex", "g-1", "revenue")
	assert.ErrorIs(t, err, ErrNoOperatingAccount)
}

func TestListUnmatched(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	lines, err := f.svc.ListUnmatched(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "in-1", lines[0].ID)

	_, err = f.svc.Match(ctx, "acme", "in-1", "revenue")
	require.NoError(t, err)

	lines, err = f.svc.ListUnmatched(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "out-1", lines[0].ID)

	all, err := f.svc.Lines(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSuggest(t *testing.T) {
	var seenTenant string
	s := advisor.Func(func(ctx context.Context, desc string) (string, bool) {
		seenTenant = tenant.IDFrom(ctx)
		switch desc {
		case "GITHUB *PRO":
			return "software", true
		case "Client X":
			return "ghost", true
		}
		return "", false
	})
	f := newFixture(t, s)
	ctx := context.Background()

	line, ok, err := f.svc.Suggest(ctx, "acme", "out-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "software", line.SuggestedAccountID)
	assert.Equal(t, "acme", seenTenant)

	stored, err := f.store.GetBankLine(ctx, "acme", "out-1")
	require.NoError(t, err)
	assert.Equal(t, "software", stored.SuggestedAccountID)
	assert.False(t, stored.IsMatched)

	_, ok, err = f.svc.Suggest(ctx, "acme", "in-1")
	require.NoError(t, err)
	assert.False(t, ok, "suggestion for unknown account is dropped")

	txns, err := f.ledger.Transactions(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, txns, "suggestions never post")

	_, _, err = f.svc.Suggest(ctx, "acme", "nope")
	assert.ErrorIs(t, err, ErrUnknownLine)
}

func TestSuggestAll_NopAdvisor(t *testing.T) {
	f := newFixture(t, nil)
	n, err := f.svc.SuggestAll(context.Background(), "acme")
	require.NoError(t, err)
	assert.Zero(t, n)

	id, ok := f.svc.SuggestAccountForLine(context.Background(), "acme", "anything")
	assert.False(t, ok)
	assert.Empty(t, id)
}
