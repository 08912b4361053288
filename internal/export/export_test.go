package export

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/gitops"
	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store/memstore"
)

func setup(t *testing.T) (*accounts.Service, *ledger.Ledger) {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	acctSvc := accounts.NewService(st, nil)
	_, err := acctSvc.SeedDefaultChart(ctx, "acme", "llc", "USD")
	require.NoError(t, err)

	l := ledger.New(st)
	cash := accounts.SeedID("acme", "1010")
	revenue := accounts.SeedID("acme", "4010")
	for _, d := range []time.Time{
		time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC),
	} {
		_, err := l.PostTransaction(ctx, "acme", model.Transaction{
			Date:        d,
			Description: "Invoice",
			Entries: []model.JournalEntry{
				{AccountID: cash, DebitCents: 10000},
				{AccountID: revenue, CreditCents: 10000},
			},
		})
		require.NoError(t, err)
	}
	return acctSvc, l
}

func TestExport_WritesChartAndMonthlyJournals(t *testing.T) {
	acctSvc, l := setup(t)
	root := t.TempDir()

	res, err := New(acctSvc, l, Options{}, nil).Export(context.Background(), "acme", root)
	require.NoError(t, err)
	assert.Empty(t, res.Commit)
	require.Len(t, res.Files, 3)

	chart, err := accounts.Load(filepath.Join(root, "acme"))
	require.NoError(t, err)
	assert.Len(t, chart, len(accounts.DefaultChart("llc")))

	f, err := os.Open(JournalPath(filepath.Join(root, "acme"), 2025, 1))
	require.NoError(t, err)
	defer f.Close()
	jan, err := ledger.ReadTransactions(f)
	require.NoError(t, err)
	require.Len(t, jan, 2)
	assert.Equal(t, "2025-01-001", jan[0].ID)
	assert.Equal(t, "2025-01-002", jan[1].ID)
	assert.Len(t, jan[0].Entries, 2)

	_, err = os.Stat(JournalPath(filepath.Join(root, "acme"), 2025, 2))
	assert.NoError(t, err)
}

func TestJournalPath(t *testing.T) {
	assert.Equal(t, filepath.Join("books", "2025", "03", "journal.csv"), JournalPath("books", 2025, 3))
}

func TestExport_AutoCommit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	acctSvc, l := setup(t)
	root := t.TempDir()
	ex := New(acctSvc, l, Options{
		AutoCommit: true,
		Author:     gitops.Author{Name: "Books", Email: "books@example.com"},
	}, nil)

	res, err := ex.Export(context.Background(), "acme", root)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Commit)
	assert.True(t, gitops.IsRepo(root))

	// Unchanged books produce no second commit.
	res, err = ex.Export(context.Background(), "acme", root)
	require.NoError(t, err)
	assert.Empty(t, res.Commit)
}
