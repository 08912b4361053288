// Package export writes a tenant's books as plain files: the chart of accounts
// and one journal CSV per month, optionally committed to git.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/cleared-dev/ledger/internal/accounts"
	"github.com/cleared-dev/ledger/internal/gitops"
	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
)

// Transactions lists a tenant's transaction log. *ledger.Ledger satisfies it.
type Transactions interface {
	Transactions(ctx context.Context, tenantID string) ([]model.Transaction, error)
}

// Options control git versioning of the export root.
type Options struct {
	AutoCommit bool
	Author     gitops.Author
}

// Result lists the written files and the commit, if one was made.
type Result struct {
	Files  []string `json:"files"`
	Commit string   `json:"commit,omitempty"`
}

// Exporter writes books under a root directory, one subdirectory per tenant.
type Exporter struct {
	accounts *accounts.Service
	txns     Transactions
	opts     Options
	log      *slog.Logger
}

// New creates an Exporter. A nil logger discards output.
func New(acctSvc *accounts.Service, txns Transactions, opts Options, log *slog.Logger) *Exporter {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Exporter{accounts: acctSvc, txns: txns, opts: opts, log: log}
}

// JournalPath is <dir>/<yyyy>/<mm>/journal.csv.
func JournalPath(dir string, year, month int) string {
	return filepath.Join(dir, fmt.Sprintf("%04d", year), fmt.Sprintf("%02d", month), "journal.csv")
}

type month struct{ year, month int }

// Export writes <root>/<tenant>/accounts/chart-of-accounts.csv and
// <root>/<tenant>/<yyyy>/<mm>/journal.csv for every month with transactions.
// With AutoCommit the root is initialized as a git repository if needed and
// the export is committed; an unchanged export makes no commit.
func (e *Exporter) Export(ctx context.Context, tenantID, root string) (Result, error) {
	dir := filepath.Join(root, tenantID)
	var res Result

	chart, err := e.accounts.Save(ctx, tenantID, dir)
	if err != nil {
		return Result{}, err
	}
	res.Files = append(res.Files, chart)

	txns, err := e.txns.Transactions(ctx, tenantID)
	if err != nil {
		return Result{}, err
	}
	for _, m := range months(txns) {
		path := JournalPath(dir, m.year, m.month)
		if err := writeJournal(path, ledger.InMonth(txns, m.year, m.month)); err != nil {
			return Result{}, err
		}
		res.Files = append(res.Files, path)
	}

	if e.opts.AutoCommit {
		hash, err := e.commit(ctx, tenantID, root)
		if err != nil {
			return res, err
		}
		res.Commit = hash
	}
	e.log.Info("books exported", "tenant", tenantID, "files", len(res.Files), "commit", res.Commit)
	return res, nil
}

func (e *Exporter) commit(ctx context.Context, tenantID, root string) (string, error) {
	if !gitops.IsRepo(root) {
		if err := gitops.Init(ctx, root); err != nil {
			return "", err
		}
	}
	hash, err := gitops.CommitAll(ctx, root, "export: "+tenantID, e.opts.Author)
	if errors.Is(err, gitops.ErrNothingToCommit) {
		return "", nil
	}
	return hash, err
}

func months(txns []model.Transaction) []month {
	seen := make(map[month]bool)
	var out []month
	for _, t := range txns {
		m := month{t.Date.Year(), int(t.Date.Month())}
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].year != out[j].year {
			return out[i].year < out[j].year
		}
		return out[i].month < out[j].month
	})
	return out
}

func writeJournal(path string, txns []model.Transaction) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating journal dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating journal: %w", err)
	}
	if err := ledger.WriteTransactions(f, txns); err != nil {
		f.Close()
		return fmt.Errorf("writing journal %s: %w", path, err)
	}
	return f.Close()
}
