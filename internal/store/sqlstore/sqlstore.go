// Package sqlstore implements store.Store on database/sql for SQLite and PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store"
)

// Dialect selects placeholder style and migrations. Values double as database/sql driver names.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

const dateFormat = "2006-01-02"

// Store is a SQL-backed store.Store. Each Commit runs in one database transaction.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ store.Store = (*Store)(nil)

// New wraps an open database handle.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Options configures Open.
type Options struct {
	Driver  Dialect
	DSN     string // sqlite3: a file path or "file:" URI; postgres: a lib/pq connection string
	Migrate bool
}

// Open connects, optionally migrates the schema, and returns a Store.
func Open(ctx context.Context, opts Options) (*Store, error) {
	dsn := opts.DSN
	switch opts.Driver {
	case DialectSQLite:
		dsn = sqliteDSN(dsn)
	case DialectPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	if opts.Migrate {
		if err := Migrate(opts.Driver, dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(string(opts.Driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if opts.Driver == DialectSQLite {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return New(db, opts.Driver), nil
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// rebind rewrites "?" placeholders as "$1, $2, ..." for postgres.
func (s *Store) rebind(q string) string {
	if s.dialect != DialectPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) exec(ctx context.Context, q execer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

func (s *Store) PutTenant(ctx context.Context, t model.Tenant) error {
	_, err := s.exec(ctx, s.db, `
		INSERT INTO tenants (id, name, currency, operating_account_id, large_outflow_threshold_cents)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
		 name = excluded.name,
		 currency = excluded.currency,
		 operating_account_id = excluded.operating_account_id,
		 large_outflow_threshold_cents = excluded.large_outflow_threshold_cents`,
		t.ID, t.Name, t.Currency, t.OperatingAccountID, t.LargeOutflowThresholdCents)
	if err != nil {
		return fmt.Errorf("saving tenant %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) GetTenant(ctx context.Context, tenantID string) (model.Tenant, error) {
	var t model.Tenant
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, name, currency, operating_account_id, large_outflow_threshold_cents
		FROM tenants WHERE id = ?`), tenantID).
		Scan(&t.ID, &t.Name, &t.Currency, &t.OperatingAccountID, &t.LargeOutflowThresholdCents)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Tenant{}, fmt.Errorf("tenant %s: %w", tenantID, store.ErrNotFound)
	}
	if err != nil {
		return model.Tenant{}, fmt.Errorf("loading tenant %s: %w", tenantID, err)
	}
	return t, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, currency, operating_account_id, large_outflow_threshold_cents
		FROM tenants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()
	var out []model.Tenant
	for rows.Next() {
		var t model.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Currency, &t.OperatingAccountID, &t.LargeOutflowThresholdCents); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) CreateAccount(ctx context.Context, a model.Account) error {
	_, err := s.exec(ctx, s.db, `
		INSERT INTO accounts (tenant_id, id, code, name, type, subtype, currency, balance_cents)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.TenantID, a.ID, a.Code, a.Name, string(a.Type), a.Subtype, a.Currency, a.BalanceCents)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account code %s: %w", a.Code, store.ErrDuplicateCode)
		}
		return fmt.Errorf("creating account %s: %w", a.Code, err)
	}
	return nil
}

func (s *Store) UpdateAccount(ctx context.Context, a model.Account) error {
	res, err := s.exec(ctx, s.db, `
		UPDATE accounts SET name = ?, subtype = ?, currency = ?
		WHERE tenant_id = ? AND id = ?`,
		a.Name, a.Subtype, a.Currency, a.TenantID, a.ID)
	if err != nil {
		return fmt.Errorf("updating account %s: %w", a.ID, err)
	}
	return requireRow(res, fmt.Errorf("account %s: %w", a.ID, store.ErrNotFound))
}

const accountColumns = `tenant_id, id, code, name, type, subtype, currency, balance_cents`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (model.Account, error) {
	var a model.Account
	var typ string
	if err := row.Scan(&a.TenantID, &a.ID, &a.Code, &a.Name, &typ, &a.Subtype, &a.Currency, &a.BalanceCents); err != nil {
		return model.Account{}, err
	}
	a.Type = model.AccountType(typ)
	return a, nil
}

func (s *Store) GetAccount(ctx context.Context, tenantID, accountID string) (model.Account, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+accountColumns+` FROM accounts WHERE tenant_id = ? AND id = ?`), tenantID, accountID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fmt.Errorf("account %s: %w", accountID, store.ErrNotFound)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("loading account %s: %w", accountID, err)
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, tenantID string) ([]model.Account, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+accountColumns+` FROM accounts WHERE tenant_id = ? ORDER BY code`), tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()
	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ReplaceBalances(ctx context.Context, tenantID string, balances map[string]int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, `UPDATE accounts SET balance_cents = 0 WHERE tenant_id = ?`, tenantID); err != nil {
			return fmt.Errorf("resetting balances: %w", err)
		}
		for _, accountID := range sortedKeys(balances) {
			if _, err := s.exec(ctx, tx, `UPDATE accounts SET balance_cents = ? WHERE tenant_id = ? AND id = ?`,
				balances[accountID], tenantID, accountID); err != nil {
				return fmt.Errorf("setting balance of %s: %w", accountID, err)
			}
		}
		return nil
	})
}

// Commit writes the transaction, its entries, the balance deltas, the line match and the
// void marker in one database transaction. Conditional updates guard against races.
func (s *Store) Commit(ctx context.Context, c store.Commit) error {
	txn := c.Transaction
	year, month, seq, err := id.ParseTransactionID(txn.ID)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := s.exec(ctx, tx, `
			INSERT INTO transactions (tenant_id, id, date, description, status, source, reference, year, month, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			txn.TenantID, txn.ID, txn.Date.Format(dateFormat), txn.Description, string(txn.Status),
			string(txn.Source), txn.Reference, year, month, seq); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("transaction %s: %w", txn.ID, store.ErrConflict)
			}
			return fmt.Errorf("inserting transaction %s: %w", txn.ID, err)
		}

		for i, e := range txn.Entries {
			if _, err := s.exec(ctx, tx, `
				INSERT INTO journal_entries (tenant_id, id, transaction_id, position, account_id, debit_cents, credit_cents, is_reconciled)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				txn.TenantID, e.ID, txn.ID, i, e.AccountID, e.DebitCents, e.CreditCents, e.IsReconciled); err != nil {
				return fmt.Errorf("inserting entry %s: %w", e.ID, err)
			}
		}

		for _, accountID := range sortedKeys(c.Deltas) {
			res, err := s.exec(ctx, tx, `UPDATE accounts SET balance_cents = balance_cents + ? WHERE tenant_id = ? AND id = ?`,
				c.Deltas[accountID], txn.TenantID, accountID)
			if err != nil {
				return fmt.Errorf("updating balance of %s: %w", accountID, err)
			}
			if err := requireRow(res, fmt.Errorf("account %s: %w", accountID, store.ErrNotFound)); err != nil {
				return err
			}
		}

		if c.MatchLineID != "" {
			if err := s.matchLine(ctx, tx, txn.TenantID, c.MatchLineID, txn.ID); err != nil {
				return err
			}
		}

		if c.VoidTransactionID != "" {
			res, err := s.exec(ctx, tx, `UPDATE transactions SET status = ? WHERE tenant_id = ? AND id = ? AND status = ?`,
				string(model.StatusVoid), txn.TenantID, c.VoidTransactionID, string(model.StatusPosted))
			if err != nil {
				return fmt.Errorf("voiding %s: %w", c.VoidTransactionID, err)
			}
			if err := requireRow(res, fmt.Errorf("transaction %s not voidable: %w", c.VoidTransactionID, store.ErrConflict)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) matchLine(ctx context.Context, tx *sql.Tx, tenantID, lineID, txnID string) error {
	res, err := s.exec(ctx, tx, `
		UPDATE bank_lines SET matched_transaction_id = ?
		WHERE tenant_id = ? AND id = ? AND matched_transaction_id IS NULL`,
		txnID, tenantID, lineID)
	if err != nil {
		return fmt.Errorf("matching bank line %s: %w", lineID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var matched sql.NullString
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT matched_transaction_id FROM bank_lines WHERE tenant_id = ? AND id = ?`),
		tenantID, lineID).Scan(&matched)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("bank line %s: %w", lineID, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("loading bank line %s: %w", lineID, err)
	}
	return fmt.Errorf("bank line %s: %w", lineID, store.ErrLineMatched)
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

const transactionColumns = `id, tenant_id, date, description, status, source, reference`

func scanTransaction(row scanner) (model.Transaction, error) {
	var t model.Transaction
	var date, status, source string
	if err := row.Scan(&t.ID, &t.TenantID, &date, &t.Description, &status, &source, &t.Reference); err != nil {
		return model.Transaction{}, err
	}
	d, err := time.Parse(dateFormat, date)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q of %s: %w", date, t.ID, err)
	}
	t.Date = d
	t.Status = model.TransactionStatus(status)
	t.Source = model.Source(source)
	return t, nil
}

func (s *Store) entries(ctx context.Context, tenantID, txnID string) (map[string][]model.JournalEntry, error) {
	query := `SELECT transaction_id, id, account_id, debit_cents, credit_cents, is_reconciled
		FROM journal_entries WHERE tenant_id = ?`
	args := []any{tenantID}
	if txnID != "" {
		query += ` AND transaction_id = ?`
		args = append(args, txnID)
	}
	query += ` ORDER BY transaction_id, position`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]model.JournalEntry)
	for rows.Next() {
		var owner string
		var e model.JournalEntry
		if err := rows.Scan(&owner, &e.ID, &e.AccountID, &e.DebitCents, &e.CreditCents, &e.IsReconciled); err != nil {
			return nil, err
		}
		out[owner] = append(out[owner], e)
	}
	return out, rows.Err()
}

func (s *Store) GetTransaction(ctx context.Context, tenantID, txnID string) (model.Transaction, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+transactionColumns+` FROM transactions WHERE tenant_id = ? AND id = ?`), tenantID, txnID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", txnID, store.ErrNotFound)
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("loading transaction %s: %w", txnID, err)
	}
	entries, err := s.entries(ctx, tenantID, txnID)
	if err != nil {
		return model.Transaction{}, err
	}
	t.Entries = entries[txnID]
	return t, nil
}

// ListTransactions returns the log in commit order.
func (s *Store) ListTransactions(ctx context.Context, tenantID string) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+transactionColumns+` FROM transactions WHERE tenant_id = ? ORDER BY row_id`), tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	entries, err := s.entries(ctx, tenantID, "")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Entries = entries[out[i].ID]
	}
	return out, nil
}

func (s *Store) NextSequence(ctx context.Context, tenantID string, year, month int) (int, error) {
	var maxSeq int
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COALESCE(MAX(seq), 0) FROM transactions WHERE tenant_id = ? AND year = ? AND month = ?`),
		tenantID, year, month).Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("reading sequence: %w", err)
	}
	return maxSeq + 1, nil
}

func (s *Store) AddBankLines(ctx context.Context, lines []model.BankStatementLine) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, l := range lines {
			if _, err := s.exec(ctx, tx, `
				INSERT INTO bank_lines (tenant_id, id, date, description, amount_cents, type)
				VALUES (?, ?, ?, ?, ?, ?)`,
				l.TenantID, l.ID, l.Date.Format(dateFormat), l.Description, l.AmountCents, string(l.Type)); err != nil {
				if isUniqueViolation(err) {
					return fmt.Errorf("bank line %s: %w", l.ID, store.ErrConflict)
				}
				return fmt.Errorf("inserting bank line %s: %w", l.ID, err)
			}
		}
		return nil
	})
}

const lineColumns = `tenant_id, id, date, description, amount_cents, type, matched_transaction_id, suggested_account_id`

func scanLine(row scanner) (model.BankStatementLine, error) {
	var l model.BankStatementLine
	var date, typ string
	var matched, suggested sql.NullString
	if err := row.Scan(&l.TenantID, &l.ID, &date, &l.Description, &l.AmountCents, &typ, &matched, &suggested); err != nil {
		return model.BankStatementLine{}, err
	}
	d, err := time.Parse(dateFormat, date)
	if err != nil {
		return model.BankStatementLine{}, fmt.Errorf("parsing date %q of line %s: %w", date, l.ID, err)
	}
	l.Date = d
	l.Type = model.LineType(typ)
	l.IsMatched = matched.Valid
	l.MatchedTransactionID = matched.String
	l.SuggestedAccountID = suggested.String
	return l, nil
}

func (s *Store) GetBankLine(ctx context.Context, tenantID, lineID string) (model.BankStatementLine, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+lineColumns+` FROM bank_lines WHERE tenant_id = ? AND id = ?`), tenantID, lineID)
	l, err := scanLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BankStatementLine{}, fmt.Errorf("bank line %s: %w", lineID, store.ErrNotFound)
	}
	if err != nil {
		return model.BankStatementLine{}, fmt.Errorf("loading bank line %s: %w", lineID, err)
	}
	return l, nil
}

func (s *Store) ListBankLines(ctx context.Context, tenantID string, f store.LineFilter) ([]model.BankStatementLine, error) {
	query := `SELECT ` + lineColumns + ` FROM bank_lines WHERE tenant_id = ?`
	if f.UnmatchedOnly {
		query += ` AND matched_transaction_id IS NULL`
	}
	query += ` ORDER BY date, id`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing bank lines: %w", err)
	}
	defer rows.Close()
	var out []model.BankStatementLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) SetSuggestion(ctx context.Context, tenantID, lineID, accountID string) error {
	res, err := s.exec(ctx, s.db, `
		UPDATE bank_lines SET suggested_account_id = ?
		WHERE tenant_id = ? AND id = ? AND matched_transaction_id IS NULL`,
		accountID, tenantID, lineID)
	if err != nil {
		return fmt.Errorf("saving suggestion for %s: %w", lineID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if _, err := s.GetBankLine(ctx, tenantID, lineID); err != nil {
		return err
	}
	return fmt.Errorf("bank line %s: %w", lineID, store.ErrLineMatched)
}

func (s *Store) PutReserveRule(ctx context.Context, r model.ReserveRule) error {
	_, err := s.exec(ctx, s.db, `
		INSERT INTO reserve_rules (tenant_id, id, name, target_percentage, source_account_id, reserve_account_id, is_automated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
		 name = excluded.name,
		 target_percentage = excluded.target_percentage,
		 source_account_id = excluded.source_account_id,
		 reserve_account_id = excluded.reserve_account_id,
		 is_automated = excluded.is_automated`,
		r.TenantID, r.ID, r.Name, r.TargetPercentage.String(), r.SourceAccountID, r.ReserveAccountID, r.IsAutomated)
	if err != nil {
		return fmt.Errorf("saving reserve rule %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) ListReserveRules(ctx context.Context, tenantID string) ([]model.ReserveRule, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT tenant_id, id, name, target_percentage, source_account_id, reserve_account_id, is_automated
		FROM reserve_rules WHERE tenant_id = ? ORDER BY row_id`), tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing reserve rules: %w", err)
	}
	defer rows.Close()
	var out []model.ReserveRule
	for rows.Next() {
		var r model.ReserveRule
		if err := rows.Scan(&r.TenantID, &r.ID, &r.Name, &r.TargetPercentage, &r.SourceAccountID, &r.ReserveAccountID, &r.IsAutomated); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
