// Package auditlog appends one CSV row per committed ledger transaction to
// <dir>/logs/audit-log.csv.
package auditlog

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cleared-dev/ledger/internal/ledger"
	"github.com/cleared-dev/ledger/internal/model"
)

// Actions recorded in the log.
const (
	ActionPost    = "post"
	ActionMatch   = "match"
	ActionReserve = "reserve"
	ActionReverse = "reverse"
)

// Entry is one row in the audit log.
type Entry struct {
	Timestamp     time.Time
	TenantID      string
	Action        string
	TransactionID string
	Source        model.Source
	Reference     string
	AmountCents   int64
	Details       string
}

// Header is the CSV header for audit-log.csv.
const Header = "timestamp,tenant_id,action,transaction_id,source,reference,amount_cents,details"

const (
	numFields        = 8
	logDir           = "logs"
	logFile          = "logs/audit-log.csv"
	colTimestamp     = 0
	colTenant        = 1
	colAction        = 2
	colTransactionID = 3
	colSource        = 4
	colReference     = 5
	colAmount        = 6
	colDetails       = 7
)

// ActionFor classifies a committed transaction.
func ActionFor(txn model.Transaction) string {
	switch {
	case txn.Source == model.SourceBankFeed:
		return ActionMatch
	case txn.Source == model.SourceSystem && strings.HasPrefix(txn.Reference, "reserve:"):
		return ActionReserve
	case txn.Source == model.SourceSystem:
		return ActionReverse
	default:
		return ActionPost
	}
}

// EntryFor builds the log row for txn.
func EntryFor(txn model.Transaction, at time.Time) Entry {
	debits, _ := txn.Totals()
	return Entry{
		Timestamp:     at.UTC(),
		TenantID:      txn.TenantID,
		Action:        ActionFor(txn),
		TransactionID: txn.ID,
		Source:        txn.Source,
		Reference:     txn.Reference,
		AmountCents:   debits,
		Details:       txn.Description,
	}
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colTenant] = e.TenantID
	row[colAction] = e.Action
	row[colTransactionID] = e.TransactionID
	row[colSource] = string(e.Source)
	row[colReference] = e.Reference
	row[colAmount] = strconv.FormatInt(e.AmountCents, 10)
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	amount, err := strconv.ParseInt(record[colAmount], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	return Entry{
		Timestamp:     ts,
		TenantID:      record[colTenant],
		Action:        record[colAction],
		TransactionID: record[colTransactionID],
		Source:        model.Source(record[colSource]),
		Reference:     record[colReference],
		AmountCents:   amount,
		Details:       record[colDetails],
	}, nil
}

// Append writes entries to <dir>/logs/audit-log.csv, creating the file and header if needed.
func Append(dir string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Join(dir, logDir), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := filepath.Join(dir, logFile)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <dir>/logs/audit-log.csv.
// Returns an empty slice if the file does not exist.
func Read(dir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(dir, logFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Recorder writes audit rows from a ledger hook. Writes are serialized.
type Recorder struct {
	dir string
	now func() time.Time
	log *slog.Logger

	mu sync.Mutex
}

// NewRecorder creates a Recorder writing under dir. A nil logger discards output.
func NewRecorder(dir string, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Recorder{dir: dir, now: time.Now, log: log}
}

// Record appends the row for txn.
func (r *Recorder) Record(txn model.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Append(r.dir, []Entry{EntryFor(txn, r.now())})
}

// Hook returns a post-commit hook. Write failures are logged, never returned to the poster.
func (r *Recorder) Hook() ledger.Hook {
	return func(_ context.Context, txn model.Transaction) {
		if err := r.Record(txn); err != nil {
			r.log.Error("audit log write failed", "tenant", txn.TenantID, "transaction", txn.ID, "error", err)
		}
	}
}
