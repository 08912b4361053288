package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/id"
	"github.com/cleared-dev/ledger/internal/model"
)

// Header is the CSV header for journal.csv.
const Header = "entry_id,date,account_id,description,debit,credit,status,source,reference,reconciled"

const (
	numFields     = 10
	dateFormat    = "2006-01-02"
	colEntryID    = 0
	colDate       = 1
	colAcctID     = 2
	colDesc       = 3
	colDebit      = 4
	colCredit     = 5
	colStatus     = 6
	colSource     = 7
	colRef        = 8
	colReconciled = 9
)

// FormatCents renders integer cents as a fixed two-decimal amount.
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

var maxCents = decimal.NewFromInt(math.MaxInt64)

// ParseCents parses a decimal amount into integer cents. More than two decimal places is an error.
func ParseCents(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("amount %q has more than 2 decimal places", s)
	}
	if cents.Abs().GreaterThan(maxCents) {
		return 0, fmt.Errorf("amount %q is out of range", s)
	}
	return cents.IntPart(), nil
}

// WriteTransactions writes one journal.csv row per entry, including the header.
func WriteTransactions(w io.Writer, txns []model.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := 2
	for _, t := range txns {
		for _, e := range t.Entries {
			if err := cw.Write(MarshalEntry(t, e)); err != nil {
				return fmt.Errorf("writing row %d: %w", row, err)
			}
			row++
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalEntry converts one entry of t to a CSV row.
func MarshalEntry(t model.Transaction, e model.JournalEntry) []string {
	row := make([]string, numFields)
	row[colEntryID] = e.ID
	row[colDate] = t.Date.Format(dateFormat)
	row[colAcctID] = e.AccountID
	row[colDesc] = t.Description
	if e.DebitCents != 0 {
		row[colDebit] = FormatCents(e.DebitCents)
	}
	if e.CreditCents != 0 {
		row[colCredit] = FormatCents(e.CreditCents)
	}
	row[colStatus] = string(t.Status)
	row[colSource] = string(t.Source)
	row[colRef] = t.Reference
	row[colReconciled] = strconv.FormatBool(e.IsReconciled)
	return row
}

// ReadTransactions reads journal.csv and regroups rows into transactions by entry ID prefix.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading journal CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var txns []model.Transaction
	index := make(map[string]int)
	for i, rec := range records[1:] {
		t, e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		pos, ok := index[t.ID]
		if !ok {
			pos = len(txns)
			index[t.ID] = pos
			txns = append(txns, t)
		}
		txns[pos].Entries = append(txns[pos].Entries, e)
	}
	return txns, nil
}

// UnmarshalEntry converts a CSV row to its transaction header and entry.
func UnmarshalEntry(record []string) (model.Transaction, model.JournalEntry, error) {
	if len(record) != numFields {
		return model.Transaction{}, model.JournalEntry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return model.Transaction{}, model.JournalEntry{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	var debit, credit int64
	if record[colDebit] != "" {
		if debit, err = ParseCents(record[colDebit]); err != nil {
			return model.Transaction{}, model.JournalEntry{}, err
		}
	}
	if record[colCredit] != "" {
		if credit, err = ParseCents(record[colCredit]); err != nil {
			return model.Transaction{}, model.JournalEntry{}, err
		}
	}

	reconciled, err := strconv.ParseBool(record[colReconciled])
	if err != nil {
		return model.Transaction{}, model.JournalEntry{}, fmt.Errorf("parsing reconciled %q: %w", record[colReconciled], err)
	}

	t := model.Transaction{
		ID:          id.TransactionOf(record[colEntryID]),
		Date:        date,
		Description: record[colDesc],
		Status:      model.TransactionStatus(record[colStatus]),
		Source:      model.Source(record[colSource]),
		Reference:   record[colRef],
	}
	e := model.JournalEntry{
		ID:           record[colEntryID],
		AccountID:    record[colAcctID],
		DebitCents:   debit,
		CreditCents:  credit,
		IsReconciled: reconciled,
	}
	return t, e, nil
}

// InMonth returns the transactions dated in the given month, in log order.
func InMonth(txns []model.Transaction, year, month int) []model.Transaction {
	var out []model.Transaction
	for _, t := range txns {
		if t.Date.Year() == year && int(t.Date.Month()) == month {
			out = append(out, t)
		}
	}
	return out
}
