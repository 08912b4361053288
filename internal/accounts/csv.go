package accounts

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/cleared-dev/ledger/internal/model"
)

const (
	numFields   = 6
	colCode     = 0
	colName     = 1
	colType     = 2
	colSubtype  = 3
	colCurrency = 4
	colID       = 5
)

// ReadAccounts reads chart-of-accounts.csv.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.Account
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes chart-of-accounts.csv.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"account_code", "account_name", "account_type", "subtype", "currency", "account_id"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row. Balances are not exported;
// they are derived from the journal.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, numFields)
	row[colCode] = acct.Code
	row[colName] = acct.Name
	row[colType] = string(acct.Type)
	row[colSubtype] = acct.Subtype
	row[colCurrency] = acct.Currency
	row[colID] = acct.ID
	return row
}

// UnmarshalAccount converts a CSV row to an Account.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}
	if record[colCode] == "" {
		return model.Account{}, fmt.Errorf("missing account_code")
	}

	typ := model.AccountType(record[colType])
	if !typ.Valid() {
		return model.Account{}, fmt.Errorf("account %s: %w %q", record[colCode], ErrInvalidType, record[colType])
	}

	return model.Account{
		ID:       record[colID],
		Code:     record[colCode],
		Name:     record[colName],
		Type:     typ,
		Subtype:  record[colSubtype],
		Currency: record[colCurrency],
	}, nil
}
