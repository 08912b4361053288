package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

// GenericParser reads a headed CSV with date, description and amount columns in any order.
// Dates are YYYY-MM-DD; positive amounts are money in.
type GenericParser struct{}

// Format returns the parser name.
func (p *GenericParser) Format() string { return "generic" }

// Parse reads the file. Column names are matched case-insensitively.
func (p *GenericParser) Parse(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range []string{"date", "description", "amount"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing %q column", name)
		}
	}

	var recs []Record
	for row := 2; ; row++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		rec, err := parseGenericRow(fields, cols)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func parseGenericRow(fields []string, cols map[string]int) (Record, error) {
	get := func(name string) string {
		i := cols[name]
		if i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}
	date, err := time.Parse("2006-01-02", get("date"))
	if err != nil {
		return Record{}, fmt.Errorf("parsing date %q: %w", get("date"), err)
	}
	cents, err := ParseAmount(get("amount"))
	if err != nil {
		return Record{}, err
	}
	return Record{
		Date:        date,
		Description: get("description"),
		AmountCents: cents,
	}, nil
}
