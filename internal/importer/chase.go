package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
)

// ChaseParser parses Chase bank checking CSV exports.
type ChaseParser struct{}

const (
	chaseDateFormat = "01/02/2006"
	chaseNumFields  = 7
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
	chaseColType    = 4
)

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV. The header row is skipped.
func (p *ChaseParser) Parse(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chaseNumFields

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	var recs []Record
	for i, row := range rows[1:] {
		rec, err := parseChaseRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func parseChaseRow(row []string) (Record, error) {
	date, err := time.Parse(chaseDateFormat, strings.TrimSpace(row[chaseColDate]))
	if err != nil {
		return Record{}, fmt.Errorf("parsing date %q: %w", row[chaseColDate], err)
	}
	cents, err := ParseAmount(row[chaseColAmount])
	if err != nil {
		return Record{}, err
	}
	desc := strings.TrimSpace(row[chaseColDesc])
	return Record{
		Date:        date,
		Description: desc,
		AmountCents: cents,
		Kind:        row[chaseColType],
		Reference:   makeChaseRef(date, desc),
	}, nil
}

// makeChaseRef creates a reference like chase_20250103_GITHUB.
func makeChaseRef(date time.Time, desc string) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	return fmt.Sprintf("chase_%s_%s", date.Format("20060102"), prefix)
}
