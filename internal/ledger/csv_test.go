package ledger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/model"
)

func TestCSVRoundTrip(t *testing.T) {
	txns := []model.Transaction{
		{
			ID:          "2025-01-001",
			Date:        date(2025, 1, 3),
			Description: "GitHub Pro, annual",
			Status:      model.StatusPosted,
			Source:      model.SourceBankFeed,
			Entries: []model.JournalEntry{
				{ID: "2025-01-001a", AccountID: "software", DebitCents: 400},
				{ID: "2025-01-001b", AccountID: "cash", CreditCents: 400, IsReconciled: true},
			},
		},
		{
			ID:          "2025-01-002",
			Date:        date(2025, 1, 4),
			Description: "Reserve",
			Status:      model.StatusVoid,
			Source:      model.SourceSystem,
			Reference:   "reserve:tax:2025-01-001",
			Entries: []model.JournalEntry{
				{ID: "2025-01-002a", AccountID: "reserve", DebitCents: 100},
				{ID: "2025-01-002b", AccountID: "cash", CreditCents: 100},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTransactions(&buf, txns))
	assert.True(t, strings.HasPrefix(buf.String(), Header+"\n"))
	assert.Contains(t, buf.String(), ",4.00,")

	got, err := ReadTransactions(&buf)
	require.NoError(t, err)
	assert.Equal(t, txns, got)
}

func TestParseCents(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		err  bool
	}{
		{"4.00", 400, false},
		{"4", 400, false},
		{" 1234.5 ", 123450, false},
		{"-12.34", -1234, false},
		{"0.001", 0, true},
		{"abc", 0, true},
		{"92233720368547758.07", 9223372036854775807, false},
		{"92233720368547758.08", 0, true},
		{"-92233720368547758.08", 0, true},
		{"100000000000000000.00", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseCents(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "5000.00", FormatCents(500000))
	assert.Equal(t, "-1.50", FormatCents(-150))
}

func TestInMonth(t *testing.T) {
	txns := []model.Transaction{
		{ID: "a", Date: date(2025, 1, 31)},
		{ID: "b", Date: date(2025, 2, 1)},
		{ID: "c", Date: date(2025, 1, 1)},
	}
	got := InMonth(txns, 2025, 1)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}
