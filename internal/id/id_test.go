package id

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTransactionID(t *testing.T) {
	tests := []struct {
		year, month, seq int
		want             string
	}{
		{2025, 1, 1, "2025-01-001"},
		{2025, 12, 99, "2025-12-099"},
		{2025, 1, 123, "2025-01-123"},
		{2025, 3, 1234, "2025-03-1234"},
	}
	for _, tt := range tests {
		got := FormatTransactionID(tt.year, tt.month, tt.seq)
		assert.Equal(t, tt.want, got)
	}
}

func TestForDate(t *testing.T) {
	d := time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-11-007", ForDate(d, 7))
}

func TestFormatEntryID(t *testing.T) {
	tests := []struct {
		txnID string
		entry int
		want  string
	}{
		{"2025-01-001", 0, "2025-01-001a"},
		{"2025-01-001", 1, "2025-01-001b"},
		{"2025-01-001", 25, "2025-01-001z"},
		{"2025-01-001", 26, "2025-01-001aa"},
		{"2025-01-001", 27, "2025-01-001ab"},
	}
	for _, tt := range tests {
		got := FormatEntryID(tt.txnID, tt.entry)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseTransactionID(t *testing.T) {
	tests := []struct {
		input               string
		wantYear, wantMonth int
		wantSeq             int
	}{
		{"2025-01-001", 2025, 1, 1},
		{"2025-12-099", 2025, 12, 99},
		{"2025-01-001a", 2025, 1, 1},
		{"2025-01-001ab", 2025, 1, 1},
	}
	for _, tt := range tests {
		year, month, seq, err := ParseTransactionID(tt.input)
		require.NoError(t, err, "input: %s", tt.input)
		assert.Equal(t, tt.wantYear, year)
		assert.Equal(t, tt.wantMonth, month)
		assert.Equal(t, tt.wantSeq, seq)
	}
}

func TestParseTransactionID_Errors(t *testing.T) {
	badInputs := []string{
		"",
		"not-valid",
		"2025-01",
		"xxxx-01-001",
		"2025-13-001",
	}
	for _, input := range badInputs {
		_, _, _, err := ParseTransactionID(input)
		assert.Error(t, err, "expected error for input: %s", input)
	}
}

func TestTransactionOf(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2025-01-001a", "2025-01-001"},
		{"2025-01-001b", "2025-01-001"},
		{"2025-01-001", "2025-01-001"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TransactionOf(tt.input))
	}
}

func TestNew(t *testing.T) {
	a, b := New(), New()
	assert.NotEqual(t, a, b)
	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}
