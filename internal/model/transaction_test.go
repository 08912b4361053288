package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccountTypeDelta(t *testing.T) {
	tests := []struct {
		typ    AccountType
		debit  int64
		credit int64
		want   int64
	}{
		{AccountTypeAsset, 500, 0, 500},
		{AccountTypeAsset, 0, 200, -200},
		{AccountTypeExpense, 75, 0, 75},
		{AccountTypeLiability, 0, 300, 300},
		{AccountTypeLiability, 100, 0, -100},
		{AccountTypeEquity, 0, 1000, 1000},
		{AccountTypeRevenue, 0, 500000, 500000},
		{AccountTypeRevenue, 40, 0, -40},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.typ.Delta(tt.debit, tt.credit), "%s.Delta(%d, %d)", tt.typ, tt.debit, tt.credit)
	}
}

func TestAccountTypeValid(t *testing.T) {
	assert.True(t, AccountTypeEquity.Valid())
	assert.False(t, AccountType("income").Valid())
	assert.False(t, AccountType("").Valid())
}

func TestTransactionTotals(t *testing.T) {
	txn := Transaction{Entries: []JournalEntry{
		{AccountID: "a", DebitCents: 60},
		{AccountID: "a", DebitCents: 40},
		{AccountID: "b", CreditCents: 100},
	}}
	d, c := txn.Totals()
	assert.Equal(t, int64(100), d)
	assert.Equal(t, int64(100), c)
	assert.True(t, txn.Touches("b"))
	assert.False(t, txn.Touches("c"))
}

func TestTransactionClone(t *testing.T) {
	txn := Transaction{ID: "2025-01-001", Entries: []JournalEntry{{AccountID: "a", DebitCents: 1}}}
	cp := txn.Clone()
	cp.Entries[0].DebitCents = 99
	assert.Equal(t, int64(1), txn.Entries[0].DebitCents)
}

func TestJournalEntryMagnitude(t *testing.T) {
	assert.Equal(t, int64(25), JournalEntry{DebitCents: 25}.Magnitude())
	assert.Equal(t, int64(40), JournalEntry{CreditCents: 40}.Magnitude())
}
