package advisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/tenant"
)

func TestNop(t *testing.T) {
	id, ok := Nop{}.Suggest(context.Background(), "anything")
	assert.False(t, ok)
	assert.Empty(t, id)
}

func TestKeyword(t *testing.T) {
	k := NewKeyword()
	k.SetRules("acme", []Rule{
		{Keyword: "github", AccountID: "software"},
		{Keyword: "usps", AccountID: "shipping"},
		{Keyword: "Office Supplies", AccountID: "office"},
	})
	ctx := tenant.WithID(context.Background(), "acme")

	tests := []struct {
		desc   string
		want   string
		wantOK bool
	}{
		{"GITHUB *PRO 1234", "software", true},
		{"Payment to GitHub, Inc.", "software", true},
		{"GITHBU PRO", "", false},
		{"GITHUBB", "software", true},
		{"USPS PO 0448", "shipping", true},
		{"office supplies depot", "office", true},
		{"Starbucks", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			got, ok := k.Suggest(ctx, tt.desc)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyword_TenantScoped(t *testing.T) {
	k := NewKeyword()
	k.SetRules("acme", []Rule{{Keyword: "github", AccountID: "software"}})

	_, ok := k.Suggest(tenant.WithID(context.Background(), "globex"), "GITHUB")
	assert.False(t, ok)
	_, ok = k.Suggest(context.Background(), "GITHUB")
	assert.False(t, ok)
}

func TestRulesFromAccounts(t *testing.T) {
	rules := RulesFromAccounts([]model.Account{
		{ID: "a1", Name: "Software & SaaS"},
		{ID: "a2"},
	})
	assert.Equal(t, []Rule{{Keyword: "Software & SaaS", AccountID: "a1"}}, rules)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("ABC", "ABC"))
	assert.Equal(t, 0.0, similarity("", ""))
	assert.InDelta(t, 0.857, similarity("GITHUBB", "GITHUB"), 0.001)
}
