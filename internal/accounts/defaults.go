package accounts

import "github.com/cleared-dev/ledger/internal/model"

// DefaultChart returns the default chart of accounts for an entity type.
// IDs and tenant are left empty; SeedDefaultChart fills them in.
func DefaultChart(entityType string) []model.Account {
	switch entityType {
	case "llc_single_member":
		return llcSingleMemberChart()
	default:
		return llcSingleMemberChart()
	}
}

func llcSingleMemberChart() []model.Account {
	return []model.Account{
		{Code: "1010", Name: "Business Checking", Type: model.AccountTypeAsset, Subtype: "operating"},
		{Code: "1020", Name: "Business Savings", Type: model.AccountTypeAsset, Subtype: "savings"},
		{Code: "1030", Name: "Tax Reserve", Type: model.AccountTypeAsset, Subtype: "reserve"},
		{Code: "1040", Name: "Operating Reserve", Type: model.AccountTypeAsset, Subtype: "reserve"},
		{Code: "2010", Name: "Credit Card", Type: model.AccountTypeLiability},
		{Code: "2020", Name: "Sales Tax Payable", Type: model.AccountTypeLiability},
		{Code: "3010", Name: "Owner's Equity", Type: model.AccountTypeEquity},
		{Code: "4010", Name: "Service Revenue", Type: model.AccountTypeRevenue},
		{Code: "4020", Name: "Product Revenue", Type: model.AccountTypeRevenue},
		{Code: "5010", Name: "Advertising & Marketing", Type: model.AccountTypeExpense},
		{Code: "5020", Name: "Software & SaaS", Type: model.AccountTypeExpense},
		{Code: "5030", Name: "Office Supplies", Type: model.AccountTypeExpense},
		{Code: "5040", Name: "Professional Services", Type: model.AccountTypeExpense},
		{Code: "5050", Name: "Shipping & Postage", Type: model.AccountTypeExpense},
	}
}
