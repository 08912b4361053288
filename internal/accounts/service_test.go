package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledger/internal/model"
	"github.com/cleared-dev/ledger/internal/store/memstore"
)

func newService(t *testing.T) *Service {
	t.Helper()
	return NewService(memstore.New(), nil)
}

func TestCreate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, model.Account{TenantID: "acme", Code: " 1010 ", Name: "Checking", Type: model.AccountTypeAsset, BalanceCents: 99})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "1010", a.Code)
	assert.Zero(t, a.BalanceCents)

	_, err = svc.Create(ctx, model.Account{TenantID: "acme", Code: "1010", Name: "Other", Type: model.AccountTypeAsset})
	assert.ErrorIs(t, err, ErrDuplicateCode)

	// Codes are unique per tenant only.
	_, err = svc.Create(ctx, model.Account{TenantID: "globex", Code: "1010", Name: "Checking", Type: model.AccountTypeAsset})
	assert.NoError(t, err)

	_, err = svc.Create(ctx, model.Account{TenantID: "acme", Code: "9999", Name: "Bad", Type: "cash"})
	assert.ErrorIs(t, err, ErrInvalidType)

	_, err = svc.Create(ctx, model.Account{TenantID: "acme", Name: "No code", Type: model.AccountTypeAsset})
	assert.Error(t, err)
}

func TestUpdate_TypeImmutable(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, model.Account{TenantID: "acme", Code: "4010", Name: "Revenue", Type: model.AccountTypeRevenue})
	require.NoError(t, err)

	_, err = svc.Update(ctx, model.Account{TenantID: "acme", ID: a.ID, Name: "Revenue", Type: model.AccountTypeExpense})
	assert.ErrorIs(t, err, ErrTypeImmutable)

	got, err := svc.Update(ctx, model.Account{TenantID: "acme", ID: a.ID, Name: "Service Revenue", Subtype: "services"})
	require.NoError(t, err)
	assert.Equal(t, "Service Revenue", got.Name)
	assert.Equal(t, model.AccountTypeRevenue, got.Type)

	_, err = svc.Update(ctx, model.Account{TenantID: "acme", ID: "missing", Name: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeedDefaultChart_Idempotent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	created, err := svc.SeedDefaultChart(ctx, "acme", "llc_single_member", "USD")
	require.NoError(t, err)
	assert.Len(t, created, len(DefaultChart("llc_single_member")))

	again, err := svc.SeedDefaultChart(ctx, "acme", "llc_single_member", "USD")
	require.NoError(t, err)
	assert.Empty(t, again)

	checking, err := svc.Resolve(ctx, "acme", "1010")
	require.NoError(t, err)
	assert.Equal(t, SeedID("acme", "1010"), checking.ID)
	assert.Equal(t, "USD", checking.Currency)

	byID, err := svc.Resolve(ctx, "acme", checking.ID)
	require.NoError(t, err)
	assert.Equal(t, checking, byID)

	_, err = svc.Resolve(ctx, "acme", "0000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestByType(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.SeedDefaultChart(ctx, "acme", "llc_single_member", "USD")
	require.NoError(t, err)

	assets, err := svc.ByType(ctx, "acme", model.AccountTypeAsset)
	require.NoError(t, err)
	assert.Len(t, assets, 4)
	for _, a := range assets {
		assert.Equal(t, model.AccountTypeAsset, a.Type)
	}

	expenses, err := svc.ByType(ctx, "acme", model.AccountTypeExpense)
	require.NoError(t, err)
	assert.Len(t, expenses, 5)
}

func TestSaveLoadImport(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.SeedDefaultChart(ctx, "acme", "llc_single_member", "USD")
	require.NoError(t, err)

	dir := t.TempDir()
	path, err := svc.Save(ctx, "acme", dir)
	require.NoError(t, err)
	assert.FileExists(t, path)

	accts, err := Load(dir)
	require.NoError(t, err)
	assert.Len(t, accts, len(DefaultChart("llc_single_member")))

	other := newService(t)
	n, err := other.Import(ctx, "acme", accts)
	require.NoError(t, err)
	assert.Equal(t, len(accts), n)

	n, err = other.Import(ctx, "acme", accts)
	require.NoError(t, err)
	assert.Zero(t, n)
}
