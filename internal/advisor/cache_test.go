package advisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/cleared-dev/ledger/internal/tenant"
)

func TestCached_MissThenStore(t *testing.T) {
	rdb, rmock := redismock.NewClientMock()
	next := &MockSuggester{}
	c := NewCached(next, rdb, time.Hour, nil)
	ctx := tenant.WithID(context.Background(), "acme")
	key := CacheKey("acme", "GITHUB PRO")

	rmock.ExpectGet(key).RedisNil()
	next.On("Suggest", mock.Anything, "GITHUB PRO").Return("software", true).Once()
	rmock.ExpectSet(key, "software", time.Hour).SetVal("OK")

	id, ok := c.Suggest(ctx, "GITHUB PRO")
	assert.True(t, ok)
	assert.Equal(t, "software", id)
	next.AssertExpectations(t)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestCached_Hit(t *testing.T) {
	rdb, rmock := redismock.NewClientMock()
	next := &MockSuggester{}
	c := NewCached(next, rdb, time.Hour, nil)
	ctx := tenant.WithID(context.Background(), "acme")

	rmock.ExpectGet(CacheKey("acme", "github pro")).SetVal("software")

	id, ok := c.Suggest(ctx, "github pro")
	assert.True(t, ok)
	assert.Equal(t, "software", id)
	next.AssertNotCalled(t, "Suggest", mock.Anything, mock.Anything)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestCached_NegativeHit(t *testing.T) {
	rdb, rmock := redismock.NewClientMock()
	next := &MockSuggester{}
	c := NewCached(next, rdb, time.Hour, nil)
	ctx := tenant.WithID(context.Background(), "acme")

	rmock.ExpectGet(CacheKey("acme", "STARBUCKS")).SetVal(noSuggestion)

	_, ok := c.Suggest(ctx, "STARBUCKS")
	assert.False(t, ok)
	next.AssertNotCalled(t, "Suggest", mock.Anything, mock.Anything)
}

func TestCached_RedisDownFallsThrough(t *testing.T) {
	rdb, rmock := redismock.NewClientMock()
	next := &MockSuggester{}
	c := NewCached(next, rdb, time.Minute, nil)
	ctx := tenant.WithID(context.Background(), "acme")
	key := CacheKey("acme", "USPS")

	rmock.ExpectGet(key).SetErr(errors.New("connection refused"))
	next.On("Suggest", mock.Anything, "USPS").Return("", false).Once()
	rmock.ExpectSet(key, noSuggestion, time.Minute).SetErr(errors.New("connection refused"))

	_, ok := c.Suggest(ctx, "USPS")
	assert.False(t, ok)
	next.AssertExpectations(t)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, CacheKey("acme", "GitHub  *Pro"), CacheKey("acme", "GITHUB PRO"))
	assert.NotEqual(t, CacheKey("acme", "GITHUB"), CacheKey("globex", "GITHUB"))
}

func TestCached_Forget(t *testing.T) {
	rdb, rmock := redismock.NewClientMock()
	c := NewCached(Nop{}, rdb, time.Minute, nil)
	rmock.ExpectDel(CacheKey("acme", "USPS")).SetVal(1)

	assert.NoError(t, c.Forget(context.Background(), "acme", "USPS"))
	assert.NoError(t, rmock.ExpectationsWereMet())
}
