package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"badminton_club/internal/billing"
	"badminton_club/internal/models"
	"badminton_club/internal/testutil"
)

// mapCache is a Cache that stores JSON in memory, like RedisCache does.
type mapCache struct {
	data map[string][]byte
	sets int
}

func (c *mapCache) Get(_ context.Context, key string, dest interface{}) error {
	b, ok := c.data[key]
	if !ok {
		return errors.New("miss")
	}
	return json.Unmarshal(b, dest)
}

func (c *mapCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = b
	c.sets++
	return nil
}

func TestMonthlyFeeIsCached(t *testing.T) {
	env := newTestEnv()
	cache := &mapCache{data: map[string][]byte{}}
	svc := NewFeeService(env.calc, env.store, env.log).WithCache(cache, time.Hour)

	first, err := svc.MonthlyFee(context.Background(), 2025, 3)
	require.NoError(t, err)
	second, err := svc.MonthlyFee(context.Background(), 2025, 3)
	require.NoError(t, err)

	assert.Equal(t, int64(45000), first.Amount)
	assert.Equal(t, first.Amount, second.Amount)
	assert.Equal(t, first.WeeksInMonth, second.WeeksInMonth)
	assert.Equal(t, 1, cache.sets)
}

func TestMonthlyFeeWithoutCache(t *testing.T) {
	env := newTestEnv()
	svc := NewFeeService(env.calc, env.store, env.log)

	fee, err := svc.MonthlyFee(context.Background(), 2025, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(40000), fee.Amount)

	_, err = svc.MonthlyFee(context.Background(), 2025, 0)
	assert.Error(t, err)
}

func TestGetOrSetDoesNotCacheErrors(t *testing.T) {
	cache := &mapCache{data: map[string][]byte{}}
	calls := 0
	fn := func() (int, error) {
		calls++
		return 0, errors.New("boom")
	}

	_, err := GetOrSet(cache, context.Background(), "k", time.Minute, fn)
	assert.Error(t, err)
	_, err = GetOrSet(cache, context.Background(), "k", time.Minute, fn)
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Zero(t, cache.sets)
}

func TestPreviewDoesNotPersist(t *testing.T) {
	env := newTestEnv()
	env.store.SeedMemberships(models.MembershipPayment{MemberID: "m1", Year: 2025, Month: 1})
	svc := NewFeeService(env.calc, env.store, env.log)

	results, summary, err := svc.Preview(context.Background(), []string{"m1", "m2"}, testutil.MustDate("2025-01-04"), 1)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, int64(0), results[0].SessionFee)
	assert.Equal(t, int64(5000), results[0].ShuttlecockFee)
	assert.Equal(t, int64(18000), results[1].SessionFee)
	assert.Equal(t, int64(5000), results[1].ShuttlecockFee)
	assert.Equal(t, int64(28000), summary.TotalRevenue)
	assert.Empty(t, env.store.Payments())
}

func TestSessions(t *testing.T) {
	env := newTestEnv()
	svc := NewFeeService(env.calc, env.store, env.log)

	got := svc.Sessions(testutil.MustDate("2025-01-01"), testutil.MustDate("2025-01-31"))
	require.Len(t, got, 4)
	assert.Equal(t, "2025-01-04", got[0].Format(billing.DateLayout))
	assert.Equal(t, "2025-01-25", got[3].Format(billing.DateLayout))
}
