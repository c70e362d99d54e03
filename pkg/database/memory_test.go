package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partnermetrics/pkg/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func record(shop string, day time.Time, chargeType, appTitle string, revenue float64) models.PaymentRecord {
	return models.PaymentRecord{
		ShopID:      shop,
		PaymentDate: day,
		ChargeType:  chargeType,
		AppTitle:    appTitle,
		Revenue:     revenue,
	}
}

func TestMemoryStoreDeleteAfterKeepsCutoffDay(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	cutoff := date(2025, 3, 10)
	require.NoError(t, s.BulkInsert(ctx, "acct", []models.PaymentRecord{
		record("a", cutoff.AddDate(0, 0, -1), models.ChargeTypeRecurring, "X", 10),
		record("b", cutoff, models.ChargeTypeRecurring, "X", 10),
		record("c", cutoff.AddDate(0, 0, 1), models.ChargeTypeRecurring, "X", 10),
	}))

	require.NoError(t, s.DeleteAfter(ctx, "acct", cutoff))

	remaining := s.Payments("acct")
	require.Len(t, remaining, 2)
	for _, r := range remaining {
		assert.False(t, r.PaymentDate.After(cutoff))
	}
}

func TestMemoryStorePaymentDateBounds(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.MinPaymentDate(ctx, "acct")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.BulkInsert(ctx, "acct", []models.PaymentRecord{
		record("a", date(2025, 2, 5), models.ChargeTypeOneTime, "X", 1),
		record("a", date(2025, 2, 1), models.ChargeTypeOneTime, "X", 1),
		record("a", date(2025, 2, 9), models.ChargeTypeOneTime, "X", 1),
	}))

	min, ok, err := s.MinPaymentDate(ctx, "acct")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, date(2025, 2, 1), min)

	max, ok, err := s.MaxPaymentDate(ctx, "acct")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, date(2025, 2, 9), max)
}

func TestMemoryStoreDailyTotals(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	day := date(2025, 2, 5)
	require.NoError(t, s.BulkInsert(ctx, "acct", []models.PaymentRecord{
		record("a", day, models.ChargeTypeRecurring, "X", 10),
		record("a", day, models.ChargeTypeRecurring, "X", 5), // same shop, second charge
		record("b", day, models.ChargeTypeRecurring, "X", 20),
		record("c", day, models.ChargeTypeRecurring, "Y", 99),                  // other app
		record("d", day.AddDate(0, 0, 1), models.ChargeTypeRecurring, "X", 99), // other day
	}))

	totals, err := s.DailyTotals(ctx, "acct", day, models.ChargeTypeRecurring, "X")
	require.NoError(t, err)
	assert.Equal(t, 35.0, totals.Revenue)
	assert.Equal(t, 3, totals.Charges)
	assert.Equal(t, 2, totals.Shops)
}

func TestMemoryStoreGroupByShopOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.BulkInsert(ctx, "acct", []models.PaymentRecord{
		record("zeta", date(2025, 2, 3), models.ChargeTypeRecurring, "X", 1),
		record("alpha", date(2025, 2, 4), models.ChargeTypeRecurring, "X", 2),
		record("alpha", date(2025, 2, 2), models.ChargeTypeRecurring, "X", 3),
	}))

	groups, err := s.GroupByShop(ctx, "acct", date(2025, 2, 1), date(2025, 2, 28),
		models.ChargeTypeRecurring, "X")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "alpha", groups[0].Shop)
	assert.Equal(t, "zeta", groups[1].Shop)
	// records ordered by payment date inside the group
	require.Len(t, groups[0].Records, 2)
	assert.True(t, groups[0].Records[0].PaymentDate.Before(groups[0].Records[1].PaymentDate))
}

func TestMemoryStoreDistinctAppTitlesIsAllTime(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.BulkInsert(ctx, "acct", []models.PaymentRecord{
		record("a", date(2020, 1, 1), models.ChargeTypeOneTime, "Old App", 1),
		record("a", date(2025, 2, 1), models.ChargeTypeOneTime, "New App", 1),
		record("a", date(2025, 2, 1), models.ChargeTypeRecurring, "Other", 1),
	}))

	titles, err := s.DistinctAppTitles(ctx, "acct", models.ChargeTypeOneTime)
	require.NoError(t, err)
	assert.Equal(t, []string{"New App", "Old App"}, titles)
}
