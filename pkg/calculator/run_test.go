package calculator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partnermetrics/pkg/database"
	"partnermetrics/pkg/lock"
	"partnermetrics/pkg/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func payment(shop string, day time.Time, chargeType, appTitle string, revenue float64) models.PaymentRecord {
	return models.PaymentRecord{
		ShopID:      shop,
		PaymentDate: day,
		ChargeType:  chargeType,
		AppTitle:    appTitle,
		Revenue:     revenue,
	}
}

type captureReporter struct {
	statuses []models.RunStatus
}

func (c *captureReporter) Update(status models.RunStatus) {
	c.statuses = append(c.statuses, status)
}

func (c *captureReporter) last() models.RunStatus {
	return c.statuses[len(c.statuses)-1]
}

func newRunner(store database.Store, reporter *captureReporter) *Runner {
	r := &Runner{Store: store, Locks: lock.NewAccountLocker()}
	if reporter != nil {
		r.Reporter = reporter
	}
	return r
}

func TestResolveWindowResumesAfterLatestMetric(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	require.NoError(t, store.BulkInsertMetrics(ctx, "acct", []models.Metric{
		{MetricDate: date(2025, 3, 10), ChargeType: models.ChargeTypeRecurring, AppTitle: "X"},
	}))
	require.NoError(t, store.BulkInsert(ctx, "acct", []models.PaymentRecord{
		payment("a", date(2025, 3, 15), models.ChargeTypeRecurring, "X", 1),
	}))

	from, to, ok, err := newRunner(store, nil).resolveWindow(ctx, models.RunConfig{AccountID: "acct"}.Normalize())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, date(2025, 3, 11), from)
	assert.Equal(t, date(2025, 3, 14), to) // export day excluded
}

func TestResolveWindowStartsAtEarliestPaymentWithoutMetrics(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	require.NoError(t, store.BulkInsert(ctx, "acct", []models.PaymentRecord{
		payment("a", date(2025, 2, 3), models.ChargeTypeRecurring, "X", 1),
		payment("a", date(2025, 2, 20), models.ChargeTypeRecurring, "X", 1),
	}))

	from, to, ok, err := newRunner(store, nil).resolveWindow(ctx, models.RunConfig{AccountID: "acct"}.Normalize())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, date(2025, 2, 3), from)
	assert.Equal(t, date(2025, 2, 19), to)
}

func TestResolveWindowFallsBack180DaysWithNoData(t *testing.T) {
	store := database.NewMemoryStore()
	cfg := models.RunConfig{AccountID: "acct", Now: date(2025, 8, 30)}.Normalize()

	from, _, ok, err := newRunner(store, nil).resolveWindow(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, date(2025, 8, 30).AddDate(0, 0, -180), from)
}

func TestRunWithNoPaymentsDoesNothing(t *testing.T) {
	store := database.NewMemoryStore()
	reporter := &captureReporter{}

	err := newRunner(store, reporter).Run(context.Background(), models.RunConfig{AccountID: "acct"})
	require.NoError(t, err)
	assert.Empty(t, store.Metrics("acct"))
	assert.Equal(t, "Complete", reporter.last().Status)
}

func TestRunEmitsPerDateProgressAndCompletes(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	require.NoError(t, store.BulkInsert(ctx, "acct", []models.PaymentRecord{
		payment("a", date(2025, 4, 1), models.ChargeTypeRefund, "X", -5),
		payment("a", date(2025, 4, 2), models.ChargeTypeRefund, "X", -5),
		payment("a", date(2025, 4, 3), models.ChargeTypeRefund, "X", -5),
		payment("a", date(2025, 4, 4), models.ChargeTypeRefund, "X", -5), // export day, excluded
	}))
	reporter := &captureReporter{}

	require.NoError(t, newRunner(store, reporter).Run(ctx, models.RunConfig{AccountID: "acct"}))

	metrics := store.Metrics("acct")
	require.Len(t, metrics, 3)
	for i, m := range metrics {
		assert.Equal(t, date(2025, 4, 1+i), m.MetricDate)
		assert.Equal(t, -5.0, m.Revenue)
	}

	var percents []int
	var texts []string
	for _, s := range reporter.statuses {
		percents = append(percents, s.Percent)
		texts = append(texts, s.Status)
	}
	assert.Equal(t, "Calculating metrics (Warming up)", texts[0])
	assert.Contains(t, texts, "Calculating metrics (2025-04-02 processed)")
	assert.Equal(t, "Complete", texts[len(texts)-1])
	// totalDays is the window span (2), clamped at 100 on the inclusive tail.
	assert.Equal(t, []int{0, 50, 100, 100, 100}, percents)
}

func TestRunAppendsForwardOnly(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()
	require.NoError(t, store.BulkInsert(ctx, "acct", []models.PaymentRecord{
		payment("a", date(2025, 4, 1), models.ChargeTypeRefund, "X", -5),
		payment("a", date(2025, 4, 2), models.ChargeTypeRefund, "X", -5),
		payment("a", date(2025, 4, 3), models.ChargeTypeRefund, "X", -5),
	}))
	runner := newRunner(store, nil)
	cfg := models.RunConfig{AccountID: "acct"}

	require.NoError(t, runner.Run(ctx, cfg))
	first := len(store.Metrics("acct"))
	require.Equal(t, 2, first)

	// A second run resumes past the last computed date and re-emits nothing.
	require.NoError(t, runner.Run(ctx, cfg))
	assert.Equal(t, first, len(store.Metrics("acct")))
}

func TestRunStopsBetweenDatesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := database.NewMemoryStore()
	require.NoError(t, store.BulkInsert(context.Background(), "acct", []models.PaymentRecord{
		payment("a", date(2025, 4, 1), models.ChargeTypeRefund, "X", -5),
		payment("a", date(2025, 4, 3), models.ChargeTypeRefund, "X", -5),
	}))
	reporter := &captureReporter{}

	err := newRunner(store, reporter).Run(ctx, models.RunConfig{AccountID: "acct"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.Metrics("acct"))
	assert.Equal(t, "Failed", reporter.last().Status)
}

func TestRunWorkerPoolMatchesSequentialOutput(t *testing.T) {
	ctx := context.Background()
	seed := []models.PaymentRecord{
		payment("a", date(2025, 4, 1), models.ChargeTypeRecurring, "X", 10),
		payment("b", date(2025, 4, 1), models.ChargeTypeRecurring, "Y", 20),
		payment("c", date(2025, 4, 1), models.ChargeTypeOneTime, "X", 30),
		payment("d", date(2025, 4, 1), models.ChargeTypeRefund, "Z", -4),
		payment("e", date(2025, 4, 2), models.ChargeTypeAffiliate, "X", 7),
		payment("f", date(2025, 4, 3), models.ChargeTypeRecurring, "X", 1),
	}

	results := make([][]models.Metric, 0, 2)
	for _, workers := range []int{1, 4} {
		store := database.NewMemoryStore()
		require.NoError(t, store.BulkInsert(ctx, "acct", seed))
		cfg := models.RunConfig{AccountID: "acct", Workers: workers}
		require.NoError(t, newRunner(store, nil).Run(ctx, cfg))
		results = append(results, store.Metrics("acct"))
	}
	assert.Equal(t, results[0], results[1])
}
