package database

import (
	"context"
	"time"

	"partnermetrics/pkg/models"
)

// Store is the query surface the ingestion and calculation paths need from
// the payment/metric storage. Two implementations exist: the MySQL store
// used in production and an in-memory store for tests.
//
// Date parameters are day-granular; implementations compare on the date
// part only. Range bounds are inclusive on both ends.
type Store interface {
	// Payment side.

	// DeleteAfter removes every payment record dated strictly after cutoff.
	// Re-import replaces the window after the cutoff, it never appends to it.
	DeleteAfter(ctx context.Context, accountID string, cutoff time.Time) error

	// BulkInsert appends a chunk of records. No uniqueness is enforced.
	BulkInsert(ctx context.Context, accountID string, records []models.PaymentRecord) error

	// MinPaymentDate and MaxPaymentDate return ok=false on an empty account.
	MinPaymentDate(ctx context.Context, accountID string) (time.Time, bool, error)
	MaxPaymentDate(ctx context.Context, accountID string) (time.Time, bool, error)

	// DistinctAppTitles lists every app title that ever appears for the
	// charge type, not scoped to any date range.
	DistinctAppTitles(ctx context.Context, accountID, chargeType string) ([]string, error)

	// DailyTotals sums one (date, charge type, app title) triple.
	DailyTotals(ctx context.Context, accountID string, date time.Time, chargeType, appTitle string) (models.DailyTotals, error)

	// DistinctShops lists the shops with at least one record on the date for
	// the triple, sorted.
	DistinctShops(ctx context.Context, accountID string, date time.Time, chargeType, appTitle string) ([]string, error)

	// CountShopCharges counts one shop's records inside [from, to] for the
	// charge type and app title. Used for the repeat-customer check.
	CountShopCharges(ctx context.Context, accountID, shop string, from, to time.Time, chargeType, appTitle string) (int, error)

	// GroupByShop groups the records inside [from, to] by shop, ordered by
	// shop id, records ordered by payment date.
	GroupByShop(ctx context.Context, accountID string, from, to time.Time, chargeType, appTitle string) ([]models.ShopGroup, error)

	// Metric side.

	// LatestMetricDate returns ok=false when no metrics exist yet.
	LatestMetricDate(ctx context.Context, accountID string) (time.Time, bool, error)

	// BulkInsertMetrics appends one day's metric rows in a single write.
	BulkInsertMetrics(ctx context.Context, accountID string, metrics []models.Metric) error
}
