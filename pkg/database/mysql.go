package database

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"partnermetrics/pkg/models"
)

const dateLayout = "2006-01-02"

// MySQLStore implements Store on the payments/metrics tables.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db}
}

func (s *MySQLStore) DeleteAfter(ctx context.Context, accountID string, cutoff time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM payments WHERE account_id = ? AND payment_date > ?`,
		accountID, cutoff.UTC().Format(dateLayout))
	return errors.Wrap(err, "delete payments after cutoff")
}

func (s *MySQLStore) BulkInsert(ctx context.Context, accountID string, records []models.PaymentRecord) error {
	if len(records) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO payments
		(account_id, shop, shop_country, payment_date, charge_type, revenue, app_title)
		VALUES `)
	args := make([]any, 0, len(records)*7)
	for i, r := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, accountID, r.ShopID, r.ShopCountry,
			r.PaymentDate.UTC().Format(dateLayout), r.ChargeType, r.Revenue, r.AppTitle)
	}
	_, err := s.db.ExecContext(ctx, b.String(), args...)
	return errors.Wrap(err, "bulk insert payments")
}

func (s *MySQLStore) MinPaymentDate(ctx context.Context, accountID string) (time.Time, bool, error) {
	return s.paymentDateBound(ctx, accountID, "MIN")
}

func (s *MySQLStore) MaxPaymentDate(ctx context.Context, accountID string) (time.Time, bool, error) {
	return s.paymentDateBound(ctx, accountID, "MAX")
}

func (s *MySQLStore) paymentDateBound(ctx context.Context, accountID, fn string) (time.Time, bool, error) {
	var bound sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT `+fn+`(payment_date) FROM payments WHERE account_id = ?`,
		accountID).Scan(&bound)
	if err != nil {
		return time.Time{}, false, errors.Wrapf(err, "%s payment date", strings.ToLower(fn))
	}
	if !bound.Valid {
		return time.Time{}, false, nil
	}
	return bound.Time.UTC(), true, nil
}

func (s *MySQLStore) DistinctAppTitles(ctx context.Context, accountID, chargeType string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT app_title FROM payments
		 WHERE account_id = ? AND charge_type = ?
		 ORDER BY app_title`,
		accountID, chargeType)
	if err != nil {
		return nil, errors.Wrap(err, "distinct app titles")
	}
	defer rows.Close()

	var titles []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, errors.Wrap(err, "scan app title")
		}
		titles = append(titles, title)
	}
	return titles, errors.Wrap(rows.Err(), "distinct app titles")
}

func (s *MySQLStore) DailyTotals(ctx context.Context, accountID string, date time.Time, chargeType, appTitle string) (models.DailyTotals, error) {
	var (
		revenue sql.NullFloat64
		charges int
		shops   int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(revenue), 0), COUNT(*), COUNT(DISTINCT shop)
		 FROM payments
		 WHERE account_id = ? AND payment_date = ? AND charge_type = ? AND app_title = ?`,
		accountID, date.UTC().Format(dateLayout), chargeType, appTitle).
		Scan(&revenue, &charges, &shops)
	if err != nil {
		return models.DailyTotals{}, errors.Wrap(err, "daily totals")
	}
	return models.DailyTotals{Revenue: revenue.Float64, Charges: charges, Shops: shops}, nil
}

func (s *MySQLStore) DistinctShops(ctx context.Context, accountID string, date time.Time, chargeType, appTitle string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT shop FROM payments
		 WHERE account_id = ? AND payment_date = ? AND charge_type = ? AND app_title = ?
		 ORDER BY shop`,
		accountID, date.UTC().Format(dateLayout), chargeType, appTitle)
	if err != nil {
		return nil, errors.Wrap(err, "distinct shops")
	}
	defer rows.Close()

	var shops []string
	for rows.Next() {
		var shop string
		if err := rows.Scan(&shop); err != nil {
			return nil, errors.Wrap(err, "scan shop")
		}
		shops = append(shops, shop)
	}
	return shops, errors.Wrap(rows.Err(), "distinct shops")
}

func (s *MySQLStore) CountShopCharges(ctx context.Context, accountID, shop string, from, to time.Time, chargeType, appTitle string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments
		 WHERE account_id = ? AND shop = ? AND payment_date BETWEEN ? AND ?
		   AND charge_type = ? AND app_title = ?`,
		accountID, shop, from.UTC().Format(dateLayout), to.UTC().Format(dateLayout),
		chargeType, appTitle).Scan(&count)
	return count, errors.Wrap(err, "count shop charges")
}

func (s *MySQLStore) GroupByShop(ctx context.Context, accountID string, from, to time.Time, chargeType, appTitle string) ([]models.ShopGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT shop, shop_country, app_title, payment_date, charge_type, revenue
		 FROM payments
		 WHERE account_id = ? AND payment_date BETWEEN ? AND ?
		   AND charge_type = ? AND app_title = ?
		 ORDER BY shop, payment_date`,
		accountID, from.UTC().Format(dateLayout), to.UTC().Format(dateLayout),
		chargeType, appTitle)
	if err != nil {
		return nil, errors.Wrap(err, "group by shop")
	}
	defer rows.Close()

	var groups []models.ShopGroup
	for rows.Next() {
		var r models.PaymentRecord
		if err := rows.Scan(&r.ShopID, &r.ShopCountry, &r.AppTitle, &r.PaymentDate, &r.ChargeType, &r.Revenue); err != nil {
			return nil, errors.Wrap(err, "scan payment record")
		}
		r.PaymentDate = r.PaymentDate.UTC()
		if n := len(groups); n > 0 && groups[n-1].Shop == r.ShopID {
			groups[n-1].Records = append(groups[n-1].Records, r)
			continue
		}
		groups = append(groups, models.ShopGroup{Shop: r.ShopID, Records: []models.PaymentRecord{r}})
	}
	return groups, errors.Wrap(rows.Err(), "group by shop")
}

func (s *MySQLStore) LatestMetricDate(ctx context.Context, accountID string) (time.Time, bool, error) {
	var latest sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(metric_date) FROM metrics WHERE account_id = ?`,
		accountID).Scan(&latest)
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "latest metric date")
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return latest.Time.UTC(), true, nil
}

func (s *MySQLStore) BulkInsertMetrics(ctx context.Context, accountID string, metrics []models.Metric) error {
	if len(metrics) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO metrics
		(account_id, metric_date, charge_type, app_title, revenue,
		 number_of_charges, number_of_shops, average_revenue_per_shop,
		 average_revenue_per_charge, revenue_churn, shop_churn,
		 lifetime_value, repeat_customers, repeat_vs_new_customers)
		VALUES `)
	args := make([]any, 0, len(metrics)*14)
	for i, m := range metrics {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, accountID, m.MetricDate.UTC().Format(dateLayout),
			m.ChargeType, m.AppTitle, m.Revenue, m.NumberOfCharges, m.NumberOfShops,
			m.AverageRevenuePerShop, m.AverageRevenuePerCharge, m.RevenueChurn,
			m.ShopChurn, m.LifetimeValue, m.RepeatCustomers, m.RepeatVsNewCustomers)
	}
	_, err := s.db.ExecContext(ctx, b.String(), args...)
	return errors.Wrap(err, "bulk insert metrics")
}
