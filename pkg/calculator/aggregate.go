package calculator

import (
	"context"
	"time"

	"partnermetrics/pkg/models"
)

// safeDiv divides with the zero denominator guarded up front, instead of
// dividing first and patching NaN afterwards. guarded reports whether the
// fallback was taken.
func safeDiv(numerator, denominator float64) (value float64, guarded bool) {
	if denominator == 0 {
		return 0.0, true
	}
	return numerator / denominator, false
}

// aggregate computes the metric row for one (date, charge type, app title)
// triple. A triple with no charges on the date yields nil: zero-count
// segments are suppressed, not emitted.
func (r *Runner) aggregate(ctx context.Context, cfg models.RunConfig, windowStart, date time.Time, chargeType, appTitle string) (*models.Metric, error) {
	totals, err := r.Store.DailyTotals(ctx, cfg.AccountID, date, chargeType, appTitle)
	if err != nil {
		return nil, err
	}
	if totals.Charges == 0 {
		return nil, nil
	}

	avgPerShop, _ := safeDiv(totals.Revenue, float64(totals.Shops))
	avgPerCharge, _ := safeDiv(totals.Revenue, float64(totals.Charges))

	m := &models.Metric{
		MetricDate:              date,
		ChargeType:              chargeType,
		AppTitle:                appTitle,
		Revenue:                 totals.Revenue,
		NumberOfCharges:         totals.Charges,
		NumberOfShops:           totals.Shops,
		AverageRevenuePerShop:   avgPerShop,
		AverageRevenuePerCharge: avgPerCharge,
	}

	switch chargeType {
	case models.ChargeTypeOneTime:
		if err := r.countRepeatCustomers(ctx, cfg, windowStart, date, chargeType, appTitle, m); err != nil {
			return nil, err
		}
	case models.ChargeTypeRecurring, models.ChargeTypeAffiliate:
		est, err := r.estimateChurn(ctx, cfg.AccountID, date, chargeType, appTitle)
		if err != nil {
			return nil, err
		}
		m.ShopChurn = est.ShopChurn
		m.RevenueChurn = est.RevenueChurn
		m.LifetimeValue = est.LifetimeValue
	}
	return m, nil
}

// countRepeatCustomers marks a shop as repeat when it has more than one
// charge for the segment inside [windowStart, date], i.e. within the
// current run's range up to today.
func (r *Runner) countRepeatCustomers(ctx context.Context, cfg models.RunConfig, windowStart, date time.Time, chargeType, appTitle string, m *models.Metric) error {
	shops, err := r.Store.DistinctShops(ctx, cfg.AccountID, date, chargeType, appTitle)
	if err != nil {
		return err
	}
	for _, shop := range shops {
		charges, err := r.Store.CountShopCharges(ctx, cfg.AccountID, shop, windowStart, date, chargeType, appTitle)
		if err != nil {
			return err
		}
		if charges > 1 {
			m.RepeatCustomers++
		}
	}
	fraction, _ := safeDiv(float64(m.RepeatCustomers), float64(m.NumberOfShops))
	m.RepeatVsNewCustomers = fraction * 100
	return nil
}
