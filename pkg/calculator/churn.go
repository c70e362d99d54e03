package calculator

import (
	"context"
	"time"

	"partnermetrics/pkg/models"
)

// Cohort windows: a shop should be charged every 30 days, so the previous
// cohort is [date-59, date-30] and the current one [date-29, date], both
// inclusive. Frozen charges mean churn from payment data alone is never
// 100% accurate.
const (
	previousCohortStart = -59
	previousCohortEnd   = -30
	currentCohortStart  = -29
)

type churnEstimate struct {
	ShopChurn     float64 // percentage
	RevenueChurn  float64 // percentage
	LifetimeValue float64
}

// estimateChurn compares the previous cohort window against the current
// one. With no prior cohort there is no churn rate to compute and the zero
// estimate is returned; that is policy, not a missing case.
func (r *Runner) estimateChurn(ctx context.Context, accountID string, date time.Time, chargeType, appTitle string) (churnEstimate, error) {
	previous, err := r.Store.GroupByShop(ctx, accountID,
		date.AddDate(0, 0, previousCohortStart), date.AddDate(0, 0, previousCohortEnd),
		chargeType, appTitle)
	if err != nil {
		return churnEstimate{}, err
	}
	if len(previous) == 0 {
		return churnEstimate{}, nil
	}

	current, err := r.Store.GroupByShop(ctx, accountID,
		date.AddDate(0, 0, currentCohortStart), date,
		chargeType, appTitle)
	if err != nil {
		return churnEstimate{}, err
	}
	active := make(map[string]bool, len(current))
	for _, g := range current {
		active[g.Shop] = true
	}

	var churned []models.ShopGroup
	for _, g := range previous {
		if !active[g.Shop] {
			churned = append(churned, g)
		}
	}

	shopChurn, _ := safeDiv(float64(len(churned)), float64(len(previous)))

	churnedSum := 0.0
	for _, g := range churned {
		for _, record := range g.Records {
			churnedSum += record.Revenue
		}
	}
	previousSum := 0.0
	for _, g := range previous {
		for _, record := range g.Records {
			previousSum += record.Revenue
		}
	}
	revenueChurn, _ := safeDiv(churnedSum, previousSum)

	est := churnEstimate{
		ShopChurn:    shopChurn * 100,
		RevenueChurn: revenueChurn * 100,
	}
	// LTV divides by the churn fraction, so the guard runs on the fraction
	// before any percentage scaling.
	if shopChurn != 0.0 {
		est.LifetimeValue = (previousSum / float64(len(previous))) / shopChurn
	}
	return est, nil
}
