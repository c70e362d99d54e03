package calculator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"partnermetrics/pkg/database"
	"partnermetrics/pkg/lock"
	"partnermetrics/pkg/models"
	"partnermetrics/pkg/progress"
)

// fallbackWindowDays is how far back the first run reaches when an account
// has neither metrics nor payments to anchor on.
const fallbackWindowDays = 180

// Runner drives the incremental metric sweep for one account: resolve the
// date window, aggregate every (charge type, app title) pair per day, and
// persist each day's rows in one bulk write.
type Runner struct {
	Store    database.Store
	Locks    *lock.AccountLocker
	Reporter progress.Reporter
}

// Run computes metrics from the resume point up to the last full payment
// day. An account with no payment data is a silent no-op. Any storage error
// aborts the remaining dates; already-written days stay.
func (r *Runner) Run(ctx context.Context, cfg models.RunConfig) (err error) {
	cfg = cfg.Normalize()
	reporter := r.Reporter
	if reporter == nil {
		reporter = progress.Nop{}
	}

	unlock := r.Locks.Lock(cfg.AccountID)
	defer unlock()

	entry := log.WithFields(log.Fields{
		"account": cfg.AccountID,
		"run_id":  uuid.New().String(),
	})

	defer func() {
		if err != nil {
			reporter.Update(progress.Status("Failed", 100))
			entry.WithError(err).Error("metric calculation failed")
		}
	}()

	reporter.Update(progress.Status("Calculating metrics (Warming up)", 0))

	from, to, ok, err := r.resolveWindow(ctx, cfg)
	if err != nil {
		return err
	}
	if !ok {
		entry.Info("no payment data, nothing to calculate")
		reporter.Update(progress.Status("Complete", 100))
		return nil
	}

	totalDays := int(to.Sub(from).Hours() / 24)
	if totalDays < 1 {
		totalDays = 1
	}
	entry.WithFields(log.Fields{
		"from": from.Format("2006-01-02"),
		"to":   to.Format("2006-01-02"),
	}).Info("calculating")

	daysProcessed := 0
	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		// Cooperative cancellation between dates, never mid-date.
		if err = ctx.Err(); err != nil {
			return err
		}
		var metrics []models.Metric
		metrics, err = r.computeDate(ctx, cfg, from, date)
		if err != nil {
			return errors.Wrapf(err, "compute %s", date.Format("2006-01-02"))
		}
		if err = r.Store.BulkInsertMetrics(ctx, cfg.AccountID, metrics); err != nil {
			return err
		}
		if cfg.Verbose {
			entry.WithFields(log.Fields{
				"date": date.Format("2006-01-02"),
				"rows": len(metrics),
			}).Info("date computed")
		}
		daysProcessed++
		percent := int(math.Round(float64(daysProcessed) / float64(totalDays) * 100))
		if percent > 100 {
			percent = 100 // inclusive sweep covers totalDays+1 dates
		}
		reporter.Update(progress.Status(
			fmt.Sprintf("Calculating metrics (%s processed)", date.Format("2006-01-02")), percent))
	}

	reporter.Update(progress.Status("Complete", 100))
	return nil
}

// resolveWindow picks the run's date range: resume after the latest metric,
// else start at the earliest payment, else 180 days before now. The most
// recent payment day is excluded since the export day may be partial.
// ok is false when the account has no payment data at all.
func (r *Runner) resolveWindow(ctx context.Context, cfg models.RunConfig) (from, to time.Time, ok bool, err error) {
	latestMetric, haveMetric, err := r.Store.LatestMetricDate(ctx, cfg.AccountID)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	switch {
	case haveMetric:
		from = latestMetric.AddDate(0, 0, 1)
	default:
		earliest, havePayment, err := r.Store.MinPaymentDate(ctx, cfg.AccountID)
		if err != nil {
			return time.Time{}, time.Time{}, false, err
		}
		if havePayment {
			from = earliest
		} else {
			n := cfg.Now.UTC()
			from = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC).
				AddDate(0, 0, -fallbackWindowDays)
		}
	}

	latestPayment, havePayment, err := r.Store.MaxPaymentDate(ctx, cfg.AccountID)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if !havePayment {
		return from, time.Time{}, false, nil
	}
	return from, latestPayment.AddDate(0, 0, -1), true, nil
}

type segment struct {
	chargeType string
	appTitle   string
}

// computeDate aggregates every (charge type, app title) pair for one date,
// spreading the pairs over a bounded worker pool. Result order stays fixed
// (charge-type sweep order, then sorted app titles) regardless of workers.
func (r *Runner) computeDate(ctx context.Context, cfg models.RunConfig, windowStart, date time.Time) ([]models.Metric, error) {
	var segments []segment
	for _, chargeType := range models.ChargeTypes {
		titles, err := r.Store.DistinctAppTitles(ctx, cfg.AccountID, chargeType)
		if err != nil {
			return nil, err
		}
		for _, title := range titles {
			segments = append(segments, segment{chargeType: chargeType, appTitle: title})
		}
	}

	results := make([]*models.Metric, len(segments))
	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	sem := make(chan struct{}, cfg.Workers)
	for i, seg := range segments {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, seg segment) {
			defer wg.Done()
			defer func() { <-sem }()
			if poolCtx.Err() != nil {
				return
			}
			m, err := r.aggregate(poolCtx, cfg, windowStart, date, seg.chargeType, seg.appTitle)
			if err != nil {
				errOnce.Do(func() {
					firstErr = err
					cancel()
				})
				return
			}
			results[i] = m
		}(i, seg)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	var metrics []models.Metric
	for _, m := range results {
		if m != nil {
			metrics = append(metrics, *m)
		}
	}
	return metrics, nil
}
