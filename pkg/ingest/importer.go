package ingest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/now"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"partnermetrics/pkg/database"
	"partnermetrics/pkg/lock"
	"partnermetrics/pkg/models"
	"partnermetrics/pkg/progress"
)

// RowError marks a row the normalizer dropped. Dropped rows are logged and
// skipped; they never abort a run.
type RowError struct {
	Field  string
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %s: %s", e.Field, e.Reason)
}

// chargeTimeLayouts covers the timestamp shapes seen in payout exports and
// the partner API.
var chargeTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Importer replaces the post-cutoff window of an account's payment records
// from a row source: delete after the cutoff, then normalize, classify and
// bulk-insert in fixed-size chunks.
type Importer struct {
	Store    database.Store
	Locks    *lock.AccountLocker
	Reporter progress.Reporter
}

// Run ingests every row the source yields. The cutoff is the latest
// calculated metric date; rows dated at or before it are never recreated,
// records after it are deleted up front so a retry with the same cutoff is
// idempotent.
func (imp *Importer) Run(ctx context.Context, cfg models.RunConfig, src RowSource) (err error) {
	cfg = cfg.Normalize()
	reporter := imp.Reporter
	if reporter == nil {
		reporter = progress.Nop{}
	}

	unlock := imp.Locks.Lock(cfg.AccountID)
	defer unlock()

	entry := log.WithFields(log.Fields{
		"account": cfg.AccountID,
		"run_id":  uuid.New().String(),
	})

	defer func() {
		if err != nil {
			reporter.Update(progress.Status("Failed", 100))
			entry.WithError(err).Error("import failed")
		}
	}()

	cutoff, ok, err := imp.Store.LatestMetricDate(ctx, cfg.AccountID)
	if err != nil {
		return errors.Wrap(err, "resolve cutoff")
	}
	if !ok {
		cutoff = time.Time{} // nothing calculated yet, every dated row passes
	}

	if err = imp.Store.DeleteAfter(ctx, cfg.AccountID, cutoff); err != nil {
		return err
	}

	chunk := make([]models.PaymentRecord, 0, cfg.ChunkSize)
	chunkCount := 0
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		if err := imp.Store.BulkInsert(ctx, cfg.AccountID, chunk); err != nil {
			return err
		}
		chunk = chunk[:0]
		chunkCount++
		reporter.Update(progress.Status(
			fmt.Sprintf("Importing (%d,000 rows processed)", chunkCount), 100))
		entry.WithField("chunk", chunkCount).Info("chunk inserted")
		return nil
	}

	err = src.Each(ctx, func(row Row) error {
		record, rowErr := normalizeRow(row, cutoff)
		if rowErr != nil {
			entry.WithError(rowErr).Debug("row skipped")
			return nil
		}
		if record == nil {
			return nil // at or before the cutoff
		}
		chunk = append(chunk, *record)
		if len(chunk) >= cfg.ChunkSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err = flush(); err != nil {
		return err
	}
	entry.WithField("chunks", chunkCount).Info("import finished")
	return nil
}

// normalizeRow maps a raw export row onto a PaymentRecord. It returns
// (nil, nil) for rows filtered by the cutoff and a RowError for rows that
// fail validation.
func normalizeRow(row Row, cutoff time.Time) (*models.PaymentRecord, *RowError) {
	rawDate := row[FieldChargeTime]
	if rawDate == "" {
		return nil, &RowError{Field: FieldChargeTime, Reason: "missing"}
	}
	paymentDate, ok := parseChargeTime(rawDate)
	if !ok {
		return nil, &RowError{Field: FieldChargeTime, Reason: "unparseable: " + rawDate}
	}
	if !paymentDate.After(cutoff) {
		return nil, nil
	}

	// Revenue never rejects a row on its own: a zero-revenue line with a
	// parseable in-window date is imported. Unparseable amounts read as 0.0.
	revenue, _ := strconv.ParseFloat(row[FieldRevenue], 64)

	appTitle := row[FieldAppTitle]
	if appTitle == "" {
		appTitle = "Unknown"
	}

	return &models.PaymentRecord{
		ShopID:      row[FieldShop],
		ShopCountry: row[FieldShopCountry],
		AppTitle:    appTitle,
		PaymentDate: paymentDate,
		ChargeType:  models.ClassifyChargeType(row[FieldChargeType]),
		Revenue:     revenue,
	}, nil
}

func parseChargeTime(raw string) (time.Time, bool) {
	for _, layout := range chargeTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return now.New(t.UTC()).BeginningOfDay(), true
		}
	}
	return time.Time{}, false
}
