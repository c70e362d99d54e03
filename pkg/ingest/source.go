package ingest

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	log "github.com/sirupsen/logrus"
)

// Source field names as they appear in partner payout exports.
const (
	FieldShop        = "shop"
	FieldShopCountry = "shop_country"
	FieldChargeTime  = "charge_creation_time"
	FieldChargeType  = "charge_type"
	FieldRevenue     = "partner_share"
	FieldAppTitle    = "app_title"
)

// Row is one raw export row, keyed by normalized source field name.
type Row map[string]string

// RowSource produces the stream of raw rows for one import run. The file
// and partner-API producers both implement it; the importer does not care
// which one it is fed.
type RowSource interface {
	Each(ctx context.Context, fn func(Row) error) error
}

// CSVFile reads a plain delimited export, or a zip archive of them.
type CSVFile struct {
	Path string
}

func (s *CSVFile) Each(ctx context.Context, fn func(Row) error) error {
	if strings.EqualFold(filepath.Ext(s.Path), ".zip") {
		return s.eachZipped(ctx, fn)
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return errors.Wrap(err, "open export")
	}
	defer f.Close()
	return eachCSVRow(ctx, f, fn)
}

func (s *CSVFile) eachZipped(ctx context.Context, fn func(Row) error) error {
	zr, err := zip.OpenReader(s.Path)
	if err != nil {
		return errors.Wrap(err, "open archive")
	}
	defer zr.Close()
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		log.WithField("entry", entry.Name).Info("extracting")
		rc, err := entry.Open()
		if err != nil {
			return errors.Wrapf(err, "open archive entry %s", entry.Name)
		}
		err = eachCSVRow(ctx, rc, fn)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func eachCSVRow(ctx context.Context, r io.Reader, fn func(Row) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "read header")
	}
	for i, h := range header {
		header[i] = normalizeHeader(h)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read row")
		}
		row := make(Row, len(header))
		for i, v := range record {
			if i < len(header) {
				row[header[i]] = strings.TrimSpace(v)
			}
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

// normalizeHeader turns an export column name into its field key, e.g.
// "Charge creation time" -> "charge_creation_time".
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.TrimSpace(strings.ToLower(h))
	return strings.ReplaceAll(h, " ", "_")
}
