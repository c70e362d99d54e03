package models

import (
	"time"
)

/*
LOAD → normalized payment rows as they are stored per account.
*/

// PaymentRecord is one normalized partner payout line. Records are immutable
// once stored; duplicates for the same (date, shop, charge type, app) are
// legal, e.g. multiple charges on the same day.
type PaymentRecord struct {
	ShopID      string
	ShopCountry string
	AppTitle    string // "Unknown" when the export leaves it blank
	PaymentDate time.Time
	ChargeType  string // canonical category, or the raw label when unmapped
	Revenue     float64
}

// DailyTotals is the per-(date, charge type, app) sum read back from the
// store: gross revenue, number of charge rows, number of distinct shops.
type DailyTotals struct {
	Revenue float64
	Charges int
	Shops   int
}

// ShopGroup is one shop's records inside a cohort window. Groupings are
// returned as a slice ordered by shop id so runs are reproducible.
type ShopGroup struct {
	Shop    string
	Records []PaymentRecord
}

/*
COMPUTE → one metric row per account × date × charge type × app title.
*/

// Metric holds the derived business metrics for a single day and segment.
// Rows are only ever appended forward; a day is never recomputed in place.
type Metric struct {
	MetricDate              time.Time
	ChargeType              string
	AppTitle                string
	Revenue                 float64
	NumberOfCharges         int
	NumberOfShops           int
	AverageRevenuePerShop   float64
	AverageRevenuePerCharge float64
	RevenueChurn            float64 // percentage, 0..100
	ShopChurn               float64 // percentage, 0..100
	LifetimeValue           float64
	RepeatCustomers         int
	RepeatVsNewCustomers    float64 // percentage
}

/*
STATUS → progress signal emitted after each chunk and each computed date.
*/

// RunStatus is the progress event handed to the reporting collaborator. The
// engine emits it instead of mutating any shared account state.
type RunStatus struct {
	Status    string
	Percent   int // 0..100
	UpdatedAt time.Time
}

/*
CONFIG → per-run parameters.
*/

// RunConfig carries the knobs for one import or calculation run.
type RunConfig struct {
	AccountID string
	ChunkSize int       // rows buffered per bulk insert, default 1000
	Workers   int       // segment workers per date, default 1 (sequential)
	Now       time.Time // injected clock for the 180-day fallback window
	Verbose   bool
}

// Normalize fills the defaults a zero value leaves open.
func (c RunConfig) Normalize() RunConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1000
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Now.IsZero() {
		c.Now = time.Now().UTC()
	}
	return c
}
