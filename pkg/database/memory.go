package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"partnermetrics/pkg/models"
)

// MemoryStore is an in-memory Store with deterministic ordering. It backs
// the engine tests and small local runs without a MySQL instance.
type MemoryStore struct {
	mu       sync.Mutex
	payments map[string][]models.PaymentRecord
	metrics  map[string][]models.Metric
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments: make(map[string][]models.PaymentRecord),
		metrics:  make(map[string][]models.Metric),
	}
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return day(a).Equal(day(b))
}

func inRange(t, from, to time.Time) bool {
	d := day(t)
	return !d.Before(day(from)) && !d.After(day(to))
}

func (s *MemoryStore) DeleteAfter(_ context.Context, accountID string, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.payments[accountID][:0]
	for _, r := range s.payments[accountID] {
		if !day(r.PaymentDate).After(day(cutoff)) {
			kept = append(kept, r)
		}
	}
	s.payments[accountID] = kept
	return nil
}

func (s *MemoryStore) BulkInsert(_ context.Context, accountID string, records []models.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[accountID] = append(s.payments[accountID], records...)
	return nil
}

func (s *MemoryStore) MinPaymentDate(_ context.Context, accountID string) (time.Time, bool, error) {
	return s.paymentBound(accountID, func(cur, cand time.Time) bool { return cand.Before(cur) })
}

func (s *MemoryStore) MaxPaymentDate(_ context.Context, accountID string) (time.Time, bool, error) {
	return s.paymentBound(accountID, func(cur, cand time.Time) bool { return cand.After(cur) })
}

func (s *MemoryStore) paymentBound(accountID string, better func(cur, cand time.Time) bool) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.payments[accountID]
	if len(records) == 0 {
		return time.Time{}, false, nil
	}
	bound := day(records[0].PaymentDate)
	for _, r := range records[1:] {
		if d := day(r.PaymentDate); better(bound, d) {
			bound = d
		}
	}
	return bound, true, nil
}

func (s *MemoryStore) DistinctAppTitles(_ context.Context, accountID, chargeType string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	for _, r := range s.payments[accountID] {
		if r.ChargeType == chargeType {
			seen[r.AppTitle] = true
		}
	}
	return sortedKeys(seen), nil
}

func (s *MemoryStore) DailyTotals(_ context.Context, accountID string, date time.Time, chargeType, appTitle string) (models.DailyTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var totals models.DailyTotals
	shops := map[string]bool{}
	for _, r := range s.payments[accountID] {
		if sameDay(r.PaymentDate, date) && r.ChargeType == chargeType && r.AppTitle == appTitle {
			totals.Revenue += r.Revenue
			totals.Charges++
			shops[r.ShopID] = true
		}
	}
	totals.Shops = len(shops)
	return totals, nil
}

func (s *MemoryStore) DistinctShops(_ context.Context, accountID string, date time.Time, chargeType, appTitle string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	for _, r := range s.payments[accountID] {
		if sameDay(r.PaymentDate, date) && r.ChargeType == chargeType && r.AppTitle == appTitle {
			seen[r.ShopID] = true
		}
	}
	return sortedKeys(seen), nil
}

func (s *MemoryStore) CountShopCharges(_ context.Context, accountID, shop string, from, to time.Time, chargeType, appTitle string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, r := range s.payments[accountID] {
		if r.ShopID == shop && inRange(r.PaymentDate, from, to) &&
			r.ChargeType == chargeType && r.AppTitle == appTitle {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) GroupByShop(_ context.Context, accountID string, from, to time.Time, chargeType, appTitle string) ([]models.ShopGroup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byShop := map[string][]models.PaymentRecord{}
	for _, r := range s.payments[accountID] {
		if inRange(r.PaymentDate, from, to) && r.ChargeType == chargeType && r.AppTitle == appTitle {
			byShop[r.ShopID] = append(byShop[r.ShopID], r)
		}
	}
	groups := make([]models.ShopGroup, 0, len(byShop))
	for _, shop := range sortedKeys(byShop) {
		records := byShop[shop]
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].PaymentDate.Before(records[j].PaymentDate)
		})
		groups = append(groups, models.ShopGroup{Shop: shop, Records: records})
	}
	return groups, nil
}

func (s *MemoryStore) LatestMetricDate(_ context.Context, accountID string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.metrics[accountID]
	if len(rows) == 0 {
		return time.Time{}, false, nil
	}
	latest := day(rows[0].MetricDate)
	for _, m := range rows[1:] {
		if d := day(m.MetricDate); d.After(latest) {
			latest = d
		}
	}
	return latest, true, nil
}

func (s *MemoryStore) BulkInsertMetrics(_ context.Context, accountID string, metrics []models.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[accountID] = append(s.metrics[accountID], metrics...)
	return nil
}

// Metrics returns a copy of the stored metric rows, for tests.
func (s *MemoryStore) Metrics(accountID string) []models.Metric {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Metric, len(s.metrics[accountID]))
	copy(out, s.metrics[accountID])
	return out
}

// Payments returns a copy of the stored payment records, for tests.
func (s *MemoryStore) Payments(accountID string) []models.PaymentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PaymentRecord, len(s.payments[accountID]))
	copy(out, s.payments[accountID])
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
