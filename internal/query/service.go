package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"revenued/internal/cache"
	"revenued/internal/core"
)

// maxRangeMonths caps how many months a single query may span.
const maxRangeMonths = 120

var ErrInvalidRange = errors.New("invalid period range")

// BucketReader is the read-only slice of the repository the query
// surface needs.
type BucketReader interface {
	FindByPeriod(ctx context.Context, p core.Period) (*core.RevenueBucket, error)
	ListBucketsBetween(ctx context.Context, from, to core.Period) ([]core.RevenueBucket, error)
}

// RangeStats is one range query result: the stored buckets plus the
// derived aggregates over them. Months with no bucket simply do not
// appear.
type RangeStats struct {
	From         core.Period
	To           core.Period
	Buckets      []core.RevenueBucket
	InvoiceCount int64
	TotalCents   int64
	PaidCents    int64
	PendingCents int64
	// AverageCents is the mean invoice amount over the range, zero
	// when the range holds no invoices.
	AverageCents int64
}

// Service answers range queries over revenue buckets with a small
// read-through cache in front of the store.
type Service struct {
	reader BucketReader
	cache  *cache.LRUCache[RangeStats]
}

func NewService(reader BucketReader, maxCacheSize int, cacheTTL time.Duration) *Service {
	return &Service{
		reader: reader,
		cache:  cache.NewLRUCache[RangeStats](maxCacheSize, cacheTTL),
	}
}

// Range returns buckets and aggregates for from..to inclusive.
func (s *Service) Range(ctx context.Context, from, to core.Period) (RangeStats, error) {
	if err := from.Validate(); err != nil {
		return RangeStats{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	if err := to.Validate(); err != nil {
		return RangeStats{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	if to.Before(from) {
		return RangeStats{}, fmt.Errorf("%w: %s is after %s", ErrInvalidRange, from.Key(), to.Key())
	}
	if monthsBetween(from, to) > maxRangeMonths {
		return RangeStats{}, fmt.Errorf("%w: span exceeds %d months", ErrInvalidRange, maxRangeMonths)
	}

	key := from.Key() + ".." + to.Key()
	if stats, ok := s.cache.Get(key); ok {
		return stats, nil
	}

	buckets, err := s.reader.ListBucketsBetween(ctx, from, to)
	if err != nil {
		return RangeStats{}, fmt.Errorf("range query: %w", err)
	}

	stats := RangeStats{From: from, To: to, Buckets: buckets}
	for _, b := range buckets {
		stats.InvoiceCount += b.InvoiceCount
		stats.TotalCents += b.TotalAmount.Cents
		stats.PaidCents += b.TotalPaid.Cents
		stats.PendingCents += b.TotalPending.Cents
	}
	if stats.InvoiceCount > 0 {
		stats.AverageCents = stats.TotalCents / stats.InvoiceCount
	}

	s.cache.Set(key, stats)
	return stats, nil
}

// Month returns a single month's bucket, or nil when the month has no
// revenue yet. Single-month lookups bypass the cache.
func (s *Service) Month(ctx context.Context, p core.Period) (*core.RevenueBucket, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRange, err)
	}
	b, err := s.reader.FindByPeriod(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("month query: %w", err)
	}
	return b, nil
}

// StartCleanup evicts expired cache entries on a fixed cadence until
// the context ends.
func (s *Service) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.cache.CleanExpired(); removed > 0 {
					slog.DebugContext(ctx, "Evicted expired query cache entries", "removed", removed)
				}
			}
		}
	}()
}

func monthsBetween(from, to core.Period) int {
	return (to.Year-from.Year)*12 + int(to.Month) - int(from.Month) + 1
}
