package recalc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"revenued/internal/core"
	"revenued/internal/metrics"
)

// Store is the slice of the repository the rebuilder needs: a full
// scan of one month's invoices and an absolute overwrite of its bucket.
type Store interface {
	ListInvoicesByPeriod(ctx context.Context, p core.Period) ([]core.InvoiceSnapshot, error)
	ReplaceBucket(ctx context.Context, p core.Period, count int64, totals core.BucketTotals, source core.CalculationSource) (core.RevenueBucket, error)
}

// Rebuilder recomputes bucket totals from the invoice replica. The
// incremental event path can drift after a clamped withdrawal or a
// missed delivery; a rebuild converges the bucket back to the ground
// truth.
type Rebuilder struct {
	store Store
}

func NewRebuilder(store Store) *Rebuilder {
	return &Rebuilder{store: store}
}

// RebuildPeriod recomputes one month from scratch and overwrites its
// bucket. Ineligible invoices are scanned but contribute nothing.
func (r *Rebuilder) RebuildPeriod(ctx context.Context, p core.Period) (core.RevenueBucket, error) {
	invoices, err := r.store.ListInvoicesByPeriod(ctx, p)
	if err != nil {
		metrics.Recalculations.WithLabelValues("error").Inc()
		return core.RevenueBucket{}, fmt.Errorf("rebuild %s: %w", p.Key(), err)
	}

	var (
		count  int64
		totals core.BucketTotals
	)
	for _, inv := range invoices {
		if !core.IsEligible(inv.Status) {
			continue
		}
		count++
		totals = core.ApplyDelta(totals, inv.Status, inv.Amount.Cents)
	}

	bucket, err := r.store.ReplaceBucket(ctx, p, count, totals, core.SourceRecalculation)
	if err != nil {
		metrics.Recalculations.WithLabelValues("error").Inc()
		return core.RevenueBucket{}, fmt.Errorf("rebuild %s: %w", p.Key(), err)
	}
	metrics.Recalculations.WithLabelValues("success").Inc()

	slog.InfoContext(ctx, "Rebuilt revenue bucket",
		"period", p.Key(),
		"invoice_count", count,
		"total_cents", totals.TotalCents())

	return bucket, nil
}

// RebuildRange rebuilds every month from from to to inclusive. The
// first failure stops the sweep.
func (r *Rebuilder) RebuildRange(ctx context.Context, from, to core.Period) ([]core.RevenueBucket, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("rebuild range: %s is after %s", from.Key(), to.Key())
	}

	var out []core.RevenueBucket
	for p := from; !to.Before(p); p = p.Next() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		bucket, err := r.RebuildPeriod(ctx, p)
		if err != nil {
			return out, err
		}
		out = append(out, bucket)
	}
	return out, nil
}

// RebuildYear rebuilds all twelve months of a calendar year.
func (r *Rebuilder) RebuildYear(ctx context.Context, year int) ([]core.RevenueBucket, error) {
	from := core.Period{Year: year, Month: time.January}
	to := core.Period{Year: year, Month: time.December}
	return r.RebuildRange(ctx, from, to)
}

// RebuildRecent rebuilds the current month and the months months before
// it. The worker runs this on a cron cadence.
func (r *Rebuilder) RebuildRecent(ctx context.Context, now time.Time, months int) ([]core.RevenueBucket, error) {
	to, err := core.PeriodOf(now)
	if err != nil {
		return nil, fmt.Errorf("rebuild recent: %w", err)
	}
	from := to
	for i := 0; i < months; i++ {
		from = from.Prev()
	}
	return r.RebuildRange(ctx, from, to)
}
