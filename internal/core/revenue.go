package core

import (
	"errors"
	"fmt"
	"time"
)

const (
	SourceTemplate      CalculationSource = "template"
	SourceInvoiceEvent  CalculationSource = "invoice_event"
	SourceRecalculation CalculationSource = "recalculation"
)

type (
	// CalculationSource records how a bucket's numbers were produced.
	CalculationSource string

	// RevenueBucket is the per-period aggregate root. At most one exists
	// per period; it is created lazily on the first eligible contribution
	// and never deleted on the event path.
	RevenueBucket struct {
		ID           int64
		Period       Period
		InvoiceCount int64
		TotalAmount  Money
		TotalPaid    Money
		TotalPending Money
		Source       CalculationSource
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	// BucketMutation is a signed patch against one period's aggregate,
	// applied atomically by the store.
	BucketMutation struct {
		CountDelta   int64
		PaidDelta    int64
		PendingDelta int64
		Source       CalculationSource
	}
)

// ErrIntegrity marks a mutation that would violate a bucket invariant.
// Such conditions are clamped at the store as a last resort, but must
// be surfaced loudly rather than silently normalized away.
var ErrIntegrity = errors.New("revenue integrity violation")

// Totals returns the bucket's sub-totals as a calculator value.
func (b RevenueBucket) Totals() BucketTotals {
	return BucketTotals{PaidCents: b.TotalPaid.Cents, PendingCents: b.TotalPending.Cents}
}

// CheckInvariants verifies the sum-of-buckets and non-negativity rules.
func (b RevenueBucket) CheckInvariants() error {
	if b.TotalAmount.Cents != b.TotalPaid.Cents+b.TotalPending.Cents {
		return fmt.Errorf("%w: total %d != paid %d + pending %d for %s",
			ErrIntegrity, b.TotalAmount.Cents, b.TotalPaid.Cents, b.TotalPending.Cents, b.Period.Key())
	}
	if b.InvoiceCount < 0 || b.TotalAmount.Cents < 0 || b.TotalPaid.Cents < 0 || b.TotalPending.Cents < 0 {
		return fmt.Errorf("%w: negative field for %s", ErrIntegrity, b.Period.Key())
	}
	return nil
}

// IsZero reports whether applying the mutation would change nothing.
func (m BucketMutation) IsZero() bool {
	return m.CountDelta == 0 && m.PaidDelta == 0 && m.PendingDelta == 0
}
