// Package reconcile turns invoice lifecycle events into atomic revenue
// bucket mutations. The Reconciler is the only writer of bucket state.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"revenued/internal/core"
	"revenued/internal/log"
	"revenued/internal/metrics"
)

// ErrInvalidEvent marks events that can never be applied; the dispatcher
// drops them instead of requeueing.
var ErrInvalidEvent = errors.New("invalid invoice event")

// Reconciler applies one lifecycle event at a time. It does not retry:
// store failures propagate to the caller, and retry policy belongs to
// the dispatcher and transport layer.
type Reconciler struct {
	buckets BucketStore
	replica InvoiceReplica
	ledger  EventLedger
}

// New wires the orchestrator. replica and ledger may be nil; the bucket
// store is mandatory.
func New(buckets BucketStore, replica InvoiceReplica, ledger EventLedger) *Reconciler {
	return &Reconciler{
		buckets: buckets,
		replica: replica,
		ledger:  ledger,
	}
}

// Reconcile handles one event end to end: dedupe, replica upkeep, and
// the bucket mutation derived from the operation.
func (r *Reconciler) Reconcile(ctx context.Context, ev core.InvoiceEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	if r.ledger != nil {
		fresh, err := r.ledger.MarkProcessed(ctx, ev.EventID, ev.Timestamp)
		if err != nil {
			return fmt.Errorf("mark event processed: %w", err)
		}
		if !fresh {
			metrics.EventsDuplicate.Inc()
			slog.InfoContext(ctx, "Skipping duplicate event",
				log.FieldEventID, ev.EventID,
				log.FieldInvoiceID, ev.Invoice.ID,
				log.FieldOperation, string(ev.Operation))
			return nil
		}
	}

	err := r.apply(ctx, ev)
	if err != nil && r.ledger != nil {
		// Let the bus redeliver the event after a transient failure.
		if ferr := r.ledger.ForgetProcessed(ctx, ev.EventID); ferr != nil {
			slog.ErrorContext(ctx, "Failed to release event for redelivery",
				log.FieldEventID, ev.EventID,
				log.FieldError, ferr,
				log.FieldErrorType, log.ErrorTypeDatabase)
		}
	}
	return err
}

func (r *Reconciler) apply(ctx context.Context, ev core.InvoiceEvent) error {
	switch ev.Operation {
	case core.OperationCreated:
		return r.applyCreated(ctx, ev)
	case core.OperationUpdated:
		return r.applyUpdated(ctx, ev)
	case core.OperationDeleted:
		return r.applyDeleted(ctx, ev)
	}
	return fmt.Errorf("%w: operation %q", ErrInvalidEvent, ev.Operation)
}

func (r *Reconciler) applyCreated(ctx context.Context, ev core.InvoiceEvent) error {
	inv := ev.Invoice
	if err := r.saveReplica(ctx, inv); err != nil {
		return err
	}

	if !core.IsEligible(inv.Status) {
		// No empty bucket for ineligible invoices.
		slog.DebugContext(ctx, "Created invoice is not revenue-eligible",
			log.FieldEventID, ev.EventID,
			log.FieldInvoiceID, inv.ID)
		return nil
	}

	period, err := core.PeriodOf(inv.Date)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	delta := core.ApplyDelta(core.BucketTotals{}, inv.Status, inv.Amount.Cents)
	mut := core.BucketMutation{
		CountDelta:   1,
		PaidDelta:    delta.PaidCents,
		PendingDelta: delta.PendingCents,
		Source:       core.SourceInvoiceEvent,
	}
	return r.mutate(ctx, period, mut, ev)
}

func (r *Reconciler) applyUpdated(ctx context.Context, ev core.InvoiceEvent) error {
	inv, prev := ev.Invoice, *ev.Previous
	if err := r.saveReplica(ctx, inv); err != nil {
		return err
	}

	change := core.DetectChange(prev, inv)
	if change.Kind == core.ChangeNone {
		slog.DebugContext(ctx, "Update does not affect revenue",
			log.FieldEventID, ev.EventID,
			log.FieldInvoiceID, inv.ID)
		return nil
	}

	period, err := core.PeriodOf(inv.Date)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	var mut core.BucketMutation
	switch change.Kind {
	case core.ChangeAmount:
		existing, err := r.findBucket(ctx, period)
		if err != nil {
			return err
		}
		if existing == nil {
			// A consistent system always has the bucket by now; fall back
			// to treating the event as a fresh contribution.
			slog.WarnContext(ctx, "Bucket missing for amount change, applying full contribution",
				log.FieldEventID, ev.EventID,
				log.FieldInvoiceID, inv.ID,
				log.FieldPeriod, period.Key())
			mut = contribution(1, inv)
			break
		}
		delta := core.ApplyDelta(core.BucketTotals{}, inv.Status, change.DeltaCents)
		mut = core.BucketMutation{
			PaidDelta:    delta.PaidCents,
			PendingDelta: delta.PendingCents,
			Source:       core.SourceInvoiceEvent,
		}
		r.flagIfClamped(ctx, existing, mut, ev)

	case core.ChangeBecameEligible:
		mut = contribution(1, inv)

	case core.ChangeBecameIneligible:
		existing, err := r.findBucket(ctx, period)
		if err != nil {
			return err
		}
		if existing == nil {
			slog.ErrorContext(ctx, "Bucket missing for eligibility removal, skipping",
				log.FieldEventID, ev.EventID,
				log.FieldInvoiceID, inv.ID,
				log.FieldPeriod, period.Key(),
				log.FieldErrorType, log.ErrorTypeIntegrity)
			return nil
		}
		mut = withdrawal(prev)
		r.flagIfClamped(ctx, existing, mut, ev)

	case core.ChangeBucketMoved:
		existing, err := r.findBucket(ctx, period)
		if err != nil {
			return err
		}
		if existing == nil {
			slog.WarnContext(ctx, "Bucket missing for bucket move, applying full contribution",
				log.FieldEventID, ev.EventID,
				log.FieldInvoiceID, inv.ID,
				log.FieldPeriod, period.Key())
			mut = contribution(1, inv)
			break
		}
		// Count unchanged: the previous amount leaves one sub-bucket and
		// the current amount enters the other.
		totals := core.ApplyDelta(core.BucketTotals{}, prev.Status, -prev.Amount.Cents)
		totals = core.ApplyDelta(totals, inv.Status, inv.Amount.Cents)
		mut = core.BucketMutation{
			PaidDelta:    totals.PaidCents,
			PendingDelta: totals.PendingCents,
			Source:       core.SourceInvoiceEvent,
		}
		r.flagIfClamped(ctx, existing, mut, ev)
	}

	slog.InfoContext(ctx, "Applying invoice update",
		log.FieldEventID, ev.EventID,
		log.FieldInvoiceID, inv.ID,
		log.FieldPeriod, period.Key(),
		log.FieldChange, change.Kind.String())
	return r.mutate(ctx, period, mut, ev)
}

func (r *Reconciler) applyDeleted(ctx context.Context, ev core.InvoiceEvent) error {
	prev := *ev.Previous
	if r.replica != nil {
		if err := r.replica.RemoveInvoice(ctx, ev.Invoice.ID); err != nil {
			return fmt.Errorf("remove invoice replica: %w", err)
		}
	}

	if !core.IsEligible(prev.Status) {
		return nil
	}

	period, err := core.PeriodOf(prev.Date)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}

	existing, err := r.findBucket(ctx, period)
	if err != nil {
		return err
	}
	if existing == nil {
		slog.ErrorContext(ctx, "Bucket missing for deleted invoice, skipping",
			log.FieldEventID, ev.EventID,
			log.FieldInvoiceID, ev.Invoice.ID,
			log.FieldPeriod, period.Key(),
			log.FieldErrorType, log.ErrorTypeIntegrity)
		return nil
	}

	mut := withdrawal(prev)
	r.flagIfClamped(ctx, existing, mut, ev)
	return r.mutate(ctx, period, mut, ev)
}

// contribution is the mutation for a fresh eligible invoice.
func contribution(count int64, inv core.InvoiceSnapshot) core.BucketMutation {
	delta := core.ApplyDelta(core.BucketTotals{}, inv.Status, inv.Amount.Cents)
	return core.BucketMutation{
		CountDelta:   count,
		PaidDelta:    delta.PaidCents,
		PendingDelta: delta.PendingCents,
		Source:       core.SourceInvoiceEvent,
	}
}

// withdrawal is the mutation removing a previously counted invoice.
func withdrawal(prev core.InvoiceSnapshot) core.BucketMutation {
	delta := core.ApplyDelta(core.BucketTotals{}, prev.Status, -prev.Amount.Cents)
	return core.BucketMutation{
		CountDelta:   -1,
		PaidDelta:    delta.PaidCents,
		PendingDelta: delta.PendingCents,
		Source:       core.SourceInvoiceEvent,
	}
}

func (r *Reconciler) saveReplica(ctx context.Context, inv core.InvoiceSnapshot) error {
	if r.replica == nil {
		return nil
	}
	if err := r.replica.SaveInvoice(ctx, inv); err != nil {
		return fmt.Errorf("save invoice replica: %w", err)
	}
	return nil
}

func (r *Reconciler) findBucket(ctx context.Context, p core.Period) (*core.RevenueBucket, error) {
	b, err := r.buckets.FindByPeriod(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("find bucket %s: %w", p.Key(), err)
	}
	return b, nil
}

func (r *Reconciler) mutate(ctx context.Context, p core.Period, mut core.BucketMutation, ev core.InvoiceEvent) error {
	updated, err := r.buckets.Apply(ctx, p, mut)
	if err != nil {
		return fmt.Errorf("apply mutation %s: %w", p.Key(), err)
	}
	if err := updated.CheckInvariants(); err != nil {
		slog.ErrorContext(ctx, "Bucket invariant broken after mutation",
			log.FieldEventID, ev.EventID,
			log.FieldPeriod, p.Key(),
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeIntegrity)
	}
	return nil
}

// flagIfClamped logs at error severity when a mutation would push any
// bucket field below zero. The store clamps at zero as a last resort;
// the condition itself must never pass silently.
func (r *Reconciler) flagIfClamped(ctx context.Context, existing *core.RevenueBucket, mut core.BucketMutation, ev core.InvoiceEvent) {
	count := existing.InvoiceCount + mut.CountDelta
	paid := existing.TotalPaid.Cents + mut.PaidDelta
	pending := existing.TotalPending.Cents + mut.PendingDelta
	if count >= 0 && paid >= 0 && pending >= 0 {
		return
	}
	slog.ErrorContext(ctx, "Mutation would drive bucket negative, clamping at zero",
		log.FieldEventID, ev.EventID,
		log.FieldInvoiceID, ev.Invoice.ID,
		log.FieldPeriod, existing.Period.Key(),
		log.FieldCount, count,
		log.FieldErrorType, log.ErrorTypeIntegrity)
}
