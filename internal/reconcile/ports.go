package reconcile

import (
	"context"
	"time"

	"revenued/internal/core"
)

// Ports for the persistence side of reconciliation.
type (
	// BucketStore is the single write path for revenue bucket state.
	// Apply must be atomic with respect to one period row: the store
	// computes the new totals server-side in a single upsert so that
	// concurrent mutations of the same period never lose an update.
	BucketStore interface {
		// FindByPeriod returns nil (no error) when no bucket exists yet.
		FindByPeriod(ctx context.Context, p core.Period) (*core.RevenueBucket, error)

		// Apply upserts the period row with the signed patch and returns
		// the post-mutation bucket.
		Apply(ctx context.Context, p core.Period, m core.BucketMutation) (core.RevenueBucket, error)
	}

	// InvoiceReplica mirrors invoice snapshots locally so the batch
	// recalculation path has a full-scan source.
	InvoiceReplica interface {
		SaveInvoice(ctx context.Context, inv core.InvoiceSnapshot) error
		RemoveInvoice(ctx context.Context, invoiceID string) error
	}

	// EventLedger remembers processed event IDs so a redelivering bus
	// cannot double-count totals.
	EventLedger interface {
		// MarkProcessed records the event ID; false means it was seen before.
		MarkProcessed(ctx context.Context, eventID string, at time.Time) (bool, error)

		// ForgetProcessed drops the record so a failed event can be redelivered.
		ForgetProcessed(ctx context.Context, eventID string) error
	}
)
