package core

// BucketTotals are the paid/pending sub-totals of one period.
type BucketTotals struct {
	PaidCents    int64
	PendingCents int64
}

// TotalCents is always the sum of the two sub-buckets.
func (t BucketTotals) TotalCents() int64 {
	return t.PaidCents + t.PendingCents
}

// ApplyDelta adds a signed amount to the sub-bucket selected by the
// status. Ineligible statuses leave the totals untouched. The same
// function covers additions (new invoice), removals (negated delta)
// and amount diffs.
func ApplyDelta(current BucketTotals, status InvoiceStatus, deltaCents int64) BucketTotals {
	switch BucketFor(status) {
	case BucketPaid:
		current.PaidCents += deltaCents
	case BucketPending:
		current.PendingCents += deltaCents
	}
	return current
}
