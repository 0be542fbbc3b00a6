package core

const (
	BucketPaid    Bucket = "paid"
	BucketPending Bucket = "pending"
	BucketNone    Bucket = ""
)

// Bucket names the sub-total an eligible invoice contributes to.
type Bucket string

// IsEligible reports whether an invoice status counts toward revenue.
// Single source of truth: every mutation path consults this instead of
// comparing statuses inline.
func IsEligible(s InvoiceStatus) bool {
	return BucketFor(s) != BucketNone
}

// BucketFor maps a status to its revenue sub-bucket. Unmapped statuses
// (draft, void, anything unknown) contribute nothing.
func BucketFor(s InvoiceStatus) Bucket {
	switch s {
	case StatusPaid:
		return BucketPaid
	case StatusPending:
		return BucketPending
	}
	return BucketNone
}
