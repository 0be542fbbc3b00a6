package core

const (
	// ChangeNone: neither totals nor count are affected.
	ChangeNone ChangeKind = iota
	// ChangeAmount: same revenue bucket, amount differs by Change.DeltaCents.
	ChangeAmount
	// ChangeBecameEligible: ineligible before, eligible now. Equivalent
	// to a fresh contribution of the current amount.
	ChangeBecameEligible
	// ChangeBecameIneligible: eligible before, ineligible now. Equivalent
	// to removing the previous amount.
	ChangeBecameIneligible
	// ChangeBucketMoved: eligible on both sides but in different buckets
	// (e.g. pending to paid). Count is unchanged; the previous amount
	// leaves the old bucket and the current amount enters the new one.
	ChangeBucketMoved
)

type (
	ChangeKind int

	// Change classifies an updated event's previous-vs-current pair.
	Change struct {
		Kind       ChangeKind
		DeltaCents int64 // set only for ChangeAmount
	}
)

// DetectChange is the transition matrix for updated events, implemented
// once here and nowhere else. Eligibility is resolved through BucketFor
// so the matrix cannot drift from the guard.
func DetectChange(previous, current InvoiceSnapshot) Change {
	prevBucket := BucketFor(previous.Status)
	curBucket := BucketFor(current.Status)

	switch {
	case prevBucket == BucketNone && curBucket == BucketNone:
		// Was and stays out of revenue; amount edits are irrelevant.
		return Change{Kind: ChangeNone}
	case prevBucket == BucketNone:
		return Change{Kind: ChangeBecameEligible}
	case curBucket == BucketNone:
		return Change{Kind: ChangeBecameIneligible}
	case prevBucket != curBucket:
		return Change{Kind: ChangeBucketMoved}
	}

	// Same bucket on both sides: only an amount diff can matter.
	if delta := current.Amount.Cents - previous.Amount.Cents; delta != 0 {
		return Change{Kind: ChangeAmount, DeltaCents: delta}
	}
	return Change{Kind: ChangeNone}
}

func (k ChangeKind) String() string {
	switch k {
	case ChangeNone:
		return "none"
	case ChangeAmount:
		return "amount_changed"
	case ChangeBecameEligible:
		return "became_eligible"
	case ChangeBecameIneligible:
		return "became_ineligible"
	case ChangeBucketMoved:
		return "bucket_moved"
	}
	return "unknown"
}
