package core

import (
	"testing"
	"time"
)

func snapshot(status InvoiceStatus, cents int64) InvoiceSnapshot {
	return InvoiceSnapshot{
		ID:         "inv-1",
		CustomerID: "cust-1",
		Amount:     Money{Cents: cents},
		Status:     status,
		Date:       time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
	}
}

// The full transition matrix lives in one function; this is the
// exhaustive check of every cell.
func TestDetectChange(t *testing.T) {
	cases := []struct {
		name      string
		prev, cur InvoiceSnapshot
		want      Change
	}{
		{"no change", snapshot(StatusPending, 1000), snapshot(StatusPending, 1000), Change{Kind: ChangeNone}},
		{"amount up", snapshot(StatusPaid, 1000), snapshot(StatusPaid, 1500), Change{Kind: ChangeAmount, DeltaCents: 500}},
		{"amount down", snapshot(StatusPending, 1500), snapshot(StatusPending, 1000), Change{Kind: ChangeAmount, DeltaCents: -500}},
		{"draft to pending", snapshot(StatusDraft, 1000), snapshot(StatusPending, 1000), Change{Kind: ChangeBecameEligible}},
		{"void to paid", snapshot(StatusVoid, 900), snapshot(StatusPaid, 900), Change{Kind: ChangeBecameEligible}},
		{"pending to void", snapshot(StatusPending, 1000), snapshot(StatusVoid, 1000), Change{Kind: ChangeBecameIneligible}},
		{"paid to draft", snapshot(StatusPaid, 1000), snapshot(StatusDraft, 1000), Change{Kind: ChangeBecameIneligible}},
		{"pending to paid", snapshot(StatusPending, 1000), snapshot(StatusPaid, 1000), Change{Kind: ChangeBucketMoved}},
		{"paid to pending", snapshot(StatusPaid, 1000), snapshot(StatusPending, 1000), Change{Kind: ChangeBucketMoved}},
		{"pending to paid with amount change is still a move", snapshot(StatusPending, 1000), snapshot(StatusPaid, 1200), Change{Kind: ChangeBucketMoved}},
		{"draft to void", snapshot(StatusDraft, 1000), snapshot(StatusVoid, 1000), Change{Kind: ChangeNone}},
		{"draft amount edit", snapshot(StatusDraft, 1000), snapshot(StatusDraft, 2000), Change{Kind: ChangeNone}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectChange(tc.prev, tc.cur)
			if got != tc.want {
				t.Fatalf("DetectChange() = {%s %d}, want {%s %d}",
					got.Kind, got.DeltaCents, tc.want.Kind, tc.want.DeltaCents)
			}
		})
	}
}

func TestInvoiceEventValidate(t *testing.T) {
	inv := snapshot(StatusPending, 1000)
	prev := snapshot(StatusDraft, 1000)

	good := []InvoiceEvent{
		{EventID: "e1", Timestamp: time.Now(), Operation: OperationCreated, Invoice: inv},
		{EventID: "e2", Timestamp: time.Now(), Operation: OperationUpdated, Invoice: inv, Previous: &prev},
		{EventID: "e3", Timestamp: time.Now(), Operation: OperationDeleted, Invoice: inv, Previous: &prev},
	}
	for i, ev := range good {
		if err := ev.Validate(); err != nil {
			t.Fatalf("case %d: expected ok, got %v", i, err)
		}
	}

	negative := inv
	negative.Amount = Money{Cents: -1}
	noID := inv
	noID.ID = " "
	bads := []InvoiceEvent{
		{EventID: "", Operation: OperationCreated, Invoice: inv},
		{EventID: "e", Operation: "renamed", Invoice: inv},
		{EventID: "e", Operation: OperationUpdated, Invoice: inv}, // previous required
		{EventID: "e", Operation: OperationDeleted, Invoice: inv}, // previous required
		{EventID: "e", Operation: OperationCreated, Invoice: negative},
		{EventID: "e", Operation: OperationCreated, Invoice: noID},
	}
	for i, ev := range bads {
		if err := ev.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}
