package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"revenued/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "revenued.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func period(t *testing.T, key string) core.Period {
	t.Helper()
	p, err := core.ParsePeriod(key)
	if err != nil {
		t.Fatalf("ParsePeriod(%q): %v", key, err)
	}
	return p
}

func TestFindByPeriodMissing(t *testing.T) {
	repo := newTestRepo(t)

	b, err := repo.FindByPeriod(context.Background(), period(t, "2025-03"))
	if err != nil {
		t.Fatalf("FindByPeriod: %v", err)
	}
	if b != nil {
		t.Fatalf("expected nil bucket for missing period, got %+v", b)
	}
}

func TestApplyCreatesAndAccumulates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := period(t, "2025-03")

	b, err := repo.Apply(ctx, p, core.BucketMutation{
		CountDelta:   1,
		PendingDelta: 10000,
		Source:       core.SourceInvoiceEvent,
	})
	if err != nil {
		t.Fatalf("Apply (insert): %v", err)
	}
	if b.InvoiceCount != 1 || b.TotalPending.Cents != 10000 || b.TotalAmount.Cents != 10000 {
		t.Fatalf("unexpected bucket after insert: %+v", b)
	}
	if b.Period != p {
		t.Fatalf("expected period %s, got %s", p.Key(), b.Period.Key())
	}

	// Move the pending contribution into paid.
	b, err = repo.Apply(ctx, p, core.BucketMutation{
		PaidDelta:    10000,
		PendingDelta: -10000,
		Source:       core.SourceInvoiceEvent,
	})
	if err != nil {
		t.Fatalf("Apply (move): %v", err)
	}
	if b.InvoiceCount != 1 || b.TotalPaid.Cents != 10000 || b.TotalPending.Cents != 0 {
		t.Fatalf("unexpected bucket after move: %+v", b)
	}
	if b.TotalAmount.Cents != 10000 {
		t.Fatalf("expected total 10000, got %d", b.TotalAmount.Cents)
	}
	if err := b.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated: %v", err)
	}
}

func TestApplyClampsAtZero(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := period(t, "2025-04")

	if _, err := repo.Apply(ctx, p, core.BucketMutation{
		CountDelta: 1,
		PaidDelta:  5000,
		Source:     core.SourceInvoiceEvent,
	}); err != nil {
		t.Fatalf("Apply (insert): %v", err)
	}

	b, err := repo.Apply(ctx, p, core.BucketMutation{
		CountDelta: -2,
		PaidDelta:  -9000,
		Source:     core.SourceInvoiceEvent,
	})
	if err != nil {
		t.Fatalf("Apply (over-withdraw): %v", err)
	}
	if b.InvoiceCount != 0 || b.TotalPaid.Cents != 0 || b.TotalAmount.Cents != 0 {
		t.Fatalf("expected clamped bucket, got %+v", b)
	}
}

func TestApplyConcurrentSamePeriod(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := period(t, "2025-05")

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Apply(ctx, p, core.BucketMutation{
				CountDelta:   1,
				PendingDelta: 100,
				Source:       core.SourceInvoiceEvent,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Apply: %v", err)
		}
	}

	b, err := repo.FindByPeriod(ctx, p)
	if err != nil {
		t.Fatalf("FindByPeriod: %v", err)
	}
	if b == nil {
		t.Fatal("expected bucket after concurrent applies")
	}
	if b.InvoiceCount != workers || b.TotalPending.Cents != workers*100 {
		t.Fatalf("lost update: count=%d pending=%d", b.InvoiceCount, b.TotalPending.Cents)
	}
}

func TestReplaceBucketOverwrites(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := period(t, "2025-06")

	if _, err := repo.Apply(ctx, p, core.BucketMutation{
		CountDelta:   3,
		PendingDelta: 30000,
		Source:       core.SourceInvoiceEvent,
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	b, err := repo.ReplaceBucket(ctx, p, 2,
		core.BucketTotals{PaidCents: 15000, PendingCents: 5000},
		core.SourceRecalculation)
	if err != nil {
		t.Fatalf("ReplaceBucket: %v", err)
	}
	if b.InvoiceCount != 2 || b.TotalPaid.Cents != 15000 || b.TotalPending.Cents != 5000 {
		t.Fatalf("unexpected bucket after replace: %+v", b)
	}
	if b.TotalAmount.Cents != 20000 {
		t.Fatalf("expected total 20000, got %d", b.TotalAmount.Cents)
	}
	if b.Source != core.SourceRecalculation {
		t.Fatalf("expected recalculation source, got %s", b.Source)
	}
}

func TestListBucketsBetween(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, key := range []string{"2025-03", "2024-12", "2025-01"} {
		if _, err := repo.Apply(ctx, period(t, key), core.BucketMutation{
			CountDelta: 1,
			PaidDelta:  100,
			Source:     core.SourceInvoiceEvent,
		}); err != nil {
			t.Fatalf("Apply(%s): %v", key, err)
		}
	}

	buckets, err := repo.ListBucketsBetween(ctx, period(t, "2024-12"), period(t, "2025-01"))
	if err != nil {
		t.Fatalf("ListBucketsBetween: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}
	if buckets[0].Period.Key() != "2024-12" || buckets[1].Period.Key() != "2025-01" {
		t.Fatalf("unexpected order: %s, %s", buckets[0].Period.Key(), buckets[1].Period.Key())
	}
}

func TestInvoiceReplicaRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	date := time.Date(2025, time.March, 14, 0, 0, 0, 0, time.UTC)
	inv := core.InvoiceSnapshot{
		ID:         "inv-1",
		CustomerID: "cust-9",
		Amount:     core.Money{Cents: 12500},
		Status:     core.StatusPending,
		Date:       date,
	}
	if err := repo.SaveInvoice(ctx, inv); err != nil {
		t.Fatalf("SaveInvoice: %v", err)
	}

	// Upsert with a new status and amount.
	inv.Status = core.StatusPaid
	inv.Amount.Cents = 13000
	if err := repo.SaveInvoice(ctx, inv); err != nil {
		t.Fatalf("SaveInvoice (update): %v", err)
	}

	got, err := repo.ListInvoicesByPeriod(ctx, period(t, "2025-03"))
	if err != nil {
		t.Fatalf("ListInvoicesByPeriod: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 invoice, got %d", len(got))
	}
	if got[0].ID != "inv-1" || got[0].Status != core.StatusPaid || got[0].Amount.Cents != 13000 {
		t.Fatalf("unexpected invoice: %+v", got[0])
	}
	if !got[0].Date.Equal(date) {
		t.Fatalf("expected date %v, got %v", date, got[0].Date)
	}

	if err := repo.RemoveInvoice(ctx, "inv-1"); err != nil {
		t.Fatalf("RemoveInvoice: %v", err)
	}
	got, err = repo.ListInvoicesByPeriod(ctx, period(t, "2025-03"))
	if err != nil {
		t.Fatalf("ListInvoicesByPeriod: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty period after removal, got %d invoices", len(got))
	}
}

func TestProcessedEventLedger(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	fresh, err := repo.MarkProcessed(ctx, "evt-1", now)
	if err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if !fresh {
		t.Fatal("expected first mark to report fresh")
	}

	fresh, err = repo.MarkProcessed(ctx, "evt-1", now)
	if err != nil {
		t.Fatalf("MarkProcessed (duplicate): %v", err)
	}
	if fresh {
		t.Fatal("expected duplicate mark to report already seen")
	}

	if err := repo.ForgetProcessed(ctx, "evt-1"); err != nil {
		t.Fatalf("ForgetProcessed: %v", err)
	}
	fresh, err = repo.MarkProcessed(ctx, "evt-1", now)
	if err != nil {
		t.Fatalf("MarkProcessed (after forget): %v", err)
	}
	if !fresh {
		t.Fatal("expected mark after forget to report fresh")
	}
}

func TestPurgeProcessedBefore(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := repo.MarkProcessed(ctx, "old", now.Add(-48*time.Hour)); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if _, err := repo.MarkProcessed(ctx, "recent", now); err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}

	removed, err := repo.PurgeProcessedBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PurgeProcessedBefore: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 purged entry, got %d", removed)
	}

	fresh, err := repo.MarkProcessed(ctx, "recent", now)
	if err != nil {
		t.Fatalf("MarkProcessed: %v", err)
	}
	if fresh {
		t.Fatal("recent entry should have survived the purge")
	}
}
