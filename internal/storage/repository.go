package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"revenued/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists revenue buckets, the invoice replica and the
// processed-event ledger. Bucket writes go through a single upsert that
// computes new totals server-side, so one period row can never lose a
// concurrent update.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Ping backs the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const bucketColumns = `id, period, invoice_count, total_paid_cents, total_pending_cents,
       total_amount_cents, calculation_source, created_at, updated_at`

func scanBucket(row interface{ Scan(...any) error }) (core.RevenueBucket, error) {
	var (
		b   core.RevenueBucket
		key string
		src string
	)
	err := row.Scan(&b.ID, &key, &b.InvoiceCount, &b.TotalPaid.Cents, &b.TotalPending.Cents,
		&b.TotalAmount.Cents, &src, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return core.RevenueBucket{}, err
	}
	p, err := core.ParsePeriod(key)
	if err != nil {
		return core.RevenueBucket{}, fmt.Errorf("stored period key %q: %w", key, err)
	}
	b.Period = p
	b.Source = core.CalculationSource(src)
	return b, nil
}

// FindByPeriod implements reconcile.BucketStore; a missing bucket is
// (nil, nil), not an error.
func (r *SQLiteRepository) FindByPeriod(ctx context.Context, p core.Period) (*core.RevenueBucket, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+bucketColumns+` FROM revenue_buckets WHERE period = ?`, p.Key())
	b, err := scanBucket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find bucket by period: %w", err)
	}
	return &b, nil
}

// Apply upserts the period row in one statement. Deltas are added to the
// existing columns with a max(0, ...) clamp, and the total is recomputed
// from the two sub-buckets so the sum invariant holds by construction.
func (r *SQLiteRepository) Apply(ctx context.Context, p core.Period, m core.BucketMutation) (core.RevenueBucket, error) {
	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, `
INSERT INTO revenue_buckets (
    period, invoice_count, total_paid_cents, total_pending_cents,
    total_amount_cents, calculation_source, created_at, updated_at
) VALUES (?, max(0, ?), max(0, ?), max(0, ?), max(0, ?) + max(0, ?), ?, ?, ?)
ON CONFLICT(period) DO UPDATE SET
    invoice_count       = max(0, invoice_count + ?),
    total_paid_cents    = max(0, total_paid_cents + ?),
    total_pending_cents = max(0, total_pending_cents + ?),
    total_amount_cents  = max(0, total_paid_cents + ?) + max(0, total_pending_cents + ?),
    calculation_source  = ?,
    updated_at          = ?
RETURNING `+bucketColumns,
		p.Key(), m.CountDelta, m.PaidDelta, m.PendingDelta, m.PaidDelta, m.PendingDelta,
		string(m.Source), now, now,
		m.CountDelta, m.PaidDelta, m.PendingDelta, m.PaidDelta, m.PendingDelta,
		string(m.Source), now)

	b, err := scanBucket(row)
	if err != nil {
		return core.RevenueBucket{}, fmt.Errorf("apply bucket mutation: %w", err)
	}
	return b, nil
}

// ReplaceBucket overwrites the period row with absolute values. Used by
// the batch recalculation path, never by the event hot path.
func (r *SQLiteRepository) ReplaceBucket(ctx context.Context, p core.Period, count int64, totals core.BucketTotals, source core.CalculationSource) (core.RevenueBucket, error) {
	now := time.Now().UTC()
	row := r.db.QueryRowContext(ctx, `
INSERT INTO revenue_buckets (
    period, invoice_count, total_paid_cents, total_pending_cents,
    total_amount_cents, calculation_source, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(period) DO UPDATE SET
    invoice_count       = excluded.invoice_count,
    total_paid_cents    = excluded.total_paid_cents,
    total_pending_cents = excluded.total_pending_cents,
    total_amount_cents  = excluded.total_amount_cents,
    calculation_source  = excluded.calculation_source,
    updated_at          = excluded.updated_at
RETURNING `+bucketColumns,
		p.Key(), count, totals.PaidCents, totals.PendingCents, totals.TotalCents(),
		string(source), now, now)

	b, err := scanBucket(row)
	if err != nil {
		return core.RevenueBucket{}, fmt.Errorf("replace bucket: %w", err)
	}
	return b, nil
}

// ListBucketsBetween returns buckets for from..to inclusive, in period
// order. The "YYYY-MM" key sorts lexicographically by month.
func (r *SQLiteRepository) ListBucketsBetween(ctx context.Context, from, to core.Period) ([]core.RevenueBucket, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bucketColumns+` FROM revenue_buckets
		 WHERE period >= ? AND period <= ? ORDER BY period`,
		from.Key(), to.Key())
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	defer rows.Close()

	var out []core.RevenueBucket
	for rows.Next() {
		b, err := scanBucket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bucket: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	return out, nil
}

// SaveInvoice implements reconcile.InvoiceReplica.
func (r *SQLiteRepository) SaveInvoice(ctx context.Context, inv core.InvoiceSnapshot) error {
	p, err := core.PeriodOf(inv.Date)
	if err != nil {
		return fmt.Errorf("invoice period: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO invoices (id, customer_id, amount_cents, status, invoice_date, period, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    customer_id  = excluded.customer_id,
    amount_cents = excluded.amount_cents,
    status       = excluded.status,
    invoice_date = excluded.invoice_date,
    period       = excluded.period,
    updated_at   = excluded.updated_at`,
		inv.ID, inv.CustomerID, inv.Amount.Cents, string(inv.Status),
		inv.Date.UTC(), p.Key(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save invoice: %w", err)
	}
	return nil
}

// RemoveInvoice implements reconcile.InvoiceReplica.
func (r *SQLiteRepository) RemoveInvoice(ctx context.Context, invoiceID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, invoiceID)
	if err != nil {
		return fmt.Errorf("remove invoice: %w", err)
	}
	return nil
}

// ListInvoicesByPeriod returns every replicated invoice of the month,
// eligible or not; the recalculation path applies the guard itself.
func (r *SQLiteRepository) ListInvoicesByPeriod(ctx context.Context, p core.Period) ([]core.InvoiceSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, customer_id, amount_cents, status, invoice_date
		 FROM invoices WHERE period = ? ORDER BY id`, p.Key())
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var out []core.InvoiceSnapshot
	for rows.Next() {
		var (
			inv    core.InvoiceSnapshot
			status string
		)
		if err := rows.Scan(&inv.ID, &inv.CustomerID, &inv.Amount.Cents, &status, &inv.Date); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		inv.Status = core.InvoiceStatus(status)
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return out, nil
}

// MarkProcessed implements reconcile.EventLedger; false means the event
// ID was already recorded.
func (r *SQLiteRepository) MarkProcessed(ctx context.Context, eventID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO processed_events (event_id, processed_at) VALUES (?, ?)
		 ON CONFLICT(event_id) DO NOTHING`,
		eventID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}
	return n > 0, nil
}

// ForgetProcessed implements reconcile.EventLedger.
func (r *SQLiteRepository) ForgetProcessed(ctx context.Context, eventID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM processed_events WHERE event_id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("forget processed: %w", err)
	}
	return nil
}

// PurgeProcessedBefore trims the dedupe ledger; the worker runs this on
// a cron cadence so the table stays bounded.
func (r *SQLiteRepository) PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM processed_events WHERE processed_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge processed events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge processed events: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Purged processed-event ledger", "removed", n, "cutoff", cutoff.UTC().Format(time.RFC3339))
	}
	return n, nil
}
