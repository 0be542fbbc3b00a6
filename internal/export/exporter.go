package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"revenued/internal/core"
)

// BucketReader is the slice of the repository the exporter reads from.
type BucketReader interface {
	FindByPeriod(ctx context.Context, p core.Period) (*core.RevenueBucket, error)
	ListBucketsBetween(ctx context.Context, from, to core.Period) ([]core.RevenueBucket, error)
}

// Exporter pushes monthly revenue summaries to an external report. It
// runs on a cron cadence in the worker and is skipped entirely when no
// destination is configured.
type Exporter struct {
	reader BucketReader
	writer ReportWriter
}

func NewExporter(reader BucketReader, writer ReportWriter) *Exporter {
	return &Exporter{reader: reader, writer: writer}
}

func toReportRow(b core.RevenueBucket) ReportRow {
	return ReportRow{
		Period:       b.Period.Key(),
		InvoiceCount: b.InvoiceCount,
		Total:        float64(b.TotalAmount.Cents) / 100.0,
		Paid:         float64(b.TotalPaid.Cents) / 100.0,
		Pending:      float64(b.TotalPending.Cents) / 100.0,
	}
}

// ExportClosedMonth appends the report row for the month before now.
// By export time that month no longer receives dated invoices under
// normal operation, so one row per run is enough. A month with no
// revenue is skipped, not written as zeros.
func (e *Exporter) ExportClosedMonth(ctx context.Context, now time.Time) error {
	current, err := core.PeriodOf(now)
	if err != nil {
		return fmt.Errorf("export closed month: %w", err)
	}
	p := current.Prev()

	bucket, err := e.reader.FindByPeriod(ctx, p)
	if err != nil {
		return fmt.Errorf("export closed month %s: %w", p.Key(), err)
	}
	if bucket == nil {
		slog.InfoContext(ctx, "No revenue to export", "period", p.Key())
		return nil
	}

	if err := e.writer.AppendMonthlyReport(ctx, []ReportRow{toReportRow(*bucket)}); err != nil {
		return fmt.Errorf("export closed month %s: %w", p.Key(), err)
	}

	slog.InfoContext(ctx, "Exported monthly revenue report",
		"period", p.Key(),
		"invoice_count", bucket.InvoiceCount,
		"total_cents", bucket.TotalAmount.Cents)
	return nil
}

// ExportRange appends one row per stored bucket in from..to inclusive.
// Used for backfilling a fresh spreadsheet.
func (e *Exporter) ExportRange(ctx context.Context, from, to core.Period) (int, error) {
	buckets, err := e.reader.ListBucketsBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("export range: %w", err)
	}
	if len(buckets) == 0 {
		return 0, nil
	}

	rows := make([]ReportRow, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, toReportRow(b))
	}
	if err := e.writer.AppendMonthlyReport(ctx, rows); err != nil {
		return 0, fmt.Errorf("export range: %w", err)
	}
	return len(rows), nil
}
