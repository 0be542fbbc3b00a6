package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"revenued/internal/core"
)

type fakeReader struct {
	buckets map[string]core.RevenueBucket
	err     error
}

func (r *fakeReader) FindByPeriod(ctx context.Context, p core.Period) (*core.RevenueBucket, error) {
	if r.err != nil {
		return nil, r.err
	}
	if b, ok := r.buckets[p.Key()]; ok {
		return &b, nil
	}
	return nil, nil
}

func (r *fakeReader) ListBucketsBetween(ctx context.Context, from, to core.Period) ([]core.RevenueBucket, error) {
	if r.err != nil {
		return nil, r.err
	}
	var out []core.RevenueBucket
	for p := from; !to.Before(p); p = p.Next() {
		if b, ok := r.buckets[p.Key()]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeWriter struct {
	rows []ReportRow
	err  error
}

func (w *fakeWriter) AppendMonthlyReport(ctx context.Context, rows []ReportRow) error {
	if w.err != nil {
		return w.err
	}
	w.rows = append(w.rows, rows...)
	return nil
}

func seed(reader *fakeReader, key string, count, paid, pending int64) {
	p, _ := core.ParsePeriod(key)
	reader.buckets[key] = core.RevenueBucket{
		Period:       p,
		InvoiceCount: count,
		TotalPaid:    core.Money{Cents: paid},
		TotalPending: core.Money{Cents: pending},
		TotalAmount:  core.Money{Cents: paid + pending},
		Source:       core.SourceInvoiceEvent,
	}
}

func TestExportClosedMonth(t *testing.T) {
	reader := &fakeReader{buckets: map[string]core.RevenueBucket{}}
	seed(reader, "2025-02", 3, 150050, 9950)
	writer := &fakeWriter{}

	now := time.Date(2025, time.March, 1, 3, 0, 0, 0, time.UTC)
	if err := NewExporter(reader, writer).ExportClosedMonth(context.Background(), now); err != nil {
		t.Fatalf("ExportClosedMonth: %v", err)
	}

	if len(writer.rows) != 1 {
		t.Fatalf("expected 1 report row, got %d", len(writer.rows))
	}
	row := writer.rows[0]
	if row.Period != "2025-02" || row.InvoiceCount != 3 {
		t.Errorf("unexpected row: %+v", row)
	}
	if row.Total != 1600.00 || row.Paid != 1500.50 || row.Pending != 99.50 {
		t.Errorf("unexpected amounts: %+v", row)
	}
}

func TestExportClosedMonthSkipsEmpty(t *testing.T) {
	reader := &fakeReader{buckets: map[string]core.RevenueBucket{}}
	writer := &fakeWriter{}

	now := time.Date(2025, time.March, 1, 3, 0, 0, 0, time.UTC)
	if err := NewExporter(reader, writer).ExportClosedMonth(context.Background(), now); err != nil {
		t.Fatalf("ExportClosedMonth: %v", err)
	}
	if len(writer.rows) != 0 {
		t.Errorf("expected no rows for an empty month, got %d", len(writer.rows))
	}
}

func TestExportClosedMonthWriterError(t *testing.T) {
	reader := &fakeReader{buckets: map[string]core.RevenueBucket{}}
	seed(reader, "2025-02", 1, 1000, 0)
	writer := &fakeWriter{err: errors.New("quota exceeded")}

	now := time.Date(2025, time.March, 1, 3, 0, 0, 0, time.UTC)
	if err := NewExporter(reader, writer).ExportClosedMonth(context.Background(), now); err == nil {
		t.Error("expected writer error to propagate")
	}
}

func TestExportRange(t *testing.T) {
	reader := &fakeReader{buckets: map[string]core.RevenueBucket{}}
	seed(reader, "2024-11", 1, 1000, 0)
	seed(reader, "2025-01", 2, 0, 2000)
	writer := &fakeWriter{}

	from, _ := core.ParsePeriod("2024-11")
	to, _ := core.ParsePeriod("2025-01")
	n, err := NewExporter(reader, writer).ExportRange(context.Background(), from, to)
	if err != nil {
		t.Fatalf("ExportRange: %v", err)
	}
	if n != 2 || len(writer.rows) != 2 {
		t.Fatalf("expected 2 exported rows, got n=%d rows=%d", n, len(writer.rows))
	}
	if writer.rows[0].Period != "2024-11" || writer.rows[1].Period != "2025-01" {
		t.Errorf("unexpected row order: %s, %s", writer.rows[0].Period, writer.rows[1].Period)
	}
}
