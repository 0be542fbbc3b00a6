package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"revenued/internal/core"
	"revenued/internal/query"
)

type stubReader struct {
	buckets map[string]core.RevenueBucket
	err     error
}

func (r *stubReader) FindByPeriod(ctx context.Context, p core.Period) (*core.RevenueBucket, error) {
	if r.err != nil {
		return nil, r.err
	}
	if b, ok := r.buckets[p.Key()]; ok {
		return &b, nil
	}
	return nil, nil
}

func (r *stubReader) ListBucketsBetween(ctx context.Context, from, to core.Period) ([]core.RevenueBucket, error) {
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

func newTestServer(t *testing.T, reader *stubReader, ready ReadyChecker) *Server {
	t.Helper()
	svc := query.NewService(reader, 16, time.Minute)
	return NewServer(":0", svc, ready)
}

func seedBucket(reader *stubReader, key string, count, paid, pending int64) {
	p, _ := core.ParsePeriod(key)
	reader.buckets[key] = core.RevenueBucket{
		Period:       p,
		InvoiceCount: count,
		TotalPaid:    core.Money{Cents: paid},
		TotalPending: core.Money{Cents: pending},
		TotalAmount:  core.Money{Cents: paid + pending},
		Source:       core.SourceInvoiceEvent,
		UpdatedAt:    time.Now().UTC(),
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &stubReader{buckets: map[string]core.RevenueBucket{}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestReadyzFailure(t *testing.T) {
	ready := func(ctx context.Context) error { return errors.New("db down") }
	s := newTestServer(t, &stubReader{buckets: map[string]core.RevenueBucket{}}, ready)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRevenueRange(t *testing.T) {
	reader := &stubReader{buckets: map[string]core.RevenueBucket{}}
	seedBucket(reader, "2025-01", 2, 10000, 5000)
	seedBucket(reader, "2025-02", 1, 0, 2000)
	s := newTestServer(t, reader, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/revenue?from=2025-01&to=2025-02", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp rangeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.From != "2025-01" || resp.To != "2025-02" {
		t.Errorf("range = %s..%s, want 2025-01..2025-02", resp.From, resp.To)
	}
	if resp.InvoiceCount != 3 || resp.TotalCents != 17000 {
		t.Errorf("aggregates = count %d total %d, want 3/17000", resp.InvoiceCount, resp.TotalCents)
	}
	if len(resp.Buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(resp.Buckets))
	}
	if resp.Buckets[0].Period != "2025-01" || resp.Buckets[0].TotalCents != 15000 {
		t.Errorf("unexpected first bucket: %+v", resp.Buckets[0])
	}
}

func TestRevenueRangeBadParams(t *testing.T) {
	s := newTestServer(t, &stubReader{buckets: map[string]core.RevenueBucket{}}, nil)

	for _, url := range []string{
		"/api/revenue?from=not-a-period",
		"/api/revenue?to=2025-13",
		"/api/revenue?from=2025-03&to=2025-01",
	} {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s: status = %d, want 400", url, rec.Code)
		}
	}
}

func TestRevenueRangeStoreError(t *testing.T) {
	reader := &stubReader{buckets: map[string]core.RevenueBucket{}, err: errors.New("database locked")}
	s := newTestServer(t, reader, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/revenue?from=2025-01&to=2025-02", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRevenueMonth(t *testing.T) {
	reader := &stubReader{buckets: map[string]core.RevenueBucket{}}
	seedBucket(reader, "2025-02", 1, 2500, 0)
	s := newTestServer(t, reader, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/revenue/month?period=2025-02", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var resp bucketResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Period != "2025-02" || resp.PaidCents != 2500 {
		t.Errorf("unexpected bucket: %+v", resp)
	}
}

func TestRevenueMonthNotFound(t *testing.T) {
	s := newTestServer(t, &stubReader{buckets: map[string]core.RevenueBucket{}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/revenue/month?period=2025-06", nil)
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestRevenueMonthBadParams(t *testing.T) {
	s := newTestServer(t, &stubReader{buckets: map[string]core.RevenueBucket{}}, nil)

	for _, url := range []string{
		"/api/revenue/month",
		"/api/revenue/month?period=03-2025",
	} {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()
		s.Handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s: status = %d, want 400", url, rec.Code)
		}
	}
}
