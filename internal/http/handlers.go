package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"revenued/internal/core"
	"revenued/internal/query"
)

type bucketResponse struct {
	Period       string    `json:"period"`
	InvoiceCount int64     `json:"invoice_count"`
	TotalCents   int64     `json:"total_cents"`
	PaidCents    int64     `json:"paid_cents"`
	PendingCents int64     `json:"pending_cents"`
	Source       string    `json:"calculation_source"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type rangeResponse struct {
	From         string           `json:"from"`
	To           string           `json:"to"`
	InvoiceCount int64            `json:"invoice_count"`
	TotalCents   int64            `json:"total_cents"`
	PaidCents    int64            `json:"paid_cents"`
	PendingCents int64            `json:"pending_cents"`
	AverageCents int64            `json:"average_cents"`
	Buckets      []bucketResponse `json:"buckets"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toBucketResponse(b core.RevenueBucket) bucketResponse {
	return bucketResponse{
		Period:       b.Period.Key(),
		InvoiceCount: b.InvoiceCount,
		TotalCents:   b.TotalAmount.Cents,
		PaidCents:    b.TotalPaid.Cents,
		PendingCents: b.TotalPending.Cents,
		Source:       string(b.Source),
		UpdatedAt:    b.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleRevenueRange serves GET /api/revenue?from=YYYY-MM&to=YYYY-MM.
// Omitted bounds default to the trailing twelve months.
func (s *Server) handleRevenueRange(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	to := core.Period{Year: now.Year(), Month: now.Month()}
	from := to
	for i := 0; i < 11; i++ {
		from = from.Prev()
	}

	if raw := r.URL.Query().Get("to"); raw != "" {
		p, err := core.ParsePeriod(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid to period: " + raw})
			return
		}
		to = p
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		p, err := core.ParsePeriod(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid from period: " + raw})
			return
		}
		from = p
	}

	stats, err := s.queries.Range(r.Context(), from, to)
	if err != nil {
		if errors.Is(err, query.ErrInvalidRange) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		slog.ErrorContext(r.Context(), "Range query failed",
			"error", err,
			"from", from.Key(),
			"to", to.Key())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	resp := rangeResponse{
		From:         stats.From.Key(),
		To:           stats.To.Key(),
		InvoiceCount: stats.InvoiceCount,
		TotalCents:   stats.TotalCents,
		PaidCents:    stats.PaidCents,
		PendingCents: stats.PendingCents,
		AverageCents: stats.AverageCents,
		Buckets:      make([]bucketResponse, 0, len(stats.Buckets)),
	}
	for _, b := range stats.Buckets {
		resp.Buckets = append(resp.Buckets, toBucketResponse(b))
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleRevenueMonth serves GET /api/revenue/month?period=YYYY-MM. A
// month with no recorded revenue is a 404.
func (s *Server) handleRevenueMonth(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing period parameter"})
		return
	}
	p, err := core.ParsePeriod(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid period: " + raw})
		return
	}

	bucket, err := s.queries.Month(r.Context(), p)
	if err != nil {
		slog.ErrorContext(r.Context(), "Month query failed", "error", err, "period", p.Key())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	if bucket == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no revenue recorded for " + p.Key()})
		return
	}

	writeJSON(w, http.StatusOK, toBucketResponse(*bucket))
}
