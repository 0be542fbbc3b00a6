package export

import "context"

// ReportRow is one spreadsheet line of the monthly revenue report.
// Amounts are in major currency units for readability in the sheet.
type ReportRow struct {
	Period       string
	InvoiceCount int64
	Total        float64
	Paid         float64
	Pending      float64
}

// ReportWriter is the outbound port for the report destination.
type ReportWriter interface {
	AppendMonthlyReport(ctx context.Context, rows []ReportRow) error
}
