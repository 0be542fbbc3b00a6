package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldOperation   = "operation"
	FieldEventID     = "event_id"
	FieldInvoiceID   = "invoice_id"
	FieldCustomerID  = "customer_id"
	FieldPeriod      = "period"
	FieldTopic       = "topic"
	FieldAmountCents = "amount_cents"
	FieldDeltaCents  = "delta_cents"
	FieldCount       = "invoice_count"
	FieldChange      = "change"
	FieldSource      = "calculation_source"
	FieldDuration    = "duration_ms"
)

// Components defines standard component names
const (
	ComponentAPI       = "api"
	ComponentWorker    = "worker"
	ComponentAMQP      = "amqp"
	ComponentDispatch  = "dispatch"
	ComponentReconcile = "reconcile"
	ComponentStorage   = "storage"
	ComponentRecalc    = "recalc"
	ComponentExport    = "export"
)

// ErrorTypes defines the error taxonomy carried on error-level logs.
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeIntegrity     = "integrity_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeConfiguration = "configuration_error"
)
