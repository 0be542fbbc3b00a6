package core

import (
	"errors"
	"strings"
	"time"
)

const (
	StatusDraft   InvoiceStatus = "draft"
	StatusPending InvoiceStatus = "pending"
	StatusPaid    InvoiceStatus = "paid"
	StatusVoid    InvoiceStatus = "void"
)

const (
	OperationCreated EventOperation = "created"
	OperationUpdated EventOperation = "updated"
	OperationDeleted EventOperation = "deleted"
)

type (
	InvoiceStatus  string
	EventOperation string

	Money struct {
		Cents int64
	}

	// InvoiceSnapshot is the immutable invoice state carried by lifecycle events.
	InvoiceSnapshot struct {
		ID         string
		CustomerID string
		Amount     Money // minor currency units, never negative
		Status     InvoiceStatus
		Date       time.Time
	}

	// InvoiceEvent is one invoice lifecycle event as delivered by the bus.
	// Previous carries the pre-change snapshot and is required for
	// updated and deleted operations.
	InvoiceEvent struct {
		EventID   string
		Timestamp time.Time
		Operation EventOperation
		Invoice   InvoiceSnapshot
		Previous  *InvoiceSnapshot
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrEmptyInvoiceID   = errors.New("empty invoice id")
	ErrEmptyEventID     = errors.New("empty event id")
	ErrMissingPrevious  = errors.New("missing previous invoice snapshot")
	ErrZeroDate         = errors.New("date cannot be zero")
)

func (s InvoiceStatus) Validate() error {
	switch s {
	case StatusDraft, StatusPending, StatusPaid, StatusVoid:
		return nil
	}
	return ErrInvalidStatus
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (inv InvoiceSnapshot) Validate() error {
	if strings.TrimSpace(inv.ID) == "" {
		return ErrEmptyInvoiceID
	}
	if err := inv.Amount.Validate(); err != nil {
		return err
	}
	if err := inv.Status.Validate(); err != nil {
		return err
	}
	if inv.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (e InvoiceEvent) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return ErrEmptyEventID
	}
	switch e.Operation {
	case OperationCreated, OperationUpdated, OperationDeleted:
	default:
		return ErrInvalidOperation
	}
	if err := e.Invoice.Validate(); err != nil {
		return err
	}
	if e.Operation == OperationUpdated || e.Operation == OperationDeleted {
		if e.Previous == nil {
			return ErrMissingPrevious
		}
		if err := e.Previous.Validate(); err != nil {
			return err
		}
	}
	return nil
}
