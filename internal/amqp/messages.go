package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"revenued/internal/core"
)

// Routing keys on the invoices topic exchange, one per lifecycle
// operation.
const (
	RoutingKeyCreated = "invoice.created"
	RoutingKeyUpdated = "invoice.updated"
	RoutingKeyDeleted = "invoice.deleted"

	// BindingKey matches all three operations.
	BindingKey = "invoice.*"
)

// InvoiceEventMessage is the wire form of an invoice lifecycle event.
// The invoice payload is the full snapshot after the operation; updated
// and deleted events also carry the snapshot before it.
type InvoiceEventMessage struct {
	EventID   string          `json:"event_id"`
	Timestamp time.Time       `json:"timestamp"`
	Operation string          `json:"operation"`
	Invoice   InvoicePayload  `json:"invoice"`
	Previous  *InvoicePayload `json:"previous,omitempty"`
}

type InvoicePayload struct {
	ID          string    `json:"id"`
	CustomerID  string    `json:"customer_id"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"`
	Date        time.Time `json:"date"`
}

func payloadFromSnapshot(s core.InvoiceSnapshot) InvoicePayload {
	return InvoicePayload{
		ID:          s.ID,
		CustomerID:  s.CustomerID,
		AmountCents: s.Amount.Cents,
		Status:      string(s.Status),
		Date:        s.Date,
	}
}

func (p InvoicePayload) snapshot() core.InvoiceSnapshot {
	return core.InvoiceSnapshot{
		ID:         p.ID,
		CustomerID: p.CustomerID,
		Amount:     core.Money{Cents: p.AmountCents},
		Status:     core.InvoiceStatus(p.Status),
		Date:       p.Date,
	}
}

// NewInvoiceEventMessage builds the wire message for a domain event.
func NewInvoiceEventMessage(ev core.InvoiceEvent) *InvoiceEventMessage {
	msg := &InvoiceEventMessage{
		EventID:   ev.EventID,
		Timestamp: ev.Timestamp,
		Operation: string(ev.Operation),
		Invoice:   payloadFromSnapshot(ev.Invoice),
	}
	if ev.Previous != nil {
		prev := payloadFromSnapshot(*ev.Previous)
		msg.Previous = &prev
	}
	return msg
}

// RoutingKey maps the operation to its topic routing key.
func (m *InvoiceEventMessage) RoutingKey() string {
	return "invoice." + m.Operation
}

// Event converts the wire message back into a domain event.
func (m *InvoiceEventMessage) Event() core.InvoiceEvent {
	ev := core.InvoiceEvent{
		EventID:   m.EventID,
		Timestamp: m.Timestamp,
		Operation: core.EventOperation(m.Operation),
		Invoice:   m.Invoice.snapshot(),
	}
	if m.Previous != nil {
		prev := m.Previous.snapshot()
		ev.Previous = &prev
	}
	return ev
}

func (m *InvoiceEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func InvoiceEventMessageFromJSON(data []byte) (*InvoiceEventMessage, error) {
	var msg InvoiceEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal invoice event: %w", err)
	}
	return &msg, nil
}
