package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"revenued/internal/amqp"
	"revenued/internal/core"
	"revenued/internal/metrics"
)

// HandlerFunc processes one decoded invoice event.
type HandlerFunc func(ctx context.Context, ev core.InvoiceEvent) error

// Dispatcher routes deliveries to the handler registered for their
// routing key. Registration happens during startup; Dispatch is safe
// for concurrent use once consuming begins.
type Dispatcher struct {
	handlers map[string]HandlerFunc
}

func New() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

func (d *Dispatcher) Register(routingKey string, h HandlerFunc) {
	d.handlers[routingKey] = h
}

// Dispatch decodes the delivery body and invokes the registered
// handler. Unknown routing keys and bodies that fail to decode are
// reported as unprocessable so the consume loop drops them instead of
// requeueing forever.
func (d *Dispatcher) Dispatch(ctx context.Context, routingKey string, body []byte) error {
	start := time.Now()

	h, ok := d.handlers[routingKey]
	if !ok {
		metrics.EventsDropped.Inc()
		return fmt.Errorf("%w: no handler for routing key %q", amqp.ErrUnprocessable, routingKey)
	}

	msg, err := amqp.InvoiceEventMessageFromJSON(body)
	if err != nil {
		metrics.EventsDropped.Inc()
		metrics.HandlerErrors.WithLabelValues("decode").Inc()
		return fmt.Errorf("%w: %v", amqp.ErrUnprocessable, err)
	}

	ev := msg.Event()
	err = h(ctx, ev)
	metrics.EventHandlingDuration.Observe(float64(time.Since(start).Milliseconds()))

	switch {
	case err == nil:
		metrics.EventsProcessed.WithLabelValues(string(ev.Operation)).Inc()
		return nil
	case errors.Is(err, amqp.ErrUnprocessable):
		metrics.EventsDropped.Inc()
		metrics.HandlerErrors.WithLabelValues("unprocessable").Inc()
		return err
	default:
		metrics.HandlerErrors.WithLabelValues("transient").Inc()
		slog.ErrorContext(ctx, "Event handler failed",
			"error", err,
			"event_id", ev.EventID,
			"routing_key", routingKey)
		return err
	}
}
