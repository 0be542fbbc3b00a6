package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"revenued/internal/amqp"
	"revenued/internal/config"
	"revenued/internal/core"
)

// eventgen publishes synthetic invoice lifecycle events for local
// testing and load generation.
func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		count       = flag.Int("count", 100, "number of invoices to create")
		monthsBack  = flag.Int("months", 3, "spread invoice dates over this many trailing months")
		updateRatio = flag.Float64("update-ratio", 0.4, "fraction of invoices that receive a follow-up update")
		deleteRatio = flag.Float64("delete-ratio", 0.1, "fraction of invoices that get deleted")
		seed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	)
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	rng := rand.New(rand.NewSource(*seed))
	ctx := context.Background()
	now := time.Now().UTC()

	statuses := []core.InvoiceStatus{
		core.StatusDraft,
		core.StatusPending,
		core.StatusPending,
		core.StatusPaid,
	}

	published := 0
	for i := 0; i < *count; i++ {
		date := now.AddDate(0, -rng.Intn(*monthsBack+1), 0).
			AddDate(0, 0, -rng.Intn(28))
		inv := core.InvoiceSnapshot{
			ID:         uuid.NewString(),
			CustomerID: uuid.NewString(),
			Amount:     core.Money{Cents: int64(rng.Intn(500000) + 100)},
			Status:     statuses[rng.Intn(len(statuses))],
			Date:       date,
		}

		if err := publish(ctx, client, core.OperationCreated, inv, nil); err != nil {
			logger.Error("Failed to publish created event", "error", err, "invoice_id", inv.ID)
			os.Exit(1)
		}
		published++

		if rng.Float64() < *updateRatio {
			prev := inv
			switch rng.Intn(3) {
			case 0:
				inv.Amount.Cents = int64(rng.Intn(500000) + 100)
			case 1:
				inv.Status = core.StatusPaid
			default:
				inv.Status = core.StatusVoid
			}
			if err := publish(ctx, client, core.OperationUpdated, inv, &prev); err != nil {
				logger.Error("Failed to publish updated event", "error", err, "invoice_id", inv.ID)
				os.Exit(1)
			}
			published++
		}

		if rng.Float64() < *deleteRatio {
			prev := inv
			if err := publish(ctx, client, core.OperationDeleted, inv, &prev); err != nil {
				logger.Error("Failed to publish deleted event", "error", err, "invoice_id", inv.ID)
				os.Exit(1)
			}
			published++
		}
	}

	logger.Info("Event generation complete",
		"invoices", *count,
		"events_published", published,
		"seed", *seed)
}

func publish(ctx context.Context, client *amqp.Client, op core.EventOperation, inv core.InvoiceSnapshot, prev *core.InvoiceSnapshot) error {
	ev := core.InvoiceEvent{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Operation: op,
		Invoice:   inv,
		Previous:  prev,
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	return client.PublishInvoiceEvent(ctx, ev)
}
