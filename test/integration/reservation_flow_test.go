package integration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/catalog"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/application"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/engine"
	reskafka "github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/infrastructure/kafka"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/clock"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/outbox"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/tracing"
)

const eventsTopic = "reservation.events"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestReservationFlow drives the whole pipeline against real backends: the
// catalog seeded in postgres, a reserve/confirm cycle through the engine, and
// the lifecycle events relayed out to Kafka.
func TestReservationFlow(t *testing.T) {
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION to run docker-backed tests")
	}

	ctx := context.Background()
	env, err := Setup(ctx)
	require.NoError(t, err)
	defer env.Teardown(ctx)

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, `
		CREATE TABLE products (
			sku TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price_cents BIGINT NOT NULL,
			stock INT NOT NULL
		)`)
	require.NoError(t, err)
	for _, p := range catalog.Default() {
		_, err = pool.Exec(ctx,
			`INSERT INTO products (sku, name, description, price_cents, stock) VALUES ($1, $2, $3, $4, $5)`,
			p.SKU, p.Name, p.Description, p.PriceCents, p.Stock)
		require.NoError(t, err)
	}

	products, err := catalog.LoadProducts(ctx, pool)
	require.NoError(t, err)
	require.Len(t, products, 3)

	log := testLogger()
	eng := engine.New(log, clock.System(), products, 5*time.Minute)
	store := outbox.NewMemoryStore(64)
	writer := reskafka.NewWriter(env.KAddr)
	defer writer.Close()
	relay := outbox.NewRelay(log, store, outbox.NewDispatcher(log, writer, eventsTopic), "integration-relay")
	svc := application.NewService(log, eng, store, nil)

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()
	relayDone := make(chan error, 1)
	go func() { relayDone <- relay.Run(relayCtx) }()

	r, err := svc.Reserve(ctx, application.ReserveRequest{
		SKU: "IPHONE-15-PRO", UserID: "user-1", Quantity: 2, IdempotencyKey: "flow-key-1",
	})
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, r.ID)
	require.NoError(t, err)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  env.KAddr,
		Topic:    eventsTopic,
		GroupID:  "integration-consumer",
		MaxWait:  time.Second,
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})
	defer reader.Close()

	otel.SetTextMapPropagator(propagation.TraceContext{})

	types := make(map[string]kafka.Message, 2)
	readCtx, cancelRead := context.WithTimeout(ctx, time.Minute)
	defer cancelRead()
	for len(types) < 2 {
		msg, err := reader.ReadMessage(readCtx)
		require.NoError(t, err)
		types[headerValue(msg, "event_type")] = msg
	}

	created, ok := types["ReservationCreated"]
	require.True(t, ok)
	assert.Equal(t, r.ID, string(created.Key))
	var payload domain.ReservationCreated
	require.NoError(t, json.Unmarshal(created.Value, &payload))
	assert.Equal(t, 2, payload.Quantity)

	confirmed, ok := types["ReservationConfirmed"]
	require.True(t, ok)
	// Consumer-side extraction must at least yield a usable context.
	require.NotNil(t, tracing.ExtractKafkaHeaders(ctx, confirmed.Headers))

	require.Eventually(t, func() bool { return store.Pending() == 0 }, 10*time.Second, 100*time.Millisecond,
		"relay must drain the journal")

	stopRelay()
	require.NoError(t, <-relayDone)
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
