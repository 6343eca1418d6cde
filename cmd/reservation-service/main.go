package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/dmehra2102/Inventory-Reservation-System/internal/catalog"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/application"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/engine"
	"github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/infrastructure/advisory"
	rescache "github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/infrastructure/cache"
	reshttp "github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/infrastructure/http"
	reskafka "github.com/dmehra2102/Inventory-Reservation-System/internal/reservation/infrastructure/kafka"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/clock"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/logging"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/outbox"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/shutdown"
	"github.com/dmehra2102/Inventory-Reservation-System/pkg/tracing"
)

func main() {
	log := logging.New()

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	// Configuration
	httpAddr := env("HTTP_ADDR", ":8080")
	kafkaBrokers := []string{env("KAFKA_ADDR", "localhost:9092")}
	jaeger := env("JAEGER_URL", "http://localhost:14268/api/traces")
	eventsTopic := env("EVENTS_TOPIC", "reservation.events")
	advisoryURL := env("ADVISORY_URL", "")
	redisAddr := env("REDIS_ADDR", "")
	pgURL := env("PG_URL", "")
	catalogPath := env("CATALOG_PATH", "")
	ttl := envDuration(log, "RESERVATION_TTL", engine.DefaultTTL)
	sweepEvery := envDuration(log, "SWEEP_INTERVAL", engine.DefaultSweepInterval)

	tp, err := tracing.Init(ctx, "reservation-service", jaeger, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	products, err := loadCatalog(ctx, log, pgURL, catalogPath)
	if err != nil {
		log.Error("catalog load failed", "err", err)
		os.Exit(1)
	}
	log.Info("catalog loaded", "products", len(products))

	eng := engine.New(log, clock.System(), products, ttl)

	// Event pipeline
	store := outbox.NewMemoryStore(4096)
	writer := reskafka.NewWriter(kafkaBrokers)
	defer writer.Close()
	dispatch := outbox.NewDispatcher(log, writer, eventsTopic)
	relay := outbox.NewRelay(log, store, dispatch, "reservation-service-relay")

	var adv application.AdvisoryClient
	if advisoryURL != "" {
		adv = advisory.NewClient(log, advisoryURL)
	}

	svc := application.NewService(log, eng, store, adv)

	var cache reshttp.StatsCache
	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer rdb.Close()
		cache = rescache.NewStatsCache(log, rdb, 2*time.Second)
	}

	handler := reshttp.NewHandler(log, svc, cache)
	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:         httpAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error { return svc.RunSweeper(gctx, sweepEvery) })
	g.Go(func() error {
		log.Info("http listening", "addr", httpAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("service stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("reservation-service shutdown complete")
}

// loadCatalog picks the catalog source: postgres when PG_URL is set, then a
// yaml seed file, then the built-in defaults.
func loadCatalog(ctx context.Context, log *slog.Logger, pgURL, catalogPath string) ([]domain.Product, error) {
	switch {
	case pgURL != "":
		pool, err := pgxpool.New(ctx, pgURL)
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		return catalog.LoadProducts(ctx, pool)
	case catalogPath != "":
		return catalog.Load(catalogPath)
	default:
		log.Info("no catalog source configured, using built-in seed")
		return catalog.Default(), nil
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDuration(log *slog.Logger, k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn("invalid duration, using default", "key", k, "value", v, "default", def)
		return def
	}
	return d
}
