package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	jwttoken "twubi/internal/jwt_token"
	"twubi/internal/ledger/cache"
	"twubi/internal/ledger/handler"
	ledgermetrics "twubi/internal/ledger/metrics"
	"twubi/internal/ledger/service"
	"twubi/internal/ledger/store"
	"twubi/internal/platform/config"
	"twubi/internal/platform/httpserver"
	"twubi/internal/platform/kafka"
	"twubi/internal/platform/logger"
	"twubi/internal/platform/metrics"
	"twubi/internal/platform/postgres"
	"twubi/internal/platform/redis"
	"twubi/pkg/platform/audit/publishers/compliance"
	auditpostgres "twubi/pkg/platform/audit/store/postgres"
	"twubi/pkg/platform/audit/worker"
	"twubi/pkg/platform/circuit"
	"twubi/pkg/platform/httputil"
	metadata "twubi/pkg/platform/middleware/metadata"
	request "twubi/pkg/platform/middleware/request"
	"twubi/pkg/platform/middleware/requesttime"
)

const kafkaRelayName = "kafka"

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal/ledger.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	params, err := cfg.Params()
	if err != nil {
		return err
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.Database.MigrateOnStart {
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
	}

	ledgerStore := store.NewPostgres(db)
	events := auditpostgres.New(db)
	publisher := compliance.New(events,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics()),
	)

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(ledgermetrics.New()),
		service.WithEventReader(events),
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		// The cache is optional; the ledger stays authoritative without it.
		log.Warn("redis unavailable, rate index cache disabled", "error", err)
	}
	if rc != nil {
		defer rc.Close()
		opts = append(opts, service.WithRateIndexCache(cache.NewRateIndexCache(rc.Client, cache.WithLogger(log))))
	}

	svc, err := service.New(
		store.NewPostgresTx(db, ledgerStore).WithTimeout(cfg.TxTimeout),
		publisher,
		service.Config{Genesis: cfg.Genesis(), Params: params},
		opts...,
	)
	if err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	ledgerHandler := handler.New(svc, log, jwttoken.NewJWTServiceAdapter(jwtService), cfg.AdminToken)

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(log, metrics.New()))
	requestTimeout := cfg.TxTimeout + time.Second
	r.Use(request.Timeout(requestTimeout))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok", "database": "ok"}
		code := http.StatusOK
		if err := db.PingContext(r.Context()); err != nil {
			status["status"], status["database"] = "degraded", "unreachable"
			code = http.StatusServiceUnavailable
		}
		if rc != nil {
			status["redis"] = "ok"
			if err := rc.Health(r.Context()); err != nil {
				status["redis"] = "unreachable"
			}
		}
		httputil.WriteJSON(w, code, status)
	})
	r.Handle("/metrics", promhttp.Handler())
	ledgerHandler.Register(r)

	var relay *worker.Worker
	if len(cfg.Kafka.Brokers) > 0 {
		client, err := kafka.NewClient(cfg.Kafka)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka); err != nil {
			log.Warn("could not ensure kafka topic", "topic", cfg.Kafka.Topic, "error", err)
		}
		relay = worker.NewWorker(kafkaRelayName, events, events, kafka.NewSink(client, cfg.Kafka.Topic),
			worker.WithBatchSize(cfg.Kafka.BatchSize),
			worker.WithInterval(cfg.Kafka.PollInterval),
			worker.WithLogger(log),
			worker.WithBreaker(circuit.New("kafka_relay")),
		)
	}

	srv := httpserver.New(cfg.Addr, r, requestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting twubi", "addr", cfg.Addr, "env", cfg.Environment, "genesis", cfg.Genesis())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
