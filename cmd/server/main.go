package main

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"vcon/internal/jws"
	"vcon/internal/platform/config"
	"vcon/internal/platform/httpserver"
	"vcon/internal/platform/kafka"
	"vcon/internal/platform/logger"
	platformmetrics "vcon/internal/platform/metrics"
	"vcon/internal/platform/postgres"
	"vcon/internal/platform/redis"
	httptransport "vcon/internal/transport/http"
	"vcon/internal/vcon/events"
	"vcon/internal/vcon/handler"
	vconmetrics "vcon/internal/vcon/metrics"
	"vcon/internal/vcon/service"
	"vcon/internal/vcon/store"
	"vcon/pkg/platform/circuit"
	"vcon/pkg/vcon"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	_ = godotenv.Load()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log); err != nil {
		log.Error("vcon gateway stopped", "error", err)
		os.Exit(1)
	}
}

// closer releases a resource acquired during wiring.
type closer func()

func run(ctx context.Context, log *slog.Logger) error {
	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	var closers []closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	validator, err := buildValidator(cfg, log)
	if err != nil {
		return err
	}

	key, err := loadSigningKey(cfg, log)
	if err != nil {
		return err
	}

	health := map[string]httptransport.HealthCheck{}
	vconStore, storeCloser, err := buildStore(ctx, cfg, health)
	if err != nil {
		return err
	}
	if storeCloser != nil {
		closers = append(closers, storeCloser)
	}

	publisher, pubCloser, err := buildPublisher(ctx, cfg, log, health)
	if err != nil {
		return err
	}
	closers = append(closers, pubCloser)

	reg := prometheus.DefaultRegisterer
	svc := service.New(vconStore,
		service.WithLogger(log),
		service.WithMetrics(vconmetrics.New(reg)),
		service.WithPublisher(publisher),
		service.WithValidator(validator),
		service.WithSigningKey(key, ""),
		service.WithVerifyConcurrency(cfg.VerifyConcurrency),
	)

	router := httptransport.NewRouter(httptransport.Config{
		Logger:   log,
		Metrics:  platformmetrics.New(reg),
		Health:   health,
		Handlers: []httptransport.Registrar{handler.New(svc, log)},
	})
	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting vcon gateway", "addr", cfg.Addr, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func buildValidator(cfg config.Server, log *slog.Logger) (*vcon.Validator, error) {
	if cfg.MimetypesFile == "" {
		return vcon.NewValidator(), nil
	}
	types, ok, err := config.LoadMimetypes(cfg.MimetypesFile)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warn("mimetypes file has no mimetypes key, using defaults", "path", cfg.MimetypesFile)
		return vcon.NewValidator(), nil
	}
	log.Info("loaded mimetype allow-list", "path", cfg.MimetypesFile, "count", len(types))
	return vcon.NewValidator(vcon.WithMimetypes(types...)), nil
}

func loadSigningKey(cfg config.Server, log *slog.Logger) (crypto.Signer, error) {
	if cfg.SigningKeyFile == "" {
		key, err := jws.GenerateKey(cfg.SigningAlg)
		if err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
		log.Warn("no signing key configured, generated an ephemeral key", "alg", cfg.SigningAlg)
		return key, nil
	}
	data, err := os.ReadFile(cfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	key, err := jws.ParsePrivateKeyPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return key, nil
}

func buildStore(ctx context.Context, cfg config.Server, health map[string]httptransport.HealthCheck) (service.Store, closer, error) {
	switch cfg.Store {
	case config.StoreRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		health["redis"] = client.Health
		return store.NewRedisStore(client.Client, store.WithTTL(cfg.Redis.TTL)), func() { _ = client.Close() }, nil
	case config.StorePostgres:
		db, err := postgres.New(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		pg := store.NewPostgresStore(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		health["postgres"] = db.PingContext
		return pg, func() { _ = db.Close() }, nil
	default:
		return store.NewInMemoryStore(), nil, nil
	}
}

func buildPublisher(ctx context.Context, cfg config.Server, log *slog.Logger, health map[string]httptransport.HealthCheck) (service.Publisher, closer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NewLogPublisher(log), func() {}, nil
	}
	client, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	async := events.NewAsync(events.NewKafkaPublisher(client, cfg.Kafka.Topic), 1024,
		events.WithLogger(log),
		events.WithBreaker(circuit.New("kafka")),
	)
	health["events"] = async.Health
	return async, func() {
		async.Close()
		client.Close()
	}, nil
}
