// Command importworker runs the player-import ingestion worker: it claims
// uploaded CSV batches, streams them from object storage, stages validated
// rows in Postgres and serves health and metrics endpoints on the side.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/remiges-tech/logharbour/logharbour"

	"github.com/remiges-tech/playerimport/config"
	"github.com/remiges-tech/playerimport/health"
	"github.com/remiges-tech/playerimport/ingest"
	"github.com/remiges-tech/playerimport/ingest/objstore"
	"github.com/remiges-tech/playerimport/ingest/repo"
	"github.com/remiges-tech/playerimport/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalln("Failed to load configuration:", err)
	}

	lctx := logharbour.NewLoggerContext(logharbour.Info)
	logger := logharbour.NewLogger(lctx, "playerimport", os.Stdout).
		WithModule("importworker").
		WithInstanceId(cfg.WorkerID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if os.Getenv("SKIP_MIGRATION") != "true" {
		if err := runMigrations(ctx, cfg.DatabaseURL); err != nil {
			log.Fatalln("Failed to run migrations:", err)
		}
		logger.Info().LogActivity("Database migrations applied", nil)
	}

	store, err := repo.New(ctx, cfg.DatabaseURL, repo.Config{
		WorkerID:         cfg.WorkerID,
		StatementTimeout: cfg.StatementTimeout,
		HeartbeatStale:   cfg.HeartbeatStale,
		MaxAttempts:      cfg.MaxAttempts,
	})
	if err != nil {
		log.Fatalln("Failed to connect to database:", err)
	}
	defer store.Close()

	objStore, err := objstore.NewMinioObjectStore(objstore.Options{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		log.Fatalln("Failed to create object store client:", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().LogActivity("Redis unreachable, status cache disabled", map[string]any{
				"addr":  cfg.RedisAddr,
				"error": err.Error(),
			})
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}
	cache := ingest.NewStatusCache(redisClient, cfg.StatusCacheTTL)

	reg := prometheus.NewRegistry()
	m := metrics.NewWorkerMetrics(reg)

	healthSrv := health.NewServer(cfg.HealthPort, cfg.WorkerID, store, reg)
	go func() {
		if err := healthSrv.Start(); err != nil {
			logger.Error(err).LogActivity("Health listener failed", nil)
		}
	}()

	worker := ingest.NewWorker(store, objStore, logger, m, cache, ingest.Config{
		WorkerID:        cfg.WorkerID,
		PollInterval:    cfg.PollInterval,
		ChunkSize:       cfg.ChunkSize,
		RowCap:          cfg.RowCap,
		SignedURLExpiry: cfg.SignedURLExpiry,
	})

	logger.Info().LogActivity("Import worker starting", map[string]any{
		"worker_id":   cfg.WorkerID,
		"health_port": cfg.HealthPort,
	})

	worker.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err).LogActivity("Health listener shutdown failed", nil)
	}
	logger.Info().LogActivity("Import worker stopped", nil)
}

// runMigrations uses a dedicated single connection so migration locks never
// tie up the worker pool.
func runMigrations(ctx context.Context, connString string) error {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	return repo.MigrateDatabase(ctx, conn)
}
