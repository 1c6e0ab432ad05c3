package ingest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/remiges-tech/logharbour/logharbour"

	"github.com/remiges-tech/playerimport/ingest/objstore"
	"github.com/remiges-tech/playerimport/ingest/repo"
	"github.com/remiges-tech/playerimport/metrics"
)

// Worker polls the batch queue and ingests one batch at a time. Mutual
// exclusion across instances comes entirely from the claim statement;
// nothing here is shared between instances.
type Worker struct {
	store    Store
	objStore objstore.ObjectStore
	logger   *logharbour.Logger
	metrics  *metrics.WorkerMetrics
	cache    *StatusCache
	cfg      Config

	// fetch downloads a signed URL; injectable for tests.
	fetch func(ctx context.Context, signedURL string) (io.ReadCloser, error)
}

// NewWorker wires the worker. cache may wrap a nil Redis client.
func NewWorker(store Store, objStore objstore.ObjectStore, logger *logharbour.Logger,
	m *metrics.WorkerMetrics, cache *StatusCache, cfg Config) *Worker {
	// No overall client timeout: large files stream for longer than any
	// sane fixed limit. Cancellation comes from the request context.
	hc := &http.Client{}
	return &Worker{
		store:    store,
		objStore: objStore,
		logger:   logger,
		metrics:  m,
		cache:    cache,
		cfg:      cfg,
		fetch: func(ctx context.Context, signedURL string) (io.ReadCloser, error) {
			return objstore.Fetch(ctx, hc, signedURL)
		},
	}
}

// Run is the main poll loop. The context only gates iteration boundaries:
// once a batch is claimed, its ingestion runs on a background context so a
// batch in flight always reaches a terminal state before the worker exits.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info().LogActivity("Import worker started", map[string]any{
		"poll_interval": w.cfg.PollInterval.String(),
		"chunk_size":    w.cfg.ChunkSize,
		"row_cap":       w.cfg.RowCap,
	})

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().LogActivity("Import worker stopping", nil)
			return
		default:
		}

		processed := w.RunOneIteration(context.Background())
		if !processed {
			select {
			case <-ctx.Done():
				w.logger.Info().LogActivity("Import worker stopping", nil)
				return
			case <-time.After(w.cfg.PollInterval):
			}
		}
	}
}

// RunOneIteration runs the reaper, claims at most one batch and ingests it.
// Returns true when a batch was claimed and terminated; false means the
// caller should sleep for the poll interval (idle queue or an error that the
// reaper will recover on a later pass).
func (w *Worker) RunOneIteration(ctx context.Context) bool {
	batch, err := w.claimNext(ctx)
	if err != nil {
		w.logger.Error(err).LogActivity("Claim pass failed", nil)
		return false
	}
	if batch == nil {
		return false
	}

	w.metrics.BatchesClaimed.Inc()
	w.logger.Info().LogActivity("Claimed batch", map[string]any{
		"batch_id":  batch.ID.String(),
		"casino_id": batch.CasinoID.String(),
		"file_name": batch.OriginalFileName,
		"attempt":   batch.AttemptCount,
	})

	if batch.StoragePath == "" {
		// Should be prevented at upload. Not failed here: leaving the batch
		// in 'parsing' lets the reaper resolve it once its heartbeat ages.
		w.logger.Error(errors.New(repo.ErrCodeStoragePathMissing)).LogActivity("Claimed batch has no storage path", map[string]any{
			"batch_id": batch.ID.String(),
		})
		return false
	}

	signedURL, err := w.objStore.PresignedGetURL(ctx, batch.StoragePath, w.cfg.SignedURLExpiry)
	if err != nil {
		w.logger.Error(err).LogActivity("Failed to presign storage path", map[string]any{
			"batch_id":     batch.ID.String(),
			"storage_path": batch.StoragePath,
		})
		return false
	}

	stream, err := w.fetch(ctx, signedURL)
	if err != nil {
		w.logger.Error(err).LogActivity("Failed to open download stream", map[string]any{
			"batch_id": batch.ID.String(),
		})
		return false
	}

	if err := w.processBatch(ctx, batch, stream); err != nil {
		if errors.Is(err, ErrBatchRowLimit) {
			// Batch already terminally failed inside the pipeline.
			return true
		}
		w.logger.Error(err).LogActivity("Batch ingestion failed", map[string]any{
			"batch_id": batch.ID.String(),
		})
		return false
	}
	return true
}

// claimNext runs the reaper and then tries to claim one batch. The reaper
// runs first so a batch it recovers is immediately eligible for this claim.
func (w *Worker) claimNext(ctx context.Context) (*repo.Batch, error) {
	reset, err := w.store.ResetStaleBatches(ctx)
	if err != nil {
		return nil, err
	}
	if reset > 0 {
		w.metrics.ReaperResets.Add(float64(reset))
		w.logger.Warn().LogActivity("Reaper reset stale batches", map[string]any{
			"count": reset,
		})
	}

	failed, err := w.store.FailExhaustedBatches(ctx)
	if err != nil {
		return nil, err
	}
	if failed > 0 {
		w.metrics.ReaperFailures.Add(float64(failed))
		w.logger.Warn().LogActivity("Reaper failed exhausted batches", map[string]any{
			"count": failed,
		})
	}

	return w.store.ClaimBatch(ctx)
}
