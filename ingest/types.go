// Package ingest implements the player-import worker: it claims uploaded
// CSV batches from the shared queue, streams them from object storage,
// normalizes and validates every row against the canonical v1 contract, and
// stages the results for the downstream execute step.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/remiges-tech/playerimport/ingest/repo"
)

// ErrBatchRowLimit is the sentinel raised when a batch hits the configured
// row cap. The batch is already terminally failed when this is returned, so
// the poll loop swallows it instead of treating it as a transient error.
var ErrBatchRowLimit = errors.New("batch row limit exceeded")

// Store is the repository surface the worker consumes. Implemented by
// *repo.Repo; tests substitute an in-memory fake.
type Store interface {
	ClaimBatch(ctx context.Context) (*repo.Batch, error)
	ResetStaleBatches(ctx context.Context) (int64, error)
	FailExhaustedBatches(ctx context.Context) (int64, error)
	Heartbeat(ctx context.Context, batchID uuid.UUID) error
	UpdateProgress(ctx context.Context, batchID uuid.UUID, totalRows int) error
	CompleteBatch(ctx context.Context, batchID uuid.UUID, totalRows int, report []byte) error
	FailBatch(ctx context.Context, batchID uuid.UUID, errCode string) error
	InsertRows(ctx context.Context, rows []repo.RowInsert) error
}

// Config holds the loop and pipeline tunables the worker needs.
type Config struct {
	WorkerID        string
	PollInterval    time.Duration
	ChunkSize       int
	RowCap          int
	SignedURLExpiry time.Duration
}

// Report is the summary persisted on the batch at completion.
type Report struct {
	TotalRows     int       `json:"total_rows"`
	ValidRows     int       `json:"valid_rows"`
	InvalidRows   int       `json:"invalid_rows"`
	DuplicateRows int       `json:"duplicate_rows"`
	ParseErrors   int       `json:"parse_errors"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	DurationMs    int64     `json:"duration_ms"`
}
