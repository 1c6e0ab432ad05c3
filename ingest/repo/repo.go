// Package repo is the sole holder of the database pool for the import
// worker. Every statement the worker executes lives in this package; callers
// never see SQL or the pool itself. All statements bind parameters -- no
// value sourced from users or the database is ever interpolated into SQL.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Batch lifecycle statuses. The worker writes only StatusParsing,
// StatusStaging and StatusFailed; the reaper reset is the one exception
// allowed to write StatusUploaded. StatusExecuting and StatusCompleted
// belong to the downstream execute step and are never written here.
const (
	StatusUploaded  = "uploaded"
	StatusParsing   = "parsing"
	StatusStaging   = "staging"
	StatusFailed    = "failed"
	StatusExecuting = "executing"
	StatusCompleted = "completed"
)

// Row statuses for import_rows.
const (
	RowStatusStaged = "staged"
	RowStatusError  = "error"
)

// Batch-level error codes surfaced to the upload UI.
const (
	ErrCodeMaxAttempts        = "MAX_ATTEMPTS_EXCEEDED"
	ErrCodeBatchRowLimit      = "BATCH_ROW_LIMIT"
	ErrCodeStoragePathMissing = "STORAGE_PATH_MISSING"
)

// Row-level error code.
const ErrCodeValidationFailed = "VALIDATION_FAILED"

// Batch is one uploaded CSV awaiting ingestion, as returned by ClaimBatch.
// CasinoID is the owning tenant; every row written for this batch must carry
// it, and it is read from nowhere else.
type Batch struct {
	ID               uuid.UUID
	CasinoID         uuid.UUID
	StoragePath      string
	OriginalFileName string
	ColumnMapping    map[string]string
	Status           string
	AttemptCount     int32
	CreatedAt        time.Time
}

// RowInsert is one processed CSV row ready for the staging table.
type RowInsert struct {
	BatchID     uuid.UUID
	CasinoID    uuid.UUID
	RowNumber   int
	Raw         []byte
	Canonical   []byte
	Status      string
	ErrorCode   string
	ErrorDetail string
}

// Repo wraps the pgx pool. The pool field is unexported on purpose: handing
// the pool to another package would break the single-boundary rule.
type Repo struct {
	pool        *pgxpool.Pool
	workerID    string
	stmtTimeout time.Duration
	staleAfter  time.Duration
	maxAttempts int
}

// Config for New.
type Config struct {
	WorkerID         string
	StatementTimeout time.Duration
	HeartbeatStale   time.Duration
	MaxAttempts      int
}

// New connects a pool and returns the repository. Pool sizing is
// conservative: the worker processes one batch at a time, so a handful of
// connections covers the loop plus the health check.
func New(ctx context.Context, connString string, cfg Config) (*Repo, error) {
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolCfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repo{
		pool:        pool,
		workerID:    cfg.WorkerID,
		stmtTimeout: cfg.StatementTimeout,
		staleAfter:  cfg.HeartbeatStale,
		maxAttempts: cfg.MaxAttempts,
	}, nil
}

// Close drains the pool. Called once during shutdown.
func (r *Repo) Close() {
	r.pool.Close()
}

// Ping verifies database reachability for the readiness probe.
func (r *Repo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.stmtTimeout)
}

// ClaimBatch atomically claims the oldest uploaded batch for this worker.
// FOR UPDATE SKIP LOCKED makes concurrent claimants see disjoint candidate
// sets, so exactly one worker wins each batch. Returns (nil, nil) when no
// batch has status 'uploaded'.
func (r *Repo) ClaimBatch(ctx context.Context) (*Batch, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var (
		b       Batch
		mapping []byte
	)
	err := r.pool.QueryRow(ctx, `
		WITH candidate AS (
			SELECT id FROM batches
			WHERE status = 'uploaded'
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE batches b
		SET status = 'parsing',
		    claimed_by = $1,
		    claimed_at = now(),
		    heartbeat_at = now(),
		    attempt_count = attempt_count + 1
		FROM candidate
		WHERE b.id = candidate.id
		RETURNING b.id, b.casino_id, b.storage_path, b.original_file_name,
		          b.column_mapping, b.status, b.attempt_count, b.created_at`,
		r.workerID,
	).Scan(&b.ID, &b.CasinoID, &b.StoragePath, &b.OriginalFileName,
		&mapping, &b.Status, &b.AttemptCount, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim batch: %w", err)
	}

	b.ColumnMapping = make(map[string]string)
	if len(mapping) > 0 {
		if err := json.Unmarshal(mapping, &b.ColumnMapping); err != nil {
			return nil, fmt.Errorf("failed to decode column mapping for batch %s: %w", b.ID, err)
		}
	}
	return &b, nil
}

// ResetStaleBatches returns stalled 'parsing' batches with attempts left to
// 'uploaded' so another claim can pick them up. The attempt_count predicate
// keeps this disjoint from FailExhaustedBatches: a batch matches exactly one
// of the two in any reaper pass.
func (r *Repo) ResetStaleBatches(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		UPDATE batches
		SET status = 'uploaded',
		    claimed_by = NULL,
		    claimed_at = NULL,
		    heartbeat_at = NULL
		WHERE status = 'parsing'
		  AND heartbeat_at < now() - make_interval(secs => $1)
		  AND attempt_count < $2`,
		r.staleAfter.Seconds(), r.maxAttempts,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale batches: %w", err)
	}
	return tag.RowsAffected(), nil
}

// FailExhaustedBatches permanently fails stalled 'parsing' batches whose
// attempt counter has reached the maximum.
func (r *Repo) FailExhaustedBatches(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		UPDATE batches
		SET status = 'failed',
		    last_error_code = $3,
		    last_error_at = now()
		WHERE status = 'parsing'
		  AND heartbeat_at < now() - make_interval(secs => $1)
		  AND attempt_count >= $2`,
		r.staleAfter.Seconds(), r.maxAttempts, ErrCodeMaxAttempts,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fail exhausted batches: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Heartbeat stamps the claim as still alive.
func (r *Repo) Heartbeat(ctx context.Context, batchID uuid.UUID) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.pool.Exec(ctx,
		`UPDATE batches SET heartbeat_at = now() WHERE id = $1`, batchID)
	if err != nil {
		return fmt.Errorf("failed to heartbeat batch %s: %w", batchID, err)
	}
	return nil
}

// UpdateProgress records the running row count. Also refreshes the
// heartbeat, so a steadily-flushing pipeline never goes stale.
func (r *Repo) UpdateProgress(ctx context.Context, batchID uuid.UUID, totalRows int) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		UPDATE batches
		SET total_rows = $2, heartbeat_at = now()
		WHERE id = $1`,
		batchID, totalRows)
	if err != nil {
		return fmt.Errorf("failed to update progress for batch %s: %w", batchID, err)
	}
	return nil
}

// CompleteBatch transitions the batch to its success terminal state and
// stores the report summary.
func (r *Repo) CompleteBatch(ctx context.Context, batchID uuid.UUID, totalRows int, report []byte) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		UPDATE batches
		SET status = 'staging',
		    total_rows = $2,
		    report_summary = $3,
		    heartbeat_at = now()
		WHERE id = $1`,
		batchID, totalRows, report)
	if err != nil {
		return fmt.Errorf("failed to complete batch %s: %w", batchID, err)
	}
	return nil
}

// FailBatch transitions the batch to its failure terminal state.
func (r *Repo) FailBatch(ctx context.Context, batchID uuid.UUID, errCode string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		UPDATE batches
		SET status = 'failed',
		    last_error_code = $2,
		    last_error_at = now()
		WHERE id = $1`,
		batchID, errCode)
	if err != nil {
		return fmt.Errorf("failed to fail batch %s: %w", batchID, err)
	}
	return nil
}

// InsertRows writes one chunk as a single multi-row insert. The conflict
// clause on (batch_id, row_number) makes re-runs after a reaper reset safe:
// rows committed by a previous attempt are silently skipped.
func (r *Repo) InsertRows(ctx context.Context, rows []RowInsert) error {
	if len(rows) == 0 {
		return nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var sb strings.Builder
	sb.WriteString(`INSERT INTO import_rows
		(batch_id, casino_id, row_number, raw, canonical, status, error_code, error_detail)
		VALUES `)

	args := make([]any, 0, len(rows)*8)
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 8
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8)
		args = append(args,
			row.BatchID, row.CasinoID, row.RowNumber, row.Raw, row.Canonical,
			row.Status, nullable(row.ErrorCode), nullable(row.ErrorDetail))
	}
	sb.WriteString(` ON CONFLICT (batch_id, row_number) DO NOTHING`)

	if _, err := r.pool.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("failed to insert %d rows: %w", len(rows), err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
