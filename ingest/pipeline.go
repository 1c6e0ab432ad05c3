package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/remiges-tech/logharbour/logharbour"

	"github.com/remiges-tech/playerimport/ingest/repo"
)

// heartbeatInterval throttles the redundant safety pulse. Progress updates
// already refresh the heartbeat on every chunk flush; this extra pulse only
// fires when processing between flushes is slow.
const heartbeatInterval = 30 * time.Second

const sniffLen = 3072

// processBatch streams one claimed batch through parse, normalize, validate
// and chunked insert, then transitions it to exactly one terminal state.
// Returns ErrBatchRowLimit after terminally failing a batch that hit the row
// cap; any other error leaves the batch in 'parsing' for the reaper.
func (w *Worker) processBatch(ctx context.Context, batch *repo.Batch, stream io.ReadCloser) error {
	defer stream.Close()

	startedAt := time.Now().UTC()
	w.logger.Info().LogActivity("Starting batch ingestion", map[string]any{
		"batch_id":  batch.ID.String(),
		"casino_id": batch.CasinoID.String(),
		"file_name": batch.OriginalFileName,
	})

	br := bufio.NewReader(stream)
	w.sniffContent(batch, br)

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	headerRec, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("csv file for batch %s has no header row", batch.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to read header row: %w", err)
	}
	headers := NormalizeHeaders(headerRec)

	var (
		chunk       []repo.RowInsert
		rowNum      int
		validRows   int
		invalidRows int
		parseErrors int
		lastBeat    = time.Now()
	)

	flush := func() error {
		if len(chunk) > 0 {
			if err := w.store.InsertRows(ctx, chunk); err != nil {
				return err
			}
			chunk = chunk[:0]
		}
		if err := w.store.UpdateProgress(ctx, batch.ID, rowNum); err != nil {
			return err
		}
		if time.Since(lastBeat) >= heartbeatInterval {
			if err := w.store.Heartbeat(ctx, batch.ID); err != nil {
				return err
			}
			lastBeat = time.Now()
		}
		return nil
	}

	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				parseErrors++
				continue
			}
			return fmt.Errorf("csv read failed after row %d: %w", rowNum, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}

		rowNum++
		w.metrics.RowsProcessed.Inc()

		if rowNum == w.cfg.RowCap {
			w.logger.Error(ErrBatchRowLimit).LogActivity("Batch exceeds row cap", map[string]any{
				"batch_id":  batch.ID.String(),
				"row_count": rowNum,
				"row_cap":   w.cfg.RowCap,
			})
			if err := w.failBatch(ctx, batch, repo.ErrCodeBatchRowLimit); err != nil {
				return err
			}
			return ErrBatchRowLimit
		}

		raw := BuildRawMap(headers, rec)
		mappedRow := ExtractFields(headers, rec, batch.ColumnMapping)
		payload := BuildCanonicalRow(mappedRow, batch.OriginalFileName, rowNum)

		rawJSON, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("failed to marshal raw row %d: %w", rowNum, err)
		}
		canonicalJSON, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal canonical row %d: %w", rowNum, err)
		}

		ins := repo.RowInsert{
			BatchID:   batch.ID,
			CasinoID:  batch.CasinoID,
			RowNumber: rowNum,
			Raw:       rawJSON,
			Canonical: canonicalJSON,
			Status:    repo.RowStatusStaged,
		}
		if details := ValidateRow(mappedRow); len(details) > 0 {
			ins.Status = repo.RowStatusError
			ins.ErrorCode = repo.ErrCodeValidationFailed
			ins.ErrorDetail = strings.Join(details, "; ")
			invalidRows++
			w.metrics.RowsErrored.Inc()
		} else {
			validRows++
			w.metrics.RowsStaged.Inc()
		}

		chunk = append(chunk, ins)
		if len(chunk) >= w.cfg.ChunkSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if err := flush(); err != nil {
		return err
	}

	completedAt := time.Now().UTC()
	report := Report{
		TotalRows:     rowNum,
		ValidRows:     validRows,
		InvalidRows:   invalidRows,
		DuplicateRows: 0,
		ParseErrors:   parseErrors,
		StartedAt:     startedAt,
		CompletedAt:   completedAt,
		DurationMs:    completedAt.Sub(startedAt).Milliseconds(),
	}
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := w.store.CompleteBatch(ctx, batch.ID, rowNum, reportJSON); err != nil {
		return err
	}
	w.metrics.BatchesCompleted.Inc()

	if err := w.cache.SetTerminal(ctx, batch.ID, repo.StatusStaging); err != nil {
		w.logger.Warn().LogActivity("Failed to cache batch status", map[string]any{
			"batch_id": batch.ID.String(),
			"error":    err.Error(),
		})
	}

	w.logger.LogDataChange("Batch staged", logharbour.ChangeInfo{
		Entity: "Batch",
		Op:     "Complete",
		Changes: []logharbour.ChangeDetail{
			{Field: "status", OldVal: repo.StatusParsing, NewVal: repo.StatusStaging},
		},
	})
	w.logger.Info().LogActivity("Batch ingestion complete", map[string]any{
		"batch_id":     batch.ID.String(),
		"casino_id":    batch.CasinoID.String(),
		"total_rows":   rowNum,
		"valid_rows":   validRows,
		"invalid_rows": invalidRows,
		"duration_ms":  report.DurationMs,
	})
	return nil
}

// failBatch drives the failure terminal transition and its bookkeeping.
func (w *Worker) failBatch(ctx context.Context, batch *repo.Batch, errCode string) error {
	if err := w.store.FailBatch(ctx, batch.ID, errCode); err != nil {
		return err
	}
	w.metrics.BatchesFailed.Inc()

	if err := w.cache.SetTerminal(ctx, batch.ID, repo.StatusFailed); err != nil {
		w.logger.Warn().LogActivity("Failed to cache batch status", map[string]any{
			"batch_id": batch.ID.String(),
			"error":    err.Error(),
		})
	}

	w.logger.LogDataChange("Batch failed", logharbour.ChangeInfo{
		Entity: "Batch",
		Op:     "Fail",
		Changes: []logharbour.ChangeDetail{
			{Field: "status", OldVal: repo.StatusParsing, NewVal: repo.StatusFailed},
		},
	})
	return nil
}

// sniffContent peeks at the stream head and warns when the payload does not
// look like CSV. Advisory only: the parser remains the authority.
func (w *Worker) sniffContent(batch *repo.Batch, br *bufio.Reader) {
	head, _ := br.Peek(sniffLen)
	if len(head) == 0 {
		return
	}
	m := mimetype.Detect(head)
	if m.Is("text/csv") || m.Is("text/plain") || m.Is("text/tab-separated-values") {
		return
	}
	w.logger.Warn().LogActivity("Uploaded file does not look like CSV", map[string]any{
		"batch_id":      batch.ID.String(),
		"detected_type": m.String(),
	})
}
