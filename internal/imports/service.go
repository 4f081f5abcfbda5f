package imports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atrium-pm/atrium/jobs"
)

// Enqueuer submits import processing tasks to the queue.
type Enqueuer interface {
	EnqueueImportProcess(ctx context.Context, payload jobs.ImportProcessPayload) (*asynq.TaskInfo, error)
}

// Service owns the import pipeline: file intake on the HTTP side, batch
// processing on the worker side.
type Service struct {
	repo       *Repository
	queue      Enqueuer
	storageDir string
	logger     *slog.Logger
	reconciler Reconciler
}

// NewService constructs a Service.
func NewService(repo *Repository, queue Enqueuer, storageDir string, logger *slog.Logger) *Service {
	return &Service{repo: repo, queue: queue, storageDir: storageDir, logger: logger}
}

// CreateBatch stores the uploaded file, records a pending batch and enqueues
// its processing. The HTTP caller gets the batch id back immediately and polls
// for the outcome.
func (s *Service) CreateBatch(ctx context.Context, kind, filename string, file io.Reader, actorID int64) (ImportBatch, error) {
	if kind != KindRooms && kind != KindLeases {
		return ImportBatch{}, ErrUnknownKind
	}
	path, err := s.saveFile(filename, file)
	if err != nil {
		return ImportBatch{}, err
	}

	batch, err := s.repo.CreateBatch(ctx, kind, filename, path, actorID)
	if err != nil {
		return ImportBatch{}, err
	}
	if _, err := s.queue.EnqueueImportProcess(ctx, jobs.ImportProcessPayload{BatchID: batch.ID}); err != nil {
		_ = s.repo.MarkFailed(ctx, batch.ID, detailJSON("enqueue failed: "+err.Error()))
		return ImportBatch{}, fmt.Errorf("imports: enqueue batch %d: %w", batch.ID, err)
	}
	s.logger.Info("import batch queued",
		slog.Int64("batch_id", batch.ID), slog.String("kind", kind), slog.String("filename", filename))
	return batch, nil
}

// Batch loads a batch record.
func (s *Service) Batch(ctx context.Context, id int64) (ImportBatch, error) {
	return s.repo.GetBatch(ctx, id)
}

// Batches lists recent batch records.
func (s *Service) Batches(ctx context.Context, limit int) ([]ImportBatch, error) {
	return s.repo.ListBatches(ctx, limit)
}

// Process runs one batch through the reconciler. Data problems (unreadable
// file, row errors) mark the batch failed and consume the task; only
// infrastructure errors propagate for retry.
func (s *Service) Process(ctx context.Context, batchID int64) error {
	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.Status == StatusDone || batch.Status == StatusFailed {
		return nil
	}
	if err := s.repo.MarkProcessing(ctx, batchID); err != nil {
		if errors.Is(err, ErrBatchStatus) {
			// A concurrent delivery beat us to it.
			return nil
		}
		return err
	}

	rows, err := s.readFile(batch.FilePath)
	if err != nil {
		s.logger.Warn("import batch unreadable", slog.Int64("batch_id", batchID), slog.Any("error", err))
		return s.repo.MarkFailed(ctx, batchID, detailJSON(err.Error()))
	}

	var result Result
	var rowErrors []RowError
	err = s.repo.Reconcile(ctx, func(store Store) error {
		var rerr error
		switch batch.Kind {
		case KindRooms:
			result, rowErrors, rerr = s.reconciler.ImportRooms(ctx, store, rows)
		case KindLeases:
			result, rowErrors, rerr = s.reconciler.ImportLeases(ctx, store, rows)
		default:
			return ErrUnknownKind
		}
		if rerr != nil {
			return rerr
		}
		if len(rowErrors) > 0 {
			// Roll every upsert of the scan back: the file is applied
			// completely or not at all.
			return errRowsFailed
		}
		return nil
	})
	switch {
	case err == nil:
		s.logger.Info("import batch done", slog.Int64("batch_id", batchID),
			slog.Int("created", result.Created), slog.Int("updated", result.Updated))
		return s.repo.MarkDone(ctx, batchID, result)
	case errors.Is(err, errRowsFailed):
		detail, _ := json.Marshal(rowErrors)
		s.logger.Warn("import batch rejected", slog.Int64("batch_id", batchID),
			slog.Int("row_errors", len(rowErrors)))
		return s.repo.MarkFailed(ctx, batchID, string(detail))
	default:
		_ = s.repo.MarkFailed(ctx, batchID, detailJSON(err.Error()))
		return err
	}
}

var errRowsFailed = errors.New("imports: row errors collected")

func (s *Service) saveFile(filename string, file io.Reader) (string, error) {
	if err := os.MkdirAll(s.storageDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("import-%d-%s", time.Now().UnixNano(), filepath.Base(filename))
	path := filepath.Join(s.storageDir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Service) readFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRows(f)
}

func detailJSON(message string) string {
	out, _ := json.Marshal(map[string]string{"error": message})
	return string(out)
}
