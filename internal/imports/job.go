package imports

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/atrium-pm/atrium/jobs"
)

// Job processes import batches coming from the queue.
type Job struct {
	service *Service
	logger  *slog.Logger
}

// NewJob constructs a Job handler.
func NewJob(service *Service, logger *slog.Logger) *Job {
	return &Job{service: service, logger: logger}
}

// Handle fulfils the asynq.HandlerFunc contract.
func (j *Job) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.service == nil {
		return errors.New("imports job not configured")
	}
	var payload jobs.ImportProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.BatchID == 0 {
		return asynq.SkipRetry
	}
	if err := j.service.Process(ctx, payload.BatchID); err != nil {
		if errors.Is(err, ErrBatchNotFound) {
			return asynq.SkipRetry
		}
		j.logger.Error("process import batch", slog.Int64("batch_id", payload.BatchID), slog.Any("error", err))
		return err
	}
	return nil
}
