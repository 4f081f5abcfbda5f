package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeImportProcess is the task type for processing uploaded import files.
	TaskTypeImportProcess = "import:process"
)

// ImportProcessPayload identifies the import batch to process.
type ImportProcessPayload struct {
	BatchID int64 `json:"batch_id"`
}

// NewImportProcessTask constructs an Asynq task.
func NewImportProcessTask(payload ImportProcessPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeImportProcess, data), nil
}
