package imports

import (
	"fmt"
	"time"

	"github.com/atrium-pm/atrium/internal/platform/httpx"
)

// Import batch kinds.
const (
	KindRooms  = "rooms"
	KindLeases = "leases"
)

// Import batch statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// ImportBatch tracks one uploaded file through the async pipeline.
type ImportBatch struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Filename  string    `json:"filename"`
	FilePath  string    `json:"-"`
	Status    string    `json:"status"`
	Created   int       `json:"created"`
	Updated   int       `json:"updated"`
	Detail    string    `json:"detail,omitempty"`
	CreatedBy int64     `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RowError ties a validation failure to its CSV line. Row numbering starts at
// 2, line 1 being the header.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Result is the outcome of a successful reconciliation.
type Result struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// Errors.
var (
	ErrBatchNotFound = fmt.Errorf("imports: batch not found: %w", httpx.ErrNotFound)
	ErrUnknownKind   = fmt.Errorf("imports: unknown import kind: %w", httpx.ErrValidation)
	ErrBatchStatus   = fmt.Errorf("imports: batch is not in the required status: %w", httpx.ErrStateConflict)
)
