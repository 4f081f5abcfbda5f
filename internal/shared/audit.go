package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog represents a record stored in audit_logs. Before and After carry
// JSON snapshots of the mutated state; both may be empty for create actions.
type AuditLog struct {
	ID      int64     `json:"id"`
	ActorID int64     `json:"actor_id"`
	Action  string    `json:"action"`
	Before  string    `json:"before,omitempty"`
	After   string    `json:"after,omitempty"`
	IP      string    `json:"ip,omitempty"`
	At      time.Time `json:"at"`
}

// Execer is satisfied by both pgxpool.Pool and pgx.Tx so audit entries can be
// written inside the transaction of the operation they describe.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditLogger writes append-only records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry outside any caller transaction.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	return l.RecordIn(ctx, l.pool, log)
}

// RecordIn persists the log entry using the supplied executor, typically the
// transaction of the state-changing operation being audited.
func (l *AuditLogger) RecordIn(ctx context.Context, exec Execer, log AuditLog) error {
	if log.Action == "" {
		return errors.New("audit log requires action")
	}
	var actor pgtype.Int8
	if log.ActorID > 0 {
		actor = pgtype.Int8{Int64: log.ActorID, Valid: true}
	}
	var at pgtype.Timestamptz
	if !log.At.IsZero() {
		at = pgtype.Timestamptz{Time: log.At, Valid: true}
	}
	_, err := exec.Exec(ctx, `INSERT INTO audit_logs (actor_id, action, before, after, ip, created_at)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), COALESCE($6, NOW()))`,
		actor, log.Action, log.Before, log.After, log.IP, at)
	return err
}

// List returns recent audit entries, newest first, optionally filtered by action.
func (l *AuditLogger) List(ctx context.Context, action string, limit int) ([]AuditLog, error) {
	if l == nil {
		return nil, errors.New("audit logger not initialised")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := l.pool.Query(ctx, `SELECT id, COALESCE(actor_id, 0), action, COALESCE(before, ''), COALESCE(after, ''), COALESCE(ip, ''), created_at
FROM audit_logs
WHERE ($1 = '' OR action = $1)
ORDER BY created_at DESC, id DESC
LIMIT $2`, action, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []AuditLog
	for rows.Next() {
		var entry AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.Before, &entry.After, &entry.IP, &entry.At); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
