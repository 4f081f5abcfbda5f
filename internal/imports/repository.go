package imports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atrium-pm/atrium/internal/leases"
	"github.com/atrium-pm/atrium/internal/platform/db"
)

// Repository persists import batches and exposes the transactional store the
// reconciler runs against.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const batchColumns = `id, kind, filename, file_path, status, created_count, updated_count,
	COALESCE(detail, ''), COALESCE(created_by, 0), created_at, updated_at`

func scanBatch(row pgx.Row) (ImportBatch, error) {
	var b ImportBatch
	err := row.Scan(&b.ID, &b.Kind, &b.Filename, &b.FilePath, &b.Status, &b.Created, &b.Updated,
		&b.Detail, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

// CreateBatch inserts a pending batch record.
func (r *Repository) CreateBatch(ctx context.Context, kind, filename, filePath string, actorID int64) (ImportBatch, error) {
	b, err := scanBatch(r.pool.QueryRow(ctx, `
		INSERT INTO import_batches (kind, filename, file_path, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, 0), NOW(), NOW())
		RETURNING `+batchColumns,
		kind, filename, filePath, StatusPending, actorID))
	if err != nil {
		return ImportBatch{}, fmt.Errorf("imports: insert batch: %w", err)
	}
	return b, nil
}

// GetBatch fetches a batch by id.
func (r *Repository) GetBatch(ctx context.Context, id int64) (ImportBatch, error) {
	b, err := scanBatch(r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM import_batches WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ImportBatch{}, ErrBatchNotFound
	}
	return b, err
}

// ListBatches returns recent batches, newest first.
func (r *Repository) ListBatches(ctx context.Context, limit int) ([]ImportBatch, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+batchColumns+` FROM import_batches ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []ImportBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// MarkProcessing flips a pending batch to processing. ErrBatchStatus when the
// batch already left pending, which keeps a redelivered task from re-running a
// finished import.
func (r *Repository) MarkProcessing(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE import_batches SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3`,
		id, StatusProcessing, StatusPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBatchStatus
	}
	return nil
}

// MarkDone records the result counts of a finished batch.
func (r *Repository) MarkDone(ctx context.Context, id int64, result Result) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE import_batches
		SET status = $2, created_count = $3, updated_count = $4, detail = NULL, updated_at = NOW()
		WHERE id = $1`,
		id, StatusDone, result.Created, result.Updated)
	return err
}

// MarkFailed records the failure detail, typically a JSON array of row errors.
func (r *Repository) MarkFailed(ctx context.Context, id int64, detail string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE import_batches SET status = $2, detail = NULLIF($3, ''), updated_at = NOW() WHERE id = $1`,
		id, StatusFailed, detail)
	return err
}

// Reconcile runs fn against a transactional store. fn returning an error
// rolls back every upsert of the scan.
func (r *Repository) Reconcile(ctx context.Context, fn func(Store) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&txStore{tx: tx})
	})
}

// txStore implements Store on one transaction.
type txStore struct {
	tx pgx.Tx
}

func (s *txStore) EnsureCompany(ctx context.Context, code string) (int64, bool, error) {
	return s.ensureNode(ctx,
		`SELECT id FROM companies WHERE code = $1`,
		`INSERT INTO companies (code, name) VALUES ($1, $1) RETURNING id`,
		code)
}

func (s *txStore) EnsureCommunity(ctx context.Context, companyID int64, code string) (int64, bool, error) {
	return s.ensureScopedNode(ctx,
		`SELECT id FROM communities WHERE company_id = $1 AND code = $2`,
		`INSERT INTO communities (company_id, code, name) VALUES ($1, $2, $2) RETURNING id`,
		companyID, code)
}

func (s *txStore) EnsureBuilding(ctx context.Context, communityID int64, code string) (int64, bool, error) {
	return s.ensureScopedNode(ctx,
		`SELECT id FROM buildings WHERE community_id = $1 AND code = $2`,
		`INSERT INTO buildings (community_id, code, name) VALUES ($1, $2, $2) RETURNING id`,
		communityID, code)
}

func (s *txStore) ensureNode(ctx context.Context, selectSQL, insertSQL, code string) (int64, bool, error) {
	var id int64
	err := s.tx.QueryRow(ctx, selectSQL, code).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, err
	}
	if err := s.tx.QueryRow(ctx, insertSQL, code).Scan(&id); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (s *txStore) ensureScopedNode(ctx context.Context, selectSQL, insertSQL string, parentID int64, code string) (int64, bool, error) {
	var id int64
	err := s.tx.QueryRow(ctx, selectSQL, parentID, code).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, err
	}
	if err := s.tx.QueryRow(ctx, insertSQL, parentID, code).Scan(&id); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (s *txStore) EnsureUnit(ctx context.Context, buildingID int64, unitNo, remark string) (int64, bool, bool, error) {
	var id int64
	var current string
	err := s.tx.QueryRow(ctx,
		`SELECT id, COALESCE(remark, '') FROM units WHERE building_id = $1 AND unit_no = $2`,
		buildingID, unitNo).Scan(&id, &current)
	if errors.Is(err, pgx.ErrNoRows) {
		err = s.tx.QueryRow(ctx,
			`INSERT INTO units (building_id, unit_no, remark) VALUES ($1, $2, NULLIF($3, '')) RETURNING id`,
			buildingID, unitNo, remark).Scan(&id)
		if err != nil {
			return 0, false, false, err
		}
		return id, true, false, nil
	}
	if err != nil {
		return 0, false, false, err
	}
	if current == remark {
		return id, false, false, nil
	}
	if _, err := s.tx.Exec(ctx,
		`UPDATE units SET remark = NULLIF($2, '') WHERE id = $1`, id, remark); err != nil {
		return 0, false, false, err
	}
	return id, false, true, nil
}

func (s *txStore) FindUnit(ctx context.Context, companyCode, communityCode, buildingCode, unitNo string) (int64, bool, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `
		SELECT u.id
		FROM units u
		JOIN buildings b ON b.id = u.building_id
		JOIN communities cm ON cm.id = b.community_id
		JOIN companies co ON co.id = cm.company_id
		WHERE co.code = $1 AND cm.code = $2 AND b.code = $3 AND u.unit_no = $4`,
		companyCode, communityCode, buildingCode, unitNo).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (s *txStore) LeasesByUnit(ctx context.Context, unitID int64) ([]leases.Lease, error) {
	rows, err := s.tx.Query(ctx, `
		SELECT id, unit_id, tenant_id, start_date, end_date, rent_amount::text, deposit_amount::text
		FROM leases WHERE unit_id = $1 ORDER BY start_date`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []leases.Lease
	for rows.Next() {
		var l leases.Lease
		var end *time.Time
		var rent, deposit string
		if err := rows.Scan(&l.ID, &l.UnitID, &l.TenantID, &l.StartDate, &end, &rent, &deposit); err != nil {
			return nil, err
		}
		l.EndDate = end
		if l.RentAmount, err = decimal.NewFromString(rent); err != nil {
			return nil, err
		}
		if l.DepositAmount, err = decimal.NewFromString(deposit); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *txStore) EnsureTenant(ctx context.Context, name, mobile string) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx,
		`SELECT id FROM tenants WHERE name = $1 AND COALESCE(mobile, '') = $2`, name, mobile).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	err = s.tx.QueryRow(ctx,
		`INSERT INTO tenants (name, mobile) VALUES ($1, NULLIF($2, '')) RETURNING id`, name, mobile).Scan(&id)
	return id, err
}

func (s *txStore) CreateLease(ctx context.Context, in leases.LeaseInput) error {
	_, err := s.tx.Exec(ctx, `
		INSERT INTO leases (unit_id, tenant_id, start_date, end_date, rent_amount, deposit_amount)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric)`,
		in.UnitID, in.TenantID, in.StartDate, in.EndDate, in.RentAmount.String(), in.DepositAmount.String())
	return err
}

func (s *txStore) UpdateLease(ctx context.Context, id int64, in leases.LeaseInput) error {
	_, err := s.tx.Exec(ctx, `
		UPDATE leases
		SET tenant_id = $2, end_date = $3, rent_amount = $4::numeric, deposit_amount = $5::numeric
		WHERE id = $1`,
		id, in.TenantID, in.EndDate, in.RentAmount.String(), in.DepositAmount.String())
	return err
}
