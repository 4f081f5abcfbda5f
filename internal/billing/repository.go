package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atrium-pm/atrium/internal/platform/db"
	"github.com/atrium-pm/atrium/internal/shared"
)

// Repository provides PostgreSQL backed persistence for bills.
type Repository struct {
	pool  *pgxpool.Pool
	audit *shared.AuditLogger
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, audit *shared.AuditLogger) *Repository {
	return &Repository{pool: pool, audit: audit}
}

const billColumns = `id, unit_id, lease_id, company_id, community_id, template_id,
	cycle_start, cycle_end, status, total_amount::text, COALESCE(frozen_snapshot::text, ''),
	created_at, updated_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	var total string
	err := row.Scan(&b.ID, &b.UnitID, &b.LeaseID, &b.CompanyID, &b.CommunityID, &b.TemplateID,
		&b.CycleStart, &b.CycleEnd, &b.Status, &total, &b.FrozenSnapshot,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return Bill{}, err
	}
	if b.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return Bill{}, fmt.Errorf("billing: parse total_amount: %w", err)
	}
	return b, nil
}

// GetBill fetches a bill by id.
func (r *Repository) GetBill(ctx context.Context, id int64) (Bill, error) {
	b, err := scanBill(r.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Bill{}, ErrBillNotFound
	}
	return b, err
}

// FindBillByCycle fetches the bill of a unit for a given cycle start.
func (r *Repository) FindBillByCycle(ctx context.Context, unitID int64, cycleStart time.Time) (Bill, error) {
	b, err := scanBill(r.pool.QueryRow(ctx,
		`SELECT `+billColumns+` FROM bills WHERE unit_id = $1 AND cycle_start = $2`, unitID, cycleStart))
	if errors.Is(err, pgx.ErrNoRows) {
		return Bill{}, ErrBillNotFound
	}
	return b, err
}

// BillFilters narrows bill listings.
type BillFilters struct {
	CompanyID int64
	UnitID    int64
	Status    string
	Limit     int
}

// ListBills returns bills newest first.
func (r *Repository) ListBills(ctx context.Context, filters BillFilters) ([]Bill, error) {
	limit := filters.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+billColumns+` FROM bills
		WHERE ($1 = 0 OR company_id = $1)
		  AND ($2 = 0 OR unit_id = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY cycle_start DESC, id DESC
		LIMIT $4`,
		filters.CompanyID, filters.UnitID, filters.Status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bills []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

// ListLines returns the lines of a bill ordered by id.
func (r *Repository) ListLines(ctx context.Context, billID int64) ([]BillLine, error) {
	return r.listLines(ctx, r.pool, billID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) listLines(ctx context.Context, q querier, billID int64) ([]BillLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, bill_id, charge_item_id, charge_code, qty::text, unit_price::text, amount::text
		FROM bill_lines WHERE bill_id = $1 ORDER BY id`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []BillLine
	for rows.Next() {
		var l BillLine
		var qty, price, amount string
		if err := rows.Scan(&l.ID, &l.BillID, &l.ChargeItemID, &l.ChargeCode, &qty, &price, &amount); err != nil {
			return nil, err
		}
		if l.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if l.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		if l.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// CreateDraftBill inserts a bill with its lines and the audit entry in one
// transaction. A duplicate (unit_id, cycle_start) maps to ErrBillExists.
func (r *Repository) CreateDraftBill(ctx context.Context, bill Bill, lines []BillLine, log shared.AuditLog) (Bill, error) {
	var created Bill
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		created, err = scanBill(tx.QueryRow(ctx, `
			INSERT INTO bills (unit_id, lease_id, company_id, community_id, template_id,
				cycle_start, cycle_end, status, total_amount, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::numeric, NOW(), NOW())
			RETURNING `+billColumns,
			bill.UnitID, bill.LeaseID, bill.CompanyID, bill.CommunityID, bill.TemplateID,
			bill.CycleStart, bill.CycleEnd, StatusDraft, bill.TotalAmount.String()))
		if db.IsUniqueViolation(err, "") {
			return ErrBillExists
		}
		if err != nil {
			return fmt.Errorf("billing: insert bill: %w", err)
		}
		for _, line := range lines {
			_, err := tx.Exec(ctx, `
				INSERT INTO bill_lines (bill_id, charge_item_id, charge_code, qty, unit_price, amount)
				VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric)`,
				created.ID, line.ChargeItemID, line.ChargeCode,
				line.Qty.String(), line.UnitPrice.String(), line.Amount.String())
			if err != nil {
				return fmt.Errorf("billing: insert bill line: %w", err)
			}
		}
		return r.audit.RecordIn(ctx, tx, log)
	})
	if err != nil {
		return Bill{}, err
	}
	return created, nil
}

// Transition locks the bill row, hands the current state to fn, and persists
// the mutated status, total and snapshot together with the audit entry fn
// returns. fn errors roll everything back.
func (r *Repository) Transition(ctx context.Context, billID int64, fn func(bill *Bill, lines []BillLine) (shared.AuditLog, error)) (Bill, error) {
	var result Bill
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		bill, err := scanBill(tx.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1 FOR UPDATE`, billID))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBillNotFound
		}
		if err != nil {
			return err
		}
		lines, err := r.listLines(ctx, tx, billID)
		if err != nil {
			return err
		}

		log, err := fn(&bill, lines)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE bills
			SET status = $2, total_amount = $3::numeric,
				frozen_snapshot = NULLIF($4, '')::jsonb, updated_at = NOW()
			WHERE id = $1`,
			bill.ID, bill.Status, bill.TotalAmount.String(), bill.FrozenSnapshot)
		if err != nil {
			return fmt.Errorf("billing: update bill: %w", err)
		}
		if err := r.audit.RecordIn(ctx, tx, log); err != nil {
			return err
		}
		result = bill
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	return result, nil
}

// LeasedUnitsByCompany returns the distinct units of a company that carry at
// least one lease, ordered by id. Batch generation walks this list.
func (r *Repository) LeasedUnitsByCompany(ctx context.Context, companyID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT u.id
		FROM leases l
		JOIN units u ON u.id = l.unit_id
		JOIN buildings b ON b.id = u.building_id
		JOIN communities cm ON cm.id = b.community_id
		WHERE cm.company_id = $1
		ORDER BY u.id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ExportLine is a bill line joined with its charge item code for CSV export.
type ExportLine struct {
	ItemCode   string
	ChargeCode string
	Qty        decimal.Decimal
	UnitPrice  decimal.Decimal
	Amount     decimal.Decimal
}

// ExportLines returns the lines of a bill with the charge item code resolved,
// falling back to "item-{id}" for deleted items and to the charge code for
// lines without an item reference.
func (r *Repository) ExportLines(ctx context.Context, billID int64) ([]ExportLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT COALESCE(ci.code, CASE WHEN l.charge_item_id IS NULL THEN l.charge_code ELSE 'item-' || l.charge_item_id END),
			l.charge_code, l.qty::text, l.unit_price::text, l.amount::text
		FROM bill_lines l
		LEFT JOIN charge_items ci ON ci.id = l.charge_item_id
		WHERE l.bill_id = $1
		ORDER BY l.id`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []ExportLine
	for rows.Next() {
		var l ExportLine
		var qty, price, amount string
		if err := rows.Scan(&l.ItemCode, &l.ChargeCode, &qty, &price, &amount); err != nil {
			return nil, err
		}
		if l.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, err
		}
		if l.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		if l.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
