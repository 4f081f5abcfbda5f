package leases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atrium-pm/atrium/internal/platform/db"
	"github.com/atrium-pm/atrium/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence for tenants and leases.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leaseColumns = `id, unit_id, tenant_id, start_date, end_date, rent_amount::text, deposit_amount::text`

func scanLease(row pgx.Row) (Lease, error) {
	var l Lease
	var end *time.Time
	var rent, deposit string
	if err := row.Scan(&l.ID, &l.UnitID, &l.TenantID, &l.StartDate, &end, &rent, &deposit); err != nil {
		return Lease{}, err
	}
	l.EndDate = end
	var err error
	if l.RentAmount, err = decimal.NewFromString(rent); err != nil {
		return Lease{}, fmt.Errorf("leases: parse rent_amount: %w", err)
	}
	if l.DepositAmount, err = decimal.NewFromString(deposit); err != nil {
		return Lease{}, fmt.Errorf("leases: parse deposit_amount: %w", err)
	}
	return l, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ListByUnit returns all leases of a unit ordered by start date.
func (r *Repository) ListByUnit(ctx context.Context, unitID int64) ([]Lease, error) {
	return listByUnit(ctx, r.pool, unitID)
}

func listByUnit(ctx context.Context, q querier, unitID int64) ([]Lease, error) {
	rows, err := q.Query(ctx, `SELECT `+leaseColumns+` FROM leases WHERE unit_id = $1 ORDER BY start_date`, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leases []Lease
	for rows.Next() {
		l, err := scanLease(rows)
		if err != nil {
			return nil, err
		}
		leases = append(leases, l)
	}
	return leases, rows.Err()
}

// Get fetches a lease by id.
func (r *Repository) Get(ctx context.Context, id int64) (Lease, error) {
	l, err := scanLease(r.pool.QueryRow(ctx, `SELECT `+leaseColumns+` FROM leases WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lease{}, ErrLeaseNotFound
	}
	return l, err
}

// LatestByUnit returns the lease with the greatest start date for a unit.
// Bill generation anchors its cycle on this lease.
func (r *Repository) LatestByUnit(ctx context.Context, unitID int64) (Lease, error) {
	l, err := scanLease(r.pool.QueryRow(ctx,
		`SELECT `+leaseColumns+` FROM leases WHERE unit_id = $1 ORDER BY start_date DESC LIMIT 1`, unitID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lease{}, ErrLeaseNotFound
	}
	return l, err
}

// SaveLease hands the unit's leases to decide and applies its verdict in the
// same transaction. Locking the unit row serializes lease writers for that
// unit, so the overlap verdict still holds when the write lands. decide
// returns the id of a lease to rewrite, or 0 to insert a new one.
func (r *Repository) SaveLease(ctx context.Context, in LeaseInput, decide func(existing []Lease) (int64, error)) (Lease, error) {
	var saved Lease
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var unitID int64
		err := tx.QueryRow(ctx, `SELECT id FROM units WHERE id = $1 FOR UPDATE`, in.UnitID).Scan(&unitID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("leases: unit %d not found: %w", in.UnitID, httpx.ErrNotFound)
		}
		if err != nil {
			return err
		}

		existing, err := listByUnit(ctx, tx, in.UnitID)
		if err != nil {
			return err
		}
		updateID, err := decide(existing)
		if err != nil {
			return err
		}
		if updateID > 0 {
			saved, err = updateLease(ctx, tx, updateID, in)
		} else {
			saved, err = insertLease(ctx, tx, in)
		}
		return err
	})
	if err != nil {
		return Lease{}, err
	}
	return saved, nil
}

func insertLease(ctx context.Context, q querier, in LeaseInput) (Lease, error) {
	l, err := scanLease(q.QueryRow(ctx, `
		INSERT INTO leases (unit_id, tenant_id, start_date, end_date, rent_amount, deposit_amount)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric)
		RETURNING `+leaseColumns,
		in.UnitID, in.TenantID, in.StartDate, in.EndDate, in.RentAmount.String(), in.DepositAmount.String()))
	if err != nil {
		return Lease{}, fmt.Errorf("leases: insert lease: %w", err)
	}
	return l, nil
}

func updateLease(ctx context.Context, q querier, id int64, in LeaseInput) (Lease, error) {
	l, err := scanLease(q.QueryRow(ctx, `
		UPDATE leases
		SET tenant_id = $2, start_date = $3, end_date = $4, rent_amount = $5::numeric, deposit_amount = $6::numeric
		WHERE id = $1
		RETURNING `+leaseColumns,
		id, in.TenantID, in.StartDate, in.EndDate, in.RentAmount.String(), in.DepositAmount.String()))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lease{}, ErrLeaseNotFound
	}
	if err != nil {
		return Lease{}, fmt.Errorf("leases: update lease: %w", err)
	}
	return l, nil
}

// FindTenant fetches a tenant by natural key (name, mobile).
func (r *Repository) FindTenant(ctx context.Context, name, mobile string) (Tenant, error) {
	var t Tenant
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(mobile, '') FROM tenants WHERE name = $1 AND COALESCE(mobile, '') = $2`,
		name, mobile).Scan(&t.ID, &t.Name, &t.Mobile)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tenant{}, pgx.ErrNoRows
	}
	return t, err
}

// CreateTenant inserts a tenant row.
func (r *Repository) CreateTenant(ctx context.Context, name, mobile string) (Tenant, error) {
	var t Tenant
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tenants (name, mobile) VALUES ($1, NULLIF($2, '')) RETURNING id, name, COALESCE(mobile, '')`,
		name, mobile).Scan(&t.ID, &t.Name, &t.Mobile)
	if err != nil {
		return Tenant{}, fmt.Errorf("leases: insert tenant: %w", err)
	}
	return t, nil
}

// EnsureTenant returns the tenant with the given natural key, creating it when missing.
func (r *Repository) EnsureTenant(ctx context.Context, name, mobile string) (Tenant, error) {
	t, err := r.FindTenant(ctx, name, mobile)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Tenant{}, err
	}
	return r.CreateTenant(ctx, name, mobile)
}
