package property

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for the property hierarchy.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListFilters narrows hierarchy listings.
type ListFilters struct {
	Search string
	Limit  int
	Offset int
}

// ListCompanies returns companies ordered by code.
func (r *Repository) ListCompanies(ctx context.Context, filters ListFilters) ([]Company, error) {
	query := `SELECT id, code, name FROM companies WHERE 1=1`
	args := []any{}
	argNum := 0
	if filters.Search != "" {
		argNum++
		query += ` AND (code ILIKE $` + strconv.Itoa(argNum) + ` OR name ILIKE $` + strconv.Itoa(argNum) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	query += " ORDER BY code"
	if filters.Limit > 0 {
		argNum++
		query += " LIMIT $" + strconv.Itoa(argNum)
		args = append(args, filters.Limit)
	}
	if filters.Offset > 0 {
		argNum++
		query += " OFFSET $" + strconv.Itoa(argNum)
		args = append(args, filters.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Code, &c.Name); err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// GetCompany fetches a company by id.
func (r *Repository) GetCompany(ctx context.Context, id int64) (Company, error) {
	var c Company
	err := r.pool.QueryRow(ctx, `SELECT id, code, name FROM companies WHERE id = $1`, id).
		Scan(&c.ID, &c.Code, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, ErrCompanyNotFound
	}
	return c, err
}

// ListCommunities returns the communities of a company.
func (r *Repository) ListCommunities(ctx context.Context, companyID int64) ([]Community, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, code, name FROM communities WHERE company_id = $1 ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var communities []Community
	for rows.Next() {
		var c Community
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.Code, &c.Name); err != nil {
			return nil, err
		}
		communities = append(communities, c)
	}
	return communities, rows.Err()
}

// ListBuildings returns the buildings of a community.
func (r *Repository) ListBuildings(ctx context.Context, communityID int64) ([]Building, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, community_id, code, name FROM buildings WHERE community_id = $1 ORDER BY code`, communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buildings []Building
	for rows.Next() {
		var b Building
		if err := rows.Scan(&b.ID, &b.CommunityID, &b.Code, &b.Name); err != nil {
			return nil, err
		}
		buildings = append(buildings, b)
	}
	return buildings, rows.Err()
}

// ListUnits returns the units of a building.
func (r *Repository) ListUnits(ctx context.Context, buildingID int64) ([]Unit, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, building_id, unit_no, COALESCE(remark, '') FROM units WHERE building_id = $1 ORDER BY unit_no`, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.BuildingID, &u.UnitNo, &u.Remark); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// GetUnit fetches a unit by id.
func (r *Repository) GetUnit(ctx context.Context, id int64) (Unit, error) {
	var u Unit
	err := r.pool.QueryRow(ctx, `SELECT id, building_id, unit_no, COALESCE(remark, '') FROM units WHERE id = $1`, id).
		Scan(&u.ID, &u.BuildingID, &u.UnitNo, &u.Remark)
	if errors.Is(err, pgx.ErrNoRows) {
		return Unit{}, ErrUnitNotFound
	}
	return u, err
}

// ResolveUnitHierarchy loads the full unit -> building -> community -> company
// chain with one join. Bills denormalize company/community from this chain.
func (r *Repository) ResolveUnitHierarchy(ctx context.Context, unitID int64) (UnitHierarchy, error) {
	var h UnitHierarchy
	err := r.pool.QueryRow(ctx, `
		SELECT u.id, u.building_id, u.unit_no, COALESCE(u.remark, ''),
			b.id, b.community_id, b.code, b.name,
			cm.id, cm.company_id, cm.code, cm.name,
			co.id, co.code, co.name
		FROM units u
		JOIN buildings b ON b.id = u.building_id
		JOIN communities cm ON cm.id = b.community_id
		JOIN companies co ON co.id = cm.company_id
		WHERE u.id = $1`, unitID).Scan(
		&h.Unit.ID, &h.Unit.BuildingID, &h.Unit.UnitNo, &h.Unit.Remark,
		&h.Building.ID, &h.Building.CommunityID, &h.Building.Code, &h.Building.Name,
		&h.Community.ID, &h.Community.CompanyID, &h.Community.Code, &h.Community.Name,
		&h.Company.ID, &h.Company.Code, &h.Company.Name,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return UnitHierarchy{}, ErrUnitNotFound
	}
	if err != nil {
		return UnitHierarchy{}, fmt.Errorf("property: resolve unit hierarchy: %w", err)
	}
	return h, nil
}
