package property

import (
	"context"
	"fmt"

	"github.com/atrium-pm/atrium/internal/platform/httpx"
)

// RepositoryPort defines the data access methods the service needs.
type RepositoryPort interface {
	ListCompanies(ctx context.Context, filters ListFilters) ([]Company, error)
	GetCompany(ctx context.Context, id int64) (Company, error)
	ListCommunities(ctx context.Context, companyID int64) ([]Community, error)
	ListBuildings(ctx context.Context, communityID int64) ([]Building, error)
	ListUnits(ctx context.Context, buildingID int64) ([]Unit, error)
	GetUnit(ctx context.Context, id int64) (Unit, error)
	ResolveUnitHierarchy(ctx context.Context, unitID int64) (UnitHierarchy, error)
}

// Service exposes read operations over the property hierarchy. Writes happen
// through the import reconciler, which owns the upsert discipline.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Companies lists companies.
func (s *Service) Companies(ctx context.Context, filters ListFilters) ([]Company, error) {
	return s.repo.ListCompanies(ctx, filters)
}

// Company returns one company.
func (s *Service) Company(ctx context.Context, id int64) (Company, error) {
	if id <= 0 {
		return Company{}, fmt.Errorf("property: invalid company id: %w", httpx.ErrValidation)
	}
	return s.repo.GetCompany(ctx, id)
}

// Communities lists a company's communities.
func (s *Service) Communities(ctx context.Context, companyID int64) ([]Community, error) {
	if companyID <= 0 {
		return nil, fmt.Errorf("property: invalid company id: %w", httpx.ErrValidation)
	}
	return s.repo.ListCommunities(ctx, companyID)
}

// Buildings lists a community's buildings.
func (s *Service) Buildings(ctx context.Context, communityID int64) ([]Building, error) {
	if communityID <= 0 {
		return nil, fmt.Errorf("property: invalid community id: %w", httpx.ErrValidation)
	}
	return s.repo.ListBuildings(ctx, communityID)
}

// Units lists a building's units.
func (s *Service) Units(ctx context.Context, buildingID int64) ([]Unit, error) {
	if buildingID <= 0 {
		return nil, fmt.Errorf("property: invalid building id: %w", httpx.ErrValidation)
	}
	return s.repo.ListUnits(ctx, buildingID)
}

// Unit returns one unit.
func (s *Service) Unit(ctx context.Context, id int64) (Unit, error) {
	if id <= 0 {
		return Unit{}, fmt.Errorf("property: invalid unit id: %w", httpx.ErrValidation)
	}
	return s.repo.GetUnit(ctx, id)
}

// Hierarchy resolves the unit's full ownership chain.
func (s *Service) Hierarchy(ctx context.Context, unitID int64) (UnitHierarchy, error) {
	if unitID <= 0 {
		return UnitHierarchy{}, fmt.Errorf("property: invalid unit id: %w", httpx.ErrValidation)
	}
	return s.repo.ResolveUnitHierarchy(ctx, unitID)
}
