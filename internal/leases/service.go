package leases

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atrium-pm/atrium/internal/platform/httpx"
)

// RepositoryPort abstracts lease persistence for the service layer.
type RepositoryPort interface {
	ListByUnit(ctx context.Context, unitID int64) ([]Lease, error)
	Get(ctx context.Context, id int64) (Lease, error)
	LatestByUnit(ctx context.Context, unitID int64) (Lease, error)
	SaveLease(ctx context.Context, in LeaseInput, decide func(existing []Lease) (int64, error)) (Lease, error)
	EnsureTenant(ctx context.Context, name, mobile string) (Tenant, error)
}

// Service enforces lease business rules.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// LeasesForUnit lists the leases of a unit.
func (s *Service) LeasesForUnit(ctx context.Context, unitID int64) ([]Lease, error) {
	if unitID <= 0 {
		return nil, fmt.Errorf("leases: unit id required: %w", httpx.ErrValidation)
	}
	return s.repo.ListByUnit(ctx, unitID)
}

// LatestForUnit returns the lease with the greatest start date for a unit.
func (s *Service) LatestForUnit(ctx context.Context, unitID int64) (Lease, error) {
	if unitID <= 0 {
		return Lease{}, fmt.Errorf("leases: unit id required: %w", httpx.ErrValidation)
	}
	return s.repo.LatestByUnit(ctx, unitID)
}

// CreateLeaseParams is the manual-entry form of a lease.
type CreateLeaseParams struct {
	UnitID        int64
	TenantName    string
	TenantMobile  string
	StartDate     time.Time
	EndDate       *time.Time
	RentAmount    string
	DepositAmount string
}

// CreateLease validates the interval against the unit's other leases and
// inserts the lease, creating the tenant on first sight. A lease whose start
// date matches an existing lease of the unit updates that lease in place
// instead of failing the overlap check.
func (s *Service) CreateLease(ctx context.Context, params CreateLeaseParams) (Lease, error) {
	in, err := buildInput(params)
	if err != nil {
		return Lease{}, err
	}

	tenant, err := s.repo.EnsureTenant(ctx, strings.TrimSpace(params.TenantName), strings.TrimSpace(params.TenantMobile))
	if err != nil {
		return Lease{}, err
	}
	in.TenantID = tenant.ID

	// The overlap verdict and the write share one transaction through
	// SaveLease; the store re-reads the unit's leases under lock.
	return s.repo.SaveLease(ctx, in, func(existing []Lease) (int64, error) {
		for _, lease := range existing {
			if lease.StartDate.Equal(in.StartDate) {
				if err := CheckOverlap(existing, in.StartDate, in.EndDate, lease.ID); err != nil {
					return 0, err
				}
				return lease.ID, nil
			}
		}
		return 0, CheckOverlap(existing, in.StartDate, in.EndDate, 0)
	})
}

func buildInput(params CreateLeaseParams) (LeaseInput, error) {
	if params.UnitID <= 0 {
		return LeaseInput{}, fmt.Errorf("leases: unit id required: %w", httpx.ErrValidation)
	}
	if strings.TrimSpace(params.TenantName) == "" {
		return LeaseInput{}, fmt.Errorf("leases: tenant name required: %w", httpx.ErrValidation)
	}
	if params.StartDate.IsZero() {
		return LeaseInput{}, fmt.Errorf("leases: start date required: %w", httpx.ErrValidation)
	}
	if params.EndDate != nil && params.EndDate.Before(params.StartDate) {
		return LeaseInput{}, fmt.Errorf("leases: end date before start date: %w", httpx.ErrValidation)
	}
	rent, err := parseAmount(params.RentAmount, "rent_amount")
	if err != nil {
		return LeaseInput{}, err
	}
	deposit, err := parseAmount(params.DepositAmount, "deposit_amount")
	if err != nil {
		return LeaseInput{}, err
	}
	return LeaseInput{
		UnitID:        params.UnitID,
		StartDate:     params.StartDate,
		EndDate:       params.EndDate,
		RentAmount:    rent,
		DepositAmount: deposit,
	}, nil
}
