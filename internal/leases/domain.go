package leases

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atrium-pm/atrium/internal/platform/httpx"
)

// Tenant is the person a lease is signed with, identified by (name, mobile).
type Tenant struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Mobile string `json:"mobile,omitempty"`
}

// Lease binds a tenant to a unit for a date interval. EndDate nil means
// open-ended. No two leases for the same unit may overlap; boundaries are
// inclusive on both sides.
type Lease struct {
	ID            int64           `json:"id"`
	UnitID        int64           `json:"unit_id"`
	TenantID      int64           `json:"tenant_id"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       *time.Time      `json:"end_date,omitempty"`
	RentAmount    decimal.Decimal `json:"rent_amount"`
	DepositAmount decimal.Decimal `json:"deposit_amount"`
}

// LeaseInput captures the fields for creating or renewing a lease.
type LeaseInput struct {
	UnitID        int64
	TenantID      int64
	StartDate     time.Time
	EndDate       *time.Time
	RentAmount    decimal.Decimal
	DepositAmount decimal.Decimal
}

// ErrLeaseNotFound indicates no lease exists for the unit.
var ErrLeaseNotFound = fmt.Errorf("leases: no lease for unit: %w", httpx.ErrNotFound)

// ErrLeaseOverlap indicates the requested interval collides with another lease.
var ErrLeaseOverlap = fmt.Errorf("leases: lease date overlaps existing lease: %w", httpx.ErrDuplicate)

// Overlaps reports whether [aStart, aEnd] and [bStart, bEnd] intersect.
// A nil end date extends the interval to infinity. Boundaries are inclusive,
// so a lease starting on another lease's end date overlaps it.
func Overlaps(aStart time.Time, aEnd *time.Time, bStart time.Time, bEnd *time.Time) bool {
	if aEnd != nil && aEnd.Before(bStart) {
		return false
	}
	if bEnd != nil && bEnd.Before(aStart) {
		return false
	}
	return true
}

// CheckOverlap validates a candidate interval against the unit's existing
// leases. A lease whose id equals excludeID is skipped, which makes an
// update-in-place of the same record legal.
func CheckOverlap(existing []Lease, start time.Time, end *time.Time, excludeID int64) error {
	for _, lease := range existing {
		if excludeID != 0 && lease.ID == excludeID {
			continue
		}
		if Overlaps(lease.StartDate, lease.EndDate, start, end) {
			return ErrLeaseOverlap
		}
	}
	return nil
}
