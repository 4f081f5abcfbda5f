package imports

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atrium-pm/atrium/internal/leases"
)

// Store is the slice of persistence the reconciler runs against. Every call
// of one reconciliation happens on the same transaction; the caller commits
// only when no row errors were collected.
type Store interface {
	EnsureCompany(ctx context.Context, code string) (int64, bool, error)
	EnsureCommunity(ctx context.Context, companyID int64, code string) (int64, bool, error)
	EnsureBuilding(ctx context.Context, communityID int64, code string) (int64, bool, error)
	// EnsureUnit creates the unit when absent and rewrites the remark when it
	// changed. Exactly one of created/updated is set unless nothing changed.
	EnsureUnit(ctx context.Context, buildingID int64, unitNo, remark string) (int64, bool, bool, error)

	// FindUnit resolves a unit by its full natural-key path without creating
	// anything. found=false when any node of the path is missing.
	FindUnit(ctx context.Context, companyCode, communityCode, buildingCode, unitNo string) (int64, bool, error)
	LeasesByUnit(ctx context.Context, unitID int64) ([]leases.Lease, error)
	EnsureTenant(ctx context.Context, name, mobile string) (int64, error)
	CreateLease(ctx context.Context, in leases.LeaseInput) error
	UpdateLease(ctx context.Context, id int64, in leases.LeaseInput) error
}

// Reconciler turns parsed CSV rows into idempotent upserts. Row errors are
// collected, not fatal: the whole file is scanned so the operator sees every
// problem at once, and the caller rolls the transaction back if any surfaced.
type Reconciler struct{}

// ImportRooms upserts the property hierarchy from rooms rows. Created counts
// new units; updated counts remark rewrites. Hierarchy nodes are created on
// demand and counted through their unit.
func (Reconciler) ImportRooms(ctx context.Context, store Store, rows []Row) (Result, []RowError, error) {
	var result Result
	var rowErrors []RowError
	for _, row := range rows {
		companyCode := row.Get("company_code")
		communityCode := row.Get("community_code")
		buildingCode := row.Get("building_code")
		unitNo := row.Get("unit_no")
		if msg := missingFields(map[string]string{
			"company_code":   companyCode,
			"community_code": communityCode,
			"building_code":  buildingCode,
			"unit_no":        unitNo,
		}); msg != "" {
			rowErrors = append(rowErrors, RowError{Row: row.Line, Message: msg})
			continue
		}

		companyID, _, err := store.EnsureCompany(ctx, companyCode)
		if err != nil {
			return Result{}, nil, err
		}
		communityID, _, err := store.EnsureCommunity(ctx, companyID, communityCode)
		if err != nil {
			return Result{}, nil, err
		}
		buildingID, _, err := store.EnsureBuilding(ctx, communityID, buildingCode)
		if err != nil {
			return Result{}, nil, err
		}
		_, created, updated, err := store.EnsureUnit(ctx, buildingID, unitNo, row.Get("remark"))
		if err != nil {
			return Result{}, nil, err
		}
		if created {
			result.Created++
		}
		if updated {
			result.Updated++
		}
	}
	return result, rowErrors, nil
}

// ImportLeases upserts leases from lease rows. The hierarchy must already
// exist; rows referencing unknown units become row errors. A row whose start
// date matches an existing lease of the unit updates that lease in place; any
// other overlap is a row error.
func (Reconciler) ImportLeases(ctx context.Context, store Store, rows []Row) (Result, []RowError, error) {
	var result Result
	var rowErrors []RowError
	for _, row := range rows {
		fail := func(format string, args ...any) {
			rowErrors = append(rowErrors, RowError{Row: row.Line, Message: fmt.Sprintf(format, args...)})
		}

		companyCode := row.Get("company_code")
		communityCode := row.Get("community_code")
		buildingCode := row.Get("building_code")
		unitNo := row.Get("unit_no")
		tenantName := row.Get("tenant_name")
		startRaw := row.Get("start_date")
		if msg := missingFields(map[string]string{
			"company_code":   companyCode,
			"community_code": communityCode,
			"building_code":  buildingCode,
			"unit_no":        unitNo,
			"tenant_name":    tenantName,
			"start_date":     startRaw,
		}); msg != "" {
			fail("%s", msg)
			continue
		}

		startDate, err := time.Parse("2006-01-02", startRaw)
		if err != nil {
			fail("start_date %q is not YYYY-MM-DD", startRaw)
			continue
		}
		var endDate *time.Time
		if endRaw := row.Get("end_date"); endRaw != "" {
			parsed, err := time.Parse("2006-01-02", endRaw)
			if err != nil {
				fail("end_date %q is not YYYY-MM-DD", endRaw)
				continue
			}
			if parsed.Before(startDate) {
				fail("end_date %s before start_date %s", endRaw, startRaw)
				continue
			}
			endDate = &parsed
		}
		rent, err := parseRowAmount(row.Get("rent_amount"))
		if err != nil {
			fail("rent_amount %q is not a number", row.Get("rent_amount"))
			continue
		}
		deposit, err := parseRowAmount(row.Get("deposit_amount"))
		if err != nil {
			fail("deposit_amount %q is not a number", row.Get("deposit_amount"))
			continue
		}

		unitID, found, err := store.FindUnit(ctx, companyCode, communityCode, buildingCode, unitNo)
		if err != nil {
			return Result{}, nil, err
		}
		if !found {
			fail("unit %s/%s/%s/%s does not exist", companyCode, communityCode, buildingCode, unitNo)
			continue
		}

		existing, err := store.LeasesByUnit(ctx, unitID)
		if err != nil {
			return Result{}, nil, err
		}
		var match *leases.Lease
		for i := range existing {
			if existing[i].StartDate.Equal(startDate) {
				match = &existing[i]
				break
			}
		}
		var excludeID int64
		if match != nil {
			excludeID = match.ID
		}
		if err := leases.CheckOverlap(existing, startDate, endDate, excludeID); err != nil {
			fail("lease starting %s overlaps an existing lease", startRaw)
			continue
		}

		tenantID, err := store.EnsureTenant(ctx, tenantName, row.Get("tenant_mobile"))
		if err != nil {
			return Result{}, nil, err
		}
		input := leases.LeaseInput{
			UnitID:        unitID,
			TenantID:      tenantID,
			StartDate:     startDate,
			EndDate:       endDate,
			RentAmount:    rent,
			DepositAmount: deposit,
		}
		if match != nil {
			if err := store.UpdateLease(ctx, match.ID, input); err != nil {
				return Result{}, nil, err
			}
			result.Updated++
		} else {
			if err := store.CreateLease(ctx, input); err != nil {
				return Result{}, nil, err
			}
			result.Created++
		}
	}
	return result, rowErrors, nil
}

func missingFields(fields map[string]string) string {
	var missing []string
	for name, value := range fields {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return ""
	}
	sort.Strings(missing)
	return "missing required fields: " + strings.Join(missing, ", ")
}

func parseRowAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
