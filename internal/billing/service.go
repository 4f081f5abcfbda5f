package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atrium-pm/atrium/internal/leases"
	"github.com/atrium-pm/atrium/internal/property"
	"github.com/atrium-pm/atrium/internal/shared"
)

// ChargeCodeRent is the charge code of the generated rent line.
const ChargeCodeRent = "rent"

// Store abstracts bill persistence for the service layer.
type Store interface {
	GetBill(ctx context.Context, id int64) (Bill, error)
	FindBillByCycle(ctx context.Context, unitID int64, cycleStart time.Time) (Bill, error)
	ListBills(ctx context.Context, filters BillFilters) ([]Bill, error)
	ListLines(ctx context.Context, billID int64) ([]BillLine, error)
	CreateDraftBill(ctx context.Context, bill Bill, lines []BillLine, log shared.AuditLog) (Bill, error)
	Transition(ctx context.Context, billID int64, fn func(bill *Bill, lines []BillLine) (shared.AuditLog, error)) (Bill, error)
	LeasedUnitsByCompany(ctx context.Context, companyID int64) ([]int64, error)
	ExportLines(ctx context.Context, billID int64) ([]ExportLine, error)
}

// LeaseSource resolves the lease a bill is generated from.
type LeaseSource interface {
	LatestForUnit(ctx context.Context, unitID int64) (leases.Lease, error)
}

// HierarchySource resolves a unit's place in the property hierarchy.
type HierarchySource interface {
	Hierarchy(ctx context.Context, unitID int64) (property.UnitHierarchy, error)
}

// Service implements bill generation and the bill state machine.
type Service struct {
	store     Store
	leases    LeaseSource
	hierarchy HierarchySource
}

// NewService constructs a Service.
func NewService(store Store, leaseSource LeaseSource, hierarchySource HierarchySource) *Service {
	return &Service{store: store, leases: leaseSource, hierarchy: hierarchySource}
}

// Bill loads a bill by id.
func (s *Service) Bill(ctx context.Context, id int64) (Bill, error) {
	return s.store.GetBill(ctx, id)
}

// Lines loads the lines of a bill.
func (s *Service) Lines(ctx context.Context, billID int64) ([]BillLine, error) {
	if _, err := s.store.GetBill(ctx, billID); err != nil {
		return nil, err
	}
	return s.store.ListLines(ctx, billID)
}

// Bills lists bills matching the filters.
func (s *Service) Bills(ctx context.Context, filters BillFilters) ([]Bill, error) {
	return s.store.ListBills(ctx, filters)
}

// Export returns a bill's lines with charge item codes resolved for export.
func (s *Service) Export(ctx context.Context, billID int64) ([]ExportLine, error) {
	if _, err := s.store.GetBill(ctx, billID); err != nil {
		return nil, err
	}
	return s.store.ExportLines(ctx, billID)
}

// GenerateBillForUnit creates the draft bill for the cycle containing target,
// anchored on the unit's current lease. The operation is idempotent on
// (unit_id, cycle_start): when the bill already exists it is returned
// unchanged with created=false, writing no lines and no audit entry.
func (s *Service) GenerateBillForUnit(ctx context.Context, unitID int64, target time.Time, actorID int64) (Bill, bool, error) {
	lease, err := s.leases.LatestForUnit(ctx, unitID)
	if err != nil {
		if errors.Is(err, leases.ErrLeaseNotFound) {
			return Bill{}, false, ErrNoLease
		}
		return Bill{}, false, err
	}

	cycleStart, cycleEnd := ComputeBillingCycle(lease.StartDate, target)
	existing, err := s.store.FindBillByCycle(ctx, unitID, cycleStart)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrBillNotFound) {
		return Bill{}, false, err
	}

	h, err := s.hierarchy.Hierarchy(ctx, unitID)
	if err != nil {
		return Bill{}, false, err
	}

	bill := Bill{
		UnitID:      unitID,
		LeaseID:     lease.ID,
		CompanyID:   h.Company.ID,
		CommunityID: h.Community.ID,
		CycleStart:  cycleStart,
		CycleEnd:    cycleEnd,
		Status:      StatusDraft,
		TotalAmount: lease.RentAmount,
	}
	lines := []BillLine{{
		ChargeCode: ChargeCodeRent,
		Qty:        decimal.NewFromInt(1),
		UnitPrice:  lease.RentAmount,
		Amount:     lease.RentAmount,
	}}
	after, _ := json.Marshal(map[string]string{
		"unit_id":      fmt.Sprintf("%d", unitID),
		"cycle_start":  cycleStart.Format("2006-01-02"),
		"cycle_end":    cycleEnd.Format("2006-01-02"),
		"total_amount": lease.RentAmount.String(),
	})
	created, err := s.store.CreateDraftBill(ctx, bill, lines, shared.AuditLog{
		ActorID: actorID,
		Action:  "create_bill",
		After:   string(after),
	})
	if errors.Is(err, ErrBillExists) {
		// A racing generator won the insert; fall back to the idempotent read.
		existing, ferr := s.store.FindBillByCycle(ctx, unitID, cycleStart)
		if ferr != nil {
			return Bill{}, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return Bill{}, false, err
	}
	return created, true, nil
}

// GenerateBatchForCompany generates bills for every leased unit of a company.
// The first failure aborts the batch and is surfaced to the caller.
func (s *Service) GenerateBatchForCompany(ctx context.Context, companyID int64, target time.Time, actorID int64) ([]Bill, error) {
	unitIDs, err := s.store.LeasedUnitsByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	var bills []Bill
	for _, unitID := range unitIDs {
		bill, _, err := s.GenerateBillForUnit(ctx, unitID, target, actorID)
		if err != nil {
			return nil, fmt.Errorf("billing: generate for unit %d: %w", unitID, err)
		}
		bills = append(bills, bill)
	}
	return bills, nil
}

// Submit moves a draft bill to submitted.
func (s *Service) Submit(ctx context.Context, billID, actorID int64) (Bill, error) {
	return s.transition(ctx, billID, actorID, "submit")
}

// Approve moves a submitted bill to approved and freezes the line snapshot.
func (s *Service) Approve(ctx context.Context, billID, actorID int64) (Bill, error) {
	return s.transition(ctx, billID, actorID, "approve")
}

// Issue moves an approved bill to issued.
func (s *Service) Issue(ctx context.Context, billID, actorID int64) (Bill, error) {
	return s.transition(ctx, billID, actorID, "issue")
}

// Void moves any non-terminal bill to void.
func (s *Service) Void(ctx context.Context, billID, actorID int64) (Bill, error) {
	return s.store.Transition(ctx, billID, func(bill *Bill, _ []BillLine) (shared.AuditLog, error) {
		if Terminal(bill.Status) {
			return shared.AuditLog{}, ErrBillTerminal
		}
		log := statusAudit(actorID, "void_bill", bill.Status, StatusVoid)
		bill.Status = StatusVoid
		return log, nil
	})
}

func (s *Service) transition(ctx context.Context, billID, actorID int64, action string) (Bill, error) {
	rule := transitions[action]
	return s.store.Transition(ctx, billID, func(bill *Bill, lines []BillLine) (shared.AuditLog, error) {
		if bill.Status != rule.from {
			return shared.AuditLog{}, ErrWrongStatus
		}
		if action == "approve" && bill.FrozenSnapshot == "" {
			snapshot, err := freezeLines(lines)
			if err != nil {
				return shared.AuditLog{}, err
			}
			bill.FrozenSnapshot = snapshot
		}
		log := statusAudit(actorID, action+"_bill", bill.Status, rule.to)
		bill.Status = rule.to
		return log, nil
	})
}

type snapshotLine struct {
	ChargeCode string `json:"charge_code"`
	Qty        string `json:"qty"`
	UnitPrice  string `json:"unit_price"`
	Amount     string `json:"amount"`
}

// freezeLines serializes the bill lines with exact decimal strings. The
// snapshot is what issued documents render from, regardless of later edits to
// charge items.
func freezeLines(lines []BillLine) (string, error) {
	frozen := make([]snapshotLine, 0, len(lines))
	for _, line := range lines {
		frozen = append(frozen, snapshotLine{
			ChargeCode: line.ChargeCode,
			Qty:        line.Qty.String(),
			UnitPrice:  line.UnitPrice.String(),
			Amount:     line.Amount.String(),
		})
	}
	out, err := json.Marshal(frozen)
	if err != nil {
		return "", fmt.Errorf("billing: freeze snapshot: %w", err)
	}
	return string(out), nil
}

func statusAudit(actorID int64, action, before, after string) shared.AuditLog {
	b, _ := json.Marshal(map[string]string{"status": before})
	a, _ := json.Marshal(map[string]string{"status": after})
	return shared.AuditLog{ActorID: actorID, Action: action, Before: string(b), After: string(a)}
}
