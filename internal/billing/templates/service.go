package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atrium-pm/atrium/internal/billing"
	"github.com/atrium-pm/atrium/internal/leases"
	"github.com/atrium-pm/atrium/internal/platform/httpx"
	"github.com/atrium-pm/atrium/internal/shared"
)

// RepositoryPort abstracts template persistence for the service layer.
type RepositoryPort interface {
	ListTemplates(ctx context.Context, activeOnly bool) ([]BillTemplate, error)
	GetTemplate(ctx context.Context, id int64) (BillTemplate, error)
	CreateTemplate(ctx context.Context, in TemplateInput) (BillTemplate, error)
	UpdateTemplate(ctx context.Context, id int64, in TemplateInput) (BillTemplate, error)
	DeleteTemplate(ctx context.Context, id int64) error
	ListChargeItems(ctx context.Context) ([]ChargeItem, error)
	CreateChargeItem(ctx context.Context, code, name string) (ChargeItem, error)
}

// BillStore is the slice of bill persistence instantiation needs.
type BillStore interface {
	FindBillByCycle(ctx context.Context, unitID int64, cycleStart time.Time) (billing.Bill, error)
	CreateDraftBill(ctx context.Context, bill billing.Bill, lines []billing.BillLine, log shared.AuditLog) (billing.Bill, error)
}

// Service implements template CRUD and template instantiation.
type Service struct {
	repo      RepositoryPort
	bills     BillStore
	leases    billing.LeaseSource
	hierarchy billing.HierarchySource
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, bills BillStore, leaseSource billing.LeaseSource, hierarchySource billing.HierarchySource) *Service {
	return &Service{repo: repo, bills: bills, leases: leaseSource, hierarchy: hierarchySource}
}

// Templates lists templates.
func (s *Service) Templates(ctx context.Context, activeOnly bool) ([]BillTemplate, error) {
	return s.repo.ListTemplates(ctx, activeOnly)
}

// Template loads one template with its lines.
func (s *Service) Template(ctx context.Context, id int64) (BillTemplate, error) {
	return s.repo.GetTemplate(ctx, id)
}

// CreateTemplate validates and stores a new template.
func (s *Service) CreateTemplate(ctx context.Context, in TemplateInput) (BillTemplate, error) {
	if err := validateInput(in); err != nil {
		return BillTemplate{}, err
	}
	return s.repo.CreateTemplate(ctx, in)
}

// UpdateTemplate validates and rewrites a template.
func (s *Service) UpdateTemplate(ctx context.Context, id int64, in TemplateInput) (BillTemplate, error) {
	if err := validateInput(in); err != nil {
		return BillTemplate{}, err
	}
	return s.repo.UpdateTemplate(ctx, id, in)
}

// DeleteTemplate removes a template.
func (s *Service) DeleteTemplate(ctx context.Context, id int64) error {
	return s.repo.DeleteTemplate(ctx, id)
}

// ChargeItems lists the charge catalog.
func (s *Service) ChargeItems(ctx context.Context) ([]ChargeItem, error) {
	return s.repo.ListChargeItems(ctx)
}

// CreateChargeItem adds a charge catalog entry.
func (s *Service) CreateChargeItem(ctx context.Context, code, name string) (ChargeItem, error) {
	code = strings.TrimSpace(code)
	if code == "" || strings.TrimSpace(name) == "" {
		return ChargeItem{}, fmt.Errorf("templates: charge item code and name required: %w", httpx.ErrValidation)
	}
	return s.repo.CreateChargeItem(ctx, code, name)
}

func validateInput(in TemplateInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("templates: template name required: %w", httpx.ErrValidation)
	}
	for _, line := range in.Lines {
		if line.ChargeItemID <= 0 {
			return fmt.Errorf("templates: template line requires charge item: %w", httpx.ErrValidation)
		}
	}
	return nil
}

// Instantiate creates a draft bill for the cycle containing target from the
// template's lines. Unlike the rent generator this path is strict: an existing
// bill for the computed (unit, cycle_start) is a conflict, not an idempotent
// return. Lines are emitted in sort order with qty 1 and zero prices; the
// clerk fills in the amounts before submitting.
func (s *Service) Instantiate(ctx context.Context, templateID, unitID int64, target time.Time, actorID int64) (billing.Bill, error) {
	tpl, err := s.repo.GetTemplate(ctx, templateID)
	if err != nil {
		return billing.Bill{}, err
	}

	lease, err := s.leases.LatestForUnit(ctx, unitID)
	if err != nil {
		if errors.Is(err, leases.ErrLeaseNotFound) {
			return billing.Bill{}, billing.ErrNoLease
		}
		return billing.Bill{}, err
	}

	cycleStart, cycleEnd := billing.ComputeBillingCycle(lease.StartDate, target)
	if _, err := s.bills.FindBillByCycle(ctx, unitID, cycleStart); err == nil {
		return billing.Bill{}, billing.ErrBillExists
	} else if !errors.Is(err, billing.ErrBillNotFound) {
		return billing.Bill{}, err
	}

	h, err := s.hierarchy.Hierarchy(ctx, unitID)
	if err != nil {
		return billing.Bill{}, err
	}

	tplLines := append([]TemplateLine(nil), tpl.Lines...)
	sort.SliceStable(tplLines, func(i, j int) bool { return tplLines[i].SortOrder < tplLines[j].SortOrder })

	lines := make([]billing.BillLine, 0, len(tplLines))
	for _, line := range tplLines {
		itemID := line.ChargeItemID
		lines = append(lines, billing.BillLine{
			ChargeItemID: &itemID,
			ChargeCode:   line.LineCode(),
			Qty:          decimal.NewFromInt(1),
			UnitPrice:    decimal.Zero,
			Amount:       decimal.Zero,
		})
	}

	bill := billing.Bill{
		UnitID:      unitID,
		LeaseID:     lease.ID,
		CompanyID:   h.Company.ID,
		CommunityID: h.Community.ID,
		TemplateID:  &tpl.ID,
		CycleStart:  cycleStart,
		CycleEnd:    cycleEnd,
		Status:      billing.StatusDraft,
		TotalAmount: decimal.Zero,
	}
	after, _ := json.Marshal(map[string]string{
		"unit_id":     fmt.Sprintf("%d", unitID),
		"template_id": fmt.Sprintf("%d", tpl.ID),
		"cycle_start": cycleStart.Format("2006-01-02"),
	})
	return s.bills.CreateDraftBill(ctx, bill, lines, shared.AuditLog{
		ActorID: actorID,
		Action:  "instantiate_template",
		After:   string(after),
	})
}
