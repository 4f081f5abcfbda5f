package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atrium-pm/atrium/internal/platform/httpx"
)

// Bill statuses. issued and void are terminal.
const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusApproved  = "approved"
	StatusIssued    = "issued"
	StatusVoid      = "void"
)

// transitions maps an action to its required current status and result.
// Void is special-cased: it is legal from any non-terminal status.
var transitions = map[string]struct{ from, to string }{
	"submit":  {StatusDraft, StatusSubmitted},
	"approve": {StatusSubmitted, StatusApproved},
	"issue":   {StatusApproved, StatusIssued},
}

// Terminal reports whether a status admits no further transitions.
func Terminal(status string) bool {
	return status == StatusIssued || status == StatusVoid
}

// Bill is one billing cycle of one unit. Company and community ids are
// denormalized at generation time from the unit hierarchy so a later re-homing
// of the unit does not rewrite history. FrozenSnapshot is set exactly once on
// approval and never touched again.
type Bill struct {
	ID             int64           `json:"id"`
	UnitID         int64           `json:"unit_id"`
	LeaseID        int64           `json:"lease_id"`
	CompanyID      int64           `json:"company_id"`
	CommunityID    int64           `json:"community_id"`
	TemplateID     *int64          `json:"template_id,omitempty"`
	CycleStart     time.Time       `json:"cycle_start"`
	CycleEnd       time.Time       `json:"cycle_end"`
	Status         string          `json:"status"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	FrozenSnapshot string          `json:"frozen_snapshot,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// BillLine is a charge line of a bill. ChargeCode is resolved at creation
// time; ChargeItemID keeps the reference to the charge item when the line came
// from a template.
type BillLine struct {
	ID           int64           `json:"id"`
	BillID       int64           `json:"bill_id"`
	ChargeItemID *int64          `json:"charge_item_id,omitempty"`
	ChargeCode   string          `json:"charge_code"`
	Qty          decimal.Decimal `json:"qty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Amount       decimal.Decimal `json:"amount"`
}

// Errors.
var (
	ErrBillNotFound  = fmt.Errorf("billing: bill not found: %w", httpx.ErrNotFound)
	ErrBillExists    = fmt.Errorf("billing: bill already exists for cycle: %w", httpx.ErrDuplicate)
	ErrWrongStatus   = fmt.Errorf("billing: bill is not in the required status: %w", httpx.ErrStateConflict)
	ErrBillTerminal  = fmt.Errorf("billing: bill is in a terminal status: %w", httpx.ErrStateConflict)
	ErrNoLease       = fmt.Errorf("billing: no lease for unit: %w", httpx.ErrNotFound)
)
