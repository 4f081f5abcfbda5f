package templates

import (
	"fmt"

	"github.com/atrium-pm/atrium/internal/platform/httpx"
)

// ChargeItem is a reusable charge catalog entry referenced by template lines.
type ChargeItem struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// BillTemplate is a reusable set of charge lines for manual bill creation.
type BillTemplate struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Active      bool           `json:"active"`
	Lines       []TemplateLine `json:"lines,omitempty"`
}

// TemplateLine is one ordered entry of a template. ChargeItemCode is resolved
// at load time and empty when the referenced charge item has been deleted.
type TemplateLine struct {
	ID             int64  `json:"id"`
	TemplateID     int64  `json:"template_id"`
	ChargeItemID   int64  `json:"charge_item_id"`
	ChargeItemCode string `json:"charge_item_code,omitempty"`
	Required       bool   `json:"required"`
	SortOrder      int    `json:"sort_order"`
	Note           string `json:"note,omitempty"`
}

// Errors.
var (
	ErrTemplateNotFound   = fmt.Errorf("templates: template not found: %w", httpx.ErrNotFound)
	ErrChargeItemNotFound = fmt.Errorf("templates: charge item not found: %w", httpx.ErrNotFound)
	ErrChargeItemExists   = fmt.Errorf("templates: charge item code already exists: %w", httpx.ErrDuplicate)
)

// LineCode returns the charge code a bill line instantiated from this
// template line carries. Deleted charge items degrade to "item-{id}" so the
// bill still round-trips.
func (l TemplateLine) LineCode() string {
	if l.ChargeItemCode != "" {
		return l.ChargeItemCode
	}
	return fmt.Sprintf("item-%d", l.ChargeItemID)
}
