package property

import (
	"fmt"

	"github.com/atrium-pm/atrium/internal/platform/httpx"
)

// Company is the top of the property hierarchy. Codes are unique globally.
type Company struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Community belongs to a company; its code is unique within the company.
type Community struct {
	ID        int64  `json:"id"`
	CompanyID int64  `json:"company_id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
}

// Building belongs to a community; its code is unique within the community.
type Building struct {
	ID          int64  `json:"id"`
	CommunityID int64  `json:"community_id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
}

// Unit is a rentable apartment. unit_no is unique within the building.
type Unit struct {
	ID         int64  `json:"id"`
	BuildingID int64  `json:"building_id"`
	UnitNo     string `json:"unit_no"`
	Remark     string `json:"remark,omitempty"`
}

// UnitHierarchy is the fully resolved chain unit -> building -> community -> company,
// loaded by explicit foreign-key lookups rather than relation traversal.
type UnitHierarchy struct {
	Unit      Unit
	Building  Building
	Community Community
	Company   Company
}

// ErrUnitNotFound indicates the referenced unit does not exist.
var ErrUnitNotFound = fmt.Errorf("property: unit %w", httpx.ErrNotFound)

// ErrCompanyNotFound indicates the referenced company does not exist.
var ErrCompanyNotFound = fmt.Errorf("property: company %w", httpx.ErrNotFound)
