package meters

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atrium-pm/atrium/internal/platform/httpx"
)

// Meter kinds.
const (
	KindColdWater = "cold_water"
	KindHotWater  = "hot_water"
	KindElec      = "elec"
)

// Meter is a physical meter attached to a unit. A unit may carry several
// meters of the same kind distinguished by slot number; (unit_id, kind, slot)
// is unique.
type Meter struct {
	ID     int64  `json:"id"`
	UnitID int64  `json:"unit_id"`
	Kind   string `json:"kind"`
	Slot   int    `json:"slot"`
	SerNo  string `json:"serial_no,omitempty"`
}

// MeterReading is the recorded value of a meter for a billing period.
// (meter_id, period) is unique; re-recording a period overwrites the value.
type MeterReading struct {
	ID         int64           `json:"id"`
	MeterID    int64           `json:"meter_id"`
	Period     string          `json:"period"`
	Value      decimal.Decimal `json:"value"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Errors.
var (
	ErrMeterNotFound  = fmt.Errorf("meters: meter not found: %w", httpx.ErrNotFound)
	ErrMeterExists    = fmt.Errorf("meters: meter slot already taken: %w", httpx.ErrDuplicate)
	ErrUnknownKind    = fmt.Errorf("meters: unknown meter kind: %w", httpx.ErrValidation)
	ErrInvalidPeriod  = fmt.Errorf("meters: period must be YYYY-MM: %w", httpx.ErrValidation)
	ErrNegativeValue  = fmt.Errorf("meters: reading value must not be negative: %w", httpx.ErrValidation)
)

// ValidKind reports whether kind is one of the supported meter kinds.
func ValidKind(kind string) bool {
	switch kind {
	case KindColdWater, KindHotWater, KindElec:
		return true
	}
	return false
}
