package leases

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/atrium-pm/atrium/internal/platform/httpx"
)

func parseAmount(raw, field string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("leases: %s is not a number: %w", field, httpx.ErrValidation)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("leases: %s must not be negative: %w", field, httpx.ErrValidation)
	}
	return d, nil
}
