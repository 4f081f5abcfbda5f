package meters

import (
	"context"
	"regexp"

	"github.com/shopspring/decimal"
)

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// RepositoryPort abstracts meter persistence for the service layer.
type RepositoryPort interface {
	ListByUnit(ctx context.Context, unitID int64) ([]Meter, error)
	Get(ctx context.Context, id int64) (Meter, error)
	Create(ctx context.Context, m Meter) (Meter, error)
	UpsertReading(ctx context.Context, meterID int64, period string, value decimal.Decimal) (MeterReading, error)
	ListReadings(ctx context.Context, meterID int64) ([]MeterReading, error)
}

// Service enforces meter business rules.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// MetersForUnit lists the meters of a unit.
func (s *Service) MetersForUnit(ctx context.Context, unitID int64) ([]Meter, error) {
	return s.repo.ListByUnit(ctx, unitID)
}

// CreateMeter registers a meter on a unit. Slot defaults to 1.
func (s *Service) CreateMeter(ctx context.Context, unitID int64, kind string, slot int, serialNo string) (Meter, error) {
	if !ValidKind(kind) {
		return Meter{}, ErrUnknownKind
	}
	if slot <= 0 {
		slot = 1
	}
	return s.repo.Create(ctx, Meter{UnitID: unitID, Kind: kind, Slot: slot, SerNo: serialNo})
}

// RecordReading stores a reading value for the period, replacing any earlier
// value for the same (meter, period).
func (s *Service) RecordReading(ctx context.Context, meterID int64, period string, value decimal.Decimal) (MeterReading, error) {
	if !periodPattern.MatchString(period) {
		return MeterReading{}, ErrInvalidPeriod
	}
	if value.IsNegative() {
		return MeterReading{}, ErrNegativeValue
	}
	if _, err := s.repo.Get(ctx, meterID); err != nil {
		return MeterReading{}, err
	}
	return s.repo.UpsertReading(ctx, meterID, period, value)
}

// Readings lists the readings of a meter.
func (s *Service) Readings(ctx context.Context, meterID int64) ([]MeterReading, error) {
	if _, err := s.repo.Get(ctx, meterID); err != nil {
		return nil, err
	}
	return s.repo.ListReadings(ctx, meterID)
}
