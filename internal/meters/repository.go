package meters

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atrium-pm/atrium/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for meters and readings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListByUnit returns the meters of a unit ordered by kind then slot.
func (r *Repository) ListByUnit(ctx context.Context, unitID int64) ([]Meter, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, unit_id, kind, slot, COALESCE(serial_no, '') FROM meters WHERE unit_id = $1 ORDER BY kind, slot`,
		unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meters []Meter
	for rows.Next() {
		var m Meter
		if err := rows.Scan(&m.ID, &m.UnitID, &m.Kind, &m.Slot, &m.SerNo); err != nil {
			return nil, err
		}
		meters = append(meters, m)
	}
	return meters, rows.Err()
}

// Get fetches a meter by id.
func (r *Repository) Get(ctx context.Context, id int64) (Meter, error) {
	var m Meter
	err := r.pool.QueryRow(ctx,
		`SELECT id, unit_id, kind, slot, COALESCE(serial_no, '') FROM meters WHERE id = $1`, id).
		Scan(&m.ID, &m.UnitID, &m.Kind, &m.Slot, &m.SerNo)
	if errors.Is(err, pgx.ErrNoRows) {
		return Meter{}, ErrMeterNotFound
	}
	return m, err
}

// Create inserts a meter row. A duplicate (unit, kind, slot) maps to ErrMeterExists.
func (r *Repository) Create(ctx context.Context, m Meter) (Meter, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO meters (unit_id, kind, slot, serial_no)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id`,
		m.UnitID, m.Kind, m.Slot, m.SerNo).Scan(&m.ID)
	if db.IsUniqueViolation(err, "") {
		return Meter{}, ErrMeterExists
	}
	if err != nil {
		return Meter{}, fmt.Errorf("meters: insert meter: %w", err)
	}
	return m, nil
}

// UpsertReading records a value for (meter, period), overwriting any earlier
// value for the same period.
func (r *Repository) UpsertReading(ctx context.Context, meterID int64, period string, value decimal.Decimal) (MeterReading, error) {
	var reading MeterReading
	var raw string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO meter_readings (meter_id, period, value, recorded_at)
		VALUES ($1, $2, $3::numeric, NOW())
		ON CONFLICT (meter_id, period)
		DO UPDATE SET value = EXCLUDED.value, recorded_at = NOW()
		RETURNING id, meter_id, period, value::text, recorded_at`,
		meterID, period, value.String()).
		Scan(&reading.ID, &reading.MeterID, &reading.Period, &raw, &reading.RecordedAt)
	if err != nil {
		return MeterReading{}, fmt.Errorf("meters: upsert reading: %w", err)
	}
	reading.Value, err = decimal.NewFromString(raw)
	if err != nil {
		return MeterReading{}, fmt.Errorf("meters: parse reading value: %w", err)
	}
	return reading, nil
}

// ListReadings returns the readings of a meter ordered by period.
func (r *Repository) ListReadings(ctx context.Context, meterID int64) ([]MeterReading, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, meter_id, period, value::text, recorded_at FROM meter_readings WHERE meter_id = $1 ORDER BY period`,
		meterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []MeterReading
	for rows.Next() {
		var reading MeterReading
		var raw string
		if err := rows.Scan(&reading.ID, &reading.MeterID, &reading.Period, &raw, &reading.RecordedAt); err != nil {
			return nil, err
		}
		if reading.Value, err = decimal.NewFromString(raw); err != nil {
			return nil, err
		}
		readings = append(readings, reading)
	}
	return readings, rows.Err()
}
