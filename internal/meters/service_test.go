package meters

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMeterRepo struct {
	meters   map[int64]Meter
	readings map[int64]map[string]MeterReading
	nextID   int64
}

func newFakeMeterRepo() *fakeMeterRepo {
	return &fakeMeterRepo{
		meters:   make(map[int64]Meter),
		readings: make(map[int64]map[string]MeterReading),
		nextID:   1,
	}
}

func (f *fakeMeterRepo) ListByUnit(_ context.Context, unitID int64) ([]Meter, error) {
	var out []Meter
	for _, m := range f.meters {
		if m.UnitID == unitID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMeterRepo) Get(_ context.Context, id int64) (Meter, error) {
	m, ok := f.meters[id]
	if !ok {
		return Meter{}, ErrMeterNotFound
	}
	return m, nil
}

func (f *fakeMeterRepo) Create(_ context.Context, m Meter) (Meter, error) {
	for _, existing := range f.meters {
		if existing.UnitID == m.UnitID && existing.Kind == m.Kind && existing.Slot == m.Slot {
			return Meter{}, ErrMeterExists
		}
	}
	m.ID = f.nextID
	f.nextID++
	f.meters[m.ID] = m
	return m, nil
}

func (f *fakeMeterRepo) UpsertReading(_ context.Context, meterID int64, period string, value decimal.Decimal) (MeterReading, error) {
	if f.readings[meterID] == nil {
		f.readings[meterID] = make(map[string]MeterReading)
	}
	reading, ok := f.readings[meterID][period]
	if !ok {
		reading = MeterReading{ID: f.nextID, MeterID: meterID, Period: period}
		f.nextID++
	}
	reading.Value = value
	f.readings[meterID][period] = reading
	return reading, nil
}

func (f *fakeMeterRepo) ListReadings(_ context.Context, meterID int64) ([]MeterReading, error) {
	var out []MeterReading
	for _, reading := range f.readings[meterID] {
		out = append(out, reading)
	}
	return out, nil
}

func TestCreateMeterSlotUnique(t *testing.T) {
	svc := NewService(newFakeMeterRepo())
	ctx := context.Background()

	_, err := svc.CreateMeter(ctx, 5, KindColdWater, 0, "")
	require.NoError(t, err)

	// Slot defaulted to 1, so another slotless water meter collides.
	_, err = svc.CreateMeter(ctx, 5, KindColdWater, 1, "W-2")
	require.ErrorIs(t, err, ErrMeterExists)

	_, err = svc.CreateMeter(ctx, 5, KindColdWater, 2, "W-2")
	require.NoError(t, err)

	_, err = svc.CreateMeter(ctx, 5, "steam", 1, "")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestRecordReadingOverwritesPeriod(t *testing.T) {
	repo := newFakeMeterRepo()
	svc := NewService(repo)
	ctx := context.Background()

	meter, err := svc.CreateMeter(ctx, 5, KindHotWater, 1, "")
	require.NoError(t, err)

	first, err := svc.RecordReading(ctx, meter.ID, "2026-02", decimal.NewFromInt(120))
	require.NoError(t, err)

	second, err := svc.RecordReading(ctx, meter.ID, "2026-02", decimal.NewFromInt(125))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "125", second.Value.String())

	readings, err := svc.Readings(ctx, meter.ID)
	require.NoError(t, err)
	assert.Len(t, readings, 1)
}

func TestRecordReadingValidation(t *testing.T) {
	repo := newFakeMeterRepo()
	svc := NewService(repo)
	ctx := context.Background()

	meter, err := svc.CreateMeter(ctx, 5, KindElec, 1, "")
	require.NoError(t, err)

	_, err = svc.RecordReading(ctx, meter.ID, "2026-2", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInvalidPeriod)

	_, err = svc.RecordReading(ctx, meter.ID, "2026-02", decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrNegativeValue)

	_, err = svc.RecordReading(ctx, 999, "2026-02", decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrMeterNotFound)
}
