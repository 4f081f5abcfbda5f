package leases

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLeaseRepo struct {
	leases    map[int64]Lease
	tenants   map[string]Tenant
	nextID    int64
	listCalls int
	saveCalls int
}

func newFakeLeaseRepo() *fakeLeaseRepo {
	return &fakeLeaseRepo{
		leases:  make(map[int64]Lease),
		tenants: make(map[string]Tenant),
		nextID:  1,
	}
}

func (f *fakeLeaseRepo) ListByUnit(_ context.Context, unitID int64) ([]Lease, error) {
	f.listCalls++
	return f.leasesByUnit(unitID), nil
}

func (f *fakeLeaseRepo) leasesByUnit(unitID int64) []Lease {
	var out []Lease
	for _, l := range f.leases {
		if l.UnitID == unitID {
			out = append(out, l)
		}
	}
	return out
}

func (f *fakeLeaseRepo) Get(_ context.Context, id int64) (Lease, error) {
	l, ok := f.leases[id]
	if !ok {
		return Lease{}, ErrLeaseNotFound
	}
	return l, nil
}

func (f *fakeLeaseRepo) LatestByUnit(_ context.Context, unitID int64) (Lease, error) {
	var latest Lease
	found := false
	for _, l := range f.leases {
		if l.UnitID != unitID {
			continue
		}
		if !found || l.StartDate.After(latest.StartDate) {
			latest = l
			found = true
		}
	}
	if !found {
		return Lease{}, ErrLeaseNotFound
	}
	return latest, nil
}

func (f *fakeLeaseRepo) SaveLease(_ context.Context, in LeaseInput, decide func(existing []Lease) (int64, error)) (Lease, error) {
	f.saveCalls++
	updateID, err := decide(f.leasesByUnit(in.UnitID))
	if err != nil {
		return Lease{}, err
	}
	if updateID > 0 {
		l, ok := f.leases[updateID]
		if !ok {
			return Lease{}, ErrLeaseNotFound
		}
		l.TenantID = in.TenantID
		l.StartDate = in.StartDate
		l.EndDate = in.EndDate
		l.RentAmount = in.RentAmount
		l.DepositAmount = in.DepositAmount
		f.leases[updateID] = l
		return l, nil
	}
	l := Lease{
		ID:            f.nextID,
		UnitID:        in.UnitID,
		TenantID:      in.TenantID,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		RentAmount:    in.RentAmount,
		DepositAmount: in.DepositAmount,
	}
	f.nextID++
	f.leases[l.ID] = l
	return l, nil
}

func (f *fakeLeaseRepo) EnsureTenant(_ context.Context, name, mobile string) (Tenant, error) {
	key := name + "|" + mobile
	if t, ok := f.tenants[key]; ok {
		return t, nil
	}
	t := Tenant{ID: f.nextID, Name: name, Mobile: mobile}
	f.nextID++
	f.tenants[key] = t
	return t, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func TestCreateLease(t *testing.T) {
	repo := newFakeLeaseRepo()
	svc := NewService(repo)
	ctx := context.Background()

	lease, err := svc.CreateLease(ctx, CreateLeaseParams{
		UnitID:     10,
		TenantName: "Zhang Wei",
		StartDate:  date(2026, time.January, 15),
		EndDate:    datePtr(2026, time.December, 31),
		RentAmount: "1500.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "1500", lease.RentAmount.String())
	assert.NotZero(t, lease.TenantID)
}

func TestCreateLeaseRejectsOverlap(t *testing.T) {
	repo := newFakeLeaseRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.CreateLease(ctx, CreateLeaseParams{
		UnitID:     10,
		TenantName: "Zhang Wei",
		StartDate:  date(2026, time.January, 1),
		EndDate:    datePtr(2026, time.June, 30),
	})
	require.NoError(t, err)

	// Starting exactly on the existing end date still overlaps: boundaries
	// are inclusive.
	_, err = svc.CreateLease(ctx, CreateLeaseParams{
		UnitID:     10,
		TenantName: "Li Na",
		StartDate:  date(2026, time.June, 30),
	})
	require.ErrorIs(t, err, ErrLeaseOverlap)

	// The day after the end date is free.
	_, err = svc.CreateLease(ctx, CreateLeaseParams{
		UnitID:     10,
		TenantName: "Li Na",
		StartDate:  date(2026, time.July, 1),
	})
	require.NoError(t, err)
}

func TestCreateLeaseOpenEndedBlocksFuture(t *testing.T) {
	repo := newFakeLeaseRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.CreateLease(ctx, CreateLeaseParams{
		UnitID:     7,
		TenantName: "Zhang Wei",
		StartDate:  date(2026, time.March, 1),
	})
	require.NoError(t, err)

	_, err = svc.CreateLease(ctx, CreateLeaseParams{
		UnitID:     7,
		TenantName: "Li Na",
		StartDate:  date(2030, time.January, 1),
	})
	require.ErrorIs(t, err, ErrLeaseOverlap)
}

func TestCreateLeaseSameStartUpdatesInPlace(t *testing.T) {
	repo := newFakeLeaseRepo()
	svc := NewService(repo)
	ctx := context.Background()

	first, err := svc.CreateLease(ctx, CreateLeaseParams{
		UnitID:     10,
		TenantName: "Zhang Wei",
		StartDate:  date(2026, time.January, 1),
		EndDate:    datePtr(2026, time.June, 30),
		RentAmount: "1000",
	})
	require.NoError(t, err)

	second, err := svc.CreateLease(ctx, CreateLeaseParams{
		UnitID:     10,
		TenantName: "Zhang Wei",
		StartDate:  date(2026, time.January, 1),
		EndDate:    datePtr(2026, time.December, 31),
		RentAmount: "1200",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "1200", second.RentAmount.String())

	leases, err := repo.ListByUnit(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, leases, 1)
}

func TestCreateLeaseChecksOverlapInsideSave(t *testing.T) {
	repo := newFakeLeaseRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.CreateLease(ctx, CreateLeaseParams{
		UnitID:     10,
		TenantName: "Zhang Wei",
		StartDate:  date(2026, time.January, 1),
	})
	require.NoError(t, err)

	// The overlap check runs on the lease set the store hands to the save,
	// not on a separate read taken before the write.
	assert.Equal(t, 1, repo.saveCalls)
	assert.Zero(t, repo.listCalls)
}

func TestCreateLeaseValidation(t *testing.T) {
	svc := NewService(newFakeLeaseRepo())
	ctx := context.Background()

	_, err := svc.CreateLease(ctx, CreateLeaseParams{
		UnitID:     10,
		TenantName: "Zhang Wei",
		StartDate:  date(2026, time.May, 1),
		EndDate:    datePtr(2026, time.April, 1),
	})
	assert.Error(t, err)

	_, err = svc.CreateLease(ctx, CreateLeaseParams{
		UnitID:     10,
		TenantName: "Zhang Wei",
		StartDate:  date(2026, time.May, 1),
		RentAmount: "not-a-number",
	})
	assert.Error(t, err)

	_, err = svc.CreateLease(ctx, CreateLeaseParams{
		UnitID:     10,
		TenantName: "Zhang Wei",
		StartDate:  date(2026, time.May, 1),
		RentAmount: "-5",
	})
	assert.Error(t, err)
}
