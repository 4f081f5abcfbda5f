package billing

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrium-pm/atrium/internal/leases"
	"github.com/atrium-pm/atrium/internal/platform/httpx"
	"github.com/atrium-pm/atrium/internal/property"
	"github.com/atrium-pm/atrium/internal/shared"
)

type fakeStore struct {
	bills       map[int64]Bill
	lines       map[int64][]BillLine
	audits      []shared.AuditLog
	leasedUnits []int64
	nextID      int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{bills: make(map[int64]Bill), lines: make(map[int64][]BillLine), nextID: 1}
}

func (f *fakeStore) GetBill(_ context.Context, id int64) (Bill, error) {
	b, ok := f.bills[id]
	if !ok {
		return Bill{}, ErrBillNotFound
	}
	return b, nil
}

func (f *fakeStore) FindBillByCycle(_ context.Context, unitID int64, cycleStart time.Time) (Bill, error) {
	for _, b := range f.bills {
		if b.UnitID == unitID && b.CycleStart.Equal(cycleStart) {
			return b, nil
		}
	}
	return Bill{}, ErrBillNotFound
}

func (f *fakeStore) ListBills(_ context.Context, filters BillFilters) ([]Bill, error) {
	var out []Bill
	for _, b := range f.bills {
		if filters.UnitID != 0 && b.UnitID != filters.UnitID {
			continue
		}
		if filters.Status != "" && b.Status != filters.Status {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeStore) ListLines(_ context.Context, billID int64) ([]BillLine, error) {
	return f.lines[billID], nil
}

func (f *fakeStore) CreateDraftBill(_ context.Context, bill Bill, lines []BillLine, log shared.AuditLog) (Bill, error) {
	for _, b := range f.bills {
		if b.UnitID == bill.UnitID && b.CycleStart.Equal(bill.CycleStart) {
			return Bill{}, ErrBillExists
		}
	}
	bill.ID = f.nextID
	f.nextID++
	bill.Status = StatusDraft
	f.bills[bill.ID] = bill
	for i := range lines {
		lines[i].ID = f.nextID
		f.nextID++
		lines[i].BillID = bill.ID
	}
	f.lines[bill.ID] = lines
	f.audits = append(f.audits, log)
	return bill, nil
}

func (f *fakeStore) Transition(_ context.Context, billID int64, fn func(bill *Bill, lines []BillLine) (shared.AuditLog, error)) (Bill, error) {
	bill, ok := f.bills[billID]
	if !ok {
		return Bill{}, ErrBillNotFound
	}
	log, err := fn(&bill, f.lines[billID])
	if err != nil {
		return Bill{}, err
	}
	f.bills[billID] = bill
	f.audits = append(f.audits, log)
	return bill, nil
}

func (f *fakeStore) LeasedUnitsByCompany(_ context.Context, _ int64) ([]int64, error) {
	return f.leasedUnits, nil
}

func (f *fakeStore) ExportLines(_ context.Context, billID int64) ([]ExportLine, error) {
	var out []ExportLine
	for _, l := range f.lines[billID] {
		out = append(out, ExportLine{ItemCode: l.ChargeCode, ChargeCode: l.ChargeCode, Qty: l.Qty, UnitPrice: l.UnitPrice, Amount: l.Amount})
	}
	return out, nil
}

type fakeLeaseSource struct {
	byUnit map[int64]leases.Lease
}

func (f *fakeLeaseSource) LatestForUnit(_ context.Context, unitID int64) (leases.Lease, error) {
	l, ok := f.byUnit[unitID]
	if !ok {
		return leases.Lease{}, leases.ErrLeaseNotFound
	}
	return l, nil
}

type fakeHierarchy struct{}

func (fakeHierarchy) Hierarchy(_ context.Context, unitID int64) (property.UnitHierarchy, error) {
	return property.UnitHierarchy{
		Unit:      property.Unit{ID: unitID, BuildingID: 30},
		Building:  property.Building{ID: 30, CommunityID: 20},
		Community: property.Community{ID: 20, CompanyID: 10},
		Company:   property.Company{ID: 10},
	}, nil
}

func newTestService(store *fakeStore, leaseByUnit map[int64]leases.Lease) *Service {
	return NewService(store, &fakeLeaseSource{byUnit: leaseByUnit}, fakeHierarchy{})
}

func rentLease(unitID int64, start time.Time, rent int64) map[int64]leases.Lease {
	return map[int64]leases.Lease{
		unitID: {ID: 100, UnitID: unitID, StartDate: start, RentAmount: decimal.NewFromInt(rent)},
	}
}

func TestGenerateBillForUnit(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, rentLease(7, d(2026, time.February, 15), 1000))
	ctx := context.Background()

	bill, created, err := svc.GenerateBillForUnit(ctx, 7, d(2026, time.February, 20), 1)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, StatusDraft, bill.Status)
	assert.Equal(t, d(2026, time.February, 15), bill.CycleStart)
	assert.Equal(t, d(2026, time.March, 14), bill.CycleEnd)
	assert.Equal(t, int64(10), bill.CompanyID)
	assert.Equal(t, int64(20), bill.CommunityID)
	assert.Equal(t, "1000", bill.TotalAmount.String())

	lines, err := svc.Lines(ctx, bill.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, ChargeCodeRent, lines[0].ChargeCode)
	assert.Equal(t, "1", lines[0].Qty.String())
	assert.Equal(t, "1000", lines[0].UnitPrice.String())
	assert.Equal(t, "1000", lines[0].Amount.String())

	require.Len(t, store.audits, 1)
	assert.Equal(t, "create_bill", store.audits[0].Action)
}

func TestGenerateBillIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, rentLease(7, d(2026, time.February, 15), 1000))
	ctx := context.Background()

	first, created, err := svc.GenerateBillForUnit(ctx, 7, d(2026, time.February, 20), 1)
	require.NoError(t, err)
	require.True(t, created)

	// Any target inside the same cycle resolves to the same bill.
	second, created, err := svc.GenerateBillForUnit(ctx, 7, d(2026, time.March, 10), 1)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	assert.Len(t, store.lines[first.ID], 1)
	assert.Len(t, store.audits, 1)
}

func TestGenerateBillNoLease(t *testing.T) {
	svc := newTestService(newFakeStore(), nil)
	_, _, err := svc.GenerateBillForUnit(context.Background(), 7, d(2026, time.February, 20), 1)
	require.ErrorIs(t, err, ErrNoLease)
}

func TestGenerateBatchForCompany(t *testing.T) {
	store := newFakeStore()
	store.leasedUnits = []int64{7, 8}
	leaseMap := map[int64]leases.Lease{
		7: {ID: 100, UnitID: 7, StartDate: d(2026, time.January, 1), RentAmount: decimal.NewFromInt(800)},
		8: {ID: 101, UnitID: 8, StartDate: d(2026, time.January, 10), RentAmount: decimal.NewFromInt(900)},
	}
	svc := newTestService(store, leaseMap)

	bills, err := svc.GenerateBatchForCompany(context.Background(), 10, d(2026, time.January, 20), 1)
	require.NoError(t, err)
	assert.Len(t, bills, 2)

	// Re-running creates nothing new.
	bills, err = svc.GenerateBatchForCompany(context.Background(), 10, d(2026, time.January, 20), 1)
	require.NoError(t, err)
	assert.Len(t, bills, 2)
	assert.Len(t, store.audits, 2)
}

func TestGenerateBatchAbortsOnFailure(t *testing.T) {
	store := newFakeStore()
	store.leasedUnits = []int64{7, 9, 8}
	leaseMap := rentLease(7, d(2026, time.January, 1), 800)
	leaseMap[8] = leases.Lease{ID: 101, UnitID: 8, StartDate: d(2026, time.January, 1), RentAmount: decimal.NewFromInt(900)}
	// Unit 9 has no lease: the store lists it, but lease lookup fails.
	svc := newTestService(store, leaseMap)

	_, err := svc.GenerateBatchForCompany(context.Background(), 10, d(2026, time.January, 20), 1)
	require.ErrorIs(t, err, ErrNoLease)
	// Unit 8 was never reached.
	assert.Len(t, store.bills, 1)
}

func setupBill(t *testing.T) (*fakeStore, *Service, Bill) {
	t.Helper()
	store := newFakeStore()
	svc := newTestService(store, rentLease(7, d(2026, time.February, 15), 1000))
	bill, _, err := svc.GenerateBillForUnit(context.Background(), 7, d(2026, time.February, 20), 1)
	require.NoError(t, err)
	return store, svc, bill
}

func TestBillLifecycle(t *testing.T) {
	store, svc, bill := setupBill(t)
	ctx := context.Background()

	bill, err := svc.Submit(ctx, bill.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, bill.Status)
	assert.Empty(t, bill.FrozenSnapshot)

	bill, err = svc.Approve(ctx, bill.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, bill.Status)

	var frozen []snapshotLine
	require.NoError(t, json.Unmarshal([]byte(bill.FrozenSnapshot), &frozen))
	require.Len(t, frozen, 1)
	assert.Equal(t, snapshotLine{ChargeCode: "rent", Qty: "1", UnitPrice: "1000", Amount: "1000"}, frozen[0])

	bill, err = svc.Issue(ctx, bill.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, StatusIssued, bill.Status)

	require.Len(t, store.audits, 4)
	assert.Equal(t, "submit_bill", store.audits[1].Action)
	assert.Equal(t, "approve_bill", store.audits[2].Action)
	assert.Equal(t, "issue_bill", store.audits[3].Action)
	assert.JSONEq(t, `{"status":"submitted"}`, store.audits[2].Before)
	assert.JSONEq(t, `{"status":"approved"}`, store.audits[2].After)
}

func TestIllegalTransitions(t *testing.T) {
	type step func(ctx context.Context, svc *Service, id int64) error
	submit := func(ctx context.Context, svc *Service, id int64) error { _, err := svc.Submit(ctx, id, 1); return err }
	approve := func(ctx context.Context, svc *Service, id int64) error { _, err := svc.Approve(ctx, id, 1); return err }
	issue := func(ctx context.Context, svc *Service, id int64) error { _, err := svc.Issue(ctx, id, 1); return err }
	void := func(ctx context.Context, svc *Service, id int64) error { _, err := svc.Void(ctx, id, 1); return err }

	advance := map[string][]step{
		StatusDraft:     nil,
		StatusSubmitted: {submit},
		StatusApproved:  {submit, approve},
		StatusIssued:    {submit, approve, issue},
		StatusVoid:      {void},
	}
	illegal := map[string][]struct {
		name string
		fn   step
	}{
		StatusDraft:     {{"approve", approve}, {"issue", issue}},
		StatusSubmitted: {{"submit", submit}, {"issue", issue}},
		StatusApproved:  {{"submit", submit}, {"approve", approve}},
		StatusIssued:    {{"submit", submit}, {"approve", approve}, {"issue", issue}, {"void", void}},
		StatusVoid:      {{"submit", submit}, {"approve", approve}, {"issue", issue}, {"void", void}},
	}

	for status, attempts := range illegal {
		for _, attempt := range attempts {
			t.Run(status+"_"+attempt.name, func(t *testing.T) {
				store, svc, bill := setupBill(t)
				ctx := context.Background()
				for _, step := range advance[status] {
					require.NoError(t, step(ctx, svc, bill.ID))
				}
				auditsBefore := len(store.audits)
				statusBefore := store.bills[bill.ID].Status

				err := attempt.fn(ctx, svc, bill.ID)
				require.ErrorIs(t, err, httpx.ErrStateConflict)
				assert.Equal(t, statusBefore, store.bills[bill.ID].Status)
				assert.Len(t, store.audits, auditsBefore)
			})
		}
	}
}

func TestVoidFromAnyNonTerminal(t *testing.T) {
	for _, status := range []string{StatusDraft, StatusSubmitted, StatusApproved} {
		t.Run(status, func(t *testing.T) {
			_, svc, bill := setupBill(t)
			ctx := context.Background()
			if status != StatusDraft {
				_, err := svc.Submit(ctx, bill.ID, 1)
				require.NoError(t, err)
			}
			if status == StatusApproved {
				_, err := svc.Approve(ctx, bill.ID, 1)
				require.NoError(t, err)
			}
			voided, err := svc.Void(ctx, bill.ID, 1)
			require.NoError(t, err)
			assert.Equal(t, StatusVoid, voided.Status)
		})
	}
}

func TestSnapshotFrozenOnce(t *testing.T) {
	store, svc, bill := setupBill(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, bill.ID, 1)
	require.NoError(t, err)
	approved, err := svc.Approve(ctx, bill.ID, 1)
	require.NoError(t, err)

	// Mutating lines after approval must not leak into the snapshot.
	store.lines[bill.ID][0].Amount = decimal.NewFromInt(9999)
	issued, err := svc.Issue(ctx, bill.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, approved.FrozenSnapshot, issued.FrozenSnapshot)
}

func TestTransitionOnMissingBill(t *testing.T) {
	svc := newTestService(newFakeStore(), nil)
	_, err := svc.Submit(context.Background(), 42, 1)
	require.ErrorIs(t, err, ErrBillNotFound)
}
