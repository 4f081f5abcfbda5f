package templates

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrium-pm/atrium/internal/billing"
	"github.com/atrium-pm/atrium/internal/leases"
	"github.com/atrium-pm/atrium/internal/property"
	"github.com/atrium-pm/atrium/internal/shared"
)

type fakeTemplateRepo struct {
	templates map[int64]BillTemplate
	items     map[int64]ChargeItem
	nextID    int64
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{templates: make(map[int64]BillTemplate), items: make(map[int64]ChargeItem), nextID: 1}
}

func (f *fakeTemplateRepo) addItem(code, name string) ChargeItem {
	item := ChargeItem{ID: f.nextID, Code: code, Name: name}
	f.nextID++
	f.items[item.ID] = item
	return item
}

func (f *fakeTemplateRepo) ListTemplates(_ context.Context, activeOnly bool) ([]BillTemplate, error) {
	var out []BillTemplate
	for _, t := range f.templates {
		if activeOnly && !t.Active {
			continue
		}
		t.Lines = nil
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTemplateRepo) GetTemplate(_ context.Context, id int64) (BillTemplate, error) {
	t, ok := f.templates[id]
	if !ok {
		return BillTemplate{}, ErrTemplateNotFound
	}
	return t, nil
}

func (f *fakeTemplateRepo) CreateTemplate(_ context.Context, in TemplateInput) (BillTemplate, error) {
	t := BillTemplate{ID: f.nextID, Name: in.Name, Description: in.Description, Active: in.Active}
	f.nextID++
	for _, line := range in.Lines {
		item := f.items[line.ChargeItemID]
		t.Lines = append(t.Lines, TemplateLine{
			ID:             f.nextID,
			TemplateID:     t.ID,
			ChargeItemID:   line.ChargeItemID,
			ChargeItemCode: item.Code,
			Required:       line.Required,
			SortOrder:      line.SortOrder,
			Note:           line.Note,
		})
		f.nextID++
	}
	f.templates[t.ID] = t
	return t, nil
}

func (f *fakeTemplateRepo) UpdateTemplate(ctx context.Context, id int64, in TemplateInput) (BillTemplate, error) {
	if _, ok := f.templates[id]; !ok {
		return BillTemplate{}, ErrTemplateNotFound
	}
	t, err := f.CreateTemplate(ctx, in)
	if err != nil {
		return BillTemplate{}, err
	}
	delete(f.templates, t.ID)
	t.ID = id
	f.templates[id] = t
	return t, nil
}

func (f *fakeTemplateRepo) DeleteTemplate(_ context.Context, id int64) error {
	if _, ok := f.templates[id]; !ok {
		return ErrTemplateNotFound
	}
	delete(f.templates, id)
	return nil
}

func (f *fakeTemplateRepo) ListChargeItems(_ context.Context) ([]ChargeItem, error) {
	var out []ChargeItem
	for _, item := range f.items {
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeTemplateRepo) CreateChargeItem(_ context.Context, code, name string) (ChargeItem, error) {
	for _, item := range f.items {
		if item.Code == code {
			return ChargeItem{}, ErrChargeItemExists
		}
	}
	return f.addItem(code, name), nil
}

type fakeBillStore struct {
	bills  []billing.Bill
	lines  map[int64][]billing.BillLine
	nextID int64
}

func newFakeBillStore() *fakeBillStore {
	return &fakeBillStore{lines: make(map[int64][]billing.BillLine), nextID: 1}
}

func (f *fakeBillStore) FindBillByCycle(_ context.Context, unitID int64, cycleStart time.Time) (billing.Bill, error) {
	for _, b := range f.bills {
		if b.UnitID == unitID && b.CycleStart.Equal(cycleStart) {
			return b, nil
		}
	}
	return billing.Bill{}, billing.ErrBillNotFound
}

func (f *fakeBillStore) CreateDraftBill(_ context.Context, bill billing.Bill, lines []billing.BillLine, _ shared.AuditLog) (billing.Bill, error) {
	bill.ID = f.nextID
	f.nextID++
	f.bills = append(f.bills, bill)
	f.lines[bill.ID] = lines
	return bill, nil
}

type fakeLeaseSource struct {
	lease *leases.Lease
}

func (f *fakeLeaseSource) LatestForUnit(_ context.Context, _ int64) (leases.Lease, error) {
	if f.lease == nil {
		return leases.Lease{}, leases.ErrLeaseNotFound
	}
	return *f.lease, nil
}

type fakeHierarchy struct{}

func (fakeHierarchy) Hierarchy(_ context.Context, unitID int64) (property.UnitHierarchy, error) {
	return property.UnitHierarchy{
		Unit:      property.Unit{ID: unitID},
		Community: property.Community{ID: 20, CompanyID: 10},
		Company:   property.Company{ID: 10},
	}, nil
}

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func setup(t *testing.T) (*fakeTemplateRepo, *fakeBillStore, *Service, BillTemplate) {
	t.Helper()
	repo := newFakeTemplateRepo()
	water := repo.addItem("water", "Water")
	cleaning := repo.addItem("cleaning", "Cleaning")

	tpl, err := repo.CreateTemplate(context.Background(), TemplateInput{
		Name:   "utilities",
		Active: true,
		Lines: []TemplateLineInput{
			{ChargeItemID: cleaning.ID, SortOrder: 2},
			{ChargeItemID: water.ID, SortOrder: 1, Required: true},
		},
	})
	require.NoError(t, err)

	store := newFakeBillStore()
	lease := &leases.Lease{ID: 100, UnitID: 7, StartDate: d(2026, time.February, 15), RentAmount: decimal.NewFromInt(1000)}
	svc := NewService(repo, store, &fakeLeaseSource{lease: lease}, fakeHierarchy{})
	return repo, store, svc, tpl
}

func TestInstantiate(t *testing.T) {
	_, store, svc, tpl := setup(t)

	bill, err := svc.Instantiate(context.Background(), tpl.ID, 7, d(2026, time.February, 20), 1)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusDraft, bill.Status)
	assert.True(t, bill.TotalAmount.IsZero())
	require.NotNil(t, bill.TemplateID)
	assert.Equal(t, tpl.ID, *bill.TemplateID)
	assert.Equal(t, d(2026, time.February, 15), bill.CycleStart)
	assert.Equal(t, d(2026, time.March, 14), bill.CycleEnd)

	lines := store.lines[bill.ID]
	require.Len(t, lines, 2)
	// Lines come out in sort order, not insertion order.
	assert.Equal(t, "water", lines[0].ChargeCode)
	assert.Equal(t, "cleaning", lines[1].ChargeCode)
	for _, line := range lines {
		assert.Equal(t, "1", line.Qty.String())
		assert.True(t, line.UnitPrice.IsZero())
		assert.True(t, line.Amount.IsZero())
	}
}

func TestInstantiateConflictsOnExistingBill(t *testing.T) {
	_, _, svc, tpl := setup(t)
	ctx := context.Background()

	_, err := svc.Instantiate(ctx, tpl.ID, 7, d(2026, time.February, 20), 1)
	require.NoError(t, err)

	_, err = svc.Instantiate(ctx, tpl.ID, 7, d(2026, time.March, 10), 1)
	require.ErrorIs(t, err, billing.ErrBillExists)
}

func TestInstantiateMissingTemplate(t *testing.T) {
	_, _, svc, _ := setup(t)
	_, err := svc.Instantiate(context.Background(), 999, 7, d(2026, time.February, 20), 1)
	require.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestInstantiateNoLease(t *testing.T) {
	repo, store, _, tpl := setup(t)
	svc := NewService(repo, store, &fakeLeaseSource{}, fakeHierarchy{})
	_, err := svc.Instantiate(context.Background(), tpl.ID, 7, d(2026, time.February, 20), 1)
	require.ErrorIs(t, err, billing.ErrNoLease)
}

func TestInstantiateDeletedChargeItemFallback(t *testing.T) {
	repo := newFakeTemplateRepo()
	tpl := BillTemplate{ID: 50, Name: "legacy", Active: true, Lines: []TemplateLine{
		{ID: 51, TemplateID: 50, ChargeItemID: 77, SortOrder: 1},
	}}
	repo.templates[tpl.ID] = tpl

	store := newFakeBillStore()
	lease := &leases.Lease{ID: 100, UnitID: 7, StartDate: d(2026, time.February, 15)}
	svc := NewService(repo, store, &fakeLeaseSource{lease: lease}, fakeHierarchy{})

	bill, err := svc.Instantiate(context.Background(), tpl.ID, 7, d(2026, time.February, 20), 1)
	require.NoError(t, err)
	require.Len(t, store.lines[bill.ID], 1)
	assert.Equal(t, "item-77", store.lines[bill.ID][0].ChargeCode)
}

func TestCreateTemplateValidation(t *testing.T) {
	repo := newFakeTemplateRepo()
	svc := NewService(repo, newFakeBillStore(), &fakeLeaseSource{}, fakeHierarchy{})

	_, err := svc.CreateTemplate(context.Background(), TemplateInput{Name: "  "})
	assert.Error(t, err)

	_, err = svc.CreateTemplate(context.Background(), TemplateInput{
		Name:  "broken",
		Lines: []TemplateLineInput{{ChargeItemID: 0}},
	})
	assert.Error(t, err)
}
