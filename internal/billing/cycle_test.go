package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestComputeBillingCycle(t *testing.T) {
	cases := []struct {
		name       string
		leaseStart time.Time
		target     time.Time
		wantStart  time.Time
		wantEnd    time.Time
	}{
		{
			name:       "target after anchor in same month",
			leaseStart: d(2026, time.February, 15),
			target:     d(2026, time.February, 20),
			wantStart:  d(2026, time.February, 15),
			wantEnd:    d(2026, time.March, 14),
		},
		{
			name:       "target on anchor day",
			leaseStart: d(2026, time.February, 15),
			target:     d(2026, time.March, 15),
			wantStart:  d(2026, time.March, 15),
			wantEnd:    d(2026, time.April, 14),
		},
		{
			name:       "target before anchor falls into previous cycle",
			leaseStart: d(2026, time.February, 15),
			target:     d(2026, time.March, 10),
			wantStart:  d(2026, time.February, 15),
			wantEnd:    d(2026, time.March, 14),
		},
		{
			name:       "anchor 31 clamps to february",
			leaseStart: d(2026, time.January, 31),
			target:     d(2026, time.February, 10),
			wantStart:  d(2026, time.January, 31),
			wantEnd:    d(2026, time.February, 27),
		},
		{
			name:       "clamped cycle still ends before next anchor",
			leaseStart: d(2026, time.January, 31),
			target:     d(2026, time.February, 28),
			wantStart:  d(2026, time.February, 28),
			wantEnd:    d(2026, time.March, 30),
		},
		{
			name:       "clamp releases in longer month",
			leaseStart: d(2026, time.January, 31),
			target:     d(2026, time.March, 31),
			wantStart:  d(2026, time.March, 31),
			wantEnd:    d(2026, time.April, 29),
		},
		{
			name:       "leap february",
			leaseStart: d(2028, time.January, 30),
			target:     d(2028, time.February, 10),
			wantStart:  d(2028, time.January, 30),
			wantEnd:    d(2028, time.February, 28),
		},
		{
			name:       "year boundary",
			leaseStart: d(2025, time.June, 20),
			target:     d(2026, time.January, 5),
			wantStart:  d(2025, time.December, 20),
			wantEnd:    d(2026, time.January, 19),
		},
		{
			name:       "anchor day one",
			leaseStart: d(2026, time.March, 1),
			target:     d(2026, time.March, 31),
			wantStart:  d(2026, time.March, 1),
			wantEnd:    d(2026, time.March, 31),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end := ComputeBillingCycle(tc.leaseStart, tc.target)
			assert.Equal(t, tc.wantStart, start)
			assert.Equal(t, tc.wantEnd, end)
		})
	}
}

// Every target date must land inside the cycle computed for it, and cycles
// must tile the calendar without gaps or overlaps.
func TestComputeBillingCycleCoversTarget(t *testing.T) {
	anchors := []time.Time{
		d(2025, time.January, 1),
		d(2025, time.January, 15),
		d(2025, time.January, 28),
		d(2025, time.January, 29),
		d(2025, time.January, 30),
		d(2025, time.January, 31),
	}
	for _, leaseStart := range anchors {
		target := leaseStart
		for i := 0; i < 730; i++ {
			start, end := ComputeBillingCycle(leaseStart, target)
			if target.Before(start) || target.After(end) {
				t.Fatalf("target %s outside cycle [%s, %s] for lease start %s",
					target.Format("2006-01-02"), start.Format("2006-01-02"),
					end.Format("2006-01-02"), leaseStart.Format("2006-01-02"))
			}
			nextStart, _ := ComputeBillingCycle(leaseStart, end.AddDate(0, 0, 1))
			if !nextStart.Equal(end.AddDate(0, 0, 1)) {
				t.Fatalf("cycle after [%s, %s] does not start the next day (got %s)",
					start.Format("2006-01-02"), end.Format("2006-01-02"),
					nextStart.Format("2006-01-02"))
			}
			target = target.AddDate(0, 0, 1)
		}
	}
}
