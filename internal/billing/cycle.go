package billing

import "time"

// ComputeBillingCycle returns the end-inclusive billing cycle containing
// target for a lease that started on leaseStart. The cycle is anchored on the
// lease's start day-of-month: each month's candidate start is that day clamped
// to the month's length, clamped independently per month so a lease anchored
// on the 31st starts on Feb 28 in February and back on the 31st in March.
func ComputeBillingCycle(leaseStart, target time.Time) (time.Time, time.Time) {
	anchor := leaseStart.Day()
	target = time.Date(target.Year(), target.Month(), target.Day(), 0, 0, 0, 0, time.UTC)

	candidate := anchoredDay(target.Year(), target.Month(), anchor)
	var cycleStart time.Time
	if !target.Before(candidate) {
		cycleStart = candidate
	} else {
		prev := target.AddDate(0, 0, -target.Day()) // last day of previous month
		cycleStart = anchoredDay(prev.Year(), prev.Month(), anchor)
	}

	next := cycleStart.AddDate(0, 0, daysInMonth(cycleStart.Year(), cycleStart.Month())-cycleStart.Day()+1)
	cycleEnd := anchoredDay(next.Year(), next.Month(), anchor).AddDate(0, 0, -1)
	return cycleStart, cycleEnd
}

// anchoredDay returns the anchor day in the given month, clamped to the
// month's length.
func anchoredDay(year int, month time.Month, anchor int) time.Time {
	day := anchor
	if max := daysInMonth(year, month); day > max {
		day = max
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
