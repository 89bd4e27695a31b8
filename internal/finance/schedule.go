package finance

import (
	"fmt"
	"time"

	"contaae/internal/core"
)

// DueDate returns the n-th due date (n = 0 is anchor) of a schedule repeating
// every period. Monthly and yearly steps keep the anchor's day of month and
// clamp it to the last day of shorter months (Jan 31 -> Feb 28 -> Mar 31).
func DueDate(anchor core.Date, every core.RepetitionTypes, n int) (core.Date, error) {
	switch every {
	case core.Daily:
		return anchor.AddDays(n), nil
	case core.Weekly:
		return anchor.AddDays(7 * n), nil
	case core.Monthly:
		return addMonthsClamped(anchor, n), nil
	case core.Yearly:
		return addMonthsClamped(anchor, 12*n), nil
	default:
		return core.Date{}, fmt.Errorf("unknown repetition type: %s", every)
	}
}

func addMonthsClamped(anchor core.Date, months int) core.Date {
	first := time.Date(anchor.Year(), time.Month(anchor.Month())+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	day := anchor.Day()
	if day > last {
		day = last
	}
	return core.NewDate(first.Year(), int(first.Month()), day)
}
