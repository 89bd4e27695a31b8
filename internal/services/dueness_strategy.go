package services

import (
	"fmt"

	"contaae/internal/core"
	"contaae/internal/finance"
)

// DuenessChecker finds the most recent scheduled occurrence of a recurring
// charge. One implementation exists per repetition type.
type DuenessChecker interface {
	// LatestOccurrence returns the last scheduled date on or before today,
	// or false when the schedule has not started yet.
	LatestOccurrence(anchor, today core.Date) (core.Date, bool)
}

type DailyChecker struct{}

func (DailyChecker) LatestOccurrence(anchor, today core.Date) (core.Date, bool) {
	if today.Before(anchor) {
		return core.Date{}, false
	}
	return today, true
}

// WeeklyChecker repeats on the anchor's weekday.
type WeeklyChecker struct{}

func (WeeklyChecker) LatestOccurrence(anchor, today core.Date) (core.Date, bool) {
	if today.Before(anchor) {
		return core.Date{}, false
	}
	weeks := anchor.DaysUntil(today) / 7
	return anchor.AddDays(7 * weeks), true
}

// MonthlyChecker repeats on the anchor's day of month, clamped to the last
// day of shorter months.
type MonthlyChecker struct{}

func (MonthlyChecker) LatestOccurrence(anchor, today core.Date) (core.Date, bool) {
	months := (today.Year()-anchor.Year())*12 + today.Month() - anchor.Month()
	return latestByStep(anchor, today, core.Monthly, months)
}

// YearlyChecker repeats on the anchor's month and day.
type YearlyChecker struct{}

func (YearlyChecker) LatestOccurrence(anchor, today core.Date) (core.Date, bool) {
	return latestByStep(anchor, today, core.Yearly, today.Year()-anchor.Year())
}

// latestByStep walks back from the n-th occurrence until it is not after today.
func latestByStep(anchor, today core.Date, every core.RepetitionTypes, n int) (core.Date, bool) {
	for ; n >= 0; n-- {
		d, err := finance.DueDate(anchor, every, n)
		if err != nil {
			return core.Date{}, false
		}
		if !d.After(today) {
			return d, true
		}
	}
	return core.Date{}, false
}

var duenessStrategies = map[core.RepetitionTypes]DuenessChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the checker registered for frequency.
func GetDuenessChecker(frequency core.RepetitionTypes) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown repetition type: %s", frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker adds or replaces the checker for a frequency.
func RegisterDuenessChecker(frequency core.RepetitionTypes, checker DuenessChecker) {
	duenessStrategies[frequency] = checker
}

// IsDue reports whether the charge has an occurrence on or before today that
// has not been executed yet. It returns the occurrence date to book.
func IsDue(rc core.RecurringCharge, today core.Date) (core.Date, bool, error) {
	if !rc.Active(today) {
		return core.Date{}, false, nil
	}
	checker, err := GetDuenessChecker(rc.Every)
	if err != nil {
		return core.Date{}, false, err
	}
	occurrence, ok := checker.LatestOccurrence(rc.StartDate, today)
	if !ok {
		return core.Date{}, false, nil
	}
	if rc.LastExecution.IsZero() {
		return occurrence, true, nil
	}
	return occurrence, core.DateOf(rc.LastExecution).Before(occurrence), nil
}
