// Package holiday holds the rules for holiday requests: working-day counting,
// overlap detection, request validation, status transitions and the
// visibility rules applied when requests are listed. Everything here is pure;
// callers supply the current date, settings and the owner's existing requests.
package holiday

import (
	"github.com/noah-isme/holiday-tracker-api/pkg/calendar"
	appErrors "github.com/noah-isme/holiday-tracker-api/pkg/errors"
)

// Range is an inclusive span of calendar dates.
type Range struct {
	Start calendar.Date
	End   calendar.Date
}

// NewRange returns the range [start, end], failing when start is after end.
func NewRange(start, end calendar.Date) (Range, error) {
	if start.After(end) {
		return Range{}, appErrors.ErrInvalidRange
	}
	return Range{Start: start, End: end}, nil
}

// Days returns the number of calendar days in the range.
func (r Range) Days() int {
	return r.Start.DaysUntil(r.End) + 1
}

// Contains reports whether d falls inside the range.
func (r Range) Contains(d calendar.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Overlaps reports whether the two inclusive ranges share at least one day.
func (r Range) Overlaps(other Range) bool {
	return !r.Start.After(other.End) && !other.Start.After(r.End)
}

// WorkingDays counts the days in [start, end] that are not Saturday or Sunday.
func WorkingDays(start, end calendar.Date) (int, error) {
	rng, err := NewRange(start, end)
	if err != nil {
		return 0, err
	}
	return rng.WorkingDays(), nil
}

// WorkingDays counts the non-weekend days in the range.
func (r Range) WorkingDays() int {
	days := r.Days()
	weeks := days / 7
	count := weeks * 5
	cursor := r.Start.AddDays(weeks * 7)
	for i := 0; i < days%7; i++ {
		if !cursor.IsWeekend() {
			count++
		}
		cursor = cursor.AddDays(1)
	}
	return count
}
