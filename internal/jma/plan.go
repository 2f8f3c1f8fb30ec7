package jma

import (
	"time"

	"github.com/lox/jmaetrn/internal/models"
)

// Trailing padding added to the requested end before enumerating pages, so
// the last requested month or day is never lost at a boundary.
const (
	dailyPadding  = 31 * 24 * time.Hour
	hourlyPadding = 24 * time.Hour
)

// DateOnly drops the clock and location, keeping the calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ValidateRange checks granularity and date order without fetching anything.
func ValidateRange(from, to time.Time, g models.Granularity) error {
	if !g.Valid() {
		return ErrInvalidGranularity
	}
	if DateOnly(from).After(DateOnly(to)) {
		return ErrInvalidDateRange
	}
	return nil
}

// PlanPages returns the page dates FetchSeries will request, in fetch order.
// Daily plans hold every calendar month-end in [from, to+31d]; hourly plans
// hold every day in [from, to+1d].
func PlanPages(from, to time.Time, g models.Granularity) ([]time.Time, error) {
	if err := ValidateRange(from, to, g); err != nil {
		return nil, err
	}
	from, to = DateOnly(from), DateOnly(to)

	var pages []time.Time
	switch g {
	case models.Daily:
		end := to.Add(dailyPadding)
		for d := monthEnd(from); !d.After(end); d = monthEnd(d.AddDate(0, 0, 1)) {
			pages = append(pages, d)
		}
	case models.Hourly:
		end := to.Add(hourlyPadding)
		for d := from; !d.After(end); d = d.AddDate(0, 0, 1) {
			pages = append(pages, d)
		}
	}
	return pages, nil
}

// PageCount is len(PlanPages(...)) without allocating the plan.
func PageCount(from, to time.Time, g models.Granularity) (int, error) {
	pages, err := PlanPages(from, to, g)
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

func monthEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

// windowEnd is the exclusive upper bound of the rows kept for [from, to].
// The final day is kept whole: hourly rows run through 23:00 on to, not
// only its 00:00 row.
func windowEnd(to time.Time) time.Time {
	return DateOnly(to).AddDate(0, 0, 1)
}
