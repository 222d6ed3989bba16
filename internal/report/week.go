// Package report turns raw CRM records into the weekly aggregates the
// workbook writers render: calendar math for report periods, label
// resolution for owners and pipeline stages, and the two report shapes
// (owner-by-stage amount sums and per-product deal rows).
package report

import (
	"fmt"
	"time"
)

// DateLayout formats the dates embedded in week labels and snapshot keys.
const DateLayout = "2006-01-02"

// Week identifies one reporting week.
type Week struct {
	// Label is the column header the stage workbook keys a snapshot by,
	// e.g. "2026-W33 (2026-08-10—2026-08-16)".
	Label  string
	Monday time.Time
	Sunday time.Time
}

// PreviousWeek returns the calendar week immediately before the one
// containing now, labelled by the ISO year and week of its Monday.
func PreviousWeek(now time.Time) Week {
	monday := startOfDay(mondayOf(now).AddDate(0, 0, -7))
	sunday := monday.AddDate(0, 0, 6)
	year, week := monday.ISOWeek()
	return Week{
		Label:  fmt.Sprintf("%d-W%02d (%s—%s)", year, week, monday.Format(DateLayout), sunday.Format(DateLayout)),
		Monday: monday,
		Sunday: sunday,
	}
}

// SnapshotWeek returns the Monday of the week containing now, as the date
// string product rows are keyed by.
func SnapshotWeek(now time.Time) string {
	return mondayOf(now).Format(DateLayout)
}

// Cutoff returns the stage report's close-date horizon: midnight starting
// the previous Sunday in now's location, advanced by horizonMonths.
func Cutoff(now time.Time, horizonMonths int) time.Time {
	sunday := startOfDay(mondayOf(now).AddDate(0, 0, -1))
	return addMonths(sunday, horizonMonths)
}

// mondayOf returns the Monday of the week containing t, preserving clock
// time and location.
func mondayOf(t time.Time) time.Time {
	return t.AddDate(0, 0, -((int(t.Weekday()) + 6) % 7))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// addMonths behaves like AddDate for months except that a day past the end
// of the target month clamps to its last day instead of spilling into the
// next month (Aug 31 plus one month is Sep 30, not Oct 1).
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := lastDayOfMonth(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
