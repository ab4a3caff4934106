package normalize

import (
	"time"

	"github.com/fintalk/queryc/internal/spec"
)

// ResolvePeriod turns a named relative period into an absolute calendar
// interval. Resolution is pure: the same (period, asOf, loc) always yields
// the same range.
//
// The as-of instant is interpreted in the tenant's timezone to find "today";
// the resulting range is expressed as calendar dates (midnight UTC marks),
// matching how the ledger stores occurrence dates.
//
// Week convention: weeks start on Monday. "week" is the calendar week
// containing the as-of day, so any as-of inside the same Monday-Sunday
// window resolves to the identical seven-day range.
func ResolvePeriod(p spec.Period, asOf time.Time, loc *time.Location) DateRange {
	if loc == nil {
		loc = time.UTC
	}
	local := asOf.In(loc)
	day := date(local.Year(), local.Month(), local.Day())

	switch p {
	case spec.PeriodToday:
		return DateRange{From: day, To: day}
	case spec.PeriodYesterday:
		y := day.AddDate(0, 0, -1)
		return DateRange{From: y, To: y}
	case spec.PeriodWeek:
		// Monday = 0 .. Sunday = 6.
		offset := (int(day.Weekday()) + 6) % 7
		monday := day.AddDate(0, 0, -offset)
		return DateRange{From: monday, To: monday.AddDate(0, 0, 6)}
	case spec.PeriodMonth:
		first := date(day.Year(), day.Month(), 1)
		return DateRange{From: first, To: first.AddDate(0, 1, -1)}
	case spec.PeriodYear:
		return DateRange{
			From: date(day.Year(), time.January, 1),
			To:   date(day.Year(), time.December, 31),
		}
	default:
		// Unreachable for validated specs; resolve to the as-of day rather
		// than panic so a programming error stays answerable.
		return DateRange{From: day, To: day}
	}
}

// date builds a calendar-day mark: midnight UTC of the given day.
func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
