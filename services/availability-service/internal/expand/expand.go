package expand

import (
	"time"

	"github.com/availo-hq/availo/services/availability-service/internal/interval"
	"github.com/availo-hq/availo/services/availability-service/internal/schedule"
)

// Day is one local calendar date's expansion: the date (midnight in the
// owner's zone) and the normalized free spans derived from the template.
type Day struct {
	Date    time.Time
	Weekday schedule.Weekday
	Free    []interval.Span
}

// Window expands the weekly template across `days` local calendar dates
// starting at `start` (a date in the owner's zone). Wall-clock template times
// are resolved against each specific date, so the same 09:00-17:00 range maps
// to different UTC offsets on either side of a DST transition.
//
// DST rules: a wall-clock time inside a spring-forward gap resolves to the
// next valid instant (02:30 in a zone that skips 02:00-03:00 becomes 03:30);
// an ambiguous fall-back time resolves to its first occurrence.
func Window(weekly schedule.Weekly, loc *time.Location, start time.Time, days int) []Day {
	if loc == nil {
		loc = time.UTC
	}
	weekly = weekly.Normalize()

	out := make([]Day, 0, days)
	year, month, dom := start.In(loc).Date()
	for i := 0; i < days; i++ {
		date := time.Date(year, month, dom+i, 0, 0, 0, 0, loc)
		wd := schedule.FromTime(date.Weekday())

		day := Day{Date: date, Weekday: wd}
		tmpl := weekly[wd]
		if tmpl.Available {
			spans := make([]interval.Span, 0, len(tmpl.Ranges))
			for _, r := range tmpl.Ranges {
				s := instantAt(loc, date, r.StartMinute)
				e := instantAt(loc, date, r.EndMinute)
				if e.After(s) {
					spans = append(spans, interval.Span{Start: s, End: e})
				}
			}
			day.Free = interval.Normalize(spans)
		}
		out = append(out, day)
	}
	return out
}

// DateOf truncates an instant to its local calendar date in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	year, month, dom := t.In(loc).Date()
	return time.Date(year, month, dom, 0, 0, 0, 0, loc)
}

const minutesPerDay = 24 * 60

// instantAt resolves a wall-clock minute-of-day on a specific date.
// time.Date leaves the choice of offset unspecified for wall times hit by a
// DST transition, so both offsets bracketing the date are tried explicitly:
// a nonexistent gap time takes the pre-transition offset, which lands past
// the skipped interval (02:30 becomes 03:30 when 02:00-03:00 is skipped),
// and a repeated fall-back time takes the earlier of its two instants.
func instantAt(loc *time.Location, date time.Time, minutes int) time.Time {
	year, month, dom := date.Date()
	dom += minutes / minutesPerDay
	minutes %= minutesPerDay

	wall := time.Date(year, month, dom, minutes/60, minutes%60, 0, 0, time.UTC)
	_, offBefore := wall.AddDate(0, 0, -1).In(loc).Zone()
	_, offAfter := wall.AddDate(0, 0, 1).In(loc).Zone()

	early := wall.Add(-time.Duration(offBefore) * time.Second).In(loc)
	if offBefore == offAfter {
		return early
	}
	late := wall.Add(-time.Duration(offAfter) * time.Second).In(loc)

	earlyOK := sameWall(early, year, month, dom, minutes)
	lateOK := sameWall(late, year, month, dom, minutes)
	switch {
	case earlyOK && lateOK:
		// Repeated fall-back time: the first occurrence.
		if early.Before(late) {
			return early
		}
		return late
	case earlyOK:
		return early
	case lateOK:
		return late
	default:
		// Spring-forward gap: the pre-transition offset is the one that
		// lands past the skipped interval.
		return early
	}
}

func sameWall(t time.Time, year int, month time.Month, dom, minutes int) bool {
	y, m, d := t.Date()
	return y == year && m == month && d == dom && t.Hour()*60+t.Minute() == minutes
}
