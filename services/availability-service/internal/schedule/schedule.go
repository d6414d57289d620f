package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Weekday is the schedule's day key, ordered Monday..Sunday. This differs from
// time.Weekday, which starts the week on Sunday.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func (d Weekday) String() string {
	if d < Monday || d > Sunday {
		return fmt.Sprintf("weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// DisplayName returns the capitalized English day name used in the public feed.
func (d Weekday) DisplayName() string {
	name := d.String()
	return strings.ToUpper(name[:1]) + name[1:]
}

// Weekdays returns all days in canonical iteration order.
func Weekdays() [7]Weekday {
	return [7]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}
}

func ParseWeekday(s string) (Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range weekdayNames {
		if name == s {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// WeekdayFromInt validates a stored weekday ordinal (0 = Monday).
func WeekdayFromInt(i int) (Weekday, error) {
	if i < int(Monday) || i > int(Sunday) {
		return 0, fmt.Errorf("weekday ordinal %d out of range", i)
	}
	return Weekday(i), nil
}

// FromTime converts a time.Weekday (Sunday-based) to a schedule Weekday.
func FromTime(wd time.Weekday) Weekday {
	if wd == time.Sunday {
		return Sunday
	}
	return Weekday(int(wd) - 1)
}

const minutesPerDay = 24 * 60

// TimeRange is a wall-clock range within one day, stored as minutes since
// local midnight. 09:00-17:00 is {540, 1020}.
type TimeRange struct {
	StartMinute int
	EndMinute   int
}

func (r TimeRange) Valid() bool {
	return r.StartMinute >= 0 && r.EndMinute <= minutesPerDay && r.StartMinute < r.EndMinute
}

func (r TimeRange) String() string {
	return FormatClock(r.StartMinute) + "-" + FormatClock(r.EndMinute)
}

// ParseClock parses a 24h "HH:MM" wall-clock value into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NormalizeRanges sorts ranges, merges overlapping or touching ones and drops
// invalid entries. The weekly template invariant (non-overlapping ordered
// ranges per day) holds on anything this returns.
func NormalizeRanges(ranges []TimeRange) []TimeRange {
	cleaned := make([]TimeRange, 0, len(ranges))
	for _, r := range ranges {
		if r.Valid() {
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	sort.Slice(cleaned, func(i, j int) bool { return cleaned[i].StartMinute < cleaned[j].StartMinute })

	merged := cleaned[:1]
	for _, cur := range cleaned[1:] {
		last := &merged[len(merged)-1]
		if cur.StartMinute <= last.EndMinute {
			if cur.EndMinute > last.EndMinute {
				last.EndMinute = cur.EndMinute
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// DayAvailability is one weekday's template entry. When Available is false the
// ranges are ignored.
type DayAvailability struct {
	Available bool
	Ranges    []TimeRange
}

// Weekly maps each weekday to its availability template. A missing key is
// treated as unavailable.
type Weekly map[Weekday]DayAvailability

// Default returns the template new owners start with: Monday-Friday
// 09:00-17:00, weekend off.
func Default() Weekly {
	w := Weekly{}
	for _, d := range Weekdays() {
		if d == Saturday || d == Sunday {
			w[d] = DayAvailability{Available: false}
			continue
		}
		w[d] = DayAvailability{
			Available: true,
			Ranges:    []TimeRange{{StartMinute: 540, EndMinute: 1020}},
		}
	}
	return w
}

// Normalize returns a copy with every day's ranges normalized. Days marked
// available with no valid ranges become unavailable.
func (w Weekly) Normalize() Weekly {
	out := Weekly{}
	for _, d := range Weekdays() {
		day := w[d]
		if !day.Available {
			out[d] = DayAvailability{Available: false}
			continue
		}
		ranges := NormalizeRanges(day.Ranges)
		if len(ranges) == 0 {
			out[d] = DayAvailability{Available: false}
			continue
		}
		out[d] = DayAvailability{Available: true, Ranges: ranges}
	}
	return out
}

func (w Weekly) Validate() error {
	for d, day := range w {
		if d < Monday || d > Sunday {
			return fmt.Errorf("invalid weekday key %d", int(d))
		}
		if !day.Available {
			continue
		}
		for _, r := range day.Ranges {
			if !r.Valid() {
				return fmt.Errorf("%s: invalid time range %s", d, r)
			}
		}
	}
	return nil
}

const (
	MinLookAheadDays     = 1
	MaxLookAheadDays     = 30
	DefaultLookAheadDays = 7
)

// DisplayOptions control how the public feed is rendered.
type DisplayOptions struct {
	ShowExactHours  bool
	LookAheadDays   int
	ShowBusyReasons bool
}

func DefaultDisplayOptions() DisplayOptions {
	return DisplayOptions{
		ShowExactHours:  true,
		LookAheadDays:   DefaultLookAheadDays,
		ShowBusyReasons: false,
	}
}

func (o DisplayOptions) Validate() error {
	if o.LookAheadDays < MinLookAheadDays || o.LookAheadDays > MaxLookAheadDays {
		return fmt.Errorf("lookAheadDays must be between %d and %d", MinLookAheadDays, MaxLookAheadDays)
	}
	return nil
}

var ErrUnknownTimezone = errors.New("unknown timezone")

// LoadLocation resolves an IANA zone name, defaulting empty input to UTC.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTimezone, name)
	}
	return loc, nil
}
