package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// WeekdayNames is the canonical key order for weekly schedules, Monday first.
var WeekdayNames = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

const (
	MinLookAheadDays     = 1
	MaxLookAheadDays     = 30
	DefaultLookAheadDays = 7

	minutesPerDay = 24 * 60
)

// TimeRange is one wall-clock range in "15:04" notation, end exclusive.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DaySchedule is one weekday's template entry.
type DaySchedule struct {
	Available  bool        `json:"available"`
	TimeRanges []TimeRange `json:"timeRanges,omitempty"`
}

type DisplayOptions struct {
	ShowExactHours  bool `json:"showExactHours"`
	LookAheadDays   int  `json:"lookAheadDays"`
	ShowBusyReasons bool `json:"showBusyReasons"`
}

// Settings is the wire shape of an owner's availability settings document.
type Settings struct {
	Timezone       string                 `json:"timezone"`
	WeeklySchedule map[string]DaySchedule `json:"weeklySchedule"`
	DisplayOptions DisplayOptions         `json:"displayOptions"`
}

// Default returns the settings new owners start with: Monday-Friday
// 09:00-17:00 in UTC, exact hours shown.
func Default() Settings {
	weekly := make(map[string]DaySchedule, len(WeekdayNames))
	for _, name := range WeekdayNames {
		if name == "saturday" || name == "sunday" {
			weekly[name] = DaySchedule{Available: false}
			continue
		}
		weekly[name] = DaySchedule{
			Available:  true,
			TimeRanges: []TimeRange{{Start: "09:00", End: "17:00"}},
		}
	}
	return Settings{
		Timezone:       "UTC",
		WeeklySchedule: weekly,
		DisplayOptions: DisplayOptions{
			ShowExactHours: true,
			LookAheadDays:  DefaultLookAheadDays,
		},
	}
}

// ParseClock converts "15:04" notation to minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock is the inverse of ParseClock.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// RangeMinutes validates one range and returns its minute bounds. A range
// ending at midnight is written "24:00" by some clients; reject it rather than
// guess, the UI never emits it.
func RangeMinutes(r TimeRange) (int, int, error) {
	start, err := ParseClock(r.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err := ParseClock(r.End)
	if err != nil {
		return 0, 0, err
	}
	if start >= end || end > minutesPerDay {
		return 0, 0, fmt.Errorf("range %s-%s: start must precede end", r.Start, r.End)
	}
	return start, end, nil
}

// Validate checks the whole document. It does not mutate; call Normalize to
// get the canonical form.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.Timezone) != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("unknown timezone %q", s.Timezone)
		}
	}
	for name, day := range s.WeeklySchedule {
		if !validWeekday(name) {
			return fmt.Errorf("unknown weekday %q", name)
		}
		if !day.Available {
			continue
		}
		for _, r := range day.TimeRanges {
			if _, _, err := RangeMinutes(r); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
		}
	}
	opts := s.DisplayOptions
	if opts.LookAheadDays < MinLookAheadDays || opts.LookAheadDays > MaxLookAheadDays {
		return fmt.Errorf("lookAheadDays must be between %d and %d", MinLookAheadDays, MaxLookAheadDays)
	}
	return nil
}

// Normalize returns the canonical form: every weekday present, ranges sorted
// with overlapping and touching ranges merged, available days with no usable
// range demoted to unavailable, blank timezone pinned to UTC.
func (s Settings) Normalize() Settings {
	out := s
	if strings.TrimSpace(out.Timezone) == "" {
		out.Timezone = "UTC"
	}
	weekly := make(map[string]DaySchedule, len(WeekdayNames))
	for _, name := range WeekdayNames {
		day := s.WeeklySchedule[name]
		if !day.Available {
			weekly[name] = DaySchedule{Available: false}
			continue
		}
		ranges := mergeRanges(day.TimeRanges)
		if len(ranges) == 0 {
			weekly[name] = DaySchedule{Available: false}
			continue
		}
		weekly[name] = DaySchedule{Available: true, TimeRanges: ranges}
	}
	out.WeeklySchedule = weekly
	return out
}

func validWeekday(name string) bool {
	for _, n := range WeekdayNames {
		if n == name {
			return true
		}
	}
	return false
}

type minuteRange struct {
	start, end int
}

func mergeRanges(ranges []TimeRange) []TimeRange {
	var mins []minuteRange
	for _, r := range ranges {
		start, end, err := RangeMinutes(r)
		if err != nil {
			continue
		}
		mins = append(mins, minuteRange{start, end})
	}
	if len(mins) == 0 {
		return nil
	}
	sort.Slice(mins, func(i, j int) bool { return mins[i].start < mins[j].start })

	merged := mins[:1]
	for _, cur := range mins[1:] {
		last := &merged[len(merged)-1]
		if cur.start <= last.end {
			if cur.end > last.end {
				last.end = cur.end
			}
			continue
		}
		merged = append(merged, cur)
	}

	out := make([]TimeRange, 0, len(merged))
	for _, m := range merged {
		out = append(out, TimeRange{Start: FormatClock(m.start), End: FormatClock(m.end)})
	}
	return out
}
