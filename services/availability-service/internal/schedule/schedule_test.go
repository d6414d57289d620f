package schedule

import (
	"testing"
	"time"
)

func TestWeekdayOrder(t *testing.T) {
	days := Weekdays()
	if days[0] != Monday || days[6] != Sunday {
		t.Fatalf("canonical order must run Monday..Sunday, got %v", days)
	}
}

func TestFromTime(t *testing.T) {
	cases := map[time.Weekday]Weekday{
		time.Monday:    Monday,
		time.Wednesday: Wednesday,
		time.Saturday:  Saturday,
		time.Sunday:    Sunday,
	}
	for in, want := range cases {
		if got := FromTime(in); got != want {
			t.Fatalf("FromTime(%v): expected %v, got %v", in, want, got)
		}
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"09:00", 540, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{" 14:30 ", 870, false},
		{"9am", 0, true},
		{"25:00", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseClock(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseClock(%q): expected %d, got %d", tc.in, tc.want, got)
		}
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(540); got != "09:00" {
		t.Fatalf("expected 09:00, got %s", got)
	}
	if got := FormatClock(1020); got != "17:00" {
		t.Fatalf("expected 17:00, got %s", got)
	}
}

func TestNormalizeRangesMergesAndSorts(t *testing.T) {
	in := []TimeRange{
		{StartMinute: 840, EndMinute: 1020},
		{StartMinute: 540, EndMinute: 660},
		{StartMinute: 600, EndMinute: 720},
		{StartMinute: 300, EndMinute: 200}, // invalid, dropped
	}
	got := NormalizeRanges(in)
	want := []TimeRange{{StartMinute: 540, EndMinute: 720}, {StartMinute: 840, EndMinute: 1020}}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestWeeklyNormalizeDowngradesEmptyDays(t *testing.T) {
	w := Weekly{
		Monday: {Available: true, Ranges: []TimeRange{{StartMinute: 700, EndMinute: 600}}},
	}
	norm := w.Normalize()
	if norm[Monday].Available {
		t.Fatal("day with no valid ranges must become unavailable")
	}
	if norm[Sunday].Available {
		t.Fatal("missing days must resolve to unavailable")
	}
}

func TestDefaultWeekly(t *testing.T) {
	w := Default()
	for _, d := range []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday} {
		day := w[d]
		if !day.Available || len(day.Ranges) != 1 {
			t.Fatalf("%s: expected one working range, got %+v", d, day)
		}
		if day.Ranges[0] != (TimeRange{StartMinute: 540, EndMinute: 1020}) {
			t.Fatalf("%s: expected 09:00-17:00, got %v", d, day.Ranges[0])
		}
	}
	if w[Saturday].Available || w[Sunday].Available {
		t.Fatal("weekend must default to unavailable")
	}
}

func TestDisplayOptionsValidate(t *testing.T) {
	opts := DefaultDisplayOptions()
	if err := opts.Validate(); err != nil {
		t.Fatalf("default options must validate: %v", err)
	}
	opts.LookAheadDays = 0
	if err := opts.Validate(); err == nil {
		t.Fatal("expected error for lookAheadDays below minimum")
	}
	opts.LookAheadDays = 31
	if err := opts.Validate(); err == nil {
		t.Fatal("expected error for lookAheadDays above maximum")
	}
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}
	if loc.String() != "America/New_York" {
		t.Fatalf("unexpected location %s", loc)
	}
	if loc, err := LoadLocation(""); err != nil || loc != time.UTC {
		t.Fatalf("empty zone must default to UTC, got %v/%v", loc, err)
	}
	if _, err := LoadLocation("Mars/Olympus"); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}
