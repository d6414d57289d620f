package model

import "testing"

func TestDefaultSettings(t *testing.T) {
	s := Default()
	if err := s.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if len(s.WeeklySchedule) != 7 {
		t.Fatalf("expected 7 weekdays, got %d", len(s.WeeklySchedule))
	}
	mon := s.WeeklySchedule["monday"]
	if !mon.Available || len(mon.TimeRanges) != 1 || mon.TimeRanges[0].Start != "09:00" {
		t.Fatalf("unexpected default Monday %+v", mon)
	}
	if s.WeeklySchedule["saturday"].Available {
		t.Fatal("weekend must default to unavailable")
	}
	if s.DisplayOptions.LookAheadDays != DefaultLookAheadDays {
		t.Fatalf("unexpected default look-ahead %d", s.DisplayOptions.LookAheadDays)
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
		{" 17:30 ", 1050, false},
		{"24:00", 0, true},
		{"9am", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tc.in, got, tc.want)
		}
		if FormatClock(got) != FormatClock(tc.want) {
			t.Errorf("FormatClock mismatch for %q", tc.in)
		}
	}
}

func TestValidateRejectsBadDocuments(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"unknown timezone", func(s *Settings) { s.Timezone = "Mars/Olympus" }},
		{"unknown weekday", func(s *Settings) { s.WeeklySchedule["funday"] = DaySchedule{Available: true} }},
		{"inverted range", func(s *Settings) {
			s.WeeklySchedule["monday"] = DaySchedule{Available: true, TimeRanges: []TimeRange{{Start: "17:00", End: "09:00"}}}
		}},
		{"zero-length range", func(s *Settings) {
			s.WeeklySchedule["monday"] = DaySchedule{Available: true, TimeRanges: []TimeRange{{Start: "09:00", End: "09:00"}}}
		}},
		{"look-ahead too large", func(s *Settings) { s.DisplayOptions.LookAheadDays = 31 }},
		{"look-ahead zero", func(s *Settings) { s.DisplayOptions.LookAheadDays = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Default()
			tc.mutate(&s)
			if err := s.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestNormalizeMergesAndDemotes(t *testing.T) {
	s := Default()
	s.WeeklySchedule["monday"] = DaySchedule{
		Available: true,
		TimeRanges: []TimeRange{
			{Start: "13:00", End: "15:00"},
			{Start: "09:00", End: "11:00"},
			{Start: "10:30", End: "12:00"},
		},
	}
	s.WeeklySchedule["tuesday"] = DaySchedule{Available: true}
	s.Timezone = ""

	n := s.Normalize()
	mon := n.WeeklySchedule["monday"]
	if len(mon.TimeRanges) != 2 {
		t.Fatalf("expected overlapping ranges merged to 2, got %v", mon.TimeRanges)
	}
	if mon.TimeRanges[0].Start != "09:00" || mon.TimeRanges[0].End != "12:00" {
		t.Fatalf("unexpected merged range %+v", mon.TimeRanges[0])
	}
	if n.WeeklySchedule["tuesday"].Available {
		t.Fatal("available day without ranges must demote to unavailable")
	}
	if n.Timezone != "UTC" {
		t.Fatalf("blank timezone must pin to UTC, got %q", n.Timezone)
	}
	if len(n.WeeklySchedule) != 7 {
		t.Fatalf("normalization must fill all weekdays, got %d", len(n.WeeklySchedule))
	}
}
