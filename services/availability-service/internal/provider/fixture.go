package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/availo-hq/availo/services/availability-service/internal/interval"
	"github.com/availo-hq/availo/services/availability-service/internal/schedule"
)

// Fixture serves busy intervals from the connection's metadata instead of a
// provider API. The "busyBlocks" key holds a JSON array of weekly wall-clock
// blocks, e.g. [{"day":"monday","start":"10:00","end":"15:00"}], interpreted
// in the zone named by "busyTimezone" (UTC when absent). A connection without
// fixture data reports an empty busy set.
type Fixture struct{}

func NewFixture() *Fixture {
	return &Fixture{}
}

type fixtureBlock struct {
	Day   string `json:"day"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func (f *Fixture) FetchBusy(ctx context.Context, conn Connection, from, to time.Time) ([]interval.Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw := conn.Metadata["busyBlocks"]
	if raw == "" {
		return nil, nil
	}

	var blocks []fixtureBlock
	if err := json.Unmarshal([]byte(raw), &blocks); err != nil {
		return nil, fmt.Errorf("connection %s: invalid busyBlocks fixture: %w", conn.ID, err)
	}

	loc := time.UTC
	if tz := conn.Metadata["busyTimezone"]; tz != "" {
		var err error
		loc, err = schedule.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("connection %s: %w", conn.ID, err)
		}
	}

	var spans []interval.Span
	year, month, dom := from.In(loc).Date()
	for i := 0; ; i++ {
		date := time.Date(year, month, dom+i, 0, 0, 0, 0, loc)
		if !date.Before(to) {
			break
		}
		wd := schedule.FromTime(date.Weekday())
		for _, b := range blocks {
			day, err := schedule.ParseWeekday(b.Day)
			if err != nil || day != wd {
				continue
			}
			startMin, err := schedule.ParseClock(b.Start)
			if err != nil {
				return nil, fmt.Errorf("connection %s: invalid busyBlocks fixture: %w", conn.ID, err)
			}
			endMin, err := schedule.ParseClock(b.End)
			if err != nil {
				return nil, fmt.Errorf("connection %s: invalid busyBlocks fixture: %w", conn.ID, err)
			}
			s := time.Date(year, month, dom+i, startMin/60, startMin%60, 0, 0, loc)
			e := time.Date(year, month, dom+i, endMin/60, endMin%60, 0, 0, loc)
			if e.After(s) {
				spans = append(spans, interval.Span{Start: s, End: e})
			}
		}
	}
	return interval.Clip(interval.Normalize(spans), from, to), nil
}
