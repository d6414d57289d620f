package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/availo-hq/availo/services/availability-service/internal/busy"
	"github.com/availo-hq/availo/services/availability-service/internal/expand"
	"github.com/availo-hq/availo/services/availability-service/internal/interval"
	"github.com/availo-hq/availo/services/availability-service/internal/provider"
	"github.com/availo-hq/availo/services/availability-service/internal/schedule"
)

// Standard-hours bounds for the coarse "Available All Day" classification.
// A single slot covering 09:30-16:30 local (or wider) counts as all day.
const (
	coreHoursStartMinute = 9*60 + 30
	coreHoursEndMinute   = 16*60 + 30
)

var (
	ErrInvalidWindow = errors.New("invalid resolution window")
	ErrInvalidOwner  = errors.New("owner id required")
)

// Settings is the read-only snapshot one resolution works from.
type Settings struct {
	OwnerID  string
	Timezone string
	Weekly   schedule.Weekly
	Options  schedule.DisplayOptions
}

// SettingsSource provides the owner's stored settings. The second return is
// false when the owner has nothing on record.
type SettingsSource interface {
	GetSettings(ctx context.Context, ownerID string) (Settings, bool, error)
}

// ConnectionSource lists the owner's active calendar connections.
type ConnectionSource interface {
	ListActive(ctx context.Context, ownerID string) ([]provider.Connection, error)
}

// Window is a half-open range of local calendar dates [From, To). Only the
// year/month/day of each bound is significant; they are interpreted in the
// owner's timezone.
type Window struct {
	From time.Time
	To   time.Time
}

type Status string

const (
	StatusAvailableAllDay    Status = "Available All Day"
	StatusPartiallyAvailable Status = "Partially Available"
	StatusUnavailable        Status = "Unavailable"
)

// DayResult is one resolved calendar day. Slots are absolute instants in the
// owner's timezone and are only populated when exact hours are shown.
type DayResult struct {
	Date      time.Time
	Weekday   schedule.Weekday
	Available bool
	Status    Status
	Slots     []interval.Span
}

// Feed is the complete result of one resolution call. It is a value: built
// once, never mutated afterward.
type Feed struct {
	OwnerID    string
	Timezone   string
	Location   *time.Location
	Options    schedule.DisplayOptions
	Days       []DayResult
	Degraded   []busy.Degradation
	ResolvedAt time.Time
}

// Resolver computes availability feeds. The clock is injected so default
// windows stay deterministic under test.
type Resolver struct {
	settings    SettingsSource
	connections ConnectionSource
	aggregator  *busy.Aggregator
	logger      *slog.Logger
	now         func() time.Time
}

func New(settings SettingsSource, connections ConnectionSource, aggregator *busy.Aggregator, logger *slog.Logger, now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		settings:    settings,
		connections: connections,
		aggregator:  aggregator,
		logger:      logger,
		now:         now,
	}
}

// Overrides carries per-request display tweaks. Nil fields leave the stored
// option in place.
type Overrides struct {
	LookAheadDays  *int
	ShowExactHours *bool
}

// Resolve computes the day-by-day availability feed for one owner.
//
// A nil window defaults to [today, today+lookAheadDays) in the owner's local
// calendar. An owner with no settings on record resolves as unavailable every
// day; that is not an error.
func (r *Resolver) Resolve(ctx context.Context, ownerID string, win *Window, ov *Overrides) (Feed, error) {
	if ownerID == "" {
		return Feed{}, ErrInvalidOwner
	}
	if win != nil && !win.To.After(win.From) {
		return Feed{}, fmt.Errorf("%w: start must precede end", ErrInvalidWindow)
	}

	settings, found, err := r.settings.GetSettings(ctx, ownerID)
	if err != nil {
		return Feed{}, fmt.Errorf("load settings: %w", err)
	}
	if !found {
		settings = Settings{
			OwnerID:  ownerID,
			Timezone: "UTC",
			Weekly:   schedule.Weekly{}, // every day unavailable
			Options:  schedule.DefaultDisplayOptions(),
		}
	}

	options := settings.Options
	if ov != nil {
		if ov.LookAheadDays != nil {
			options.LookAheadDays = *ov.LookAheadDays
		}
		if ov.ShowExactHours != nil {
			options.ShowExactHours = *ov.ShowExactHours
		}
	}
	if err := options.Validate(); err != nil {
		return Feed{}, fmt.Errorf("%w: %v", ErrInvalidWindow, err)
	}

	loc, err := schedule.LoadLocation(settings.Timezone)
	if err != nil {
		// A stored but unloadable zone should not take the public feed down.
		r.logger.Warn("falling back to UTC", "owner_id", ownerID, "timezone", settings.Timezone)
		loc = time.UTC
	}

	startDate, days, err := r.resolveWindow(win, options, loc)
	if err != nil {
		return Feed{}, err
	}

	expanded := expand.Window(settings.Weekly, loc, startDate, days)

	windowStart := expanded[0].Date
	windowEnd := nextDate(loc, expanded[len(expanded)-1].Date)

	conns, err := r.connections.ListActive(ctx, ownerID)
	if err != nil {
		return Feed{}, fmt.Errorf("list connections: %w", err)
	}
	collected := r.aggregator.Collect(ctx, conns, windowStart, windowEnd)

	feed := Feed{
		OwnerID:    ownerID,
		Timezone:   loc.String(),
		Location:   loc,
		Options:    options,
		Days:       make([]DayResult, 0, len(expanded)),
		Degraded:   collected.Degraded,
		ResolvedAt: r.now().UTC(),
	}

	for _, day := range expanded {
		dayEnd := nextDate(loc, day.Date)
		busyToday := interval.Clip(collected.Busy, day.Date, dayEnd)
		free := interval.Subtract(day.Free, busyToday)

		result := DayResult{
			Date:      day.Date,
			Weekday:   day.Weekday,
			Available: len(free) > 0,
			Status:    classify(free, loc),
		}
		if options.ShowExactHours {
			result.Slots = free
		}
		feed.Days = append(feed.Days, result)
	}
	return feed, nil
}

func (r *Resolver) resolveWindow(win *Window, options schedule.DisplayOptions, loc *time.Location) (time.Time, int, error) {
	if win == nil {
		return expand.DateOf(r.now(), loc), options.LookAheadDays, nil
	}

	from := expand.DateOf(dateIn(win.From, loc), loc)
	to := expand.DateOf(dateIn(win.To, loc), loc)
	days := 0
	for d := from; d.Before(to); d = nextDate(loc, d) {
		days++
		if days > schedule.MaxLookAheadDays {
			return time.Time{}, 0, fmt.Errorf("%w: spans more than %d days", ErrInvalidWindow, schedule.MaxLookAheadDays)
		}
	}
	if days == 0 {
		return time.Time{}, 0, fmt.Errorf("%w: start must precede end", ErrInvalidWindow)
	}
	return from, days, nil
}

// classify implements the coarse status the widget shows when exact hours are
// hidden.
func classify(free []interval.Span, loc *time.Location) Status {
	if len(free) == 0 {
		return StatusUnavailable
	}
	if len(free) == 1 {
		start := free[0].Start.In(loc)
		end := free[0].End.In(loc)
		startMin := start.Hour()*60 + start.Minute()
		endMin := end.Hour()*60 + end.Minute()
		if endMin == 0 && end.After(start) {
			// Slots are clipped per local date, so a 00:00 end is the
			// following midnight, not a zero-length morning.
			endMin = 24 * 60
		}
		if startMin <= coreHoursStartMinute && endMin >= coreHoursEndMinute {
			return StatusAvailableAllDay
		}
	}
	return StatusPartiallyAvailable
}

// dateIn re-reads a bound's calendar date in the owner's zone.
func dateIn(t time.Time, loc *time.Location) time.Time {
	year, month, dom := t.Date()
	return time.Date(year, month, dom, 0, 0, 0, 0, loc)
}

func nextDate(loc *time.Location, date time.Time) time.Time {
	year, month, dom := date.Date()
	return time.Date(year, month, dom+1, 0, 0, 0, 0, loc)
}
