package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/availo-hq/availo/services/availability-service/internal/interval"
)

const maxICSBodyBytes = 8 << 20

// ICS fetches a connection's ICS feed URL and turns its VEVENTs into busy
// spans, expanding RRULE recurrences inside the requested window. Events
// marked TRANSPARENT or CANCELLED do not block time.
type ICS struct {
	client *http.Client
}

func NewICS(timeout time.Duration) *ICS {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ICS{
		client: &http.Client{Timeout: timeout},
	}
}

func (p *ICS) FetchBusy(ctx context.Context, conn Connection, from, to time.Time) ([]interval.Span, error) {
	feedURL := strings.TrimSpace(conn.FeedURL)
	if feedURL == "" {
		return nil, fmt.Errorf("connection %s: no ICS feed URL", conn.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("connection %s: ics feed returned %s", conn.ID, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxICSBodyBytes))
	if err != nil {
		return nil, err
	}

	return BusySpansFromICS(body, from, to)
}

// BusySpansFromICS parses an ICS payload and returns the normalized busy
// spans intersecting [from, to). Split out of FetchBusy so it can run against
// raw payloads in tests.
func BusySpansFromICS(body []byte, from, to time.Time) ([]interval.Span, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var spans []interval.Span
	for _, ve := range cal.Events() {
		if isTransparent(ve) || isCancelled(ve) {
			continue
		}

		start, err := ve.GetStartAt()
		if err != nil {
			continue
		}
		end, err := ve.GetEndAt()
		if err != nil || !end.After(start) {
			// DTEND is optional; zero-length events do not block time.
			continue
		}

		if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
			spans = append(spans, expandRecurrence(rruleProp.Value, ve, start, end, from, to)...)
			continue
		}
		spans = append(spans, interval.Span{Start: start, End: end})
	}

	return interval.Clip(interval.Normalize(spans), from, to), nil
}

// maxOccurrences caps runaway RRULEs (e.g. minutely rules over a month).
const maxOccurrences = 1000

func expandRecurrence(raw string, ve *ical.VEvent, start, end, from, to time.Time) []interval.Span {
	rule, err := rrule.StrToRRule(raw)
	if err != nil {
		// Unparseable rule: fall back to the base occurrence only.
		return []interval.Span{{Start: start, End: end}}
	}
	rule.DTStart(start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range exDates(ve, start.Location()) {
		set.ExDate(ex)
	}

	duration := end.Sub(start)
	// Pull occurrences that may still overlap the window after adding the
	// event duration.
	occStarts := set.Between(from.Add(-duration).In(start.Location()), to.In(start.Location()), true)
	if len(occStarts) > maxOccurrences {
		occStarts = occStarts[:maxOccurrences]
	}

	spans := make([]interval.Span, 0, len(occStarts))
	for _, s := range occStarts {
		spans = append(spans, interval.Span{Start: s, End: s.Add(duration)})
	}
	return spans
}

var exDateLayouts = []string{
	"20060102T150405Z",
	"20060102T150405",
	"20060102",
}

func exDates(ve *ical.VEvent, loc *time.Location) []time.Time {
	var out []time.Time
	for _, prop := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, v := range strings.Split(prop.Value, ",") {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			for _, layout := range exDateLayouts {
				var t time.Time
				var err error
				if strings.HasSuffix(layout, "Z") {
					t, err = time.Parse(layout, v)
				} else {
					t, err = time.ParseInLocation(layout, v, loc)
				}
				if err == nil {
					out = append(out, t.In(loc))
					break
				}
			}
		}
	}
	return out
}

func isTransparent(ve *ical.VEvent) bool {
	p := ve.GetProperty(ical.ComponentProperty("TRANSP"))
	return p != nil && strings.EqualFold(strings.TrimSpace(p.Value), "TRANSPARENT")
}

func isCancelled(ve *ical.VEvent) bool {
	p := ve.GetProperty(ical.ComponentProperty("STATUS"))
	return p != nil && strings.EqualFold(strings.TrimSpace(p.Value), "CANCELLED")
}
