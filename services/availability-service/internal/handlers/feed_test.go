package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/availo-hq/availo/services/availability-service/internal/busy"
	"github.com/availo-hq/availo/services/availability-service/internal/interval"
	"github.com/availo-hq/availo/services/availability-service/internal/resolve"
	"github.com/availo-hq/availo/services/availability-service/internal/schedule"
)

type stubResolver struct {
	feed    resolve.Feed
	err     error
	lastWin *resolve.Window
	lastOv  *resolve.Overrides
	calls   int
}

func (s *stubResolver) Resolve(_ context.Context, _ string, win *resolve.Window, ov *resolve.Overrides) (resolve.Feed, error) {
	s.calls++
	s.lastWin = win
	s.lastOv = ov
	return s.feed, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleFeed() resolve.Feed {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return resolve.Feed{
		OwnerID:  "owner-1",
		Timezone: "UTC",
		Location: time.UTC,
		Options:  schedule.DisplayOptions{ShowExactHours: true, LookAheadDays: 7},
		Days: []resolve.DayResult{
			{
				Date:      day,
				Weekday:   schedule.Monday,
				Available: true,
				Status:    resolve.StatusPartiallyAvailable,
				Slots: []interval.Span{
					{Start: day.Add(9 * time.Hour), End: day.Add(12 * time.Hour)},
				},
			},
			{
				Date:    day.AddDate(0, 0, 1),
				Weekday: schedule.Tuesday,
				Status:  resolve.StatusUnavailable,
			},
		},
		ResolvedAt: day.Add(8 * time.Hour),
	}
}

func TestFeedGet(t *testing.T) {
	rs := &stubResolver{feed: sampleFeed()}
	h := NewFeedHandler(rs, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/availability?ownerId=owner-1", nil)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp feedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.OwnerID != "owner-1" || resp.Timezone != "UTC" {
		t.Fatalf("unexpected envelope %+v", resp)
	}
	if len(resp.Days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(resp.Days))
	}
	mon := resp.Days[0]
	if mon.Date != "2026-03-02" || mon.DayOfWeek != "Monday" || !mon.IsAvailable {
		t.Fatalf("unexpected day %+v", mon)
	}
	if len(mon.AvailableSlots) != 1 {
		t.Fatalf("expected 1 slot, got %v", mon.AvailableSlots)
	}
	slot := mon.AvailableSlots[0]
	if slot.Start != "09:00" || slot.End != "12:00" || slot.StartUTC != "2026-03-02T09:00:00Z" {
		t.Fatalf("unexpected slot %+v", slot)
	}
	if resp.Days[1].IsAvailable || len(resp.Days[1].AvailableSlots) != 0 {
		t.Fatalf("unavailable day must carry no slots, got %+v", resp.Days[1])
	}
}

func TestFeedGetPassesWindowAndOverrides(t *testing.T) {
	rs := &stubResolver{feed: sampleFeed()}
	h := NewFeedHandler(rs, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/availability?ownerId=owner-1&from=2026-03-02&to=2026-03-09&showHours=false", nil)
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rs.lastWin == nil || !rs.lastWin.From.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("window not forwarded, got %+v", rs.lastWin)
	}
	if rs.lastOv == nil || rs.lastOv.ShowExactHours == nil || *rs.lastOv.ShowExactHours {
		t.Fatalf("showHours override not forwarded, got %+v", rs.lastOv)
	}
}

func TestFeedGetValidation(t *testing.T) {
	h := NewFeedHandler(&stubResolver{feed: sampleFeed()}, nil, testLogger())

	cases := []struct {
		name string
		url  string
	}{
		{"missing owner", "/api/v1/public/availability"},
		{"half window", "/api/v1/public/availability?ownerId=o&from=2026-03-02"},
		{"bad date", "/api/v1/public/availability?ownerId=o&from=03/02/2026&to=2026-03-09"},
		{"bad days", "/api/v1/public/availability?ownerId=o&days=zero"},
		{"bad showHours", "/api/v1/public/availability?ownerId=o&showHours=maybe"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Get(rec, httptest.NewRequest(http.MethodGet, tc.url, nil))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestFeedGetResolverErrors(t *testing.T) {
	h := NewFeedHandler(&stubResolver{err: resolve.ErrInvalidWindow}, nil, testLogger())
	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/availability?ownerId=o", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid window, got %d", rec.Code)
	}

	h = NewFeedHandler(&stubResolver{err: errors.New("pool exhausted")}, nil, testLogger())
	rec = httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/availability?ownerId=o", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for internal failure, got %d", rec.Code)
	}
}

func TestFeedGetHidesDegradationReasons(t *testing.T) {
	feed := sampleFeed()
	feed.Degraded = []busy.Degradation{{ConnectionID: "c2", Provider: "outlook", Reason: "upstream 503"}}
	h := NewFeedHandler(&stubResolver{feed: feed}, nil, testLogger())

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/public/availability?ownerId=owner-1", nil))

	var resp feedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if len(resp.DegradedProviders) != 1 {
		t.Fatalf("expected degraded provider entry, got %+v", resp.DegradedProviders)
	}
	if resp.DegradedProviders[0].Reason != "" {
		t.Fatalf("reasons must be withheld unless enabled, got %q", resp.DegradedProviders[0].Reason)
	}
}

func TestFeedGetMethodNotAllowed(t *testing.T) {
	h := NewFeedHandler(&stubResolver{feed: sampleFeed()}, nil, testLogger())
	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodPost, "/api/v1/public/availability?ownerId=o", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
