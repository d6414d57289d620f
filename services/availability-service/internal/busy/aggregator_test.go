package busy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/availo-hq/availo/services/availability-service/internal/interval"
	"github.com/availo-hq/availo/services/availability-service/internal/provider"
)

type stubFetcher struct {
	spans []interval.Span
	err   error
	delay time.Duration
}

func (s *stubFetcher) FetchBusy(ctx context.Context, _ provider.Connection, _, _ time.Time) ([]interval.Span, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.spans, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func utc(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func TestCollectUnionsAcrossConnections(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register("google", &stubFetcher{spans: []interval.Span{{Start: utc(10, 0), End: utc(11, 0)}}})
	reg.Register("outlook", &stubFetcher{spans: []interval.Span{{Start: utc(10, 30), End: utc(12, 0)}}})

	a := NewAggregator(reg, testLogger(), time.Second)
	res := a.Collect(context.Background(), []provider.Connection{
		{ID: "c1", Provider: "google"},
		{ID: "c2", Provider: "outlook"},
	}, utc(0, 0), utc(23, 59))

	if len(res.Degraded) != 0 {
		t.Fatalf("unexpected degradation: %v", res.Degraded)
	}
	if len(res.Busy) != 1 {
		t.Fatalf("overlapping contributions must merge, got %v", res.Busy)
	}
	if !res.Busy[0].Start.Equal(utc(10, 0)) || !res.Busy[0].End.Equal(utc(12, 0)) {
		t.Fatalf("expected merged 10:00-12:00, got %v-%v", res.Busy[0].Start, res.Busy[0].End)
	}
}

func TestCollectIsolatesFailures(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register("google", &stubFetcher{spans: []interval.Span{{Start: utc(10, 0), End: utc(11, 0)}}})
	reg.Register("outlook", &stubFetcher{err: errors.New("upstream 503")})

	a := NewAggregator(reg, testLogger(), time.Second)
	res := a.Collect(context.Background(), []provider.Connection{
		{ID: "c1", Provider: "google"},
		{ID: "c2", Provider: "outlook"},
	}, utc(0, 0), utc(23, 59))

	if len(res.Busy) != 1 || !res.Busy[0].Start.Equal(utc(10, 0)) {
		t.Fatalf("surviving connection's busy set must still apply, got %v", res.Busy)
	}
	if len(res.Degraded) != 1 || res.Degraded[0].ConnectionID != "c2" {
		t.Fatalf("expected degradation for c2, got %v", res.Degraded)
	}
}

func TestCollectTimesOutSlowProviders(t *testing.T) {
	reg := provider.NewRegistry()
	reg.Register("google", &stubFetcher{delay: 500 * time.Millisecond})

	a := NewAggregator(reg, testLogger(), 20*time.Millisecond)
	start := time.Now()
	res := a.Collect(context.Background(), []provider.Connection{{ID: "c1", Provider: "google"}}, utc(0, 0), utc(23, 59))
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Fatalf("slow provider must be cut off by the fetch timeout, took %v", elapsed)
	}
	if len(res.Degraded) != 1 {
		t.Fatalf("expected timeout degradation, got %v", res.Degraded)
	}
}

func TestCollectUnknownProviderDegrades(t *testing.T) {
	a := NewAggregator(provider.NewRegistry(), testLogger(), time.Second)
	res := a.Collect(context.Background(), []provider.Connection{{ID: "c1", Provider: "caldav"}}, utc(0, 0), utc(23, 59))
	if len(res.Degraded) != 1 || res.Degraded[0].Reason != provider.ErrUnknownProvider.Error() {
		t.Fatalf("expected unknown-provider degradation, got %v", res.Degraded)
	}
	if len(res.Busy) != 0 {
		t.Fatalf("expected empty busy set, got %v", res.Busy)
	}
}

func TestCollectNoConnections(t *testing.T) {
	a := NewAggregator(provider.NewRegistry(), testLogger(), time.Second)
	res := a.Collect(context.Background(), nil, utc(0, 0), utc(23, 59))
	if len(res.Busy) != 0 || len(res.Degraded) != 0 {
		t.Fatalf("expected zero-value result, got %+v", res)
	}
}
