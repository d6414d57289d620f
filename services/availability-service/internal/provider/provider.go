package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/availo-hq/availo/services/availability-service/internal/interval"
)

// Connection is the read-only view of a calendar connection a busy fetch
// operates on. Credentials stay opaque; token refresh is the calendar
// integration layer's problem, not ours.
type Connection struct {
	ID          string
	OwnerID     string
	Provider    string
	AccountID   string
	CalendarID  string
	FeedURL     string
	Credentials string
	IsActive    bool
	Metadata    map[string]string
}

// BusyFetcher retrieves one connection's busy intervals intersecting
// [from, to). Implementations must be safe for concurrent use.
type BusyFetcher interface {
	FetchBusy(ctx context.Context, conn Connection, from, to time.Time) ([]interval.Span, error)
}

var ErrUnknownProvider = errors.New("unknown calendar provider")

// Registry maps provider names (google, outlook, apple, ics, ...) to fetchers.
type Registry struct {
	fetchers map[string]BusyFetcher
}

func NewRegistry() *Registry {
	return &Registry{fetchers: map[string]BusyFetcher{}}
}

func (r *Registry) Register(name string, f BusyFetcher) {
	r.fetchers[strings.ToLower(strings.TrimSpace(name))] = f
}

func (r *Registry) Lookup(name string) (BusyFetcher, error) {
	f, ok := r.fetchers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return f, nil
}

// DefaultRegistry wires the production set: a real ICS feed fetcher plus
// fixture-backed stand-ins for the OAuth providers (their API integrations
// live outside this service; the stubs keep the feed deterministic).
func DefaultRegistry(httpTimeout time.Duration) *Registry {
	r := NewRegistry()
	fixture := NewFixture()
	r.Register("google", fixture)
	r.Register("outlook", fixture)
	r.Register("apple", fixture)
	r.Register("other", fixture)
	r.Register("ics", NewICS(httpTimeout))
	return r
}
