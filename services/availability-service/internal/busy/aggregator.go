package busy

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/availo-hq/availo/services/availability-service/internal/interval"
	"github.com/availo-hq/availo/services/availability-service/internal/provider"
)

// Degradation records one connection whose busy fetch did not contribute to a
// resolution. The resolution itself still completes.
type Degradation struct {
	ConnectionID string
	Provider     string
	Reason       string
}

// Result is the union of every successful connection fetch, normalized, plus
// the connections that failed or timed out.
type Result struct {
	Busy     []interval.Span
	Degraded []Degradation
}

// Aggregator fans out busy fetches across a set of active connections and
// merges what comes back. A failing connection never fails the whole call.
type Aggregator struct {
	registry     *provider.Registry
	logger       *slog.Logger
	fetchTimeout time.Duration
}

func NewAggregator(registry *provider.Registry, logger *slog.Logger, fetchTimeout time.Duration) *Aggregator {
	if fetchTimeout <= 0 {
		fetchTimeout = 3 * time.Second
	}
	return &Aggregator{
		registry:     registry,
		logger:       logger,
		fetchTimeout: fetchTimeout,
	}
}

type fetchOutcome struct {
	conn  provider.Connection
	spans []interval.Span
	err   error
}

// Collect fetches busy intervals for every connection concurrently, bounded
// by the per-fetch timeout, and unions the successful contributions.
// Aggregation starts only after all fetches settle.
func (a *Aggregator) Collect(ctx context.Context, conns []provider.Connection, from, to time.Time) Result {
	if len(conns) == 0 {
		return Result{}
	}

	outcomes := make(chan fetchOutcome, len(conns))
	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(conn provider.Connection) {
			defer wg.Done()
			fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
			defer cancel()
			spans, err := a.fetchOne(fetchCtx, conn, from, to)
			outcomes <- fetchOutcome{conn: conn, spans: spans, err: err}
		}(conn)
	}
	wg.Wait()
	close(outcomes)

	var res Result
	var all []interval.Span
	for out := range outcomes {
		if out.err != nil {
			a.logger.Warn("busy fetch degraded",
				"connection_id", out.conn.ID,
				"provider", out.conn.Provider,
				"err", out.err,
			)
			res.Degraded = append(res.Degraded, Degradation{
				ConnectionID: out.conn.ID,
				Provider:     out.conn.Provider,
				Reason:       out.err.Error(),
			})
			continue
		}
		all = append(all, out.spans...)
	}
	sort.Slice(res.Degraded, func(i, j int) bool { return res.Degraded[i].ConnectionID < res.Degraded[j].ConnectionID })

	res.Busy = interval.Clip(interval.Normalize(all), from, to)
	return res
}

func (a *Aggregator) fetchOne(ctx context.Context, conn provider.Connection, from, to time.Time) ([]interval.Span, error) {
	fetcher, err := a.registry.Lookup(conn.Provider)
	if err != nil {
		return nil, err
	}
	return fetcher.FetchBusy(ctx, conn, from, to)
}
