package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/availo-hq/availo/libs/kafkax"
	otelx "github.com/availo-hq/availo/libs/otel"
)

// Publisher polls the outbox and forwards settings-change events to Kafka.
// Events reach the availability side only after the settings transaction
// committed, so a cached feed is never invalidated for a write that rolled
// back. Messages are keyed by owner id, keeping one owner's changes ordered
// on a single partition.
type Publisher struct {
	repo      *Repository
	logger    *slog.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	Brokers   string
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(repo *Repository, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		repo:      repo,
		logger:    logger,
		brokers:   kafkax.SplitBrokers(cfg.Brokers),
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

func (p *Publisher) Run(ctx context.Context) {
	if len(p.brokers) == 0 {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(p.brokers...),
		Balancer: &kafka.Hash{},
	}
	defer writer.Close()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.repo.Drain(ctx, p.batchSize, func(evt Pending) error {
				return p.send(ctx, writer, evt)
			})
			if err != nil {
				p.logger.Error("outbox drain failed", "err", err)
			} else if n > 0 {
				p.logger.Debug("settings changes published", "count", n)
			}
		}
	}
}

func (p *Publisher) send(ctx context.Context, writer *kafka.Writer, evt Pending) error {
	msgCtx := otelx.ContextWithTraceContext(ctx, evt.Traceparent, evt.Tracestate)
	return writer.WriteMessages(ctx, kafka.Message{
		Topic: evt.EventType,
		Key:   []byte(evt.OwnerID),
		Value: evt.Payload,
		Headers: kafkax.InjectTraceHeaders(msgCtx, []kafka.Header{
			{Key: "event_id", Value: []byte(evt.EventID)},
			{Key: "event_type", Value: []byte(evt.EventType)},
		}),
	})
}
