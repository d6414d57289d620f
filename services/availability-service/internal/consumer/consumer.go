package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/availo-hq/availo/libs/kafkax"
)

// Invalidator drops cached feeds for one owner.
type Invalidator interface {
	Invalidate(ctx context.Context, ownerID string) error
}

type Consumer struct {
	reader *kafka.Reader
	logger *slog.Logger
	cache  Invalidator
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

// settingsEvent is the envelope settings-service publishes. Only the owner id
// matters here; cache invalidation is the same for every event type.
type settingsEvent struct {
	OwnerID string `json:"ownerId"`
}

func New(logger *slog.Logger, cache Invalidator, cfg Config) *Consumer {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader: reader,
		logger: logger,
		cache:  cache,
	}
}

// Run consumes settings change events until the context is canceled. There is
// no inbox table: invalidating twice for the same event is a no-op, so
// duplicates are harmless.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			time.Sleep(1 * time.Second)
			continue
		}

		ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
		ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination", msg.Topic),
			),
		)

		meta := kafkax.ExtractEventMeta(msg)

		var evt settingsEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil || evt.OwnerID == "" {
			c.logger.Warn("malformed settings event skipped", "event_id", meta.EventID, "err", err)
			span.End()
			continue
		}

		if err := c.cache.Invalidate(ctxSpan, evt.OwnerID); err != nil {
			c.logger.Error("feed cache invalidation failed", "err", err, "owner_id", evt.OwnerID, "event_id", meta.EventID)
			span.RecordError(err)
			span.End()
			continue
		}
		c.logger.Info("feed cache invalidated", "owner_id", evt.OwnerID, "event_type", meta.EventType)
		span.End()
	}
}
