package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/tutorslot/tutorslot/libs/kafkax"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// messageSource is the slice of kafka.Reader the loop needs. Offsets are
// committed explicitly so a failed message stays uncommitted.
type messageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// deduper tracks processed event ids. inbox.Repository implements it.
type deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, eventID string, eventType string) (bool, error)
}

// Consumer subscribes the scheduling service to the payment stream. Each
// checkout-completion message is deduplicated through the inbox table and
// handed to the registered handler, which promotes the paid hold into a
// booking. Offsets are committed only after the handler and the inbox record
// succeed, so a failed promotion is redelivered on the next rebalance or
// restart instead of being dropped.
type Consumer struct {
	reader  messageSource
	logger  *slog.Logger
	inbox   deduper
	handler Handler
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, inboxRepo deduper, cfg Config, handler Handler) *Consumer {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader:  reader,
		logger:  logger,
		inbox:   inboxRepo,
		handler: handler,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch error", "err", err)
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

		seen, err := c.inbox.Seen(ctxSpan, meta.EventID)
		if err != nil {
			// Left uncommitted so the message comes around again.
			c.logger.Error("inbox lookup failed", "err", err)
			span.RecordError(err)
			span.End()
			continue
		}
		if seen {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			c.commit(ctx, msg, span)
			span.End()
			continue
		}

		if err := c.handler(ctxSpan, msg); err != nil {
			// No commit: the group redelivers the message.
			c.logger.Error("handler error", "err", err, "event_id", meta.EventID)
			span.RecordError(err)
			span.End()
			continue
		}

		// Recorded after the handler so a crash mid-message is retried.
		// Reprocessing is safe: promotion of a non-active hold is a no-op.
		if _, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType); err != nil {
			c.logger.Error("inbox record failed", "err", err, "event_id", meta.EventID)
			span.RecordError(err)
			span.End()
			continue
		}

		c.commit(ctx, msg, span)
		span.End()
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message, span trace.Span) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("offset commit failed", "err", err)
		span.RecordError(err)
	}
}
