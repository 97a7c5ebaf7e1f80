package inbound

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/shared/events"
	"collab-workspace-system/shared/logx"
	"collab-workspace-system/shared/metricsx"
	"collab-workspace-system/shared/mqx"
)

// Reader is the subset of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Stats() kafka.ReaderStats
}

type EventHandler interface {
	Handle(ctx context.Context, evt Event) error
}

// DeadLetter receives messages that could not be processed.
type DeadLetter interface {
	Publish(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error
}

type Consumer struct {
	reader          Reader
	handler         EventHandler
	inbox           Inbox
	deadLetter      DeadLetter
	deadLetterTopic string
	group           string
	timeout         time.Duration
	maxRetries      uint64
	newBackOff      func() backoff.BackOff
	redelivery      func() backoff.BackOff
	logger          logx.Logger
}

type Option func(*Consumer)

func WithInbox(inbox Inbox) Option { return func(c *Consumer) { c.inbox = inbox } }

func WithDeadLetter(sink DeadLetter, topic string) Option {
	return func(c *Consumer) {
		c.deadLetter = sink
		if topic != "" {
			c.deadLetterTopic = topic
		}
	}
}

func WithGroup(group string) Option { return func(c *Consumer) { c.group = group } }

func WithTimeout(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithRetries(n int) Option {
	return func(c *Consumer) {
		if n >= 0 {
			c.maxRetries = uint64(n)
		}
	}
}

// WithBackOff sets the backoff used between handler attempts and between
// redeliveries of a message that could not be settled.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Consumer) {
		c.newBackOff = fn
		c.redelivery = fn
	}
}

func NewConsumer(reader Reader, handler EventHandler, logger logx.Logger, opts ...Option) *Consumer {
	c := &Consumer{
		reader:          reader,
		handler:         handler,
		inbox:           NewMemoryInbox(24 * time.Hour),
		deadLetterTopic: events.TopicDeadLetter,
		timeout:         10 * time.Second,
		maxRetries:      3,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 250 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			return b
		},
		redelivery: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run fetches and processes messages until ctx is cancelled. Offsets are
// committed only after a message was handled or dead-lettered; a message
// that cannot be settled is retried in place so later offsets are never
// committed past it.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error(ctx, "kafka_fetch_failed", "failed to fetch message",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}

		if err := c.settle(ctx, msg); err != nil {
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error(ctx, "kafka_commit_failed", "failed to commit message",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
		}
		stats := c.reader.Stats()
		metricsx.SetKafkaLag(stats.Topic, c.group, stats.Lag)
	}
}

// settle runs Process until it succeeds. It only fails when ctx ends.
func (c *Consumer) settle(ctx context.Context, msg kafka.Message) error {
	op := func() error { return c.Process(ctx, msg) }
	notify := func(err error, wait time.Duration) {
		c.logger.Error(ctx, "inbound_unprocessed", "message not settled, retrying",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.Duration("retry_in", wait),
			slog.String("error_code", string(es.KindOf(err))),
			slog.String("error", err.Error()),
		)
	}
	return backoff.RetryNotify(op, backoff.WithContext(c.redelivery(), ctx), notify)
}

// Process handles one message. A nil error means the offset may be
// committed: the message was applied, skipped as a duplicate, ignored, or
// sent to the dead-letter topic.
func (c *Consumer) Process(ctx context.Context, msg kafka.Message) error {
	ctx, span := otel.Tracer("mqx").Start(ctx, "kafka.consume")
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", msg.Topic),
	)
	defer span.End()

	evt, err := Decode(msg.Topic, msg.Value)
	if err != nil {
		metricsx.IncInbound(msg.Topic, "malformed")
		return c.toDeadLetter(ctx, msg, err, 0)
	}
	head := evt.Header()
	span.SetAttributes(attribute.String("event.type", head.EventType))
	if _, ok := evt.(Unknown); ok {
		metricsx.IncInbound(msg.Topic, "ignored")
		return nil
	}

	key := ""
	if head.EventID != "" {
		key = msg.Topic + ":" + head.EventID
		seen, err := c.inbox.Seen(ctx, key)
		if err != nil {
			return es.ConsumeFailure("inbox lookup", err)
		}
		if seen {
			metricsx.IncInbound(msg.Topic, "duplicate")
			return nil
		}
	}

	attempts := 0
	op := func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		err := c.handler.Handle(attemptCtx, evt)
		if err != nil && (es.IsBusiness(err) || ctx.Err() != nil) {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		span.RecordError(err)
		c.logger.Error(ctx, "inbound_failed", "inbound event handling failed",
			slog.String("topic", msg.Topic),
			slog.String("event_type", head.EventType),
			slog.String("event_id", head.EventID),
			slog.Int("attempts", attempts),
			slog.String("error_code", string(es.KindOf(err))),
			slog.String("error", err.Error()),
		)
		if dlqErr := c.toDeadLetter(ctx, msg, err, attempts); dlqErr != nil {
			return dlqErr
		}
		metricsx.IncInbound(msg.Topic, "dead_letter")
	} else {
		metricsx.IncInbound(msg.Topic, "applied")
	}

	if key != "" {
		if err := c.inbox.Mark(ctx, key); err != nil {
			c.logger.Warn(ctx, "inbox_mark_failed", "failed to record processed event",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (c *Consumer) toDeadLetter(ctx context.Context, msg kafka.Message, cause error, attempts int) error {
	if c.deadLetter == nil {
		c.logger.Warn(ctx, "inbound_dropped", "no dead-letter sink, dropping message",
			slog.String("topic", msg.Topic),
			slog.String("error", cause.Error()),
		)
		return nil
	}
	headers := mqx.FromHeaders(msg.Headers)
	headers[events.HeaderOriginTopic] = msg.Topic
	headers[events.HeaderFailureReason] = cause.Error()
	headers[events.HeaderAttempts] = strconv.Itoa(attempts)

	dlqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()
	if err := c.deadLetter.Publish(dlqCtx, c.deadLetterTopic, msg.Key, msg.Value, headers); err != nil {
		return es.ConsumeFailure("dead-letter "+msg.Topic, errors.Join(cause, err))
	}
	metricsx.IncDeadLetter(msg.Topic)
	return nil
}
