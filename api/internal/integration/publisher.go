package integration

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/shared/events"
	"collab-workspace-system/shared/logx"
	"collab-workspace-system/shared/metricsx"
)

// Sink is a message transport. mqx.Producer and amqpx.Publisher satisfy it.
type Sink interface {
	Publish(ctx context.Context, topic string, key []byte, value []byte, headers map[string]string) error
}

type Publisher struct {
	mapper          Mapper
	sink            Sink
	deadLetter      Sink
	deadLetterTopic string
	timeout         time.Duration
	maxRetries      uint64
	newBackOff      func() backoff.BackOff
	logger          logx.Logger
}

type PublisherOption func(*Publisher)

// WithDeadLetter routes messages that exhaust their retries to topic on sink.
func WithDeadLetter(sink Sink, topic string) PublisherOption {
	return func(p *Publisher) {
		p.deadLetter = sink
		if topic != "" {
			p.deadLetterTopic = topic
		}
	}
}

func WithTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithRetries(n int) PublisherOption {
	return func(p *Publisher) {
		if n >= 0 {
			p.maxRetries = uint64(n)
		}
	}
}

func WithBackOff(fn func() backoff.BackOff) PublisherOption {
	return func(p *Publisher) { p.newBackOff = fn }
}

func NewPublisher(mapper Mapper, sink Sink, logger logx.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		mapper:          mapper,
		sink:            sink,
		deadLetterTopic: events.TopicDeadLetter,
		timeout:         5 * time.Second,
		maxRetries:      3,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Name() string { return "integration-publisher" }

// Handle maps evt and sends every resulting message. It reports the first
// delivery failure after all messages were attempted.
func (p *Publisher) Handle(ctx context.Context, evt es.Event) error {
	msgs, err := p.mapper.Map(evt)
	if err != nil {
		return es.PublishFailure("map "+evt.Type, err)
	}
	var first error
	for _, msg := range msgs {
		if err := p.Send(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Send delivers one message with bounded retries. A message that still
// fails goes to the dead-letter topic and PUBLISH_FAILURE is returned.
func (p *Publisher) Send(ctx context.Context, msg Message) error {
	attempts := 0
	op := func() error {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		err := p.sink.Publish(attemptCtx, msg.Topic, []byte(msg.Key), msg.Value, msg.Headers)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), p.maxRetries), ctx)
	err := backoff.Retry(op, b)
	if err == nil {
		metricsx.IncIntegrationPublished(msg.Topic)
		return nil
	}

	metricsx.IncIntegrationFailure(msg.Topic)
	p.logger.Error(ctx, "publish_failed", "integration event delivery failed",
		slog.String("topic", msg.Topic),
		slog.String("key", msg.Key),
		slog.String("event_id", msg.Headers[events.HeaderEventID]),
		slog.String("event_type", msg.Headers[events.HeaderEventType]),
		slog.Int("attempts", attempts),
		slog.String("error_code", string(es.KindPublishFailure)),
		slog.String("error", err.Error()),
	)
	if dlqErr := p.toDeadLetter(ctx, msg, err, attempts); dlqErr != nil {
		err = errors.Join(err, dlqErr)
	}
	return es.PublishFailure("deliver to "+msg.Topic, err)
}

func (p *Publisher) toDeadLetter(ctx context.Context, msg Message, cause error, attempts int) error {
	if p.deadLetter == nil {
		return nil
	}
	headers := maps.Clone(msg.Headers)
	if headers == nil {
		headers = map[string]string{}
	}
	headers[events.HeaderOriginTopic] = msg.Topic
	headers[events.HeaderFailureReason] = cause.Error()
	headers[events.HeaderAttempts] = strconv.Itoa(attempts)

	dlqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if err := p.deadLetter.Publish(dlqCtx, p.deadLetterTopic, []byte(msg.Key), msg.Value, headers); err != nil {
		p.logger.Error(ctx, "dead_letter_failed", "dead-letter publish failed",
			slog.String("origin_topic", msg.Topic),
			slog.String("error_code", string(es.KindPublishFailure)),
			slog.String("error", err.Error()),
		)
		return err
	}
	metricsx.IncDeadLetter(msg.Topic)
	return nil
}
