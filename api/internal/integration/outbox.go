package integration

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"collab-workspace-system/api/internal/es"
	"collab-workspace-system/api/internal/eventstore"
	"collab-workspace-system/api/internal/models"
	"collab-workspace-system/api/internal/repos"
	"collab-workspace-system/shared/events"
	"collab-workspace-system/shared/logx"
	"collab-workspace-system/shared/metricsx"
)

var outboxNamespace = uuid.MustParse("6f1c7c1e-2b8a-4a53-9c1e-0d7f3c4a9b21")

type OutboxWriter interface {
	InsertInTx(ctx context.Context, tx pgx.Tx, event models.OutboxEvent) (models.OutboxEvent, error)
}

// OutboxHook maps events inside the append transaction and stores the
// resulting messages, so they commit or roll back with the events.
func OutboxHook(w OutboxWriter, mapper Mapper) eventstore.TxHook {
	return func(ctx context.Context, tx pgx.Tx, stored []es.Event) error {
		for _, evt := range stored {
			msgs, err := mapper.Map(evt)
			if err != nil {
				return err
			}
			for _, msg := range msgs {
				if _, err := w.InsertInTx(ctx, tx, OutboxRow(evt, msg)); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

// OutboxRow builds the outbox row for one message. The row id is derived
// from the domain event and topic so a replayed insert collides.
func OutboxRow(evt es.Event, msg Message) models.OutboxEvent {
	return models.OutboxEvent{
		EventID:       uuid.NewSHA1(outboxNamespace, []byte(evt.EventID+"|"+msg.Topic)),
		SourceEventID: evt.EventID,
		AggregateType: evt.AggregateType,
		AggregateID:   evt.AggregateID,
		Topic:         msg.Topic,
		Key:           msg.Key,
		Payload:       msg.Value,
		Headers:       msg.Headers,
		Status:        repos.OutboxStatusPending,
		CreatedAt:     evt.OccurredAt,
		UpdatedAt:     evt.OccurredAt,
	}
}

type OutboxStore interface {
	ClaimPending(ctx context.Context, owner string, limit int) ([]models.OutboxEvent, error)
	GetByID(ctx context.Context, eventID uuid.UUID) (models.OutboxEvent, error)
	MarkDelivered(ctx context.Context, eventID uuid.UUID) error
	MarkFailed(ctx context.Context, eventID uuid.UUID, attempts int, nextRetryAt *time.Time, lastErr string, dead bool) error
	EnsurePending(ctx context.Context, eventID uuid.UUID) error
}

// Handoff passes a claimed row to whatever delivers it, e.g. a queue.
type Handoff func(ctx context.Context, eventID uuid.UUID) error

// Relay drains the outbox to the bus.
type Relay struct {
	store           OutboxStore
	sink            Sink
	deadLetter      Sink
	deadLetterTopic string
	maxAttempts     int
	now             func() time.Time
	logger          logx.Logger
}

func NewRelay(store OutboxStore, sink Sink, maxAttempts int, logger logx.Logger) *Relay {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	return &Relay{
		store:           store,
		sink:            sink,
		deadLetter:      sink,
		deadLetterTopic: events.TopicDeadLetter,
		maxAttempts:     maxAttempts,
		now:             func() time.Time { return time.Now().UTC() },
		logger:          logger,
	}
}

func (r *Relay) WithDeadLetterTopic(topic string) *Relay {
	if topic != "" {
		r.deadLetterTopic = topic
	}
	return r
}

func (r *Relay) Claim(ctx context.Context, owner string, limit int) ([]models.OutboxEvent, error) {
	return r.store.ClaimPending(ctx, owner, limit)
}

// Scan claims up to limit rows and hands each one off. A row that cannot
// be handed off goes back to pending without spending a delivery attempt.
func (r *Relay) Scan(ctx context.Context, owner string, limit int, handoff Handoff) (int, error) {
	rows, err := r.store.ClaimPending(ctx, owner, limit)
	if err != nil {
		return 0, err
	}
	handed := 0
	for _, row := range rows {
		if err := handoff(ctx, row.EventID); err != nil {
			r.logger.Warn(ctx, "outbox_handoff_failed", "outbox row returned to pending",
				slog.String("event_id", row.EventID.String()),
				slog.String("error", err.Error()),
			)
			if err := r.store.EnsurePending(ctx, row.EventID); err != nil {
				r.logger.Error(ctx, "outbox_release_failed", "failed to return outbox row to pending",
					slog.String("event_id", row.EventID.String()),
					slog.String("error_code", "INTERNAL_ERROR"),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		handed++
	}
	return handed, nil
}

// Deliver sends one claimed row. It returns an error only when the row
// should be retried by the caller's queue.
func (r *Relay) Deliver(ctx context.Context, eventID uuid.UUID) error {
	ctx, span := otel.Tracer("integration").Start(ctx, "outbox.dispatch")
	span.SetAttributes(attribute.String("outbox.event_id", eventID.String()))
	defer span.End()

	event, err := r.store.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if event.Status == repos.OutboxStatusDelivered || event.Status == repos.OutboxStatusDead {
		return nil
	}
	if err := r.sink.Publish(ctx, event.Topic, []byte(event.Key), event.Payload, event.Headers); err != nil {
		span.RecordError(err)
		return r.Failed(ctx, event, err)
	}
	metricsx.IncIntegrationPublished(event.Topic)
	return r.store.MarkDelivered(ctx, event.EventID)
}

// Failed records a failed attempt. Once the attempt budget is spent the row
// is marked dead, copied to the dead-letter topic and nil is returned.
func (r *Relay) Failed(ctx context.Context, event models.OutboxEvent, cause error) error {
	metricsx.IncIntegrationFailure(event.Topic)
	attempts := event.Attempts + 1
	nextRetry := r.now().Add(RetryDelay(attempts))
	dead := attempts >= r.maxAttempts
	if err := r.store.MarkFailed(ctx, event.EventID, attempts, &nextRetry, cause.Error(), dead); err != nil {
		return errors.Join(cause, err)
	}
	if !dead {
		return es.PublishFailure("outbox "+event.Topic, cause)
	}

	r.logger.Warn(ctx, "outbox_dead", "outbox event moved to dead-letter",
		slog.String("event_id", event.EventID.String()),
		slog.String("topic", event.Topic),
		slog.Int("attempts", attempts),
		slog.String("error_code", string(es.KindPublishFailure)),
		slog.String("error", cause.Error()),
	)
	headers := maps.Clone(event.Headers)
	if headers == nil {
		headers = map[string]string{}
	}
	headers[events.HeaderOriginTopic] = event.Topic
	headers[events.HeaderFailureReason] = cause.Error()
	headers[events.HeaderAttempts] = strconv.Itoa(attempts)
	if err := r.deadLetter.Publish(ctx, r.deadLetterTopic, []byte(event.Key), event.Payload, headers); err != nil {
		r.logger.Error(ctx, "dead_letter_failed", "dead-letter publish failed",
			slog.String("event_id", event.EventID.String()),
			slog.String("error_code", string(es.KindPublishFailure)),
			slog.String("error", err.Error()),
		)
		return nil
	}
	metricsx.IncDeadLetter(event.Topic)
	return nil
}

func RetryDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 5 * time.Second
	}
	delay := time.Duration(attempt*attempt) * 5 * time.Second
	if delay > 5*time.Minute {
		return 5 * time.Minute
	}
	return delay
}
