package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"parkspot/internal/events"
	"parkspot/internal/metrics"
	"parkspot/internal/models"
)

// OutboxStore persists booking events until they are delivered.
type OutboxStore interface {
	CreateOutboxEvent(ctx context.Context, ev *models.OutboxEvent) error
	GetPendingOutboxEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	UpdateOutboxEventStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

// Sink delivers one outbox event to the event stream.
type Sink interface {
	Publish(ctx context.Context, ev models.OutboxEvent) error
}

// EventRelay stores booking events in the outbox as they are published on the
// bus and forwards them to a Sink, retrying with backoff.
type EventRelay struct {
	store        OutboxStore
	sink         Sink
	retryPolicy  RetryPolicy
	wake         chan struct{}
	pollInterval time.Duration
	batchSize    int
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewEventRelay(store OutboxStore, sink Sink, retry RetryPolicy, logger *zerolog.Logger) *EventRelay {
	return &EventRelay{
		store:        store,
		sink:         sink,
		retryPolicy:  retry.withDefaults(),
		wake:         make(chan struct{}, 1),
		pollInterval: 2 * time.Second,
		batchSize:    20,
		logger:       logger,
		now:          time.Now,
	}
}

// Subscribe records every booking lifecycle event published on bus.
func (r *EventRelay) Subscribe(bus *events.EventBus) {
	for _, eventType := range events.AllBookingEvents {
		bus.Subscribe(eventType, r.record)
	}
}

func (r *EventRelay) record(ev *events.Event) error {
	var ref struct {
		BookingID int64 `json:"booking_id"`
	}
	if err := json.Unmarshal(ev.Payload, &ref); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}

	outbox := models.OutboxEvent{
		EventID:   ev.ID,
		EventType: ev.Type,
		BookingID: ref.BookingID,
		Payload:   string(ev.Payload),
		Status:    models.OutboxPending,
	}
	if err := r.store.CreateOutboxEvent(context.Background(), &outbox); err != nil {
		return fmt.Errorf("persist outbox event: %w", err)
	}

	select {
	case r.wake <- struct{}{}:
	default:
	}
	return nil
}

// Start delivers pending events until ctx is done.
func (r *EventRelay) Start(ctx context.Context) {
	r.logger.Info().Msg("event relay started")
	defer r.logger.Info().Msg("event relay stopped")

	for {
		n := r.RunOnce(ctx)
		if n == r.batchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-r.wake:
		case <-time.After(r.pollInterval):
		}
	}
}

// RunOnce delivers one batch of due events and returns its size.
func (r *EventRelay) RunOnce(ctx context.Context) int {
	pending, err := r.store.GetPendingOutboxEvents(ctx, r.batchSize)
	if err != nil {
		r.logger.Error().Err(err).Msg("fetch pending outbox events")
		return 0
	}
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		r.deliver(ctx, &pending[i])
	}
	return len(pending)
}

func (r *EventRelay) deliver(ctx context.Context, ev *models.OutboxEvent) {
	if err := r.sink.Publish(ctx, *ev); err != nil {
		r.retryOrFail(ctx, ev, err)
		return
	}

	metrics.IncEventPublished("published")
	if err := r.store.UpdateOutboxEventStatus(ctx, ev.ID, models.OutboxPublished, "", nil); err != nil {
		r.logger.Error().Err(err).Int64("outbox_id", ev.ID).Msg("mark published")
	}
}

func (r *EventRelay) retryOrFail(ctx context.Context, ev *models.OutboxEvent, cause error) {
	attempt := ev.RetryCount + 1
	log := r.logger.With().Int64("outbox_id", ev.ID).Str("event_type", ev.EventType).Int("attempt", attempt).Logger()

	if r.retryPolicy.Exhausted(attempt) {
		metrics.IncEventPublished("failed")
		log.Error().Err(cause).Msg("event delivery failed permanently")
		if err := r.store.UpdateOutboxEventStatus(ctx, ev.ID, models.OutboxFailed, cause.Error(), nil); err != nil {
			log.Error().Err(err).Msg("mark failed")
		}
		return
	}

	metrics.IncEventPublished("retry")
	next := r.now().Add(r.retryPolicy.NextDelay(attempt))
	log.Warn().Err(cause).Time("next_retry_at", next).Msg("event delivery failed, will retry")
	if err := r.store.UpdateOutboxEventStatus(ctx, ev.ID, models.OutboxRetry, cause.Error(), &next); err != nil {
		log.Error().Err(err).Msg("mark retry")
	}
}
