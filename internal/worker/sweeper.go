package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"parkspot/internal/config"
	"parkspot/internal/domain"
	"parkspot/internal/events"
	"parkspot/internal/metrics"
	"parkspot/internal/models"
)

const sweepBatchSize = 200

// SweepStore is the part of the booking storage the sweeper needs.
type SweepStore interface {
	ListExpiredActiveBookings(ctx context.Context, now time.Time, limit int) ([]*models.Booking, error)
	ListStalePendingBookings(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Booking, error)
	CompleteBooking(ctx context.Context, id, fromVersion int64) error
	ExpireUnpaidBooking(ctx context.Context, id, fromVersion int64) error
}

// SweepResult counts the transitions made by one pass.
type SweepResult struct {
	Completed int
	Expired   int
}

// Sweeper completes bookings whose end time has passed and cancels bookings
// whose payment was abandoned.
type Sweeper struct {
	store      SweepStore
	eventBus   domain.EventPublisher
	interval   time.Duration
	pendingTTL time.Duration
	batchSize  int
	logger     *zerolog.Logger
	now        func() time.Time
}

func NewSweeper(store SweepStore, eventBus domain.EventPublisher, cfg config.BookingConfig, logger *zerolog.Logger) *Sweeper {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = models.SweepIntervalSeconds * time.Second
	}
	return &Sweeper{
		store:      store,
		eventBus:   eventBus,
		interval:   interval,
		pendingTTL: cfg.PendingPaymentTTL,
		batchSize:  sweepBatchSize,
		logger:     logger,
		now:        time.Now,
	}
}

// Start runs a pass immediately and then once per interval until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Dur("pending_payment_ttl", s.pendingTTL).Msg("sweeper started")
	defer s.logger.Info().Msg("sweeper stopped")

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single pass. Each booking transitions on its own; a
// failure is logged and the pass moves on.
func (s *Sweeper) RunOnce(ctx context.Context) SweepResult {
	now := s.now()
	var res SweepResult

	res.Completed = s.drain(ctx, "complete expired",
		func() ([]*models.Booking, error) {
			return s.store.ListExpiredActiveBookings(ctx, now, s.batchSize)
		},
		func(b *models.Booking) error {
			if err := s.store.CompleteBooking(ctx, b.ID, b.Version); err != nil {
				return err
			}
			b.BookingStatus = models.BookingCompleted
			s.publish(events.EventBookingCompleted, b)
			return nil
		})
	metrics.AddBookingsCompleted(res.Completed)

	if s.pendingTTL > 0 {
		cutoff := now.Add(-s.pendingTTL)
		res.Expired = s.drain(ctx, "expire unpaid",
			func() ([]*models.Booking, error) {
				return s.store.ListStalePendingBookings(ctx, cutoff, s.batchSize)
			},
			func(b *models.Booking) error {
				if err := s.store.ExpireUnpaidBooking(ctx, b.ID, b.Version); err != nil {
					return err
				}
				b.BookingStatus = models.BookingCancelled
				b.PaymentStatus = models.PaymentFailed
				s.publish(events.EventBookingExpired, b)
				return nil
			})
		metrics.AddBookingsExpired(res.Expired)
	}

	if res.Completed > 0 || res.Expired > 0 {
		s.logger.Info().Int("completed", res.Completed).Int("expired", res.Expired).Msg("sweep finished")
	}
	return res
}

// drain applies fn to batches from list until a batch is short or makes no progress.
func (s *Sweeper) drain(ctx context.Context, op string, list func() ([]*models.Booking, error), fn func(*models.Booking) error) int {
	total := 0
	for ctx.Err() == nil {
		batch, err := list()
		if err != nil {
			s.logger.Error().Err(err).Str("op", op).Msg("sweep query failed")
			return total
		}

		done := 0
		for _, b := range batch {
			err := fn(b)
			switch {
			case err == nil:
				done++
			case errors.Is(err, domain.ErrConcurrentModification):
				s.logger.Debug().Int64("booking_id", b.ID).Str("op", op).Msg("booking changed during sweep, skipped")
			default:
				s.logger.Error().Err(err).Int64("booking_id", b.ID).Str("op", op).Msg("sweep transition failed")
			}
		}
		total += done

		if len(batch) < s.batchSize || done == 0 {
			return total
		}
	}
	return total
}

func (s *Sweeper) publish(eventType string, b *models.Booking) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, events.PayloadFromBooking(b, "sweeper")); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", b.ID).Msg("publish event error")
	}
}
