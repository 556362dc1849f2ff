package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/guregu/null.v4"

	"parkspot/internal/config"
	"parkspot/internal/domain"
	"parkspot/internal/events"
	"parkspot/internal/metrics"
	"parkspot/internal/models"
	"parkspot/internal/repository"
)

const (
	lockAttempts   = 5
	lockRetryDelay = 40 * time.Millisecond
)

type BookingOptions struct {
	Coupon              Coupon
	Currency            string
	LockTTL             time.Duration
	MaxCreatesPerWindow int
	CreateWindow        time.Duration
}

func BookingOptionsFromConfig(cfg config.BookingConfig, currency string) BookingOptions {
	return BookingOptions{
		Coupon:              Coupon{Code: cfg.CouponCode, Percent: cfg.CouponPercent},
		Currency:            currency,
		LockTTL:             cfg.LockTTL,
		MaxCreatesPerWindow: cfg.MaxCreatesPerWindow,
		CreateWindow:        cfg.CreateWindow,
	}
}

type BookingService struct {
	bookings  domain.BookingRepository
	locations domain.LocationRepository
	gateway   domain.PaymentGateway
	locks     domain.LockStore
	eventBus  domain.EventPublisher
	opts      BookingOptions
	logger    *zerolog.Logger
	now       func() time.Time
}

func NewBookingService(
	bookings domain.BookingRepository,
	locations domain.LocationRepository,
	gateway domain.PaymentGateway,
	locks domain.LockStore,
	eventBus domain.EventPublisher,
	opts BookingOptions,
	logger *zerolog.Logger,
) *BookingService {
	if opts.Currency == "" {
		opts.Currency = models.DefaultCurrency
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Second
	}
	return &BookingService{
		bookings:  bookings,
		locations: locations,
		gateway:   gateway,
		locks:     locks,
		eventBus:  eventBus,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateBooking reserves a slot, persists the booking as active and awaiting
// payment, and opens a gateway order for its final amount. If the order
// cannot be created the booking is cancelled again.
func (s *BookingService) CreateBooking(ctx context.Context, req domain.CreateBookingRequest) (*models.Booking, *models.PaymentDetails, error) {
	if err := s.checkRateLimit(ctx, req.UserID); err != nil {
		return nil, nil, err
	}

	loc, err := s.locations.GetLocation(ctx, req.LocationID)
	if err != nil {
		return nil, nil, err
	}
	counts, err := s.locations.CountActiveBySlot(ctx, loc.ID)
	if err != nil {
		return nil, nil, err
	}
	slot := loc.Slot(req.VehicleType)
	if err := Reserve(models.NewSlotAvailability(slot, counts[req.VehicleType]), req.VehicleType); err != nil {
		s.reject(err)
		return nil, nil, err
	}

	quote := Quote(slot.HourlyRate, req.Hours, req.CouponCode, s.opts.Coupon)
	booking := &models.Booking{
		UserID:          req.UserID,
		LocationID:      loc.ID,
		VehicleType:     req.VehicleType,
		VehicleNumber:   req.VehicleNumber,
		DriverLicense:   req.DriverLicense,
		Hours:           req.Hours,
		StartTime:       req.StartTime,
		EndTime:         models.EndTimeFor(req.StartTime, req.Hours),
		TotalAmount:     quote.TotalAmount,
		DiscountApplied: quote.DiscountApplied,
		FinalAmount:     quote.FinalAmount,
		PaymentStatus:   models.PaymentPending,
		BookingStatus:   models.BookingActive,
	}

	if err := s.insertLocked(ctx, booking); err != nil {
		s.reject(err)
		return nil, nil, err
	}

	order, err := s.gateway.CreateOrder(ctx, models.OrderRequest{
		Amount:   MinorUnits(quote.FinalAmount),
		Currency: s.opts.Currency,
		Receipt:  fmt.Sprintf("booking_%d", s.now().UnixMilli()),
		Notes: map[string]string{
			"userId":      strconv.FormatInt(req.UserID, 10),
			"locationId":  strconv.FormatInt(loc.ID, 10),
			"vehicleType": string(req.VehicleType),
			"bookingId":   strconv.FormatInt(booking.ID, 10),
		},
	})
	if err == nil {
		err = s.bookings.AttachPaymentOrder(ctx, booking.ID, order.ID)
	}
	if err != nil {
		s.abandon(booking.ID, err)
		s.reject(err)
		return nil, nil, fmt.Errorf("open payment order for booking %d: %w", booking.ID, err)
	}
	booking.OrderID = null.StringFrom(order.ID)
	booking.Version++

	metrics.IncBookingCreated(string(booking.VehicleType))
	s.publishEvent(events.EventBookingCreated, booking, "user")
	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("location_id", loc.ID).
		Str("vehicle_type", string(booking.VehicleType)).
		Float64("final_amount", booking.FinalAmount).
		Msg("booking created")

	return booking, &models.PaymentDetails{
		OrderID:  order.ID,
		Amount:   quote.FinalAmount,
		Currency: s.opts.Currency,
		KeyID:    s.gateway.KeyID(),
	}, nil
}

func (s *BookingService) checkRateLimit(ctx context.Context, userID int64) error {
	if s.locks == nil || s.opts.MaxCreatesPerWindow <= 0 {
		return nil
	}
	allowed, err := s.locks.CheckRateLimit(ctx, repository.RateLimitKey(userID), s.opts.MaxCreatesPerWindow, s.opts.CreateWindow)
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("rate limit check failed, allowing request")
		return nil
	}
	if !allowed {
		metrics.IncBookingRejected("rate_limited")
		return domain.ErrRateLimited
	}
	return nil
}

// insertLocked holds the (location, vehicle type) lock while the store
// re-counts active bookings and inserts.
func (s *BookingService) insertLocked(ctx context.Context, booking *models.Booking) error {
	if s.locks == nil {
		return s.bookings.CreateBookingWithLock(ctx, booking)
	}

	key := repository.SlotLockKey(booking.LocationID, booking.VehicleType)
	token, err := s.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.locks.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to release slot lock")
		}
	}()

	return s.bookings.CreateBookingWithLock(ctx, booking)
}

func (s *BookingService) acquire(ctx context.Context, key string) (string, error) {
	for attempt := 1; ; attempt++ {
		token, err := s.locks.AcquireLock(ctx, key, s.opts.LockTTL)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, domain.ErrSlotBusy) || attempt == lockAttempts {
			return "", err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(lockRetryDelay * time.Duration(attempt)):
		}
	}
}

func (s *BookingService) abandon(bookingID int64, cause error) {
	s.logger.Error().Err(cause).Int64("booking_id", bookingID).Msg("payment order failed, releasing booking")
	if err := s.bookings.AbandonBooking(context.Background(), bookingID); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("failed to release booking")
	}
}

func (s *BookingService) reject(err error) {
	var capErr *domain.CapacityError
	switch {
	case errors.As(err, &capErr) && !capErr.Configured:
		metrics.IncBookingRejected("not_configured")
	case errors.As(err, &capErr):
		metrics.IncBookingRejected("full")
	case errors.Is(err, domain.ErrSlotBusy):
		metrics.IncBookingRejected("slot_busy")
	case errors.Is(err, domain.ErrLocationNotFound):
		metrics.IncBookingRejected("location_not_found")
	default:
		metrics.IncBookingRejected("error")
	}
}

// CancelBooking lets the owner cancel an active booking. The slot becomes
// available again because the booking stops counting as active.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, userID int64) (*models.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, domain.ErrNotBookingOwner
	}
	if booking.BookingStatus != models.BookingActive {
		return nil, &domain.BookingStatusError{Status: booking.BookingStatus}
	}

	err = s.bookings.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, models.BookingCancelled)
	if errors.Is(err, domain.ErrConcurrentModification) {
		// Lost a race with the sweeper or a payment callback; report the
		// status the booking ended up in when it is no longer active.
		current, getErr := s.bookings.GetBooking(ctx, bookingID)
		if getErr == nil && current.BookingStatus != models.BookingActive {
			return nil, &domain.BookingStatusError{Status: current.BookingStatus}
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	booking.BookingStatus = models.BookingCancelled
	booking.Version++
	booking.UpdatedAt = s.now().UTC()
	s.publishEvent(events.EventBookingCancelled, booking, "user")
	return booking, nil
}

// DeleteBooking removes a booking record. Configured capacity is not touched.
func (s *BookingService) DeleteBooking(ctx context.Context, bookingID int64) error {
	booking, err := s.bookings.DeleteBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	s.publishEvent(events.EventBookingDeleted, booking, "admin")
	s.logger.Info().Int64("booking_id", bookingID).Msg("booking deleted")
	return nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.BookingDetails, error) {
	return s.bookings.GetBookingDetails(ctx, id)
}

func (s *BookingService) ListBookings(ctx context.Context) ([]*models.BookingDetails, error) {
	return s.bookings.ListBookings(ctx)
}

func (s *BookingService) ListUserBookings(ctx context.Context, userID int64) ([]*models.BookingDetails, error) {
	return s.bookings.ListUserBookings(ctx, userID)
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, changedBy string) {
	publishBookingEvent(s.eventBus, s.logger, eventType, booking, changedBy)
}

func publishBookingEvent(bus domain.EventPublisher, logger *zerolog.Logger, eventType string, booking *models.Booking, changedBy string) {
	if bus == nil {
		return
	}
	if err := bus.PublishJSON(eventType, events.PayloadFromBooking(booking, changedBy)); err != nil {
		logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
