package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"parkspot/internal/domain"
	"parkspot/internal/events"
	"parkspot/internal/metrics"
	"parkspot/internal/models"
)

type PaymentService struct {
	bookings domain.BookingRepository
	gateway  domain.PaymentGateway
	verifier domain.SignatureVerifier
	eventBus domain.EventPublisher
	currency string
	logger   *zerolog.Logger
}

func NewPaymentService(
	bookings domain.BookingRepository,
	gateway domain.PaymentGateway,
	verifier domain.SignatureVerifier,
	eventBus domain.EventPublisher,
	currency string,
	logger *zerolog.Logger,
) *PaymentService {
	if currency == "" {
		currency = models.DefaultCurrency
	}
	return &PaymentService{
		bookings: bookings,
		gateway:  gateway,
		verifier: verifier,
		eventBus: eventBus,
		currency: currency,
		logger:   logger,
	}
}

// CreateOrder opens an ad-hoc gateway order; req.Amount is in major units.
func (s *PaymentService) CreateOrder(ctx context.Context, req domain.CreateOrderRequest) (*models.Order, error) {
	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}
	order, err := s.gateway.CreateOrder(ctx, models.OrderRequest{
		Amount:   MinorUnits(req.Amount),
		Currency: currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		s.logger.Error().Err(err).Float64("amount", req.Amount).Msg("create order failed")
		return nil, err
	}
	return order, nil
}

// VerifyPayment checks the checkout signature and, when it matches, records
// the payment on the booking. The booking status is left unchanged and
// repeating a verified callback is harmless.
func (s *PaymentService) VerifyPayment(ctx context.Context, cb models.PaymentCallback) error {
	if !s.verifier.Verify(cb.OrderID, cb.PaymentID, cb.Signature) {
		metrics.IncPaymentVerification("invalid_signature")
		s.logger.Warn().Int64("booking_id", cb.BookingID).Str("order_id", cb.OrderID).Msg("payment signature mismatch")
		return domain.ErrInvalidSignature
	}

	booking, err := s.bookings.GetBooking(ctx, cb.BookingID)
	if err != nil {
		s.countFailure(err)
		return err
	}
	if booking.OrderID.Valid && booking.OrderID.String != cb.OrderID {
		metrics.IncPaymentVerification("order_mismatch")
		s.logger.Warn().
			Int64("booking_id", cb.BookingID).
			Str("booking_order_id", booking.OrderID.String).
			Str("order_id", cb.OrderID).
			Msg("payment order does not match booking")
		return domain.ErrOrderMismatch
	}

	if booking.BookingStatus == models.BookingCancelled && !paidBy(booking, cb.PaymentID) {
		return s.rejectInactive(booking, cb, &domain.BookingStatusError{Status: booking.BookingStatus})
	}

	if err := s.bookings.MarkPaymentCompleted(ctx, cb); err != nil {
		var statusErr *domain.BookingStatusError
		if errors.As(err, &statusErr) {
			// Cancelled between the read above and the update.
			return s.rejectInactive(booking, cb, err)
		}
		s.countFailure(err)
		return fmt.Errorf("record payment for booking %d: %w", cb.BookingID, err)
	}
	metrics.IncPaymentVerification("verified")

	booking.OrderID.SetValid(cb.OrderID)
	booking.PaymentID.SetValid(cb.PaymentID)
	booking.Signature.SetValid(cb.Signature)
	booking.PaymentStatus = models.PaymentCompleted
	publishBookingEvent(s.eventBus, s.logger, events.EventPaymentCompleted, booking, "gateway")
	s.logger.Info().Int64("booking_id", cb.BookingID).Str("payment_id", cb.PaymentID).Msg("payment verified")
	return nil
}

func paidBy(b *models.Booking, paymentID string) bool {
	return b.PaymentStatus == models.PaymentCompleted && b.PaymentID.Valid && b.PaymentID.String == paymentID
}

// rejectInactive refuses a genuine payment for a booking that no longer holds
// its slot. The money was taken, so the rejection is published for refund.
func (s *PaymentService) rejectInactive(booking *models.Booking, cb models.PaymentCallback, cause error) error {
	metrics.IncPaymentVerification("booking_inactive")
	s.logger.Warn().
		Int64("booking_id", booking.ID).
		Str("order_id", cb.OrderID).
		Str("payment_id", cb.PaymentID).
		Msg("payment received for cancelled booking, refund required")

	rejected := *booking
	rejected.OrderID.SetValid(cb.OrderID)
	rejected.PaymentID.SetValid(cb.PaymentID)
	publishBookingEvent(s.eventBus, s.logger, events.EventPaymentRejected, &rejected, "gateway")
	return cause
}

func (s *PaymentService) countFailure(err error) {
	if errors.Is(err, domain.ErrBookingNotFound) {
		metrics.IncPaymentVerification("booking_not_found")
		return
	}
	metrics.IncPaymentVerification("error")
}
