package service

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"

	"parkspot/internal/models"
)

var testLogger = zerolog.New(io.Discard)

type mockBookingRepo struct {
	mock.Mock
}

func (m *mockBookingRepo) CreateBookingWithLock(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockBookingRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockBookingRepo) GetBookingDetails(ctx context.Context, id int64) (*models.BookingDetails, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingDetails), args.Error(1)
}
func (m *mockBookingRepo) ListBookings(ctx context.Context) ([]*models.BookingDetails, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BookingDetails), args.Error(1)
}
func (m *mockBookingRepo) ListUserBookings(ctx context.Context, userID int64) ([]*models.BookingDetails, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BookingDetails), args.Error(1)
}
func (m *mockBookingRepo) AttachPaymentOrder(ctx context.Context, id int64, orderID string) error {
	return m.Called(ctx, id, orderID).Error(0)
}
func (m *mockBookingRepo) AbandonBooking(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockBookingRepo) UpdateBookingStatusWithVersion(ctx context.Context, id, v int64, s string) error {
	return m.Called(ctx, id, v, s).Error(0)
}
func (m *mockBookingRepo) DeleteBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockBookingRepo) MarkPaymentCompleted(ctx context.Context, cb models.PaymentCallback) error {
	return m.Called(ctx, cb).Error(0)
}
func (m *mockBookingRepo) ListExpiredActiveBookings(ctx context.Context, now time.Time, limit int) ([]*models.Booking, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockBookingRepo) ListStalePendingBookings(ctx context.Context, before time.Time, limit int) ([]*models.Booking, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockBookingRepo) CompleteBooking(ctx context.Context, id, v int64) error {
	return m.Called(ctx, id, v).Error(0)
}
func (m *mockBookingRepo) ExpireUnpaidBooking(ctx context.Context, id, v int64) error {
	return m.Called(ctx, id, v).Error(0)
}

type mockLocationRepo struct {
	mock.Mock
}

func (m *mockLocationRepo) CreateLocation(ctx context.Context, loc *models.ParkingLocation) error {
	return m.Called(ctx, loc).Error(0)
}
func (m *mockLocationRepo) UpdateLocation(ctx context.Context, loc *models.ParkingLocation) error {
	return m.Called(ctx, loc).Error(0)
}
func (m *mockLocationRepo) DeleteLocation(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockLocationRepo) GetLocation(ctx context.Context, id int64) (*models.ParkingLocation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ParkingLocation), args.Error(1)
}
func (m *mockLocationRepo) ListLocations(ctx context.Context) ([]*models.ParkingLocation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ParkingLocation), args.Error(1)
}
func (m *mockLocationRepo) CountActiveBySlot(ctx context.Context, id int64) (map[models.VehicleType]int, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.VehicleType]int), args.Error(1)
}
func (m *mockLocationRepo) CountActiveBySlotAll(ctx context.Context) (map[int64]map[models.VehicleType]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]map[models.VehicleType]int), args.Error(1)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}
func (m *mockGateway) KeyID() string {
	return "rzp_test_key"
}

type mockLocks struct {
	mock.Mock
}

func (m *mockLocks) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}
func (m *mockLocks) ReleaseLock(ctx context.Context, key, token string) error {
	return m.Called(ctx, key, token).Error(0)
}
func (m *mockLocks) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

// recordingBus collects published event types.
type recordingBus struct {
	types []string
}

func (b *recordingBus) PublishJSON(eventType string, _ interface{}) error {
	b.types = append(b.types, eventType)
	return nil
}
