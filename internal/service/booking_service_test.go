package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"parkspot/internal/domain"
	"parkspot/internal/events"
	"parkspot/internal/models"
	"parkspot/internal/repository"
)

func testLocation() *models.ParkingLocation {
	loc := &models.ParkingLocation{
		ID:         3,
		Name:       "Lake View",
		TotalSlots: 4,
		Slots: map[models.VehicleType]models.SlotConfig{
			models.VehicleCar:        {Total: 2, HourlyRate: 50},
			models.VehicleTwoWheeler: {Total: 2, HourlyRate: 20},
		},
	}
	loc.Normalize()
	return loc
}

type bookingFixture struct {
	bookings  *mockBookingRepo
	locations *mockLocationRepo
	gateway   *mockGateway
	bus       *recordingBus
	svc       *BookingService
}

func newBookingFixture(locks domain.LockStore, opts BookingOptions) *bookingFixture {
	f := &bookingFixture{
		bookings:  new(mockBookingRepo),
		locations: new(mockLocationRepo),
		gateway:   new(mockGateway),
		bus:       &recordingBus{},
	}
	if opts.Coupon.Code == "" {
		opts.Coupon = Coupon{Code: models.DefaultCouponCode, Percent: models.DefaultCouponPercent}
	}
	f.svc = NewBookingService(f.bookings, f.locations, f.gateway, locks, f.bus, opts, &testLogger)
	f.svc.now = func() time.Time { return time.UnixMilli(1767225600000) }
	return f
}

func createRequest(vt models.VehicleType, hours int, coupon string) domain.CreateBookingRequest {
	return domain.CreateBookingRequest{
		UserID:        11,
		LocationID:    3,
		VehicleType:   vt,
		VehicleNumber: "MH12AB1234",
		DriverLicense: "MH1420110012345",
		Hours:         hours,
		StartTime:     time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC),
		CouponCode:    coupon,
	}
}

func TestCreateBooking_Success(t *testing.T) {
	f := newBookingFixture(repository.NewMemoryLockStore(), BookingOptions{})
	ctx := context.Background()

	f.locations.On("GetLocation", ctx, int64(3)).Return(testLocation(), nil)
	f.locations.On("CountActiveBySlot", ctx, int64(3)).Return(map[models.VehicleType]int{models.VehicleCar: 1}, nil)
	f.bookings.On("CreateBookingWithLock", ctx, mock.AnythingOfType("*models.Booking")).
		Run(func(args mock.Arguments) {
			b := args.Get(1).(*models.Booking)
			b.ID = 9
			b.Version = 1
		}).Return(nil)
	f.gateway.On("CreateOrder", ctx, models.OrderRequest{
		Amount:   13500,
		Currency: "INR",
		Receipt:  "booking_1767225600000",
		Notes: map[string]string{
			"userId":      "11",
			"locationId":  "3",
			"vehicleType": "car",
			"bookingId":   "9",
		},
	}).Return(&models.Order{ID: "order_1", Amount: 13500, Currency: "INR"}, nil)
	f.bookings.On("AttachPaymentOrder", ctx, int64(9), "order_1").Return(nil)

	booking, details, err := f.svc.CreateBooking(ctx, createRequest(models.VehicleCar, 3, "PARK10"))
	require.NoError(t, err)

	assert.Equal(t, 150.0, booking.TotalAmount)
	assert.Equal(t, 15.0, booking.DiscountApplied)
	assert.Equal(t, 135.0, booking.FinalAmount)
	assert.Equal(t, models.BookingActive, booking.BookingStatus)
	assert.Equal(t, models.PaymentPending, booking.PaymentStatus)
	assert.True(t, booking.EndTime.Equal(time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "order_1", booking.OrderID.String)
	assert.Equal(t, int64(2), booking.Version)

	assert.Equal(t, &models.PaymentDetails{OrderID: "order_1", Amount: 135, Currency: "INR", KeyID: "rzp_test_key"}, details)
	assert.Equal(t, []string{events.EventBookingCreated}, f.bus.types)
	f.bookings.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
}

func TestCreateBooking_WithoutCoupon(t *testing.T) {
	f := newBookingFixture(nil, BookingOptions{})
	ctx := context.Background()

	f.locations.On("GetLocation", ctx, int64(3)).Return(testLocation(), nil)
	f.locations.On("CountActiveBySlot", ctx, int64(3)).Return(map[models.VehicleType]int{}, nil)
	f.bookings.On("CreateBookingWithLock", ctx, mock.Anything).Return(nil)
	f.gateway.On("CreateOrder", ctx, mock.MatchedBy(func(req models.OrderRequest) bool {
		return req.Amount == 4000
	})).Return(&models.Order{ID: "order_2"}, nil)
	f.bookings.On("AttachPaymentOrder", ctx, mock.Anything, "order_2").Return(nil)

	booking, _, err := f.svc.CreateBooking(ctx, createRequest(models.VehicleTwoWheeler, 2, "park10"))
	require.NoError(t, err)
	assert.Zero(t, booking.DiscountApplied)
	assert.Equal(t, 40.0, booking.FinalAmount)
}

func TestCreateBooking_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("LocationNotFound", func(t *testing.T) {
		f := newBookingFixture(nil, BookingOptions{})
		f.locations.On("GetLocation", ctx, int64(3)).Return(nil, domain.ErrLocationNotFound)

		_, _, err := f.svc.CreateBooking(ctx, createRequest(models.VehicleCar, 1, ""))
		assert.ErrorIs(t, err, domain.ErrLocationNotFound)
	})

	t.Run("CategoryNotConfigured", func(t *testing.T) {
		f := newBookingFixture(nil, BookingOptions{})
		f.locations.On("GetLocation", ctx, int64(3)).Return(testLocation(), nil)
		f.locations.On("CountActiveBySlot", ctx, int64(3)).Return(map[models.VehicleType]int{}, nil)

		_, _, err := f.svc.CreateBooking(ctx, createRequest(models.VehicleTruck, 1, ""))
		var capErr *domain.CapacityError
		require.ErrorAs(t, err, &capErr)
		assert.False(t, capErr.Configured)
		f.bookings.AssertNotCalled(t, "CreateBookingWithLock", mock.Anything, mock.Anything)
	})

	t.Run("CategoryFull", func(t *testing.T) {
		f := newBookingFixture(nil, BookingOptions{})
		f.locations.On("GetLocation", ctx, int64(3)).Return(testLocation(), nil)
		f.locations.On("CountActiveBySlot", ctx, int64(3)).Return(map[models.VehicleType]int{models.VehicleCar: 2}, nil)

		_, _, err := f.svc.CreateBooking(ctx, createRequest(models.VehicleCar, 1, ""))
		var capErr *domain.CapacityError
		require.ErrorAs(t, err, &capErr)
		assert.True(t, capErr.Configured)
		f.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	})

	t.Run("LostRaceInsideTransaction", func(t *testing.T) {
		f := newBookingFixture(repository.NewMemoryLockStore(), BookingOptions{})
		f.locations.On("GetLocation", ctx, int64(3)).Return(testLocation(), nil)
		f.locations.On("CountActiveBySlot", ctx, int64(3)).Return(map[models.VehicleType]int{models.VehicleCar: 1}, nil)
		f.bookings.On("CreateBookingWithLock", ctx, mock.Anything).
			Return(&domain.CapacityError{VehicleType: models.VehicleCar, Configured: true})

		_, _, err := f.svc.CreateBooking(ctx, createRequest(models.VehicleCar, 1, ""))
		assert.ErrorIs(t, err, domain.ErrNoCapacity)
		f.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	})

	t.Run("RateLimited", func(t *testing.T) {
		locks := new(mockLocks)
		f := newBookingFixture(locks, BookingOptions{MaxCreatesPerWindow: 3, CreateWindow: time.Minute})
		locks.On("CheckRateLimit", ctx, repository.RateLimitKey(11), 3, time.Minute).Return(false, nil)

		_, _, err := f.svc.CreateBooking(ctx, createRequest(models.VehicleCar, 1, ""))
		assert.ErrorIs(t, err, domain.ErrRateLimited)
		f.locations.AssertNotCalled(t, "GetLocation", mock.Anything, mock.Anything)
	})

	t.Run("SlotBusy", func(t *testing.T) {
		locks := new(mockLocks)
		f := newBookingFixture(locks, BookingOptions{LockTTL: time.Second})
		f.locations.On("GetLocation", ctx, int64(3)).Return(testLocation(), nil)
		f.locations.On("CountActiveBySlot", ctx, int64(3)).Return(map[models.VehicleType]int{}, nil)
		locks.On("AcquireLock", ctx, repository.SlotLockKey(3, models.VehicleCar), time.Second).Return("", domain.ErrSlotBusy)

		_, _, err := f.svc.CreateBooking(ctx, createRequest(models.VehicleCar, 1, ""))
		assert.ErrorIs(t, err, domain.ErrSlotBusy)
		locks.AssertNumberOfCalls(t, "AcquireLock", lockAttempts)
		f.bookings.AssertNotCalled(t, "CreateBookingWithLock", mock.Anything, mock.Anything)
	})
}

func TestCreateBooking_GatewayFailureReleasesSlot(t *testing.T) {
	locks := new(mockLocks)
	f := newBookingFixture(locks, BookingOptions{LockTTL: time.Second})
	ctx := context.Background()
	key := repository.SlotLockKey(3, models.VehicleCar)

	f.locations.On("GetLocation", ctx, int64(3)).Return(testLocation(), nil)
	f.locations.On("CountActiveBySlot", ctx, int64(3)).Return(map[models.VehicleType]int{}, nil)
	locks.On("AcquireLock", ctx, key, time.Second).Return("tok", nil).Once()
	locks.On("ReleaseLock", mock.Anything, key, "tok").Return(nil).Once()
	f.bookings.On("CreateBookingWithLock", ctx, mock.Anything).
		Run(func(args mock.Arguments) { args.Get(1).(*models.Booking).ID = 21 }).
		Return(nil)
	f.gateway.On("CreateOrder", ctx, mock.Anything).Return(nil, fmt.Errorf("%w: http 503", domain.ErrGateway))
	f.bookings.On("AbandonBooking", mock.Anything, int64(21)).Return(nil).Once()

	_, _, err := f.svc.CreateBooking(ctx, createRequest(models.VehicleCar, 1, ""))
	assert.ErrorIs(t, err, domain.ErrGateway)
	assert.Empty(t, f.bus.types)
	locks.AssertExpectations(t)
	f.bookings.AssertExpectations(t)
}

func TestCancelBooking(t *testing.T) {
	ctx := context.Background()
	active := func() *models.Booking {
		return &models.Booking{ID: 5, UserID: 11, BookingStatus: models.BookingActive, Version: 2}
	}

	t.Run("Success", func(t *testing.T) {
		f := newBookingFixture(nil, BookingOptions{})
		f.bookings.On("GetBooking", ctx, int64(5)).Return(active(), nil)
		f.bookings.On("UpdateBookingStatusWithVersion", ctx, int64(5), int64(2), models.BookingCancelled).Return(nil)

		b, err := f.svc.CancelBooking(ctx, 5, 11)
		require.NoError(t, err)
		assert.Equal(t, models.BookingCancelled, b.BookingStatus)
		assert.Equal(t, int64(3), b.Version)
		assert.Equal(t, []string{events.EventBookingCancelled}, f.bus.types)
	})

	t.Run("NotFound", func(t *testing.T) {
		f := newBookingFixture(nil, BookingOptions{})
		f.bookings.On("GetBooking", ctx, int64(5)).Return(nil, domain.ErrBookingNotFound)

		_, err := f.svc.CancelBooking(ctx, 5, 11)
		assert.ErrorIs(t, err, domain.ErrBookingNotFound)
	})

	t.Run("NotOwner", func(t *testing.T) {
		f := newBookingFixture(nil, BookingOptions{})
		f.bookings.On("GetBooking", ctx, int64(5)).Return(active(), nil)

		_, err := f.svc.CancelBooking(ctx, 5, 99)
		assert.ErrorIs(t, err, domain.ErrNotBookingOwner)
	})

	t.Run("AlreadyCancelled", func(t *testing.T) {
		f := newBookingFixture(nil, BookingOptions{})
		b := active()
		b.BookingStatus = models.BookingCancelled
		f.bookings.On("GetBooking", ctx, int64(5)).Return(b, nil)

		_, err := f.svc.CancelBooking(ctx, 5, 11)
		var statusErr *domain.BookingStatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, models.BookingCancelled, statusErr.Status)
	})

	t.Run("CompletedBySweeperMeanwhile", func(t *testing.T) {
		f := newBookingFixture(nil, BookingOptions{})
		completed := active()
		completed.BookingStatus = models.BookingCompleted
		f.bookings.On("GetBooking", ctx, int64(5)).Return(active(), nil).Once()
		f.bookings.On("UpdateBookingStatusWithVersion", ctx, int64(5), int64(2), models.BookingCancelled).
			Return(domain.ErrConcurrentModification)
		f.bookings.On("GetBooking", ctx, int64(5)).Return(completed, nil).Once()

		_, err := f.svc.CancelBooking(ctx, 5, 11)
		var statusErr *domain.BookingStatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, models.BookingCompleted, statusErr.Status)
	})

	t.Run("ConflictStillActive", func(t *testing.T) {
		f := newBookingFixture(nil, BookingOptions{})
		f.bookings.On("GetBooking", ctx, int64(5)).Return(active(), nil)
		f.bookings.On("UpdateBookingStatusWithVersion", ctx, int64(5), int64(2), models.BookingCancelled).
			Return(domain.ErrConcurrentModification)

		_, err := f.svc.CancelBooking(ctx, 5, 11)
		assert.ErrorIs(t, err, domain.ErrConcurrentModification)
	})
}

func TestDeleteBooking(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture(nil, BookingOptions{})
	f.bookings.On("DeleteBooking", ctx, int64(8)).Return(&models.Booking{ID: 8}, nil).Once()
	f.bookings.On("DeleteBooking", ctx, int64(9)).Return(nil, domain.ErrBookingNotFound).Once()

	require.NoError(t, f.svc.DeleteBooking(ctx, 8))
	assert.ErrorIs(t, f.svc.DeleteBooking(ctx, 9), domain.ErrBookingNotFound)
	assert.Equal(t, []string{events.EventBookingDeleted}, f.bus.types)
}

func TestBookingQueries(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture(nil, BookingOptions{})
	details := []*models.BookingDetails{{Booking: models.Booking{ID: 1}}}
	f.bookings.On("ListBookings", ctx).Return(details, nil)
	f.bookings.On("ListUserBookings", ctx, int64(11)).Return(details, nil)
	f.bookings.On("GetBookingDetails", ctx, int64(1)).Return(details[0], nil)
	f.bookings.On("GetBookingDetails", ctx, int64(2)).Return(nil, errors.New("boom"))

	all, err := f.svc.ListBookings(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	mine, err := f.svc.ListUserBookings(ctx, 11)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	one, err := f.svc.GetBooking(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), one.ID)

	_, err = f.svc.GetBooking(ctx, 2)
	assert.Error(t, err)
}
