package database

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"

	"parkspot/internal/domain"
	"parkspot/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createTestLocation(t *testing.T, db *DB, carTotal int) *models.ParkingLocation {
	t.Helper()
	loc := &models.ParkingLocation{
		Name:       "Central Plaza",
		Address:    "1 MG Road",
		State:      "Karnataka",
		City:       "Bengaluru",
		TotalSlots: carTotal + 2,
		Slots: map[models.VehicleType]models.SlotConfig{
			models.VehicleCar:        {Total: carTotal, HourlyRate: 50},
			models.VehicleTwoWheeler: {Total: 2, HourlyRate: 20},
		},
	}
	require.NoError(t, db.CreateLocation(context.Background(), loc))
	return loc
}

func newTestBooking(loc *models.ParkingLocation, userID int64, vt models.VehicleType, start time.Time, hours int) *models.Booking {
	rate := loc.Slot(vt).HourlyRate
	return &models.Booking{
		UserID:        userID,
		LocationID:    loc.ID,
		VehicleType:   vt,
		VehicleNumber: "KA01AB1234",
		DriverLicense: "DL-0420110012345",
		Hours:         hours,
		StartTime:     start,
		EndTime:       models.EndTimeFor(start, hours),
		TotalAmount:   rate * float64(hours),
		FinalAmount:   rate * float64(hours),
	}
}

func TestCreateBookingWithLock(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	loc := createTestLocation(t, db, 2)
	start := time.Now().UTC().Add(time.Hour)

	b := newTestBooking(loc, 1, models.VehicleCar, start, 2)
	require.NoError(t, db.CreateBookingWithLock(ctx, b))
	assert.NotZero(t, b.ID)
	assert.Equal(t, int64(1), b.Version)
	assert.Equal(t, models.BookingActive, b.BookingStatus)
	assert.Equal(t, models.PaymentPending, b.PaymentStatus)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleCar, got.VehicleType)
	assert.Equal(t, 2, got.Hours)
	assert.True(t, got.EndTime.Equal(b.EndTime))
	assert.False(t, got.OrderID.Valid)

	t.Run("FullCategory", func(t *testing.T) {
		require.NoError(t, db.CreateBookingWithLock(ctx, newTestBooking(loc, 2, models.VehicleCar, start, 1)))
		err := db.CreateBookingWithLock(ctx, newTestBooking(loc, 3, models.VehicleCar, start, 1))
		var capErr *domain.CapacityError
		require.ErrorAs(t, err, &capErr)
		assert.True(t, capErr.Configured)
		assert.ErrorIs(t, err, domain.ErrNoCapacity)
	})

	t.Run("UnconfiguredCategory", func(t *testing.T) {
		err := db.CreateBookingWithLock(ctx, newTestBooking(loc, 1, models.VehicleTruck, start, 1))
		var capErr *domain.CapacityError
		require.ErrorAs(t, err, &capErr)
		assert.False(t, capErr.Configured)
	})

	t.Run("UnknownLocation", func(t *testing.T) {
		missing := &models.ParkingLocation{ID: 999}
		err := db.CreateBookingWithLock(ctx, newTestBooking(missing, 1, models.VehicleCar, start, 1))
		assert.ErrorIs(t, err, domain.ErrLocationNotFound)
	})

	t.Run("ConfiguredTotalUnchanged", func(t *testing.T) {
		reloaded, err := db.GetLocation(ctx, loc.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, reloaded.Slot(models.VehicleCar).Total)
	})
}

func TestBookingTransitions(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	loc := createTestLocation(t, db, 1)

	b := newTestBooking(loc, 1, models.VehicleCar, time.Now().UTC(), 1)
	require.NoError(t, db.CreateBookingWithLock(ctx, b))

	require.NoError(t, db.AttachPaymentOrder(ctx, b.ID, "order_abc"))
	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, null.StringFrom("order_abc"), got.OrderID)
	assert.Equal(t, int64(2), got.Version)

	// A stale version loses.
	err = db.UpdateBookingStatusWithVersion(ctx, b.ID, 1, models.BookingCancelled)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, b.ID, got.Version, models.BookingCancelled))
	counts, err := db.CountActiveBySlot(ctx, loc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, counts[models.VehicleCar])

	// The freed slot can be booked again.
	require.NoError(t, db.CreateBookingWithLock(ctx, newTestBooking(loc, 2, models.VehicleCar, time.Now().UTC(), 1)))
}

func TestAbandonBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	loc := createTestLocation(t, db, 1)

	b := newTestBooking(loc, 1, models.VehicleCar, time.Now().UTC(), 1)
	require.NoError(t, db.CreateBookingWithLock(ctx, b))
	require.NoError(t, db.AbandonBooking(ctx, b.ID))

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, got.BookingStatus)
	assert.Equal(t, models.PaymentFailed, got.PaymentStatus)

	assert.ErrorIs(t, db.AbandonBooking(ctx, b.ID), domain.ErrBookingNotFound)
}

func TestMarkPaymentCompleted(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	loc := createTestLocation(t, db, 1)

	b := newTestBooking(loc, 1, models.VehicleCar, time.Now().UTC(), 1)
	require.NoError(t, db.CreateBookingWithLock(ctx, b))

	cb := models.PaymentCallback{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig", BookingID: b.ID}
	require.NoError(t, db.MarkPaymentCompleted(ctx, cb))
	// Repeating the callback is harmless.
	require.NoError(t, db.MarkPaymentCompleted(ctx, cb))

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, got.PaymentStatus)
	assert.Equal(t, models.BookingActive, got.BookingStatus)
	assert.Equal(t, "pay_1", got.PaymentID.String)
	assert.Equal(t, "sig", got.Signature.String)

	cb.BookingID = 404
	assert.ErrorIs(t, db.MarkPaymentCompleted(ctx, cb), domain.ErrBookingNotFound)
}

func TestMarkPaymentCompleted_CancelledBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	loc := createTestLocation(t, db, 1)

	t.Run("ExpiredBeforeCallback", func(t *testing.T) {
		stale := newTestBooking(loc, 1, models.VehicleCar, time.Now().UTC(), 1)
		require.NoError(t, db.CreateBookingWithLock(ctx, stale))
		require.NoError(t, db.AttachPaymentOrder(ctx, stale.ID, "order_stale"))
		current, err := db.GetBooking(ctx, stale.ID)
		require.NoError(t, err)
		require.NoError(t, db.ExpireUnpaidBooking(ctx, stale.ID, current.Version))

		// The freed slot goes to someone else before the late callback arrives.
		other := newTestBooking(loc, 2, models.VehicleCar, time.Now().UTC(), 1)
		require.NoError(t, db.CreateBookingWithLock(ctx, other))

		err = db.MarkPaymentCompleted(ctx, models.PaymentCallback{
			OrderID: "order_stale", PaymentID: "pay_late", Signature: "sig", BookingID: stale.ID,
		})
		var statusErr *domain.BookingStatusError
		require.True(t, errors.As(err, &statusErr), "got %v", err)
		assert.Equal(t, models.BookingCancelled, statusErr.Status)

		got, err := db.GetBooking(ctx, stale.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentFailed, got.PaymentStatus)
		assert.False(t, got.PaymentID.Valid)

		require.NoError(t, db.AbandonBooking(ctx, other.ID))
	})

	t.Run("PaidThenCancelledRepeatsCallback", func(t *testing.T) {
		b := newTestBooking(loc, 3, models.VehicleCar, time.Now().UTC(), 1)
		require.NoError(t, db.CreateBookingWithLock(ctx, b))
		cb := models.PaymentCallback{OrderID: "order_3", PaymentID: "pay_3", Signature: "sig", BookingID: b.ID}
		require.NoError(t, db.MarkPaymentCompleted(ctx, cb))

		current, err := db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, b.ID, current.Version, models.BookingCancelled))

		require.NoError(t, db.MarkPaymentCompleted(ctx, cb))

		cb.PaymentID = "pay_other"
		var statusErr *domain.BookingStatusError
		assert.True(t, errors.As(db.MarkPaymentCompleted(ctx, cb), &statusErr))
	})
}

func TestDeleteBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	loc := createTestLocation(t, db, 3)

	b := newTestBooking(loc, 1, models.VehicleCar, time.Now().UTC(), 1)
	require.NoError(t, db.CreateBookingWithLock(ctx, b))

	deleted, err := db.DeleteBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, deleted.ID)

	_, err = db.GetBooking(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)

	_, err = db.DeleteBooking(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)

	reloaded, err := db.GetLocation(ctx, loc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Slot(models.VehicleCar).Total)
}

func TestBookingDetailsAndListing(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	loc := createTestLocation(t, db, 5)

	user := &models.User{Username: "asha", Email: "asha@example.com", PasswordHash: "x", Phone: "9876543210", State: "KA", City: "Blr"}
	require.NoError(t, db.CreateUser(ctx, user))

	first := newTestBooking(loc, user.ID, models.VehicleCar, time.Now().UTC(), 1)
	require.NoError(t, db.CreateBookingWithLock(ctx, first))
	second := newTestBooking(loc, user.ID, models.VehicleTwoWheeler, time.Now().UTC(), 3)
	require.NoError(t, db.CreateBookingWithLock(ctx, second))
	orphan := newTestBooking(loc, 777, models.VehicleCar, time.Now().UTC(), 1)
	require.NoError(t, db.CreateBookingWithLock(ctx, orphan))

	d, err := db.GetBookingDetails(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, d.User)
	require.NotNil(t, d.Location)
	assert.Equal(t, "asha", d.User.Username)
	assert.Equal(t, "Central Plaza", d.Location.Name)

	all, err := db.ListBookings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, orphan.ID, all[0].ID)
	assert.Nil(t, all[0].User)

	mine, err := db.ListUserBookings(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID)

	none, err := db.ListUserBookings(ctx, 12345)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.NotNil(t, none)

	_, err = db.GetBookingDetails(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestSweepQueries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	loc := createTestLocation(t, db, 5)
	now := time.Now().UTC()

	past := newTestBooking(loc, 1, models.VehicleCar, now.Add(-3*time.Hour), 2)
	require.NoError(t, db.CreateBookingWithLock(ctx, past))
	future := newTestBooking(loc, 1, models.VehicleCar, now, 4)
	require.NoError(t, db.CreateBookingWithLock(ctx, future))

	expired, err := db.ListExpiredActiveBookings(ctx, now, 100)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, past.ID, expired[0].ID)

	require.NoError(t, db.CompleteBooking(ctx, past.ID, expired[0].Version))
	assert.ErrorIs(t, db.CompleteBooking(ctx, past.ID, expired[0].Version), domain.ErrConcurrentModification)

	expired, err = db.ListExpiredActiveBookings(ctx, now, 100)
	require.NoError(t, err)
	assert.Empty(t, expired)

	stale, err := db.ListStalePendingBookings(ctx, now.Add(time.Minute), 100)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, future.ID, stale[0].ID)

	require.NoError(t, db.ExpireUnpaidBooking(ctx, future.ID, stale[0].Version))
	got, err := db.GetBooking(ctx, future.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, got.BookingStatus)
	assert.Equal(t, models.PaymentFailed, got.PaymentStatus)

	stale, err = db.ListStalePendingBookings(ctx, now.Add(time.Minute), 100)
	require.NoError(t, err)
	assert.Empty(t, stale)
}
