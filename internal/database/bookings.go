package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gopkg.in/guregu/null.v4"

	"parkspot/internal/domain"
	"parkspot/internal/models"
)

const bookingColumns = `b.id, b.user_id, b.location_id, b.vehicle_type, b.vehicle_number, b.driver_license,
        b.hours, b.start_time, b.end_time, b.total_amount, b.discount_applied, b.final_amount,
        b.payment_status, b.booking_status, b.order_id, b.payment_id, b.signature,
        b.created_at, b.updated_at, b.version`

const detailColumns = bookingColumns + `,
        u.id, u.username, u.email, u.phone,
        l.id, l.name, l.address, l.city, l.state`

const detailJoins = ` FROM bookings b
        LEFT JOIN users u ON u.id = b.user_id
        LEFT JOIN parking_locations l ON l.id = b.location_id`

func bookingDest(b *models.Booking, vt *string) []any {
	return []any{
		&b.ID, &b.UserID, &b.LocationID, vt, &b.VehicleNumber, &b.DriverLicense,
		&b.Hours, &b.StartTime, &b.EndTime, &b.TotalAmount, &b.DiscountApplied, &b.FinalAmount,
		&b.PaymentStatus, &b.BookingStatus, &b.OrderID, &b.PaymentID, &b.Signature,
		&b.CreatedAt, &b.UpdatedAt, &b.Version,
	}
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	b := &models.Booking{}
	var vt string
	if err := row.Scan(bookingDest(b, &vt)...); err != nil {
		return nil, err
	}
	b.VehicleType = models.VehicleType(vt)
	return b, nil
}

func scanBookingDetails(row rowScanner) (*models.BookingDetails, error) {
	d := &models.BookingDetails{}
	var (
		vt                                     string
		userID, locID                          null.Int
		username, email, phone                 null.String
		locName, locAddress, locCity, locState null.String
	)
	dest := append(bookingDest(&d.Booking, &vt),
		&userID, &username, &email, &phone,
		&locID, &locName, &locAddress, &locCity, &locState)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	d.VehicleType = models.VehicleType(vt)
	if userID.Valid {
		d.User = &models.UserSummary{
			ID:       userID.Int64,
			Username: username.String,
			Email:    email.String,
			Phone:    phone.String,
		}
	}
	if locID.Valid {
		d.Location = &models.LocationSummary{
			ID:      locID.Int64,
			Name:    locName.String,
			Address: locAddress.String,
			City:    locCity.String,
			State:   locState.String,
		}
	}
	return d, nil
}

// CreateBookingWithLock re-checks capacity and inserts the booking inside one
// write transaction, so two reservations can never share the last slot.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var total int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT total FROM location_slots WHERE location_id = l.id AND vehicle_type = ?), 0)
         FROM parking_locations l WHERE l.id = ?`,
		string(booking.VehicleType), booking.LocationID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrLocationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read slot capacity in tx: %w", err)
	}
	if total <= 0 {
		return &domain.CapacityError{VehicleType: booking.VehicleType}
	}

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE location_id = ? AND vehicle_type = ? AND booking_status = ?`,
		booking.LocationID, string(booking.VehicleType), models.BookingActive).Scan(&active)
	if err != nil {
		return fmt.Errorf("failed to count active bookings in tx: %w", err)
	}
	if active >= total {
		return &domain.CapacityError{VehicleType: booking.VehicleType, Configured: true}
	}

	now := time.Now().UTC()
	if booking.BookingStatus == "" {
		booking.BookingStatus = models.BookingActive
	}
	if booking.PaymentStatus == "" {
		booking.PaymentStatus = models.PaymentPending
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (
            user_id, location_id, vehicle_type, vehicle_number, driver_license, hours,
            start_time, end_time, total_amount, discount_applied, final_amount,
            payment_status, booking_status, order_id, created_at, updated_at, version
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		booking.UserID, booking.LocationID, string(booking.VehicleType), booking.VehicleNumber,
		booking.DriverLicense, booking.Hours, booking.StartTime.UTC(), booking.EndTime.UTC(),
		booking.TotalAmount, booking.DiscountApplied, booking.FinalAmount,
		booking.PaymentStatus, booking.BookingStatus, booking.OrderID, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id in tx: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := scanBooking(db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func (db *DB) GetBookingDetails(ctx context.Context, id int64) (*models.BookingDetails, error) {
	d, err := scanBookingDetails(db.QueryRowContext(ctx, `SELECT `+detailColumns+detailJoins+` WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking details: %w", err)
	}
	return d, nil
}

// ListBookings returns every booking, newest first.
func (db *DB) ListBookings(ctx context.Context) ([]*models.BookingDetails, error) {
	return db.queryDetails(ctx, ` ORDER BY b.created_at DESC, b.id DESC`)
}

func (db *DB) ListUserBookings(ctx context.Context, userID int64) ([]*models.BookingDetails, error) {
	return db.queryDetails(ctx, ` WHERE b.user_id = ? ORDER BY b.created_at DESC, b.id DESC`, userID)
}

func (db *DB) queryDetails(ctx context.Context, tail string, args ...any) ([]*models.BookingDetails, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+detailColumns+detailJoins+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	out := []*models.BookingDetails{}
	for rows.Next() {
		d, err := scanBookingDetails(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (db *DB) queryBookings(ctx context.Context, tail string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings b `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var out []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (db *DB) AttachPaymentOrder(ctx context.Context, id int64, orderID string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE bookings SET order_id = ?, version = version + 1, updated_at = ? WHERE id = ?`,
		orderID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to attach payment order: %w", err)
	}
	return expectRow(res, domain.ErrBookingNotFound)
}

// AbandonBooking releases the slot of a booking whose payment order could not be created.
func (db *DB) AbandonBooking(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE bookings SET booking_status = ?, payment_status = ?, version = version + 1, updated_at = ?
         WHERE id = ? AND booking_status = ?`,
		models.BookingCancelled, models.PaymentFailed, time.Now().UTC(), id, models.BookingActive)
	if err != nil {
		return fmt.Errorf("failed to abandon booking: %w", err)
	}
	return expectRow(res, domain.ErrBookingNotFound)
}

func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE bookings SET booking_status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`,
		status, time.Now().UTC(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	return expectRow(res, domain.ErrConcurrentModification)
}

// DeleteBooking removes a booking and returns the row as it was.
func (db *DB) DeleteBooking(ctx context.Context, id int64) (*models.Booking, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	b, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to delete booking: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit booking delete: %w", err)
	}
	return b, nil
}

// MarkPaymentCompleted stores the gateway identifiers and marks the payment
// completed. The booking status is left alone. A cancelled booking no longer
// holds a slot, so it only accepts a repeat of the payment it already recorded;
// anything else yields a BookingStatusError.
func (db *DB) MarkPaymentCompleted(ctx context.Context, cb models.PaymentCallback) error {
	res, err := db.ExecContext(ctx,
		`UPDATE bookings SET order_id = ?, payment_id = ?, signature = ?, payment_status = ?,
             version = version + 1, updated_at = ?
         WHERE id = ? AND (booking_status != ? OR (payment_status = ? AND payment_id = ?))`,
		cb.OrderID, cb.PaymentID, cb.Signature, models.PaymentCompleted, time.Now().UTC(), cb.BookingID,
		models.BookingCancelled, models.PaymentCompleted, cb.PaymentID)
	if err != nil {
		return fmt.Errorf("failed to mark payment completed: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var status string
	err = db.QueryRowContext(ctx, `SELECT booking_status FROM bookings WHERE id = ?`, cb.BookingID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrBookingNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read booking status: %w", err)
	}
	return &domain.BookingStatusError{Status: status}
}

// ListExpiredActiveBookings returns active bookings whose end time is at or before now.
func (db *DB) ListExpiredActiveBookings(ctx context.Context, now time.Time, limit int) ([]*models.Booking, error) {
	return db.queryBookings(ctx, `WHERE b.booking_status = ? AND b.end_time <= ? ORDER BY b.end_time, b.id LIMIT ?`,
		models.BookingActive, now.UTC(), limit)
}

// ListStalePendingBookings returns active bookings still awaiting payment that
// were created at or before createdBefore.
func (db *DB) ListStalePendingBookings(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Booking, error) {
	return db.queryBookings(ctx,
		`WHERE b.booking_status = ? AND b.payment_status = ? AND b.created_at <= ? ORDER BY b.created_at, b.id LIMIT ?`,
		models.BookingActive, models.PaymentPending, createdBefore.UTC(), limit)
}

func (db *DB) CompleteBooking(ctx context.Context, id, fromVersion int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE bookings SET booking_status = ?, version = version + 1, updated_at = ?
         WHERE id = ? AND version = ? AND booking_status = ?`,
		models.BookingCompleted, time.Now().UTC(), id, fromVersion, models.BookingActive)
	if err != nil {
		return fmt.Errorf("failed to complete booking: %w", err)
	}
	return expectRow(res, domain.ErrConcurrentModification)
}

func (db *DB) ExpireUnpaidBooking(ctx context.Context, id, fromVersion int64) error {
	res, err := db.ExecContext(ctx,
		`UPDATE bookings SET booking_status = ?, payment_status = ?, version = version + 1, updated_at = ?
         WHERE id = ? AND version = ? AND booking_status = ? AND payment_status = ?`,
		models.BookingCancelled, models.PaymentFailed, time.Now().UTC(), id, fromVersion,
		models.BookingActive, models.PaymentPending)
	if err != nil {
		return fmt.Errorf("failed to expire unpaid booking: %w", err)
	}
	return expectRow(res, domain.ErrConcurrentModification)
}

func expectRow(res sql.Result, missing error) error {
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
