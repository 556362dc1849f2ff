package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"parkspot/internal/models"
)

func (db *DB) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return n, nil
}

func (db *DB) CountUsers(ctx context.Context) (int, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM users`)
}

func (db *DB) CountLocations(ctx context.Context) (int, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM parking_locations`)
}

func (db *DB) CountActiveBookings(ctx context.Context) (int, error) {
	return db.count(ctx, `SELECT COUNT(*) FROM bookings WHERE booking_status = ?`, models.BookingActive)
}

// SumCompletedRevenue adds up the final amount of every paid booking.
func (db *DB) SumCompletedRevenue(ctx context.Context) (float64, error) {
	var total float64
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(final_amount), 0) FROM bookings WHERE payment_status = ?`,
		models.PaymentCompleted).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return total, nil
}

func (db *DB) CountBookingsByVehicleType(ctx context.Context) ([]models.VehicleTypeCount, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT vehicle_type, COUNT(*) FROM bookings GROUP BY vehicle_type ORDER BY COUNT(*) DESC, vehicle_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to group bookings: %w", err)
	}
	defer rows.Close()

	out := []models.VehicleTypeCount{}
	for rows.Next() {
		var (
			vt string
			c  models.VehicleTypeCount
		)
		if err := rows.Scan(&vt, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle type count: %w", err)
		}
		c.VehicleType = models.VehicleType(vt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (db *DB) RecentBookings(ctx context.Context, limit int) ([]*models.BookingDetails, error) {
	return db.queryDetails(ctx, ` ORDER BY b.created_at DESC, b.id DESC LIMIT ?`, limit)
}

// CompletedRevenueSince totals paid bookings created at or after since, per
// calendar month (UTC), oldest month first.
func (db *DB) CompletedRevenueSince(ctx context.Context, since time.Time) ([]models.MonthlyRevenue, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT created_at, final_amount FROM bookings WHERE payment_status = ? AND created_at >= ?`,
		models.PaymentCompleted, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to load revenue: %w", err)
	}
	defer rows.Close()

	type month struct{ year, month int }
	totals := make(map[month]float64)
	for rows.Next() {
		var (
			createdAt time.Time
			amount    float64
		)
		if err := rows.Scan(&createdAt, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan revenue: %w", err)
		}
		createdAt = createdAt.UTC()
		totals[month{createdAt.Year(), int(createdAt.Month())}] += amount
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.MonthlyRevenue, 0, len(totals))
	for m, total := range totals {
		out = append(out, models.MonthlyRevenue{Year: m.year, Month: m.month, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}
