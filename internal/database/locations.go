package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkspot/internal/domain"
	"parkspot/internal/models"
)

func (db *DB) CreateLocation(ctx context.Context, loc *models.ParkingLocation) error {
	loc.Normalize()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO parking_locations (name, address, state, city, total_slots, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		loc.Name, loc.Address, loc.State, loc.City, loc.TotalSlots, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert location: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	if err := upsertSlots(ctx, tx, id, loc.Slots); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit location: %w", err)
	}

	loc.ID = id
	loc.CreatedAt = now
	loc.UpdatedAt = now
	return nil
}

func (db *DB) UpdateLocation(ctx context.Context, loc *models.ParkingLocation) error {
	loc.Normalize()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE parking_locations
         SET name = ?, address = ?, state = ?, city = ?, total_slots = ?, updated_at = ?
         WHERE id = ?`,
		loc.Name, loc.Address, loc.State, loc.City, loc.TotalSlots, now, loc.ID)
	if err != nil {
		return fmt.Errorf("failed to update location: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrLocationNotFound
	}

	if err := upsertSlots(ctx, tx, loc.ID, loc.Slots); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit location: %w", err)
	}

	var createdAt time.Time
	if err := db.QueryRowContext(ctx, `SELECT created_at FROM parking_locations WHERE id = ?`, loc.ID).Scan(&createdAt); err == nil {
		loc.CreatedAt = createdAt
	}
	loc.UpdatedAt = now
	return nil
}

func upsertSlots(ctx context.Context, tx *sql.Tx, locationID int64, slots map[models.VehicleType]models.SlotConfig) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO location_slots (location_id, vehicle_type, total, hourly_rate) VALUES (?, ?, ?, ?)
         ON CONFLICT(location_id, vehicle_type) DO UPDATE SET total = excluded.total, hourly_rate = excluded.hourly_rate`)
	if err != nil {
		return fmt.Errorf("failed to prepare slot upsert: %w", err)
	}
	defer stmt.Close()

	for _, vt := range models.VehicleTypes {
		cfg := slots[vt]
		if _, err := stmt.ExecContext(ctx, locationID, string(vt), cfg.Total, cfg.HourlyRate); err != nil {
			return fmt.Errorf("failed to save %s slots: %w", vt, err)
		}
	}
	return nil
}

// DeleteLocation removes a location together with its slot rows and every
// booking made against it.
func (db *DB) DeleteLocation(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM parking_locations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrLocationNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM location_slots WHERE location_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete location slots: %w", err)
	}
	res, err = tx.ExecContext(ctx, `DELETE FROM bookings WHERE location_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete location bookings: %w", err)
	}
	removed, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit location delete: %w", err)
	}
	db.logger.Info().Int64("location_id", id).Int64("bookings_removed", removed).Msg("location deleted")
	return nil
}

const locationColumns = `id, name, address, state, city, total_slots, created_at, updated_at`

func scanLocation(row rowScanner) (*models.ParkingLocation, error) {
	loc := &models.ParkingLocation{}
	if err := row.Scan(&loc.ID, &loc.Name, &loc.Address, &loc.State, &loc.City,
		&loc.TotalSlots, &loc.CreatedAt, &loc.UpdatedAt); err != nil {
		return nil, err
	}
	return loc, nil
}

func (db *DB) GetLocation(ctx context.Context, id int64) (*models.ParkingLocation, error) {
	loc, err := scanLocation(db.QueryRowContext(ctx,
		`SELECT `+locationColumns+` FROM parking_locations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrLocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location: %w", err)
	}

	slots, err := db.loadSlots(ctx, `WHERE location_id = ?`, id)
	if err != nil {
		return nil, err
	}
	loc.Slots = slots[id]
	loc.Normalize()
	return loc, nil
}

// GetLocationByName returns the most recently created location with this name.
func (db *DB) GetLocationByName(ctx context.Context, name string) (*models.ParkingLocation, error) {
	var id int64
	err := db.QueryRowContext(ctx,
		`SELECT id FROM parking_locations WHERE name = ? ORDER BY id DESC LIMIT 1`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrLocationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find location by name: %w", err)
	}
	return db.GetLocation(ctx, id)
}

// ListLocations returns all locations, newest first.
func (db *DB) ListLocations(ctx context.Context) ([]*models.ParkingLocation, error) {
	locations, err := db.queryLocations(ctx)
	if err != nil {
		return nil, err
	}
	slots, err := db.loadSlots(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, loc := range locations {
		loc.Slots = slots[loc.ID]
		loc.Normalize()
	}
	return locations, nil
}

func (db *DB) queryLocations(ctx context.Context) ([]*models.ParkingLocation, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+locationColumns+` FROM parking_locations ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locations []*models.ParkingLocation
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

func (db *DB) loadSlots(ctx context.Context, where string, args ...any) (map[int64]map[models.VehicleType]models.SlotConfig, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT location_id, vehicle_type, total, hourly_rate FROM location_slots `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load slots: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]map[models.VehicleType]models.SlotConfig)
	for rows.Next() {
		var (
			locationID int64
			vt         string
			cfg        models.SlotConfig
		)
		if err := rows.Scan(&locationID, &vt, &cfg.Total, &cfg.HourlyRate); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		if out[locationID] == nil {
			out[locationID] = make(map[models.VehicleType]models.SlotConfig, len(models.VehicleTypes))
		}
		out[locationID][models.VehicleType(vt)] = cfg
	}
	return out, rows.Err()
}

// CountActiveBySlot returns the number of active bookings per category at a location.
func (db *DB) CountActiveBySlot(ctx context.Context, locationID int64) (map[models.VehicleType]int, error) {
	all, err := db.countActive(ctx, `AND location_id = ?`, locationID)
	if err != nil {
		return nil, err
	}
	if counts, ok := all[locationID]; ok {
		return counts, nil
	}
	return map[models.VehicleType]int{}, nil
}

func (db *DB) CountActiveBySlotAll(ctx context.Context) (map[int64]map[models.VehicleType]int, error) {
	return db.countActive(ctx, "")
}

func (db *DB) countActive(ctx context.Context, filter string, args ...any) (map[int64]map[models.VehicleType]int, error) {
	query := `SELECT location_id, vehicle_type, COUNT(*) FROM bookings
              WHERE booking_status = ? ` + filter + `
              GROUP BY location_id, vehicle_type`
	rows, err := db.QueryContext(ctx, query, append([]any{models.BookingActive}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to count active bookings: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]map[models.VehicleType]int)
	for rows.Next() {
		var (
			locationID int64
			vt         string
			count      int
		)
		if err := rows.Scan(&locationID, &vt, &count); err != nil {
			return nil, fmt.Errorf("failed to scan active count: %w", err)
		}
		if out[locationID] == nil {
			out[locationID] = make(map[models.VehicleType]int)
		}
		out[locationID][models.VehicleType(vt)] = count
	}
	return out, rows.Err()
}
