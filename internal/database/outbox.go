package database

import (
	"context"
	"fmt"
	"time"

	"parkspot/internal/models"
)

const outboxColumns = `id, event_id, event_type, booking_id, payload, status, retry_count,
        last_error, created_at, processed_at, next_retry_at`

func (db *DB) CreateOutboxEvent(ctx context.Context, ev *models.OutboxEvent) error {
	if ev.Status == "" {
		ev.Status = models.OutboxPending
	}
	now := time.Now().UTC()
	res, err := db.ExecContext(ctx,
		`INSERT INTO event_outbox (event_id, event_type, booking_id, payload, status, retry_count, created_at, next_retry_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.EventID, ev.EventType, ev.BookingID, ev.Payload, ev.Status, ev.RetryCount, now, ev.NextRetryAt)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	ev.ID = id
	ev.CreatedAt = now
	return nil
}

// GetPendingOutboxEvents returns events ready to publish, oldest first.
func (db *DB) GetPendingOutboxEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	return db.queryOutbox(ctx,
		`WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?) ORDER BY created_at ASC, id ASC LIMIT ?`,
		models.OutboxPending, models.OutboxRetry, time.Now().UTC(), limit)
}

func (db *DB) GetFailedOutboxEvents(ctx context.Context) ([]models.OutboxEvent, error) {
	return db.queryOutbox(ctx, `WHERE status = ? ORDER BY created_at DESC`, models.OutboxFailed)
}

func (db *DB) queryOutbox(ctx context.Context, tail string, args ...any) ([]models.OutboxEvent, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+outboxColumns+` FROM event_outbox `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var events []models.OutboxEvent
	for rows.Next() {
		var e models.OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventID, &e.EventType, &e.BookingID, &e.Payload, &e.Status,
			&e.RetryCount, &e.LastError, &e.CreatedAt, &e.ProcessedAt, &e.NextRetryAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// UpdateOutboxEventStatus moves an event to status. Retries bump the retry
// counter; terminal states stamp processed_at.
func (db *DB) UpdateOutboxEventStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}
	if nextRetryAt != nil {
		utc := nextRetryAt.UTC()
		nextRetryAt = &utc
	}

	var (
		query string
		args  []any
	)
	switch status {
	case models.OutboxRetry:
		query = `UPDATE event_outbox SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []any{status, lastError, nextRetryAt, id}
	case models.OutboxPublished, models.OutboxFailed:
		query = `UPDATE event_outbox SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []any{status, lastError, nextRetryAt, time.Now().UTC(), id}
	default:
		query = `UPDATE event_outbox SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []any{status, lastError, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update outbox event status: %w", err)
	}
	return nil
}
