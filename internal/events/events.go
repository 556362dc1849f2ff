package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"parkspot/internal/models"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingCancelled = "booking_cancelled"
	EventBookingCompleted = "booking_completed"
	EventBookingExpired   = "booking_expired"
	EventBookingDeleted   = "booking_deleted"
	EventPaymentCompleted = "payment_completed"
	// EventPaymentRejected is a verified payment for a booking that no longer
	// holds a slot; consumers refund it.
	EventPaymentRejected = "payment_rejected"
)

// AllBookingEvents lists every event type emitted by the booking lifecycle.
var AllBookingEvents = []string{
	EventBookingCreated,
	EventBookingCancelled,
	EventBookingCompleted,
	EventBookingExpired,
	EventBookingDeleted,
	EventPaymentCompleted,
	EventPaymentRejected,
}

// BookingEventPayload is the booking snapshot carried by every lifecycle event.
type BookingEventPayload struct {
	BookingID     int64              `json:"booking_id"`
	UserID        int64              `json:"user_id"`
	LocationID    int64              `json:"location_id"`
	VehicleType   models.VehicleType `json:"vehicle_type"`
	BookingStatus string             `json:"booking_status"`
	PaymentStatus string             `json:"payment_status"`
	FinalAmount   float64            `json:"final_amount"`
	StartTime     time.Time          `json:"start_time"`
	EndTime       time.Time          `json:"end_time"`
	OrderID       string             `json:"order_id,omitempty"`
	PaymentID     string             `json:"payment_id,omitempty"`
	ChangedBy     string             `json:"changed_by,omitempty"`
}

// PayloadFromBooking snapshots b; changedBy names the actor (user, admin, sweeper).
func PayloadFromBooking(b *models.Booking, changedBy string) BookingEventPayload {
	return BookingEventPayload{
		BookingID:     b.ID,
		UserID:        b.UserID,
		LocationID:    b.LocationID,
		VehicleType:   b.VehicleType,
		BookingStatus: b.BookingStatus,
		PaymentStatus: b.PaymentStatus,
		FinalAmount:   b.FinalAmount,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
		OrderID:       b.OrderID.String,
		PaymentID:     b.PaymentID.String,
		ChangedBy:     changedBy,
	}
}

// Event is a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers synchronously and returns the first handler error.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var firstErr error
	for _, handler := range handlers {
		if err := handler(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PublishJSON serializes the payload and publishes an event. A nil bus is a no-op.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&event)
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{ID: uuid.NewString(), Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
