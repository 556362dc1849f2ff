package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gopkg.in/guregu/null.v4"

	"parkspot/internal/models"
)

func TestEventBus(t *testing.T) {
	bus := NewEventBus()

	var received *Event
	var callCount int

	bus.Subscribe("test_event", func(event *Event) error {
		received = event
		callCount++
		return nil
	})

	payload := map[string]string{"foo": "bar"}
	if err := bus.PublishJSON("test_event", payload); err != nil {
		t.Fatalf("PublishJSON failed: %v", err)
	}

	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
	if received.Type != "test_event" {
		t.Errorf("expected type test_event, got %s", received.Type)
	}
	if received.ID == "" {
		t.Errorf("expected event id to be assigned")
	}

	var decoded map[string]string
	if err := json.Unmarshal(received.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if decoded["foo"] != "bar" {
		t.Errorf("expected foo=bar, got %s", decoded["foo"])
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus()
	var count1, count2 int

	bus.Subscribe("event", func(_ *Event) error { count1++; return errors.New("first failed") })
	bus.Subscribe("event", func(_ *Event) error { count2++; return nil })

	err := bus.Publish(&Event{Type: "event"})
	if err == nil || err.Error() != "first failed" {
		t.Errorf("expected first handler error, got %v", err)
	}
	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both handlers to be called once, got %d and %d", count1, count2)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	if err := bus.Publish(&Event{Type: "unknown"}); err != nil {
		t.Errorf("Publish failed: %v", err)
	}
	if err := bus.PublishJSON("unknown", nil); err != nil {
		t.Errorf("PublishJSON failed: %v", err)
	}

	var nilBus *EventBus
	if err := nilBus.PublishJSON("unknown", nil); err != nil {
		t.Errorf("nil bus should be a no-op, got %v", err)
	}
}

func TestPayloadFromBooking(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := &models.Booking{
		ID:            12,
		UserID:        3,
		LocationID:    4,
		VehicleType:   models.VehicleJeep,
		BookingStatus: models.BookingActive,
		PaymentStatus: models.PaymentPending,
		FinalAmount:   135,
		StartTime:     start,
		EndTime:       models.EndTimeFor(start, 3),
		OrderID:       null.StringFrom("order_9"),
	}

	event, err := NewJSONEvent(EventBookingCreated, PayloadFromBooking(b, "user"))
	if err != nil {
		t.Fatalf("NewJSONEvent failed: %v", err)
	}
	if event.CreatedAt.IsZero() || event.ID == "" {
		t.Errorf("expected id and CreatedAt to be set")
	}

	var decoded BookingEventPayload
	if err := json.Unmarshal(event.Payload, &decoded); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if decoded.BookingID != 12 || decoded.VehicleType != models.VehicleJeep {
		t.Errorf("unexpected payload %+v", decoded)
	}
	if decoded.OrderID != "order_9" || decoded.PaymentID != "" {
		t.Errorf("unexpected gateway ids %+v", decoded)
	}
	if !decoded.EndTime.Equal(start.Add(3 * time.Hour)) {
		t.Errorf("unexpected end time %v", decoded.EndTime)
	}
}
