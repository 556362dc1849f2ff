package models

// Booking lifecycle states. Only BookingActive holds a slot.
const (
	BookingActive    = "active"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
)

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

const (
	DefaultCurrency      = "INR"
	DefaultCouponCode    = "PARK10"
	DefaultCouponPercent = 10.0

	// RecentBookingsLimit is the number of bookings shown on the dashboard.
	RecentBookingsLimit = 5

	// RevenueWindowMonths is how far back monthly revenue is reported.
	RevenueWindowMonths = 6

	// SweepIntervalSeconds is the default period of the expired-booking sweep.
	SweepIntervalSeconds = 60

	// PendingPaymentTTLMinutes is how long an unpaid booking may hold a slot by default.
	PendingPaymentTTLMinutes = 30
)
