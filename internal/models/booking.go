package models

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type Booking struct {
	ID              int64       `json:"id"`
	UserID          int64       `json:"userId"`
	LocationID      int64       `json:"locationId"`
	VehicleType     VehicleType `json:"vehicleType"`
	VehicleNumber   string      `json:"vehicleNumber"`
	DriverLicense   string      `json:"driverLicense"`
	Hours           int         `json:"hours"`
	StartTime       time.Time   `json:"startTime"`
	EndTime         time.Time   `json:"endTime"`
	TotalAmount     float64     `json:"totalAmount"`
	DiscountApplied float64     `json:"discountApplied"`
	FinalAmount     float64     `json:"finalAmount"`
	PaymentStatus   string      `json:"paymentStatus"`
	BookingStatus   string      `json:"bookingStatus"`
	OrderID         null.String `json:"razorpayOrderId"`
	PaymentID       null.String `json:"razorpayPaymentId"`
	Signature       null.String `json:"razorpaySignature"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
	Version         int64       `json:"version"`
}

// HoldsSlot reports whether the booking counts against its category's capacity.
func (b *Booking) HoldsSlot() bool {
	return b.BookingStatus == BookingActive
}

// EndTimeFor returns start plus the booked number of whole hours.
func EndTimeFor(start time.Time, hours int) time.Time {
	return start.Add(time.Duration(hours) * time.Hour)
}

// BookingDetails is a booking joined with its owner and location summaries.
type BookingDetails struct {
	Booking
	User     *UserSummary     `json:"user,omitempty"`
	Location *LocationSummary `json:"location,omitempty"`
}

// Quote is the priced breakdown of a booking request.
type Quote struct {
	HourlyRate      float64 `json:"hourlyRate"`
	TotalAmount     float64 `json:"totalAmount"`
	DiscountApplied float64 `json:"discountApplied"`
	FinalAmount     float64 `json:"finalAmount"`
}
