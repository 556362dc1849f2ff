package service

import (
	"math"

	"parkspot/internal/models"
)

// Coupon is a percentage discount unlocked by an exact code.
type Coupon struct {
	Code    string
	Percent float64
}

// Quote prices hours at rate and applies the coupon when code matches it.
func Quote(rate float64, hours int, code string, coupon Coupon) models.Quote {
	total := rate * float64(hours)
	var discount float64
	if coupon.Code != "" && code == coupon.Code {
		discount = total * coupon.Percent / 100
	}
	return models.Quote{
		HourlyRate:      rate,
		TotalAmount:     total,
		DiscountApplied: discount,
		FinalAmount:     total - discount,
	}
}

// MinorUnits converts a major-unit amount to the gateway's integer minor units.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
