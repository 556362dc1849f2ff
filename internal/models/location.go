package models

import "time"

// SlotConfig is the configured capacity and price of one vehicle category.
// Total is owned by administrators and never changed by booking code.
type SlotConfig struct {
	Total      int     `json:"total" yaml:"total"`
	HourlyRate float64 `json:"hourlyRate" yaml:"hourly_rate"`
}

type ParkingLocation struct {
	ID         int64                      `json:"id" yaml:"-"`
	Name       string                     `json:"name" yaml:"name"`
	Address    string                     `json:"address" yaml:"address"`
	State      string                     `json:"state" yaml:"state"`
	City       string                     `json:"city" yaml:"city"`
	TotalSlots int                        `json:"totalSlots" yaml:"total_slots"`
	Slots      map[VehicleType]SlotConfig `json:"slots" yaml:"slots"`
	CreatedAt  time.Time                  `json:"createdAt" yaml:"-"`
	UpdatedAt  time.Time                  `json:"updatedAt" yaml:"-"`
}

// Slot returns the configuration for a category; unconfigured categories are zero.
func (l *ParkingLocation) Slot(vt VehicleType) SlotConfig {
	if l.Slots == nil {
		return SlotConfig{}
	}
	return l.Slots[vt]
}

// Normalize makes sure every vehicle category has an entry.
func (l *ParkingLocation) Normalize() {
	if l.Slots == nil {
		l.Slots = make(map[VehicleType]SlotConfig, len(VehicleTypes))
	}
	for _, vt := range VehicleTypes {
		if _, ok := l.Slots[vt]; !ok {
			l.Slots[vt] = SlotConfig{}
		}
	}
}

// SlotAvailability is a category's capacity together with its live usage.
type SlotAvailability struct {
	SlotConfig
	Active    int `json:"active"`
	Available int `json:"available"`
}

// NewSlotAvailability derives availability from configured capacity and the
// number of active bookings.
func NewSlotAvailability(cfg SlotConfig, active int) SlotAvailability {
	return SlotAvailability{
		SlotConfig: cfg,
		Active:     active,
		Available:  cfg.Total - active,
	}
}

// LocationAvailability is a location as listed to clients, with per-category availability.
type LocationAvailability struct {
	ParkingLocation
	Slots map[VehicleType]SlotAvailability `json:"slots"`
}

type LocationSummary struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
}
