package service

import (
	"context"

	"parkspot/internal/domain"
	"parkspot/internal/models"
)

// AvailabilityService derives free slots from configured capacity and the
// number of active bookings. It never writes.
type AvailabilityService struct {
	locations domain.LocationRepository
}

func NewAvailabilityService(locations domain.LocationRepository) *AvailabilityService {
	return &AvailabilityService{locations: locations}
}

// Check returns the availability of one category at a location.
func (s *AvailabilityService) Check(ctx context.Context, locationID int64, vt models.VehicleType) (models.SlotAvailability, error) {
	loc, err := s.locations.GetLocation(ctx, locationID)
	if err != nil {
		return models.SlotAvailability{}, err
	}
	counts, err := s.locations.CountActiveBySlot(ctx, locationID)
	if err != nil {
		return models.SlotAvailability{}, err
	}
	return models.NewSlotAvailability(loc.Slot(vt), counts[vt]), nil
}

func (s *AvailabilityService) ForLocation(ctx context.Context, loc *models.ParkingLocation) (*models.LocationAvailability, error) {
	counts, err := s.locations.CountActiveBySlot(ctx, loc.ID)
	if err != nil {
		return nil, err
	}
	return withAvailability(loc, counts), nil
}

func withAvailability(loc *models.ParkingLocation, counts map[models.VehicleType]int) *models.LocationAvailability {
	out := &models.LocationAvailability{
		ParkingLocation: *loc,
		Slots:           make(map[models.VehicleType]models.SlotAvailability, len(models.VehicleTypes)),
	}
	for _, vt := range models.VehicleTypes {
		out.Slots[vt] = models.NewSlotAvailability(loc.Slot(vt), counts[vt])
	}
	return out
}

// Reserve reports whether a new booking of vt fits, returning a CapacityError
// that tells an unconfigured category apart from a full one.
func Reserve(avail models.SlotAvailability, vt models.VehicleType) error {
	if avail.Total <= 0 {
		return &domain.CapacityError{VehicleType: vt}
	}
	if avail.Available <= 0 {
		return &domain.CapacityError{VehicleType: vt, Configured: true}
	}
	return nil
}
