package service

import (
	"context"

	"github.com/rs/zerolog"

	"parkspot/internal/domain"
	"parkspot/internal/models"
)

type LocationService struct {
	locations domain.LocationRepository
	logger    *zerolog.Logger
}

func NewLocationService(locations domain.LocationRepository, logger *zerolog.Logger) *LocationService {
	return &LocationService{locations: locations, logger: logger}
}

func (s *LocationService) Create(ctx context.Context, loc *models.ParkingLocation) error {
	if err := s.locations.CreateLocation(ctx, loc); err != nil {
		return err
	}
	s.logger.Info().Int64("location_id", loc.ID).Str("name", loc.Name).Msg("parking location created")
	return nil
}

func (s *LocationService) Update(ctx context.Context, loc *models.ParkingLocation) error {
	if err := s.locations.UpdateLocation(ctx, loc); err != nil {
		return err
	}
	s.logger.Info().Int64("location_id", loc.ID).Msg("parking location updated")
	return nil
}

// Delete removes the location and every booking made against it.
func (s *LocationService) Delete(ctx context.Context, id int64) error {
	return s.locations.DeleteLocation(ctx, id)
}

func (s *LocationService) Get(ctx context.Context, id int64) (*models.LocationAvailability, error) {
	loc, err := s.locations.GetLocation(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.locations.CountActiveBySlot(ctx, id)
	if err != nil {
		return nil, err
	}
	return withAvailability(loc, counts), nil
}

// List returns every location, newest first, with per-category availability.
func (s *LocationService) List(ctx context.Context) ([]*models.LocationAvailability, error) {
	locations, err := s.locations.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.locations.CountActiveBySlotAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*models.LocationAvailability, 0, len(locations))
	for _, loc := range locations {
		out = append(out, withAvailability(loc, counts[loc.ID]))
	}
	return out, nil
}

// Seed creates the given locations when the store holds none yet.
// It reports how many were created.
func (s *LocationService) Seed(ctx context.Context, seed []models.ParkingLocation) (int, error) {
	existing, err := s.locations.ListLocations(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	for i := range seed {
		loc := seed[i]
		if err := s.locations.CreateLocation(ctx, &loc); err != nil {
			return i, err
		}
	}
	s.logger.Info().Int("count", len(seed)).Msg("parking locations seeded")
	return len(seed), nil
}
