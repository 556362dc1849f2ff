package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"parkspot/internal/domain"
	"parkspot/internal/models"
)

func TestLocationService_List(t *testing.T) {
	ctx := context.Background()
	locations := new(mockLocationRepo)
	second := testLocation()
	second.ID = 4
	locations.On("ListLocations", ctx).Return([]*models.ParkingLocation{second, testLocation()}, nil)
	locations.On("CountActiveBySlotAll", ctx).Return(map[int64]map[models.VehicleType]int{
		3: {models.VehicleCar: 2},
	}, nil)

	out, err := NewLocationService(locations, &testLogger).List(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, int64(4), out[0].ID)
	assert.Equal(t, 2, out[0].Slots[models.VehicleCar].Available)
	assert.Equal(t, 0, out[1].Slots[models.VehicleCar].Available)
	assert.Equal(t, 2, out[1].Slots[models.VehicleCar].Total)
}

func TestLocationService_Get(t *testing.T) {
	ctx := context.Background()
	locations := new(mockLocationRepo)
	locations.On("GetLocation", ctx, int64(3)).Return(testLocation(), nil)
	locations.On("CountActiveBySlot", ctx, int64(3)).Return(map[models.VehicleType]int{models.VehicleTwoWheeler: 1}, nil)
	locations.On("GetLocation", ctx, int64(5)).Return(nil, domain.ErrLocationNotFound)

	svc := NewLocationService(locations, &testLogger)

	loc, err := svc.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Lake View", loc.Name)
	assert.Equal(t, 1, loc.Slots[models.VehicleTwoWheeler].Available)

	_, err = svc.Get(ctx, 5)
	assert.ErrorIs(t, err, domain.ErrLocationNotFound)
}

func TestLocationService_Mutations(t *testing.T) {
	ctx := context.Background()
	locations := new(mockLocationRepo)
	loc := testLocation()
	locations.On("CreateLocation", ctx, loc).Return(nil)
	locations.On("UpdateLocation", ctx, loc).Return(nil)
	locations.On("DeleteLocation", ctx, int64(3)).Return(nil)
	locations.On("DeleteLocation", ctx, int64(8)).Return(domain.ErrLocationNotFound)

	svc := NewLocationService(locations, &testLogger)
	require.NoError(t, svc.Create(ctx, loc))
	require.NoError(t, svc.Update(ctx, loc))
	require.NoError(t, svc.Delete(ctx, 3))
	assert.ErrorIs(t, svc.Delete(ctx, 8), domain.ErrLocationNotFound)
	locations.AssertExpectations(t)
}

func TestLocationService_Seed(t *testing.T) {
	ctx := context.Background()
	seed := []models.ParkingLocation{{Name: "A"}, {Name: "B"}}

	t.Run("EmptyStore", func(t *testing.T) {
		locations := new(mockLocationRepo)
		locations.On("ListLocations", ctx).Return([]*models.ParkingLocation{}, nil)
		locations.On("CreateLocation", ctx, mock.AnythingOfType("*models.ParkingLocation")).Return(nil).Twice()

		n, err := NewLocationService(locations, &testLogger).Seed(ctx, seed)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		locations.AssertExpectations(t)
	})

	t.Run("AlreadySeeded", func(t *testing.T) {
		locations := new(mockLocationRepo)
		locations.On("ListLocations", ctx).Return([]*models.ParkingLocation{testLocation()}, nil)

		n, err := NewLocationService(locations, &testLogger).Seed(ctx, seed)
		require.NoError(t, err)
		assert.Zero(t, n)
		locations.AssertNotCalled(t, "CreateLocation", mock.Anything, mock.Anything)
	})
}
