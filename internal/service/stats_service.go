package service

import (
	"context"
	"time"

	"parkspot/internal/domain"
	"parkspot/internal/models"
)

type StatsService struct {
	stats domain.StatsRepository
	now   func() time.Time
}

func NewStatsService(stats domain.StatsRepository) *StatsService {
	return &StatsService{stats: stats, now: time.Now}
}

// Dashboard gathers the admin overview. Monthly revenue covers paid bookings
// created in the last six months.
func (s *StatsService) Dashboard(ctx context.Context) (*models.DashboardStats, error) {
	var (
		out models.DashboardStats
		err error
	)
	if out.TotalUsers, err = s.stats.CountUsers(ctx); err != nil {
		return nil, err
	}
	if out.TotalLocations, err = s.stats.CountLocations(ctx); err != nil {
		return nil, err
	}
	if out.ActiveBookings, err = s.stats.CountActiveBookings(ctx); err != nil {
		return nil, err
	}
	if out.TotalRevenue, err = s.stats.SumCompletedRevenue(ctx); err != nil {
		return nil, err
	}
	if out.BookingsByVehicleType, err = s.stats.CountBookingsByVehicleType(ctx); err != nil {
		return nil, err
	}

	recent, err := s.stats.RecentBookings(ctx, models.RecentBookingsLimit)
	if err != nil {
		return nil, err
	}
	out.RecentBookings = make([]models.BookingDetails, 0, len(recent))
	for _, b := range recent {
		out.RecentBookings = append(out.RecentBookings, *b)
	}

	if out.MonthlyRevenue, err = s.stats.CompletedRevenueSince(ctx, RevenueWindowStart(s.now())); err != nil {
		return nil, err
	}
	return &out, nil
}

func RevenueWindowStart(now time.Time) time.Time {
	return now.UTC().AddDate(0, -models.RevenueWindowMonths, 0)
}
