package models

type VehicleTypeCount struct {
	VehicleType VehicleType `json:"vehicleType"`
	Count       int         `json:"count"`
}

type MonthlyRevenue struct {
	Year  int     `json:"year"`
	Month int     `json:"month"`
	Total float64 `json:"total"`
}

type DashboardStats struct {
	TotalUsers            int                `json:"totalUsers"`
	TotalLocations        int                `json:"totalLocations"`
	ActiveBookings        int                `json:"activeBookings"`
	TotalRevenue          float64            `json:"totalRevenue"`
	BookingsByVehicleType []VehicleTypeCount `json:"bookingsByVehicleType"`
	RecentBookings        []BookingDetails   `json:"recentBookings"`
	MonthlyRevenue        []MonthlyRevenue   `json:"monthlyRevenue"`
}
