package domain

import (
	"context"
	"time"

	"parkspot/internal/models"
)

// LocationRepository stores parking locations and their slot configuration.
type LocationRepository interface {
	CreateLocation(ctx context.Context, loc *models.ParkingLocation) error
	UpdateLocation(ctx context.Context, loc *models.ParkingLocation) error
	DeleteLocation(ctx context.Context, id int64) error
	GetLocation(ctx context.Context, id int64) (*models.ParkingLocation, error)
	ListLocations(ctx context.Context) ([]*models.ParkingLocation, error)
	CountActiveBySlot(ctx context.Context, locationID int64) (map[models.VehicleType]int, error)
	CountActiveBySlotAll(ctx context.Context) (map[int64]map[models.VehicleType]int, error)
}

// BookingRepository stores bookings. CreateBookingWithLock counts active bookings
// and inserts in one transaction.
type BookingRepository interface {
	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingDetails(ctx context.Context, id int64) (*models.BookingDetails, error)
	ListBookings(ctx context.Context) ([]*models.BookingDetails, error)
	ListUserBookings(ctx context.Context, userID int64) ([]*models.BookingDetails, error)
	AttachPaymentOrder(ctx context.Context, id int64, orderID string) error
	AbandonBooking(ctx context.Context, id int64) error
	UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error
	DeleteBooking(ctx context.Context, id int64) (*models.Booking, error)
	MarkPaymentCompleted(ctx context.Context, cb models.PaymentCallback) error
	ListExpiredActiveBookings(ctx context.Context, now time.Time, limit int) ([]*models.Booking, error)
	ListStalePendingBookings(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Booking, error)
	CompleteBooking(ctx context.Context, id, fromVersion int64) error
	ExpireUnpaidBooking(ctx context.Context, id, fromVersion int64) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type StatsRepository interface {
	CountUsers(ctx context.Context) (int, error)
	CountLocations(ctx context.Context) (int, error)
	CountActiveBookings(ctx context.Context) (int, error)
	SumCompletedRevenue(ctx context.Context) (float64, error)
	CountBookingsByVehicleType(ctx context.Context) ([]models.VehicleTypeCount, error)
	RecentBookings(ctx context.Context, limit int) ([]*models.BookingDetails, error)
	CompletedRevenueSince(ctx context.Context, since time.Time) ([]models.MonthlyRevenue, error)
}

// PaymentGateway is the external order API.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req models.OrderRequest) (*models.Order, error)
	KeyID() string
}

// SignatureVerifier checks the gateway's callback signature.
type SignatureVerifier interface {
	Verify(orderID, paymentID, signature string) bool
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SlotLocker serialises reservations of one (location, vehicle type) pair
// across processes. Acquire returns ErrSlotBusy when the lock is held.
type SlotLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockStore is implemented by the Redis, memory and failover stores.
type LockStore interface {
	SlotLocker
	RateLimiter
}

type TokenIssuer interface {
	Issue(user *models.User) (string, error)
	Parse(token string) (*Claims, error)
}

// Claims identify the caller of an authenticated request.
type Claims struct {
	UserID   int64
	Email    string
	Username string
}

type AvailabilityService interface {
	Check(ctx context.Context, locationID int64, vt models.VehicleType) (models.SlotAvailability, error)
	ForLocation(ctx context.Context, loc *models.ParkingLocation) (*models.LocationAvailability, error)
}

type BookingService interface {
	CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, *models.PaymentDetails, error)
	CancelBooking(ctx context.Context, bookingID, userID int64) (*models.Booking, error)
	DeleteBooking(ctx context.Context, bookingID int64) error
	GetBooking(ctx context.Context, id int64) (*models.BookingDetails, error)
	ListBookings(ctx context.Context) ([]*models.BookingDetails, error)
	ListUserBookings(ctx context.Context, userID int64) ([]*models.BookingDetails, error)
}

type PaymentService interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error)
	VerifyPayment(ctx context.Context, cb models.PaymentCallback) error
}

type LocationService interface {
	Create(ctx context.Context, loc *models.ParkingLocation) error
	Update(ctx context.Context, loc *models.ParkingLocation) error
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (*models.LocationAvailability, error)
	List(ctx context.Context) ([]*models.LocationAvailability, error)
}

type UserService interface {
	Signup(ctx context.Context, req SignupRequest) (*models.User, string, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	Profile(ctx context.Context, userID int64) (*models.User, error)
}

type StatsService interface {
	Dashboard(ctx context.Context) (*models.DashboardStats, error)
}

type CreateBookingRequest struct {
	UserID        int64
	LocationID    int64
	VehicleType   models.VehicleType
	VehicleNumber string
	DriverLicense string
	Hours         int
	StartTime     time.Time
	CouponCode    string
}

// CreateOrderRequest is an ad-hoc order; Amount is in major units.
type CreateOrderRequest struct {
	Amount   float64
	Currency string
	Receipt  string
	Notes    map[string]string
}

type SignupRequest struct {
	Username string
	Email    string
	Password string
	Phone    string
	State    string
	City     string
}
