package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "parkspot"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		},
		[]string{"endpoint", "status"},
	)

	bookingsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Bookings reserved, by vehicle type.",
		},
		[]string{"vehicle_type"},
	)

	bookingsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_rejected_total",
			Help:      "Booking attempts refused, by reason.",
		},
		[]string{"reason"},
	)

	bookingsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_completed_total",
			Help:      "Bookings moved to completed by the sweep.",
		},
	)

	bookingsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_expired_total",
			Help:      "Unpaid bookings cancelled after the pending payment TTL.",
		},
	)

	paymentVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verifications_total",
			Help:      "Payment callbacks by verification result.",
		},
		[]string{"result"},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Booking events relayed to the event stream, by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			bookingsCreated,
			bookingsRejected,
			bookingsCompleted,
			bookingsExpired,
			paymentVerifications,
			eventsPublished,
		)
	})
}

func IncHTTP(endpoint string, status int) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

func IncBookingCreated(vehicleType string) {
	bookingsCreated.WithLabelValues(vehicleType).Inc()
}

func IncBookingRejected(reason string) {
	bookingsRejected.WithLabelValues(reason).Inc()
}

func AddBookingsCompleted(n int) {
	bookingsCompleted.Add(float64(n))
}

func AddBookingsExpired(n int) {
	bookingsExpired.Add(float64(n))
}

func IncPaymentVerification(result string) {
	paymentVerifications.WithLabelValues(result).Inc()
}

func IncEventPublished(result string) {
	eventsPublished.WithLabelValues(result).Inc()
}
