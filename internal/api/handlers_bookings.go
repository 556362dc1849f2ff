package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"parkspot/internal/domain"
	"parkspot/internal/export"
	"parkspot/internal/models"
)

type createBookingRequest struct {
	LocationID    int64  `json:"locationId" validate:"required"`
	VehicleType   string `json:"vehicleType" validate:"oneof=car jeep truck twoWheeler auto other"`
	VehicleNumber string `json:"vehicleNumber" validate:"required"`
	DriverLicense string `json:"driverLicense" validate:"required"`
	Hours         int    `json:"hours" validate:"min=1"`
	StartTime     string `json:"startTime" validate:"iso8601"`
	CouponCode    string `json:"couponCode"`
}

func (createBookingRequest) fieldMessages() map[string]string {
	return map[string]string{
		"locationId":    "Location ID is required",
		"vehicleType":   "Invalid vehicle type",
		"vehicleNumber": "Vehicle number is required",
		"driverLicense": "Driver license is required",
		"hours":         "Hours must be at least 1",
		"startTime":     "Start time must be a valid date",
	}
}

type createBookingResponse struct {
	Booking        *models.Booking        `json:"booking"`
	PaymentDetails *models.PaymentDetails `json:"paymentDetails"`
}

// pathID parses the {id} URL parameter. A malformed id cannot name an
// existing record, so callers answer it like a missing one.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if !s.bind(w, r, &req) {
		return
	}
	start, _ := parseISOTime(req.StartTime)

	booking, payment, err := s.svc.Bookings.CreateBooking(r.Context(), domain.CreateBookingRequest{
		UserID:        claimsFrom(r.Context()).UserID,
		LocationID:    req.LocationID,
		VehicleType:   models.VehicleType(req.VehicleType),
		VehicleNumber: req.VehicleNumber,
		DriverLicense: req.DriverLicense,
		Hours:         req.Hours,
		StartTime:     start,
		CouponCode:    req.CouponCode,
	})
	if err != nil {
		s.writeServiceError(w, r, err, "Server error during booking creation")
		return
	}
	writeJSON(w, http.StatusCreated, createBookingResponse{Booking: booking, PaymentDetails: payment})
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.Bookings.ListBookings(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "Server error while fetching bookings")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(bookings))
}

func (s *HTTPServer) handleListUserBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.Bookings.ListUserBookings(r.Context(), claimsFrom(r.Context()).UserID)
	if err != nil {
		s.writeServiceError(w, r, err, "Server error while fetching user bookings")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(bookings))
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Booking not found")
		return
	}
	booking, err := s.svc.Bookings.GetBooking(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "Server error while fetching booking")
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Booking not found")
		return
	}
	booking, err := s.svc.Bookings.CancelBooking(r.Context(), id, claimsFrom(r.Context()).UserID)
	if err != nil {
		s.writeServiceError(w, r, err, "Server error during booking cancellation")
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Booking not found")
		return
	}
	if err := s.svc.Bookings.DeleteBooking(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err, "Server error during booking deletion")
		return
	}
	writeMessage(w, http.StatusOK, "Booking deleted successfully")
}

// handleExportBookings streams every booking as an XLSX workbook. The
// optional tz query parameter picks the zone used for start and end times.
func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	loc := time.UTC
	if tz := r.URL.Query().Get("tz"); tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			writeMessage(w, http.StatusBadRequest, "Invalid time zone")
			return
		}
	}

	bookings, err := s.svc.Bookings.ListBookings(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "Server error while exporting bookings")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteBookings(&buf, bookings, loc); err != nil {
		s.writeServiceError(w, r, err, "Server error while exporting bookings")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="bookings_%s.xlsx"`, time.Now().In(loc).Format("2006-01-02")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
