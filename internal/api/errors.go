package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"parkspot/internal/domain"
)

type messageResponse struct {
	Message string `json:"message"`
}

type paymentResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, messageResponse{Message: message})
}

// statusFor maps a domain error to its status code and client message.
// ok is false for errors that are not part of the domain taxonomy.
func statusFor(err error) (status int, message string, ok bool) {
	var capErr *domain.CapacityError
	var statusErr *domain.BookingStatusError

	switch {
	case errors.As(err, &capErr):
		if !capErr.Configured {
			return http.StatusBadRequest, fmt.Sprintf("No slots available for %s", capErr.VehicleType), true
		}
		return http.StatusBadRequest, fmt.Sprintf("No available slots for %s", capErr.VehicleType), true
	case errors.As(err, &statusErr):
		return http.StatusBadRequest, fmt.Sprintf("Booking is already %s", statusErr.Status), true
	case errors.Is(err, domain.ErrLocationNotFound):
		return http.StatusNotFound, "Parking location not found", true
	case errors.Is(err, domain.ErrBookingNotFound):
		return http.StatusNotFound, "Booking not found", true
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "User not found", true
	case errors.Is(err, domain.ErrNotBookingOwner):
		return http.StatusForbidden, "Not authorized to cancel this booking", true
	case errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict, "Booking was modified by another request, please retry", true
	case errors.Is(err, domain.ErrSlotBusy):
		return http.StatusConflict, "Slot is being reserved by another request, please retry", true
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many booking requests, please try again later", true
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusBadRequest, "User with this email already exists", true
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusBadRequest, "Invalid email or password", true
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusBadRequest, "Payment verification failed", true
	case errors.Is(err, domain.ErrOrderMismatch):
		return http.StatusBadRequest, "Payment order does not match booking", true
	}
	return http.StatusInternalServerError, "", false
}

// writeServiceError answers with the mapped domain error, or with a 500 and
// fallback when err is unexpected. Details of unexpected errors only go to the log.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, message := s.resolveError(r, err, fallback)
	writeMessage(w, status, message)
}

func (s *HTTPServer) resolveError(r *http.Request, err error, fallback string) (int, string) {
	status, message, ok := statusFor(err)
	if !ok {
		s.logger.Error().
			Err(err).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg(fallback)
		message = fallback
	}
	return status, message
}
