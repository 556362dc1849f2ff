package api

import (
	"fmt"
	"net/http"
	"strings"

	"parkspot/internal/models"
)

type slotRequest struct {
	Total      int     `json:"total"`
	HourlyRate float64 `json:"hourlyRate"`
}

type locationRequest struct {
	Name       string                 `json:"name" validate:"required"`
	Address    string                 `json:"address" validate:"required"`
	State      string                 `json:"state"`
	City       string                 `json:"city"`
	TotalSlots int                    `json:"totalSlots" validate:"min=1"`
	Slots      map[string]slotRequest `json:"slots"`
}

func (locationRequest) fieldMessages() map[string]string {
	return map[string]string{
		"name":       "Name is required",
		"address":    "Address is required",
		"totalSlots": "Total slots must be at least 1",
	}
}

// slotErrors checks the per-category configuration, which the struct tags
// cannot express because the keys are dynamic.
func (req *locationRequest) slotErrors() []FieldError {
	var out []FieldError
	for _, vt := range models.VehicleTypes {
		slot, ok := req.Slots[string(vt)]
		if !ok {
			continue
		}
		if slot.Total < 0 {
			out = append(out, FieldError{
				Field:   fmt.Sprintf("slots.%s.total", vt),
				Message: fmt.Sprintf("%s slots must be a non-negative integer", vt.Label()),
			})
		}
		if slot.HourlyRate < 0 {
			out = append(out, FieldError{
				Field:   fmt.Sprintf("slots.%s.hourlyRate", vt),
				Message: fmt.Sprintf("%s hourly rate must be a non-negative number", vt.Label()),
			})
		}
	}
	for key := range req.Slots {
		if !models.VehicleType(key).Valid() {
			out = append(out, FieldError{Field: "slots." + key, Message: "Invalid vehicle type"})
		}
	}
	return out
}

func (req *locationRequest) toModel() *models.ParkingLocation {
	loc := &models.ParkingLocation{
		Name:       strings.TrimSpace(req.Name),
		Address:    strings.TrimSpace(req.Address),
		State:      strings.TrimSpace(req.State),
		City:       strings.TrimSpace(req.City),
		TotalSlots: req.TotalSlots,
		Slots:      make(map[models.VehicleType]models.SlotConfig, len(models.VehicleTypes)),
	}
	for key, slot := range req.Slots {
		loc.Slots[models.VehicleType(key)] = models.SlotConfig{Total: slot.Total, HourlyRate: slot.HourlyRate}
	}
	loc.Normalize()
	return loc
}

func (s *HTTPServer) bindLocation(w http.ResponseWriter, r *http.Request) (*models.ParkingLocation, bool) {
	var req locationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	errs := append(s.validate.check(&req), req.slotErrors()...)
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, validationResponse{Errors: errs})
		return nil, false
	}
	return req.toModel(), true
}

func (s *HTTPServer) handleListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := s.svc.Locations.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "Server error while fetching parking locations")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(locations))
}

func (s *HTTPServer) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Parking location not found")
		return
	}
	loc, err := s.svc.Locations.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "Server error while fetching parking location")
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (s *HTTPServer) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	loc, ok := s.bindLocation(w, r)
	if !ok {
		return
	}
	if err := s.svc.Locations.Create(r.Context(), loc); err != nil {
		s.writeServiceError(w, r, err, "Server error while creating parking location")
		return
	}
	writeJSON(w, http.StatusCreated, loc)
}

func (s *HTTPServer) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Parking location not found")
		return
	}
	loc, ok := s.bindLocation(w, r)
	if !ok {
		return
	}
	loc.ID = id
	if err := s.svc.Locations.Update(r.Context(), loc); err != nil {
		s.writeServiceError(w, r, err, "Server error while updating parking location")
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (s *HTTPServer) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Parking location not found")
		return
	}
	if err := s.svc.Locations.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err, "Server error while deleting parking location")
		return
	}
	writeMessage(w, http.StatusOK, "Parking location deleted successfully")
}
