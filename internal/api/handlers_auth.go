package api

import (
	"net/http"
	"strings"

	"parkspot/internal/domain"
	"parkspot/internal/models"
)

type signupRequest struct {
	Username string `json:"username" validate:"min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=6"`
	Phone    string `json:"phone" validate:"phone10"`
	State    string `json:"state" validate:"required"`
	City     string `json:"city" validate:"required"`
}

func (signupRequest) fieldMessages() map[string]string {
	return map[string]string{
		"username": "Username must be between 3 and 30 characters",
		"email":    "Please enter a valid email",
		"password": "Password must be at least 6 characters long",
		"phone":    "Please enter a valid 10-digit phone number",
		"state":    "State is required",
		"city":     "City is required",
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (loginRequest) fieldMessages() map[string]string {
	return map[string]string{
		"email":    "Please enter a valid email",
		"password": "Password is required",
	}
}

// userResponse is the account view returned with a token.
type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	State    string `json:"state"`
	City     string `json:"city"`
}

type authResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

func newAuthResponse(u *models.User, token string) authResponse {
	return authResponse{
		User: userResponse{
			ID:       u.ID,
			Username: u.Username,
			Email:    u.Email,
			Phone:    u.Phone,
			State:    u.State,
			City:     u.City,
		},
		Token: token,
	}
}

func (s *HTTPServer) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if errs := s.validate.check(req); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, validationResponse{Errors: errs})
		return
	}

	user, token, err := s.svc.Users.Signup(r.Context(), domain.SignupRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		State:    req.State,
		City:     req.City,
	})
	if err != nil {
		s.writeServiceError(w, r, err, "Server error during signup")
		return
	}
	writeJSON(w, http.StatusCreated, newAuthResponse(user, token))
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if errs := s.validate.check(req); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, validationResponse{Errors: errs})
		return
	}

	user, token, err := s.svc.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err, "Server error during login")
		return
	}
	writeJSON(w, http.StatusOK, newAuthResponse(user, token))
}

func (s *HTTPServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	user, err := s.svc.Users.Profile(r.Context(), claims.UserID)
	if err != nil {
		s.writeServiceError(w, r, err, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
