package api

import (
	"net/http"

	"parkspot/internal/domain"
	"parkspot/internal/models"
)

type createOrderRequest struct {
	Amount   float64           `json:"amount" validate:"gt=0"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes"`
}

func (createOrderRequest) fieldMessages() map[string]string {
	return map[string]string{
		"amount": "Amount must be greater than 0",
	}
}

type verifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
	BookingID int64  `json:"bookingId" validate:"required"`
}

func (verifyPaymentRequest) fieldMessages() map[string]string {
	return map[string]string{
		"razorpay_order_id":   "Order ID is required",
		"razorpay_payment_id": "Payment ID is required",
		"razorpay_signature":  "Signature is required",
		"bookingId":           "Booking ID is required",
	}
}

func (s *HTTPServer) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !s.bind(w, r, &req) {
		return
	}

	order, err := s.svc.Payments.CreateOrder(r.Context(), domain.CreateOrderRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to create payment order")
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// handleVerifyPayment is called by the client with the gateway's signed
// checkout result. Only a valid signature moves the booking to paid.
func (s *HTTPServer) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if !s.bind(w, r, &req) {
		return
	}

	err := s.svc.Payments.VerifyPayment(r.Context(), models.PaymentCallback{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		BookingID: req.BookingID,
	})
	if err != nil {
		status, message := s.resolveError(r, err, "Server error during payment verification")
		writeJSON(w, status, paymentResponse{Success: false, Message: message})
		return
	}
	writeJSON(w, http.StatusOK, paymentResponse{Success: true, Message: "Payment verified successfully"})
}
