package models

import "encoding/json"

// OrderRequest is sent to the payment gateway. Amount is in minor units.
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order is the gateway's view of a payment order. Notes is kept raw because
// the gateway returns an empty array instead of an empty object.
type Order struct {
	ID         string          `json:"id"`
	Entity     string          `json:"entity"`
	Amount     int64           `json:"amount"`
	AmountPaid int64           `json:"amount_paid"`
	AmountDue  int64           `json:"amount_due"`
	Currency   string          `json:"currency"`
	Receipt    string          `json:"receipt"`
	Status     string          `json:"status"`
	Attempts   int             `json:"attempts"`
	Notes      json.RawMessage `json:"notes,omitempty"`
	CreatedAt  int64           `json:"created_at"`
}

// PaymentDetails is what a client needs to open the gateway checkout.
// Amount is in major units.
type PaymentDetails struct {
	OrderID  string  `json:"orderId"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	KeyID    string  `json:"keyId"`
}

// PaymentCallback is the signed result the client relays after checkout.
type PaymentCallback struct {
	OrderID   string
	PaymentID string
	Signature string
	BookingID int64
}
