package domain

import "time"

const (
	EventPaymentApproved  = "PaymentApproved"
	EventPaymentDenied    = "PaymentDenied"
	EventPaymentCancelled = "PaymentCancelled"
	EventPaymentRefunded  = "PaymentRefunded"
)

type PaymentStatusChanged struct {
	PaymentID     string    `json:"payment_id"`
	OrderID       string    `json:"order_id"`
	TransactionID string    `json:"transaction_id"`
	Method        Method    `json:"method"`
	Amount        string    `json:"amount"`
	Status        Status    `json:"status"`
	At            time.Time `json:"at"`
}
