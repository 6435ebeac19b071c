package domain

import "time"

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type OrderCreated struct {
	OrderID    string    `json:"order_id"`
	Number     string    `json:"number"`
	EventID    string    `json:"event_id"`
	ConsumerID string    `json:"consumer_id,omitempty"`
	Total      string    `json:"total"`
	CreatedAt  time.Time `json:"created_at"`
}

type OrderStatusChanged struct {
	OrderID        string    `json:"order_id"`
	Number         string    `json:"number"`
	EventID        string    `json:"event_id"`
	ConsumerID     string    `json:"consumer_id,omitempty"`
	PreviousStatus Status    `json:"previous_status"`
	Status         Status    `json:"status"`
	At             time.Time `json:"at"`
}
