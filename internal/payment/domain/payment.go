package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/event-pos/pkg/apperr"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusApproved   Status = "approved"
	StatusDenied     Status = "denied"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusDenied, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// Open is true while the payment may still be approved.
func (s Status) Open() bool { return s == StatusPending || s == StatusProcessing }

type Method string

const (
	MethodPix  Method = "pix"
	MethodCard Method = "card"
	MethodCash Method = "cash"
)

func (m Method) Valid() bool {
	return m == MethodPix || m == MethodCard || m == MethodCash
}

// Tolerance is the rounding epsilon allowed between a payment and its order total.
var Tolerance = decimal.RequireFromString("0.01")

func WithinTolerance(amount, total decimal.Decimal) bool {
	return amount.Sub(total).Abs().LessThanOrEqual(Tolerance)
}

type Payment struct {
	ID              string
	OrderID         string
	TransactionID   string
	Amount          decimal.Decimal
	Status          Status
	Method          Method
	Gateway         string
	GatewayResponse []byte
	Simulated       bool

	ProcessedAt *time.Time
	ConfirmedAt *time.Time
	CancelledAt *time.Time
	RefundedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func New(id, orderID, transactionID string, amount decimal.Decimal, method Method, now time.Time) (Payment, error) {
	if !method.Valid() {
		return Payment{}, apperr.Validation("unknown payment method %q", method)
	}
	if !amount.IsPositive() {
		return Payment{}, apperr.Validation("payment amount must be positive")
	}
	now = now.UTC()
	return Payment{
		ID:            id,
		OrderID:       orderID,
		TransactionID: transactionID,
		Amount:        amount,
		Status:        StatusPending,
		Method:        method,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (p *Payment) MarkProcessing(now time.Time) error {
	if p.Status != StatusPending {
		return apperr.InvalidState("payment %s is %s, not pending", p.TransactionID, p.Status)
	}
	now = now.UTC()
	p.Status = StatusProcessing
	p.ProcessedAt = &now
	p.UpdatedAt = now
	return nil
}

// Approve is idempotent: approving an approved payment reports changed=false.
func (p *Payment) Approve(now time.Time) (changed bool, err error) {
	if p.Status == StatusApproved {
		return false, nil
	}
	if !p.Status.Open() {
		return false, apperr.InvalidState("payment %s is already %s", p.TransactionID, p.Status)
	}
	now = now.UTC()
	p.Status = StatusApproved
	p.ConfirmedAt = &now
	if p.ProcessedAt == nil {
		p.ProcessedAt = &now
	}
	p.UpdatedAt = now
	return true, nil
}

func (p *Payment) Deny(now time.Time) error {
	if !p.Status.Open() {
		return apperr.InvalidState("payment %s is already %s", p.TransactionID, p.Status)
	}
	now = now.UTC()
	p.Status = StatusDenied
	p.ProcessedAt = &now
	p.UpdatedAt = now
	return nil
}

// Cancel is idempotent on a cancelled payment, like Approve.
func (p *Payment) Cancel(now time.Time) (changed bool, err error) {
	if p.Status == StatusCancelled {
		return false, nil
	}
	if !p.Status.Open() {
		return false, apperr.InvalidState("payment %s is already %s", p.TransactionID, p.Status)
	}
	now = now.UTC()
	p.Status = StatusCancelled
	p.CancelledAt = &now
	p.UpdatedAt = now
	return true, nil
}

func (p *Payment) Refund(now time.Time) error {
	if p.Status != StatusApproved {
		return apperr.InvalidState("payment %s is %s, only approved payments can be refunded", p.TransactionID, p.Status)
	}
	now = now.UTC()
	p.Status = StatusRefunded
	p.RefundedAt = &now
	p.UpdatedAt = now
	return nil
}
