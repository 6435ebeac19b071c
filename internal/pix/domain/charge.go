package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmehra2102/event-pos/pkg/apperr"
)

type ChargeStatus string

const (
	ChargeActive            ChargeStatus = "active"
	ChargeCompleted         ChargeStatus = "completed"
	ChargeRemovedByReceiver ChargeStatus = "removed_by_receiver"
	ChargeRemovedByPSP      ChargeStatus = "removed_by_psp"
)

// Charge is an instant-payment request issued to a PSP. Once it leaves
// ChargeActive it never changes status again.
type Charge struct {
	ID               string
	OrderID          string
	PaymentID        string
	PSPTransactionID string
	PSPIdentifier    string
	Amount           decimal.Decimal
	Description      string
	PayeeKey         string
	// QRCode is the EMV "copy and paste" payload, QRImage a base64 PNG.
	QRCode    string
	QRImage   string
	Status    ChargeStatus
	Simulated bool

	ExpiresAt          time.Time
	PaidAt             *time.Time
	PSPPaymentID       string
	LastWebhookPayload []byte
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsExpired is evaluated at read time; expiry never rewrites the status.
func (c Charge) IsExpired(now time.Time) bool {
	return c.Status == ChargeActive && now.After(c.ExpiresAt)
}

// Complete records a received payment. A second completion is reported as
// changed=false so duplicate notifications have no side effects.
func (c *Charge) Complete(now time.Time, pspPaymentID string, payload []byte) (changed bool, err error) {
	if c.Status == ChargeCompleted {
		return false, nil
	}
	if c.Status != ChargeActive {
		return false, apperr.InvalidState("charge %s is %s", c.PSPTransactionID, c.Status)
	}
	now = now.UTC()
	c.Status = ChargeCompleted
	c.PaidAt = &now
	c.PSPPaymentID = pspPaymentID
	c.LastWebhookPayload = payload
	c.UpdatedAt = now
	return true, nil
}

func (c *Charge) Remove(status ChargeStatus, now time.Time) error {
	if status != ChargeRemovedByReceiver && status != ChargeRemovedByPSP {
		return apperr.Validation("%s is not a removal status", status)
	}
	if c.Status != ChargeActive {
		return apperr.InvalidState("charge %s is %s", c.PSPTransactionID, c.Status)
	}
	c.Status = status
	c.UpdatedAt = now.UTC()
	return nil
}
