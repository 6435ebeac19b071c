package application

import (
	"context"
	"time"

	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
	"github.com/dmehra2102/event-pos/internal/payment/domain"
	pixdomain "github.com/dmehra2102/event-pos/internal/pix/domain"
	"github.com/dmehra2102/event-pos/internal/store"
	"github.com/dmehra2102/event-pos/pkg/apperr"
)

// Approve approves p and moves its locked order to Paid in the same unit of
// work. An open payment must still match the order total. Both writes are
// skipped when nothing changed, so repeated approvals have no side effects.
// It reports whether the order moved, which is always from AwaitingPayment.
func Approve(ctx context.Context, tx store.Tx, o *orderdomain.Order, p *domain.Payment, now time.Time) (bool, error) {
	if o.Status == orderdomain.StatusCancelled && p.Status != domain.StatusApproved {
		return false, apperr.InvalidState("order %s is cancelled", o.Number)
	}
	if p.Status.Open() && !domain.WithinTolerance(p.Amount, o.Total) {
		return false, apperr.Validation("payment %s is for %s but order %s totals %s",
			p.TransactionID, p.Amount.StringFixed(2), o.Number, o.Total.StringFixed(2))
	}
	changed, err := p.Approve(now)
	if err != nil {
		return false, err
	}
	if changed {
		if err := tx.Payments().Update(ctx, *p); err != nil {
			return false, err
		}
	}
	if o.Status != orderdomain.StatusAwaitingPayment {
		return false, nil
	}
	if _, err := o.TransitionStatus(orderdomain.StatusPaid, now); err != nil {
		return false, err
	}
	if err := tx.Orders().Update(ctx, *o); err != nil {
		return false, err
	}
	return true, nil
}

// CancelOpen cancels every pending or processing payment of the order and
// removes their active charges. The order must already be locked.
func CancelOpen(ctx context.Context, tx store.Tx, orderID string, now time.Time) ([]domain.Payment, error) {
	payments, err := tx.Payments().ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	var cancelled []domain.Payment
	for _, p := range payments {
		if !p.Status.Open() {
			continue
		}
		if _, err := p.Cancel(now); err != nil {
			return nil, err
		}
		if err := tx.Payments().Update(ctx, p); err != nil {
			return nil, err
		}
		if err := RemoveActiveCharges(ctx, tx, p.ID, pixdomain.ChargeRemovedByReceiver, now); err != nil {
			return nil, err
		}
		cancelled = append(cancelled, p)
	}
	return cancelled, nil
}

func RemoveActiveCharges(ctx context.Context, tx store.Tx, paymentID string, status pixdomain.ChargeStatus, now time.Time) error {
	charges, err := tx.Charges().ListByPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	for _, c := range charges {
		if c.Status != pixdomain.ChargeActive {
			continue
		}
		if err := c.Remove(status, now); err != nil {
			return err
		}
		if err := tx.Charges().Update(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// completeActiveCharges closes the charges of a payment confirmed by hand so
// a late PSP notification is treated as a duplicate.
func completeActiveCharges(ctx context.Context, tx store.Tx, paymentID string, now time.Time) error {
	charges, err := tx.Charges().ListByPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	for _, c := range charges {
		if c.Status != pixdomain.ChargeActive {
			continue
		}
		if _, err := c.Complete(now, "", nil); err != nil {
			return err
		}
		if err := tx.Charges().Update(ctx, c); err != nil {
			return err
		}
	}
	return nil
}
