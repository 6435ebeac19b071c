package application

import (
	"context"

	catalogdomain "github.com/dmehra2102/event-pos/internal/catalog/domain"
	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
	"github.com/dmehra2102/event-pos/internal/payment/domain"
	pixdomain "github.com/dmehra2102/event-pos/internal/pix/domain"
)

type Events interface {
	GetEvent(ctx context.Context, id string) (catalogdomain.Event, error)
}

type Notifier interface {
	NotifyOrderStatusChanged(ctx context.Context, o orderdomain.Order, prev orderdomain.Status)
}

// ChargeIssuer opens an instant charge for a payment. PSP failures are
// absorbed by the issuer, which then returns a simulated charge.
type ChargeIssuer interface {
	Issue(ctx context.Context, o orderdomain.Order, p domain.Payment) (pixdomain.Charge, error)
}
