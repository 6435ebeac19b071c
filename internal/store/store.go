// Package store declares the repositories and the unit of work shared by the
// order, payment and instant-charge contexts. Every read-modify-write runs
// inside UnitOfWork.Do; the ForUpdate lookups hold a row lock on the entity
// until the unit commits or rolls back.
//
// Writers lock the owning order first and only then its payments and
// charges, so the order row serialises everything that touches it.
package store

import (
	"context"

	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
	paymentdomain "github.com/dmehra2102/event-pos/internal/payment/domain"
	pixdomain "github.com/dmehra2102/event-pos/internal/pix/domain"
	"github.com/dmehra2102/event-pos/pkg/outbox"
)

type Orders interface {
	Get(ctx context.Context, id string) (orderdomain.Order, error)
	GetForUpdate(ctx context.Context, id string) (orderdomain.Order, error)
	GetByItemForUpdate(ctx context.Context, itemID string) (orderdomain.Order, error)
	ListByConsumer(ctx context.Context, consumerID string) ([]orderdomain.Order, error)
	// ListByEvent returns the event's orders oldest first.
	ListByEvent(ctx context.Context, eventID string) ([]orderdomain.Order, error)
	NumberTaken(ctx context.Context, eventID, number string) (bool, error)
	Add(ctx context.Context, o orderdomain.Order) error
	Update(ctx context.Context, o orderdomain.Order) error
}

type Payments interface {
	Get(ctx context.Context, id string) (paymentdomain.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (paymentdomain.Payment, error)
	GetByTransactionIDForUpdate(ctx context.Context, transactionID string) (paymentdomain.Payment, error)
	ListByOrder(ctx context.Context, orderID string) ([]paymentdomain.Payment, error)
	ListByConsumer(ctx context.Context, consumerID string) ([]paymentdomain.Payment, error)
	Add(ctx context.Context, p paymentdomain.Payment) error
	Update(ctx context.Context, p paymentdomain.Payment) error
}

type Charges interface {
	Get(ctx context.Context, id string) (pixdomain.Charge, error)
	GetByPSPTransactionID(ctx context.Context, txid string) (pixdomain.Charge, error)
	GetByPSPTransactionIDForUpdate(ctx context.Context, txid string) (pixdomain.Charge, error)
	ListByOrder(ctx context.Context, orderID string) ([]pixdomain.Charge, error)
	ListByPayment(ctx context.Context, paymentID string) ([]pixdomain.Charge, error)
	Add(ctx context.Context, c pixdomain.Charge) error
	Update(ctx context.Context, c pixdomain.Charge) error
}

type Webhooks interface {
	Add(ctx context.Context, e pixdomain.WebhookEvent) error
	Get(ctx context.Context, id string) (pixdomain.WebhookEvent, error)
	Update(ctx context.Context, e pixdomain.WebhookEvent) error
	// ListRetryable returns unprocessed events below maxAttempts, oldest first.
	ListRetryable(ctx context.Context, maxAttempts, limit int) ([]pixdomain.WebhookEvent, error)
}

// Tx is the view of the store inside one unit of work.
type Tx interface {
	Orders() Orders
	Payments() Payments
	Charges() Charges
	Webhooks() Webhooks
	Outbox() outbox.Writer
}

// UnitOfWork commits everything fn wrote when fn returns nil and discards it
// otherwise.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
