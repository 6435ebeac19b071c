package application

import (
	"context"

	catalogdomain "github.com/dmehra2102/event-pos/internal/catalog/domain"
	"github.com/dmehra2102/event-pos/internal/order/domain"
)

type Catalog interface {
	GetProduct(ctx context.Context, id string) (catalogdomain.Product, error)
	GetEvent(ctx context.Context, id string) (catalogdomain.Event, error)
}

// Notifier is fire-and-forget: implementations log their own failures.
type Notifier interface {
	NotifyNewOrder(ctx context.Context, o domain.Order)
	NotifyOrderStatusChanged(ctx context.Context, o domain.Order, prev domain.Status)
}
