package application

import (
	"context"

	catalogdomain "github.com/dmehra2102/event-pos/internal/catalog/domain"
	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
)

type Events interface {
	GetEvent(ctx context.Context, id string) (catalogdomain.Event, error)
}

type Notifier interface {
	NotifyOrderStatusChanged(ctx context.Context, o orderdomain.Order, prev orderdomain.Status)
}
