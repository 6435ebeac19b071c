// Package notify is the notification gateway. Notifications are written to
// the outbox in their own unit of work after the triggering change has
// committed, so a failure here never undoes that change.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dmehra2102/event-pos/internal/order/domain"
	"github.com/dmehra2102/event-pos/internal/store"
	"github.com/dmehra2102/event-pos/pkg/outbox"
	"github.com/dmehra2102/event-pos/pkg/tracing"
)

type Gateway struct {
	log *slog.Logger
	uow store.UnitOfWork
	now func() time.Time
}

func NewGateway(log *slog.Logger, uow store.UnitOfWork) *Gateway {
	return &Gateway{log: log, uow: uow, now: time.Now}
}

func (g *Gateway) NotifyNewOrder(ctx context.Context, o domain.Order) {
	g.enqueue(ctx, o.ID, domain.EventOrderCreated, headersFor(o), domain.OrderCreated{
		OrderID:    o.ID,
		Number:     o.Number,
		EventID:    o.EventID,
		ConsumerID: o.ConsumerID,
		Total:      o.Total.StringFixed(2),
		CreatedAt:  o.CreatedAt.UTC(),
	})
}

// NotifyOrderStatusChanged announces that o moved from prev to its current
// status.
func (g *Gateway) NotifyOrderStatusChanged(ctx context.Context, o domain.Order, prev domain.Status) {
	g.enqueue(ctx, o.ID, domain.EventOrderStatusChanged, headersFor(o), domain.OrderStatusChanged{
		OrderID:        o.ID,
		Number:         o.Number,
		EventID:        o.EventID,
		ConsumerID:     o.ConsumerID,
		PreviousStatus: prev,
		Status:         o.Status,
		At:             g.now().UTC(),
	})
}

func headersFor(o domain.Order) map[string]string {
	headers := map[string]string{"event_id": o.EventID}
	if o.ConsumerID != "" {
		headers["consumer_id"] = o.ConsumerID
	}
	return headers
}

func (g *Gateway) enqueue(ctx context.Context, orderID, eventType string, headers map[string]string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		g.log.Error("notification marshal failed", "order_id", orderID, "type", eventType, "err", err)
		return
	}
	ev := outbox.Event{
		AggregateType: "order",
		AggregateID:   orderID,
		Type:          eventType,
		Payload:       payload,
		Headers:       headers,
		Traceparent:   tracing.Traceparent(ctx),
	}
	err = g.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Outbox().Enqueue(ctx, ev)
	})
	if err != nil {
		g.log.Warn("notification dropped", "order_id", orderID, "type", eventType, "err", err)
	}
}
