package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmehra2102/event-pos/internal/kitchen/domain"
	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
	"github.com/dmehra2102/event-pos/internal/store"
	"github.com/dmehra2102/event-pos/pkg/access"
	"github.com/dmehra2102/event-pos/pkg/apperr"
)

// Service is the kitchen display. Every operation requires the caller to
// manage the event the orders belong to.
type Service struct {
	log    *slog.Logger
	uow    store.UnitOfWork
	events Events
	notify Notifier
	now    func() time.Time
}

func NewService(log *slog.Logger, uow store.UnitOfWork, events Events, notify Notifier) *Service {
	return &Service{log: log, uow: uow, events: events, notify: notify, now: time.Now}
}

// List returns the event's open tickets oldest first.
func (s *Service) List(ctx context.Context, caller access.Caller, eventID string, status orderdomain.Status) ([]domain.Ticket, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation("unknown order status %q", status)
	}
	orders, err := s.eventOrders(ctx, caller, eventID)
	if err != nil {
		return nil, err
	}
	return domain.Project(orders, status), nil
}

func (s *Service) Statistics(ctx context.Context, caller access.Caller, eventID string) (domain.Statistics, error) {
	orders, err := s.eventOrders(ctx, caller, eventID)
	if err != nil {
		return domain.Statistics{}, err
	}
	return domain.ComputeStatistics(eventID, orders, s.now()), nil
}

func (s *Service) eventOrders(ctx context.Context, caller access.Caller, eventID string) ([]orderdomain.Order, error) {
	if err := s.authorize(ctx, caller, eventID); err != nil {
		return nil, err
	}
	var orders []orderdomain.Order
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		orders, err = tx.Orders().ListByEvent(ctx, eventID)
		return err
	})
	return orders, err
}

// AdvanceItem moves one item of a paid order along its kitchen states.
func (s *Service) AdvanceItem(ctx context.Context, caller access.Caller, itemID string, to orderdomain.ItemStatus) (domain.Ticket, error) {
	var o orderdomain.Order
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if o, err = tx.Orders().GetByItemForUpdate(ctx, itemID); err != nil {
			return err
		}
		if err := s.authorize(ctx, caller, o.EventID); err != nil {
			return err
		}
		prev, err := o.AdvanceItem(itemID, to, s.now())
		if err != nil {
			return err
		}
		s.log.Info("item advanced", "order_id", o.ID, "item_id", itemID, "from", prev, "to", to)
		return tx.Orders().Update(ctx, o)
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	return domain.NewTicket(o), nil
}

// MarkReady moves an order in preparation to ready and brings its open
// items to ready with it.
func (s *Service) MarkReady(ctx context.Context, caller access.Caller, orderID string) (domain.Ticket, error) {
	return s.move(ctx, caller, orderID, orderdomain.StatusReady, orderdomain.ItemReady)
}

// MarkDelivered hands a ready order over and delivers its items.
func (s *Service) MarkDelivered(ctx context.Context, caller access.Caller, orderID string) (domain.Ticket, error) {
	return s.move(ctx, caller, orderID, orderdomain.StatusDelivered, orderdomain.ItemDelivered)
}

func (s *Service) move(ctx context.Context, caller access.Caller, orderID string, to orderdomain.Status, items orderdomain.ItemStatus) (domain.Ticket, error) {
	var (
		o    orderdomain.Order
		prev orderdomain.Status
	)
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if o, err = tx.Orders().GetForUpdate(ctx, orderID); err != nil {
			return err
		}
		if err := s.authorize(ctx, caller, o.EventID); err != nil {
			return err
		}
		if !orderdomain.CanTransition(o.Status, to) {
			return apperr.InvalidTransition("order %s cannot move from %s to %s", o.Number, o.Status, to)
		}
		now := s.now()
		if err := settleItems(&o, items, now); err != nil {
			return err
		}
		if prev, err = o.TransitionStatus(to, now); err != nil {
			return err
		}
		return tx.Orders().Update(ctx, o)
	})
	if err != nil {
		return domain.Ticket{}, err
	}
	s.log.Info("order status changed", "order_id", o.ID, "from", prev, "to", o.Status)
	s.notify.NotifyOrderStatusChanged(ctx, o, prev)
	return domain.NewTicket(o), nil
}

// settleItems walks every open item forward until it reaches target.
func settleItems(o *orderdomain.Order, target orderdomain.ItemStatus, now time.Time) error {
	for _, it := range o.Items {
		for cur := it.Status; !cur.Terminal() && cur != target; {
			next := nextItemStatus(cur)
			if _, err := o.AdvanceItem(it.ID, next, now); err != nil {
				return err
			}
			cur = next
		}
	}
	return nil
}

func nextItemStatus(s orderdomain.ItemStatus) orderdomain.ItemStatus {
	switch s {
	case orderdomain.ItemPending:
		return orderdomain.ItemPreparing
	case orderdomain.ItemPreparing:
		return orderdomain.ItemReady
	default:
		return orderdomain.ItemDelivered
	}
}

func (s *Service) authorize(ctx context.Context, caller access.Caller, eventID string) error {
	if caller.IsAdmin() {
		return nil
	}
	ev, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if !caller.ManagesEvent(ev.ManagerID) {
		return apperr.Forbidden("caller does not manage event %s", eventID)
	}
	return nil
}
