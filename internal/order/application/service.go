package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/event-pos/internal/order/domain"
	paymentapp "github.com/dmehra2102/event-pos/internal/payment/application"
	"github.com/dmehra2102/event-pos/internal/store"
	"github.com/dmehra2102/event-pos/pkg/access"
	"github.com/dmehra2102/event-pos/pkg/apperr"
)

const numberAttempts = 5

var ErrNumberExhausted = errors.New("could not allocate a free order number")

type Service struct {
	log     *slog.Logger
	uow     store.UnitOfWork
	catalog Catalog
	notify  Notifier
	now     func() time.Time
	number  func(time.Time) string
}

func NewService(log *slog.Logger, uow store.UnitOfWork, catalog Catalog, notify Notifier) *Service {
	return &Service{
		log:     log,
		uow:     uow,
		catalog: catalog,
		notify:  notify,
		now:     time.Now,
		number:  domain.NewNumber,
	}
}

type ItemInput struct {
	ProductID string
	Quantity  int
	Note      string
}

type CreateInput struct {
	EventID    string
	ConsumerID string
	Items      []ItemInput
	Note       string
}

// Create snapshots catalog prices into a new order awaiting payment. A
// registered consumer always orders for themselves.
func (s *Service) Create(ctx context.Context, caller access.Caller, in CreateInput) (domain.Order, error) {
	if len(in.Items) == 0 {
		return domain.Order{}, apperr.Validation("order has no items")
	}
	if _, err := s.catalog.GetEvent(ctx, in.EventID); err != nil {
		return domain.Order{}, err
	}

	consumerID := in.ConsumerID
	if caller.Role == access.RoleConsumer {
		consumerID = caller.ID
	}

	lines := make([]domain.Line, 0, len(in.Items))
	for _, it := range in.Items {
		p, err := s.catalog.GetProduct(ctx, it.ProductID)
		if err != nil {
			return domain.Order{}, err
		}
		if p.EventID != in.EventID {
			return domain.Order{}, apperr.Validation("product %s is not sold at event %s", p.ID, in.EventID)
		}
		if !p.Available {
			return domain.Order{}, apperr.Validation("product %s is unavailable", p.Name)
		}
		lines = append(lines, domain.Line{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    it.Quantity,
			UnitPrice:   p.Price,
			PrepMinutes: p.PrepMinutes,
			Note:        it.Note,
		})
	}

	var created domain.Order
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()
		number, err := s.freeNumber(ctx, tx, in.EventID, now)
		if err != nil {
			return err
		}
		o, err := domain.New(uuid.NewString(), number, in.EventID, consumerID, lines, in.Note, now)
		if err != nil {
			return err
		}
		if err := tx.Orders().Add(ctx, o); err != nil {
			return err
		}
		created = o
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.log.Info("order created", "order_id", created.ID, "number", created.Number, "event_id", created.EventID,
		"total", created.Total.StringFixed(2))
	s.notify.NotifyNewOrder(ctx, created)
	return created, nil
}

func (s *Service) freeNumber(ctx context.Context, tx store.Tx, eventID string, now time.Time) (string, error) {
	for range numberAttempts {
		n := s.number(now)
		taken, err := tx.Orders().NumberTaken(ctx, eventID, n)
		if err != nil {
			return "", err
		}
		if !taken {
			return n, nil
		}
		s.log.Warn("order number collision", "event_id", eventID, "number", n)
	}
	return "", ErrNumberExhausted
}

func (s *Service) Get(ctx context.Context, caller access.Caller, id string) (domain.Order, error) {
	var o domain.Order
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		o, err = tx.Orders().Get(ctx, id)
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}
	if o.ConsumerID != "" {
		if err := s.authorize(ctx, caller, o); err != nil {
			return domain.Order{}, err
		}
	}
	return o, nil
}

func (s *Service) ListByConsumer(ctx context.Context, caller access.Caller, consumerID string) ([]domain.Order, error) {
	if caller.ID != consumerID && !caller.IsAdmin() {
		return nil, apperr.Forbidden("orders of consumer %s are not visible to the caller", consumerID)
	}
	var out []domain.Order
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Orders().ListByConsumer(ctx, consumerID)
		return err
	})
	return out, err
}

// UpdateStatus is the staff operation for moving an order along. Paid is
// only reachable through payment approval.
func (s *Service) UpdateStatus(ctx context.Context, caller access.Caller, id string, to domain.Status) (domain.Order, error) {
	if to == domain.StatusCancelled {
		return s.Cancel(ctx, caller, id)
	}
	if to == domain.StatusPaid {
		return domain.Order{}, apperr.InvalidTransition("orders become paid through payment approval only")
	}
	return s.mutate(ctx, caller, id, true, func(o *domain.Order, _ store.Tx) error {
		_, err := o.TransitionStatus(to, s.now())
		return err
	})
}

// Cancel cancels the order, its open payments and their active charges in
// one unit of work.
func (s *Service) Cancel(ctx context.Context, caller access.Caller, id string) (domain.Order, error) {
	return s.mutate(ctx, caller, id, false, func(o *domain.Order, tx store.Tx) error {
		now := s.now()
		if _, err := o.Cancel(now); err != nil {
			return err
		}
		cancelled, err := paymentapp.CancelOpen(ctx, tx, o.ID, now)
		if err != nil {
			return err
		}
		for _, p := range cancelled {
			s.log.Info("payment cancelled with order", "order_id", o.ID, "transaction_id", p.TransactionID)
		}
		return nil
	})
}

// SetAdjustments changes the service fee and discount. Open payments were
// issued for the old total, so they are cancelled with their charges.
func (s *Service) SetAdjustments(ctx context.Context, caller access.Caller, id string, fee, discount decimal.Decimal) (domain.Order, error) {
	return s.mutate(ctx, caller, id, true, func(o *domain.Order, tx store.Tx) error {
		now := s.now()
		if err := o.SetAdjustments(fee, discount, now); err != nil {
			return err
		}
		return s.dropOpenPayments(ctx, tx, o, now)
	})
}

func (s *Service) ChangeItemQuantity(ctx context.Context, caller access.Caller, orderID, itemID string, qty int) (domain.Order, error) {
	return s.mutate(ctx, caller, orderID, false, func(o *domain.Order, tx store.Tx) error {
		now := s.now()
		if err := o.ChangeItemQuantity(itemID, qty, now); err != nil {
			return err
		}
		return s.dropOpenPayments(ctx, tx, o, now)
	})
}

func (s *Service) dropOpenPayments(ctx context.Context, tx store.Tx, o *domain.Order, now time.Time) error {
	cancelled, err := paymentapp.CancelOpen(ctx, tx, o.ID, now)
	if err != nil {
		return err
	}
	for _, p := range cancelled {
		s.log.Info("payment cancelled after total changed", "order_id", o.ID,
			"transaction_id", p.TransactionID, "total", o.Total.StringFixed(2))
	}
	return nil
}

// mutate loads the order under a row lock, checks the caller, applies fn and
// notifies when the status moved.
func (s *Service) mutate(ctx context.Context, caller access.Caller, id string, managerOnly bool, fn func(o *domain.Order, tx store.Tx) error) (domain.Order, error) {
	var (
		o    domain.Order
		prev domain.Status
	)
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		o, err = tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if managerOnly {
			err = s.authorizeManager(ctx, caller, o)
		} else {
			err = s.authorize(ctx, caller, o)
		}
		if err != nil {
			return err
		}
		prev = o.Status
		if err := fn(&o, tx); err != nil {
			return err
		}
		return tx.Orders().Update(ctx, o)
	})
	if err != nil {
		return domain.Order{}, err
	}

	if o.Status != prev {
		s.log.Info("order status changed", "order_id", o.ID, "from", prev, "to", o.Status)
		s.notify.NotifyOrderStatusChanged(ctx, o, prev)
	}
	return o, nil
}

func (s *Service) authorize(ctx context.Context, caller access.Caller, o domain.Order) error {
	if caller.OwnsOrder(o.ConsumerID) {
		return nil
	}
	return s.authorizeManager(ctx, caller, o)
}

func (s *Service) authorizeManager(ctx context.Context, caller access.Caller, o domain.Order) error {
	if caller.IsAdmin() {
		return nil
	}
	ev, err := s.catalog.GetEvent(ctx, o.EventID)
	if err != nil {
		return err
	}
	if !caller.ManagesEvent(ev.ManagerID) {
		return apperr.Forbidden("caller cannot act on order %s", o.Number)
	}
	return nil
}
