package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
	"github.com/dmehra2102/event-pos/internal/payment/domain"
	pixdomain "github.com/dmehra2102/event-pos/internal/pix/domain"
	"github.com/dmehra2102/event-pos/internal/store"
	"github.com/dmehra2102/event-pos/pkg/access"
	"github.com/dmehra2102/event-pos/pkg/apperr"
)

type Service struct {
	log        *slog.Logger
	uow        store.UnitOfWork
	events     Events
	notify     Notifier
	processors Processors
	now        func() time.Time
}

func NewService(log *slog.Logger, uow store.UnitOfWork, events Events, notify Notifier, processors Processors) *Service {
	return &Service{
		log:        log,
		uow:        uow,
		events:     events,
		notify:     notify,
		processors: processors,
		now:        time.Now,
	}
}

type ProcessInput struct {
	OrderID string
	Method  domain.Method
	// Amount defaults to the order total when zero.
	Amount  decimal.Decimal
	Details Details
}

type Receipt struct {
	Payment domain.Payment
	Charge  *pixdomain.Charge
}

// Process opens a new payment attempt for an order awaiting payment and
// routes it to the method's strategy. Any still open attempt of the order is
// superseded.
func (s *Service) Process(ctx context.Context, caller access.Caller, in ProcessInput) (Receipt, error) {
	proc, ok := s.processors[in.Method]
	if !ok {
		return Receipt{}, apperr.Validation("unknown payment method %q", in.Method)
	}

	var o orderdomain.Order
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		o, err = tx.Orders().Get(ctx, in.OrderID)
		return err
	})
	if err != nil {
		return Receipt{}, err
	}
	if o.ConsumerID != "" {
		if err := s.authorize(ctx, caller, o); err != nil {
			return Receipt{}, err
		}
	}
	if o.Status != orderdomain.StatusAwaitingPayment {
		return Receipt{}, apperr.InvalidState("order %s is not awaiting payment", o.Number)
	}

	amount := in.Amount
	if amount.IsZero() {
		amount = o.Total
	}
	if !domain.WithinTolerance(amount, o.Total) {
		return Receipt{}, apperr.Validation("payment amount %s does not match order total %s",
			amount.StringFixed(2), o.Total.StringFixed(2))
	}

	p, err := domain.New(uuid.NewString(), o.ID, uuid.NewString(), amount, in.Method, s.now())
	if err != nil {
		return Receipt{}, err
	}

	// The strategy may call the PSP, so it runs outside the unit of work.
	res, err := proc.Process(ctx, o, p, in.Details)
	if err != nil {
		return Receipt{}, err
	}
	p.Gateway = res.Gateway
	p.GatewayResponse = res.Response
	p.Simulated = res.Simulated

	var orderMoved bool
	err = s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		now := s.now()
		locked, err := tx.Orders().GetForUpdate(ctx, o.ID)
		if err != nil {
			return err
		}
		if locked.Status != orderdomain.StatusAwaitingPayment {
			return apperr.InvalidState("order %s is not awaiting payment", locked.Number)
		}
		if !domain.WithinTolerance(amount, locked.Total) {
			return apperr.Validation("order %s total changed to %s", locked.Number, locked.Total.StringFixed(2))
		}

		existing, err := tx.Payments().ListByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.Status == domain.StatusApproved {
				return apperr.InvalidState("order %s already has an approved payment", locked.Number)
			}
		}
		superseded, err := CancelOpen(ctx, tx, o.ID, now)
		if err != nil {
			return err
		}
		for _, sp := range superseded {
			s.log.Info("payment superseded", "order_id", o.ID, "transaction_id", sp.TransactionID)
		}

		switch res.Status {
		case domain.StatusApproved, domain.StatusDenied:
			if err := p.MarkProcessing(now); err != nil {
				return err
			}
			if res.Status == domain.StatusDenied {
				if err := p.Deny(now); err != nil {
					return err
				}
			}
		}
		if err := tx.Payments().Add(ctx, p); err != nil {
			return err
		}
		if res.Charge != nil {
			res.Charge.PaymentID = p.ID
			if err := tx.Charges().Add(ctx, *res.Charge); err != nil {
				return err
			}
		}
		if res.Status == domain.StatusApproved {
			orderMoved, err = Approve(ctx, tx, &locked, &p, now)
			if err != nil {
				return err
			}
		}
		o = locked
		return nil
	})
	if err != nil {
		return Receipt{}, err
	}

	s.log.Info("payment processed", "order_id", o.ID, "transaction_id", p.TransactionID,
		"method", p.Method, "status", p.Status, "simulated", p.Simulated)
	if orderMoved {
		s.notify.NotifyOrderStatusChanged(ctx, o, orderdomain.StatusAwaitingPayment)
	}
	return Receipt{Payment: p, Charge: res.Charge}, nil
}

func (s *Service) Get(ctx context.Context, caller access.Caller, id string) (domain.Payment, error) {
	var (
		p domain.Payment
		o orderdomain.Order
	)
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		if p, err = tx.Payments().Get(ctx, id); err != nil {
			return err
		}
		o, err = tx.Orders().Get(ctx, p.OrderID)
		return err
	})
	if err != nil {
		return domain.Payment{}, err
	}
	if o.ConsumerID != "" {
		if err := s.authorize(ctx, caller, o); err != nil {
			return domain.Payment{}, err
		}
	}
	return p, nil
}

func (s *Service) ListByConsumer(ctx context.Context, caller access.Caller, consumerID string) ([]domain.Payment, error) {
	if caller.ID != consumerID && !caller.IsAdmin() {
		return nil, apperr.Forbidden("payments of consumer %s are not visible to the caller", consumerID)
	}
	var out []domain.Payment
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = tx.Payments().ListByConsumer(ctx, consumerID)
		return err
	})
	return out, err
}

// Confirm approves a payment by transaction id and pays its order. Confirming
// an approved payment again is a no-op.
func (s *Service) Confirm(ctx context.Context, caller access.Caller, transactionID string) (domain.Payment, error) {
	var orderMoved bool
	p, o, err := s.withPayment(ctx, caller, transactionID, false, func(ctx context.Context, tx store.Tx, o *orderdomain.Order, p *domain.Payment, now time.Time) error {
		if p.Status == domain.StatusApproved {
			return nil
		}
		var err error
		if orderMoved, err = Approve(ctx, tx, o, p, now); err != nil {
			return err
		}
		return completeActiveCharges(ctx, tx, p.ID, now)
	})
	if err != nil {
		return domain.Payment{}, err
	}
	if orderMoved {
		s.log.Info("payment confirmed", "order_id", o.ID, "transaction_id", p.TransactionID)
		s.notify.NotifyOrderStatusChanged(ctx, o, orderdomain.StatusAwaitingPayment)
	}
	return p, nil
}

// Cancel cancels an open payment and removes its active charges. The order
// keeps its status.
func (s *Service) Cancel(ctx context.Context, caller access.Caller, transactionID string) (domain.Payment, error) {
	p, _, err := s.withPayment(ctx, caller, transactionID, false, func(ctx context.Context, tx store.Tx, _ *orderdomain.Order, p *domain.Payment, now time.Time) error {
		changed, err := p.Cancel(now)
		if err != nil || !changed {
			return err
		}
		if err := tx.Payments().Update(ctx, *p); err != nil {
			return err
		}
		return RemoveActiveCharges(ctx, tx, p.ID, pixdomain.ChargeRemovedByReceiver, now)
	})
	if err != nil {
		return domain.Payment{}, err
	}
	s.log.Info("payment cancelled", "transaction_id", transactionID)
	return p, nil
}

// Refund marks an approved payment as refunded. Only the event manager may
// refund, and the order status is left alone.
func (s *Service) Refund(ctx context.Context, caller access.Caller, transactionID string) (domain.Payment, error) {
	p, _, err := s.withPayment(ctx, caller, transactionID, true, func(ctx context.Context, tx store.Tx, _ *orderdomain.Order, p *domain.Payment, now time.Time) error {
		if err := p.Refund(now); err != nil {
			return err
		}
		return tx.Payments().Update(ctx, *p)
	})
	if err != nil {
		return domain.Payment{}, err
	}
	s.log.Info("payment refunded", "transaction_id", transactionID)
	return p, nil
}

type paymentFn func(ctx context.Context, tx store.Tx, o *orderdomain.Order, p *domain.Payment, now time.Time) error

// withPayment locks the payment's order and then the payment itself before
// running fn.
func (s *Service) withPayment(ctx context.Context, caller access.Caller, transactionID string, managerOnly bool, fn paymentFn) (domain.Payment, orderdomain.Order, error) {
	var (
		p domain.Payment
		o orderdomain.Order
	)
	err := s.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		peek, err := tx.Payments().GetByTransactionID(ctx, transactionID)
		if err != nil {
			return err
		}
		if o, err = tx.Orders().GetForUpdate(ctx, peek.OrderID); err != nil {
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
		if p, err = tx.Payments().GetByTransactionIDForUpdate(ctx, transactionID); err != nil {
			return err
		}
		return fn(ctx, tx, &o, &p, s.now())
	})
	return p, o, err
}

func (s *Service) authorize(ctx context.Context, caller access.Caller, o orderdomain.Order) error {
	if caller.OwnsOrder(o.ConsumerID) {
		return nil
	}
	return s.authorizeManager(ctx, caller, o)
}

func (s *Service) authorizeManager(ctx context.Context, caller access.Caller, o orderdomain.Order) error {
	if caller.IsAdmin() {
		return nil
	}
	ev, err := s.events.GetEvent(ctx, o.EventID)
	if err != nil {
		return err
	}
	if !caller.ManagesEvent(ev.ManagerID) {
		return apperr.Forbidden("caller cannot act on payments of order %s", o.Number)
	}
	return nil
}
