package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
	paymentapp "github.com/dmehra2102/event-pos/internal/payment/application"
	paymentdomain "github.com/dmehra2102/event-pos/internal/payment/domain"
	"github.com/dmehra2102/event-pos/internal/pix/domain"
	"github.com/dmehra2102/event-pos/internal/store"
	"github.com/dmehra2102/event-pos/pkg/access"
	"github.com/dmehra2102/event-pos/pkg/apperr"
)

const EventMalformed = "malformed"

// Reconciler applies PSP notifications to charges, payments and orders.
// Every notification is stored before it is applied; a failure while
// applying leaves the stored event unprocessed with the error attached.
type Reconciler struct {
	log         *slog.Logger
	uow         store.UnitOfWork
	notify      Notifier
	maxAttempts int
	now         func() time.Time
}

func NewReconciler(log *slog.Logger, uow store.UnitOfWork, notify Notifier, maxAttempts int) *Reconciler {
	return &Reconciler{log: log, uow: uow, notify: notify, maxAttempts: maxAttempts, now: time.Now}
}

// Ingest stores and applies one notification. Only a failure to store the
// event is returned as an error; reconciliation problems are recorded on the
// returned event.
func (r *Reconciler) Ingest(ctx context.Context, n domain.Notification) (domain.WebhookEvent, error) {
	ev := domain.NewWebhookEvent(uuid.NewString(), n, r.now())
	if err := r.persist(ctx, ev); err != nil {
		return domain.WebhookEvent{}, err
	}
	return r.process(ctx, ev.ID)
}

// IngestRaw splits a webhook body into notifications and ingests each. A
// body that cannot be parsed is stored as a single unprocessed event.
func (r *Reconciler) IngestRaw(ctx context.Context, psp string, body []byte) ([]domain.WebhookEvent, error) {
	notes, err := domain.ParseBCBWebhook(psp, body)
	if err != nil {
		ev := domain.NewWebhookEvent(uuid.NewString(), domain.Notification{
			PSPIdentifier: psp,
			EventType:     EventMalformed,
			Payload:       body,
		}, r.now())
		ev.MarkFailed(r.now(), err)
		if perr := r.persist(ctx, ev); perr != nil {
			return nil, perr
		}
		r.log.Warn("malformed webhook stored", "webhook_id", ev.ID, "psp", psp, "err", err)
		return []domain.WebhookEvent{ev}, nil
	}

	out := make([]domain.WebhookEvent, 0, len(notes))
	for _, n := range notes {
		ev, err := r.Ingest(ctx, n)
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// Replay re-runs a stored event. Processed events are returned unchanged.
func (r *Reconciler) Replay(ctx context.Context, caller access.Caller, id string) (domain.WebhookEvent, error) {
	if !caller.IsAdmin() {
		return domain.WebhookEvent{}, apperr.Forbidden("only operators can replay webhook events")
	}
	return r.process(ctx, id)
}

// ReplayPending replays unprocessed events that still have attempts left
// and reports how many of them ended processed.
func (r *Reconciler) ReplayPending(ctx context.Context, limit int) (int, error) {
	var pending []domain.WebhookEvent
	err := r.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		pending, err = tx.Webhooks().ListRetryable(ctx, r.maxAttempts, limit)
		return err
	})
	if err != nil {
		return 0, err
	}

	done := 0
	for _, ev := range pending {
		if ev.EventType == EventMalformed {
			continue
		}
		out, err := r.process(ctx, ev.ID)
		if err != nil {
			return done, err
		}
		if out.Processed {
			done++
		}
	}
	return done, nil
}

func (r *Reconciler) persist(ctx context.Context, ev domain.WebhookEvent) error {
	return r.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Webhooks().Add(ctx, ev)
	})
}

type outcome struct {
	order      orderdomain.Order
	orderMoved bool
	duplicate  bool
}

func (r *Reconciler) process(ctx context.Context, id string) (domain.WebhookEvent, error) {
	var ev domain.WebhookEvent
	err := r.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		ev, err = tx.Webhooks().Get(ctx, id)
		return err
	})
	if err != nil {
		return domain.WebhookEvent{}, err
	}
	if ev.Processed {
		return ev, nil
	}

	var out outcome
	applyErr := r.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, err = r.apply(ctx, tx, ev)
		return err
	})

	err = r.uow.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.Webhooks().Get(ctx, id)
		if err != nil {
			return err
		}
		if applyErr != nil {
			current.MarkFailed(r.now(), applyErr)
		} else {
			current.MarkProcessed(r.now())
		}
		ev = current
		return tx.Webhooks().Update(ctx, current)
	})
	if err != nil {
		r.log.Error("webhook status not recorded", "webhook_id", id, "err", err)
		return domain.WebhookEvent{}, err
	}

	switch {
	case applyErr != nil:
		r.log.Warn("webhook reconciliation failed", "webhook_id", id, "txid", ev.PSPTransactionID,
			"attempts", ev.Attempts, "err", applyErr)
	case out.duplicate:
		r.log.Info("duplicate webhook ignored", "webhook_id", id, "txid", ev.PSPTransactionID)
	default:
		r.log.Info("webhook applied", "webhook_id", id, "txid", ev.PSPTransactionID, "type", ev.EventType)
	}
	if out.orderMoved {
		o := out.order
		r.notify.NotifyOrderStatusChanged(ctx, o, orderdomain.StatusAwaitingPayment)
	}
	return ev, nil
}

func (r *Reconciler) apply(ctx context.Context, tx store.Tx, ev domain.WebhookEvent) (outcome, error) {
	if ev.PSPTransactionID == "" {
		return outcome{}, apperr.Reconciliation(nil, "notification carries no transaction id")
	}
	peek, err := tx.Charges().GetByPSPTransactionID(ctx, ev.PSPTransactionID)
	if err != nil {
		return outcome{}, apperr.Reconciliation(err, "lookup charge %s", ev.PSPTransactionID)
	}
	o, err := tx.Orders().GetForUpdate(ctx, peek.OrderID)
	if err != nil {
		return outcome{}, apperr.Reconciliation(err, "lookup order of charge %s", ev.PSPTransactionID)
	}
	c, err := tx.Charges().GetByPSPTransactionIDForUpdate(ctx, ev.PSPTransactionID)
	if err != nil {
		return outcome{}, apperr.Reconciliation(err, "lock charge %s", ev.PSPTransactionID)
	}
	p, err := tx.Payments().Get(ctx, c.PaymentID)
	if err != nil {
		return outcome{}, apperr.Reconciliation(err, "lookup payment of charge %s", ev.PSPTransactionID)
	}

	now := r.now()
	if ev.EventType == domain.EventPixRemoved {
		return outcome{order: o}, r.applyRemoval(ctx, tx, &c, &p, now)
	}

	if c.Status == domain.ChargeCompleted {
		return outcome{order: o, duplicate: true}, nil
	}
	if ev.Amount.Valid && !paymentdomain.WithinTolerance(ev.Amount.Decimal, c.Amount) {
		return outcome{}, apperr.Reconciliation(nil, "received %s but charge %s is for %s",
			ev.Amount.Decimal.StringFixed(2), c.PSPTransactionID, c.Amount.StringFixed(2))
	}
	paidAt := now
	if ev.PaidAt != nil {
		paidAt = *ev.PaidAt
	}
	if _, err := c.Complete(paidAt, ev.EndToEndID, ev.Payload); err != nil {
		return outcome{}, apperr.Reconciliation(err, "complete charge %s", c.PSPTransactionID)
	}
	if err := tx.Charges().Update(ctx, c); err != nil {
		return outcome{}, err
	}

	moved, err := paymentapp.Approve(ctx, tx, &o, &p, now)
	if err != nil {
		return outcome{}, apperr.Reconciliation(err, "approve payment %s", p.TransactionID)
	}
	return outcome{order: o, orderMoved: moved}, nil
}

func (r *Reconciler) applyRemoval(ctx context.Context, tx store.Tx, c *domain.Charge, p *paymentdomain.Payment, now time.Time) error {
	if c.Status == domain.ChargeRemovedByPSP {
		return nil
	}
	if err := c.Remove(domain.ChargeRemovedByPSP, now); err != nil {
		return apperr.Reconciliation(err, "remove charge %s", c.PSPTransactionID)
	}
	if err := tx.Charges().Update(ctx, *c); err != nil {
		return err
	}
	changed, err := p.Cancel(now)
	if errors.Is(err, apperr.ErrInvalidState) {
		return nil
	}
	if err != nil || !changed {
		return err
	}
	return tx.Payments().Update(ctx, *p)
}
