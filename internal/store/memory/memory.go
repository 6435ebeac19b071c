// Package memory is an in-process store. A unit of work runs under one
// global lock against a copy of the state that replaces the live state only
// when the unit succeeds.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
	paymentdomain "github.com/dmehra2102/event-pos/internal/payment/domain"
	pixdomain "github.com/dmehra2102/event-pos/internal/pix/domain"
	"github.com/dmehra2102/event-pos/internal/store"
	"github.com/dmehra2102/event-pos/pkg/apperr"
	"github.com/dmehra2102/event-pos/pkg/outbox"
)

type state struct {
	orders   map[string]orderdomain.Order
	payments map[string]paymentdomain.Payment
	charges  map[string]pixdomain.Charge
	webhooks map[string]pixdomain.WebhookEvent
	outbox   []outbox.Event
	seq      int64
}

func (s *state) clone() *state {
	return &state{
		orders:   cloneMap(s.orders),
		payments: cloneMap(s.payments),
		charges:  cloneMap(s.charges),
		webhooks: cloneMap(s.webhooks),
		outbox:   slices.Clone(s.outbox),
		seq:      s.seq,
	}
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: &state{
		orders:   map[string]orderdomain.Order{},
		payments: map[string]paymentdomain.Payment{},
		charges:  map[string]pixdomain.Charge{},
		webhooks: map[string]pixdomain.WebhookEvent{},
	}}
}

var _ store.UnitOfWork = (*Store)(nil)

func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

type tx struct{ st *state }

func (t *tx) Orders() store.Orders     { return orders{t.st} }
func (t *tx) Payments() store.Payments { return payments{t.st} }
func (t *tx) Charges() store.Charges   { return charges{t.st} }
func (t *tx) Webhooks() store.Webhooks { return webhooks{t.st} }
func (t *tx) Outbox() outbox.Writer    { return outboxWriter{t.st} }

// Stored values are never mutated in place: every read and write copies the
// slices a value owns.

func copyOrder(o orderdomain.Order) orderdomain.Order {
	o.Items = slices.Clone(o.Items)
	return o
}

func copyPayment(p paymentdomain.Payment) paymentdomain.Payment {
	p.GatewayResponse = slices.Clone(p.GatewayResponse)
	return p
}

func copyCharge(c pixdomain.Charge) pixdomain.Charge {
	c.LastWebhookPayload = slices.Clone(c.LastWebhookPayload)
	return c
}

func copyWebhook(e pixdomain.WebhookEvent) pixdomain.WebhookEvent {
	e.Payload = slices.Clone(e.Payload)
	return e
}

type orders struct{ st *state }

func (r orders) Get(_ context.Context, id string) (orderdomain.Order, error) {
	o, ok := r.st.orders[id]
	if !ok {
		return orderdomain.Order{}, apperr.NotFound("order %s not found", id)
	}
	return copyOrder(o), nil
}

func (r orders) GetForUpdate(ctx context.Context, id string) (orderdomain.Order, error) {
	return r.Get(ctx, id)
}

func (r orders) GetByItemForUpdate(_ context.Context, itemID string) (orderdomain.Order, error) {
	for _, o := range r.st.orders {
		if _, ok := o.Item(itemID); ok {
			return copyOrder(o), nil
		}
	}
	return orderdomain.Order{}, apperr.NotFound("order item %s not found", itemID)
}

func (r orders) ListByConsumer(_ context.Context, consumerID string) ([]orderdomain.Order, error) {
	return r.list(func(o orderdomain.Order) bool { return o.ConsumerID == consumerID }), nil
}

func (r orders) ListByEvent(_ context.Context, eventID string) ([]orderdomain.Order, error) {
	return r.list(func(o orderdomain.Order) bool { return o.EventID == eventID }), nil
}

func (r orders) list(keep func(orderdomain.Order) bool) []orderdomain.Order {
	var out []orderdomain.Order
	for _, o := range r.st.orders {
		if keep(o) {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r orders) NumberTaken(_ context.Context, eventID, number string) (bool, error) {
	for _, o := range r.st.orders {
		if o.EventID == eventID && o.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (r orders) Add(_ context.Context, o orderdomain.Order) error {
	if _, ok := r.st.orders[o.ID]; ok {
		return apperr.Validation("order %s already exists", o.ID)
	}
	r.st.orders[o.ID] = copyOrder(o)
	return nil
}

func (r orders) Update(_ context.Context, o orderdomain.Order) error {
	if _, ok := r.st.orders[o.ID]; !ok {
		return apperr.NotFound("order %s not found", o.ID)
	}
	r.st.orders[o.ID] = copyOrder(o)
	return nil
}

type payments struct{ st *state }

func (r payments) Get(_ context.Context, id string) (paymentdomain.Payment, error) {
	p, ok := r.st.payments[id]
	if !ok {
		return paymentdomain.Payment{}, apperr.NotFound("payment %s not found", id)
	}
	return copyPayment(p), nil
}

func (r payments) GetByTransactionIDForUpdate(ctx context.Context, transactionID string) (paymentdomain.Payment, error) {
	return r.GetByTransactionID(ctx, transactionID)
}

func (r payments) GetByTransactionID(_ context.Context, transactionID string) (paymentdomain.Payment, error) {
	for _, p := range r.st.payments {
		if p.TransactionID == transactionID {
			return copyPayment(p), nil
		}
	}
	return paymentdomain.Payment{}, apperr.NotFound("payment with transaction %s not found", transactionID)
}

func (r payments) ListByOrder(_ context.Context, orderID string) ([]paymentdomain.Payment, error) {
	return r.list(func(p paymentdomain.Payment) bool { return p.OrderID == orderID }), nil
}

func (r payments) ListByConsumer(_ context.Context, consumerID string) ([]paymentdomain.Payment, error) {
	return r.list(func(p paymentdomain.Payment) bool {
		o, ok := r.st.orders[p.OrderID]
		return ok && o.ConsumerID == consumerID
	}), nil
}

func (r payments) list(keep func(paymentdomain.Payment) bool) []paymentdomain.Payment {
	var out []paymentdomain.Payment
	for _, p := range r.st.payments {
		if keep(p) {
			out = append(out, copyPayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r payments) Add(_ context.Context, p paymentdomain.Payment) error {
	if _, ok := r.st.payments[p.ID]; ok {
		return apperr.Validation("payment %s already exists", p.ID)
	}
	r.st.payments[p.ID] = copyPayment(p)
	return nil
}

func (r payments) Update(_ context.Context, p paymentdomain.Payment) error {
	if _, ok := r.st.payments[p.ID]; !ok {
		return apperr.NotFound("payment %s not found", p.ID)
	}
	r.st.payments[p.ID] = copyPayment(p)
	return nil
}

type charges struct{ st *state }

func (r charges) Get(_ context.Context, id string) (pixdomain.Charge, error) {
	c, ok := r.st.charges[id]
	if !ok {
		return pixdomain.Charge{}, apperr.NotFound("charge %s not found", id)
	}
	return copyCharge(c), nil
}

func (r charges) GetByPSPTransactionID(_ context.Context, txid string) (pixdomain.Charge, error) {
	for _, c := range r.st.charges {
		if c.PSPTransactionID == txid {
			return copyCharge(c), nil
		}
	}
	return pixdomain.Charge{}, apperr.NotFound("charge with transaction %s not found", txid)
}

func (r charges) GetByPSPTransactionIDForUpdate(ctx context.Context, txid string) (pixdomain.Charge, error) {
	return r.GetByPSPTransactionID(ctx, txid)
}

func (r charges) ListByOrder(_ context.Context, orderID string) ([]pixdomain.Charge, error) {
	return r.list(func(c pixdomain.Charge) bool { return c.OrderID == orderID }), nil
}

func (r charges) ListByPayment(_ context.Context, paymentID string) ([]pixdomain.Charge, error) {
	return r.list(func(c pixdomain.Charge) bool { return c.PaymentID == paymentID }), nil
}

func (r charges) list(keep func(pixdomain.Charge) bool) []pixdomain.Charge {
	var out []pixdomain.Charge
	for _, c := range r.st.charges {
		if keep(c) {
			out = append(out, copyCharge(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r charges) Add(_ context.Context, c pixdomain.Charge) error {
	if _, ok := r.st.charges[c.ID]; ok {
		return apperr.Validation("charge %s already exists", c.ID)
	}
	for _, other := range r.st.charges {
		if other.PSPTransactionID == c.PSPTransactionID {
			return apperr.Validation("charge with transaction %s already exists", c.PSPTransactionID)
		}
	}
	r.st.charges[c.ID] = copyCharge(c)
	return nil
}

func (r charges) Update(_ context.Context, c pixdomain.Charge) error {
	if _, ok := r.st.charges[c.ID]; !ok {
		return apperr.NotFound("charge %s not found", c.ID)
	}
	r.st.charges[c.ID] = copyCharge(c)
	return nil
}

type webhooks struct{ st *state }

func (r webhooks) Add(_ context.Context, e pixdomain.WebhookEvent) error {
	if _, ok := r.st.webhooks[e.ID]; ok {
		return apperr.Validation("webhook event %s already exists", e.ID)
	}
	r.st.webhooks[e.ID] = copyWebhook(e)
	return nil
}

func (r webhooks) Get(_ context.Context, id string) (pixdomain.WebhookEvent, error) {
	e, ok := r.st.webhooks[id]
	if !ok {
		return pixdomain.WebhookEvent{}, apperr.NotFound("webhook event %s not found", id)
	}
	return copyWebhook(e), nil
}

func (r webhooks) Update(_ context.Context, e pixdomain.WebhookEvent) error {
	if _, ok := r.st.webhooks[e.ID]; !ok {
		return apperr.NotFound("webhook event %s not found", e.ID)
	}
	r.st.webhooks[e.ID] = copyWebhook(e)
	return nil
}

func (r webhooks) ListRetryable(_ context.Context, maxAttempts, limit int) ([]pixdomain.WebhookEvent, error) {
	var out []pixdomain.WebhookEvent
	for _, e := range r.st.webhooks {
		if !e.Processed && e.Attempts < maxAttempts {
			out = append(out, copyWebhook(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type outboxWriter struct{ st *state }

func (w outboxWriter) Enqueue(_ context.Context, e outbox.Event) error {
	w.st.seq++
	e.ID = w.st.seq
	e.Status = outbox.StatusPending
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	w.st.outbox = append(w.st.outbox, e)
	return nil
}
