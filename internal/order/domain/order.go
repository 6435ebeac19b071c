package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dmehra2102/event-pos/pkg/apperr"
)

type Status string

const (
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusPaid            Status = "paid"
	StatusConfirmed       Status = "confirmed"
	StatusInPreparation   Status = "in_preparation"
	StatusReady           Status = "ready"
	StatusDelivered       Status = "delivered"
	StatusCancelled       Status = "cancelled"
)

// forward holds the single allowed forward edge out of each state.
var forward = map[Status]Status{
	StatusAwaitingPayment: StatusPaid,
	StatusPaid:            StatusConfirmed,
	StatusConfirmed:       StatusInPreparation,
	StatusInPreparation:   StatusReady,
	StatusReady:           StatusDelivered,
}

func (s Status) Valid() bool {
	switch s {
	case StatusAwaitingPayment, StatusPaid, StatusConfirmed, StatusInPreparation,
		StatusReady, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether from -> to is an edge of the order state machine.
func CanTransition(from, to Status) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return forward[from] == to
}

// Line is the catalog snapshot an item is created from.
type Line struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	PrepMinutes int
	Note        string
}

type Order struct {
	ID         string
	Number     string
	EventID    string
	ConsumerID string
	Status     Status
	Items      []Item

	Total      decimal.Decimal
	ServiceFee decimal.Decimal
	Discount   decimal.Decimal

	Note                 string
	EstimatedPrepMinutes int

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ConfirmedAt *time.Time
	PreparingAt *time.Time
	ReadyAt     *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
}

// New builds an order awaiting payment. Unit prices are taken from the lines
// and never re-read afterwards.
func New(id, number, eventID, consumerID string, lines []Line, note string, now time.Time) (Order, error) {
	if eventID == "" {
		return Order{}, apperr.Validation("event is required")
	}
	if len(lines) == 0 {
		return Order{}, apperr.Validation("order has no items")
	}

	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return Order{}, apperr.Validation("quantity for product %s must be positive", l.ProductID)
		}
		if !l.UnitPrice.IsPositive() {
			return Order{}, apperr.Validation("price for product %s must be positive", l.ProductID)
		}
		items = append(items, Item{
			ID:          uuid.NewString(),
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			LineTotal:   l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))),
			Status:      ItemPending,
			Note:        l.Note,
			PrepMinutes: l.PrepMinutes,
		})
	}

	now = now.UTC()
	o := Order{
		ID:         id,
		Number:     number,
		EventID:    eventID,
		ConsumerID: consumerID,
		Status:     StatusAwaitingPayment,
		Items:      items,
		ServiceFee: decimal.Zero,
		Discount:   decimal.Zero,
		Note:       note,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.RecomputeTotal(); err != nil {
		return Order{}, err
	}
	o.EstimatedPrepMinutes = o.estimatePrep()
	return o, nil
}

// CalculateTotal is sum(lineTotal) + fee - discount. A negative result is a
// validation error, never clamped.
func CalculateTotal(items []Item, fee, discount decimal.Decimal) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal)
	}
	total := sum.Add(fee).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero, apperr.Validation("order total cannot be negative (%s)", total.StringFixed(2))
	}
	return total, nil
}

func (o *Order) RecomputeTotal() error {
	total, err := CalculateTotal(o.Items, o.ServiceFee, o.Discount)
	if err != nil {
		return err
	}
	o.Total = total
	return nil
}

// TransitionStatus moves the order along the state machine, stamping the
// milestone reached. It returns the previous status.
func (o *Order) TransitionStatus(to Status, now time.Time) (Status, error) {
	if !to.Valid() {
		return o.Status, apperr.Validation("unknown order status %q", to)
	}
	prev := o.Status
	if !CanTransition(prev, to) {
		return prev, apperr.InvalidTransition("order %s cannot move from %s to %s", o.Number, prev, to)
	}

	now = now.UTC()
	switch to {
	case StatusConfirmed:
		o.ConfirmedAt = &now
	case StatusInPreparation:
		o.PreparingAt = &now
	case StatusReady:
		o.ReadyAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
		for i := range o.Items {
			if !o.Items[i].Status.Terminal() {
				o.Items[i].Status = ItemCancelled
			}
		}
	}
	o.Status = to
	o.UpdatedAt = now
	return prev, nil
}

func (o *Order) Cancel(now time.Time) (Status, error) {
	return o.TransitionStatus(StatusCancelled, now)
}

// SetAdjustments replaces the service fee and discount. The order is left
// untouched when the resulting total would be negative.
func (o *Order) SetAdjustments(fee, discount decimal.Decimal, now time.Time) error {
	if o.Status != StatusAwaitingPayment {
		return apperr.InvalidState("order %s is not awaiting payment", o.Number)
	}
	if fee.IsNegative() || discount.IsNegative() {
		return apperr.Validation("service fee and discount must not be negative")
	}
	total, err := CalculateTotal(o.Items, fee, discount)
	if err != nil {
		return err
	}
	o.ServiceFee, o.Discount, o.Total = fee, discount, total
	o.UpdatedAt = now.UTC()
	return nil
}

func (o *Order) ChangeItemQuantity(itemID string, qty int, now time.Time) error {
	if o.Status != StatusAwaitingPayment {
		return apperr.InvalidState("order %s is not awaiting payment", o.Number)
	}
	if qty <= 0 {
		return apperr.Validation("quantity must be positive")
	}
	idx := o.itemIndex(itemID)
	if idx < 0 {
		return apperr.NotFound("item %s not found in order %s", itemID, o.Number)
	}

	items := make([]Item, len(o.Items))
	copy(items, o.Items)
	items[idx].Quantity = qty
	items[idx].LineTotal = items[idx].UnitPrice.Mul(decimal.NewFromInt(int64(qty)))

	total, err := CalculateTotal(items, o.ServiceFee, o.Discount)
	if err != nil {
		return err
	}
	o.Items, o.Total = items, total
	o.UpdatedAt = now.UTC()
	return nil
}

// AdvanceItem moves one item along its own state machine. Items only move
// once the order has been paid and before it is delivered or cancelled.
func (o *Order) AdvanceItem(itemID string, to ItemStatus, now time.Time) (ItemStatus, error) {
	idx := o.itemIndex(itemID)
	if idx < 0 {
		return "", apperr.NotFound("item %s not found in order %s", itemID, o.Number)
	}
	if !to.Valid() {
		return o.Items[idx].Status, apperr.Validation("unknown item status %q", to)
	}
	switch o.Status {
	case StatusPaid, StatusConfirmed, StatusInPreparation, StatusReady:
	default:
		return o.Items[idx].Status, apperr.InvalidState("items of order %s cannot change while %s", o.Number, o.Status)
	}

	prev := o.Items[idx].Status
	if !CanTransitionItem(prev, to) {
		return prev, apperr.InvalidTransition("item %s cannot move from %s to %s", itemID, prev, to)
	}
	o.Items[idx].Status = to
	o.UpdatedAt = now.UTC()
	return prev, nil
}

func (o *Order) Item(itemID string) (Item, bool) {
	if idx := o.itemIndex(itemID); idx >= 0 {
		return o.Items[idx], true
	}
	return Item{}, false
}

func (o *Order) itemIndex(itemID string) int {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

func (o *Order) estimatePrep() int {
	m := 0
	for _, it := range o.Items {
		m = max(m, it.PrepMinutes)
	}
	return m
}
