package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/event-pos/pkg/apperr"
)

var now = time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newOrder(t *testing.T) Order {
	t.Helper()
	o, err := New("o1", "202503141830000001", "ev1", "c1", []Line{
		{ProductID: "burger", ProductName: "Burger", Quantity: 2, UnitPrice: dec("10.00"), PrepMinutes: 12},
		{ProductID: "fries", ProductName: "Fries", Quantity: 1, UnitPrice: dec("15.00"), PrepMinutes: 5},
	}, "", now)
	require.NoError(t, err)
	return o
}

func TestNewComputesTotal(t *testing.T) {
	o := newOrder(t)
	assert.True(t, o.Total.Equal(dec("35.00")), o.Total.String())
	assert.Equal(t, StatusAwaitingPayment, o.Status)
	assert.Equal(t, 12, o.EstimatedPrepMinutes)
	for _, it := range o.Items {
		assert.Equal(t, ItemPending, it.Status)
		assert.NotEmpty(t, it.ID)
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New("o1", "n", "ev1", "", nil, "", now)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = New("o1", "n", "ev1", "", []Line{{ProductID: "p", Quantity: 0, UnitPrice: dec("1")}}, "", now)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = New("o1", "n", "ev1", "", []Line{{ProductID: "p", Quantity: 1, UnitPrice: decimal.Zero}}, "", now)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTransitionLegality(t *testing.T) {
	all := []Status{StatusAwaitingPayment, StatusPaid, StatusConfirmed, StatusInPreparation,
		StatusReady, StatusDelivered, StatusCancelled}

	for _, from := range all {
		for _, to := range all {
			o := newOrder(t)
			o.Status = from
			_, err := o.TransitionStatus(to, now)
			if CanTransition(from, to) {
				require.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, o.Status)
			} else {
				require.ErrorIs(t, err, apperr.ErrInvalidTransition, "%s -> %s", from, to)
				assert.Equal(t, from, o.Status)
			}
		}
	}
}

func TestTransitionStampsMilestones(t *testing.T) {
	o := newOrder(t)
	steps := []Status{StatusPaid, StatusConfirmed, StatusInPreparation, StatusReady, StatusDelivered}
	for i, s := range steps {
		prev, err := o.TransitionStatus(s, now.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		if i > 0 {
			assert.Equal(t, steps[i-1], prev)
		}
	}
	require.NotNil(t, o.ConfirmedAt)
	require.NotNil(t, o.PreparingAt)
	require.NotNil(t, o.ReadyAt)
	require.NotNil(t, o.DeliveredAt)
	assert.Equal(t, now.Add(3*time.Minute), *o.ReadyAt)
}

func TestCancelDeliveredRejected(t *testing.T) {
	o := newOrder(t)
	o.Status = StatusDelivered
	_, err := o.Cancel(now)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.Equal(t, StatusDelivered, o.Status)
}

func TestDeliveredBeforePaidRejected(t *testing.T) {
	o := newOrder(t)
	_, err := o.TransitionStatus(StatusDelivered, now)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestCancelCancelsOpenItems(t *testing.T) {
	o := newOrder(t)
	o.Status = StatusReady
	o.Items[0].Status = ItemDelivered

	_, err := o.Cancel(now)
	require.NoError(t, err)
	assert.Equal(t, ItemDelivered, o.Items[0].Status)
	assert.Equal(t, ItemCancelled, o.Items[1].Status)
	require.NotNil(t, o.CancelledAt)
}

func TestSetAdjustments(t *testing.T) {
	o := newOrder(t)
	require.NoError(t, o.SetAdjustments(dec("3.50"), dec("5.00"), now))
	assert.True(t, o.Total.Equal(dec("33.50")))

	err := o.SetAdjustments(decimal.Zero, dec("100"), now)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.True(t, o.Total.Equal(dec("33.50")), "total unchanged on rejection")
	assert.True(t, o.Discount.Equal(dec("5.00")))
}

func TestChangeItemQuantityKeepsInvariant(t *testing.T) {
	o := newOrder(t)
	require.NoError(t, o.ChangeItemQuantity(o.Items[0].ID, 3, now))
	assert.True(t, o.Items[0].LineTotal.Equal(dec("30.00")))
	assert.True(t, o.Total.Equal(dec("45.00")))

	total, err := CalculateTotal(o.Items, o.ServiceFee, o.Discount)
	require.NoError(t, err)
	assert.True(t, total.Equal(o.Total))

	require.NoError(t, o.SetAdjustments(decimal.Zero, dec("40"), now))
	err = o.ChangeItemQuantity(o.Items[0].ID, 1, now)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 3, o.Items[0].Quantity)

	assert.ErrorIs(t, o.ChangeItemQuantity("missing", 1, now), apperr.ErrNotFound)

	o.Status = StatusPaid
	assert.ErrorIs(t, o.ChangeItemQuantity(o.Items[0].ID, 2, now), apperr.ErrInvalidState)
}

func TestAdvanceItem(t *testing.T) {
	o := newOrder(t)
	id := o.Items[0].ID

	_, err := o.AdvanceItem(id, ItemPreparing, now)
	assert.ErrorIs(t, err, apperr.ErrInvalidState, "unpaid order")

	o.Status = StatusPaid
	prev, err := o.AdvanceItem(id, ItemPreparing, now)
	require.NoError(t, err)
	assert.Equal(t, ItemPending, prev)

	_, err = o.AdvanceItem(id, ItemDelivered, now)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = o.AdvanceItem(id, ItemCancelled, now)
	require.NoError(t, err)
	_, err = o.AdvanceItem(id, ItemPreparing, now)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestNewNumber(t *testing.T) {
	n := NewNumber(now)
	assert.Len(t, n, 18)
	assert.Equal(t, "20250314183000", n[:14])
}
