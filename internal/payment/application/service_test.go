package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
	"github.com/dmehra2102/event-pos/internal/payment/application"
	"github.com/dmehra2102/event-pos/internal/payment/domain"
	pixdomain "github.com/dmehra2102/event-pos/internal/pix/domain"
	"github.com/dmehra2102/event-pos/internal/store"
	"github.com/dmehra2102/event-pos/internal/testkit"
	"github.com/dmehra2102/event-pos/pkg/access"
	"github.com/dmehra2102/event-pos/pkg/apperr"
)

func TestCashConfirmPaysOrderOnce(t *testing.T) {
	k := testkit.New(t, testkit.Options{})
	ctx := context.Background()
	o := k.PlaceOrder(t)

	r, err := k.Payments.Process(ctx, testkit.Customer, application.ProcessInput{OrderID: o.ID, Method: domain.MethodCash})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, r.Payment.Status)
	assert.Nil(t, r.Charge)
	assert.Equal(t, "35.00", r.Payment.Amount.StringFixed(2))

	p, err := k.Payments.Confirm(ctx, testkit.Manager, r.Payment.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, p.Status)
	require.NotNil(t, p.ConfirmedAt)
	paid := k.Order(t, o.ID)
	assert.Equal(t, orderdomain.StatusPaid, paid.Status)
	notified := len(k.Store.OutboxEvents())

	again, err := k.Payments.Confirm(ctx, testkit.Manager, r.Payment.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, again.Status)
	assert.Equal(t, *p.ConfirmedAt, *again.ConfirmedAt)
	assert.Equal(t, paid.UpdatedAt, k.Order(t, o.ID).UpdatedAt)
	assert.Len(t, k.Store.OutboxEvents(), notified)
}

func TestCardApprovedPaysImmediately(t *testing.T) {
	k := testkit.New(t, testkit.Options{CardApprovalRate: 1})
	o := k.PlaceOrder(t)

	r, err := k.Payments.Process(context.Background(), testkit.Customer, application.ProcessInput{
		OrderID: o.ID,
		Method:  domain.MethodCard,
		Details: application.Details{CardToken: "tok", Installments: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, r.Payment.Status)
	assert.Equal(t, "card-simulator", r.Payment.Gateway)
	assert.Contains(t, string(r.Payment.GatewayResponse), `"installments":2`)
	assert.Equal(t, orderdomain.StatusPaid, k.Order(t, o.ID).Status)
}

func TestCardDeniedLeavesOrderWaiting(t *testing.T) {
	k := testkit.New(t, testkit.Options{CardApprovalRate: 0})
	ctx := context.Background()
	o := k.PlaceOrder(t)

	r, err := k.Payments.Process(ctx, testkit.Customer, application.ProcessInput{OrderID: o.ID, Method: domain.MethodCard})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDenied, r.Payment.Status)
	assert.Equal(t, orderdomain.StatusAwaitingPayment, k.Order(t, o.ID).Status)

	// A new attempt is still possible.
	r2, err := k.Payments.Process(ctx, testkit.Customer, application.ProcessInput{OrderID: o.ID, Method: domain.MethodCash})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, r2.Payment.Status)
}

func TestProcessChecksAmount(t *testing.T) {
	k := testkit.New(t, testkit.Options{})
	ctx := context.Background()
	o := k.PlaceOrder(t)

	_, err := k.Payments.Process(ctx, testkit.Customer, application.ProcessInput{
		OrderID: o.ID, Method: domain.MethodCash, Amount: decimal.RequireFromString("34.50"),
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = k.Payments.Process(ctx, testkit.Customer, application.ProcessInput{
		OrderID: o.ID, Method: domain.MethodCash, Amount: decimal.RequireFromString("34.99"),
	})
	assert.NoError(t, err)

	_, err = k.Payments.Process(ctx, testkit.Customer, application.ProcessInput{OrderID: o.ID, Method: "cheque"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestNewAttemptSupersedesOpenOne(t *testing.T) {
	k := testkit.New(t, testkit.Options{})
	ctx := context.Background()
	o := k.PlaceOrder(t)

	first, err := k.Payments.Process(ctx, testkit.Customer, application.ProcessInput{OrderID: o.ID, Method: domain.MethodPix})
	require.NoError(t, err)
	_, err = k.Payments.Process(ctx, testkit.Customer, application.ProcessInput{OrderID: o.ID, Method: domain.MethodCash})
	require.NoError(t, err)

	p, err := k.Payments.Get(ctx, testkit.Customer, first.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, p.Status)
	c, err := k.Charges.Get(ctx, testkit.Customer, first.Charge.ID)
	require.NoError(t, err)
	assert.Equal(t, pixdomain.ChargeRemovedByReceiver, c.Status)
}

func TestProcessRejectsPaidOrder(t *testing.T) {
	k := testkit.New(t, testkit.Options{CardApprovalRate: 1})
	ctx := context.Background()
	o := k.PlaceOrder(t)
	_, err := k.Payments.Process(ctx, testkit.Customer, application.ProcessInput{OrderID: o.ID, Method: domain.MethodCard})
	require.NoError(t, err)

	_, err = k.Payments.Process(ctx, testkit.Customer, application.ProcessInput{OrderID: o.ID, Method: domain.MethodCash})
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestCancelPayment(t *testing.T) {
	k := testkit.New(t, testkit.Options{})
	ctx := context.Background()
	o := k.PlaceOrder(t)
	r, err := k.Payments.Process(ctx, testkit.Customer, application.ProcessInput{OrderID: o.ID, Method: domain.MethodPix})
	require.NoError(t, err)

	p, err := k.Payments.Cancel(ctx, testkit.Customer, r.Payment.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, p.Status)
	assert.Equal(t, orderdomain.StatusAwaitingPayment, k.Order(t, o.ID).Status)

	_, err = k.Payments.Cancel(ctx, testkit.Customer, r.Payment.TransactionID)
	assert.NoError(t, err)

	c, err := k.Charges.Get(ctx, testkit.Customer, r.Charge.ID)
	require.NoError(t, err)
	assert.Equal(t, pixdomain.ChargeRemovedByReceiver, c.Status)

	_, err = k.Payments.Confirm(ctx, testkit.Manager, r.Payment.TransactionID)
	assert.Error(t, err)
}

func TestRefundOnlyByManager(t *testing.T) {
	k := testkit.New(t, testkit.Options{CardApprovalRate: 1})
	ctx := context.Background()
	o := k.PlaceOrder(t)
	r, err := k.Payments.Process(ctx, testkit.Customer, application.ProcessInput{OrderID: o.ID, Method: domain.MethodCard})
	require.NoError(t, err)

	_, err = k.Payments.Refund(ctx, testkit.Customer, r.Payment.TransactionID)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	p, err := k.Payments.Refund(ctx, testkit.Manager, r.Payment.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRefunded, p.Status)
	assert.Equal(t, orderdomain.StatusPaid, k.Order(t, o.ID).Status)
}

func TestPaymentVisibility(t *testing.T) {
	k := testkit.New(t, testkit.Options{})
	ctx := context.Background()
	o := k.PlaceOrder(t)
	r, err := k.Payments.Process(ctx, testkit.Customer, application.ProcessInput{OrderID: o.ID, Method: domain.MethodCash})
	require.NoError(t, err)

	stranger := access.Caller{ID: "other", Role: access.RoleConsumer}
	_, err = k.Payments.Get(ctx, stranger, r.Payment.ID)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
	_, err = k.Payments.Confirm(ctx, stranger, r.Payment.TransactionID)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	list, err := k.Payments.ListByConsumer(ctx, testkit.Customer, testkit.Consumer)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	_, err = k.Payments.ListByConsumer(ctx, stranger, testkit.Consumer)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestTotalChangeCancelsOpenPayment(t *testing.T) {
	k := testkit.New(t, testkit.Options{})
	ctx := context.Background()
	o := k.PlaceOrder(t)

	cash, err := k.Payments.Process(ctx, testkit.Customer, application.ProcessInput{OrderID: o.ID, Method: domain.MethodCash})
	require.NoError(t, err)

	changed, err := k.Orders.ChangeItemQuantity(ctx, testkit.Customer, o.ID, o.Items[0].ID, 5)
	require.NoError(t, err)
	assert.Equal(t, "65.00", changed.Total.StringFixed(2))

	_, err = k.Payments.Confirm(ctx, testkit.Manager, cash.Payment.TransactionID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	got := k.Order(t, o.ID)
	assert.Equal(t, orderdomain.StatusAwaitingPayment, got.Status)

	pix, err := k.Payments.Process(ctx, testkit.Customer, application.ProcessInput{OrderID: o.ID, Method: domain.MethodPix})
	require.NoError(t, err)
	_, err = k.Orders.SetAdjustments(ctx, testkit.Manager, o.ID, decimal.Zero, decimal.NewFromInt(5))
	require.NoError(t, err)

	p, err := k.Payments.Get(ctx, testkit.Customer, pix.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, p.Status)
	c, err := k.Charges.Get(ctx, testkit.Customer, pix.Charge.ID)
	require.NoError(t, err)
	assert.Equal(t, pixdomain.ChargeRemovedByReceiver, c.Status)
}

func TestApproveRejectsAmountOffTotal(t *testing.T) {
	k := testkit.New(t, testkit.Options{})
	ctx := context.Background()
	o := k.PlaceOrder(t)
	now := time.Now()

	p, err := domain.New("pay-x", o.ID, "tx-x", decimal.RequireFromString("30.00"), domain.MethodCash, now)
	require.NoError(t, err)

	err = k.Store.Do(ctx, func(ctx context.Context, tx store.Tx) error {
		locked, err := tx.Orders().GetForUpdate(ctx, o.ID)
		if err != nil {
			return err
		}
		_, err = application.Approve(ctx, tx, &locked, &p, now)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, domain.StatusPending, p.Status)
	assert.Equal(t, orderdomain.StatusAwaitingPayment, k.Order(t, o.ID).Status)
}
