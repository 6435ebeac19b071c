package application_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
	paymentapp "github.com/dmehra2102/event-pos/internal/payment/application"
	paymentdomain "github.com/dmehra2102/event-pos/internal/payment/domain"
	pixapp "github.com/dmehra2102/event-pos/internal/pix/application"
	"github.com/dmehra2102/event-pos/internal/pix/domain"
	"github.com/dmehra2102/event-pos/internal/testkit"
	"github.com/dmehra2102/event-pos/pkg/access"
	"github.com/dmehra2102/event-pos/pkg/apperr"
)

func pixReceipt(t *testing.T, k *testkit.Kit) (orderdomain.Order, paymentapp.Receipt) {
	t.Helper()
	o := k.PlaceOrder(t)
	r, err := k.Payments.Process(context.Background(), testkit.Customer, paymentapp.ProcessInput{
		OrderID: o.ID,
		Method:  paymentdomain.MethodPix,
	})
	require.NoError(t, err)
	require.NotNil(t, r.Charge)
	return o, r
}

func webhookBody(txid, amount string) []byte {
	return []byte(fmt.Sprintf(`{"pix":[{"endToEndId":"E123","txid":%q,"valor":%q,"horario":"2024-05-01T12:00:00-03:00"}]}`, txid, amount))
}

func TestReconcilerPaysOrderOnce(t *testing.T) {
	k := testkit.New(t, testkit.Options{})
	ctx := context.Background()
	o, r := pixReceipt(t, k)
	assert.Equal(t, paymentdomain.StatusPending, r.Payment.Status)
	assert.True(t, r.Charge.Simulated)

	body := webhookBody(r.Charge.PSPTransactionID, "35.00")

	evs, err := k.Reconciler.IngestRaw(ctx, "bank", body)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.True(t, evs[0].Processed)
	assert.Empty(t, evs[0].LastError)
	assert.Equal(t, string(body[len(`{"pix":[`):len(body)-len(`]}`)]), string(evs[0].Payload))

	assert.Equal(t, orderdomain.StatusPaid, k.Order(t, o.ID).Status)
	c, err := k.Charges.GetByTransactionID(ctx, testkit.Customer, r.Charge.PSPTransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.ChargeCompleted, c.Status)
	assert.Equal(t, "E123", c.PSPPaymentID)
	require.NotNil(t, c.PaidAt)
	assert.Equal(t, 15, c.PaidAt.Hour())
	notified := len(k.Store.OutboxEvents())

	// Redelivery is recorded but changes nothing.
	evs, err = k.Reconciler.IngestRaw(ctx, "bank", body)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.True(t, evs[0].Processed)

	p, err := k.Payments.Get(ctx, testkit.Customer, r.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusApproved, p.Status)
	assert.Equal(t, orderdomain.StatusPaid, k.Order(t, o.ID).Status)
	assert.Len(t, k.Store.OutboxEvents(), notified)
}

func TestReconcilerUnknownTransaction(t *testing.T) {
	k := testkit.New(t, testkit.Options{})
	ctx := context.Background()
	o, _ := pixReceipt(t, k)

	ev, err := k.Reconciler.Ingest(ctx, domain.Notification{PSPTransactionID: "nope", PSPIdentifier: "bank"})
	require.NoError(t, err)
	assert.False(t, ev.Processed)
	assert.NotEmpty(t, ev.LastError)
	assert.Equal(t, 1, ev.Attempts)
	assert.Equal(t, orderdomain.StatusAwaitingPayment, k.Order(t, o.ID).Status)
}

func TestReconcilerAmountMismatch(t *testing.T) {
	k := testkit.New(t, testkit.Options{})
	ctx := context.Background()
	o, r := pixReceipt(t, k)

	evs, err := k.Reconciler.IngestRaw(ctx, "bank", webhookBody(r.Charge.PSPTransactionID, "30.00"))
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.False(t, evs[0].Processed)
	assert.Contains(t, evs[0].LastError, "30.00")

	c, err := k.Charges.Get(ctx, testkit.Customer, r.Charge.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ChargeActive, c.Status)
	assert.Equal(t, orderdomain.StatusAwaitingPayment, k.Order(t, o.ID).Status)
}

func TestReconcilerWithinTolerance(t *testing.T) {
	k := testkit.New(t, testkit.Options{})
	o, r := pixReceipt(t, k)

	ev, err := k.Reconciler.Ingest(context.Background(), domain.Notification{
		PSPTransactionID: r.Charge.PSPTransactionID,
		Amount:           decimal.NewNullDecimal(decimal.RequireFromString("35.01")),
	})
	require.NoError(t, err)
	assert.True(t, ev.Processed)
	assert.Equal(t, orderdomain.StatusPaid, k.Order(t, o.ID).Status)
}

func TestReconcilerRemoval(t *testing.T) {
	k := testkit.New(t, testkit.Options{})
	ctx := context.Background()
	o, r := pixReceipt(t, k)

	ev, err := k.Reconciler.Ingest(ctx, domain.Notification{
		PSPTransactionID: r.Charge.PSPTransactionID,
		EventType:        domain.EventPixRemoved,
	})
	require.NoError(t, err)
	assert.True(t, ev.Processed)

	c, err := k.Charges.Get(ctx, testkit.Customer, r.Charge.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ChargeRemovedByPSP, c.Status)
	p, err := k.Payments.Get(ctx, testkit.Customer, r.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.StatusCancelled, p.Status)
	assert.Equal(t, orderdomain.StatusAwaitingPayment, k.Order(t, o.ID).Status)
}

func TestReconcilerMalformedBody(t *testing.T) {
	k := testkit.New(t, testkit.Options{})
	ctx := context.Background()

	evs, err := k.Reconciler.IngestRaw(ctx, "bank", []byte(`{not json`))
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, pixapp.EventMalformed, evs[0].EventType)
	assert.False(t, evs[0].Processed)

	n, err := k.Reconciler.ReplayPending(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReconcilerReplay(t *testing.T) {
	k := testkit.New(t, testkit.Options{})
	ctx := context.Background()
	o, r := pixReceipt(t, k)

	// The notification arrives with a txid the store does not know yet,
	// then the charge shows up under that txid.
	ev, err := k.Reconciler.Ingest(ctx, domain.Notification{PSPTransactionID: "late-txid"})
	require.NoError(t, err)
	require.False(t, ev.Processed)

	_, err = k.Reconciler.Replay(ctx, testkit.Customer, ev.ID)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	ev2, err := k.Reconciler.Ingest(ctx, domain.Notification{PSPTransactionID: r.Charge.PSPTransactionID})
	require.NoError(t, err)
	require.True(t, ev2.Processed)
	assert.Equal(t, orderdomain.StatusPaid, k.Order(t, o.ID).Status)

	replayed, err := k.Reconciler.Replay(ctx, testkit.Admin, ev2.ID)
	require.NoError(t, err)
	assert.True(t, replayed.Processed)
	assert.Equal(t, 1, replayed.Attempts)

	failed, err := k.Reconciler.Replay(ctx, testkit.Admin, ev.ID)
	require.NoError(t, err)
	assert.False(t, failed.Processed)
	assert.Equal(t, 2, failed.Attempts)
}

func TestReconcilerReplayPending(t *testing.T) {
	k := testkit.New(t, testkit.Options{})
	ctx := context.Background()
	_, err := k.Reconciler.Ingest(ctx, domain.Notification{PSPTransactionID: "ghost"})
	require.NoError(t, err)

	n, err := k.Reconciler.ReplayPending(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = k.Reconciler.Replay(ctx, access.Anonymous(), "missing")
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}
