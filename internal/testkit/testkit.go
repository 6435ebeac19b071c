// Package testkit wires the application services over the in-memory store
// and catalog for use in tests.
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	catalogdomain "github.com/dmehra2102/event-pos/internal/catalog/domain"
	catalogmem "github.com/dmehra2102/event-pos/internal/catalog/infrastructure/memory"
	kitchenapp "github.com/dmehra2102/event-pos/internal/kitchen/application"
	"github.com/dmehra2102/event-pos/internal/notify"
	orderapp "github.com/dmehra2102/event-pos/internal/order/application"
	orderdomain "github.com/dmehra2102/event-pos/internal/order/domain"
	paymentapp "github.com/dmehra2102/event-pos/internal/payment/application"
	paymentdomain "github.com/dmehra2102/event-pos/internal/payment/domain"
	pixapp "github.com/dmehra2102/event-pos/internal/pix/application"
	"github.com/dmehra2102/event-pos/internal/store"
	"github.com/dmehra2102/event-pos/internal/store/memory"
	"github.com/dmehra2102/event-pos/pkg/access"
	"github.com/dmehra2102/event-pos/pkg/logging"
)

const (
	EventID   = "ev-fair"
	ManagerID = "mgr-1"
	Consumer  = "consumer-1"
)

var (
	Manager  = access.Caller{ID: ManagerID, Role: access.RoleManager}
	Customer = access.Caller{ID: Consumer, Role: access.RoleConsumer}
	Admin    = access.Caller{ID: "root", Role: access.RoleAdmin}
)

type Options struct {
	CardApprovalRate float64
	PSP              pixapp.PSP
}

type Kit struct {
	Store      *memory.Store
	Catalog    *catalogmem.Catalog
	Notify     *notify.Gateway
	Orders     *orderapp.Service
	Payments   *paymentapp.Service
	Charges    *pixapp.ChargeService
	Reconciler *pixapp.Reconciler
	Kitchen    *kitchenapp.Service
}

func New(t *testing.T, opts Options) *Kit {
	t.Helper()
	log := logging.Discard()
	st := memory.New()

	cat := catalogmem.New()
	cat.PutEvent(catalogdomain.Event{ID: EventID, Name: "Summer Fair", ManagerID: ManagerID})
	cat.PutProduct(catalogdomain.Product{ID: "burger", EventID: EventID, Name: "Burger",
		Price: decimal.RequireFromString("10.00"), Available: true, PrepMinutes: 12})
	cat.PutProduct(catalogdomain.Product{ID: "fries", EventID: EventID, Name: "Fries",
		Price: decimal.RequireFromString("15.00"), Available: true, PrepMinutes: 5})
	cat.PutProduct(catalogdomain.Product{ID: "soldout", EventID: EventID, Name: "Churros",
		Price: decimal.RequireFromString("8.00"), Available: false})

	gw := notify.NewGateway(log, st)
	charges := pixapp.NewChargeService(log, st, cat, opts.PSP,
		pixapp.Merchant{PayeeKey: "pix@fair.example", Name: "Summer Fair", City: "Recife"}, 30*time.Minute)
	card := paymentapp.NewCardProcessor(opts.CardApprovalRate, nil)

	return &Kit{
		Store:      st,
		Catalog:    cat,
		Notify:     gw,
		Orders:     orderapp.NewService(log, st, cat, gw),
		Payments:   paymentapp.NewService(log, st, cat, gw, paymentapp.NewProcessors(card, charges)),
		Charges:    charges,
		Reconciler: pixapp.NewReconciler(log, st, gw, 5),
		Kitchen:    kitchenapp.NewService(log, st, cat, gw),
	}
}

// PlaceOrder creates the 2x burger + 1x fries order worth 35.00.
func (k *Kit) PlaceOrder(t *testing.T) orderdomain.Order {
	t.Helper()
	o, err := k.Orders.Create(context.Background(), Customer, orderapp.CreateInput{
		EventID: EventID,
		Items: []orderapp.ItemInput{
			{ProductID: "burger", Quantity: 2},
			{ProductID: "fries", Quantity: 1},
		},
	})
	require.NoError(t, err)
	return o
}

// PaidOrder places the standard order and settles it in cash.
func (k *Kit) PaidOrder(t *testing.T) orderdomain.Order {
	t.Helper()
	o := k.PlaceOrder(t)
	r, err := k.Payments.Process(context.Background(), Customer, paymentapp.ProcessInput{
		OrderID: o.ID,
		Method:  paymentdomain.MethodCash,
	})
	require.NoError(t, err)
	_, err = k.Payments.Confirm(context.Background(), Manager, r.Payment.TransactionID)
	require.NoError(t, err)
	return k.Order(t, o.ID)
}

func (k *Kit) Order(t *testing.T, id string) orderdomain.Order {
	t.Helper()
	var o orderdomain.Order
	require.NoError(t, k.Store.Do(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		o, err = tx.Orders().Get(ctx, id)
		return err
	}))
	return o
}
